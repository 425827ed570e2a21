/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package wallet

import (
	"context"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-agent/pkg/wallet"
)

// Wallet mock wallet. Calls without an injected error or value go to the embedded Wallet.
type Wallet struct {
	wallet.Wallet
	CreateDIDValue *wallet.DIDInfo
	CreateDIDErr   error
	PackValue      []byte
	PackErr        error
	UnpackValue    *wallet.Unpacked
	UnpackErr      error
	SignErr        error
	VerifyValue    *bool
	VerifyErr      error
}

// CreateDID creates a DID.
func (m *Wallet) CreateDID(ctx context.Context) (*wallet.DIDInfo, error) {
	if m.CreateDIDErr != nil || m.CreateDIDValue != nil {
		return m.CreateDIDValue, m.CreateDIDErr
	}

	return m.Wallet.CreateDID(ctx)
}

// Pack packs a payload.
func (m *Wallet) Pack(ctx context.Context, payload []byte, recipients []string, sender string) ([]byte, error) {
	if m.PackErr != nil || m.PackValue != nil {
		return m.PackValue, m.PackErr
	}

	return m.Wallet.Pack(ctx, payload, recipients, sender)
}

// Unpack unpacks an envelope.
func (m *Wallet) Unpack(ctx context.Context, envelope []byte) (*wallet.Unpacked, error) {
	if m.UnpackErr != nil || m.UnpackValue != nil {
		return m.UnpackValue, m.UnpackErr
	}

	return m.Wallet.Unpack(ctx, envelope)
}

// Sign signs a message field.
func (m *Wallet) Sign(msg service.DIDCommMsgMap, field, verKey string) (service.DIDCommMsgMap, error) {
	if m.SignErr != nil {
		return nil, m.SignErr
	}

	return m.Wallet.Sign(msg, field, verKey)
}

// Verify verifies a signature.
func (m *Wallet) Verify(verKey string, data, signature []byte) (bool, error) {
	if m.VerifyErr != nil {
		return false, m.VerifyErr
	}

	if m.VerifyValue != nil {
		return *m.VerifyValue, nil
	}

	return m.Wallet.Verify(verKey, data, signature)
}
