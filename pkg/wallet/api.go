/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package wallet

import (
	"context"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/service"
)

// Wallet interface.
type Wallet interface {
	Crypto
	Signer
	DIDCreator
}

// Crypto interface.
type Crypto interface {
	// Pack encrypts payload for every recipient verkey. An empty senderVerKey packs anonymously.
	//
	// Returns:
	//
	// []byte: the encrypted envelope
	//
	// error: error
	Pack(ctx context.Context, payload []byte, recipients []string, senderVerKey string) ([]byte, error)

	// Unpack decrypts an envelope addressed to one of the wallet keys.
	Unpack(ctx context.Context, envelope []byte) (*Unpacked, error)
}

// Signer interface provides signing capabilities.
type Signer interface {
	// Sign replaces field of msg with its `<field>~sig` decorator, signed by verKey.
	//
	// Args:
	//
	// msg: the message holding the field
	//
	// field: name of the field to sign
	//
	// verKey: sign using the private key related to this verification key
	//
	// Returns:
	//
	// service.DIDCommMsgMap: a copy of msg carrying the signature
	//
	// error: error
	Sign(msg service.DIDCommMsgMap, field, verKey string) (service.DIDCommMsgMap, error)

	// Verify checks an ed25519 signature of data by verKey.
	Verify(verKey string, data, signature []byte) (bool, error)
}

// DIDCreator creates DIDs backed by wallet keys.
type DIDCreator interface {
	// CreateDID creates a DID and its verkey from a fresh key pair.
	CreateDID(ctx context.Context) (*DIDInfo, error)
}

// DIDInfo is a DID together with its verification key.
type DIDInfo struct {
	DID    string `json:"did"`
	VerKey string `json:"verkey"`
}

// Unpacked is a decrypted envelope.
type Unpacked struct {
	Message []byte
	// FromVerKey is empty for anonymous envelopes.
	FromVerKey string
	ToVerKey   string
}
