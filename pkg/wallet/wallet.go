/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcutil/base58"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/packer"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/packer/legacy"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-didcomm-agent/pkg/kms/legacykms"
)

const (
	didMethodPrefix = "did:sov:"
	// sov DIDs are the base58 of the first 16 bytes of the verkey.
	didKeyBytes = 16
)

var logger = log.New("aries-framework/wallet")

// BaseWallet is the Wallet backed by the legacy KMS and the legacy envelope packer.
type BaseWallet struct {
	kms    legacykms.KeyManager
	packer packer.Packer
	now    func() time.Time
}

// New creates a wallet storing its keys in p.
func New(p storage.Provider) (*BaseWallet, error) {
	km, err := legacykms.New(p)
	if err != nil {
		return nil, fmt.Errorf("new wallet: %w", err)
	}

	pck, err := legacy.New(km)
	if err != nil {
		return nil, fmt.Errorf("new wallet: %w", err)
	}

	return &BaseWallet{kms: km, packer: pck, now: time.Now}, nil
}

// CreateDID creates a DID and its verkey from a fresh key pair.
func (w *BaseWallet) CreateDID(_ context.Context) (*DIDInfo, error) {
	_, verKey, err := w.kms.CreateKeySet()
	if err != nil {
		return nil, fmt.Errorf("create did: %w", err)
	}

	return newDIDInfo(verKey), nil
}

// CreateDIDFromSeed creates the DID derived from a 32 byte seed. The same seed always gives the same DID.
func (w *BaseWallet) CreateDIDFromSeed(_ context.Context, seed []byte) (*DIDInfo, error) {
	_, verKey, err := w.kms.CreateKeySetFromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("create did from seed: %w", err)
	}

	return newDIDInfo(verKey), nil
}

func newDIDInfo(verKey string) *DIDInfo {
	raw := base58.Decode(verKey)

	return &DIDInfo{
		DID:    didMethodPrefix + base58.Encode(raw[:didKeyBytes]),
		VerKey: verKey,
	}
}

// Pack encrypts payload for every recipient verkey. An empty senderVerKey packs anonymously.
func (w *BaseWallet) Pack(_ context.Context, payload []byte, recipients []string, senderVerKey string) ([]byte, error) {
	recKeys := make([][]byte, 0, len(recipients))

	for _, r := range recipients {
		k := base58.Decode(r)
		if len(k) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("pack: invalid recipient key %q", r)
		}

		recKeys = append(recKeys, k)
	}

	var sender []byte
	if senderVerKey != "" {
		sender = base58.Decode(senderVerKey)
	}

	env, err := w.packer.Pack(payload, sender, recKeys)
	if err != nil {
		return nil, fmt.Errorf("pack: %w", err)
	}

	return env, nil
}

// Unpack decrypts an envelope addressed to one of the wallet keys.
func (w *BaseWallet) Unpack(_ context.Context, envelope []byte) (*Unpacked, error) {
	env, err := w.packer.Unpack(envelope)
	if err != nil {
		return nil, fmt.Errorf("unpack: %w", err)
	}

	u := &Unpacked{
		Message:  env.Message,
		ToVerKey: base58.Encode(env.ToVerKey),
	}

	if len(env.FromVerKey) > 0 {
		u.FromVerKey = base58.Encode(env.FromVerKey)
	}

	return u, nil
}

// Sign replaces field of msg with its `<field>~sig` decorator, signed by verKey.
// The signed data is an 8 byte big endian unix timestamp followed by the JSON of the field.
func (w *BaseWallet) Sign(msg service.DIDCommMsgMap, field, verKey string) (service.DIDCommMsgMap, error) {
	value, ok := msg[field]
	if !ok {
		return nil, fmt.Errorf("sign: message has no field %q", field)
	}

	fieldBytes, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("sign: marshal %s: %w", field, err)
	}

	sigData := make([]byte, decorator.SignatureTimestampLength, decorator.SignatureTimestampLength+len(fieldBytes))
	binary.BigEndian.PutUint64(sigData, uint64(w.now().Unix()))
	sigData = append(sigData, fieldBytes...)

	signature, err := w.kms.SignMessage(sigData, verKey)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}

	sig, err := service.NewDIDCommMsgMap(&decorator.Signature{
		Type:       decorator.SignatureEd25519Sha512Single,
		Signature:  base64.URLEncoding.EncodeToString(signature),
		SignedData: base64.URLEncoding.EncodeToString(sigData),
		Signers:    verKey,
	})
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}

	signed := msg.Clone()
	delete(signed, field)
	signed[field+decorator.SignatureSuffix] = map[string]interface{}(sig)

	logger.Debugf("signed field %s with %s", field, verKey)

	return signed, nil
}

// SignBytes signs data with the private key of verKey.
func (w *BaseWallet) SignBytes(data []byte, verKey string) ([]byte, error) {
	signature, err := w.kms.SignMessage(data, verKey)
	if err != nil {
		return nil, fmt.Errorf("sign bytes: %w", err)
	}

	return signature, nil
}

// Verify checks an ed25519 signature of data by verKey.
func (w *BaseWallet) Verify(verKey string, data, signature []byte) (bool, error) {
	pub := base58.Decode(verKey)
	if len(pub) != ed25519.PublicKeySize {
		return false, errors.New("verify: invalid verkey")
	}

	return ed25519.Verify(pub, data, signature), nil
}
