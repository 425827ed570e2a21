/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package legacy

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	chacha "golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/poly1305"

	"github.com/hyperledger/aries-didcomm-agent/pkg/internal/cryptoutil"
	"github.com/hyperledger/aries-didcomm-agent/pkg/kms/legacykms"
)

// Pack will encode the payload argument
// Using the protocol defined by Aries RFC 0019.
// senderKey is the sender verkey and must be held by the KMS; nil produces an Anoncrypt envelope.
func (p *Packer) Pack(payload, senderKey []byte, recipientPubKeys [][]byte) ([]byte, error) {
	if len(recipientPubKeys) == 0 {
		return nil, errors.New("empty recipients keys, must have at least one recipient")
	}

	if senderKey != nil && len(senderKey) != ed25519.PublicKeySize {
		return nil, cryptoutil.ErrInvalidKey
	}

	var cek [chacha.KeySize]byte

	if _, err := p.randSource.Read(cek[:]); err != nil {
		return nil, err
	}

	alg := anonCrypt
	if senderKey != nil {
		alg = authCrypt
	}

	recipients, err := p.buildRecipients(&cek, senderKey, recipientPubKeys)
	if err != nil {
		return nil, err
	}

	p2 := protected{
		Enc:        encAlgorithm,
		Typ:        encodingType,
		Alg:        alg,
		Recipients: recipients,
	}

	protectedBytes, err := json.Marshal(p2)
	if err != nil {
		return nil, err
	}

	protectedB64 := base64.URLEncoding.EncodeToString(protectedBytes)

	c, err := chacha.New(cek[:])
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, chacha.NonceSize)

	if _, err = p.randSource.Read(nonce); err != nil {
		return nil, err
	}

	// aad is the base64url protected header, as in libsodium-based agents
	symOutput := c.Seal(nil, nonce, payload, []byte(protectedB64))

	tagEncoded := symOutput[len(symOutput)-poly1305.TagSize:]
	symOutput = symOutput[:len(symOutput)-poly1305.TagSize]

	env := legacyEnvelope{
		Protected:  protectedB64,
		IV:         base64.URLEncoding.EncodeToString(nonce),
		CipherText: base64.URLEncoding.EncodeToString(symOutput),
		Tag:        base64.URLEncoding.EncodeToString(tagEncoded),
	}

	return json.Marshal(env)
}

func (p *Packer) buildRecipients(cek *[chacha.KeySize]byte, senderKey []byte, recPubKeys [][]byte) ([]recipient, error) {
	encodedRecipients := make([]recipient, 0, len(recPubKeys))

	for _, recKey := range recPubKeys {
		var (
			rec *recipient
			err error
		)

		if senderKey == nil {
			rec, err = p.buildAnonRecipient(cek, recKey)
		} else {
			rec, err = p.buildAuthRecipient(cek, senderKey, recKey)
		}

		if err != nil {
			return nil, err
		}

		encodedRecipients = append(encodedRecipients, *rec)
	}

	return encodedRecipients, nil
}

// buildAuthRecipient encodes the necessary data for the recipient to decrypt the message
// encrypting the CEK and sender Pub key.
func (p *Packer) buildAuthRecipient(cek *[chacha.KeySize]byte, senderKey, recKey []byte) (*recipient, error) {
	var nonce [cryptoutil.NonceSize]byte

	if _, err := p.randSource.Read(nonce[:]); err != nil {
		return nil, err
	}

	recEncKey, err := cryptoutil.PublicEd25519toCurve25519(recKey)
	if err != nil {
		return nil, err
	}

	encCEK, err := p.box.Easy(cek[:], nonce[:], recEncKey, senderKey)
	if err != nil {
		return nil, fmt.Errorf("encrypt cek: %w", err)
	}

	encSender, err := legacykms.Seal([]byte(base58.Encode(senderKey)), recEncKey, p.randSource)
	if err != nil {
		return nil, err
	}

	return &recipient{
		EncryptedKey: base64.URLEncoding.EncodeToString(encCEK),
		Header: recipientHeader{
			KID:    base58.Encode(recKey),
			Sender: base64.URLEncoding.EncodeToString(encSender),
			IV:     base64.URLEncoding.EncodeToString(nonce[:]),
		},
	}, nil
}

func (p *Packer) buildAnonRecipient(cek *[chacha.KeySize]byte, recKey []byte) (*recipient, error) {
	recEncKey, err := cryptoutil.PublicEd25519toCurve25519(recKey)
	if err != nil {
		return nil, err
	}

	encCEK, err := legacykms.Seal(cek[:], recEncKey, p.randSource)
	if err != nil {
		return nil, err
	}

	return &recipient{
		EncryptedKey: base64.URLEncoding.EncodeToString(encCEK),
		Header:       recipientHeader{KID: base58.Encode(recKey)},
	}, nil
}
