/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package legacy

import (
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	chacha "golang.org/x/crypto/chacha20poly1305"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/transport"
	"github.com/hyperledger/aries-didcomm-agent/pkg/internal/cryptoutil"
)

// Unpack will decode the envelope using the legacy format
// Using (X)Chacha20 encryption algorithm and Poly1035 authenticator.
func (p *Packer) Unpack(envelope []byte) (*transport.Envelope, error) {
	var envelopeData legacyEnvelope

	if err := json.Unmarshal(envelope, &envelopeData); err != nil {
		return nil, err
	}

	protectedBytes, err := decodeB64(envelopeData.Protected)
	if err != nil {
		return nil, err
	}

	var protectedData protected

	if err = json.Unmarshal(protectedBytes, &protectedData); err != nil {
		return nil, err
	}

	if protectedData.Typ != encodingType {
		return nil, fmt.Errorf("message type %s not supported", protectedData.Typ)
	}

	if protectedData.Alg != authCrypt && protectedData.Alg != anonCrypt {
		return nil, fmt.Errorf("message format %s not supported", protectedData.Alg)
	}

	k, err := p.getCEK(protectedData.Recipients, protectedData.Alg == authCrypt)
	if err != nil {
		return nil, err
	}

	data, err := p.decodeCipherText(k.cek, &envelopeData)
	if err != nil {
		return nil, err
	}

	return &transport.Envelope{
		Message:    data,
		FromVerKey: k.theirKey,
		ToVerKey:   k.myKey,
	}, nil
}

type keys struct {
	cek      *[chacha.KeySize]byte
	theirKey []byte
	myKey    []byte
}

func (p *Packer) getCEK(recipients []recipient, auth bool) (*keys, error) {
	candidateKeys := make([]string, 0, len(recipients))

	for _, candidate := range recipients {
		candidateKeys = append(candidateKeys, candidate.Header.KID)
	}

	recKeyIdx, err := p.kms.FindVerKey(candidateKeys)
	if err != nil {
		return nil, fmt.Errorf("no key accessible %w", err)
	}

	recip := recipients[recKeyIdx]
	recKey := base58.Decode(recip.Header.KID)

	encCEK, err := decodeB64(recip.EncryptedKey)
	if err != nil {
		return nil, err
	}

	var (
		cekSlice  []byte
		senderPub []byte
	)

	if auth {
		var senderPubCurve []byte

		senderPub, senderPubCurve, err = p.decodeSender(recip.Header.Sender, recKey)
		if err != nil {
			return nil, err
		}

		nonceSlice, e := decodeB64(recip.Header.IV)
		if e != nil {
			return nil, e
		}

		cekSlice, err = p.box.EasyOpen(encCEK, nonceSlice, senderPubCurve, recKey)
	} else {
		cekSlice, err = p.box.SealOpen(encCEK, recKey)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to decrypt CEK: %w", err)
	}

	if len(cekSlice) != chacha.KeySize {
		return nil, fmt.Errorf("failed to decrypt CEK: invalid key size %d", len(cekSlice))
	}

	var cek [chacha.KeySize]byte

	copy(cek[:], cekSlice)

	return &keys{
		cek:      &cek,
		theirKey: senderPub,
		myKey:    recKey,
	}, nil
}

func (p *Packer) decodeSender(b64Sender string, recKey []byte) ([]byte, []byte, error) {
	encSender, err := decodeB64(b64Sender)
	if err != nil {
		return nil, nil, err
	}

	senderPub, err := p.box.SealOpen(encSender, recKey)
	if err != nil {
		return nil, nil, err
	}

	senderData := base58.Decode(string(senderPub))

	senderPubCurve, err := cryptoutil.PublicEd25519toCurve25519(senderData)

	return senderData, senderPubCurve, err
}

// decodeCipherText decodes (from base64) and decrypts the ciphertext using chacha20poly1305.
func (p *Packer) decodeCipherText(cek *[chacha.KeySize]byte, envelope *legacyEnvelope) ([]byte, error) {
	aad := []byte(envelope.Protected)

	cipherText, err := decodeB64(envelope.CipherText)
	if err != nil {
		return nil, err
	}

	nonce, err := decodeB64(envelope.IV)
	if err != nil {
		return nil, err
	}

	if len(nonce) != chacha.NonceSize {
		return nil, fmt.Errorf("invalid iv size %d", len(nonce))
	}

	tag, err := decodeB64(envelope.Tag)
	if err != nil {
		return nil, err
	}

	chachaCipher, err := chacha.New(cek[:])
	if err != nil {
		return nil, err
	}

	payload := append(cipherText, tag...) //nolint:gocritic

	return chachaCipher.Open(nil, nonce, payload, aad)
}
