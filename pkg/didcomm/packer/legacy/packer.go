/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package legacy

import (
	"crypto/rand"
	"encoding/base64"
	"io"

	"github.com/hyperledger/aries-didcomm-agent/pkg/kms/legacykms"
)

const (
	// encodingType is the `typ` string identifier in a message that identifies the format as being legacy.
	encodingType = "JWM/1.0"
	encAlgorithm = "chacha20poly1305_ietf"
	authCrypt    = "Authcrypt"
	anonCrypt    = "Anoncrypt"
)

// Packer represents a Pack/Unpacker that outputs/reads legacy Aries envelopes.
// A sender key selects Authcrypt, a nil sender key Anoncrypt.
type Packer struct {
	randSource io.Reader
	kms        *legacykms.BaseKMS
	box        *legacykms.CryptoBox
}

// New will create a Packer that encrypts messages using the legacy Aries format.
// Note: legacy Packer does not support XChacha20Poly1035 (XC20P), only Chacha20Poly1035 (C20P).
func New(km *legacykms.BaseKMS) (*Packer, error) {
	b, err := legacykms.NewCryptoBox(km)
	if err != nil {
		return nil, err
	}

	return &Packer{
		randSource: rand.Reader,
		kms:        km,
		box:        b,
	}, nil
}

// EncodingType returns the type of the encoding, as in the `Typ` field of the envelope header.
func (p *Packer) EncodingType() string {
	return encodingType
}

// legacyEnvelope is the full payload envelope for the JSON message.
type legacyEnvelope struct {
	Protected  string `json:"protected,omitempty"`
	IV         string `json:"iv,omitempty"`
	CipherText string `json:"ciphertext,omitempty"`
	Tag        string `json:"tag,omitempty"`
}

// protected is the protected header of the JSON envelope.
type protected struct {
	Enc        string      `json:"enc,omitempty"`
	Typ        string      `json:"typ,omitempty"`
	Alg        string      `json:"alg,omitempty"`
	Recipients []recipient `json:"recipients,omitempty"`
}

// recipient holds the data for a recipient in the envelope header.
type recipient struct {
	EncryptedKey string          `json:"encrypted_key,omitempty"`
	Header       recipientHeader `json:"header,omitempty"`
}

// recipientHeader holds the header data for a recipient.
type recipientHeader struct {
	KID    string `json:"kid,omitempty"`
	Sender string `json:"sender,omitempty"`
	IV     string `json:"iv,omitempty"`
}

// decodeB64 accepts padded and unpadded base64url, since other agents emit both.
func decodeB64(s string) ([]byte, error) {
	b, err := base64.URLEncoding.DecodeString(s)
	if err == nil {
		return b, nil
	}

	return base64.RawURLEncoding.DecodeString(s)
}
