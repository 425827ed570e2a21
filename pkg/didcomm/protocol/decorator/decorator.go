/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package decorator

const (
	// SignatureSuffix is appended to a field name holding its detached signature.
	SignatureSuffix = "~sig"
	// SignatureEd25519Sha512Single is the type of a single ed25519 field signature.
	SignatureEd25519Sha512Single = "https://didcomm.org/signature/1.0/ed25519Sha512_single"
	// SignatureTimestampLength is the size of the big endian timestamp prefixed to signed data.
	SignatureTimestampLength = 8
)

// Thread thread data.
type Thread struct {
	ID  string `json:"thid,omitempty"`
	PID string `json:"pthid,omitempty"`
}

// L10n localization data.
type L10n struct {
	Locale string `json:"locale,omitempty"`
}

// Signature is the `<field>~sig` decorator replacing a signed field.
type Signature struct {
	Type       string `json:"@type,omitempty"`
	Signature  string `json:"signature,omitempty"`
	SignedData string `json:"sig_data,omitempty"`
	Signers    string `json:"signers,omitempty"`
}
