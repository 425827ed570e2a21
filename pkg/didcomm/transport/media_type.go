/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package transport

import "strings"

const (
	// MediaTypeLegacyEnvelope is the content type agents of this generation post envelopes with.
	MediaTypeLegacyEnvelope = "application/didcomm-envelope-enc"
	// MediaTypeV1EncryptedEnvelope is the media type for DIDComm V1 encrypted envelopes as per Aries RFC 0044.
	MediaTypeV1EncryptedEnvelope = "application/didcomm-enc-env"
	// MediaTypeV1PlaintextPayload is the media type for DIDComm V1 plaintext payloads as per Aries RFC 0044.
	MediaTypeV1PlaintextPayload = "application/json;flavor=didcomm-msg"
)

// IsEnvelopeMediaType reports whether contentType announces a DIDComm V1 envelope.
// Parameters such as charset are ignored.
func IsEnvelopeMediaType(contentType string) bool {
	mt := strings.TrimSpace(strings.ToLower(strings.SplitN(contentType, ";", 2)[0]))

	switch mt {
	case MediaTypeLegacyEnvelope, MediaTypeV1EncryptedEnvelope:
		return true
	default:
		return false
	}
}
