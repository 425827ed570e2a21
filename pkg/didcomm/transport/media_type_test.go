/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsEnvelopeMediaType(t *testing.T) {
	tests := []struct {
		ct       string
		expected bool
	}{
		{MediaTypeLegacyEnvelope, true},
		{MediaTypeV1EncryptedEnvelope, true},
		{"Application/DIDComm-Envelope-Enc; charset=utf-8", true},
		{MediaTypeV1PlaintextPayload, false},
		{"application/json", false},
		{"", false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.ct, func(t *testing.T) {
			require.Equal(t, tc.expected, IsEnvelopeMediaType(tc.ct))
		})
	}
}
