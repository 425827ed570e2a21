/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package legacy

import (
	"encoding/json"
	"errors"
	"fmt"
)

// RecipientKeys returns the base58 recipient kids of envelope without decrypting it.
func RecipientKeys(envelope []byte) ([]string, error) {
	var envelopeData legacyEnvelope

	if err := json.Unmarshal(envelope, &envelopeData); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}

	protectedBytes, err := decodeB64(envelopeData.Protected)
	if err != nil {
		return nil, fmt.Errorf("decode protected header: %w", err)
	}

	var protectedData protected

	if err := json.Unmarshal(protectedBytes, &protectedData); err != nil {
		return nil, fmt.Errorf("parse protected header: %w", err)
	}

	if len(protectedData.Recipients) == 0 {
		return nil, errors.New("envelope has no recipients")
	}

	kids := make([]string, 0, len(protectedData.Recipients))

	for _, r := range protectedData.Recipients {
		kids = append(kids, r.Header.KID)
	}

	return kids, nil
}
