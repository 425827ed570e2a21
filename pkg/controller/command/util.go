/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package command

import (
	"encoding/json"
	"io"

	"github.com/hyperledger/aries-framework-go/spi/log"
)

// WriteNillableResponse encodes v as JSON into w, writing an empty object for a nil v.
// Encoding failures are logged since the caller has already committed to a response.
func WriteNillableResponse(w io.Writer, v interface{}, l log.Logger) {
	if v == nil {
		v = struct{}{}
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		l.Errorf("failed to write command response: %s", err)
	}
}
