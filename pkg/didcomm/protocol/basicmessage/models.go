/*
 *
 * Copyright SecureKey Technologies Inc. All Rights Reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 * /
 *
 */

package basicmessage

import (
	"time"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/protocol/decorator"
)

// Message is message model for basic message protocol.
type Message struct {
	ID       string          `json:"@id"`
	Type     string          `json:"@type"`
	L10n     *decorator.L10n `json:"~l10n,omitempty"`
	SentTime time.Time       `json:"sent_time"`
	Content  string          `json:"content"`
}
