/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package route

import (
	"context"

	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/service"
	connectionstore "github.com/hyperledger/aries-didcomm-agent/pkg/store/connection"
)

// constants for key list update processing.
const (
	// add key to the routing table.
	add = "add"

	// remove is understood but never applied.
	remove = "remove"
)

// KeylistUpdate asks a mediator to change the keys it routes for the sending connection.
type KeylistUpdate struct {
	Type    string   `json:"@type,omitempty"`
	ID      string   `json:"@id,omitempty"`
	Updates []Update `json:"updates,omitempty"`
}

// Update is one key list change.
type Update struct {
	RecipientKey string `json:"recipient_key,omitempty"`
	Action       string `json:"action,omitempty"`
}

// Route is an entry of the routing table.
type Route struct {
	RecipientKey  string `json:"recipientKey"`
	ConnectionKey string `json:"connectionKey"`
}

// Sender sends outbound messages.
type Sender interface {
	Send(ctx context.Context, msg *service.OutboundMessage) error
}

// provider contains dependencies for the routing service.
type provider interface {
	StorageProvider() storage.Provider
	ConnectionStore() *connectionstore.Store
}
