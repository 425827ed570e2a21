/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package inbox delivers envelopes to agents without a reachable endpoint by queueing them
// on the connection they were sent over. The agent collects them by polling.
package inbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/packer/legacy"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/transport"
	connectionstore "github.com/hyperledger/aries-didcomm-agent/pkg/store/connection"
)

// Endpoint is the service endpoint agents without an inbound transport advertise.
const Endpoint = "didcomm:inbox"

// EnvelopeType tags queued envelopes in the inbox.
const EnvelopeType = "envelope"

var logger = log.New("aries-framework/transport/inbox")

// Outbound queues envelopes into the inbox of the connection whose peer is the envelope recipient.
type Outbound struct {
	store *connectionstore.Store
}

// NewOutbound creates the inbox transport over store.
func NewOutbound(store *connectionstore.Store) (*Outbound, error) {
	if store == nil {
		return nil, errors.New("inbox transport needs a connection store")
	}

	return &Outbound{store: store}, nil
}

// Accept reports whether endpoint is the inbox endpoint.
func (o *Outbound) Accept(endpoint string) bool {
	return endpoint == Endpoint
}

// Send stores data for the first envelope recipient that is the peer of a known connection.
func (o *Outbound) Send(_ context.Context, data []byte, _ string) error {
	kids, err := legacy.RecipientKeys(data)
	if err != nil {
		return fmt.Errorf("inbox send: %w", err)
	}

	for _, kid := range kids {
		conn, err := o.store.FindByPeerKey(kid)
		if err != nil {
			continue
		}

		own := conn.Own().OwnVerKey

		if err := o.store.AppendMessage(own, &connectionstore.InboxMessage{Type: EnvelopeType, Payload: data}); err != nil {
			return fmt.Errorf("inbox send: %w", err)
		}

		logger.Debugf("queued envelope for %s on connection %s", kid, own)

		return nil
	}

	return fmt.Errorf("inbox send: no connection with peer in %v: %w", kids, errNoRecipient)
}

var errNoRecipient = errors.New("no inbox for recipient")

var _ transport.OutboundTransport = (*Outbound)(nil)
