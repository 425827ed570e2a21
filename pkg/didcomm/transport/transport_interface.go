/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package transport

import "context"

// Envelope holds the decrypted message together with the keys it was exchanged between.
type Envelope struct {
	Message    []byte
	FromVerKey []byte
	ToVerKey   []byte
}

// OutboundTransport interface definition for transport layer
// This is the client side of the agent.
type OutboundTransport interface {
	// Send sends the packed envelope to endpoint.
	Send(ctx context.Context, data []byte, endpoint string) error
	// Accept reports whether the transport can deliver to endpoint.
	Accept(endpoint string) bool
}

// InboundMessageHandler handles an inbound envelope. Transports hand over the raw bytes,
// the agent unpacks them.
type InboundMessageHandler func(ctx context.Context, envelope []byte) error

// InboundTransport interface definition for the server side of the agent.
type InboundTransport interface {
	// Start the inbound transport, delivering every received envelope to handler.
	Start(handler InboundMessageHandler) error
	// Stop the inbound transport.
	Stop() error
	// Endpoint is the externally reachable address peers should send to.
	Endpoint() string
}
