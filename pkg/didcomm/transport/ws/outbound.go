/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ws

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nhooyr.io/websocket"
)

const (
	webSocketScheme       = "ws://"
	secureWebSocketScheme = "wss://"
)

// ErrRejected is returned when the remote agent could not process a sent envelope.
var ErrRejected = errors.New("remote agent rejected the message")

// OutboundClient websocket outbound.
type OutboundClient struct{}

// NewOutbound creates a client for Outbound WS transport.
func NewOutbound() *OutboundClient {
	return &OutboundClient{}
}

// Send sends a2a data via WS and waits for the remote acknowledgement.
func (cs *OutboundClient) Send(ctx context.Context, data []byte, url string) error {
	if url == "" {
		return errors.New("url is mandatory")
	}

	client, _, err := websocket.Dial(ctx, url, nil) //nolint:bodyclose
	if err != nil {
		return fmt.Errorf("websocket client : %w", err)
	}

	defer closeConn(client)

	if err := client.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("websocket write message : %w", err)
	}

	messageType, message, err := client.Read(ctx)
	if err != nil {
		return fmt.Errorf("websocket read message : %w", err)
	}

	if messageType != websocket.MessageText {
		return errors.New("message type is not text message")
	}

	if len(message) != 0 {
		return fmt.Errorf("%w: %s", ErrRejected, message)
	}

	return nil
}

// Accept checks for the url scheme.
func (cs *OutboundClient) Accept(url string) bool {
	return strings.HasPrefix(url, webSocketScheme) || strings.HasPrefix(url, secureWebSocketScheme)
}
