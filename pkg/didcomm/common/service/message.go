/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

import "context"

// InboundMessage is a decrypted message together with the keys it was exchanged between.
type InboundMessage struct {
	// Message is the parsed plaintext.
	Message DIDCommMsgMap
	// Payload holds the exact plaintext bytes Message was parsed from.
	Payload []byte
	// SenderVerKey is empty for anonymous messages.
	SenderVerKey string
	// RecipientVerKey is the own key the envelope was decrypted for.
	RecipientVerKey string
}

// NewInboundMessage parses payload and returns an InboundMessage for it.
func NewInboundMessage(payload []byte, senderVerKey, recipientVerKey string) (*InboundMessage, error) {
	msg, err := ParseDIDCommMsgMap(payload)
	if err != nil {
		return nil, err
	}

	return &InboundMessage{
		Message:         msg,
		Payload:         payload,
		SenderVerKey:    senderVerKey,
		RecipientVerKey: recipientVerKey,
	}, nil
}

// OutboundMessage is a logical message waiting to be packed and sent.
type OutboundMessage struct {
	// ConnectionKey is the own verkey of the connection the message belongs to, if any.
	ConnectionKey string
	// Payload is the plaintext, or an opaque envelope when relaying a forward.
	Payload []byte
	// Destination of the message.
	Destination *Destination
	// SenderVerKey selects authcrypt; empty means anoncrypt.
	SenderVerKey string
}

// Handler handles inbound messages of the kinds it declares.
type Handler interface {
	// Kinds lists the message kinds served by the handler.
	Kinds() []MsgKind
	// HandleInbound processes msg and returns an optional reply.
	HandleInbound(ctx context.Context, msg *InboundMessage) (*OutboundMessage, error)
}
