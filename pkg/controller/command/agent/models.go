/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/protocol/route"
	connectionstore "github.com/hyperledger/aries-didcomm-agent/pkg/store/connection"
)

// CreateInvitationResponse holds a new invitation URL.
type CreateInvitationResponse struct {
	InvitationURL string `json:"invitation_url"`
}

// AcceptInvitationArgs are the arguments of the accept invitation command.
type AcceptInvitationArgs struct {
	InvitationURL string `json:"invitation_url"`
}

// AcceptInvitationResponse holds the own verkey of the connection created by accepting an invitation.
type AcceptInvitationResponse struct {
	ConnectionKey string `json:"connection_key"`
}

// ConnectionKeyArgs identifies a connection by a verkey: the own key, or the peer key for TakeMessage.
type ConnectionKeyArgs struct {
	VerKey string `json:"verkey"`
}

// QueryConnectionsResponse lists connections.
type QueryConnectionsResponse struct {
	Results []*connectionstore.Record `json:"results"`
}

// QueryConnectionResponse holds one connection.
type QueryConnectionResponse struct {
	Result *connectionstore.Record `json:"result"`
}

// InboxResponse holds the messages read from a connection inbox.
type InboxResponse struct {
	Messages []*connectionstore.InboxMessage `json:"messages"`
}

// SendMessageArgs are the arguments of the send message command.
type SendMessageArgs struct {
	VerKey  string `json:"verkey"`
	Content string `json:"content"`
}

// RoutesResponse lists the routing table of a mediator.
type RoutesResponse struct {
	Routes []route.Route `json:"routes"`
}
