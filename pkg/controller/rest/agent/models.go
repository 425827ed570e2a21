/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"github.com/hyperledger/aries-didcomm-agent/pkg/controller/command/agent"
)

// SendMessageBody is the body of POST /connections/{verkey}/messages.
type SendMessageBody struct {
	Content string `json:"content"`
}

// createInvitationResponse model
//
// swagger:response createInvitationResponse
type createInvitationResponse struct { // nolint: unused,deadcode
	// in: body
	agent.CreateInvitationResponse
}

// acceptInvitationRequest model
//
// swagger:parameters acceptInvitation
type acceptInvitationRequest struct { // nolint: unused,deadcode
	// in: body
	Params agent.AcceptInvitationArgs
}

// acceptInvitationResponse model
//
// swagger:response acceptInvitationResponse
type acceptInvitationResponse struct { // nolint: unused,deadcode
	// in: body
	agent.AcceptInvitationResponse
}

// queryConnectionsResponse model
//
// swagger:response queryConnectionsResponse
type queryConnectionsResponse struct { // nolint: unused,deadcode
	// in: body
	agent.QueryConnectionsResponse
}

// getConnectionRequest model
//
// swagger:parameters getConnection getInbox takeMessage
type getConnectionRequest struct { // nolint: unused,deadcode
	// Own verkey of the connection, or the peer verkey for takeMessage.
	//
	// in: path
	// required: true
	VerKey string `json:"verkey"`
}

// getConnectionResponse model
//
// swagger:response getConnectionResponse
type getConnectionResponse struct { // nolint: unused,deadcode
	// in: body
	agent.QueryConnectionResponse
}

// inboxResponse model
//
// swagger:response inboxResponse
type inboxResponse struct { // nolint: unused,deadcode
	// in: body
	agent.InboxResponse
}

// sendMessageRequest model
//
// swagger:parameters sendMessage
type sendMessageRequest struct { // nolint: unused,deadcode
	// in: path
	// required: true
	VerKey string `json:"verkey"`

	// in: body
	Params SendMessageBody
}

// routesResponse model
//
// swagger:response routesResponse
type routesResponse struct { // nolint: unused,deadcode
	// in: body
	agent.RoutesResponse
}
