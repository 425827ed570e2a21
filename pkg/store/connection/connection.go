/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/model"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-agent/pkg/doc/did"
)

// State of a connection handshake.
type State string

// Connection states.
const (
	StateInit      State = "init"
	StateInvited   State = "invited"
	StateRequested State = "requested"
	StateResponded State = "responded"
	StateComplete  State = "complete"
)

// Connection is one pairwise channel. The concrete type tells which handshake phase it is in:
// *Initiated, *Invited, *Requested, *Responded or *Completed.
type Connection interface {
	State() State
	Own() *Base
	isConnection()
}

// Base is the part of a connection known from the moment it is created.
type Base struct {
	OwnDID     string              `json:"ownDid"`
	OwnVerKey  string              `json:"ownVerkey"`
	OwnService service.Destination `json:"ownService"`
	DIDDoc     *did.Doc            `json:"didDoc"`
}

// Peer is the remote side of a connection, learned during request or response handling.
type Peer struct {
	DID     string              `json:"did"`
	VerKey  string              `json:"verkey"`
	Service service.Destination `json:"service"`
	Label   string              `json:"label,omitempty"`
}

// Own returns the own half of the connection.
func (b *Base) Own() *Base { return b }

func (b *Base) isConnection() {}

// Initiated is a connection whose keys exist but which has not been offered or requested yet.
type Initiated struct {
	Base
}

// State implements Connection.
func (*Initiated) State() State { return StateInit }

// Invite moves the connection to the invited phase.
func (c *Initiated) Invite(inv *model.Invitation) *Invited {
	return &Invited{Base: c.Base, Invitation: inv}
}

// Request moves the connection to the requested phase.
func (c *Initiated) Request(inv *model.Invitation) *Requested {
	return &Requested{Base: c.Base, Invitation: inv}
}

// Invited is the inviter side waiting for a request.
type Invited struct {
	Base
	Invitation *model.Invitation
}

// State implements Connection.
func (*Invited) State() State { return StateInvited }

// Respond records the requesting peer.
func (c *Invited) Respond(peer Peer) *Responded {
	return &Responded{Base: c.Base, Peer: peer}
}

// Requested is the invitee side waiting for a response.
type Requested struct {
	Base
	Invitation *model.Invitation
}

// State implements Connection.
func (*Requested) State() State { return StateRequested }

// Complete records the responding peer.
func (c *Requested) Complete(peer Peer) *Completed {
	return &Completed{Base: c.Base, Peer: peer}
}

// Responded is the inviter side waiting for the acknowledgement.
type Responded struct {
	Base
	Peer Peer
}

// State implements Connection.
func (*Responded) State() State { return StateResponded }

// Complete finishes the handshake.
func (c *Responded) Complete() *Completed {
	return &Completed{Base: c.Base, Peer: c.Peer}
}

// Completed is an established connection.
type Completed struct {
	Base
	Peer Peer
}

// State implements Connection.
func (*Completed) State() State { return StateComplete }

// PeerOf returns the peer of c when its identity is known.
func PeerOf(c Connection) (*Peer, bool) {
	switch conn := c.(type) {
	case *Responded:
		return &conn.Peer, true
	case *Completed:
		return &conn.Peer, true
	default:
		return nil, false
	}
}

// InvitationOf returns the pending invitation of c.
func InvitationOf(c Connection) (*model.Invitation, bool) {
	switch conn := c.(type) {
	case *Invited:
		return conn.Invitation, conn.Invitation != nil
	case *Requested:
		return conn.Invitation, conn.Invitation != nil
	default:
		return nil, false
	}
}
