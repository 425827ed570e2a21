/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"fmt"
	"time"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/model"
)

// Record is the persisted and serialized form of a Connection.
type Record struct {
	Base
	State      State             `json:"state"`
	Invitation *model.Invitation `json:"invitation,omitempty"`
	Peer       *Peer             `json:"peer,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	Seq        uint64            `json:"seq"`
}

// ToRecord flattens c.
func ToRecord(c Connection) *Record {
	rec := &Record{Base: *c.Own(), State: c.State()}

	if inv, ok := InvitationOf(c); ok {
		rec.Invitation = inv
	}

	if peer, ok := PeerOf(c); ok {
		p := *peer
		rec.Peer = &p
	}

	return rec
}

// Connection rebuilds the typed connection held by the record.
func (r *Record) Connection() (Connection, error) {
	switch r.State {
	case StateInit:
		return &Initiated{Base: r.Base}, nil
	case StateInvited:
		return &Invited{Base: r.Base, Invitation: r.Invitation}, nil
	case StateRequested:
		return &Requested{Base: r.Base, Invitation: r.Invitation}, nil
	case StateResponded, StateComplete:
		if r.Peer == nil {
			return nil, fmt.Errorf("connection %s in state %s has no peer", r.OwnVerKey, r.State)
		}

		if r.State == StateResponded {
			return &Responded{Base: r.Base, Peer: *r.Peer}, nil
		}

		return &Completed{Base: r.Base, Peer: *r.Peer}, nil
	default:
		return nil, fmt.Errorf("invalid connection state %q", r.State)
	}
}
