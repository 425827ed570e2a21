/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"context"
	"fmt"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/protocol/route"
	connectionstore "github.com/hyperledger/aries-didcomm-agent/pkg/store/connection"
)

// Agent mocks the agent operations used by the controller.
type Agent struct {
	InvitationURL string
	CreateErr     error
	ConnectionKey string
	AcceptErr     error
	AcceptedURL   string
	Records       []*connectionstore.Record
	QueryErr      error
	Messages      []*connectionstore.InboxMessage
	InboxErr      error
	SendErr       error
	Sent          map[string][]string
	Routes        []route.Route
	RoutesErr     error
	Queued        map[string][]*connectionstore.InboxMessage
	TakeErr       error
}

// CreateInvitationURL returns InvitationURL.
func (m *Agent) CreateInvitationURL(context.Context) (string, error) {
	return m.InvitationURL, m.CreateErr
}

// AcceptInvitationURL records invitationURL and returns ConnectionKey.
func (m *Agent) AcceptInvitationURL(_ context.Context, invitationURL string) (string, error) {
	if m.AcceptErr != nil {
		return "", m.AcceptErr
	}

	m.AcceptedURL = invitationURL

	return m.ConnectionKey, nil
}

// GetConnections returns Records.
func (m *Agent) GetConnections() ([]*connectionstore.Record, error) {
	return m.Records, m.QueryErr
}

// FindConnectionByOwnKey returns the record of Records with own key verKey.
func (m *Agent) FindConnectionByOwnKey(verKey string) (*connectionstore.Record, error) {
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}

	for _, rec := range m.Records {
		if rec.OwnVerKey == verKey {
			return rec, nil
		}
	}

	return nil, errNotFound(verKey)
}

// Inbox returns Messages.
func (m *Agent) Inbox(string) ([]*connectionstore.InboxMessage, error) {
	return m.Messages, m.InboxErr
}

// SendMessageToConnection records content in Sent.
func (m *Agent) SendMessageToConnection(_ context.Context, ownVerKey, content string) error {
	if m.SendErr != nil {
		return m.SendErr
	}

	if m.Sent == nil {
		m.Sent = make(map[string][]string)
	}

	m.Sent[ownVerKey] = append(m.Sent[ownVerKey], content)

	return nil
}

// GetRoutes returns Routes.
func (m *Agent) GetRoutes() ([]route.Route, error) {
	return m.Routes, m.RoutesErr
}

// TakeMessage pops the first message of Queued[peerVerKey].
func (m *Agent) TakeMessage(peerVerKey string) (*connectionstore.InboxMessage, error) {
	if m.TakeErr != nil {
		return nil, m.TakeErr
	}

	queue := m.Queued[peerVerKey]
	if len(queue) == 0 {
		return nil, nil
	}

	m.Queued[peerVerKey] = queue[1:]

	return queue[0], nil
}

func errNotFound(verKey string) error {
	return fmt.Errorf("own key %s: %w", verKey, service.ErrConnectionNotFound)
}
