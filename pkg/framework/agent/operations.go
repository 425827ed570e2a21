/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/hyperledger/aries-didcomm-agent/pkg/common/metrics"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/protocol/basicmessage"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/protocol/connection"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/protocol/route"
	arieshttp "github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/transport/http"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/transport/inbox"
	"github.com/hyperledger/aries-didcomm-agent/pkg/internal/logutil"
	connectionstore "github.com/hyperledger/aries-didcomm-agent/pkg/store/connection"
)

// ErrInvalidMessage is returned for inbound payloads that are neither a message nor an envelope.
var ErrInvalidMessage = errors.New("invalid inbound message")

// CreateInvitationURL creates a connection in the invited state and returns the invitation URL for it.
func (a *Agent) CreateInvitationURL(ctx context.Context) (string, error) {
	_, inv, err := a.connections.CreateInvitation(ctx)
	if err != nil {
		return "", err
	}

	return connection.EncodeInvitationURL(a.invitationBaseURL, inv)
}

// AcceptInvitationURL accepts the invitation in invitationURL, sends the connection request
// and returns the own verkey of the new connection.
func (a *Agent) AcceptInvitationURL(ctx context.Context, invitationURL string) (string, error) {
	inv, err := connection.DecodeInvitationURL(invitationURL)
	if err != nil {
		return "", err
	}

	out, err := a.connections.AcceptInvitation(ctx, inv)
	if err != nil {
		return "", err
	}

	if err := a.sender.Send(ctx, out); err != nil {
		return "", fmt.Errorf("send connection request: %w", err)
	}

	return out.ConnectionKey, nil
}

// ReceiveMessage handles an inbound payload: a plaintext message with @type, an envelope, or
// an envelope whose plaintext is itself an envelope. Replies are sent before it returns.
func (a *Agent) ReceiveMessage(ctx context.Context, payload []byte) error {
	msg, err := a.open(ctx, payload)
	if err != nil {
		logutil.LogWarn(logger, logComponent, "receiveMessage", err.Error())
		metrics.DispatchFailed(service.ErrorCode(err))

		return err
	}

	out, err := a.dispatcher.Dispatch(ctx, msg)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	if err := a.sender.Send(ctx, out); err != nil {
		logutil.LogError(logger, logComponent, "receiveMessage", err.Error(),
			logutil.CreateKeyValueString("msgType", msg.Message.Type()),
			logutil.CreateKeyValueString("connection", out.ConnectionKey))

		return fmt.Errorf("send reply: %w", err)
	}

	return nil
}

// open turns payload into an inbound message, unpacking up to two envelope layers.
func (a *Agent) open(ctx context.Context, payload []byte) (*service.InboundMessage, error) {
	if hasType(payload) {
		return service.NewInboundMessage(payload, "", "")
	}

	unpacked, err := a.wallet.Unpack(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMessage, err.Error())
	}

	if !hasType(unpacked.Message) {
		unpacked, err = a.wallet.Unpack(ctx, unpacked.Message)
		if err != nil {
			return nil, fmt.Errorf("%w: inner envelope: %s", ErrInvalidMessage, err.Error())
		}
	}

	return service.NewInboundMessage(unpacked.Message, unpacked.FromVerKey, unpacked.ToVerKey)
}

func hasType(payload []byte) bool {
	var probe struct {
		Type string `json:"@type"`
	}

	return json.Unmarshal(payload, &probe) == nil && probe.Type != ""
}

// SendMessageToConnection sends a basic message with content over the connection of ownVerKey.
func (a *Agent) SendMessageToConnection(ctx context.Context, ownVerKey, content string) error {
	conn, err := a.store.Get(ownVerKey)
	if err != nil {
		return err
	}

	out, err := basicmessage.NewMessage(conn, content)
	if err != nil {
		return err
	}

	return a.sender.Send(ctx, out)
}

// GetConnections returns every connection in creation order.
func (a *Agent) GetConnections() ([]*connectionstore.Record, error) {
	return a.store.ListRecords()
}

// FindConnectionByOwnKey returns the connection whose own verkey is verKey.
func (a *Agent) FindConnectionByOwnKey(verKey string) (*connectionstore.Record, error) {
	return a.store.GetRecord(verKey)
}

// FindConnectionByPeerKey returns the connection whose peer verkey is verKey.
func (a *Agent) FindConnectionByPeerKey(verKey string) (*connectionstore.Record, error) {
	conn, err := a.store.FindByPeerKey(verKey)
	if err != nil {
		return nil, err
	}

	return a.store.GetRecord(conn.Own().OwnVerKey)
}

// GetRoutes lists the routes this agent mediates.
func (a *Agent) GetRoutes() ([]route.Route, error) {
	return a.routes.GetRoutes()
}

// Inbox reads the inbox of the connection of ownVerKey according to the inbox mode.
func (a *Agent) Inbox(ownVerKey string) ([]*connectionstore.InboxMessage, error) {
	return a.store.Inbox(ownVerKey)
}

// TakeMessage pops the oldest message queued for the peer peerVerKey, or nil when there is none.
// Edge agents without an endpoint poll it through the mediator.
func (a *Agent) TakeMessage(peerVerKey string) (*connectionstore.InboxMessage, error) {
	conn, err := a.store.FindByPeerKey(peerVerKey)
	if err != nil {
		return nil, err
	}

	return a.store.TakeMessage(conn.Own().OwnVerKey)
}

// EstablishInbound connects to the mediator inviting through invitationURL and, once the
// connection is complete, routes every new connection through it. mediatorVerKey is the routing
// key to publish; the verkey of the mediator connection is used when it is empty. Agents without
// an endpoint of their own poll the mediator for their messages until Close.
func (a *Agent) EstablishInbound(ctx context.Context, mediatorVerKey, invitationURL string) (string, error) {
	inv, err := connection.DecodeInvitationURL(invitationURL)
	if err != nil {
		return "", err
	}

	connKey, err := a.AcceptInvitationURL(ctx, invitationURL)
	if err != nil {
		return "", err
	}

	if a.endpoint == inbox.Endpoint && isHTTP(inv.ServiceEndpoint) {
		if err := a.startPolling(inv.ServiceEndpoint, connKey); err != nil {
			return "", err
		}
	}

	peer, err := a.awaitCompleted(ctx, connKey)
	if err != nil {
		return "", err
	}

	if mediatorVerKey == "" {
		mediatorVerKey = peer.VerKey
	}

	if err := a.consumer.EstablishInbound(mediatorVerKey, connKey); err != nil {
		return "", err
	}

	return connKey, nil
}

func (a *Agent) awaitCompleted(ctx context.Context, connKey string) (*connectionstore.Peer, error) {
	var peer *connectionstore.Peer

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.pollInterval / 2
	b.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		c, err := a.store.Get(connKey)
		if err != nil {
			return backoff.Permanent(err)
		}

		if c.State() != connectionstore.StateComplete {
			return fmt.Errorf("mediator connection %s is %s: %w", connKey, c.State(), route.ErrRouterNotComplete)
		}

		peer, _ = connectionstore.PeerOf(c)

		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, err
	}

	return peer, nil
}

func (a *Agent) startPolling(mediatorURL, connKey string) error {
	poller, err := arieshttp.NewPoller(mediatorURL, connKey,
		arieshttp.WithPollInterval(a.pollInterval),
		arieshttp.WithPollSigner(a.wallet.SignBytes))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())

	a.pollMu.Lock()
	if _, ok := a.pollers[connKey]; ok {
		a.pollMu.Unlock()
		cancel()

		return nil
	}

	a.pollers[connKey] = cancel
	a.pollMu.Unlock()

	a.pollWG.Add(1)

	go func() {
		defer a.pollWG.Done()

		poller.Run(ctx, a.ReceiveMessage)
	}()

	logger.Infof("polling %s for messages of %s", mediatorURL, connKey)

	return nil
}

func isHTTP(endpoint string) bool {
	return strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")
}
