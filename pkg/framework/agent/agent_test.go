/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/model"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/protocol/basicmessage"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/transport"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/transport/inbox"
	connectionstore "github.com/hyperledger/aries-didcomm-agent/pkg/store/connection"
)

type mockInbound struct {
	endpoint string
	handler  transport.InboundMessageHandler
	startErr error
	stopErr  error
}

func (m *mockInbound) Start(h transport.InboundMessageHandler) error {
	m.handler = h

	return m.startErr
}

func (m *mockInbound) Stop() error { return m.stopErr }

func (m *mockInbound) Endpoint() string { return m.endpoint }

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		a, err := New()
		require.NoError(t, err)
		require.Equal(t, inbox.Endpoint, a.Endpoint())
		require.NotEmpty(t, a.PublicDID().VerKey)
		require.NoError(t, a.Close())
	})

	t.Run("invalid options", func(t *testing.T) {
		for _, opt := range []Option{
			WithStorageProvider(nil),
			WithWalletSeed([]byte("short")),
			WithInboxMode("bogus"),
			WithPollInterval(0),
		} {
			_, err := New(opt)
			require.ErrorContains(t, err, "error in option passed to New")
		}
	})

	t.Run("wallet seed gives a stable public did", func(t *testing.T) {
		seed := []byte(strings.Repeat("s", seedSize))

		a, err := New(WithWalletSeed(seed))
		require.NoError(t, err)

		b, err := New(WithWalletSeed(seed), WithStorageProvider(mem.NewProvider()))
		require.NoError(t, err)

		require.Equal(t, a.PublicDID(), b.PublicDID())
	})

	t.Run("inbound transport", func(t *testing.T) {
		in := &mockInbound{endpoint: "http://agent.example.com"}

		a, err := New(WithInboundTransport(in), WithLabel("agent"))
		require.NoError(t, err)
		require.Equal(t, "http://agent.example.com", a.Endpoint())
		require.Equal(t, "agent", a.Label())
		require.NotNil(t, in.handler)

		in.stopErr = errors.New("stop error")
		require.ErrorContains(t, a.Close(), "stop error")

		_, err = New(WithInboundTransport(&mockInbound{startErr: errors.New("start error")}))
		require.ErrorContains(t, err, "start error")
	})

	t.Run("endpoint overrides inbound", func(t *testing.T) {
		a, err := New(WithInboundTransport(&mockInbound{endpoint: "http://internal"}), WithEndpoint("https://public"))
		require.NoError(t, err)
		require.Equal(t, "https://public", a.Endpoint())
	})
}

func TestAgent_Handshake(t *testing.T) {
	net := newMemNetwork()
	alice := newMemAgent(t, net, "alice")
	bob := newMemAgent(t, net, "bob")
	ctx := context.Background()

	invitationURL, err := alice.CreateInvitationURL(ctx)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(invitationURL, "mem://alice?c_i="))

	bobKey, err := bob.AcceptInvitationURL(ctx, invitationURL)
	require.NoError(t, err)

	bobConn, err := bob.FindConnectionByOwnKey(bobKey)
	require.NoError(t, err)
	require.Equal(t, connectionstore.StateComplete, bobConn.State)
	require.Equal(t, "alice", bobConn.Peer.Label)

	aliceConn, err := alice.FindConnectionByPeerKey(bobKey)
	require.NoError(t, err)
	require.Equal(t, connectionstore.StateComplete, aliceConn.State)
	require.Equal(t, "bob", aliceConn.Peer.Label)

	require.Equal(t, aliceConn.OwnVerKey, bobConn.Peer.VerKey)
	require.Equal(t, aliceConn.OwnDID, bobConn.Peer.DID)
	require.Equal(t, bobConn.OwnDID, aliceConn.Peer.DID)
	require.Equal(t, "mem://bob", aliceConn.Peer.Service.ServiceEndpoint)
	require.Equal(t, "mem://alice", bobConn.Peer.Service.ServiceEndpoint)

	conns, err := alice.GetConnections()
	require.NoError(t, err)
	require.Len(t, conns, 1)

	t.Run("basic message both ways", func(t *testing.T) {
		require.NoError(t, alice.SendMessageToConnection(ctx, aliceConn.OwnVerKey, "hello, world"))
		require.NoError(t, bob.SendMessageToConnection(ctx, bobKey, "hi alice"))

		bobMessages, err := bob.Inbox(bobKey)
		require.NoError(t, err)
		require.Len(t, bobMessages, 1)
		require.Equal(t, service.BasicMessageMsgType, bobMessages[0].Type)

		msg := &basicmessage.Message{}
		require.NoError(t, json.Unmarshal(bobMessages[0].Payload, msg))
		require.Equal(t, "hello, world", msg.Content)

		aliceMessages, err := alice.Inbox(aliceConn.OwnVerKey)
		require.NoError(t, err)
		require.Len(t, aliceMessages, 1)
	})

	t.Run("unknown connection", func(t *testing.T) {
		require.ErrorIs(t, alice.SendMessageToConnection(ctx, "missing", "x"), service.ErrConnectionNotFound)

		_, err := alice.FindConnectionByPeerKey("missing")
		require.ErrorIs(t, err, service.ErrConnectionNotFound)
	})
}

func TestAgent_ReceiveMessage(t *testing.T) {
	net := newMemNetwork()
	alice := newMemAgent(t, net, "alice")
	bob := newMemAgent(t, net, "bob")
	ctx := context.Background()

	t.Run("plaintext invitation", func(t *testing.T) {
		_, inv, err := alice.connections.CreateInvitation(ctx)
		require.NoError(t, err)

		raw, err := json.Marshal(inv)
		require.NoError(t, err)

		require.NoError(t, bob.ReceiveMessage(ctx, raw))

		conns, err := bob.GetConnections()
		require.NoError(t, err)
		require.Len(t, conns, 1)
		require.Equal(t, connectionstore.StateComplete, conns[0].State)
	})

	t.Run("garbage", func(t *testing.T) {
		require.ErrorIs(t, alice.ReceiveMessage(ctx, []byte("not json")), ErrInvalidMessage)
		require.ErrorIs(t, alice.ReceiveMessage(ctx, []byte(`{"content":"no type"}`)), ErrInvalidMessage)
	})

	t.Run("envelope for someone else", func(t *testing.T) {
		carol := newMemAgent(t, net, "carol")

		env, err := carol.wallet.Pack(ctx, []byte(`{"@type":"x"}`), []string{carol.PublicDID().VerKey}, "")
		require.NoError(t, err)

		require.ErrorIs(t, alice.ReceiveMessage(ctx, env), ErrInvalidMessage)
	})

	t.Run("unsupported type", func(t *testing.T) {
		err := alice.ReceiveMessage(ctx, []byte(`{"@type":"did:sov:BzCbsNYhMrjHiqZDTUASHg;spec/unknown/1.0/x"}`))
		require.ErrorIs(t, err, service.ErrUnsupportedMessageType)
	})

	t.Run("reply send failure", func(t *testing.T) {
		_, inv, err := alice.connections.CreateInvitation(ctx)
		require.NoError(t, err)

		inv.ServiceEndpoint = "mem://nobody"
		raw, err := json.Marshal(inv)
		require.NoError(t, err)

		require.ErrorContains(t, bob.ReceiveMessage(ctx, raw), "send reply")
	})

	t.Run("accept invitation errors", func(t *testing.T) {
		_, err := bob.AcceptInvitationURL(ctx, "mem://alice?c_i=!!!")
		require.ErrorIs(t, err, service.ErrInvalidInvitation)

		_, inv, err := alice.connections.CreateInvitation(ctx)
		require.NoError(t, err)

		inv.ServiceEndpoint = "ftp://alice"
		raw, err := json.Marshal(inv)
		require.NoError(t, err)

		_, err = bob.AcceptInvitationURL(ctx, "mem://alice?c_i="+encodeB64(raw))
		require.ErrorIs(t, err, service.ErrMissingEndpoint)
	})
}

func TestAgent_Mediated(t *testing.T) {
	net := newMemNetwork()
	seed := []byte(strings.Repeat("m", seedSize))
	mediator := newMemAgent(t, net, "mediator", WithInboxDelivery(), WithWalletSeed(seed),
		WithInboxMode(connectionstore.InboxTakeOne))

	alice, err := New(
		WithLabel("alice"),
		WithOutboundTransports(net.transport("alice")),
		WithInvitationBaseURL("https://alice.example.com/invite"),
		WithPollInterval(time.Millisecond),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, alice.Close())
	})

	bob := newMemAgent(t, net, "bob")

	pump(t, mediator, alice)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mediatorInvitation, err := mediator.CreateInvitationURL(ctx)
	require.NoError(t, err)

	aliceAtMediator, err := alice.EstablishInbound(ctx, mediator.PublicDID().VerKey, mediatorInvitation)
	require.NoError(t, err)
	require.Equal(t, aliceAtMediator, alice.consumer.InboundConnection())

	mediatorConn, err := mediator.FindConnectionByPeerKey(aliceAtMediator)
	require.NoError(t, err)
	requireState(t, mediator, mediatorConn.OwnVerKey, connectionstore.StateComplete)
	require.Equal(t, inbox.Endpoint, mediatorConn.Peer.Service.ServiceEndpoint)

	invitationURL, err := alice.CreateInvitationURL(ctx)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(invitationURL, "https://alice.example.com/invite?c_i="))

	routes, err := mediator.GetRoutes()
	require.NoError(t, err)
	require.Len(t, routes, 1)
	require.Equal(t, mediatorConn.OwnVerKey, routes[0].ConnectionKey)

	aliceKey := routes[0].RecipientKey

	bobKey, err := bob.AcceptInvitationURL(ctx, invitationURL)
	require.NoError(t, err)

	requireState(t, bob, bobKey, connectionstore.StateComplete)
	requireState(t, alice, aliceKey, connectionstore.StateComplete)

	bobConn, err := bob.FindConnectionByOwnKey(bobKey)
	require.NoError(t, err)
	require.Equal(t, "mem://mediator", bobConn.Peer.Service.ServiceEndpoint)
	require.Equal(t, []string{mediator.PublicDID().VerKey}, bobConn.Peer.Service.RoutingKeys)

	t.Run("request wraps exactly one forward layer", func(t *testing.T) {
		sent := net.sentBy("bob", "mem://mediator")
		require.NotEmpty(t, sent)

		outer, err := mediator.wallet.Unpack(ctx, sent[0])
		require.NoError(t, err)
		require.Equal(t, mediator.PublicDID().VerKey, outer.ToVerKey)

		fwd := &model.Forward{}
		require.NoError(t, json.Unmarshal(outer.Message, fwd))
		require.Equal(t, service.ForwardMsgType, fwd.Type)
		require.Equal(t, aliceKey, fwd.To)

		inner, err := alice.wallet.Unpack(ctx, fwd.Msg)
		require.NoError(t, err)

		msg, err := service.ParseDIDCommMsgMap(inner.Message)
		require.NoError(t, err)
		require.Equal(t, service.RequestMsgType, msg.Type())
	})

	t.Run("messages through the mediator", func(t *testing.T) {
		require.NoError(t, bob.SendMessageToConnection(ctx, bobKey, "via mediator"))

		require.Eventually(t, func() bool {
			msgs, err := alice.Inbox(aliceKey)

			return err == nil && len(msgs) == 1
		}, 5*time.Second, 5*time.Millisecond)

		require.NoError(t, alice.SendMessageToConnection(ctx, aliceKey, "direct reply"))

		msgs, err := bob.Inbox(bobKey)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
	})

	t.Run("establish inbound errors", func(t *testing.T) {
		_, err := alice.EstablishInbound(ctx, "", "https://mediator?c_i=%%%")
		require.Error(t, err)

		cancelled, cancelNow := context.WithCancel(context.Background())
		cancelNow()

		_, err = bob.EstablishInbound(cancelled, "", invitationURLTo(t, "mem://nobody", alice))
		require.Error(t, err)
	})
}

func invitationURLTo(t *testing.T, endpoint string, a *Agent) string {
	t.Helper()

	_, inv, err := a.connections.CreateInvitation(context.Background())
	require.NoError(t, err)

	inv.ServiceEndpoint = endpoint

	raw, err := json.Marshal(inv)
	require.NoError(t, err)

	return "https://agent?c_i=" + encodeB64(raw)
}
