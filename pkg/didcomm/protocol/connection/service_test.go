/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/btcsuite/btcutil/base58"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/model"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/service"
	mockprovider "github.com/hyperledger/aries-didcomm-agent/pkg/internal/mock/provider"
	mockwallet "github.com/hyperledger/aries-didcomm-agent/pkg/internal/mock/wallet"
	connectionstore "github.com/hyperledger/aries-didcomm-agent/pkg/store/connection"
	"github.com/hyperledger/aries-didcomm-agent/pkg/wallet"
)

type testAgent struct {
	svc    *Service
	store  *connectionstore.Store
	wallet *mockwallet.Wallet
}

func newTestAgent(t *testing.T, endpoint string, opts ...Option) *testAgent {
	t.Helper()

	p := mem.NewProvider()

	w, err := wallet.New(p)
	require.NoError(t, err)

	store, err := connectionstore.New(p)
	require.NoError(t, err)

	mw := &mockwallet.Wallet{Wallet: w}

	svc, err := New(&mockprovider.Provider{
		WalletValue:          mw,
		ConnectionStoreValue: store,
		ServiceEndpointValue: endpoint,
		LabelValue:           "agent at " + endpoint,
	}, opts...)
	require.NoError(t, err)

	return &testAgent{svc: svc, store: store, wallet: mw}
}

// deliver turns an outbound message into the inbound message its recipient would unpack.
func deliver(t *testing.T, out *service.OutboundMessage) *service.InboundMessage {
	t.Helper()

	require.NotNil(t, out)
	require.NotEmpty(t, out.Destination.RecipientKeys)

	msg, err := service.NewInboundMessage(out.Payload, out.SenderVerKey, out.Destination.RecipientKeys[0])
	require.NoError(t, err)

	return msg
}

func TestNew(t *testing.T) {
	_, err := New(&mockprovider.Provider{})
	require.Error(t, err)
}

func TestService_Handshake(t *testing.T) {
	ctx := context.Background()
	alice := newTestAgent(t, "http://alice")
	bob := newTestAgent(t, "http://bob")

	invited, inv, err := alice.svc.CreateInvitation(ctx)
	require.NoError(t, err)
	require.Equal(t, connectionstore.StateInvited, invited.State())
	require.Equal(t, service.InvitationMsgType, inv.Type)
	require.Equal(t, []string{invited.OwnVerKey}, inv.RecipientKeys)
	require.Equal(t, "http://alice", inv.ServiceEndpoint)
	require.Empty(t, inv.RoutingKeys)

	request, err := bob.svc.AcceptInvitation(ctx, inv)
	require.NoError(t, err)
	require.Empty(t, request.SenderVerKey)
	require.Equal(t, inv.RecipientKeys, request.Destination.RecipientKeys)
	require.Equal(t, "http://alice", request.Destination.ServiceEndpoint)

	bobConn, err := bob.store.Get(request.ConnectionKey)
	require.NoError(t, err)
	require.Equal(t, connectionstore.StateRequested, bobConn.State())

	response, err := alice.svc.AcceptRequest(ctx, deliver(t, request))
	require.NoError(t, err)
	require.Equal(t, invited.OwnVerKey, response.SenderVerKey)
	require.Equal(t, []string{request.ConnectionKey}, response.Destination.RecipientKeys)
	require.Equal(t, "http://bob", response.Destination.ServiceEndpoint)

	respMsg := deliver(t, response)
	require.NotContains(t, respMsg.Message, "connection")
	require.Contains(t, respMsg.Message, "connection~sig")

	reqMsg := deliver(t, request)
	require.Equal(t, reqMsg.Message.ID(), respMsg.Message.ThreadID())

	ack, err := bob.svc.AcceptResponse(ctx, respMsg)
	require.NoError(t, err)
	require.Equal(t, []string{invited.OwnVerKey}, ack.Destination.RecipientKeys)
	require.Equal(t, request.ConnectionKey, ack.SenderVerKey)

	ackMsg := deliver(t, ack)
	require.Equal(t, service.AckMsgType, ackMsg.Message.Type())
	require.Equal(t, respMsg.Message.ID(), ackMsg.Message.ThreadID())

	aliceConn, err := alice.store.Get(invited.OwnVerKey)
	require.NoError(t, err)
	require.Equal(t, connectionstore.StateResponded, aliceConn.State())

	for i := 0; i < 2; i++ {
		require.NoError(t, alice.svc.AcceptAck(ctx, ackMsg))

		aliceConn, err = alice.store.Get(invited.OwnVerKey)
		require.NoError(t, err)
		require.Equal(t, connectionstore.StateComplete, aliceConn.State())
	}

	bobConn, err = bob.store.Get(request.ConnectionKey)
	require.NoError(t, err)
	require.Equal(t, connectionstore.StateComplete, bobConn.State())

	alicePeer, ok := connectionstore.PeerOf(aliceConn)
	require.True(t, ok)
	bobPeer, ok := connectionstore.PeerOf(bobConn)
	require.True(t, ok)

	require.Equal(t, bobConn.Own().OwnVerKey, alicePeer.VerKey)
	require.Equal(t, bobConn.Own().OwnDID, alicePeer.DID)
	require.Equal(t, aliceConn.Own().OwnVerKey, bobPeer.VerKey)
	require.Equal(t, aliceConn.Own().OwnDID, bobPeer.DID)
	require.Equal(t, "agent at http://bob", alicePeer.Label)
	require.Equal(t, "agent at http://alice", bobPeer.Label)
}

// handshakeToResponse runs the handshake up to the response Bob has to accept.
func handshakeToResponse(t *testing.T, alice, bob *testAgent) (*service.OutboundMessage, *service.InboundMessage) {
	t.Helper()

	ctx := context.Background()

	_, inv, err := alice.svc.CreateInvitation(ctx)
	require.NoError(t, err)

	request, err := bob.svc.AcceptInvitation(ctx, inv)
	require.NoError(t, err)

	response, err := alice.svc.AcceptRequest(ctx, deliver(t, request))
	require.NoError(t, err)

	return request, deliver(t, response)
}

func TestService_AcceptResponse_Signature(t *testing.T) {
	ctx := context.Background()

	t.Run("tampered signature is rejected", func(t *testing.T) {
		alice, bob := newTestAgent(t, "http://alice"), newTestAgent(t, "http://bob")
		request, respMsg := handshakeToResponse(t, alice, bob)

		sig := respMsg.Message["connection~sig"].(map[string]interface{})
		raw, err := base64.URLEncoding.DecodeString(sig["signature"].(string))
		require.NoError(t, err)

		raw[0] ^= 0x01
		sig["signature"] = base64.URLEncoding.EncodeToString(raw)

		_, err = bob.svc.AcceptResponse(ctx, respMsg)
		require.ErrorIs(t, err, service.ErrSignatureInvalid)

		c, err := bob.store.Get(request.ConnectionKey)
		require.NoError(t, err)
		require.Equal(t, connectionstore.StateRequested, c.State())
	})

	t.Run("tampered signed data is rejected", func(t *testing.T) {
		alice, bob := newTestAgent(t, "http://alice"), newTestAgent(t, "http://bob")
		_, respMsg := handshakeToResponse(t, alice, bob)

		sig := respMsg.Message["connection~sig"].(map[string]interface{})
		raw, err := base64.URLEncoding.DecodeString(sig["sig_data"].(string))
		require.NoError(t, err)

		sig["sig_data"] = base64.URLEncoding.EncodeToString(append(raw, ' '))

		_, err = bob.svc.AcceptResponse(ctx, respMsg)
		require.ErrorIs(t, err, service.ErrSignatureInvalid)
	})

	t.Run("response signed by a key that was not invited", func(t *testing.T) {
		alice, bob, carol := newTestAgent(t, "http://alice"), newTestAgent(t, "http://bob"), newTestAgent(t, "http://carol")

		_, aliceInv, err := alice.svc.CreateInvitation(ctx)
		require.NoError(t, err)

		request, err := bob.svc.AcceptInvitation(ctx, aliceInv)
		require.NoError(t, err)

		carolInvited, _, err := carol.svc.CreateInvitation(ctx)
		require.NoError(t, err)

		reqMsg, err := service.NewInboundMessage(request.Payload, "", carolInvited.OwnVerKey)
		require.NoError(t, err)

		response, err := carol.svc.AcceptRequest(ctx, reqMsg)
		require.NoError(t, err)

		_, err = bob.svc.AcceptResponse(ctx, deliver(t, response))
		require.ErrorIs(t, err, service.ErrSignatureInvalid)

		c, err := bob.store.Get(request.ConnectionKey)
		require.NoError(t, err)
		require.Equal(t, connectionstore.StateRequested, c.State())
	})

	t.Run("wallet verify error", func(t *testing.T) {
		alice, bob := newTestAgent(t, "http://alice"), newTestAgent(t, "http://bob")
		_, respMsg := handshakeToResponse(t, alice, bob)

		bob.wallet.VerifyErr = errors.New("verify error")

		_, err := bob.svc.AcceptResponse(ctx, respMsg)
		require.ErrorIs(t, err, service.ErrSignatureInvalid)
	})

	t.Run("missing signature", func(t *testing.T) {
		alice, bob := newTestAgent(t, "http://alice"), newTestAgent(t, "http://bob")
		_, respMsg := handshakeToResponse(t, alice, bob)

		delete(respMsg.Message, "connection~sig")

		_, err := bob.svc.AcceptResponse(ctx, respMsg)
		require.ErrorIs(t, err, service.ErrMalformedResponse)
	})

	t.Run("undecodable signature", func(t *testing.T) {
		alice, bob := newTestAgent(t, "http://alice"), newTestAgent(t, "http://bob")
		_, respMsg := handshakeToResponse(t, alice, bob)

		respMsg.Message["connection~sig"].(map[string]interface{})["sig_data"] = "!!!"

		_, err := bob.svc.AcceptResponse(ctx, respMsg)
		require.ErrorIs(t, err, service.ErrMalformedResponse)
	})

	t.Run("unknown connection", func(t *testing.T) {
		alice, bob := newTestAgent(t, "http://alice"), newTestAgent(t, "http://bob")
		_, respMsg := handshakeToResponse(t, alice, bob)

		respMsg.RecipientVerKey = "unknown"

		_, err := bob.svc.AcceptResponse(ctx, respMsg)
		require.ErrorIs(t, err, service.ErrConnectionNotFound)
	})
}

func TestService_AcceptRequest_Errors(t *testing.T) {
	ctx := context.Background()
	alice := newTestAgent(t, "http://alice")

	invited, _, err := alice.svc.CreateInvitation(ctx)
	require.NoError(t, err)

	newRequest := func(t *testing.T, body string, recipient string) *service.InboundMessage {
		msg, err := service.NewInboundMessage([]byte(body), "", recipient)
		require.NoError(t, err)

		return msg
	}

	t.Run("unknown connection", func(t *testing.T) {
		_, err := alice.svc.AcceptRequest(ctx, newRequest(t, `{"@type":"`+service.RequestMsgType+`"}`, "unknown"))
		require.ErrorIs(t, err, service.ErrConnectionNotFound)
	})

	t.Run("missing connection", func(t *testing.T) {
		_, err := alice.svc.AcceptRequest(ctx, newRequest(t, `{"@type":"`+service.RequestMsgType+`"}`, invited.OwnVerKey))
		require.ErrorIs(t, err, service.ErrMalformedRequest)
	})

	t.Run("did doc without service", func(t *testing.T) {
		body := `{"@type":"` + service.RequestMsgType + `","connection":{"did":"did:sov:x","did_doc":{"@context":"https://w3id.org/did/v1"}}}`

		_, err := alice.svc.AcceptRequest(ctx, newRequest(t, body, invited.OwnVerKey))
		require.ErrorIs(t, err, service.ErrMalformedRequest)
	})

	t.Run("request replay after response", func(t *testing.T) {
		bob := newTestAgent(t, "http://bob")

		_, inv, err := alice.svc.CreateInvitation(ctx)
		require.NoError(t, err)

		request, err := bob.svc.AcceptInvitation(ctx, inv)
		require.NoError(t, err)

		_, err = alice.svc.AcceptRequest(ctx, deliver(t, request))
		require.NoError(t, err)

		_, err = alice.svc.AcceptRequest(ctx, deliver(t, request))
		require.ErrorIs(t, err, ErrUnexpectedState)
	})

	t.Run("sign error leaves the connection invited", func(t *testing.T) {
		carol := newTestAgent(t, "http://carol")
		bob := newTestAgent(t, "http://bob")

		carolInvited, inv, err := carol.svc.CreateInvitation(ctx)
		require.NoError(t, err)

		request, err := bob.svc.AcceptInvitation(ctx, inv)
		require.NoError(t, err)

		carol.wallet.SignErr = errors.New("sign error")

		_, err = carol.svc.AcceptRequest(ctx, deliver(t, request))
		require.ErrorContains(t, err, "sign error")

		c, err := carol.store.Get(carolInvited.OwnVerKey)
		require.NoError(t, err)
		require.Equal(t, connectionstore.StateInvited, c.State())
	})
}

func TestService_AcceptAck_Errors(t *testing.T) {
	ctx := context.Background()
	alice := newTestAgent(t, "http://alice")

	invited, _, err := alice.svc.CreateInvitation(ctx)
	require.NoError(t, err)

	ack, err := service.NewInboundMessage([]byte(`{"@type":"`+service.AckMsgType+`","status":"OK"}`), "", "unknown")
	require.NoError(t, err)

	require.ErrorIs(t, alice.svc.AcceptAck(ctx, ack), service.ErrConnectionNotFound)

	ack.RecipientVerKey = invited.OwnVerKey
	require.ErrorIs(t, alice.svc.AcceptAck(ctx, ack), ErrUnexpectedState)
}

func TestService_AcceptInvitation(t *testing.T) {
	ctx := context.Background()
	bob := newTestAgent(t, "http://bob")

	t.Run("invalid invitations", func(t *testing.T) {
		for _, inv := range []*model.Invitation{
			nil,
			{RecipientKeys: []string{"key"}},
			{ServiceEndpoint: "http://alice"},
			{ServiceEndpoint: "http://alice", RecipientKeys: []string{"not a key"}},
		} {
			_, err := bob.svc.AcceptInvitation(ctx, inv)
			require.ErrorIs(t, err, service.ErrInvalidInvitation)
		}

		conns, err := bob.store.List()
		require.NoError(t, err)
		require.Empty(t, conns)
	})

	t.Run("did:key recipient keys", func(t *testing.T) {
		alice := newTestAgent(t, "http://alice")

		_, inv, err := alice.svc.CreateInvitation(ctx)
		require.NoError(t, err)

		pub := base58.Decode(inv.RecipientKeys[0])
		didKey := "did:key:z" + base58.Encode(append([]byte{0xed, 0x01}, pub...))

		keyInv := *inv
		keyInv.RecipientKeys = []string{didKey}

		out, err := bob.svc.AcceptInvitation(ctx, &keyInv)
		require.NoError(t, err)
		require.Equal(t, inv.RecipientKeys, out.Destination.RecipientKeys)
	})

	t.Run("create did error", func(t *testing.T) {
		alice := newTestAgent(t, "http://alice")

		_, inv, err := alice.svc.CreateInvitation(ctx)
		require.NoError(t, err)

		carol := newTestAgent(t, "http://carol")
		carol.wallet.CreateDIDErr = errors.New("did error")

		_, err = carol.svc.AcceptInvitation(ctx, inv)
		require.ErrorContains(t, err, "did error")

		_, _, err = carol.svc.CreateInvitation(ctx)
		require.ErrorContains(t, err, "did error")
	})

	t.Run("no endpoint", func(t *testing.T) {
		_, _, err := newTestAgent(t, "").svc.CreateInvitation(ctx)
		require.ErrorIs(t, err, service.ErrMissingEndpoint)
	})
}

func TestService_HandleInbound(t *testing.T) {
	ctx := context.Background()
	alice, bob := newTestAgent(t, "http://alice"), newTestAgent(t, "http://bob")

	require.ElementsMatch(t, []service.MsgKind{
		service.KindInvitation, service.KindRequest, service.KindResponse, service.KindAck,
	}, alice.svc.Kinds())

	_, inv, err := alice.svc.CreateInvitation(ctx)
	require.NoError(t, err)

	raw, err := json.Marshal(inv)
	require.NoError(t, err)

	invMsg, err := service.NewInboundMessage(raw, "", "")
	require.NoError(t, err)

	request, err := bob.svc.HandleInbound(ctx, invMsg)
	require.NoError(t, err)

	response, err := alice.svc.HandleInbound(ctx, deliver(t, request))
	require.NoError(t, err)

	ack, err := bob.svc.HandleInbound(ctx, deliver(t, response))
	require.NoError(t, err)

	out, err := alice.svc.HandleInbound(ctx, deliver(t, ack))
	require.NoError(t, err)
	require.Nil(t, out)

	unknown, err := service.NewInboundMessage([]byte(`{"@type":"other"}`), "", "")
	require.NoError(t, err)

	_, err = alice.svc.HandleInbound(ctx, unknown)
	require.ErrorIs(t, err, service.ErrUnsupportedMessageType)
}

type mockRouter struct {
	conf    *RouterConfig
	confErr error
	addErr  error
	keys    []string
}

func (r *mockRouter) Config() (*RouterConfig, error) {
	return r.conf, r.confErr
}

func (r *mockRouter) AddKey(_ context.Context, verKey string) error {
	if r.addErr != nil {
		return r.addErr
	}

	r.keys = append(r.keys, verKey)

	return nil
}

func TestService_Router(t *testing.T) {
	ctx := context.Background()

	t.Run("mediated invitation", func(t *testing.T) {
		router := &mockRouter{conf: &RouterConfig{Endpoint: "http://mediator", RoutingKeys: []string{"mediatorKey"}}}
		alice := newTestAgent(t, "http://alice", WithRouter(router))

		invited, inv, err := alice.svc.CreateInvitation(ctx)
		require.NoError(t, err)
		require.Equal(t, "http://mediator", inv.ServiceEndpoint)
		require.Equal(t, []string{"mediatorKey"}, inv.RoutingKeys)
		require.Equal(t, []string{invited.OwnVerKey}, router.keys)
		require.Equal(t, "http://mediator", invited.DIDDoc.Service[0].ServiceEndpoint)
		require.Equal(t, []string{"mediatorKey"}, invited.DIDDoc.Service[0].RoutingKeys)
	})

	t.Run("no mediator in use", func(t *testing.T) {
		router := &mockRouter{}
		alice := newTestAgent(t, "http://alice", WithRouter(router))

		_, inv, err := alice.svc.CreateInvitation(ctx)
		require.NoError(t, err)
		require.Equal(t, "http://alice", inv.ServiceEndpoint)
		require.Empty(t, router.keys)
	})

	t.Run("router errors", func(t *testing.T) {
		alice := newTestAgent(t, "http://alice", WithRouter(&mockRouter{confErr: errors.New("config error")}))
		_, _, err := alice.svc.CreateInvitation(ctx)
		require.ErrorContains(t, err, "config error")

		alice = newTestAgent(t, "http://alice", WithRouter(&mockRouter{
			conf:   &RouterConfig{Endpoint: "http://mediator", RoutingKeys: []string{"k"}},
			addErr: errors.New("add error"),
		}))
		_, _, err = alice.svc.CreateInvitation(ctx)
		require.ErrorContains(t, err, "add error")

		conns, err := alice.store.List()
		require.NoError(t, err)
		require.Empty(t, conns)
	})
}

func TestInvitationURL(t *testing.T) {
	inv := &model.Invitation{
		Type:            service.InvitationMsgType,
		ID:              "12345678900987654321",
		Label:           "Alice",
		RecipientKeys:   []string{"8HH5gYEeNc3z7PYXmd54d4x6qAfCNrqQqEB3nS7Zfu7K"},
		ServiceEndpoint: "https://example.com/endpoint",
		RoutingKeys:     []string{"8HH5gYEeNc3z7PYXmd54d4x6qAfCNrqQqEB3nS7Zfu7K"},
	}

	u, err := EncodeInvitationURL("https://example.com/ssi", inv)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(u, "https://example.com/ssi?c_i="))

	decoded, err := DecodeInvitationURL(u)
	require.NoError(t, err)
	require.Equal(t, inv, decoded)

	t.Run("standard base64 with raw plus signs", func(t *testing.T) {
		var encoded, label string

		for i := 0; i < 3 && !strings.Contains(encoded, "+"); i++ {
			label = strings.Repeat("a", i) + "~~~~~~"

			raw, err := json.Marshal(&model.Invitation{Label: label, ServiceEndpoint: "http://x"})
			require.NoError(t, err)

			encoded = base64.StdEncoding.EncodeToString(raw)
		}

		require.Contains(t, encoded, "+")

		decoded, err := DecodeInvitationURL("https://example.com/ssi?c_i=" + encoded)
		require.NoError(t, err)
		require.Equal(t, label, decoded.Label)
	})

	t.Run("errors", func(t *testing.T) {
		for _, bad := range []string{
			"https://example.com/ssi",
			"https://example.com/ssi?c_i=!!!",
			"https://example.com/ssi?c_i=" + base64.URLEncoding.EncodeToString([]byte("not json")),
			"://bad",
		} {
			_, err := DecodeInvitationURL(bad)
			require.ErrorIs(t, err, service.ErrInvalidInvitation, bad)
		}

		_, err := EncodeInvitationURL("://bad", inv)
		require.Error(t, err)
	})
}
