/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package outbound

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/model"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/transport"
	mocktransport "github.com/hyperledger/aries-didcomm-agent/pkg/internal/gomocks/didcomm/transport"
	mockprovider "github.com/hyperledger/aries-didcomm-agent/pkg/internal/mock/provider"
	mockwallet "github.com/hyperledger/aries-didcomm-agent/pkg/internal/mock/wallet"
	"github.com/hyperledger/aries-didcomm-agent/pkg/wallet"
)

const payload = `{"@id":"1","@type":"did:sov:BzCbsNYhMrjHiqZDTUASHg;spec/basicmessage/1.0/message"}`

type party struct {
	wallet *wallet.BaseWallet
	verKey string
}

func newParty(t *testing.T) *party {
	t.Helper()

	w, err := wallet.New(mem.NewProvider())
	require.NoError(t, err)

	info, err := w.CreateDID(context.Background())
	require.NoError(t, err)

	return &party{wallet: w, verKey: info.VerKey}
}

// capture returns a transport accepting endpoint and the channel receiving what it sends.
func capture(ctrl *gomock.Controller, endpoint string) (*mocktransport.MockOutboundTransport, chan []byte) {
	sent := make(chan []byte, 1)

	tr := mocktransport.NewMockOutboundTransport(ctrl)
	tr.EXPECT().Accept(gomock.Any()).DoAndReturn(func(e string) bool { return e == endpoint }).AnyTimes()
	tr.EXPECT().Send(gomock.Any(), gomock.Any(), endpoint).DoAndReturn(
		func(_ context.Context, data []byte, _ string) error {
			sent <- data
			return nil
		}).AnyTimes()

	return tr, sent
}

func newDispatcher(t *testing.T, w wallet.Wallet, transports ...transport.OutboundTransport) *Dispatcher {
	t.Helper()

	o, err := NewOutbound(&mockprovider.Provider{WalletValue: w, OutboundTransportsValue: transports})
	require.NoError(t, err)

	return o
}

// unwrap opens one forward layer with w and returns the forward message.
func unwrap(t *testing.T, w *party, envelope []byte, sender string) *model.Forward {
	t.Helper()

	unpacked, err := w.wallet.Unpack(context.Background(), envelope)
	require.NoError(t, err)
	require.Equal(t, w.verKey, unpacked.ToVerKey)
	require.Equal(t, sender, unpacked.FromVerKey)

	fwd := &model.Forward{}
	require.NoError(t, json.Unmarshal(unpacked.Message, fwd))
	require.Equal(t, service.ForwardMsgType, fwd.Type)

	return fwd
}

func TestNewOutbound(t *testing.T) {
	_, err := NewOutbound(&mockprovider.Provider{})
	require.Error(t, err)
}

func TestDispatcher_Send(t *testing.T) {
	ctx := context.Background()
	alice, bob := newParty(t), newParty(t)

	t.Run("direct authcrypt", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		skipped := mocktransport.NewMockOutboundTransport(ctrl)
		skipped.EXPECT().Accept("http://bob").Return(false)

		tr, sent := capture(ctrl, "http://bob")
		o := newDispatcher(t, alice.wallet, skipped, tr)

		require.NoError(t, o.Send(ctx, &service.OutboundMessage{
			Payload:      []byte(payload),
			Destination:  &service.Destination{RecipientKeys: []string{bob.verKey}, ServiceEndpoint: "http://bob"},
			SenderVerKey: alice.verKey,
		}))

		unpacked, err := bob.wallet.Unpack(ctx, <-sent)
		require.NoError(t, err)
		require.Equal(t, payload, string(unpacked.Message))
		require.Equal(t, alice.verKey, unpacked.FromVerKey)
	})

	t.Run("anoncrypt", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		tr, sent := capture(ctrl, "http://bob")
		o := newDispatcher(t, alice.wallet, tr)

		require.NoError(t, o.Send(ctx, &service.OutboundMessage{
			Payload:     []byte(payload),
			Destination: &service.Destination{RecipientKeys: []string{bob.verKey}, ServiceEndpoint: "http://bob"},
		}))

		unpacked, err := bob.wallet.Unpack(ctx, <-sent)
		require.NoError(t, err)
		require.Empty(t, unpacked.FromVerKey)
	})

	t.Run("one forward layer per routing key", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mediator, outerMediator := newParty(t), newParty(t)

		tr, sent := capture(ctrl, "http://mediator")
		o := newDispatcher(t, alice.wallet, tr)

		require.NoError(t, o.Send(ctx, &service.OutboundMessage{
			Payload: []byte(payload),
			Destination: &service.Destination{
				RecipientKeys:   []string{bob.verKey},
				ServiceEndpoint: "http://mediator",
				RoutingKeys:     []string{mediator.verKey, outerMediator.verKey},
			},
			SenderVerKey: alice.verKey,
		}))

		outer := unwrap(t, outerMediator, <-sent, alice.verKey)
		require.Equal(t, bob.verKey, outer.To)

		inner := unwrap(t, mediator, outer.Msg, alice.verKey)
		require.Equal(t, bob.verKey, inner.To)

		unpacked, err := bob.wallet.Unpack(ctx, inner.Msg)
		require.NoError(t, err)
		require.Equal(t, payload, string(unpacked.Message))
		require.Equal(t, alice.verKey, unpacked.FromVerKey)
	})

	t.Run("missing endpoint", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		tr, _ := capture(ctrl, "http://bob")
		o := newDispatcher(t, alice.wallet, tr)

		err := o.Send(ctx, &service.OutboundMessage{Payload: []byte(payload)})
		require.ErrorIs(t, err, service.ErrMissingEndpoint)

		err = o.Send(ctx, &service.OutboundMessage{
			Payload:     []byte(payload),
			Destination: &service.Destination{RecipientKeys: []string{bob.verKey}},
		})
		require.ErrorIs(t, err, service.ErrMissingEndpoint)

		err = o.Send(ctx, &service.OutboundMessage{
			Payload:     []byte(payload),
			Destination: &service.Destination{RecipientKeys: []string{bob.verKey}, ServiceEndpoint: "ftp://bob"},
		})
		require.ErrorIs(t, err, service.ErrMissingEndpoint)

		err = o.Send(ctx, &service.OutboundMessage{
			Payload:     []byte(payload),
			Destination: &service.Destination{ServiceEndpoint: "http://bob"},
		})
		require.ErrorContains(t, err, "no recipient keys")
	})

	t.Run("pack error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		tr, _ := capture(ctrl, "http://bob")
		o := newDispatcher(t, &mockwallet.Wallet{Wallet: alice.wallet, PackErr: errors.New("pack error")}, tr)

		err := o.Send(ctx, &service.OutboundMessage{
			Payload:     []byte(payload),
			Destination: &service.Destination{RecipientKeys: []string{bob.verKey}, ServiceEndpoint: "http://bob"},
		})
		require.ErrorContains(t, err, "pack error")
	})

	t.Run("send error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		tr := mocktransport.NewMockOutboundTransport(ctrl)
		tr.EXPECT().Accept("http://bob").Return(true)
		tr.EXPECT().Send(gomock.Any(), gomock.Any(), "http://bob").Return(errors.New("send error"))

		o := newDispatcher(t, alice.wallet, tr)

		err := o.Send(ctx, &service.OutboundMessage{
			Payload:     []byte(payload),
			Destination: &service.Destination{RecipientKeys: []string{bob.verKey}, ServiceEndpoint: "http://bob"},
		})
		require.ErrorContains(t, err, "send error")
	})
}
