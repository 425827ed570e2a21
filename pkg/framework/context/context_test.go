/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package context

import (
	"errors"
	"testing"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/transport/ws"
	mockwallet "github.com/hyperledger/aries-didcomm-agent/pkg/internal/mock/wallet"
	connectionstore "github.com/hyperledger/aries-didcomm-agent/pkg/store/connection"
)

func TestNewProvider(t *testing.T) {
	t.Run("test new with default", func(t *testing.T) {
		prov, err := New()
		require.NoError(t, err)
		require.Nil(t, prov.Wallet())
		require.Nil(t, prov.ConnectionStore())
		require.Empty(t, prov.OutboundTransports())
		require.Empty(t, prov.ServiceEndpoint())
	})

	t.Run("test error return from options", func(t *testing.T) {
		_, err := New(func(opts *Provider) error {
			return errors.New("error creating the framework option")
		})
		require.Error(t, err)
	})

	t.Run("test new with every option", func(t *testing.T) {
		storeProvider := mem.NewProvider()

		store, err := connectionstore.New(storeProvider)
		require.NoError(t, err)

		w := &mockwallet.Wallet{}
		out := ws.NewOutbound()

		prov, err := New(
			WithStorageProvider(storeProvider),
			WithWallet(w),
			WithConnectionStore(store),
			WithServiceEndpoint("http://agent"),
			WithLabel("alice"),
			WithOutboundTransports(out),
		)
		require.NoError(t, err)
		require.Equal(t, storeProvider, prov.StorageProvider())
		require.Equal(t, w, prov.Wallet())
		require.Equal(t, store, prov.ConnectionStore())
		require.Equal(t, "http://agent", prov.ServiceEndpoint())
		require.Equal(t, "alice", prov.Label())
		require.Len(t, prov.OutboundTransports(), 1)
	})
}
