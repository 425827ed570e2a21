/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package route

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"sync"
	"testing"

	"github.com/btcsuite/btcutil/base58"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/service"
	mockprovider "github.com/hyperledger/aries-didcomm-agent/pkg/internal/mock/provider"
	connectionstore "github.com/hyperledger/aries-didcomm-agent/pkg/store/connection"
)

func newVerKey(t *testing.T) string {
	t.Helper()

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	return base58.Encode(pub)
}

// didKeyOf returns the did:key form of a base58 ed25519 verkey.
func didKeyOf(t *testing.T, verKey string) string {
	t.Helper()

	pub := base58.Decode(verKey)
	require.Len(t, pub, ed25519.PublicKeySize)

	return "did:key:z" + base58.Encode(append([]byte{0xed, 0x01}, pub...))
}

func newRouteService(t *testing.T) (*Service, *connectionstore.Store) {
	t.Helper()

	p := mem.NewProvider()

	store, err := connectionstore.New(p)
	require.NoError(t, err)

	svc, err := New(&mockprovider.Provider{StorageProviderValue: p, ConnectionStoreValue: store})
	require.NoError(t, err)

	return svc, store
}

func base(ownKey string) connectionstore.Base {
	return connectionstore.Base{
		OwnDID:    "did:sov:" + ownKey,
		OwnVerKey: ownKey,
		OwnService: service.Destination{
			RecipientKeys:   []string{ownKey},
			ServiceEndpoint: "http://mediator",
		},
	}
}

func saveCompleted(t *testing.T, store *connectionstore.Store, ownKey, peerKey, endpoint string, routingKeys ...string) {
	t.Helper()

	require.NoError(t, store.Save(&connectionstore.Completed{
		Base: base(ownKey),
		Peer: connectionstore.Peer{
			DID:    "did:sov:" + peerKey,
			VerKey: peerKey,
			Service: service.Destination{
				RecipientKeys:   []string{peerKey},
				ServiceEndpoint: endpoint,
				RoutingKeys:     routingKeys,
			},
		},
	}))
}

func inbound(t *testing.T, v interface{}, sender, recipient string) *service.InboundMessage {
	t.Helper()

	raw, err := json.Marshal(v)
	require.NoError(t, err)

	msg, err := service.NewInboundMessage(raw, sender, recipient)
	require.NoError(t, err)

	return msg
}

// mockSender records sent messages.
type mockSender struct {
	mu   sync.Mutex
	sent []*service.OutboundMessage
	err  error
}

func (m *mockSender) Send(_ context.Context, msg *service.OutboundMessage) error {
	if m.err != nil {
		return m.err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, msg)

	return nil
}
