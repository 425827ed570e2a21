/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	connectionstore "github.com/hyperledger/aries-didcomm-agent/pkg/store/connection"
)

const memScheme = "mem://"

type sentEnvelope struct {
	from     string
	endpoint string
	data     []byte
}

// memNetwork delivers envelopes between agents in the same process.
type memNetwork struct {
	mu     sync.Mutex
	agents map[string]*Agent
	sent   []sentEnvelope
}

func newMemNetwork() *memNetwork {
	return &memNetwork{agents: make(map[string]*Agent)}
}

func (n *memNetwork) register(name string, a *Agent) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.agents[memScheme+name] = a
}

func (n *memNetwork) transport(from string) *memTransport {
	return &memTransport{net: n, from: from}
}

func (n *memNetwork) sentBy(from, endpoint string) [][]byte {
	n.mu.Lock()
	defer n.mu.Unlock()

	var out [][]byte

	for _, s := range n.sent {
		if s.from == from && s.endpoint == endpoint {
			out = append(out, s.data)
		}
	}

	return out
}

type memTransport struct {
	net  *memNetwork
	from string
}

func (m *memTransport) Accept(endpoint string) bool {
	return strings.HasPrefix(endpoint, memScheme)
}

func (m *memTransport) Send(ctx context.Context, data []byte, endpoint string) error {
	m.net.mu.Lock()
	target, ok := m.net.agents[endpoint]
	m.net.sent = append(m.net.sent, sentEnvelope{from: m.from, endpoint: endpoint, data: data})
	m.net.mu.Unlock()

	if !ok {
		return errors.New("no agent at " + endpoint)
	}

	return target.ReceiveMessage(ctx, data)
}

func newMemAgent(t *testing.T, net *memNetwork, name string, opts ...Option) *Agent {
	t.Helper()

	defaults := []Option{
		WithLabel(name),
		WithEndpoint(memScheme + name),
		WithOutboundTransports(net.transport(name)),
	}

	a, err := New(append(defaults, opts...)...)
	require.NoError(t, err)

	net.register(name, a)

	t.Cleanup(func() {
		require.NoError(t, a.Close())
	})

	return a
}

// pump delivers what the mediator queued for edge until the test ends.
func pump(t *testing.T, mediator, edge *Agent) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		for ctx.Err() == nil {
			records, err := mediator.GetConnections()
			if err == nil {
				for _, rec := range records {
					if rec.Peer == nil {
						continue
					}

					msg, err := mediator.TakeMessage(rec.Peer.VerKey)
					if err == nil && msg != nil {
						_ = edge.ReceiveMessage(ctx, msg.Payload) //nolint:errcheck
					}
				}
			}

			time.Sleep(2 * time.Millisecond)
		}
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func requireState(t *testing.T, a *Agent, ownKey string, state connectionstore.State) {
	t.Helper()

	require.Eventually(t, func() bool {
		rec, err := a.FindConnectionByOwnKey(ownKey)

		return err == nil && rec.State == state
	}, 5*time.Second, 5*time.Millisecond)
}

func encodeB64(raw []byte) string {
	return base64.URLEncoding.EncodeToString(raw)
}
