/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"errors"
	"time"

	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/transport"
	connectionstore "github.com/hyperledger/aries-didcomm-agent/pkg/store/connection"
)

// Option configures the agent.
type Option func(opts *Agent) error

// WithStorageProvider sets the storage provider for keys, connections and routes.
func WithStorageProvider(prov storage.Provider) Option {
	return func(opts *Agent) error {
		if prov == nil {
			return errors.New("storage provider is nil")
		}

		opts.storeProvider = prov

		return nil
	}
}

// WithInboundTransport sets the inbound transport. Its endpoint is published in new connections
// unless WithEndpoint overrides it.
func WithInboundTransport(inbound transport.InboundTransport) Option {
	return func(opts *Agent) error {
		opts.inboundTransport = inbound

		return nil
	}
}

// WithOutboundTransports adds outbound transports, tried in order.
func WithOutboundTransports(outbound ...transport.OutboundTransport) Option {
	return func(opts *Agent) error {
		opts.outboundTransports = append(opts.outboundTransports, outbound...)

		return nil
	}
}

// WithInboxDelivery queues messages for peers that advertise the inbox endpoint.
func WithInboxDelivery() Option {
	return func(opts *Agent) error {
		opts.inboxDelivery = true

		return nil
	}
}

// WithLabel sets the label sent in invitations and requests.
func WithLabel(label string) Option {
	return func(opts *Agent) error {
		opts.label = label

		return nil
	}
}

// WithEndpoint sets the endpoint published to peers.
func WithEndpoint(endpoint string) Option {
	return func(opts *Agent) error {
		opts.endpoint = endpoint

		return nil
	}
}

// WithInvitationBaseURL sets the URL invitations are appended to. It defaults to the endpoint.
func WithInvitationBaseURL(baseURL string) Option {
	return func(opts *Agent) error {
		opts.invitationBaseURL = baseURL

		return nil
	}
}

// WithInboxMode selects how connection inboxes are read.
func WithInboxMode(mode connectionstore.InboxMode) Option {
	return func(opts *Agent) error {
		m, err := connectionstore.ParseInboxMode(string(mode))
		if err != nil {
			return err
		}

		opts.inboxMode = m

		return nil
	}
}

// WithWalletSeed derives the public DID of the agent from a 32 byte seed.
func WithWalletSeed(seed []byte) Option {
	return func(opts *Agent) error {
		if len(seed) != seedSize {
			return errors.New("wallet seed must be 32 bytes")
		}

		opts.walletSeed = seed

		return nil
	}
}

// WithPollInterval sets the initial delay between inbox polls of a mediator.
func WithPollInterval(d time.Duration) Option {
	return func(opts *Agent) error {
		if d <= 0 {
			return errors.New("poll interval must be positive")
		}

		opts.pollInterval = d

		return nil
	}
}
