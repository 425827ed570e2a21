/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package context creates the Provider the protocol services and the outbound dispatcher
// are built from, and provides simple accessor methods to those same services.
package context

import (
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/transport"
	connectionstore "github.com/hyperledger/aries-didcomm-agent/pkg/store/connection"
	"github.com/hyperledger/aries-didcomm-agent/pkg/wallet"
)

// Provider supplies the agent configuration to client objects.
type Provider struct {
	storeProvider      storage.Provider
	wallet             wallet.Wallet
	connectionStore    *connectionstore.Store
	serviceEndpoint    string
	label              string
	outboundTransports []transport.OutboundTransport
}

// ProviderOption configures the framework.
type ProviderOption func(opts *Provider) error

// New instantiates a new context provider.
func New(opts ...ProviderOption) (*Provider, error) {
	ctxProvider := Provider{}

	for _, opt := range opts {
		err := opt(&ctxProvider)
		if err != nil {
			return nil, err
		}
	}

	return &ctxProvider, nil
}

// StorageProvider return a storage provider.
func (p *Provider) StorageProvider() storage.Provider {
	return p.storeProvider
}

// Wallet returns a wallet service.
func (p *Provider) Wallet() wallet.Wallet {
	return p.wallet
}

// ConnectionStore returns the connection store.
func (p *Provider) ConnectionStore() *connectionstore.Store {
	return p.connectionStore
}

// ServiceEndpoint returns the endpoint peers reach this agent on.
func (p *Provider) ServiceEndpoint() string {
	return p.serviceEndpoint
}

// Label returns the agent label used in invitations and requests.
func (p *Provider) Label() string {
	return p.label
}

// OutboundTransports returns the outbound transports.
func (p *Provider) OutboundTransports() []transport.OutboundTransport {
	return p.outboundTransports
}

// WithStorageProvider injects a storage provider into the context.
func WithStorageProvider(s storage.Provider) ProviderOption {
	return func(opts *Provider) error {
		opts.storeProvider = s
		return nil
	}
}

// WithWallet injects a wallet service into the context.
func WithWallet(w wallet.Wallet) ProviderOption {
	return func(opts *Provider) error {
		opts.wallet = w
		return nil
	}
}

// WithConnectionStore injects the connection store into the context.
func WithConnectionStore(s *connectionstore.Store) ProviderOption {
	return func(opts *Provider) error {
		opts.connectionStore = s
		return nil
	}
}

// WithServiceEndpoint injects the service endpoint into the context.
func WithServiceEndpoint(endpoint string) ProviderOption {
	return func(opts *Provider) error {
		opts.serviceEndpoint = endpoint
		return nil
	}
}

// WithLabel injects the agent label into the context.
func WithLabel(label string) ProviderOption {
	return func(opts *Provider) error {
		opts.label = label
		return nil
	}
}

// WithOutboundTransports injects the outbound transports into the context.
func WithOutboundTransports(transports ...transport.OutboundTransport) ProviderOption {
	return func(opts *Provider) error {
		opts.outboundTransports = append(opts.outboundTransports, transports...)
		return nil
	}
}
