/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package provider

import (
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/transport"
	connectionstore "github.com/hyperledger/aries-didcomm-agent/pkg/store/connection"
	"github.com/hyperledger/aries-didcomm-agent/pkg/wallet"
)

// Provider mocks the provider needed for protocol service initialization.
type Provider struct {
	WalletValue             wallet.Wallet
	ConnectionStoreValue    *connectionstore.Store
	StorageProviderValue    storage.Provider
	ServiceEndpointValue    string
	LabelValue              string
	OutboundTransportsValue []transport.OutboundTransport
}

// Wallet returns the wallet.
func (p *Provider) Wallet() wallet.Wallet {
	return p.WalletValue
}

// ConnectionStore returns the connection store.
func (p *Provider) ConnectionStore() *connectionstore.Store {
	return p.ConnectionStoreValue
}

// StorageProvider returns the storage provider.
func (p *Provider) StorageProvider() storage.Provider {
	return p.StorageProviderValue
}

// ServiceEndpoint returns the inbound transport endpoint.
func (p *Provider) ServiceEndpoint() string {
	return p.ServiceEndpointValue
}

// Label returns the agent label.
func (p *Provider) Label() string {
	return p.LabelValue
}

// OutboundTransports returns the outbound transports.
func (p *Provider) OutboundTransports() []transport.OutboundTransport {
	return p.OutboundTransportsValue
}
