/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package agent is the composition root of a DIDComm agent: it wires the wallet, the
// connection store, the protocol services and the transports, and exposes the agent
// operations.
package agent

import (
	stdcontext "context"
	"fmt"
	"sync"
	"time"

	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/dispatcher/outbound"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/protocol/basicmessage"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/protocol/connection"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/protocol/route"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/transport"
	arieshttp "github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/transport/http"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/transport/inbox"
	"github.com/hyperledger/aries-didcomm-agent/pkg/framework/context"
	connectionstore "github.com/hyperledger/aries-didcomm-agent/pkg/store/connection"
	"github.com/hyperledger/aries-didcomm-agent/pkg/wallet"
)

const (
	logComponent = "agent"
	seedSize     = 32

	defaultPollInterval = time.Second
)

var logger = log.New("aries-framework/agent")

// Agent is a DIDComm agent.
type Agent struct {
	storeProvider      storage.Provider
	inboundTransport   transport.InboundTransport
	outboundTransports []transport.OutboundTransport
	inboxDelivery      bool
	label              string
	endpoint           string
	invitationBaseURL  string
	inboxMode          connectionstore.InboxMode
	walletSeed         []byte
	pollInterval       time.Duration

	wallet      *wallet.BaseWallet
	publicDID   *wallet.DIDInfo
	store       *connectionstore.Store
	connections *connection.Service
	routes      *route.Service
	consumer    *route.Consumer
	messages    *basicmessage.Service
	dispatcher  *dispatcher.Dispatcher
	sender      *outbound.Dispatcher

	pollMu  sync.Mutex
	pollers map[string]stdcontext.CancelFunc
	pollWG  sync.WaitGroup
}

// New creates an agent from opts and starts its inbound transport, if any.
func New(opts ...Option) (*Agent, error) {
	a := &Agent{
		inboxMode:    connectionstore.InboxKeepAll,
		pollInterval: defaultPollInterval,
		pollers:      make(map[string]stdcontext.CancelFunc),
	}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, fmt.Errorf("error in option passed to New: %w", err)
		}
	}

	a.defaults()

	if err := a.initializeServices(); err != nil {
		return nil, err
	}

	if a.inboundTransport != nil {
		if err := a.inboundTransport.Start(a.ReceiveMessage); err != nil {
			return nil, fmt.Errorf("inbound transport start failed: %w", err)
		}
	}

	logger.Infof("agent %q started with endpoint %s and public verkey %s", a.label, a.endpoint, a.publicDID.VerKey)

	return a, nil
}

func (a *Agent) defaults() {
	if a.storeProvider == nil {
		a.storeProvider = mem.NewProvider()
	}

	if a.endpoint == "" {
		if a.inboundTransport != nil {
			a.endpoint = a.inboundTransport.Endpoint()
		} else {
			a.endpoint = inbox.Endpoint
		}
	}

	if a.invitationBaseURL == "" {
		a.invitationBaseURL = a.endpoint
	}

	if len(a.outboundTransports) == 0 {
		a.outboundTransports = append(a.outboundTransports, arieshttp.NewOutbound())
	}
}

func (a *Agent) initializeServices() error {
	var err error

	a.wallet, err = wallet.New(a.storeProvider)
	if err != nil {
		return err
	}

	if a.walletSeed != nil {
		a.publicDID, err = a.wallet.CreateDIDFromSeed(stdcontext.Background(), a.walletSeed)
	} else {
		a.publicDID, err = a.wallet.CreateDID(stdcontext.Background())
	}

	if err != nil {
		return fmt.Errorf("create public did: %w", err)
	}

	a.store, err = connectionstore.New(a.storeProvider, connectionstore.WithInboxMode(a.inboxMode))
	if err != nil {
		return err
	}

	transports := a.outboundTransports

	if a.inboxDelivery {
		queue, e := inbox.NewOutbound(a.store)
		if e != nil {
			return e
		}

		transports = append(transports, queue)
	}

	prov, err := context.New(
		context.WithStorageProvider(a.storeProvider),
		context.WithWallet(a.wallet),
		context.WithConnectionStore(a.store),
		context.WithServiceEndpoint(a.endpoint),
		context.WithLabel(a.label),
		context.WithOutboundTransports(transports...),
	)
	if err != nil {
		return fmt.Errorf("create context: %w", err)
	}

	return a.initializeProtocols(prov)
}

func (a *Agent) initializeProtocols(prov *context.Provider) error {
	var err error

	a.sender, err = outbound.NewOutbound(prov)
	if err != nil {
		return fmt.Errorf("create outbound dispatcher: %w", err)
	}

	a.consumer = route.NewConsumer(a.store, a.sender)

	a.connections, err = connection.New(prov, connection.WithRouter(a.consumer))
	if err != nil {
		return fmt.Errorf("create connection service: %w", err)
	}

	a.routes, err = route.New(prov)
	if err != nil {
		return fmt.Errorf("create route service: %w", err)
	}

	a.messages, err = basicmessage.New(prov)
	if err != nil {
		return fmt.Errorf("create basic message service: %w", err)
	}

	a.dispatcher, err = dispatcher.New(a.connections, a.routes, a.messages)
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}

	return nil
}

// Endpoint is the endpoint published in new connections without a mediator.
func (a *Agent) Endpoint() string {
	return a.endpoint
}

// Label is the agent label.
func (a *Agent) Label() string {
	return a.label
}

// PublicDID is the agent DID created at startup. Mediators publish its verkey as routing key.
func (a *Agent) PublicDID() *wallet.DIDInfo {
	info := *a.publicDID

	return &info
}

// Close stops polling and the inbound transport.
func (a *Agent) Close() error {
	a.pollMu.Lock()
	for key, cancel := range a.pollers {
		cancel()
		delete(a.pollers, key)
	}
	a.pollMu.Unlock()

	a.pollWG.Wait()

	if a.inboundTransport != nil {
		if err := a.inboundTransport.Stop(); err != nil {
			return fmt.Errorf("inbound transport stop failed: %w", err)
		}
	}

	return nil
}
