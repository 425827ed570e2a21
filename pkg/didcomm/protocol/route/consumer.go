/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package route

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/protocol/connection"
	"github.com/hyperledger/aries-didcomm-agent/pkg/internal/logutil"
	connectionstore "github.com/hyperledger/aries-didcomm-agent/pkg/store/connection"
)

// ErrRouterNotComplete is returned while the connection to the mediator is still being established.
var ErrRouterNotComplete = errors.New("mediator connection is not complete")

// Consumer is the edge side of routing. Once an inbound connection to a mediator
// is established every new connection key is announced to it, and new connections
// publish the mediator endpoint and key.
type Consumer struct {
	store  *connectionstore.Store
	sender Sender

	mu       sync.RWMutex
	inbound  string
	routeKey string
}

// NewConsumer returns a consumer without a mediator.
func NewConsumer(store *connectionstore.Store, sender Sender) *Consumer {
	return &Consumer{store: store, sender: sender}
}

// EstablishInbound routes future connections through the mediator reached on connKey,
// publishing mediatorVerKey as the routing key.
func (c *Consumer) EstablishInbound(mediatorVerKey, connKey string) error {
	if mediatorVerKey == "" {
		return errors.New("mediator verkey is required")
	}

	if _, err := c.store.Get(connKey); err != nil {
		return fmt.Errorf("mediator connection: %w", err)
	}

	c.mu.Lock()
	c.inbound = connKey
	c.routeKey = mediatorVerKey
	c.mu.Unlock()

	logger.Infof("routing new connections through mediator connection %s", connKey)

	return nil
}

// InboundConnection returns the own key of the mediator connection, empty when none is set.
func (c *Consumer) InboundConnection() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.inbound
}

// Config implements connection.Router.
func (c *Consumer) Config() (*connection.RouterConfig, error) {
	connKey, routeKey := c.current()
	if connKey == "" {
		return nil, nil
	}

	peer, err := c.mediator(connKey)
	if err != nil {
		return nil, err
	}

	return &connection.RouterConfig{
		Endpoint:    peer.Service.ServiceEndpoint,
		RoutingKeys: []string{routeKey},
	}, nil
}

// AddKey implements connection.Router by sending a keylist_update add to the mediator.
func (c *Consumer) AddKey(ctx context.Context, verKey string) error {
	connKey, _ := c.current()
	if connKey == "" {
		return errors.New("no mediator connection")
	}

	peer, err := c.mediator(connKey)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(&KeylistUpdate{
		Type:    service.KeylistUpdateMsgType,
		ID:      uuid.New().String(),
		Updates: []Update{{RecipientKey: verKey, Action: add}},
	})
	if err != nil {
		return fmt.Errorf("marshal keylist update: %w", err)
	}

	err = c.sender.Send(ctx, &service.OutboundMessage{
		ConnectionKey: connKey,
		Payload:       payload,
		Destination: &service.Destination{
			RecipientKeys:   []string{peer.VerKey},
			ServiceEndpoint: peer.Service.ServiceEndpoint,
			RoutingKeys:     append([]string(nil), peer.Service.RoutingKeys...),
		},
		SenderVerKey: connKey,
	})
	if err != nil {
		return fmt.Errorf("send keylist update: %w", err)
	}

	logutil.LogDebug(logger, logComponent, "addKey", "key announced to mediator",
		logutil.CreateKeyValueString("verKey", verKey))

	return nil
}

func (c *Consumer) current() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.inbound, c.routeKey
}

func (c *Consumer) mediator(connKey string) (*connectionstore.Peer, error) {
	conn, err := c.store.Get(connKey)
	if err != nil {
		return nil, fmt.Errorf("mediator connection: %w", err)
	}

	if conn.State() != connectionstore.StateComplete {
		return nil, fmt.Errorf("%w: state %s", ErrRouterNotComplete, conn.State())
	}

	peer, _ := connectionstore.PeerOf(conn)

	return peer, nil
}
