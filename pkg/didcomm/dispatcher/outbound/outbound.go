/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package outbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-didcomm-agent/pkg/common/metrics"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/model"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/transport"
	"github.com/hyperledger/aries-didcomm-agent/pkg/wallet"
)

// provider interface for outbound ctx.
type provider interface {
	Wallet() wallet.Wallet
	OutboundTransports() []transport.OutboundTransport
}

var logger = log.New("aries-framework/didcomm/dispatcher")

// Dispatcher packs outbound messages, wraps them for every routing hop and hands them to a transport.
type Dispatcher struct {
	wallet             wallet.Wallet
	outboundTransports []transport.OutboundTransport
}

// NewOutbound return new dispatcher outbound instance.
func NewOutbound(prov provider) (*Dispatcher, error) {
	if prov.Wallet() == nil {
		return nil, errors.New("outbound dispatcher needs a wallet")
	}

	return &Dispatcher{
		wallet:             prov.Wallet(),
		outboundTransports: prov.OutboundTransports(),
	}, nil
}

// Send packs msg for its recipients, adds one forward layer per routing key and sends the result
// with the first transport accepting the endpoint.
func (o *Dispatcher) Send(ctx context.Context, msg *service.OutboundMessage) error {
	des := msg.Destination
	if des == nil || des.ServiceEndpoint == "" {
		return fmt.Errorf("outboundDispatcher.Send: %w", service.ErrMissingEndpoint)
	}

	if len(des.RecipientKeys) == 0 {
		return errors.New("outboundDispatcher.Send: destination has no recipient keys")
	}

	outboundTransport := o.transportFor(des.ServiceEndpoint)
	if outboundTransport == nil {
		return fmt.Errorf("outboundDispatcher.Send: no transport found for serviceEndpoint %s: %w",
			des.ServiceEndpoint, service.ErrMissingEndpoint)
	}

	packedMsg, err := o.wallet.Pack(ctx, msg.Payload, des.RecipientKeys, msg.SenderVerKey)
	if err != nil {
		return fmt.Errorf("outboundDispatcher.Send: failed to pack msg: %w", err)
	}

	packedMsg, err = o.createForwardMessage(ctx, packedMsg, des, msg.SenderVerKey)
	if err != nil {
		return fmt.Errorf("outboundDispatcher.Send: failed to create forward msg: %w", err)
	}

	err = outboundTransport.Send(ctx, packedMsg, des.ServiceEndpoint)
	metrics.MessageSent(err == nil)

	if err != nil {
		return fmt.Errorf("outboundDispatcher.Send: failed to send msg using outbound transport: %w", err)
	}

	logger.Debugf("sent message for %s to %s through %d routing keys",
		des.RecipientKeys[0], des.ServiceEndpoint, len(des.RoutingKeys))

	return nil
}

func (o *Dispatcher) transportFor(endpoint string) transport.OutboundTransport {
	for _, v := range o.outboundTransports {
		if v.Accept(endpoint) {
			return v
		}
	}

	return nil
}

// createForwardMessage wraps msg once per routing key, the last key being the outermost layer.
// Every layer is addressed to the final recipient and authenticated with senderKey.
func (o *Dispatcher) createForwardMessage(ctx context.Context, msg []byte, des *service.Destination,
	senderKey string) ([]byte, error) {
	for _, routingKey := range des.RoutingKeys {
		req, err := json.Marshal(&model.Forward{
			Type: service.ForwardMsgType,
			ID:   uuid.New().String(),
			To:   des.RecipientKeys[0],
			Msg:  msg,
		})
		if err != nil {
			return nil, fmt.Errorf("failed marshal to bytes: %w", err)
		}

		msg, err = o.wallet.Pack(ctx, req, []string{routingKey}, senderKey)
		if err != nil {
			return nil, fmt.Errorf("failed to pack forward msg: %w", err)
		}
	}

	metrics.ForwardWrapped(len(des.RoutingKeys))

	return msg, nil
}
