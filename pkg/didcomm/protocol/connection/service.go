/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/model"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-agent/pkg/doc/did"
	"github.com/hyperledger/aries-didcomm-agent/pkg/internal/logutil"
	connectionstore "github.com/hyperledger/aries-didcomm-agent/pkg/store/connection"
	"github.com/hyperledger/aries-didcomm-agent/pkg/wallet"
)

const logComponent = "connection"

var logger = log.New("aries-framework/connection/service")

// ErrUnexpectedState is returned when a handshake message arrives in a state that cannot accept it.
var ErrUnexpectedState = errors.New("message not expected in connection state")

// RouterConfig is what a mediator lets us publish: its endpoint and the keys to route through.
type RouterConfig struct {
	Endpoint    string
	RoutingKeys []string
}

// Router registers our keys with a mediator.
type Router interface {
	// Config returns nil when no mediator is in use.
	Config() (*RouterConfig, error)
	// AddKey asks the mediator to accept forwards for verKey.
	AddKey(ctx context.Context, verKey string) error
}

// provider contains dependencies for the connection protocol service.
type provider interface {
	Wallet() wallet.Wallet
	ConnectionStore() *connectionstore.Store
	ServiceEndpoint() string
	Label() string
}

// Service for the connection protocol.
type Service struct {
	wallet   wallet.Wallet
	store    *connectionstore.Store
	endpoint string
	label    string
	router   Router
}

// Option configures the Service.
type Option func(*Service)

// WithRouter publishes a mediator endpoint and routing key in every new connection.
func WithRouter(r Router) Option {
	return func(s *Service) {
		s.router = r
	}
}

// New returns the connection protocol service.
func New(prov provider, opts ...Option) (*Service, error) {
	if prov.Wallet() == nil || prov.ConnectionStore() == nil {
		return nil, errors.New("connection service needs a wallet and a connection store")
	}

	s := &Service{
		wallet:   prov.Wallet(),
		store:    prov.ConnectionStore(),
		endpoint: prov.ServiceEndpoint(),
		label:    prov.Label(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Kinds implements service.Handler.
func (s *Service) Kinds() []service.MsgKind {
	return []service.MsgKind{
		service.KindInvitation,
		service.KindRequest,
		service.KindResponse,
		service.KindAck,
	}
}

// HandleInbound implements service.Handler.
func (s *Service) HandleInbound(ctx context.Context, msg *service.InboundMessage) (*service.OutboundMessage, error) {
	switch service.KindOf(msg.Message.Type()) {
	case service.KindInvitation:
		inv := &model.Invitation{}
		if err := msg.Message.Decode(inv); err != nil {
			return nil, fmt.Errorf("%w: %s", service.ErrInvalidInvitation, err.Error())
		}

		return s.AcceptInvitation(ctx, inv)
	case service.KindRequest:
		return s.AcceptRequest(ctx, msg)
	case service.KindResponse:
		return s.AcceptResponse(ctx, msg)
	case service.KindAck:
		return nil, s.AcceptAck(ctx, msg)
	default:
		return nil, fmt.Errorf("%w: %s", service.ErrUnsupportedMessageType, msg.Message.Type())
	}
}

// CreateInvitation creates a connection in the invited state and the invitation to hand to the peer.
func (s *Service) CreateInvitation(ctx context.Context) (*connectionstore.Invited, *model.Invitation, error) {
	base, err := s.newBase(ctx)
	if err != nil {
		return nil, nil, err
	}

	inv := &model.Invitation{
		Type:            service.InvitationMsgType,
		ID:              uuid.New().String(),
		Label:           s.label,
		RecipientKeys:   []string{base.OwnVerKey},
		ServiceEndpoint: base.OwnService.ServiceEndpoint,
		RoutingKeys:     base.OwnService.RoutingKeys,
	}

	if inv.ServiceEndpoint == "" {
		return nil, nil, fmt.Errorf("create invitation: %w", service.ErrMissingEndpoint)
	}

	invited := (&connectionstore.Initiated{Base: *base}).Invite(inv)

	if err := s.store.Save(invited); err != nil {
		return nil, nil, fmt.Errorf("create invitation: %w", err)
	}

	logutil.LogDebug(logger, logComponent, "createInvitation", "invitation created",
		logutil.CreateKeyValueString("verKey", base.OwnVerKey))

	return invited, inv, nil
}

// AcceptInvitation creates a connection in the requested state and returns the anonymous request for the inviter.
func (s *Service) AcceptInvitation(ctx context.Context, invitation *model.Invitation) (*service.OutboundMessage, error) {
	inv, err := validateInvitation(invitation)
	if err != nil {
		return nil, err
	}

	base, err := s.newBase(ctx)
	if err != nil {
		return nil, err
	}

	req := &Request{
		Type:  service.RequestMsgType,
		ID:    uuid.New().String(),
		Label: s.label,
		Connection: &Connection{
			DID:    base.OwnDID,
			DIDDoc: base.DIDDoc,
		},
	}

	payload, err := marshal(req)
	if err != nil {
		return nil, err
	}

	if err := s.store.Save((&connectionstore.Initiated{Base: *base}).Request(inv)); err != nil {
		return nil, fmt.Errorf("accept invitation: %w", err)
	}

	logutil.LogDebug(logger, logComponent, "acceptInvitation", "request created",
		logutil.CreateKeyValueString("verKey", base.OwnVerKey),
		logutil.CreateKeyValueString("invitationID", inv.ID))

	return &service.OutboundMessage{
		ConnectionKey: base.OwnVerKey,
		Payload:       payload,
		Destination: &service.Destination{
			RecipientKeys:   inv.RecipientKeys,
			ServiceEndpoint: inv.ServiceEndpoint,
			RoutingKeys:     inv.RoutingKeys,
		},
	}, nil
}

// newBase creates the keys, DID doc and service descriptor of a new connection.
func (s *Service) newBase(ctx context.Context) (*connectionstore.Base, error) {
	endpoint := s.endpoint

	var routingKeys []string

	if s.router != nil {
		conf, err := s.router.Config()
		if err != nil {
			return nil, fmt.Errorf("router config: %w", err)
		}

		if conf != nil {
			endpoint = conf.Endpoint
			routingKeys = append(routingKeys, conf.RoutingKeys...)
		}
	}

	info, err := s.wallet.CreateDID(ctx)
	if err != nil {
		return nil, err
	}

	if len(routingKeys) > 0 {
		if err := s.router.AddKey(ctx, info.VerKey); err != nil {
			return nil, fmt.Errorf("register key with mediator: %w", err)
		}
	}

	return &connectionstore.Base{
		OwnDID:    info.DID,
		OwnVerKey: info.VerKey,
		OwnService: service.Destination{
			RecipientKeys:   []string{info.VerKey},
			ServiceEndpoint: endpoint,
			RoutingKeys:     routingKeys,
		},
		DIDDoc: did.NewAgentDoc(info.DID, info.VerKey, endpoint, routingKeys),
	}, nil
}
