/*
 *
 * Copyright SecureKey Technologies Inc. All Rights Reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 * /
 *
 */

package basicmessage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/model"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-didcomm-agent/pkg/internal/logutil"
	connectionstore "github.com/hyperledger/aries-didcomm-agent/pkg/store/connection"
)

const (
	logComponent  = "basicmessage"
	defaultLocale = "en"
)

var logger = log.New("aries-framework/basicmessage/service")

type provider interface {
	ConnectionStore() *connectionstore.Store
}

// Service stores basic messages in the inbox of the connection they arrive on.
type Service struct {
	store *connectionstore.Store
}

// New returns the basic message service.
func New(prov provider) (*Service, error) {
	if prov.ConnectionStore() == nil {
		return nil, errors.New("basic message service needs a connection store")
	}

	return &Service{store: prov.ConnectionStore()}, nil
}

// Kinds implements service.Handler.
func (s *Service) Kinds() []service.MsgKind {
	return []service.MsgKind{service.KindBasicMessage}
}

// HandleInbound appends the message to the connection inbox and acknowledges it to the sender.
func (s *Service) HandleInbound(_ context.Context, msg *service.InboundMessage) (*service.OutboundMessage, error) {
	conn, err := s.store.Get(msg.RecipientVerKey)
	if err != nil {
		return nil, err
	}

	recipientKey := msg.SenderVerKey

	peer, ok := connectionstore.PeerOf(conn)
	if ok && recipientKey == "" {
		recipientKey = peer.VerKey
	}

	if !ok || peer.Service.ServiceEndpoint == "" || recipientKey == "" {
		return nil, fmt.Errorf("reply on connection %s: %w", conn.Own().OwnVerKey, service.ErrMissingEndpoint)
	}

	ack, err := json.Marshal(&model.Ack{
		Type:   service.AckMsgType,
		ID:     uuid.New().String(),
		Status: model.AckStatusOK,
		Thread: &decorator.Thread{ID: msg.Message.ID()},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal ack: %w", err)
	}

	err = s.store.AppendMessage(conn.Own().OwnVerKey, &connectionstore.InboxMessage{
		ID:      msg.Message.ID(),
		Type:    msg.Message.Type(),
		Payload: msg.Payload,
	})
	if err != nil {
		return nil, err
	}

	logutil.LogDebug(logger, logComponent, "handleInbound", "basic message received",
		logutil.CreateKeyValueString("verKey", conn.Own().OwnVerKey),
		logutil.CreateKeyValueString("msgID", msg.Message.ID()))

	return &service.OutboundMessage{
		ConnectionKey: conn.Own().OwnVerKey,
		Payload:       ack,
		Destination: &service.Destination{
			RecipientKeys:   []string{recipientKey},
			ServiceEndpoint: peer.Service.ServiceEndpoint,
			RoutingKeys:     append([]string(nil), peer.Service.RoutingKeys...),
		},
		SenderVerKey: conn.Own().OwnVerKey,
	}, nil
}

// NewMessage builds a basic message with content for the peer of conn.
func NewMessage(conn connectionstore.Connection, content string) (*service.OutboundMessage, error) {
	peer, ok := connectionstore.PeerOf(conn)
	if !ok || peer.Service.ServiceEndpoint == "" || peer.VerKey == "" {
		return nil, fmt.Errorf("connection %s: %w", conn.Own().OwnVerKey, service.ErrMissingEndpoint)
	}

	payload, err := json.Marshal(&Message{
		ID:       uuid.New().String(),
		Type:     service.BasicMessageMsgType,
		L10n:     &decorator.L10n{Locale: defaultLocale},
		SentTime: time.Now().UTC(),
		Content:  content,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal basic message: %w", err)
	}

	return &service.OutboundMessage{
		ConnectionKey: conn.Own().OwnVerKey,
		Payload:       payload,
		Destination: &service.Destination{
			RecipientKeys:   []string{peer.VerKey},
			ServiceEndpoint: peer.Service.ServiceEndpoint,
			RoutingKeys:     append([]string(nil), peer.Service.RoutingKeys...),
		},
		SenderVerKey: conn.Own().OwnVerKey,
	}, nil
}
