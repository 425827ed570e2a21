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
	"strings"

	"github.com/bluele/gcache"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/model"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-agent/pkg/internal/didkeyutil"
	"github.com/hyperledger/aries-didcomm-agent/pkg/internal/keylock"
	"github.com/hyperledger/aries-didcomm-agent/pkg/internal/logutil"
	connectionstore "github.com/hyperledger/aries-didcomm-agent/pkg/store/connection"
)

const (
	// Coordination is the namespace of the routing table.
	Coordination = "routecoordination"

	logComponent = "route"
	routeKeyFmt  = "route_%s"
	routeTagName = "route"
	cacheSize    = 1000
)

var logger = log.New("aries-framework/route/service")

// Service is the mediator side of routing: it keeps the recipient key table
// and relays forward messages to the connection owning the target key.
type Service struct {
	routeStore storage.Store
	cache      gcache.Cache
	store      *connectionstore.Store
	locks      *keylock.KeyLock
}

// New returns the routing service.
func New(prov provider) (*Service, error) {
	if prov.ConnectionStore() == nil {
		return nil, errors.New("routing service needs a connection store")
	}

	store, err := prov.StorageProvider().OpenStore(Coordination)
	if err != nil {
		return nil, fmt.Errorf("open route coordination store : %w", err)
	}

	err = prov.StorageProvider().SetStoreConfig(Coordination, storage.StoreConfiguration{TagNames: []string{routeTagName}})
	if err != nil {
		return nil, fmt.Errorf("set route coordination store config : %w", err)
	}

	return &Service{
		routeStore: store,
		cache:      gcache.New(cacheSize).LRU().Build(),
		store:      prov.ConnectionStore(),
		locks:      keylock.New(),
	}, nil
}

// Kinds implements service.Handler.
func (s *Service) Kinds() []service.MsgKind {
	return []service.MsgKind{service.KindKeylistUpdate, service.KindForward}
}

// HandleInbound implements service.Handler.
func (s *Service) HandleInbound(ctx context.Context, msg *service.InboundMessage) (*service.OutboundMessage, error) {
	switch service.KindOf(msg.Message.Type()) {
	case service.KindKeylistUpdate:
		return nil, s.HandleKeylistUpdate(ctx, msg)
	case service.KindForward:
		return s.HandleForward(ctx, msg)
	default:
		return nil, fmt.Errorf("%w: %s", service.ErrUnsupportedMessageType, msg.Message.Type())
	}
}

// SaveRoute maps recipientKey to the connection owning connKey. A key is routed through one connection only.
func (s *Service) SaveRoute(recipientKey, connKey string) error {
	return s.locks.Do(recipientKey, func() error {
		_, err := s.routeStore.Get(dataKey(recipientKey))
		if err == nil {
			return fmt.Errorf("recipient key %s: %w", recipientKey, service.ErrDuplicateRoute)
		}

		if !errors.Is(err, storage.ErrDataNotFound) {
			return fmt.Errorf("route key fetch : %w", err)
		}

		if err := s.routeStore.Put(dataKey(recipientKey), []byte(connKey), storage.Tag{Name: routeTagName}); err != nil {
			return fmt.Errorf("save route : %w", err)
		}

		if err := s.cache.Set(recipientKey, connKey); err != nil {
			logger.Warnf("route cache set : %s", err)
		}

		logutil.LogDebug(logger, logComponent, "saveRoute", "route added",
			logutil.CreateKeyValueString("recipientKey", recipientKey),
			logutil.CreateKeyValueString("connectionKey", connKey))

		return nil
	})
}

// deleteRoute drops the route of recipientKey when it still points at connKey.
func (s *Service) deleteRoute(recipientKey, connKey string) error {
	return s.locks.Do(recipientKey, func() error {
		value, err := s.routeStore.Get(dataKey(recipientKey))
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("route key fetch : %w", err)
		}

		if string(value) != connKey {
			return nil
		}

		s.cache.Remove(recipientKey)

		if err := s.routeStore.Delete(dataKey(recipientKey)); err != nil {
			return fmt.Errorf("delete route : %w", err)
		}

		return nil
	})
}

// FindRecipient returns the connection that forwards for recipientKey travel through.
func (s *Service) FindRecipient(recipientKey string) (connectionstore.Connection, error) {
	connKey, err := s.routeFor(recipientKey)
	if err != nil {
		return nil, err
	}

	return s.store.Get(connKey)
}

// GetRoutes lists the routing table.
func (s *Service) GetRoutes() ([]Route, error) {
	records, err := s.routeStore.Query(routeTagName)
	if err != nil {
		return nil, fmt.Errorf("failed to query route store: %w", err)
	}

	defer storage.Close(records, logger)

	var routes []Route

	more, err := records.Next()
	if err != nil {
		return nil, fmt.Errorf("failed to get next record: %w", err)
	}

	for more {
		key, err := records.Key()
		if err != nil {
			return nil, fmt.Errorf("failed to get key from records: %w", err)
		}

		value, err := records.Value()
		if err != nil {
			return nil, fmt.Errorf("failed to get value from records: %w", err)
		}

		routes = append(routes, Route{
			RecipientKey:  strings.TrimPrefix(key, dataKey("")),
			ConnectionKey: string(value),
		})

		more, err = records.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to get next record: %w", err)
		}
	}

	return routes, nil
}

// HandleKeylistUpdate registers the keys of the update for the connection it arrived on.
// The update is all or nothing: an unsupported action, a key listed twice or a key routed
// already rejects it before any route is written, and a registration lost to a concurrent
// update rolls back the keys saved so far.
func (s *Service) HandleKeylistUpdate(_ context.Context, msg *service.InboundMessage) error {
	conn, err := s.store.Get(msg.RecipientVerKey)
	if err != nil {
		return err
	}

	keyUpdate := &KeylistUpdate{}
	if err := msg.Message.Decode(keyUpdate); err != nil {
		return fmt.Errorf("route key list update message unmarshal : %w", err)
	}

	keys, err := s.keysToAdd(keyUpdate.Updates)
	if err != nil {
		return err
	}

	connKey := conn.Own().OwnVerKey

	for i, key := range keys {
		if err := s.SaveRoute(key, connKey); err != nil {
			s.rollback(keys[:i], connKey)

			return err
		}
	}

	return nil
}

// keysToAdd validates every update and returns the normalized keys to register.
func (s *Service) keysToAdd(updates []Update) ([]string, error) {
	keys := make([]string, 0, len(updates))
	seen := make(map[string]struct{}, len(updates))

	for _, v := range updates {
		if v.Action == remove {
			return nil, fmt.Errorf("%w: remove of %s", service.ErrUnsupportedRouteAction, v.RecipientKey)
		}

		if v.Action != add {
			return nil, fmt.Errorf("%w: %q for %s", service.ErrUnsupportedRouteAction, v.Action, v.RecipientKey)
		}

		key, err := didkeyutil.NormalizeVerKey(v.RecipientKey)
		if err != nil {
			return nil, fmt.Errorf("route key list update : %w", err)
		}

		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("recipient key %s listed twice: %w", key, service.ErrDuplicateRoute)
		}

		seen[key] = struct{}{}

		_, err = s.routeFor(key)
		if err == nil {
			return nil, fmt.Errorf("recipient key %s: %w", key, service.ErrDuplicateRoute)
		}

		if !errors.Is(err, service.ErrRouteNotFound) {
			return nil, err
		}

		keys = append(keys, key)
	}

	return keys, nil
}

func (s *Service) rollback(keys []string, connKey string) {
	for _, key := range keys {
		if err := s.deleteRoute(key, connKey); err != nil {
			logutil.LogError(logger, logComponent, "rollbackRoute", err.Error(),
				logutil.CreateKeyValueString("recipientKey", key))
		}
	}
}

// HandleForward relays the opaque msg of a forward to the connection registered for its target.
func (s *Service) HandleForward(_ context.Context, msg *service.InboundMessage) (*service.OutboundMessage, error) {
	forward := &model.Forward{}
	if err := json.Unmarshal(msg.Payload, forward); err != nil {
		return nil, fmt.Errorf("forward message unmarshal : %w", err)
	}

	if forward.To == "" {
		return nil, service.ErrMissingForwardTarget
	}

	if len(forward.Msg) == 0 {
		return nil, fmt.Errorf("%w: empty msg for %s", service.ErrMissingForwardTarget, forward.To)
	}

	conn, err := s.FindRecipient(forward.To)
	if err != nil {
		return nil, err
	}

	peer, ok := connectionstore.PeerOf(conn)
	if !ok {
		return nil, fmt.Errorf("route to %s: connection %s has no peer: %w",
			forward.To, conn.Own().OwnVerKey, service.ErrConnectionNotFound)
	}

	logutil.LogDebug(logger, logComponent, "handleForward", "relaying forward",
		logutil.CreateKeyValueString("to", forward.To),
		logutil.CreateKeyValueString("peerVerKey", peer.VerKey))

	return &service.OutboundMessage{
		ConnectionKey: conn.Own().OwnVerKey,
		Payload:       []byte(forward.Msg),
		Destination: &service.Destination{
			RecipientKeys:   []string{peer.VerKey},
			ServiceEndpoint: peer.Service.ServiceEndpoint,
			RoutingKeys:     append([]string(nil), peer.Service.RoutingKeys...),
		},
		SenderVerKey: conn.Own().OwnVerKey,
	}, nil
}

func (s *Service) routeFor(recipientKey string) (string, error) {
	if v, err := s.cache.Get(recipientKey); err == nil {
		if connKey, ok := v.(string); ok {
			return connKey, nil
		}
	}

	value, err := s.routeStore.Get(dataKey(recipientKey))
	if errors.Is(err, storage.ErrDataNotFound) {
		return "", fmt.Errorf("recipient key %s: %w", recipientKey, service.ErrRouteNotFound)
	}

	if err != nil {
		return "", fmt.Errorf("route key fetch : %w", err)
	}

	if err := s.cache.Set(recipientKey, string(value)); err != nil {
		logger.Warnf("route cache set : %s", err)
	}

	return string(value), nil
}

func dataKey(id string) string {
	return fmt.Sprintf(routeKeyFmt, id)
}
