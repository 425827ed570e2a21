/*
 *
 * Copyright SecureKey Technologies Inc. All Rights Reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 * /
 *
 */

package connection

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-agent/pkg/internal/keylock"
)

const (
	// Namespace is namespace of connection store name.
	Namespace        = "connections"
	keyPattern       = "%s_%s"
	connKeyPrefix    = "conn"
	inboxKeyPrefix   = "inbox"
	connTagName      = "conn"
	peerKeyTagName   = "peerKey"
	stateTagName     = "state"
	errMsgInvalidKey = "invalid key"
)

var logger = log.New("aries-framework/store/connection")

// Store keeps connections keyed by own verkey, indexed by peer verkey.
type Store struct {
	store     storage.Store
	locks     *keylock.KeyLock
	seq       uint64
	inboxMode InboxMode
}

// Option configures the Store.
type Option func(*Store)

// WithInboxMode selects how Inbox reads behave.
func WithInboxMode(mode InboxMode) Option {
	return func(s *Store) {
		s.inboxMode = mode
	}
}

// New opens the connection store on p.
func New(p storage.Provider, opts ...Option) (*Store, error) {
	store, err := p.OpenStore(Namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection store: %w", err)
	}

	err = p.SetStoreConfig(Namespace, storage.StoreConfiguration{
		TagNames: []string{connTagName, peerKeyTagName, stateTagName},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set store config: %w", err)
	}

	s := &Store{
		store:     store,
		locks:     keylock.New(),
		seq:       uint64(time.Now().UnixNano()),
		inboxMode: InboxKeepAll,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Get returns the connection whose own verkey is ownVerKey.
func (s *Store) Get(ownVerKey string) (Connection, error) {
	rec, err := s.GetRecord(ownVerKey)
	if err != nil {
		return nil, err
	}

	return rec.Connection()
}

// GetRecord returns the stored record of ownVerKey.
func (s *Store) GetRecord(ownVerKey string) (*Record, error) {
	if ownVerKey == "" {
		return nil, fmt.Errorf("%s: %w", errMsgInvalidKey, service.ErrConnectionNotFound)
	}

	raw, err := s.store.Get(connKey(ownVerKey))
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, fmt.Errorf("own key %s: %w", ownVerKey, service.ErrConnectionNotFound)
		}

		return nil, fmt.Errorf("get connection: %w", err)
	}

	rec := &Record{}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("unmarshal connection record: %w", err)
	}

	return rec, nil
}

// FindByPeerKey returns the connection whose peer verkey is peerVerKey.
func (s *Store) FindByPeerKey(peerVerKey string) (Connection, error) {
	if peerVerKey == "" {
		return nil, fmt.Errorf("%s: %w", errMsgInvalidKey, service.ErrConnectionNotFound)
	}

	records, err := s.query(fmt.Sprintf("%s:%s", peerKeyTagName, peerVerKey))
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("peer key %s: %w", peerVerKey, service.ErrConnectionNotFound)
	}

	if len(records) > 1 {
		logger.Warnf("peer key %s is shared by %d connections, using the oldest", peerVerKey, len(records))
	}

	return records[0].Connection()
}

// List returns every connection in creation order.
func (s *Store) List() ([]Connection, error) {
	records, err := s.ListRecords()
	if err != nil {
		return nil, err
	}

	conns := make([]Connection, 0, len(records))

	for _, rec := range records {
		c, err := rec.Connection()
		if err != nil {
			return nil, err
		}

		conns = append(conns, c)
	}

	return conns, nil
}

// ListRecords returns every record in creation order.
func (s *Store) ListRecords() ([]*Record, error) {
	return s.query(connTagName)
}

func (s *Store) query(expression string) ([]*Record, error) {
	itr, err := s.store.Query(expression)
	if err != nil {
		return nil, fmt.Errorf("query connections: %w", err)
	}

	defer storage.Close(itr, logger)

	var records []*Record

	more, err := itr.Next()
	if err != nil {
		return nil, fmt.Errorf("query connections: %w", err)
	}

	for more {
		raw, err := itr.Value()
		if err != nil {
			return nil, fmt.Errorf("query connections: %w", err)
		}

		rec := &Record{}
		if err := json.Unmarshal(raw, rec); err != nil {
			return nil, fmt.Errorf("unmarshal connection record: %w", err)
		}

		records = append(records, rec)

		more, err = itr.Next()
		if err != nil {
			return nil, fmt.Errorf("query connections: %w", err)
		}
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })

	return records, nil
}

func (s *Store) nextSeq() uint64 {
	return atomic.AddUint64(&s.seq, 1)
}

func connKey(ownVerKey string) string {
	return fmt.Sprintf(keyPattern, connKeyPrefix, ownVerKey)
}
