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
	"time"

	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/service"
)

// ErrDuplicateConnection is returned by Save when the own verkey is already taken.
var ErrDuplicateConnection = errors.New("connection already exists")

// Save stores a new connection.
func (s *Store) Save(c Connection) error {
	key := c.Own().OwnVerKey
	if key == "" {
		return errors.New(errMsgInvalidKey)
	}

	unlock := s.locks.Lock(key)
	defer unlock()

	_, err := s.store.Get(connKey(key))
	if err == nil {
		return fmt.Errorf("own key %s: %w", key, ErrDuplicateConnection)
	}

	if !errors.Is(err, storage.ErrDataNotFound) {
		return fmt.Errorf("check connection: %w", err)
	}

	rec := ToRecord(c)
	rec.CreatedAt = time.Now().UTC()
	rec.Seq = s.nextSeq()

	return s.put(rec)
}

// Update applies fn to the connection of ownVerKey under its key lock and stores the result.
// Nothing is written when fn fails.
func (s *Store) Update(ownVerKey string, fn func(Connection) (Connection, error)) (Connection, error) {
	unlock := s.locks.Lock(ownVerKey)
	defer unlock()

	rec, err := s.GetRecord(ownVerKey)
	if err != nil {
		return nil, err
	}

	current, err := rec.Connection()
	if err != nil {
		return nil, err
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}

	if next.Own().OwnVerKey != ownVerKey {
		return nil, fmt.Errorf("update of %s changed the own key", ownVerKey)
	}

	updated := ToRecord(next)
	updated.CreatedAt = rec.CreatedAt
	updated.Seq = rec.Seq

	if err := s.put(updated); err != nil {
		return nil, err
	}

	logger.Debugf("connection %s: %s -> %s", ownVerKey, rec.State, updated.State)

	return next, nil
}

func (s *Store) put(rec *Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal connection record: %w", err)
	}

	tags := []storage.Tag{
		{Name: connTagName},
		{Name: stateTagName, Value: string(rec.State)},
	}

	if rec.Peer != nil && rec.Peer.VerKey != "" {
		tags = append(tags, storage.Tag{Name: peerKeyTagName, Value: rec.Peer.VerKey})
	}

	if err := s.store.Put(connKey(rec.OwnVerKey), raw, tags...); err != nil {
		return fmt.Errorf("save connection record: %w", err)
	}

	return nil
}

// exists reports whether ownVerKey names a stored connection.
func (s *Store) exists(ownVerKey string) error {
	_, err := s.store.Get(connKey(ownVerKey))
	if errors.Is(err, storage.ErrDataNotFound) {
		return fmt.Errorf("own key %s: %w", ownVerKey, service.ErrConnectionNotFound)
	}

	return err
}
