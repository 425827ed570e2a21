/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/spi/storage"
)

// InboxMode selects the read semantics of a connection inbox.
type InboxMode string

const (
	// InboxKeepAll reads return every message and leave the inbox untouched.
	InboxKeepAll InboxMode = "keep-all"
	// InboxTakeOne reads pop the oldest message.
	InboxTakeOne InboxMode = "take-one"
)

// ParseInboxMode validates s.
func ParseInboxMode(s string) (InboxMode, error) {
	switch InboxMode(s) {
	case InboxKeepAll, InboxTakeOne:
		return InboxMode(s), nil
	case "":
		return InboxKeepAll, nil
	default:
		return "", fmt.Errorf("invalid inbox mode %q", s)
	}
}

// InboxMessage is one message received on a connection.
type InboxMessage struct {
	ID         string          `json:"id"`
	Type       string          `json:"type,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

// Mode returns the configured inbox mode.
func (s *Store) Mode() InboxMode {
	return s.inboxMode
}

// AppendMessage adds msg at the end of the inbox of ownVerKey.
func (s *Store) AppendMessage(ownVerKey string, msg *InboxMessage) error {
	if err := s.exists(ownVerKey); err != nil {
		return err
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}

	unlock := s.locks.Lock(inboxKey(ownVerKey))
	defer unlock()

	msgs, err := s.messages(ownVerKey)
	if err != nil {
		return err
	}

	return s.putMessages(ownVerKey, append(msgs, msg))
}

// Messages returns the whole inbox of ownVerKey without consuming it.
func (s *Store) Messages(ownVerKey string) ([]*InboxMessage, error) {
	if err := s.exists(ownVerKey); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(inboxKey(ownVerKey))
	defer unlock()

	return s.messages(ownVerKey)
}

// TakeMessage removes and returns the oldest inbox message of ownVerKey, or nil when the inbox is empty.
func (s *Store) TakeMessage(ownVerKey string) (*InboxMessage, error) {
	if err := s.exists(ownVerKey); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(inboxKey(ownVerKey))
	defer unlock()

	msgs, err := s.messages(ownVerKey)
	if err != nil || len(msgs) == 0 {
		return nil, err
	}

	if err := s.putMessages(ownVerKey, msgs[1:]); err != nil {
		return nil, err
	}

	return msgs[0], nil
}

// Inbox reads the inbox of ownVerKey according to the configured mode.
func (s *Store) Inbox(ownVerKey string) ([]*InboxMessage, error) {
	if s.inboxMode != InboxTakeOne {
		return s.Messages(ownVerKey)
	}

	msg, err := s.TakeMessage(ownVerKey)
	if err != nil || msg == nil {
		return nil, err
	}

	return []*InboxMessage{msg}, nil
}

func (s *Store) messages(ownVerKey string) ([]*InboxMessage, error) {
	raw, err := s.store.Get(inboxKey(ownVerKey))
	if errors.Is(err, storage.ErrDataNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("get inbox: %w", err)
	}

	var msgs []*InboxMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, fmt.Errorf("unmarshal inbox: %w", err)
	}

	return msgs, nil
}

func (s *Store) putMessages(ownVerKey string, msgs []*InboxMessage) error {
	if len(msgs) == 0 {
		if err := s.store.Delete(inboxKey(ownVerKey)); err != nil {
			return fmt.Errorf("clear inbox: %w", err)
		}

		return nil
	}

	raw, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("marshal inbox: %w", err)
	}

	if err := s.store.Put(inboxKey(ownVerKey), raw); err != nil {
		return fmt.Errorf("save inbox: %w", err)
	}

	return nil
}

func inboxKey(ownVerKey string) string {
	return fmt.Sprintf(keyPattern, inboxKeyPrefix, ownVerKey)
}
