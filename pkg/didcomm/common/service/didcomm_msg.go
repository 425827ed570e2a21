/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

const (
	jsonID     = "@id"
	jsonType   = "@type"
	jsonThread = "~thread"
	jsonThID   = "thid"
)

// ErrNoType is returned when a message carries no @type.
var ErrNoType = errors.New("message has no @type")

// DIDCommMsgMap is a generic view of a plaintext DIDComm message.
type DIDCommMsgMap map[string]interface{}

// ParseDIDCommMsgMap parses payload into a DIDCommMsgMap.
func ParseDIDCommMsgMap(payload []byte) (DIDCommMsgMap, error) {
	var msg DIDCommMsgMap

	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("invalid payload data format: %w", err)
	}

	if msg == nil {
		return nil, errors.New("invalid payload data format: null")
	}

	return msg, nil
}

// NewDIDCommMsgMap converts a message struct into a DIDCommMsgMap.
func NewDIDCommMsgMap(v interface{}) (DIDCommMsgMap, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	return ParseDIDCommMsgMap(raw)
}

// ID returns the message @id.
func (m DIDCommMsgMap) ID() string {
	return m.str(jsonID)
}

// Type returns the message @type.
func (m DIDCommMsgMap) Type() string {
	return m.str(jsonType)
}

// ThreadID returns ~thread.thid, falling back to @id for the first message of a thread.
func (m DIDCommMsgMap) ThreadID() string {
	if m == nil {
		return ""
	}

	if thread, ok := m[jsonThread].(map[string]interface{}); ok {
		if thid, ok := thread[jsonThID].(string); ok && thid != "" {
			return thid
		}
	}

	return m.ID()
}

// Decode decodes the message into v, honouring json tags.
func (m DIDCommMsgMap) Decode(v interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  v,
		TagName: "json",
		Squash:  true,
	})
	if err != nil {
		return err
	}

	return decoder.Decode(m)
}

// Clone returns a shallow copy of the message.
func (m DIDCommMsgMap) Clone() DIDCommMsgMap {
	if m == nil {
		return nil
	}

	msg := make(DIDCommMsgMap, len(m))
	for k, v := range m {
		msg[k] = v
	}

	return msg
}

func (m DIDCommMsgMap) str(key string) string {
	if m == nil {
		return ""
	}

	s, _ := m[key].(string) //nolint:errcheck

	return s
}
