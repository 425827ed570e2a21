/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	mockstorage "github.com/hyperledger/aries-framework-go/component/storageutil/mock"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/model"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-agent/pkg/doc/did"
)

func newBase(key string) Base {
	return Base{
		OwnDID:     "did:sov:" + key,
		OwnVerKey:  key,
		OwnService: service.Destination{RecipientKeys: []string{key}, ServiceEndpoint: "http://own"},
		DIDDoc:     did.NewAgentDoc("did:sov:"+key, key, "http://own", nil),
	}
}

func newStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	s, err := New(mem.NewProvider(), opts...)
	require.NoError(t, err)

	return s
}

func TestNew(t *testing.T) {
	t.Run("open store error", func(t *testing.T) {
		_, err := New(&mockstorage.Provider{ErrOpenStore: errors.New("open error")})
		require.ErrorContains(t, err, "open error")
	})

	t.Run("store config error", func(t *testing.T) {
		_, err := New(&mockstorage.Provider{
			OpenStoreReturn:   &mockstorage.Store{},
			ErrSetStoreConfig: errors.New("config error"),
		})
		require.ErrorContains(t, err, "config error")
	})
}

func TestStore_Lifecycle(t *testing.T) {
	s := newStore(t)
	inv := &model.Invitation{ID: "inv", RecipientKeys: []string{"k1"}, ServiceEndpoint: "http://own"}
	peer := Peer{DID: "did:sov:peer", VerKey: "peerKey1", Service: service.Destination{ServiceEndpoint: "http://peer"}}

	initiated := &Initiated{Base: newBase("k1")}
	require.NoError(t, s.Save(initiated.Invite(inv)))

	c, err := s.Get("k1")
	require.NoError(t, err)
	require.Equal(t, StateInvited, c.State())

	got, ok := InvitationOf(c)
	require.True(t, ok)
	require.Equal(t, inv, got)

	_, ok = PeerOf(c)
	require.False(t, ok)

	c, err = s.Update("k1", func(c Connection) (Connection, error) {
		return c.(*Invited).Respond(peer), nil
	})
	require.NoError(t, err)
	require.Equal(t, StateResponded, c.State())

	byPeer, err := s.FindByPeerKey("peerKey1")
	require.NoError(t, err)
	require.Equal(t, "k1", byPeer.Own().OwnVerKey)

	c, err = s.Update("k1", func(c Connection) (Connection, error) {
		return c.(*Responded).Complete(), nil
	})
	require.NoError(t, err)

	completed, ok := c.(*Completed)
	require.True(t, ok)
	require.Equal(t, peer, completed.Peer)

	stored, err := s.Get("k1")
	require.NoError(t, err)
	require.Equal(t, completed, stored)
}

func TestStore_Save(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.Save(&Initiated{Base: newBase("k1")}))

	err := s.Save(&Initiated{Base: newBase("k1")})
	require.ErrorIs(t, err, ErrDuplicateConnection)

	err = s.Save(&Initiated{})
	require.EqualError(t, err, errMsgInvalidKey)

	t.Run("store put error", func(t *testing.T) {
		s, err := New(&mockstorage.Provider{OpenStoreReturn: &mockstorage.Store{
			ErrGet: fmt.Errorf("wrapped: %w", storage.ErrDataNotFound),
			ErrPut: errors.New("put error"),
		}})
		require.NoError(t, err)
		require.ErrorContains(t, s.Save(&Initiated{Base: newBase("k1")}), "put error")
	})
}

func TestStore_Update(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Save(&Initiated{Base: newBase("k1")}))

	t.Run("not found", func(t *testing.T) {
		_, err := s.Update("missing", func(c Connection) (Connection, error) { return c, nil })
		require.ErrorIs(t, err, service.ErrConnectionNotFound)
	})

	t.Run("fn error leaves the record untouched", func(t *testing.T) {
		errExpected := errors.New("expected")

		_, err := s.Update("k1", func(c Connection) (Connection, error) {
			return c.(*Initiated).Request(nil), errExpected
		})
		require.ErrorIs(t, err, errExpected)

		c, err := s.Get("k1")
		require.NoError(t, err)
		require.Equal(t, StateInit, c.State())
	})

	t.Run("key change rejected", func(t *testing.T) {
		_, err := s.Update("k1", func(c Connection) (Connection, error) {
			return &Initiated{Base: newBase("k2")}, nil
		})
		require.ErrorContains(t, err, "changed the own key")
	})

	t.Run("concurrent updates are serialized", func(t *testing.T) {
		require.NoError(t, s.Save(&Initiated{Base: newBase("race")}))

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			requests int
		)

		for i := 0; i < 10; i++ {
			wg.Add(1)

			go func() {
				defer wg.Done()

				_, err := s.Update("race", func(c Connection) (Connection, error) {
					initiated, ok := c.(*Initiated)
					if !ok {
						return nil, errors.New("already requested")
					}

					return initiated.Request(nil), nil
				})
				if err == nil {
					mu.Lock()
					requests++
					mu.Unlock()
				}
			}()
		}

		wg.Wait()
		require.Equal(t, 1, requests)
	})
}

func TestStore_Lookup(t *testing.T) {
	s := newStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Save(&Initiated{Base: newBase(fmt.Sprintf("key%d", i))}))
	}

	conns, err := s.List()
	require.NoError(t, err)
	require.Len(t, conns, 5)

	for i, c := range conns {
		require.Equal(t, fmt.Sprintf("key%d", i), c.Own().OwnVerKey)
	}

	_, err = s.Get("missing")
	require.ErrorIs(t, err, service.ErrConnectionNotFound)

	_, err = s.Get("")
	require.ErrorIs(t, err, service.ErrConnectionNotFound)

	_, err = s.FindByPeerKey("missing")
	require.ErrorIs(t, err, service.ErrConnectionNotFound)

	_, err = s.FindByPeerKey("")
	require.ErrorIs(t, err, service.ErrConnectionNotFound)

	t.Run("query error", func(t *testing.T) {
		s, err := New(&mockstorage.Provider{OpenStoreReturn: &mockstorage.Store{ErrQuery: errors.New("query error")}})
		require.NoError(t, err)

		_, err = s.List()
		require.ErrorContains(t, err, "query error")
	})

	t.Run("get error", func(t *testing.T) {
		s, err := New(&mockstorage.Provider{OpenStoreReturn: &mockstorage.Store{ErrGet: errors.New("get error")}})
		require.NoError(t, err)

		_, err = s.Get("k")
		require.ErrorContains(t, err, "get error")
	})
}

func TestRecord(t *testing.T) {
	rec := &Record{Base: newBase("k"), State: StateComplete}
	_, err := rec.Connection()
	require.ErrorContains(t, err, "has no peer")

	rec.State = "bogus"
	_, err = rec.Connection()
	require.ErrorContains(t, err, "invalid connection state")

	rec.State = StateRequested
	c, err := rec.Connection()
	require.NoError(t, err)

	_, ok := InvitationOf(c)
	require.False(t, ok)
}
