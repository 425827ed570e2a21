/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package keylock provides mutual exclusion scoped to a string key.
package keylock

import "sync"

// KeyLock serializes callers holding the same key. Callers using different keys never block each other.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New returns an empty KeyLock.
func New() *KeyLock {
	return &KeyLock{locks: map[string]*entry{}}
}

// Lock locks key and returns the function releasing it.
func (l *KeyLock) Lock(key string) func() {
	l.mu.Lock()

	e, ok := l.locks[key]
	if !ok {
		e = &entry{}
		l.locks[key] = e
	}

	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--

		if e.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// Do runs fn while holding key.
func (l *KeyLock) Do(key string, fn func() error) error {
	unlock := l.Lock(key)
	defer unlock()

	return fn()
}

// size reports how many keys are currently held or awaited.
func (l *KeyLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.locks)
}
