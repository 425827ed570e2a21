/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cryptoutil

import (
	"crypto/ed25519"
	"errors"

	"github.com/teserakt-io/golang-ed25519/extra25519"
	"golang.org/x/crypto/blake2b"
)

const (
	// Curve25519KeySize number of bytes in a Curve25519 public or private key.
	Curve25519KeySize = 32
	// NonceSize size of a nonce used by Box encryption (Xchacha20Poly1305).
	NonceSize = 24
)

// ErrKeyNotFound is returned when a key is not held by the key manager.
var ErrKeyNotFound = errors.New("key not found")

// ErrInvalidKey is used when a key is invalid.
var ErrInvalidKey = errors.New("invalid key")

// PublicEd25519toCurve25519 takes an Ed25519 public key and provides the corresponding Curve25519 public key.
func PublicEd25519toCurve25519(pub []byte) ([]byte, error) {
	if len(pub) != ed25519.PublicKeySize {
		return nil, errors.New("public key is invalid")
	}

	var (
		pkOut [Curve25519KeySize]byte
		pkIn  [ed25519.PublicKeySize]byte
	)

	copy(pkIn[:], pub)

	if !extra25519.PublicKeyToCurve25519(&pkOut, &pkIn) {
		return nil, errors.New("failed to convert public key")
	}

	return pkOut[:], nil
}

// SecretEd25519toCurve25519 converts a secret key from Ed25519 to curve25519 format.
func SecretEd25519toCurve25519(priv []byte) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, errors.New("private key is invalid")
	}

	var (
		skOut [Curve25519KeySize]byte
		skIn  [ed25519.PrivateKeySize]byte
	)

	copy(skIn[:], priv)

	extra25519.PrivateKeyToCurve25519(&skOut, &skIn)

	return skOut[:], nil
}

// Nonce makes a nonce using blake2b, to match the format expected by libsodium.
func Nonce(pub1, pub2 []byte) (*[NonceSize]byte, error) {
	var nonce [NonceSize]byte

	nonceWriter, err := blake2b.New(NonceSize, nil)
	if err != nil {
		return nil, err
	}

	if _, err = nonceWriter.Write(pub1); err != nil {
		return nil, err
	}

	if _, err = nonceWriter.Write(pub2); err != nil {
		return nil, err
	}

	copy(nonce[:], nonceWriter.Sum(nil))

	return &nonce, nil
}
