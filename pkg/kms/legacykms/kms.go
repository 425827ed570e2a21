/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package legacykms

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-didcomm-agent/pkg/internal/cryptoutil"
)

const keyStoreNamespace = "keystore"

// KeyManager is the key API consumed by the legacy packer and the wallet.
type KeyManager interface {
	CreateKeySet() (string, string, error)
	CreateKeySetFromSeed(seed []byte) (string, string, error)
	FindVerKey(candidateKeys []string) (int, error)
	SignMessage(message []byte, fromVerKey string) ([]byte, error)
	GetEncryptionKey(verKey []byte) ([]byte, error)
}

// KeyPair is a public/private key pair.
type KeyPair struct {
	Pub  []byte `json:"pub,omitempty"`
	Priv []byte `json:"priv,omitempty"`
}

// MessagingKeys holds the signing key pair together with its Curve25519 conversion.
type MessagingKeys struct {
	SigKeyPair *KeyPair `json:"sigKeyPair,omitempty"`
	EncKeyPair *KeyPair `json:"encKeyPair,omitempty"`
}

// BaseKMS Base Key Management Service implementation.
type BaseKMS struct {
	keystore storage.Store
}

// New return new instance of KMS implementation.
func New(p storage.Provider) (*BaseKMS, error) {
	ks, err := p.OpenStore(keyStoreNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to OpenStore for '%s', cause: %w", keyStoreNamespace, err)
	}

	return &BaseKMS{keystore: ks}, nil
}

// CreateKeySet creates a new public/private encryption and signature keypairs combo.
// returns:
//
//	string: encryption public key base58 encoded
//	string: signature public key (verkey) base58 encoded
//	error: in case of errors
func (w *BaseKMS) CreateKeySet() (string, string, error) {
	sigPub, sigPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("failed to Generate SigKeyPair: %w", err)
	}

	return w.storeKeySet(sigPub, sigPriv)
}

// CreateKeySetFromSeed derives the key set deterministically from a 32 byte seed.
func (w *BaseKMS) CreateKeySetFromSeed(seed []byte) (string, string, error) {
	if len(seed) != ed25519.SeedSize {
		return "", "", fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}

	sigPriv := ed25519.NewKeyFromSeed(seed)

	return w.storeKeySet(sigPriv.Public().(ed25519.PublicKey), sigPriv)
}

func (w *BaseKMS) storeKeySet(sigPub ed25519.PublicKey, sigPriv ed25519.PrivateKey) (string, string, error) {
	encPub, err := cryptoutil.PublicEd25519toCurve25519(sigPub)
	if err != nil {
		return "", "", fmt.Errorf("failed to create encPub: %w", err)
	}

	encPriv, err := cryptoutil.SecretEd25519toCurve25519(sigPriv)
	if err != nil {
		return "", "", fmt.Errorf("failed to create encPriv: %w", err)
	}

	kpCombo := &MessagingKeys{
		SigKeyPair: &KeyPair{Pub: sigPub, Priv: sigPriv},
		EncKeyPair: &KeyPair{Pub: encPub, Priv: encPriv},
	}

	sigBase58Pub := base58.Encode(sigPub)

	if err := persist(w.keystore, sigBase58Pub, kpCombo); err != nil {
		return "", "", err
	}

	return base58.Encode(encPub), sigBase58Pub, nil
}

// SignMessage sign a message using the private key associated with a given verification key.
func (w *BaseKMS) SignMessage(message []byte, fromVerKey string) ([]byte, error) {
	kpc, err := w.getKeyPairSet(fromVerKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}

	return ed25519.Sign(kpc.SigKeyPair.Priv, message), nil
}

// FindVerKey selects a signing key which is present in candidateKeys that is present in the KMS.
func (w *BaseKMS) FindVerKey(candidateKeys []string) (int, error) {
	for i, key := range candidateKeys {
		_, err := w.getKeyPairSet(key)
		if err != nil {
			if errors.Is(err, cryptoutil.ErrKeyNotFound) {
				continue
			}

			return -1, fmt.Errorf("failed from getKeyPairSet: %w", err)
		}

		return i, nil
	}

	return -1, cryptoutil.ErrKeyNotFound
}

// GetEncryptionKey will return the public encryption key corresponding to the public verKey argument.
func (w *BaseKMS) GetEncryptionKey(verKey []byte) ([]byte, error) {
	kpCombo, err := w.getKeyPairSet(base58.Encode(verKey))
	if err != nil {
		return nil, err
	}

	return kpCombo.EncKeyPair.Pub, nil
}

// getKeyPairSet get encryption & signature key pairs combo.
func (w *BaseKMS) getKeyPairSet(verKey string) (*MessagingKeys, error) {
	if verKey == "" {
		return nil, cryptoutil.ErrKeyNotFound
	}

	bytes, err := w.keystore.Get(verKey)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, cryptoutil.ErrKeyNotFound
		}

		return nil, err
	}

	var key MessagingKeys

	if err := json.Unmarshal(bytes, &key); err != nil {
		return nil, fmt.Errorf("failed unmarshal to key struct: %w", err)
	}

	if key.SigKeyPair == nil || key.EncKeyPair == nil {
		return nil, fmt.Errorf("incomplete key set for %s", verKey)
	}

	return &key, nil
}

// persist marshals value and saves it in store for given key.
func persist(store storage.Store, key string, value interface{}) error {
	bytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal : %w", err)
	}

	if err := store.Put(key, bytes); err != nil {
		return fmt.Errorf("failed to save in store: %w", err)
	}

	return nil
}
