/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package legacykms

import (
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcutil/base58"
	"golang.org/x/crypto/nacl/box"

	"github.com/hyperledger/aries-didcomm-agent/pkg/internal/cryptoutil"
)

// CryptoBox provides an elliptic-curve-based authenticated encryption scheme
//
// Payloads are encrypted using symmetric encryption (XSalsa20Poly1305)
// using a shared key derived from a shared secret created by
// Curve25519 Elliptic Curve Diffie-Hellman key exchange.
//
// CryptoBox reads secret keys from the KMS for encryption/decryption, so clients do not need to see
// the secrets themselves. Own keys are always identified by their Ed25519 verkey.
type CryptoBox struct {
	km *BaseKMS
}

// NewCryptoBox creates a CryptoBox which provides crypto box encryption using the given KMS's keypairs.
func NewCryptoBox(w KeyManager) (*CryptoBox, error) {
	wa, ok := w.(*BaseKMS)
	if !ok {
		return nil, fmt.Errorf("cannot use parameter as KMS")
	}

	return &CryptoBox{km: wa}, nil
}

// Easy seals a message with a provided nonce
// theirPub is used as a public key, while myVerKey is used to identify the private key that should be used.
func (b *CryptoBox) Easy(payload, nonce, theirPub, myVerKey []byte) ([]byte, error) {
	priv, err := b.encPrivKey(myVerKey)
	if err != nil {
		return nil, err
	}

	var (
		recPubBytes [cryptoutil.Curve25519KeySize]byte
		nonceBytes  [cryptoutil.NonceSize]byte
	)

	copy(recPubBytes[:], theirPub)
	copy(nonceBytes[:], nonce)

	return box.Seal(nil, payload, &nonceBytes, &recPubBytes, priv), nil
}

// EasyOpen unseals a message sealed with Easy, where the nonce is provided
// theirPub is the public key used to decrypt directly, while myVerKey is used to identify the private key to be used.
func (b *CryptoBox) EasyOpen(cipherText, nonce, theirPub, myVerKey []byte) ([]byte, error) {
	priv, err := b.encPrivKey(myVerKey)
	if err != nil {
		return nil, err
	}

	var (
		sendPubBytes [cryptoutil.Curve25519KeySize]byte
		nonceBytes   [cryptoutil.NonceSize]byte
	)

	copy(sendPubBytes[:], theirPub)
	copy(nonceBytes[:], nonce)

	out, success := box.Open(nil, cipherText, &nonceBytes, &sendPubBytes, priv)
	if !success {
		return nil, errors.New("failed to unpack")
	}

	return out, nil
}

// Seal seals a payload using the equivalent of libsodium box_seal
//
// Generates an ephemeral keypair to use for the sender, and includes
// the ephemeral sender public key in the message.
func (b *CryptoBox) Seal(payload, theirPub []byte, randSource io.Reader) ([]byte, error) {
	return Seal(payload, theirPub, randSource)
}

// SealOpen decrypts a payload encrypted with Seal
//
// Reads the ephemeral sender public key, prepended to a properly-formatted message,
// and uses that along with the recipient private key corresponding to myVerKey to decrypt the message.
func (b *CryptoBox) SealOpen(cipherText, myVerKey []byte) ([]byte, error) {
	if len(cipherText) < cryptoutil.Curve25519KeySize {
		return nil, errors.New("message too short")
	}

	kpc, err := b.km.getKeyPairSet(base58.Encode(myVerKey))
	if err != nil {
		return nil, err
	}

	var (
		epk  [cryptoutil.Curve25519KeySize]byte
		priv [cryptoutil.Curve25519KeySize]byte
	)

	copy(epk[:], cipherText[:cryptoutil.Curve25519KeySize])
	copy(priv[:], kpc.EncKeyPair.Priv)

	nonce, err := cryptoutil.Nonce(epk[:], kpc.EncKeyPair.Pub)
	if err != nil {
		return nil, err
	}

	out, success := box.Open(nil, cipherText[cryptoutil.Curve25519KeySize:], nonce, &epk, &priv)
	if !success {
		return nil, errors.New("failed to unpack")
	}

	return out, nil
}

// Seal is the keyless half of CryptoBox.Seal, usable without a KMS.
func Seal(payload, theirPub []byte, randSource io.Reader) ([]byte, error) {
	epk, esk, err := box.GenerateKey(randSource)
	if err != nil {
		return nil, err
	}

	var recPubBytes [cryptoutil.Curve25519KeySize]byte

	copy(recPubBytes[:], theirPub)

	nonce, err := cryptoutil.Nonce(epk[:], theirPub)
	if err != nil {
		return nil, err
	}

	return box.Seal(epk[:], payload, nonce, &recPubBytes, esk), nil
}

func (b *CryptoBox) encPrivKey(myVerKey []byte) (*[cryptoutil.Curve25519KeySize]byte, error) {
	kpc, err := b.km.getKeyPairSet(base58.Encode(myVerKey))
	if err != nil {
		return nil, err
	}

	var priv [cryptoutil.Curve25519KeySize]byte

	copy(priv[:], kpc.EncKeyPair.Priv)

	return &priv, nil
}
