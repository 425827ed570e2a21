/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package didkeyutil

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/multiformats/go-multibase"
)

const (
	didKeyPrefix = "did:key:"
	// ED25519PubKeyMultiCodec for Ed25519 public key in multicodec table.
	ED25519PubKeyMultiCodec = 0xed
)

// NormalizeVerKey returns the base58 verkey for a base58 key or a did:key reference.
func NormalizeVerKey(key string) (string, error) {
	if !strings.HasPrefix(key, didKeyPrefix) {
		if len(base58.Decode(key)) != ed25519.PublicKeySize {
			return "", fmt.Errorf("invalid verkey %q", key)
		}

		return key, nil
	}

	methodID := strings.TrimPrefix(key, didKeyPrefix)
	if i := strings.IndexByte(methodID, '#'); i >= 0 {
		methodID = methodID[:i]
	}

	enc, data, err := multibase.Decode(methodID)
	if err != nil {
		return "", fmt.Errorf("invalid did:key %q: %w", key, err)
	}

	if enc != multibase.Base58BTC {
		return "", fmt.Errorf("not a valid did:key identifier (not a base58btc multicodec): %s", key)
	}

	code, n := binary.Uvarint(data)
	if n <= 0 || code != ED25519PubKeyMultiCodec {
		return "", fmt.Errorf("did:key %s is not an ed25519 key", key)
	}

	if len(data[n:]) != ed25519.PublicKeySize {
		return "", fmt.Errorf("did:key %s has an invalid key size", key)
	}

	return base58.Encode(data[n:]), nil
}

// NormalizeVerKeys applies NormalizeVerKey to every key.
func NormalizeVerKeys(keys []string) ([]string, error) {
	out := make([]string, 0, len(keys))

	for _, k := range keys {
		n, err := NormalizeVerKey(k)
		if err != nil {
			return nil, err
		}

		out = append(out, n)
	}

	return out, nil
}
