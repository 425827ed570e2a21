/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package http

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/btcsuite/btcutil/base58"
	"github.com/pkg/errors"

	"github.com/hyperledger/aries-didcomm-agent/pkg/internal/didkeyutil"
)

// Headers carrying the proof that a poll comes from the holder of the polled verkey.
const (
	PollTimestampHeader = "X-Didcomm-Timestamp"
	PollSignatureHeader = "X-Didcomm-Signature"
)

// maxPollClockSkew bounds how far a poll timestamp may be from the mediator's clock.
const maxPollClockSkew = 2 * time.Minute

// ErrPollUnauthorized is returned when a poll request is not signed by the polled verkey.
var ErrPollUnauthorized = errors.New("poll request not signed by the polled verkey")

// PollSigner signs data with the private key of verKey.
type PollSigner func(data []byte, verKey string) ([]byte, error)

// WithPollSigner signs every poll with the key being polled for.
func WithPollSigner(signer PollSigner) PollerOpt {
	return func(p *Poller) {
		p.signer = signer
	}
}

// SignPollRequest adds the timestamp and signature headers proving req is sent by the holder of verKey.
func SignPollRequest(req *http.Request, verKey string, signer PollSigner, now time.Time) error {
	ts := strconv.FormatInt(now.Unix(), 10)

	signature, err := signer(pollSigningInput(req, ts), verKey)
	if err != nil {
		return errors.Wrap(err, "sign poll request")
	}

	req.Header.Set(PollTimestampHeader, ts)
	req.Header.Set(PollSignatureHeader, base64.RawURLEncoding.EncodeToString(signature))

	return nil
}

// VerifyPollRequest checks that req carries a fresh signature by verKey over its method and path.
func VerifyPollRequest(req *http.Request, verKey string, now time.Time) error {
	key, err := didkeyutil.NormalizeVerKey(verKey)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPollUnauthorized, err.Error())
	}

	ts := req.Header.Get(PollTimestampHeader)

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrPollUnauthorized)
	}

	skew := now.Sub(time.Unix(unix, 0))
	if skew > maxPollClockSkew || skew < -maxPollClockSkew {
		return fmt.Errorf("%w: timestamp out of range", ErrPollUnauthorized)
	}

	signature, err := base64.RawURLEncoding.DecodeString(req.Header.Get(PollSignatureHeader))
	if err != nil {
		return fmt.Errorf("%w: bad signature encoding", ErrPollUnauthorized)
	}

	if !ed25519.Verify(base58.Decode(key), pollSigningInput(req, ts), signature) {
		return ErrPollUnauthorized
	}

	return nil
}

func pollSigningInput(req *http.Request, ts string) []byte {
	return []byte(req.Method + " " + req.URL.EscapedPath() + " " + ts)
}
