/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package http

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/transport"
	"github.com/hyperledger/aries-didcomm-agent/pkg/internal/logutil"
)

// PollPathFormat is the mediator path edge agents read their queued messages from.
const PollPathFormat = "/api/connections/%s/message"

const (
	defaultPollInterval = time.Second
	maxPollInterval     = 30 * time.Second
)

// errEmptyInbox is returned by a poll that found nothing.
var errEmptyInbox = errors.New("inbox is empty")

// Poller pulls queued envelopes for one verkey from a mediator and hands them to a handler.
// Failed and empty polls back off exponentially up to 30s, a delivered message resets the delay.
type Poller struct {
	client   *http.Client
	url      string
	verKey   string
	interval time.Duration
	signer   PollSigner
	now      func() time.Time
}

// PollerOpt configures a Poller.
type PollerOpt func(*Poller)

// WithPollHTTPClient sets the client used for polling.
func WithPollHTTPClient(c *http.Client) PollerOpt {
	return func(p *Poller) {
		p.client = c
	}
}

// WithPollInterval sets the initial delay between polls.
func WithPollInterval(d time.Duration) PollerOpt {
	return func(p *Poller) {
		p.interval = d
	}
}

// NewPoller creates a Poller reading the messages of verKey at mediatorURL.
func NewPoller(mediatorURL, verKey string, opts ...PollerOpt) (*Poller, error) {
	if mediatorURL == "" || verKey == "" {
		return nil, errors.New("mediator url and verkey are mandatory")
	}

	p := &Poller{
		client:   &http.Client{Timeout: maxPollInterval},
		url:      strings.TrimSuffix(mediatorURL, "/") + fmt.Sprintf(PollPathFormat, url.PathEscape(verKey)),
		verKey:   verKey,
		interval: defaultPollInterval,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Poll reads at most one message and passes it to handler. It returns false when the inbox is empty.
func (p *Poller) Poll(ctx context.Context, handler transport.InboundMessageHandler) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return false, errors.Wrap(err, "build poll request")
	}

	if p.signer != nil {
		if err := SignPollRequest(req, p.verKey, p.signer, p.now()); err != nil {
			return false, err
		}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false, errors.Wrapf(err, "poll [%s]", p.url)
	}

	defer closeBody(resp.Body)

	switch resp.StatusCode {
	case http.StatusNoContent:
		return false, nil
	case http.StatusOK:
	default:
		return false, errors.Errorf("poll [%s]: status %s", p.url, resp.Status)
	}

	body, err := readEnvelope(resp.Body)
	if err != nil {
		return false, errors.Wrap(err, "read polled message")
	}

	if len(body) == 0 {
		return false, nil
	}

	if err := handler(ctx, body); err != nil {
		return true, errors.Wrap(err, "handle polled message")
	}

	return true, nil
}

// Run polls until ctx is done.
func (p *Poller) Run(ctx context.Context, handler transport.InboundMessageHandler) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.interval
	b.MaxInterval = maxPollInterval
	b.MaxElapsedTime = 0

	bctx := backoff.WithContext(b, ctx)

	for {
		err := backoff.Retry(func() error {
			got, err := p.Poll(ctx, handler)
			if err != nil {
				logutil.LogWarn(logger, logComponent, "poll", err.Error(), logutil.CreateKeyValueString("url", p.url))

				return err
			}

			if !got {
				return errEmptyInbox
			}

			return nil
		}, bctx)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			logger.Debugf("poll of %s stopped: %v", p.url, err)

			return
		}
	}
}
