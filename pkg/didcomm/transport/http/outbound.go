/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/transport"
)

const (
	httpScheme  = "http://"
	httpsScheme = "https://"
)

// outboundCommHTTPOpts holds options for the HTTP transport implementation of CommTransport
// it has an http.Client instance.
type outboundCommHTTPOpts struct {
	client  *http.Client
	timeout time.Duration
}

// OutboundHTTPOpt is an outbound HTTP transport option.
type OutboundHTTPOpt func(opts *outboundCommHTTPOpts)

// WithOutboundHTTPClient option is for creating an Outbound HTTP transport using an http.Client instance.
func WithOutboundHTTPClient(client *http.Client) OutboundHTTPOpt {
	return func(opts *outboundCommHTTPOpts) {
		opts.client = client
	}
}

// WithOutboundTimeout option is for creating an Outbound HTTP transport using a client timeout value.
func WithOutboundTimeout(timeout time.Duration) OutboundHTTPOpt {
	return func(opts *outboundCommHTTPOpts) {
		opts.timeout = timeout
	}
}

// WithOutboundTLSConfig option is for creating an Outbound HTTP transport using a tls.Config instance.
func WithOutboundTLSConfig(tlsConfig *tls.Config) OutboundHTTPOpt {
	return func(opts *outboundCommHTTPOpts) {
		opts.client = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: tlsConfig,
			},
		}
	}
}

// OutboundHTTPClient represents the Outbound HTTP transport instance.
type OutboundHTTPClient struct {
	client *http.Client
}

// NewOutbound creates a new instance of Outbound HTTP transport to Post requests to other Agents.
func NewOutbound(opts ...OutboundHTTPOpt) *OutboundHTTPClient {
	clOpts := &outboundCommHTTPOpts{}

	for _, opt := range opts {
		opt(clOpts)
	}

	if clOpts.client == nil {
		clOpts.client = &http.Client{}
	}

	if clOpts.timeout > 0 {
		clOpts.client.Timeout = clOpts.timeout
	}

	return &OutboundHTTPClient{client: clOpts.client}
}

// Send posts the envelope to url (client side).
func (cs *OutboundHTTPClient) Send(ctx context.Context, data []byte, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return errors.Wrapf(err, "build request for agent at [%s]", url)
	}

	req.Header.Set("Content-Type", transport.MediaTypeLegacyEnvelope)

	resp, err := cs.client.Do(req)
	if err != nil {
		logger.Errorf("posting DID envelope to agent at [%s] failed: %v", url, err)

		return errors.Wrapf(err, "post to agent at [%s]", url)
	}

	defer closeBody(resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck

		return errors.Errorf("received non success POST HTTP status from agent at [%s]: status: %v %s",
			url, resp.Status, strings.TrimSpace(string(body)))
	}

	return nil
}

// Accept reports whether url uses the http or https scheme.
func (cs *OutboundHTTPClient) Accept(url string) bool {
	return strings.HasPrefix(url, httpScheme) || strings.HasPrefix(url, httpsScheme)
}

const maxErrorBody = 512

func closeBody(body io.Closer) {
	if err := body.Close(); err != nil {
		logger.Errorf("closing response body failed: %v", err)
	}
}
