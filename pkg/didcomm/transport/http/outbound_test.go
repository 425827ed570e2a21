/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package http

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/transport"
)

func TestOutboundHTTPClient(t *testing.T) {
	var gotType, gotBody string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		gotType, gotBody = r.Header.Get("Content-Type"), string(body)

		if gotBody == "bad" {
			http.Error(w, "bad request", http.StatusBadRequest)

			return
		}

		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	out := NewOutbound(WithOutboundTimeout(time.Second))

	t.Run("accept", func(t *testing.T) {
		require.True(t, out.Accept("http://agent"))
		require.True(t, out.Accept("https://agent"))
		require.False(t, out.Accept("ws://agent"))
		require.False(t, out.Accept("didcomm:inbox"))
	})

	t.Run("success", func(t *testing.T) {
		require.NoError(t, out.Send(context.Background(), []byte("envelope"), server.URL))
		require.Equal(t, transport.MediaTypeLegacyEnvelope, gotType)
		require.Equal(t, "envelope", gotBody)
	})

	t.Run("non success status", func(t *testing.T) {
		err := out.Send(context.Background(), []byte("bad"), server.URL)
		require.ErrorContains(t, err, "non success POST HTTP status")
		require.ErrorContains(t, err, "bad request")
	})

	t.Run("unreachable", func(t *testing.T) {
		err := out.Send(context.Background(), []byte("x"), "http://127.0.0.1:1")
		require.ErrorContains(t, err, "post to agent")
	})

	t.Run("invalid url", func(t *testing.T) {
		err := out.Send(context.Background(), []byte("x"), "http://bad host")
		require.ErrorContains(t, err, "build request")
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		require.Error(t, out.Send(ctx, []byte("x"), server.URL))
	})

	t.Run("tls", func(t *testing.T) {
		tlsServer := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer tlsServer.Close()

		require.Error(t, NewOutbound().Send(context.Background(), []byte("x"), tlsServer.URL))

		tlsOut := NewOutbound(WithOutboundTLSConfig(&tls.Config{InsecureSkipVerify: true})) //nolint:gosec
		require.NoError(t, tlsOut.Send(context.Background(), []byte("x"), tlsServer.URL))

		require.NoError(t, NewOutbound(WithOutboundHTTPClient(tlsServer.Client())).
			Send(context.Background(), []byte("x"), tlsServer.URL))
	})
}
