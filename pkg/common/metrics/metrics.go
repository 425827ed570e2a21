/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package metrics holds the prometheus collectors of the agent.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aries_agent"

var (
	registry = prometheus.NewRegistry() //nolint:gochecknoglobals

	receivedMessages = prometheus.NewCounterVec( //nolint:gochecknoglobals
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "received_messages_total",
			Help:      "Number of inbound messages dispatched, by message kind",
		},
		[]string{"kind"},
	)
	dispatchErrors = prometheus.NewCounterVec( //nolint:gochecknoglobals
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_errors_total",
			Help:      "Number of inbound messages that failed, by error code",
		},
		[]string{"code"},
	)
	signatureFailures = prometheus.NewCounter( //nolint:gochecknoglobals
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signature_failures_total",
			Help:      "Number of connection responses rejected for their signature",
		},
	)
	sentMessages = prometheus.NewCounterVec( //nolint:gochecknoglobals
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sent_messages_total",
			Help:      "Number of outbound messages, by result",
		},
		[]string{"result"},
	)
	forwardLayers = prometheus.NewCounter( //nolint:gochecknoglobals
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forward_layers_total",
			Help:      "Number of forward envelopes wrapped around outbound messages",
		},
	)
)

func init() { //nolint:gochecknoinits
	registry.MustRegister(receivedMessages, dispatchErrors, signatureFailures, sentMessages, forwardLayers)
}

// MessageReceived counts a dispatched message of kind.
func MessageReceived(kind string) {
	receivedMessages.WithLabelValues(kind).Inc()
}

// DispatchFailed counts a failed inbound message by error code.
func DispatchFailed(code string) {
	dispatchErrors.WithLabelValues(code).Inc()
}

// SignatureRejected counts a rejected connection signature.
func SignatureRejected() {
	signatureFailures.Inc()
}

// MessageSent counts an outbound message; ok tells whether the transport took it.
func MessageSent(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}

	sentMessages.WithLabelValues(result).Inc()
}

// ForwardWrapped counts n forward layers.
func ForwardWrapped(n int) {
	forwardLayers.Add(float64(n))
}

// Handler serves the collectors in the prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
