/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/bluele/gcache"
	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go/component/log"
	"golang.org/x/time/rate"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/transport"
	"github.com/hyperledger/aries-didcomm-agent/pkg/internal/logutil"
)

var logger = log.New("aries-framework/transport/http")

var errEnvelopeTooLarge = fmt.Errorf("envelope exceeds %d bytes", maxEnvelopeSize)

const (
	logComponent = "http-transport"

	// maxEnvelopeSize bounds a single inbound envelope.
	maxEnvelopeSize   = 4 << 20
	limiterCacheSize  = 4096
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// inboundOpts holds the options of an inbound HTTP handler.
type inboundOpts struct {
	rateLimit rate.Limit
	burst     int
	routes    []Route
}

// InboundOpt is an inbound HTTP transport option.
type InboundOpt func(opts *inboundOpts)

// Route is an extra handler served next to the DIDComm inbound path.
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// WithRateLimit throttles every remote host to perSecond envelopes, bursting to burst.
// A zero perSecond disables throttling.
func WithRateLimit(perSecond float64, burst int) InboundOpt {
	return func(opts *inboundOpts) {
		opts.rateLimit = rate.Limit(perSecond)
		opts.burst = burst
	}
}

// WithRoutes serves routes on the inbound server ahead of the DIDComm path.
func WithRoutes(routes ...Route) InboundOpt {
	return func(opts *inboundOpts) {
		opts.routes = append(opts.routes, routes...)
	}
}

// NewInboundHandler will create a new handler to enforce Did-Comm HTTP transport specs
// then routes processing to the mandatory 'msgHandler' argument.
//
// Arguments:
// * 'msgHandler' is called synchronously with the envelope bytes. A nil error answers
//    202 Accepted, an error answers 400 Bad Request.
func NewInboundHandler(msgHandler transport.InboundMessageHandler, opts ...InboundOpt) (http.Handler, error) {
	if msgHandler == nil {
		logutil.LogError(logger, logComponent, "newInboundHandler", "message handler function is nil")

		return nil, errors.New("failed to create NewInboundHandler")
	}

	o := &inboundOpts{}
	for _, opt := range opts {
		opt(o)
	}

	h := &inboundHandler{handle: msgHandler}

	if o.rateLimit > 0 {
		burst := o.burst
		if burst < 1 {
			burst = 1
		}

		h.limiters = gcache.New(limiterCacheSize).LRU().LoaderFunc(func(interface{}) (interface{}, error) {
			return rate.NewLimiter(o.rateLimit, burst), nil
		}).Build()
	}

	return h, nil
}

type inboundHandler struct {
	handle   transport.InboundMessageHandler
	limiters gcache.Cache
}

func (h *inboundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !validateHTTPMethod(w, r) {
		return
	}

	if !h.allow(r) {
		http.Error(w, "Too many requests", http.StatusTooManyRequests)

		return
	}

	body, err := readEnvelope(r.Body)
	if errors.Is(err, errEnvelopeTooLarge) {
		logutil.LogWarn(logger, logComponent, "readBody", err.Error(),
			logutil.CreateKeyValueString("remote", r.RemoteAddr))
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)

		return
	}

	if err != nil {
		logutil.LogError(logger, logComponent, "readBody", err.Error())
		http.Error(w, "Failed to read payload", http.StatusInternalServerError)

		return
	}

	if len(body) == 0 {
		http.Error(w, "Empty payload", http.StatusBadRequest)

		return
	}

	if err := h.handle(r.Context(), body); err != nil {
		logutil.LogWarn(logger, logComponent, "handleInbound", err.Error(),
			logutil.CreateKeyValueString("remote", r.RemoteAddr))
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *inboundHandler) allow(r *http.Request) bool {
	if h.limiters == nil {
		return true
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	l, err := h.limiters.Get(host)
	if err != nil {
		return true
	}

	return l.(*rate.Limiter).Allow()
}

// readEnvelope reads r whole. Envelopes over maxEnvelopeSize are rejected rather than truncated.
func readEnvelope(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxEnvelopeSize+1))
	if err != nil {
		return nil, err
	}

	if len(body) > maxEnvelopeSize {
		return nil, errEnvelopeTooLarge
	}

	return body, nil
}

// validateHTTPMethod validate HTTP method and content-type.
func validateHTTPMethod(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "HTTP Method not allowed", http.StatusMethodNotAllowed)

		return false
	}

	ct := r.Header.Get("Content-type")
	if !transport.IsEnvelopeMediaType(ct) {
		http.Error(w, fmt.Sprintf("Unsupported Content-type \"%s\"", ct), http.StatusUnsupportedMediaType)

		return false
	}

	return true
}

// Inbound http type.
type Inbound struct {
	externalAddr string
	server       *http.Server
	certFile     string
	keyFile      string
	opts         []InboundOpt
	listener     net.Listener
}

// NewInbound creates a new HTTP inbound transport instance.
func NewInbound(internalAddr, externalAddr, certFile, keyFile string, opts ...InboundOpt) (*Inbound, error) {
	if internalAddr == "" {
		return nil, errors.New("http address is mandatory")
	}

	if externalAddr == "" {
		externalAddr = "http://" + internalAddr
	}

	return &Inbound{
		externalAddr: externalAddr,
		certFile:     certFile,
		keyFile:      keyFile,
		opts:         opts,
		server:       &http.Server{Addr: internalAddr, ReadHeaderTimeout: readHeaderTimeout},
	}, nil
}

// Start the http server.
func (i *Inbound) Start(handler transport.InboundMessageHandler) error {
	h, err := NewInboundHandler(handler, i.opts...)
	if err != nil {
		return fmt.Errorf("http server start failed: %w", err)
	}

	o := &inboundOpts{}
	for _, opt := range i.opts {
		opt(o)
	}

	router := mux.NewRouter()

	for _, route := range o.routes {
		router.HandleFunc(route.Path, route.Handler).Methods(route.Method)
	}

	router.PathPrefix("/").Handler(h)

	i.server.Handler = router

	ln, err := net.Listen("tcp", i.server.Addr)
	if err != nil {
		return fmt.Errorf("http server listen on %s: %w", i.server.Addr, err)
	}

	i.listener = ln

	go func() {
		var serveErr error

		if i.certFile != "" && i.keyFile != "" {
			serveErr = i.server.ServeTLS(ln, i.certFile, i.keyFile)
		} else {
			serveErr = i.server.Serve(ln)
		}

		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Errorf("http server with address [%s] stopped: %s", i.server.Addr, serveErr)
		}
	}()

	return nil
}

// Stop the http server.
func (i *Inbound) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := i.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	return nil
}

// Endpoint provides the http connection details.
func (i *Inbound) Endpoint() string {
	return i.externalAddr
}

// ListenAddr is the bound address once started, useful when listening on port 0.
func (i *Inbound) ListenAddr() string {
	if i.listener == nil {
		return i.server.Addr
	}

	return i.listener.Addr().String()
}
