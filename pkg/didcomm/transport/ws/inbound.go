/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hyperledger/aries-framework-go/component/log"
	"nhooyr.io/websocket"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/transport"
)

var logger = log.New("aries-framework/ws")

const (
	processFailureErrMsg = "failed to process the message"
	shutdownTimeout      = 5 * time.Second
	readHeaderTimeout    = 10 * time.Second
)

// Inbound http(ws) type.
type Inbound struct {
	externalAddr string
	server       *http.Server
	listener     net.Listener
}

// NewInbound creates a new WebSocket inbound transport instance.
func NewInbound(internalAddr, externalAddr string) (*Inbound, error) {
	if internalAddr == "" {
		return nil, errors.New("websocket address is mandatory")
	}

	if externalAddr == "" {
		externalAddr = "ws://" + internalAddr
	}

	return &Inbound{
		externalAddr: externalAddr,
		server:       &http.Server{Addr: internalAddr, ReadHeaderTimeout: readHeaderTimeout},
	}, nil
}

// Start the http(ws) server.
func (i *Inbound) Start(handler transport.InboundMessageHandler) error {
	h, err := newInboundHandler(handler)
	if err != nil {
		return fmt.Errorf("websocket server start failed: %w", err)
	}

	i.server.Handler = h

	ln, err := net.Listen("tcp", i.server.Addr)
	if err != nil {
		return fmt.Errorf("websocket server listen on %s: %w", i.server.Addr, err)
	}

	i.listener = ln

	go func() {
		if err := i.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("websocket server with address [%s] stopped: %s", i.server.Addr, err)
		}
	}()

	return nil
}

// Stop the http(ws) server.
func (i *Inbound) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := i.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("websocket server shutdown failed: %w", err)
	}

	return nil
}

// Endpoint provides the http(ws) connection details.
func (i *Inbound) Endpoint() string {
	return i.externalAddr
}

// ListenAddr is the bound address once started.
func (i *Inbound) ListenAddr() string {
	if i.listener == nil {
		return i.server.Addr
	}

	return i.listener.Addr().String()
}

func newInboundHandler(handler transport.InboundMessageHandler) (http.Handler, error) {
	if handler == nil {
		logger.Errorf("Error creating a new inbound handler: message handler function is nil")

		return nil, errors.New("creation of inbound handler failed")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		processRequest(w, r, handler)
	}), nil
}

// processRequest answers every envelope with an empty text frame on success
// and processFailureErrMsg on failure.
func processRequest(w http.ResponseWriter, r *http.Request, handler transport.InboundMessageHandler) {
	c, err := Accept(w, r)
	if err != nil {
		logger.Errorf("failed to upgrade the connection : %v", err)

		return
	}

	defer closeConn(c)

	ctx := r.Context()

	for {
		_, message, err := c.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				logger.Debugf("websocket read ended: %v", err)
			}

			return
		}

		resp := ""

		if err := handler(ctx, message); err != nil {
			logger.Warnf("incoming msg processing failed: %v", err)

			resp = processFailureErrMsg
		}

		if err := c.Write(ctx, websocket.MessageText, []byte(resp)); err != nil {
			logger.Errorf("error writing the message: %v", err)

			return
		}
	}
}

func closeConn(c *websocket.Conn) {
	err := c.Close(websocket.StatusNormalClosure, "closing the connection")
	if err != nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		logger.Debugf("connection close: %v", err)
	}
}
