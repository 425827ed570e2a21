/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cmdutil

import (
	"net/http"

	"github.com/hyperledger/aries-didcomm-agent/pkg/controller/command"
)

// HTTPHandler binds an http.HandlerFunc to a REST path and method.
type HTTPHandler struct {
	path   string
	method string
	handle http.HandlerFunc
}

// NewHTTPHandler returns a REST handler for path and method.
func NewHTTPHandler(path, method string, handle http.HandlerFunc) *HTTPHandler {
	return &HTTPHandler{path: path, method: method, handle: handle}
}

// Path of the route.
func (h *HTTPHandler) Path() string { return h.path }

// Method of the route.
func (h *HTTPHandler) Method() string { return h.method }

// Handle returns the handler func.
func (h *HTTPHandler) Handle() http.HandlerFunc { return h.handle }

// CommandHandler binds a command.Exec to a controller name and method, for callers that
// drive the agent without HTTP.
type CommandHandler struct {
	name   string
	method string
	handle command.Exec
}

// NewCommandHandler returns a command handler.
func NewCommandHandler(name, method string, exec command.Exec) *CommandHandler {
	return &CommandHandler{name: name, method: method, handle: exec}
}

// Name of the controller.
func (c *CommandHandler) Name() string { return c.name }

// Method of the controller.
func (c *CommandHandler) Method() string { return c.method }

// Handle returns the command func.
func (c *CommandHandler) Handle() command.Exec { return c.handle }
