/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

import "errors"

// Protocol errors. They are never retried.
var (
	ErrConnectionNotFound     = errors.New("connection not found")
	ErrInvalidInvitation      = errors.New("invalid invitation")
	ErrMalformedRequest       = errors.New("malformed connection request")
	ErrMalformedResponse      = errors.New("malformed connection response")
	ErrSignatureInvalid       = errors.New("connection signature invalid")
	ErrUnsupportedMessageType = errors.New("unsupported message type")
	ErrDuplicateRoute         = errors.New("route already registered")
	ErrRouteNotFound          = errors.New("route not found")
	ErrUnsupportedRouteAction = errors.New("unsupported route action")
	ErrMissingForwardTarget   = errors.New("forward message has no target")
	ErrMissingEndpoint        = errors.New("destination has no usable endpoint")
)

var errorCodes = []struct { //nolint:gochecknoglobals
	err  error
	code string
}{
	{ErrConnectionNotFound, "connection_not_found"},
	{ErrInvalidInvitation, "invalid_invitation"},
	{ErrMalformedRequest, "malformed_request"},
	{ErrMalformedResponse, "malformed_response"},
	{ErrSignatureInvalid, "signature_invalid"},
	{ErrUnsupportedMessageType, "unsupported_message_type"},
	{ErrDuplicateRoute, "duplicate_route"},
	{ErrRouteNotFound, "route_not_found"},
	{ErrUnsupportedRouteAction, "unsupported_route_action"},
	{ErrMissingForwardTarget, "missing_forward_target"},
	{ErrMissingEndpoint, "missing_endpoint"},
}

// ErrorCode returns a stable short code for err, "internal" for anything outside the protocol taxonomy.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}

	return "internal"
}
