/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-didcomm-agent/pkg/doc/did"
)

// Request defines a2a connection request.
type Request struct {
	Type       string      `json:"@type,omitempty"`
	ID         string      `json:"@id,omitempty"`
	Label      string      `json:"label,omitempty"`
	Connection *Connection `json:"connection,omitempty"`
}

// Response defines a2a connection response as it travels, with the connection replaced by its signature.
type Response struct {
	Type                string               `json:"@type,omitempty"`
	ID                  string               `json:"@id,omitempty"`
	Thread              *decorator.Thread    `json:"~thread,omitempty"`
	ConnectionSignature *decorator.Signature `json:"connection~sig,omitempty"`
}

// unsignedResponse is a response before its connection field is signed.
type unsignedResponse struct {
	Type       string            `json:"@type,omitempty"`
	ID         string            `json:"@id,omitempty"`
	Thread     *decorator.Thread `json:"~thread,omitempty"`
	Connection *Connection       `json:"connection,omitempty"`
}

// Connection defines connection body of connection request and response.
type Connection struct {
	DID    string   `json:"did,omitempty"`
	DIDDoc *did.Doc `json:"did_doc,omitempty"`
}
