/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

import (
	"github.com/hyperledger/aries-didcomm-agent/pkg/doc/did"
)

// Destination provides the recipientKeys, routingKeys, and serviceEndpoint for an outbound message.
type Destination struct {
	RecipientKeys   []string `json:"recipientKeys,omitempty"`
	ServiceEndpoint string   `json:"serviceEndpoint,omitempty"`
	RoutingKeys     []string `json:"routingKeys,omitempty"`
}

// CreateDestination makes a Destination from the did-communication service block of a DID doc.
func CreateDestination(doc *did.Doc) (*Destination, error) {
	if doc == nil {
		return nil, ErrMissingEndpoint
	}

	svc, ok := did.LookupService(doc, did.DIDCommServiceType)
	if !ok || svc.ServiceEndpoint == "" {
		return nil, ErrMissingEndpoint
	}

	return &Destination{
		RecipientKeys:   append([]string(nil), svc.RecipientKeys...),
		ServiceEndpoint: svc.ServiceEndpoint,
		RoutingKeys:     append([]string(nil), svc.RoutingKeys...),
	}, nil
}

// Clone returns a deep copy of the destination.
func (d *Destination) Clone() *Destination {
	if d == nil {
		return nil
	}

	return &Destination{
		RecipientKeys:   append([]string(nil), d.RecipientKeys...),
		ServiceEndpoint: d.ServiceEndpoint,
		RoutingKeys:     append([]string(nil), d.RoutingKeys...),
	}
}
