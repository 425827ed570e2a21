/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package did

import "fmt"

// NewAgentDoc builds the single-service DID doc an agent publishes for one connection.
func NewAgentDoc(id, verKey, endpoint string, routingKeys []string) *Doc {
	keyID := fmt.Sprintf("%s#keys-1", id)

	if routingKeys == nil {
		routingKeys = []string{}
	}

	return BuildDoc(
		WithID(id),
		WithPublicKey([]PublicKey{{
			ID:              keyID,
			Type:            Ed25519VerificationKey2018,
			Controller:      id,
			PublicKeyBase58: verKey,
		}}),
		WithAuthentication([]Auth{{Type: Ed25519VerificationKey2018, PublicKey: keyID}}),
		WithService([]Service{{
			ID:              fmt.Sprintf("%s#%s", id, DIDCommServiceType),
			Type:            DIDCommServiceType,
			RecipientKeys:   []string{verKey},
			RoutingKeys:     routingKeys,
			ServiceEndpoint: endpoint,
		}}),
	)
}

// LookupService returns the service from the given DIDDoc matching the given service type.
func LookupService(didDoc *Doc, serviceType string) (*Service, bool) {
	const notFound = -1
	index := notFound

	for i := range didDoc.Service {
		if didDoc.Service[i].Type == serviceType {
			if index == notFound || didDoc.Service[index].Priority > didDoc.Service[i].Priority {
				index = i
			}
		}
	}

	if index == notFound {
		return nil, false
	}

	return &didDoc.Service[index], true
}

// LookupPublicKey returns the public key with the given id from the given DID Doc.
func LookupPublicKey(id string, didDoc *Doc) (*PublicKey, bool) {
	for i := range didDoc.PublicKey {
		if didDoc.PublicKey[i].ID == id {
			return &didDoc.PublicKey[i], true
		}
	}

	return nil, false
}
