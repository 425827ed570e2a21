/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package did

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	// Context of the DID document.
	Context = "https://w3id.org/did/v1"
	// DIDCommServiceType is the service type carrying DIDComm endpoints.
	DIDCommServiceType = "did-communication"
	// Ed25519VerificationKey2018 is the public key type of agent verkeys.
	Ed25519VerificationKey2018 = "Ed25519VerificationKey2018"
)

// DID is parsed according to the generic syntax: https://w3c.github.io/did-core/#generic-did-syntax
type DID struct {
	Scheme           string // Scheme is always "did"
	Method           string // Method is the specific DID methods
	MethodSpecificID string // MethodSpecificID is the unique ID computed or assigned by the DID method
}

// String returns a string representation of this DID.
func (d *DID) String() string {
	return fmt.Sprintf("%s:%s:%s", d.Scheme, d.Method, d.MethodSpecificID)
}

var didRegex = regexp.MustCompile(`^did:[a-z0-9]+:(:+|[:a-zA-Z0-9-_\.]+)*[a-zA-Z0-9-_\.]+$`) //nolint:gochecknoglobals

// Parse parses the string according to the generic DID syntax.
func Parse(did string) (*DID, error) {
	if !didRegex.MatchString(did) {
		return nil, fmt.Errorf("invalid did: %s", did)
	}

	parts := strings.SplitN(did, ":", 3)

	return &DID{
		Scheme:           "did",
		Method:           parts[1],
		MethodSpecificID: parts[2],
	}, nil
}

// Doc is the DID document exchanged inside connection requests and responses.
type Doc struct {
	Context        string      `json:"@context"`
	ID             string      `json:"id,omitempty"`
	PublicKey      []PublicKey `json:"publicKey,omitempty"`
	Authentication []Auth      `json:"authentication,omitempty"`
	Service        []Service   `json:"service"`
}

// PublicKey DID doc public key.
type PublicKey struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Controller      string `json:"controller"`
	PublicKeyBase58 string `json:"publicKeyBase58"`
}

// Auth references a public key usable for authentication.
type Auth struct {
	Type      string `json:"type"`
	PublicKey string `json:"publicKey"`
}

// Service DID doc service.
type Service struct {
	ID              string   `json:"id"`
	Type            string   `json:"type"`
	Priority        uint     `json:"priority"`
	RecipientKeys   []string `json:"recipientKeys"`
	RoutingKeys     []string `json:"routingKeys"`
	ServiceEndpoint string   `json:"serviceEndpoint"`
}

// ParseDocument creates an instance of DIDDocument by reading a JSON document from bytes.
func ParseDocument(data []byte) (*Doc, error) {
	doc := &Doc{}

	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("JSON unmarshalling of did doc bytes failed: %w", err)
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}

	return doc, nil
}

// Validate checks the doc carries at least one usable DIDComm service.
func (doc *Doc) Validate() error {
	if doc.Context != Context {
		return fmt.Errorf("unsupported did doc context %q", doc.Context)
	}

	svc, ok := LookupService(doc, DIDCommServiceType)
	if !ok {
		return errors.New("did doc has no did-communication service")
	}

	if len(svc.RecipientKeys) == 0 || svc.RecipientKeys[0] == "" {
		return errors.New("did-communication service has no recipient keys")
	}

	return nil
}

// JSONBytes converts document to json bytes.
func (doc *Doc) JSONBytes() ([]byte, error) {
	return json.Marshal(doc)
}

// DocOption provides options to build DID Doc.
type DocOption func(opts *Doc)

// WithID DID doc id.
func WithID(id string) DocOption {
	return func(opts *Doc) {
		opts.ID = id
	}
}

// WithPublicKey DID doc PublicKey.
func WithPublicKey(pubKey []PublicKey) DocOption {
	return func(opts *Doc) {
		opts.PublicKey = pubKey
	}
}

// WithAuthentication DID doc Authentication.
func WithAuthentication(auth []Auth) DocOption {
	return func(opts *Doc) {
		opts.Authentication = auth
	}
}

// WithService DID doc services.
func WithService(svc []Service) DocOption {
	return func(opts *Doc) {
		opts.Service = svc
	}
}

// BuildDoc creates the DID Doc from options.
func BuildDoc(opts ...DocOption) *Doc {
	doc := &Doc{Context: Context}

	for _, opt := range opts {
		opt(doc)
	}

	return doc
}
