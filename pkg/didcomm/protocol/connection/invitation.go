/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/model"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-agent/pkg/internal/didkeyutil"
)

// invitationParam is the query parameter carrying the encoded invitation.
const invitationParam = "c_i"

// EncodeInvitationURL appends the base64url encoded invitation to baseURL as the c_i parameter.
func EncodeInvitationURL(baseURL string, inv *model.Invitation) (string, error) {
	raw, err := json.Marshal(inv)
	if err != nil {
		return "", fmt.Errorf("marshal invitation: %w", err)
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid invitation base url: %w", err)
	}

	q := u.Query()
	q.Set(invitationParam, base64.URLEncoding.EncodeToString(raw))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// DecodeInvitationURL reverses EncodeInvitationURL. Standard and url-safe base64, padded or not, are accepted.
func DecodeInvitationURL(invitationURL string) (*model.Invitation, error) {
	u, err := url.Parse(invitationURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", service.ErrInvalidInvitation, err.Error())
	}

	encoded := u.Query().Get(invitationParam)
	if encoded == "" {
		return nil, fmt.Errorf("%w: missing %s parameter", service.ErrInvalidInvitation, invitationParam)
	}

	// a raw '+' of standard base64 reads back as a space
	encoded = strings.ReplaceAll(encoded, " ", "+")

	raw, err := decodeBase64(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", service.ErrInvalidInvitation, err.Error())
	}

	inv := &model.Invitation{}
	if err := json.Unmarshal(raw, inv); err != nil {
		return nil, fmt.Errorf("%w: %s", service.ErrInvalidInvitation, err.Error())
	}

	return inv, nil
}

// validateInvitation checks the addressing part of inv and returns a copy with base58 keys.
func validateInvitation(inv *model.Invitation) (*model.Invitation, error) {
	if inv == nil || inv.ServiceEndpoint == "" || len(inv.RecipientKeys) == 0 {
		return nil, fmt.Errorf("%w: serviceEndpoint and recipientKeys are required", service.ErrInvalidInvitation)
	}

	recKeys, err := didkeyutil.NormalizeVerKeys(inv.RecipientKeys)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", service.ErrInvalidInvitation, err.Error())
	}

	routingKeys, err := didkeyutil.NormalizeVerKeys(inv.RoutingKeys)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", service.ErrInvalidInvitation, err.Error())
	}

	normalized := *inv
	normalized.RecipientKeys = recKeys
	normalized.RoutingKeys = routingKeys

	return &normalized, nil
}

func decodeBase64(s string) ([]byte, error) {
	var lastErr error

	for _, enc := range []*base64.Encoding{
		base64.URLEncoding, base64.RawURLEncoding, base64.StdEncoding, base64.RawStdEncoding,
	} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}

		lastErr = err
	}

	return nil, lastErr
}
