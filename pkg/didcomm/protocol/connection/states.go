/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/model"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-didcomm-agent/pkg/internal/logutil"
	connectionstore "github.com/hyperledger/aries-didcomm-agent/pkg/store/connection"
)

const signedField = "connection"

// AcceptRequest records the requesting peer on the invited connection and returns the signed response.
func (s *Service) AcceptRequest(_ context.Context, msg *service.InboundMessage) (*service.OutboundMessage, error) {
	if _, err := s.store.Get(msg.RecipientVerKey); err != nil {
		return nil, err
	}

	req := &Request{}
	if err := msg.Message.Decode(req); err != nil {
		return nil, fmt.Errorf("%w: %s", service.ErrMalformedRequest, err.Error())
	}

	peer, err := peerFromConnection(req.Connection, req.Label)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", service.ErrMalformedRequest, err.Error())
	}

	var out *service.OutboundMessage

	_, err = s.store.Update(msg.RecipientVerKey, func(c connectionstore.Connection) (connectionstore.Connection, error) {
		invited, ok := c.(*connectionstore.Invited)
		if !ok {
			return nil, fmt.Errorf("%w: request in state %s", ErrUnexpectedState, c.State())
		}

		payload, e := s.signedResponse(invited.Own(), msg.Message.ID())
		if e != nil {
			return nil, e
		}

		out = &service.OutboundMessage{
			ConnectionKey: invited.OwnVerKey,
			Payload:       payload,
			Destination:   peerDestination(peer, ""),
			SenderVerKey:  invited.OwnVerKey,
		}

		return invited.Respond(*peer), nil
	})
	if err != nil {
		return nil, err
	}

	logutil.LogDebug(logger, logComponent, "acceptRequest", "response created",
		logutil.CreateKeyValueString("verKey", msg.RecipientVerKey),
		logutil.CreateKeyValueString("peerVerKey", peer.VerKey))

	return out, nil
}

// AcceptResponse verifies the signed connection of the response, completes the connection and returns the ack.
func (s *Service) AcceptResponse(_ context.Context, msg *service.InboundMessage) (*service.OutboundMessage, error) {
	if _, err := s.store.Get(msg.RecipientVerKey); err != nil {
		return nil, err
	}

	resp := &Response{}
	if err := msg.Message.Decode(resp); err != nil {
		return nil, fmt.Errorf("%w: %s", service.ErrMalformedResponse, err.Error())
	}

	if resp.ConnectionSignature == nil {
		return nil, fmt.Errorf("%w: missing %s%s", service.ErrMalformedResponse, signedField, decorator.SignatureSuffix)
	}

	conn, signer, err := s.verifySignature(resp.ConnectionSignature)
	if err != nil {
		logutil.LogError(logger, logComponent, "acceptResponse", err.Error(),
			logutil.CreateKeyValueString("verKey", msg.RecipientVerKey))

		return nil, err
	}

	peer, err := peerFromConnection(conn, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", service.ErrMalformedResponse, err.Error())
	}

	ack, err := marshal(&model.Ack{
		Type:   service.AckMsgType,
		ID:     uuid.New().String(),
		Status: model.AckStatusOK,
		Thread: &decorator.Thread{ID: msg.Message.ID()},
	})
	if err != nil {
		return nil, err
	}

	var out *service.OutboundMessage

	_, err = s.store.Update(msg.RecipientVerKey, func(c connectionstore.Connection) (connectionstore.Connection, error) {
		requested, ok := c.(*connectionstore.Requested)
		if !ok {
			return nil, fmt.Errorf("%w: response in state %s", ErrUnexpectedState, c.State())
		}

		if requested.Invitation != nil && !contains(requested.Invitation.RecipientKeys, signer) {
			return nil, fmt.Errorf("%w: signed by %s which was not invited", service.ErrSignatureInvalid, signer)
		}

		if requested.Invitation != nil {
			peer.Label = requested.Invitation.Label
		}

		out = &service.OutboundMessage{
			ConnectionKey: requested.OwnVerKey,
			Payload:       ack,
			Destination:   peerDestination(peer, msg.SenderVerKey),
			SenderVerKey:  requested.OwnVerKey,
		}

		return requested.Complete(*peer), nil
	})
	if err != nil {
		return nil, err
	}

	logutil.LogDebug(logger, logComponent, "acceptResponse", "connection complete",
		logutil.CreateKeyValueString("verKey", msg.RecipientVerKey),
		logutil.CreateKeyValueString("peerVerKey", peer.VerKey))

	return out, nil
}

// AcceptAck completes a responded connection. A repeated ack on a complete connection is a no-op.
func (s *Service) AcceptAck(_ context.Context, msg *service.InboundMessage) error {
	c, err := s.store.Get(msg.RecipientVerKey)
	if err != nil {
		return err
	}

	if c.State() == connectionstore.StateComplete {
		return nil
	}

	_, err = s.store.Update(msg.RecipientVerKey, func(c connectionstore.Connection) (connectionstore.Connection, error) {
		switch conn := c.(type) {
		case *connectionstore.Responded:
			return conn.Complete(), nil
		case *connectionstore.Completed:
			return conn, nil
		default:
			return nil, fmt.Errorf("%w: ack in state %s", ErrUnexpectedState, c.State())
		}
	})
	if err != nil {
		return err
	}

	logutil.LogDebug(logger, logComponent, "acceptAck", "connection complete",
		logutil.CreateKeyValueString("verKey", msg.RecipientVerKey))

	return nil
}

func (s *Service) signedResponse(own *connectionstore.Base, requestID string) ([]byte, error) {
	msg, err := service.NewDIDCommMsgMap(&unsignedResponse{
		Type:   service.ResponseMsgType,
		ID:     uuid.New().String(),
		Thread: &decorator.Thread{ID: requestID},
		Connection: &Connection{
			DID:    own.OwnDID,
			DIDDoc: own.DIDDoc,
		},
	})
	if err != nil {
		return nil, err
	}

	signed, err := s.wallet.Sign(msg, signedField, own.OwnVerKey)
	if err != nil {
		return nil, fmt.Errorf("sign response: %w", err)
	}

	return marshal(signed)
}

// verifySignature checks the decorator and returns the signed connection with its signer.
func (s *Service) verifySignature(sig *decorator.Signature) (*Connection, string, error) {
	data, err := decodeBase64(sig.SignedData)
	if err != nil || sig.Signers == "" {
		return nil, "", fmt.Errorf("%w: undecodable signature block", service.ErrMalformedResponse)
	}

	signature, err := decodeBase64(sig.Signature)
	if err != nil {
		return nil, "", fmt.Errorf("%w: undecodable signature block", service.ErrMalformedResponse)
	}

	valid, err := s.wallet.Verify(sig.Signers, data, signature)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s", service.ErrSignatureInvalid, err.Error())
	}

	if !valid {
		return nil, "", fmt.Errorf("%w: signer %s", service.ErrSignatureInvalid, sig.Signers)
	}

	// signed data carries a timestamp prefix unless it starts right away with the JSON object
	if !bytes.HasPrefix(data, []byte("{")) && len(data) > decorator.SignatureTimestampLength {
		data = data[decorator.SignatureTimestampLength:]
	}

	conn := &Connection{}
	if err := json.Unmarshal(data, conn); err != nil {
		return nil, "", fmt.Errorf("%w: signed connection: %s", service.ErrMalformedResponse, err.Error())
	}

	return conn, sig.Signers, nil
}

func peerFromConnection(conn *Connection, label string) (*connectionstore.Peer, error) {
	if conn == nil || conn.DID == "" || conn.DIDDoc == nil {
		return nil, fmt.Errorf("missing connection did or did_doc")
	}

	if err := conn.DIDDoc.Validate(); err != nil {
		return nil, err
	}

	dest, err := service.CreateDestination(conn.DIDDoc)
	if err != nil {
		return nil, err
	}

	return &connectionstore.Peer{
		DID:     conn.DID,
		VerKey:  dest.RecipientKeys[0],
		Service: *dest,
		Label:   label,
	}, nil
}

// peerDestination addresses peer, preferring recipientKey when it is known from the envelope.
func peerDestination(peer *connectionstore.Peer, recipientKey string) *service.Destination {
	if recipientKey == "" {
		recipientKey = peer.VerKey
	}

	return &service.Destination{
		RecipientKeys:   []string{recipientKey},
		ServiceEndpoint: peer.Service.ServiceEndpoint,
		RoutingKeys:     append([]string(nil), peer.Service.RoutingKeys...),
	}
}

func marshal(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	return raw, nil
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}

	return false
}
