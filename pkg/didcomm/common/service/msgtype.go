/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

// MessageTypePrefix is prepended to every protocol message type.
const MessageTypePrefix = "did:sov:BzCbsNYhMrjHiqZDTUASHg;spec/"

// Protocol message types.
const (
	InvitationMsgType    = MessageTypePrefix + "didexchange/1.0/invitation"
	RequestMsgType       = MessageTypePrefix + "didexchange/1.0/request"
	ResponseMsgType      = MessageTypePrefix + "didexchange/1.0/response"
	AckMsgType           = MessageTypePrefix + "notification/1.0/ack"
	BasicMessageMsgType  = MessageTypePrefix + "basicmessage/1.0/message"
	KeylistUpdateMsgType = MessageTypePrefix + "routecoordination/1.0/keylist_update"
	ForwardMsgType       = MessageTypePrefix + "routing/1.0/forward"
)

// MsgKind enumerates the message kinds the agent understands.
type MsgKind int

// Message kinds.
const (
	KindUnknown MsgKind = iota
	KindInvitation
	KindRequest
	KindResponse
	KindAck
	KindBasicMessage
	KindKeylistUpdate
	KindForward
)

var kindByType = map[string]MsgKind{ //nolint:gochecknoglobals
	InvitationMsgType:    KindInvitation,
	RequestMsgType:       KindRequest,
	ResponseMsgType:      KindResponse,
	AckMsgType:           KindAck,
	BasicMessageMsgType:  KindBasicMessage,
	KeylistUpdateMsgType: KindKeylistUpdate,
	ForwardMsgType:       KindForward,
}

// KindOf maps a message type URI to its kind.
func KindOf(msgType string) MsgKind {
	return kindByType[msgType]
}

func (k MsgKind) String() string {
	switch k {
	case KindInvitation:
		return "invitation"
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindAck:
		return "ack"
	case KindBasicMessage:
		return "basicmessage"
	case KindKeylistUpdate:
		return "keylist_update"
	case KindForward:
		return "forward"
	default:
		return "unknown"
	}
}
