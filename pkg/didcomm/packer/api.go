/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package packer

import (
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/transport"
)

// Packer is an Aries envelope packer/unpacker to support
// secure DIDComm exchange of envelopes between Aries agents.
type Packer interface {
	// Pack a payload in an Aries compliant format using the sender keypair
	// and a list of recipients public keys. A nil sender key packs anonymously.
	// returns:
	// 		[]byte containing the encrypted envelope
	//		error if encryption failed
	Pack(payload []byte, senderKey []byte, recipients [][]byte) ([]byte, error)
	// Unpack an envelope in an Aries compliant format.
	// 		The recipient's key will be the one found in KMS that matches one of the list of recipients in the envelope
	//
	// returns:
	// 		Envelope containing the message, decryption key, and sender key
	//		error if decryption failed
	Unpack(envelope []byte) (*transport.Envelope, error)

	// EncodingType returns the type of the encoding, as found in the header `Typ` field
	EncodingType() string
}
