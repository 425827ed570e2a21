/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package aries is a DIDComm agent that connects to peers over the Aries connection protocol,
// exchanges encrypted messages with them and routes messages for edge agents as a mediator.
//
// Packages for end developer usage
//
// pkg/framework/agent: The agent. It creates and accepts invitations, tracks connections,
// sends and receives basic messages and registers routes with a mediator.
//
// pkg/controller: REST and command handlers over an agent.
//
// cmd/aries-agent-rest: A daemon running an agent behind its REST controller.
//
// Basic workflow
//
//	1) Create an agent with agent.New, passing an endpoint and outbound transports.
//	2) Share agent.CreateInvitationURL with a peer, or accept theirs with AcceptInvitationURL.
//	3) Exchange messages with SendMessageToConnection and read them from Inbox.
//	4) Call Close to release the inbound transport and storage.
package aries
