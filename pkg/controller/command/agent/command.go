/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-didcomm-agent/pkg/controller/command"
	"github.com/hyperledger/aries-didcomm-agent/pkg/controller/internal/cmdutil"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/protocol/route"
	"github.com/hyperledger/aries-didcomm-agent/pkg/internal/logutil"
	connectionstore "github.com/hyperledger/aries-didcomm-agent/pkg/store/connection"
)

var logger = log.New("aries-framework/controller/agent")

// Error codes.
const (
	// InvalidRequestErrorCode is typically a code for validation errors.
	InvalidRequestErrorCode = command.Code(iota + command.Connection)

	// CreateInvitationErrorCode is for failures in create invitation command.
	CreateInvitationErrorCode

	// AcceptInvitationErrorCode is for failures in accept invitation command.
	AcceptInvitationErrorCode

	// QueryConnectionsErrorCode is for failures in query connections commands.
	QueryConnectionsErrorCode
)

// Messaging error codes.
const (
	// SendMessageErrorCode is for failures in send message command.
	SendMessageErrorCode = command.Code(iota + command.Messaging)

	// InboxErrorCode is for failures reading a connection inbox.
	InboxErrorCode

	// TakeMessageErrorCode is for failures taking a queued message.
	TakeMessageErrorCode
)

// GetRoutesErrorCode is for failures listing routes.
const GetRoutesErrorCode = command.Code(command.ROUTE)

// constants for the agent controller.
const (
	// command name.
	CommandName = "agent"

	// command methods.
	CreateInvitationCommandMethod = "CreateInvitation"
	AcceptInvitationCommandMethod = "AcceptInvitation"
	GetConnectionsCommandMethod   = "GetConnections"
	GetConnectionCommandMethod    = "GetConnection"
	GetInboxCommandMethod         = "GetInbox"
	SendMessageCommandMethod      = "SendMessage"
	GetRoutesCommandMethod        = "GetRoutes"
	TakeMessageCommandMethod      = "TakeMessage"

	errEmptyVerKey        = "empty verkey"
	errEmptyInvitationURL = "empty invitation url"

	// log constants.
	verKeyString  = "verKey"
	successString = "success"
)

// provider is the agent the commands operate on.
type provider interface {
	CreateInvitationURL(ctx context.Context) (string, error)
	AcceptInvitationURL(ctx context.Context, invitationURL string) (string, error)
	GetConnections() ([]*connectionstore.Record, error)
	FindConnectionByOwnKey(verKey string) (*connectionstore.Record, error)
	Inbox(ownVerKey string) ([]*connectionstore.InboxMessage, error)
	SendMessageToConnection(ctx context.Context, ownVerKey, content string) error
	GetRoutes() ([]route.Route, error)
	TakeMessage(peerVerKey string) (*connectionstore.InboxMessage, error)
}

// Command contains the agent operations exposed by the controller.
type Command struct {
	agent provider
}

// New returns new agent controller command instance.
func New(p provider) (*Command, error) {
	if p == nil {
		return nil, errors.New("agent is mandatory")
	}

	return &Command{agent: p}, nil
}

// GetHandlers returns list of all commands supported by this controller command.
func (c *Command) GetHandlers() []command.Handler {
	return []command.Handler{
		cmdutil.NewCommandHandler(CommandName, CreateInvitationCommandMethod, c.CreateInvitation),
		cmdutil.NewCommandHandler(CommandName, AcceptInvitationCommandMethod, c.AcceptInvitation),
		cmdutil.NewCommandHandler(CommandName, GetConnectionsCommandMethod, c.GetConnections),
		cmdutil.NewCommandHandler(CommandName, GetConnectionCommandMethod, c.GetConnection),
		cmdutil.NewCommandHandler(CommandName, GetInboxCommandMethod, c.GetInbox),
		cmdutil.NewCommandHandler(CommandName, SendMessageCommandMethod, c.SendMessage),
		cmdutil.NewCommandHandler(CommandName, GetRoutesCommandMethod, c.GetRoutes),
		cmdutil.NewCommandHandler(CommandName, TakeMessageCommandMethod, c.TakeMessage),
	}
}

// CreateInvitation creates an invitation and writes its URL.
func (c *Command) CreateInvitation(rw io.Writer, _ io.Reader) command.Error {
	invitationURL, err := c.agent.CreateInvitationURL(context.Background())
	if err != nil {
		logutil.LogError(logger, CommandName, CreateInvitationCommandMethod, err.Error())

		return newError(CreateInvitationErrorCode, err)
	}

	command.WriteNillableResponse(rw, &CreateInvitationResponse{InvitationURL: invitationURL}, logger)

	logutil.LogDebug(logger, CommandName, CreateInvitationCommandMethod, successString)

	return nil
}

// AcceptInvitation accepts the invitation URL in the request and sends the connection request.
func (c *Command) AcceptInvitation(rw io.Writer, req io.Reader) command.Error {
	var request AcceptInvitationArgs

	if err := json.NewDecoder(req).Decode(&request); err != nil {
		logutil.LogInfo(logger, CommandName, AcceptInvitationCommandMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	if request.InvitationURL == "" {
		logutil.LogDebug(logger, CommandName, AcceptInvitationCommandMethod, errEmptyInvitationURL)

		return command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyInvitationURL))
	}

	connKey, err := c.agent.AcceptInvitationURL(context.Background(), request.InvitationURL)
	if err != nil {
		logutil.LogError(logger, CommandName, AcceptInvitationCommandMethod, err.Error())

		return newError(AcceptInvitationErrorCode, err)
	}

	command.WriteNillableResponse(rw, &AcceptInvitationResponse{ConnectionKey: connKey}, logger)

	logutil.LogDebug(logger, CommandName, AcceptInvitationCommandMethod, successString,
		logutil.CreateKeyValueString(verKeyString, connKey))

	return nil
}

// GetConnections lists every connection.
func (c *Command) GetConnections(rw io.Writer, _ io.Reader) command.Error {
	records, err := c.agent.GetConnections()
	if err != nil {
		logutil.LogError(logger, CommandName, GetConnectionsCommandMethod, err.Error())

		return newError(QueryConnectionsErrorCode, err)
	}

	if records == nil {
		records = []*connectionstore.Record{}
	}

	command.WriteNillableResponse(rw, &QueryConnectionsResponse{Results: records}, logger)

	logutil.LogDebug(logger, CommandName, GetConnectionsCommandMethod, successString)

	return nil
}

// GetConnection returns the connection of the own verkey in the request.
func (c *Command) GetConnection(rw io.Writer, req io.Reader) command.Error {
	verKey, cmdErr := decodeVerKey(req, GetConnectionCommandMethod)
	if cmdErr != nil {
		return cmdErr
	}

	record, err := c.agent.FindConnectionByOwnKey(verKey)
	if err != nil {
		logutil.LogError(logger, CommandName, GetConnectionCommandMethod, err.Error(),
			logutil.CreateKeyValueString(verKeyString, verKey))

		return newError(QueryConnectionsErrorCode, err)
	}

	command.WriteNillableResponse(rw, &QueryConnectionResponse{Result: record}, logger)

	logutil.LogDebug(logger, CommandName, GetConnectionCommandMethod, successString,
		logutil.CreateKeyValueString(verKeyString, verKey))

	return nil
}

// GetInbox reads the inbox of the connection of the own verkey in the request.
func (c *Command) GetInbox(rw io.Writer, req io.Reader) command.Error {
	verKey, cmdErr := decodeVerKey(req, GetInboxCommandMethod)
	if cmdErr != nil {
		return cmdErr
	}

	msgs, err := c.agent.Inbox(verKey)
	if err != nil {
		logutil.LogError(logger, CommandName, GetInboxCommandMethod, err.Error(),
			logutil.CreateKeyValueString(verKeyString, verKey))

		return newError(InboxErrorCode, err)
	}

	if msgs == nil {
		msgs = []*connectionstore.InboxMessage{}
	}

	command.WriteNillableResponse(rw, &InboxResponse{Messages: msgs}, logger)

	logutil.LogDebug(logger, CommandName, GetInboxCommandMethod, successString,
		logutil.CreateKeyValueString(verKeyString, verKey))

	return nil
}

// SendMessage sends a basic message over the connection of the own verkey in the request.
func (c *Command) SendMessage(rw io.Writer, req io.Reader) command.Error {
	var request SendMessageArgs

	if err := json.NewDecoder(req).Decode(&request); err != nil {
		logutil.LogInfo(logger, CommandName, SendMessageCommandMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	if request.VerKey == "" {
		logutil.LogDebug(logger, CommandName, SendMessageCommandMethod, errEmptyVerKey)

		return command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyVerKey))
	}

	err := c.agent.SendMessageToConnection(context.Background(), request.VerKey, request.Content)
	if err != nil {
		logutil.LogError(logger, CommandName, SendMessageCommandMethod, err.Error(),
			logutil.CreateKeyValueString(verKeyString, request.VerKey))

		return newError(SendMessageErrorCode, err)
	}

	command.WriteNillableResponse(rw, nil, logger)

	logutil.LogDebug(logger, CommandName, SendMessageCommandMethod, successString,
		logutil.CreateKeyValueString(verKeyString, request.VerKey))

	return nil
}

// GetRoutes lists the routes of the mediator.
func (c *Command) GetRoutes(rw io.Writer, _ io.Reader) command.Error {
	routes, err := c.agent.GetRoutes()
	if err != nil {
		logutil.LogError(logger, CommandName, GetRoutesCommandMethod, err.Error())

		return newError(GetRoutesErrorCode, err)
	}

	if routes == nil {
		routes = []route.Route{}
	}

	command.WriteNillableResponse(rw, &RoutesResponse{Routes: routes}, logger)

	logutil.LogDebug(logger, CommandName, GetRoutesCommandMethod, successString)

	return nil
}

// TakeMessage pops the oldest message queued for the peer verkey in the request and writes its
// payload as is. Nothing is written when the queue is empty.
func (c *Command) TakeMessage(rw io.Writer, req io.Reader) command.Error {
	verKey, cmdErr := decodeVerKey(req, TakeMessageCommandMethod)
	if cmdErr != nil {
		return cmdErr
	}

	msg, err := c.agent.TakeMessage(verKey)
	if err != nil {
		logutil.LogError(logger, CommandName, TakeMessageCommandMethod, err.Error(),
			logutil.CreateKeyValueString(verKeyString, verKey))

		return newError(TakeMessageErrorCode, err)
	}

	if msg == nil {
		return nil
	}

	if _, err := rw.Write(msg.Payload); err != nil {
		logger.Errorf("Unable to send response, %s", err)
	}

	logutil.LogDebug(logger, CommandName, TakeMessageCommandMethod, successString,
		logutil.CreateKeyValueString(verKeyString, verKey))

	return nil
}

func decodeVerKey(req io.Reader, method string) (string, command.Error) {
	var request ConnectionKeyArgs

	if err := json.NewDecoder(req).Decode(&request); err != nil {
		logutil.LogInfo(logger, CommandName, method, err.Error())

		return "", command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	if request.VerKey == "" {
		logutil.LogDebug(logger, CommandName, method, errEmptyVerKey)

		return "", command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyVerKey))
	}

	return request.VerKey, nil
}

// newError classifies err: unknown connections are not found, bad invitations are invalid requests.
func newError(code command.Code, err error) command.Error {
	switch {
	case errors.Is(err, service.ErrConnectionNotFound), errors.Is(err, service.ErrRouteNotFound):
		return command.NewNotFoundError(code, err)
	case errors.Is(err, service.ErrInvalidInvitation), errors.Is(err, service.ErrMissingEndpoint):
		return command.NewValidationError(code, err)
	default:
		return command.NewExecuteError(code, err)
	}
}
