/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-didcomm-agent/pkg/controller/command"
	"github.com/hyperledger/aries-didcomm-agent/pkg/controller/command/agent"
	"github.com/hyperledger/aries-didcomm-agent/pkg/controller/internal/cmdutil"
	"github.com/hyperledger/aries-didcomm-agent/pkg/controller/rest"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/transport"
	arieshttp "github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/transport/http"
)

var logger = log.New("aries-framework/rest/agent")

// constants for the agent endpoints.
const (
	InvitationPath       = "/invitation"
	AcceptInvitationPath = InvitationPath + "/accept"
	ConnectionsPath      = "/connections"
	ConnectionPath       = ConnectionsPath + "/{verkey}"
	MessagesPath         = ConnectionPath + "/messages"
	RoutesPath           = "/routes"
	PollPath             = "/api/connections/{verkey}/message"

	verKeyParam = "verkey"
)

// Operation is the REST controller of the agent.
type Operation struct {
	command  *agent.Command
	handlers []rest.Handler
	now      func() time.Time
}

// New returns new agent rest controller instance.
func New(cmd *agent.Command) *Operation {
	o := &Operation{command: cmd, now: time.Now}

	o.registerHandler()

	return o
}

// GetRESTHandlers get all controller API handlers available for this service.
func (o *Operation) GetRESTHandlers() []rest.Handler {
	return o.handlers
}

// PollHandler is the handler mediated agents poll for queued messages. It is served apart
// from the other handlers since it does not take the API token: a poll must instead be
// signed by the key whose queue it reads.
func (o *Operation) PollHandler() rest.Handler {
	return cmdutil.NewHTTPHandler(PollPath, http.MethodGet, o.takeSignedMessage)
}

func (o *Operation) registerHandler() {
	o.handlers = []rest.Handler{
		cmdutil.NewHTTPHandler(InvitationPath, http.MethodGet, o.CreateInvitation),
		cmdutil.NewHTTPHandler(AcceptInvitationPath, http.MethodPost, o.AcceptInvitation),
		cmdutil.NewHTTPHandler(ConnectionsPath, http.MethodGet, o.GetConnections),
		cmdutil.NewHTTPHandler(ConnectionPath, http.MethodGet, o.GetConnection),
		cmdutil.NewHTTPHandler(MessagesPath, http.MethodGet, o.GetInbox),
		cmdutil.NewHTTPHandler(MessagesPath, http.MethodPost, o.SendMessage),
		cmdutil.NewHTTPHandler(RoutesPath, http.MethodGet, o.GetRoutes),
		cmdutil.NewHTTPHandler(PollPath, http.MethodGet, o.TakeMessage),
	}
}

// CreateInvitation swagger:route GET /invitation agent createInvitation
//
// Creates an invitation and returns its URL.
//
// Responses:
//    default: genericError
//        200: createInvitationResponse
func (o *Operation) CreateInvitation(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.CreateInvitation, rw, req.Body)
}

// AcceptInvitation swagger:route POST /invitation/accept agent acceptInvitation
//
// Accepts an invitation URL and sends the connection request.
//
// Responses:
//    default: genericError
//        200: acceptInvitationResponse
func (o *Operation) AcceptInvitation(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.AcceptInvitation, rw, req.Body)
}

// GetConnections swagger:route GET /connections agent queryConnections
//
// Lists every connection.
//
// Responses:
//    default: genericError
//        200: queryConnectionsResponse
func (o *Operation) GetConnections(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.GetConnections, rw, req.Body)
}

// GetConnection swagger:route GET /connections/{verkey} agent getConnection
//
// Fetches the connection of an own verkey.
//
// Responses:
//    default: genericError
//        200: getConnectionResponse
func (o *Operation) GetConnection(rw http.ResponseWriter, req *http.Request) {
	o.withVerKey(o.command.GetConnection, rw, req)
}

// GetInbox swagger:route GET /connections/{verkey}/messages agent getInbox
//
// Reads the inbox of a connection.
//
// Responses:
//    default: genericError
//        200: inboxResponse
func (o *Operation) GetInbox(rw http.ResponseWriter, req *http.Request) {
	o.withVerKey(o.command.GetInbox, rw, req)
}

// SendMessage swagger:route POST /connections/{verkey}/messages agent sendMessage
//
// Sends a basic message over a connection.
//
// Responses:
//    default: genericError
func (o *Operation) SendMessage(rw http.ResponseWriter, req *http.Request) {
	var body SendMessageBody

	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		rest.SendHTTPStatusError(rw, http.StatusBadRequest, agent.InvalidRequestErrorCode,
			fmt.Errorf("request decode : %w", err))

		return
	}

	request, err := json.Marshal(&agent.SendMessageArgs{VerKey: mux.Vars(req)[verKeyParam], Content: body.Content})
	if err != nil {
		rest.SendHTTPStatusError(rw, http.StatusInternalServerError, command.UnknownStatus, err)

		return
	}

	rest.Execute(o.command.SendMessage, rw, bytes.NewReader(request))
}

// GetRoutes swagger:route GET /routes agent getRoutes
//
// Lists the routes kept by this agent as a mediator.
//
// Responses:
//    default: genericError
//        200: routesResponse
func (o *Operation) GetRoutes(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.GetRoutes, rw, req.Body)
}

// TakeMessage swagger:route GET /api/connections/{verkey}/message agent takeMessage
//
// Pops the oldest envelope queued for the peer verkey. Replies 204 when there is none.
//
// Responses:
//    default: genericError
func (o *Operation) TakeMessage(rw http.ResponseWriter, req *http.Request) {
	request, err := verKeyRequest(req)
	if err != nil {
		rest.SendHTTPStatusError(rw, http.StatusInternalServerError, command.UnknownStatus, err)

		return
	}

	var buf bytes.Buffer

	if cmdErr := o.command.TakeMessage(&buf, request); cmdErr != nil {
		rest.SendError(rw, cmdErr)

		return
	}

	if buf.Len() == 0 {
		rw.WriteHeader(http.StatusNoContent)

		return
	}

	rw.Header().Set("Content-Type", transport.MediaTypeLegacyEnvelope)

	if _, err := rw.Write(buf.Bytes()); err != nil {
		logger.Errorf("Unable to send response, %s", err)
	}
}

func (o *Operation) takeSignedMessage(rw http.ResponseWriter, req *http.Request) {
	if err := arieshttp.VerifyPollRequest(req, mux.Vars(req)[verKeyParam], o.now()); err != nil {
		logger.Warnf("rejected poll for %s: %v", mux.Vars(req)[verKeyParam], err)
		rest.SendHTTPStatusError(rw, http.StatusUnauthorized, agent.TakeMessageErrorCode, err)

		return
	}

	o.TakeMessage(rw, req)
}

func (o *Operation) withVerKey(exec command.Exec, rw http.ResponseWriter, req *http.Request) {
	request, err := verKeyRequest(req)
	if err != nil {
		rest.SendHTTPStatusError(rw, http.StatusInternalServerError, command.UnknownStatus, err)

		return
	}

	rest.Execute(exec, rw, request)
}

func verKeyRequest(req *http.Request) (*bytes.Reader, error) {
	request, err := json.Marshal(&agent.ConnectionKeyArgs{VerKey: mux.Vars(req)[verKeyParam]})
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(request), nil
}
