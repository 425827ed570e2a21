/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package controller

import (
	"fmt"

	"github.com/hyperledger/aries-didcomm-agent/pkg/controller/command"
	agentcmd "github.com/hyperledger/aries-didcomm-agent/pkg/controller/command/agent"
	"github.com/hyperledger/aries-didcomm-agent/pkg/controller/rest"
	agentrest "github.com/hyperledger/aries-didcomm-agent/pkg/controller/rest/agent"
	"github.com/hyperledger/aries-didcomm-agent/pkg/framework/agent"
)

// GetRESTHandlers returns all REST handlers provided by controller.
func GetRESTHandlers(a *agent.Agent) ([]rest.Handler, error) {
	op, err := newOperation(a)
	if err != nil {
		return nil, err
	}

	return op.GetRESTHandlers(), nil
}

// GetPollHandler returns the handler mediated agents poll for their messages.
func GetPollHandler(a *agent.Agent) (rest.Handler, error) {
	op, err := newOperation(a)
	if err != nil {
		return nil, err
	}

	return op.PollHandler(), nil
}

// GetCommandHandlers returns all command handlers provided by controller.
func GetCommandHandlers(a *agent.Agent) ([]command.Handler, error) {
	cmd, err := newCommand(a)
	if err != nil {
		return nil, err
	}

	return cmd.GetHandlers(), nil
}

func newOperation(a *agent.Agent) (*agentrest.Operation, error) {
	cmd, err := newCommand(a)
	if err != nil {
		return nil, err
	}

	return agentrest.New(cmd), nil
}

func newCommand(a *agent.Agent) (*agentcmd.Command, error) {
	if a == nil {
		return nil, fmt.Errorf("create agent command : agent is mandatory")
	}

	cmd, err := agentcmd.New(a)
	if err != nil {
		return nil, fmt.Errorf("create agent command : %w", err)
	}

	return cmd, nil
}
