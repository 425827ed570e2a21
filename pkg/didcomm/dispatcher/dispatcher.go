/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-didcomm-agent/pkg/common/metrics"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-agent/pkg/internal/keylock"
	"github.com/hyperledger/aries-didcomm-agent/pkg/internal/logutil"
)

const logComponent = "dispatcher"

var logger = log.New("aries-framework/didcomm/dispatcher")

// Dispatcher routes inbound messages to the handler registered for their kind.
type Dispatcher struct {
	handlers map[service.MsgKind]service.Handler
	locks    *keylock.KeyLock
}

// New builds the handler table. Two handlers serving the same kind is an error.
func New(handlers ...service.Handler) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: map[service.MsgKind]service.Handler{},
		locks:    keylock.New(),
	}

	for _, h := range handlers {
		for _, kind := range h.Kinds() {
			if kind == service.KindUnknown {
				return nil, errors.New("handler registered for the unknown message kind")
			}

			if _, ok := d.handlers[kind]; ok {
				return nil, fmt.Errorf("more than one handler for %s messages", kind)
			}

			d.handlers[kind] = h
		}
	}

	return d, nil
}

// Dispatch hands msg to its handler. Messages for the same recipient key are handled one at a time.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *service.InboundMessage) (*service.OutboundMessage, error) {
	kind := service.KindOf(msg.Message.Type())

	h, ok := d.handlers[kind]
	if !ok {
		err := fmt.Errorf("%w: %q", service.ErrUnsupportedMessageType, msg.Message.Type())
		d.failed(msg, err)

		return nil, err
	}

	if msg.RecipientVerKey != "" {
		unlock := d.locks.Lock(msg.RecipientVerKey)
		defer unlock()
	}

	metrics.MessageReceived(kind.String())

	out, err := h.HandleInbound(ctx, msg)
	if err != nil {
		d.failed(msg, err)

		return nil, err
	}

	logutil.LogDebug(logger, logComponent, "dispatch", "message handled",
		logutil.CreateKeyValueString("kind", kind.String()),
		logutil.CreateKeyValueString("msgID", msg.Message.ID()),
		logutil.CreateKeyValueString("reply", fmt.Sprint(out != nil)))

	return out, nil
}

func (d *Dispatcher) failed(msg *service.InboundMessage, err error) {
	code := service.ErrorCode(err)
	metrics.DispatchFailed(code)

	if errors.Is(err, service.ErrSignatureInvalid) {
		metrics.SignatureRejected()
		logutil.LogError(logger, logComponent, "dispatch", err.Error(),
			logutil.CreateKeyValueString("msgID", msg.Message.ID()),
			logutil.CreateKeyValueString("verKey", msg.RecipientVerKey))

		return
	}

	logutil.LogDebug(logger, logComponent, "dispatch", err.Error(),
		logutil.CreateKeyValueString("code", code),
		logutil.CreateKeyValueString("msgID", msg.Message.ID()))
}
