package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gridwise/ocppd/internal/logging"
	"github.com/gridwise/ocppd/internal/ocpp"
	"github.com/gridwise/ocppd/internal/schema"
)

// ErrConnectionClosed reports that the connection went away while a
// Call was waiting for its response.
var ErrConnectionClosed = errors.New("connection closed")

// CallTimeoutError reports that no response with the matching unique id
// arrived within the response timeout.
type CallTimeoutError struct {
	Elapsed time.Duration
	Request *ocpp.Call
}

func (e *CallTimeoutError) Error() string {
	return fmt.Sprintf("waited %s for response on %s call %s",
		e.Elapsed, e.Request.Action, e.Request.UniqueID)
}

type callOptions struct {
	uniqueID       string
	strictErrors   bool
	skipValidation bool
}

// CallOption adjusts a single outbound Call.
type CallOption func(*callOptions)

// WithUniqueID pins the Call's unique id instead of generating one.
func WithUniqueID(id string) CallOption {
	return func(o *callOptions) { o.uniqueID = id }
}

// WithStrictErrors makes a CallError response surface as an error
// instead of being suppressed into a nil result.
func WithStrictErrors() CallOption {
	return func(o *callOptions) { o.strictErrors = true }
}

// WithSkipValidation bypasses schema validation of both the outbound
// payload and the response.
func WithSkipValidation() CallOption {
	return func(o *callOptions) { o.skipValidation = true }
}

// Call sends a server-initiated Call and waits for the matching
// response. Calls are serialized per connection; a second caller blocks
// until the first completes or times out.
//
// A CallError response is suppressed by default: the result is nil with
// a nil error. With WithStrictErrors the carried taxonomy failure is
// reconstructed and returned, or an *ocpp.UnknownCallErrorCodeError
// when the code is outside the closed set. A timeout returns
// *CallTimeoutError.
func (cp *ChargePoint) Call(ctx context.Context, action string, payload map[string]any, opts ...CallOption) (map[string]any, error) {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.uniqueID == "" {
		o.uniqueID = cp.newID()
	}

	call := &ocpp.Call{
		UniqueID: o.uniqueID,
		Action:   action,
		Payload:  ocpp.RemoveNullsMap(payload),
	}
	if !o.skipValidation {
		if err := schema.CheckPayload(cp.validator, call, cp.version); err != nil {
			return nil, err
		}
	}

	cp.callMu.Lock()
	defer cp.callMu.Unlock()
	cp.inflight.Store(true)
	defer cp.inflight.Store(false)

	raw, err := ocpp.Pack(call)
	if err != nil {
		return nil, err
	}
	logging.LogMessage(cp.Identity, "outbound", call.Action, call.UniqueID, raw)
	if err := cp.sender.Send(raw); err != nil {
		return nil, err
	}

	response, err := cp.awaitResponse(ctx, call)
	if err != nil {
		return nil, err
	}

	if callErr, ok := response.(*ocpp.CallError); ok {
		logging.Warn("Received a CallError",
			zap.String("identity", cp.Identity),
			zap.String("action", call.Action),
			zap.String("unique_id", callErr.UniqueID),
			zap.String("code", string(callErr.Code)),
		)
		if !o.strictErrors {
			return nil, nil
		}
		reconstructed, convErr := callErr.ToError()
		if convErr != nil {
			return nil, convErr
		}
		return nil, reconstructed
	}

	result := response.(*ocpp.CallResult)
	if !o.skipValidation {
		// The wire frame has no action; borrow it from the request so
		// the response schema can be found.
		result.Action = call.Action
		if err := schema.CheckPayload(cp.validator, result, cp.version); err != nil {
			return nil, err
		}
	}
	return result.Payload, nil
}

// awaitResponse blocks until a response with the Call's unique id
// arrives or the timeout budget runs out. Responses carrying a
// different id are discarded and the wait resumes with whatever budget
// remains.
func (cp *ChargePoint) awaitResponse(ctx context.Context, call *ocpp.Call) (ocpp.Message, error) {
	deadline := time.Now().Add(cp.callTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			cp.drainResponse()
			return nil, &CallTimeoutError{Elapsed: cp.callTimeout, Request: call}
		}

		timer := time.NewTimer(remaining)
		select {
		case response := <-cp.respCh:
			timer.Stop()
			if response.ID() != call.UniqueID {
				logging.Error("Ignoring response with unknown unique id",
					zap.String("identity", cp.Identity),
					zap.String("unique_id", response.ID()),
					zap.String("expected", call.UniqueID),
				)
				continue
			}
			return response, nil
		case <-timer.C:
			cp.drainResponse()
			return nil, &CallTimeoutError{Elapsed: cp.callTimeout, Request: call}
		case <-cp.closed:
			timer.Stop()
			return nil, ErrConnectionClosed
		case <-ctx.Done():
			timer.Stop()
			cp.drainResponse()
			return nil, ctx.Err()
		}
	}
}

// drainResponse frees the hand-off slot when a wait ends without a
// match. The reader blocks on the hand-off while a Call is in flight;
// leaving without draining could strand it on a full buffer.
func (cp *ChargePoint) drainResponse() {
	select {
	case <-cp.respCh:
	default:
	}
}
