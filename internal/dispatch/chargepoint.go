package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gridwise/ocppd/internal/logging"
	"github.com/gridwise/ocppd/internal/ocpp"
	"github.com/gridwise/ocppd/internal/routing"
	"github.com/gridwise/ocppd/internal/schema"
)

// DefaultCallTimeout bounds how long an outbound Call waits for its
// response before failing with a CallTimeoutError.
const DefaultCallTimeout = 30 * time.Second

// Sender is the write side of a connection. Send delivers one text
// frame; implementations must be safe for concurrent use.
type Sender interface {
	Send(message []byte) error
}

// ChargePoint binds one connected charge point to its routing table and
// validator and runs the protocol on top of the raw connection.
type ChargePoint struct {
	Identity string

	sender    Sender
	table     *routing.Table
	validator schema.Validator
	version   string

	callTimeout time.Duration
	newID       func() string

	// callMu enforces the single-outstanding-call rule. respCh is the
	// hand-off from HandleMessage to the goroutine holding callMu; one
	// slot is enough because only one Call is ever in flight. inflight
	// tells the reader whether anyone is waiting on the hand-off.
	callMu   sync.Mutex
	respCh   chan ocpp.Message
	inflight atomic.Bool

	closed    chan struct{}
	closeOnce sync.Once

	// BeforeDispatch, when set, observes every inbound Call before it is
	// routed. Used to keep session state (boot attributes, connector
	// status) ahead of the reply reaching the wire.
	BeforeDispatch func(ctx context.Context, call *ocpp.Call)

	// AfterReply, when set, observes the outcome of every inbound Call
	// after its reply has been sent. Exactly one of result and callErr
	// is non-nil.
	AfterReply func(ctx context.Context, call *ocpp.Call, result *ocpp.CallResult, callErr *ocpp.CallError)
}

// Option configures a ChargePoint at construction time.
type Option func(*ChargePoint)

// WithCallTimeout overrides the default response timeout for outbound
// Calls.
func WithCallTimeout(d time.Duration) Option {
	return func(cp *ChargePoint) { cp.callTimeout = d }
}

// WithIDGenerator replaces the unique id source, mainly for tests.
func WithIDGenerator(f func() string) Option {
	return func(cp *ChargePoint) { cp.newID = f }
}

// NewChargePoint wires a connection to the routing table. The version
// string selects the action catalog and schema set ("1.6", "2.0",
// "2.0.1").
func NewChargePoint(identity string, sender Sender, table *routing.Table, v schema.Validator, version string, opts ...Option) *ChargePoint {
	cp := &ChargePoint{
		Identity:    identity,
		sender:      sender,
		table:       table,
		validator:   v,
		version:     version,
		callTimeout: DefaultCallTimeout,
		newID:       uuid.NewString,
		respCh:      make(chan ocpp.Message, 1),
		closed:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(cp)
	}
	return cp
}

// Version reports the OCPP version negotiated for this connection.
func (cp *ChargePoint) Version() string { return cp.version }

// Close marks the connection as gone. Any goroutine waiting on a Call
// response fails immediately. Safe to call more than once.
func (cp *ChargePoint) Close() {
	cp.closeOnce.Do(func() { close(cp.closed) })
}

// HandleMessage processes one raw inbound frame. Frames that do not
// decode as OCPP are logged and dropped; the connection stays open and
// nothing is sent back. Inbound Calls are dispatched and answered;
// responses are delivered to the pending Call, or discarded with a log
// line when nothing is waiting.
func (cp *ChargePoint) HandleMessage(ctx context.Context, raw []byte) {
	msg, err := ocpp.Unpack(raw)
	if err != nil {
		logging.Error("Unable to parse message, it doesn't seem to be valid OCPP",
			zap.String("identity", cp.Identity),
			zap.ByteString("raw", raw),
			zap.Error(err),
		)
		return
	}

	switch m := msg.(type) {
	case *ocpp.Call:
		logging.LogMessage(cp.Identity, "inbound", m.Action, m.UniqueID, raw)
		cp.handleCall(ctx, m)
	case *ocpp.CallResult, *ocpp.CallError:
		logging.LogMessage(cp.Identity, "inbound", "", msg.ID(), raw)
		cp.deliverResponse(msg)
	}
}

// deliverResponse hands a CallResult or CallError to the goroutine
// waiting in Call. While a Call is in flight the hand-off blocks, so a
// response arriving right behind a still-buffered stale one cannot be
// lost between the waiter's select iterations. With no Call
// outstanding the frame is dropped.
func (cp *ChargePoint) deliverResponse(msg ocpp.Message) {
	if cp.inflight.Load() {
		select {
		case cp.respCh <- msg:
		case <-cp.closed:
		}
		return
	}
	select {
	case cp.respCh <- msg:
	default:
		logging.Warn("Dropping response no Call is waiting for",
			zap.String("identity", cp.Identity),
			zap.String("unique_id", msg.ID()),
		)
	}
}

func (cp *ChargePoint) handleCall(ctx context.Context, call *ocpp.Call) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Panic while handling call",
				zap.String("identity", cp.Identity),
				zap.String("action", call.Action),
				zap.String("unique_id", call.UniqueID),
				zap.Any("panic", r),
			)
			cp.send(call.CreateCallError(ocpp.NewError(ocpp.CodeInternalError, "", nil)))
		}
	}()

	if cp.BeforeDispatch != nil {
		cp.BeforeDispatch(ctx, call)
	}

	result, callErr := cp.table.Dispatch(ctx, call, cp.version, cp.validator)
	if callErr != nil {
		logging.Error("Error while handling request",
			zap.String("identity", cp.Identity),
			zap.String("action", call.Action),
			zap.String("unique_id", call.UniqueID),
			zap.String("code", string(callErr.Code)),
		)
		cp.send(callErr)
	} else {
		cp.send(result)
	}

	if cp.AfterReply != nil {
		cp.AfterReply(ctx, call, result, callErr)
	}
}

func (cp *ChargePoint) send(msg ocpp.Message) {
	raw, err := ocpp.Pack(msg)
	if err != nil {
		logging.Error("Failed to encode message",
			zap.String("identity", cp.Identity),
			zap.String("unique_id", msg.ID()),
			zap.Error(err),
		)
		return
	}
	logging.LogMessage(cp.Identity, "outbound", "", msg.ID(), raw)
	if err := cp.sender.Send(raw); err != nil {
		logging.Error("Failed to send message",
			zap.String("identity", cp.Identity),
			zap.String("unique_id", msg.ID()),
			zap.Error(err),
		)
	}
}
