package routing

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gridwise/ocppd/internal/logging"
	"github.com/gridwise/ocppd/internal/ocpp"
	"github.com/gridwise/ocppd/internal/schema"
)

// Request carries an inbound Call to a handler. The payload is the
// decoded JSON object as-is; handlers pull out the fields they need.
type Request struct {
	CallID  string
	Payload map[string]any
}

// HandlerFunc produces the CallResult payload for an inbound Call.
// Returning a *ocpp.Error sends a CallError with that code; any other
// error is reported to the caller as a generic InternalError.
type HandlerFunc func(ctx context.Context, req Request) (map[string]any, error)

// AfterFunc runs after the response has been produced, for side effects
// such as publishing events. It runs on its own goroutine and must not
// assume the response has reached the wire yet.
type AfterFunc func(ctx context.Context, req Request, result map[string]any)

// Route binds an OCPP action to its handler.
type Route struct {
	Action         string
	Handler        HandlerFunc
	After          AfterFunc
	SkipValidation bool
}

// Table is an immutable action-to-route mapping shared by all
// connections.
type Table struct {
	routes map[string]Route
}

// NewTable builds a Table from the given routes. Registering the same
// action twice or a route without a handler is a construction error.
func NewTable(routes []Route) (*Table, error) {
	t := &Table{routes: make(map[string]Route, len(routes))}
	for _, r := range routes {
		if r.Action == "" {
			return nil, fmt.Errorf("route with empty action")
		}
		if r.Handler == nil {
			return nil, fmt.Errorf("route %q has no handler", r.Action)
		}
		if _, dup := t.routes[r.Action]; dup {
			return nil, fmt.Errorf("duplicate route for action %q", r.Action)
		}
		t.routes[r.Action] = r
	}
	return t, nil
}

// Actions returns the registered action names, for logging and tests.
func (t *Table) Actions() []string {
	out := make([]string, 0, len(t.routes))
	for a := range t.routes {
		out = append(out, a)
	}
	return out
}

// Resolve looks up the route for an action. An action absent from the
// version's catalog yields NotSupported; a catalogued action with no
// registered handler yields NotImplemented.
func (t *Table) Resolve(action, version string) (Route, error) {
	if r, ok := t.routes[action]; ok {
		return r, nil
	}
	if ocpp.KnownAction(version, action) {
		return Route{}, ocpp.NewError(ocpp.CodeNotImplemented,
			fmt.Sprintf("%s not implemented", action), nil)
	}
	return Route{}, ocpp.NewError(ocpp.CodeNotSupported,
		fmt.Sprintf("%s not supported", action), nil)
}

// Dispatch runs an inbound Call through validation, its handler and
// outbound validation, producing exactly one of a CallResult or a
// CallError. The After hook, when present, is fired on a goroutine once
// the response is built.
func (t *Table) Dispatch(ctx context.Context, call *ocpp.Call, version string, v schema.Validator) (*ocpp.CallResult, *ocpp.CallError) {
	route, err := t.Resolve(call.Action, version)
	if err != nil {
		return nil, call.CreateCallError(err)
	}

	if !route.SkipValidation {
		if err := schema.CheckPayload(v, call, version); err != nil {
			return nil, call.CreateCallError(err)
		}
	}

	req := Request{CallID: call.UniqueID, Payload: call.Payload}
	payload, err := route.Handler(ctx, req)
	if err != nil {
		return nil, call.CreateCallError(err)
	}
	payload = ocpp.RemoveNullsMap(payload)

	result := call.CreateCallResult(payload)
	if !route.SkipValidation {
		if err := schema.CheckPayload(v, result, version); err != nil {
			return nil, call.CreateCallError(err)
		}
	}

	if route.After != nil {
		go t.runAfter(ctx, route, req, payload)
	}
	return result, nil
}

func (t *Table) runAfter(ctx context.Context, route Route, req Request, result map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("After hook panicked",
				zap.String("action", route.Action),
				zap.String("unique_id", req.CallID),
				zap.Any("panic", r),
			)
		}
	}()
	route.After(ctx, req, result)
}
