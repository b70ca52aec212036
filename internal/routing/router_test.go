package routing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwise/ocppd/internal/ocpp"
	"github.com/gridwise/ocppd/internal/schema"
)

func okHandler(ctx context.Context, req Request) (map[string]any, error) {
	return map[string]any{}, nil
}

// stubValidator fails every payload with a fixed error, or accepts
// everything when err is nil. It records the payloads it saw.
type stubValidator struct {
	err  error
	seen []map[string]any
}

func (s *stubValidator) Validate(_ ocpp.MessageType, _, _ string, payload map[string]any) error {
	s.seen = append(s.seen, payload)
	return s.err
}

func TestNewTableRejectsBadRoutes(t *testing.T) {
	tests := []struct {
		name   string
		routes []Route
	}{
		{"duplicate action", []Route{
			{Action: "Heartbeat", Handler: okHandler},
			{Action: "Heartbeat", Handler: okHandler},
		}},
		{"empty action", []Route{{Action: "", Handler: okHandler}}},
		{"nil handler", []Route{{Action: "Heartbeat"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.routes)
			require.Error(t, err)
		})
	}
}

func TestResolveDistinguishesUnknownFromUnhandled(t *testing.T) {
	table, err := NewTable([]Route{{Action: "Heartbeat", Handler: okHandler}})
	require.NoError(t, err)

	// In the 1.6 catalog but not registered.
	_, err = table.Resolve("ClearCache", ocpp.V16)
	var ocppErr *ocpp.Error
	require.ErrorAs(t, err, &ocppErr)
	assert.Equal(t, ocpp.CodeNotImplemented, ocppErr.Code)

	// Not an OCPP 1.6 action at all.
	_, err = table.Resolve("MakeCoffee", ocpp.V16)
	require.ErrorAs(t, err, &ocppErr)
	assert.Equal(t, ocpp.CodeNotSupported, ocppErr.Code)

	r, err := table.Resolve("Heartbeat", ocpp.V16)
	require.NoError(t, err)
	assert.Equal(t, "Heartbeat", r.Action)
}

func TestDispatchProducesCallResult(t *testing.T) {
	table, err := NewTable([]Route{{
		Action: "Heartbeat",
		Handler: func(ctx context.Context, req Request) (map[string]any, error) {
			return map[string]any{"currentTime": "2024-01-01T00:00:00Z"}, nil
		},
	}})
	require.NoError(t, err)

	call := &ocpp.Call{UniqueID: "h1", Action: "Heartbeat", Payload: map[string]any{}}
	result, callErr := table.Dispatch(context.Background(), call, ocpp.V16, schema.NoOpValidator{})
	require.Nil(t, callErr)
	require.NotNil(t, result)
	assert.Equal(t, "h1", result.UniqueID)
	assert.Equal(t, "Heartbeat", result.Action)
	assert.Equal(t, "2024-01-01T00:00:00Z", result.Payload["currentTime"])
}

func TestDispatchMapsHandlerErrors(t *testing.T) {
	table, err := NewTable([]Route{
		{
			Action: "Authorize",
			Handler: func(ctx context.Context, req Request) (map[string]any, error) {
				return nil, ocpp.NewError(ocpp.CodeSecurityError, "bad credentials", nil)
			},
		},
		{
			Action: "Heartbeat",
			Handler: func(ctx context.Context, req Request) (map[string]any, error) {
				return nil, errors.New("database on fire")
			},
		},
	})
	require.NoError(t, err)

	call := &ocpp.Call{UniqueID: "a1", Action: "Authorize", Payload: map[string]any{"idTag": "TAG1"}}
	result, callErr := table.Dispatch(context.Background(), call, ocpp.V16, schema.NoOpValidator{})
	require.Nil(t, result)
	require.NotNil(t, callErr)
	assert.Equal(t, ocpp.CodeSecurityError, callErr.Code)
	assert.Equal(t, "bad credentials", callErr.Description)

	// Internal failures must not leak their cause to the wire.
	call = &ocpp.Call{UniqueID: "h1", Action: "Heartbeat", Payload: map[string]any{}}
	result, callErr = table.Dispatch(context.Background(), call, ocpp.V16, schema.NoOpValidator{})
	require.Nil(t, result)
	require.NotNil(t, callErr)
	assert.Equal(t, ocpp.CodeInternalError, callErr.Code)
	assert.NotContains(t, callErr.Description, "database")
}

func TestDispatchValidationFailureBecomesCallError(t *testing.T) {
	table, err := NewTable([]Route{{Action: "Heartbeat", Handler: okHandler}})
	require.NoError(t, err)

	v := &stubValidator{err: ocpp.NewError(ocpp.CodeFormatViolation, "", nil)}
	call := &ocpp.Call{UniqueID: "h1", Action: "Heartbeat", Payload: map[string]any{}}
	result, callErr := table.Dispatch(context.Background(), call, ocpp.V16, v)
	require.Nil(t, result)
	require.NotNil(t, callErr)
	assert.Equal(t, ocpp.CodeFormatViolation, callErr.Code)
	// Failed before the handler, so only the inbound payload was checked.
	assert.Len(t, v.seen, 1)
}

func TestDispatchSkipValidation(t *testing.T) {
	table, err := NewTable([]Route{{
		Action:         "DataTransfer",
		Handler:        okHandler,
		SkipValidation: true,
	}})
	require.NoError(t, err)

	v := &stubValidator{err: ocpp.NewError(ocpp.CodeFormatViolation, "", nil)}
	call := &ocpp.Call{UniqueID: "d1", Action: "DataTransfer", Payload: map[string]any{}}
	result, callErr := table.Dispatch(context.Background(), call, ocpp.V16, v)
	require.Nil(t, callErr)
	require.NotNil(t, result)
	assert.Empty(t, v.seen)
}

func TestDispatchStripsNullsBeforeOutboundValidation(t *testing.T) {
	table, err := NewTable([]Route{{
		Action: "Heartbeat",
		Handler: func(ctx context.Context, req Request) (map[string]any, error) {
			return map[string]any{"currentTime": "2024-01-01T00:00:00Z", "extra": nil}, nil
		},
	}})
	require.NoError(t, err)

	v := &stubValidator{}
	call := &ocpp.Call{UniqueID: "h1", Action: "Heartbeat", Payload: map[string]any{}}
	result, callErr := table.Dispatch(context.Background(), call, ocpp.V16, v)
	require.Nil(t, callErr)
	assert.NotContains(t, result.Payload, "extra")
	require.Len(t, v.seen, 2)
	assert.NotContains(t, v.seen[1], "extra")
}

func TestDispatchRunsAfterHook(t *testing.T) {
	done := make(chan map[string]any, 1)
	table, err := NewTable([]Route{{
		Action: "StatusNotification",
		Handler: func(ctx context.Context, req Request) (map[string]any, error) {
			return map[string]any{}, nil
		},
		After: func(ctx context.Context, req Request, result map[string]any) {
			done <- result
		},
	}})
	require.NoError(t, err)

	call := &ocpp.Call{UniqueID: "s1", Action: "StatusNotification", Payload: map[string]any{
		"connectorId": float64(1), "errorCode": "NoError", "status": "Available",
	}}
	result, callErr := table.Dispatch(context.Background(), call, ocpp.V16, schema.NoOpValidator{})
	require.Nil(t, callErr)
	require.NotNil(t, result)

	select {
	case got := <-done:
		assert.Equal(t, result.Payload, got)
	case <-time.After(time.Second):
		t.Fatal("after hook did not run")
	}
}

func TestDispatchSurvivesAfterHookPanic(t *testing.T) {
	released := make(chan struct{})
	table, err := NewTable([]Route{{
		Action:  "Heartbeat",
		Handler: okHandler,
		After: func(ctx context.Context, req Request, result map[string]any) {
			defer close(released)
			panic("boom")
		},
	}})
	require.NoError(t, err)

	call := &ocpp.Call{UniqueID: "h1", Action: "Heartbeat", Payload: map[string]any{}}
	result, callErr := table.Dispatch(context.Background(), call, ocpp.V16, schema.NoOpValidator{})
	require.Nil(t, callErr)
	require.NotNil(t, result)

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("after hook never ran")
	}
}

func TestDefaultRoutes(t *testing.T) {
	table, err := NewTable(DefaultRoutes())
	require.NoError(t, err)

	for _, action := range []string{
		"BootNotification", "Authorize", "Heartbeat", "StatusNotification",
		"StartTransaction", "StopTransaction", "DataTransfer",
		"DiagnosticsStatusNotification", "FirmwareStatusNotification", "MeterValues",
	} {
		_, err := table.Resolve(action, ocpp.V16)
		assert.NoError(t, err, action)
	}

	call := &ocpp.Call{UniqueID: "b1", Action: "BootNotification", Payload: map[string]any{
		"chargePointModel": "HOMEADVANCED", "chargePointVendor": "AVT-Company",
	}}
	result, callErr := table.Dispatch(context.Background(), call, ocpp.V16, schema.NoOpValidator{})
	require.Nil(t, callErr)
	assert.Equal(t, "Accepted", result.Payload["status"])
	assert.Equal(t, BootInterval, result.Payload["interval"])
	assert.NotEmpty(t, result.Payload["currentTime"])

	call = &ocpp.Call{UniqueID: "t1", Action: "StartTransaction", Payload: map[string]any{
		"connectorId": float64(1), "idTag": "TAG1", "meterStart": float64(0),
		"timestamp": "2024-01-01T00:00:00Z",
	}}
	result, callErr = table.Dispatch(context.Background(), call, ocpp.V16, schema.NoOpValidator{})
	require.Nil(t, callErr)
	assert.NotNil(t, result.Payload["transactionId"])
	assert.Equal(t, map[string]any{"status": "Accepted"}, result.Payload["idTagInfo"])
}
