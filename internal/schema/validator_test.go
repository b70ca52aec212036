package schema

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwise/ocppd/internal/ocpp"
)

func shippedSchemas(t *testing.T) *FileValidator {
	t.Helper()
	return NewFileValidator(filepath.Join("..", "..", "schemas"))
}

func assertTaxonomyCode(t *testing.T, err error, want ocpp.ErrorCode) {
	t.Helper()
	var oe *ocpp.Error
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, want, oe.Code)
}

func TestFileValidatorAcceptsValidPayloads(t *testing.T) {
	v := shippedSchemas(t)

	tests := []struct {
		name    string
		msgType ocpp.MessageType
		action  string
		payload map[string]any
	}{
		{"heartbeat request", ocpp.MessageTypeCall, "Heartbeat", map[string]any{}},
		{"nil payload treated as empty", ocpp.MessageTypeCall, "Heartbeat", nil},
		{"boot notification request", ocpp.MessageTypeCall, "BootNotification", map[string]any{
			"chargePointVendor": "VendorX",
			"chargePointModel":  "ModelY",
		}},
		{"boot notification response", ocpp.MessageTypeCallResult, "BootNotification", map[string]any{
			"status":      "Accepted",
			"currentTime": "2024-01-01T00:00:00Z",
			"interval":    float64(300),
		}},
		{"status notification request", ocpp.MessageTypeCall, "StatusNotification", map[string]any{
			"connectorId": float64(1),
			"errorCode":   "NoError",
			"status":      "Available",
			"timestamp":   "2024-01-01T00:00:00Z",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.msgType, tt.action, ocpp.V16, tt.payload)
			assert.NoError(t, err)
		})
	}
}

func TestFileValidatorViolationMapping(t *testing.T) {
	v := shippedSchemas(t)

	tests := []struct {
		name     string
		payload  map[string]any
		wantCode ocpp.ErrorCode
	}{
		{
			"missing required field",
			map[string]any{"chargePointVendor": "VendorX"},
			ocpp.CodeProtocolError,
		},
		{
			"wrong field type",
			map[string]any{"chargePointVendor": float64(12), "chargePointModel": "ModelY"},
			ocpp.CodeTypeConstraintViolation,
		},
		{
			"additional property",
			map[string]any{"chargePointVendor": "VendorX", "chargePointModel": "ModelY", "extra": true},
			ocpp.CodeFormatViolation,
		},
		{
			"length constraint",
			map[string]any{"chargePointVendor": "a vendor name that is way beyond the limit", "chargePointModel": "ModelY"},
			ocpp.CodeTypeConstraintViolation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(ocpp.MessageTypeCall, "BootNotification", ocpp.V16, tt.payload)
			require.Error(t, err)
			assertTaxonomyCode(t, err, tt.wantCode)
		})
	}
}

func TestFileValidatorEnumViolationFallsBackToFormatViolation(t *testing.T) {
	v := shippedSchemas(t)

	err := v.Validate(ocpp.MessageTypeCall, "StatusNotification", ocpp.V16, map[string]any{
		"connectorId": float64(1),
		"errorCode":   "NoError",
		"status":      "Dancing",
	})
	require.Error(t, err)
	assertTaxonomyCode(t, err, ocpp.CodeFormatViolation)
}

func TestFileValidatorMissingSchema(t *testing.T) {
	v := shippedSchemas(t)

	err := v.Validate(ocpp.MessageTypeCall, "ClearCache", ocpp.V16, map[string]any{})
	require.Error(t, err)
	assertTaxonomyCode(t, err, ocpp.CodeNotImplemented)
}

func TestFileValidatorUnknownVersion(t *testing.T) {
	v := shippedSchemas(t)

	err := v.Validate(ocpp.MessageTypeCall, "Heartbeat", "3.1", map[string]any{})
	require.Error(t, err)
	assertTaxonomyCode(t, err, ocpp.CodeNotImplemented)
}

func TestFileValidatorCachesCompiledSchemas(t *testing.T) {
	v := shippedSchemas(t)

	require.NoError(t, v.Validate(ocpp.MessageTypeCall, "Heartbeat", ocpp.V16, map[string]any{}))
	require.Len(t, v.cache, 1)

	require.NoError(t, v.Validate(ocpp.MessageTypeCall, "Heartbeat", ocpp.V16, map[string]any{}))
	assert.Len(t, v.cache, 1)
}

// capturingValidator records the payload it is handed.
type capturingValidator struct {
	payload map[string]any
}

func (c *capturingValidator) Validate(_ ocpp.MessageType, _ string, _ string, payload map[string]any) error {
	c.payload = payload
	return nil
}

func TestCheckPayloadFixedPrecisionV16(t *testing.T) {
	t.Run("SetChargingProfile call is rounded", func(t *testing.T) {
		rec := &capturingValidator{}
		call := &ocpp.Call{
			UniqueID: "id",
			Action:   "SetChargingProfile",
			Payload:  map[string]any{"limit": 7.4999},
		}

		require.NoError(t, CheckPayload(rec, call, ocpp.V16))
		assert.Equal(t, 7.5, rec.payload["limit"])
	})

	t.Run("GetCompositeSchedule result is rounded", func(t *testing.T) {
		rec := &capturingValidator{}
		res := &ocpp.CallResult{
			UniqueID: "id",
			Action:   "GetCompositeSchedule",
			Payload:  map[string]any{"minChargingRate": 6.0001},
		}

		require.NoError(t, CheckPayload(rec, res, ocpp.V16))
		assert.Equal(t, 6.0, rec.payload["minChargingRate"])
	})

	t.Run("other actions pass through untouched", func(t *testing.T) {
		rec := &capturingValidator{}
		call := &ocpp.Call{
			UniqueID: "id",
			Action:   "MeterValues",
			Payload:  map[string]any{"value": 7.4999},
		}

		require.NoError(t, CheckPayload(rec, call, ocpp.V16))
		assert.Equal(t, 7.4999, rec.payload["value"])
	})
}

func TestCheckPayloadRejectsCallError(t *testing.T) {
	err := CheckPayload(NoOpValidator{}, &ocpp.CallError{UniqueID: "id"}, ocpp.V16)
	require.Error(t, err)

	var oe *ocpp.Error
	assert.False(t, errors.As(err, &oe), "CallError rejection is a local error, not a taxonomy code")
}

func TestCheckPayloadCallResultNeedsAction(t *testing.T) {
	err := CheckPayload(NoOpValidator{}, &ocpp.CallResult{UniqueID: "id"}, ocpp.V16)
	require.Error(t, err)
	assertTaxonomyCode(t, err, ocpp.CodeNotImplemented)
}
