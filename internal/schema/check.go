package schema

import (
	"fmt"

	"github.com/gridwise/ocppd/internal/ocpp"
)

// fixedPrecisionV16 lists the OCPP 1.6 messages whose wire format mandates
// fixed single-decimal precision. Their numeric leaves are rounded before
// validation, mirroring the codec's outbound rounding; otherwise naive
// float serialization breaks schema numeric-range checks.
var fixedPrecisionV16 = struct {
	calls   map[string]struct{}
	results map[string]struct{}
}{
	calls: map[string]struct{}{
		"SetChargingProfile":     {},
		"RemoteStartTransaction": {},
	},
	results: map[string]struct{}{
		"GetCompositeSchedule": {},
	},
}

// CheckPayload validates a Call or CallResult against its schema. CallError
// frames are never schema validated and are rejected outright.
func CheckPayload(v Validator, msg ocpp.Message, version string) error {
	switch m := msg.(type) {
	case *ocpp.Call:
		payload := m.Payload
		if version == ocpp.V16 {
			if _, ok := fixedPrecisionV16.calls[m.Action]; ok {
				payload = ocpp.RoundFloats(payload).(map[string]any)
			}
		}
		return v.Validate(ocpp.MessageTypeCall, m.Action, version, payload)

	case *ocpp.CallResult:
		if m.Action == "" {
			return ocpp.NewError(ocpp.CodeNotImplemented,
				"Cannot validate a CallResult without action context", nil)
		}
		payload := m.Payload
		if version == ocpp.V16 {
			if _, ok := fixedPrecisionV16.results[m.Action]; ok {
				payload = ocpp.RoundFloats(payload).(map[string]any)
			}
		}
		return v.Validate(ocpp.MessageTypeCallResult, m.Action, version, payload)

	default:
		return fmt.Errorf("payload can't be validated: message kind %s is neither Call nor CallResult", msg.Type())
	}
}
