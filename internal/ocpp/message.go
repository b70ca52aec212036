package ocpp

import (
	"encoding/json"
	"fmt"
	"math"
)

// MessageType is the leading integer tag of an OCPP-J frame.
type MessageType int

const (
	MessageTypeCall       MessageType = 2
	MessageTypeCallResult MessageType = 3
	MessageTypeCallError  MessageType = 4
)

// String returns the message kind name.
func (t MessageType) String() string {
	switch t {
	case MessageTypeCall:
		return "Call"
	case MessageTypeCallResult:
		return "CallResult"
	case MessageTypeCallError:
		return "CallError"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Message is one of Call, CallResult or CallError.
type Message interface {
	Type() MessageType
	ID() string
}

// Call is a request, initiated by either side of the connection.
type Call struct {
	UniqueID string
	Action   string
	Payload  map[string]any
}

func (c *Call) Type() MessageType { return MessageTypeCall }
func (c *Call) ID() string        { return c.UniqueID }

// MarshalJSON encodes the Call as its wire array with numeric leaves
// rounded to one decimal place.
func (c *Call) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{
		int(MessageTypeCall),
		c.UniqueID,
		c.Action,
		roundFloats(payloadOrEmpty(c.Payload)),
	})
}

// CreateCallResult builds the success response for this Call. The action is
// carried over so the response payload can be validated in context; it is
// never written to the wire.
func (c *Call) CreateCallResult(payload map[string]any) *CallResult {
	return &CallResult{
		UniqueID: c.UniqueID,
		Action:   c.Action,
		Payload:  payload,
	}
}

// CreateCallError builds the failure response for this Call. A recognized
// taxonomy error keeps its code, description and details; anything else is
// reported as InternalError so the original cause never leaks onto the
// wire beyond a generic description.
func (c *Call) CreateCallError(err error) *CallError {
	ce := &CallError{
		UniqueID:    c.UniqueID,
		Code:        CodeInternalError,
		Description: "An unexpected error occurred.",
		Details:     map[string]any{},
	}
	if oe, ok := err.(*Error); ok {
		ce.Code = canonicalCode(oe.Code)
		ce.Description = oe.Description
		if oe.Details != nil {
			ce.Details = oe.Details
		}
	}
	return ce
}

// CallResult is the success response to a Call.
type CallResult struct {
	UniqueID string
	Payload  map[string]any

	// Action is attached locally after decode so the payload can be
	// validated against the right response schema. Not on the wire.
	Action string
}

func (r *CallResult) Type() MessageType { return MessageTypeCallResult }
func (r *CallResult) ID() string        { return r.UniqueID }

// MarshalJSON encodes the CallResult as its wire array with numeric leaves
// rounded to one decimal place.
func (r *CallResult) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{
		int(MessageTypeCallResult),
		r.UniqueID,
		roundFloats(payloadOrEmpty(r.Payload)),
	})
}

// CallError is the failure response to a Call.
type CallError struct {
	UniqueID    string
	Code        ErrorCode
	Description string
	Details     map[string]any
}

func (e *CallError) Type() MessageType { return MessageTypeCallError }
func (e *CallError) ID() string        { return e.UniqueID }

// MarshalJSON encodes the CallError as its wire array. No numeric rounding
// is applied to error frames.
func (e *CallError) MarshalJSON() ([]byte, error) {
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	return json.Marshal([]any{
		int(MessageTypeCallError),
		e.UniqueID,
		string(canonicalCode(e.Code)),
		e.Description,
		details,
	})
}

// Pack serializes a message to its wire form.
func Pack(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("pack %s %s: %w", m.Type(), m.ID(), err)
	}
	return data, nil
}

// Unpack decodes a raw frame into one of the three message kinds.
//
// Failure modes, all *Error:
//   - FormatViolation when the text is not valid JSON
//   - ProtocolError when the decoded value is not an array, or the array
//     is missing required elements for its kind
//   - PropertyConstraintViolation when the type tag is not 2, 3 or 4
func Unpack(raw []byte) (Message, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		var probe any
		if json.Unmarshal(raw, &probe) != nil {
			return nil, NewError(CodeFormatViolation, "Message is not valid JSON", nil)
		}
		return nil, NewError(CodeProtocolError,
			fmt.Sprintf("OCPP message hasn't the correct format. It should be a list, but got %q instead", jsonKind(probe)), nil)
	}
	if len(elems) == 0 {
		return nil, NewError(CodeProtocolError, "Message is missing elements", nil)
	}

	var typeTag int
	if err := json.Unmarshal(elems[0], &typeTag); err != nil {
		return nil, NewError(CodePropertyConstraintViolation,
			fmt.Sprintf("MessageTypeId %s isn't valid", elems[0]), nil)
	}

	rest := elems[1:]
	switch MessageType(typeTag) {
	case MessageTypeCall:
		if len(rest) < 3 {
			return nil, NewError(CodeProtocolError, "Message is missing elements", nil)
		}
		c := &Call{}
		if err := unpackString(rest[0], &c.UniqueID); err != nil {
			return nil, err
		}
		if err := unpackString(rest[1], &c.Action); err != nil {
			return nil, err
		}
		if err := unpackPayload(rest[2], &c.Payload); err != nil {
			return nil, err
		}
		return c, nil

	case MessageTypeCallResult:
		if len(rest) < 2 {
			return nil, NewError(CodeProtocolError, "Message is missing elements", nil)
		}
		r := &CallResult{}
		if err := unpackString(rest[0], &r.UniqueID); err != nil {
			return nil, err
		}
		if err := unpackPayload(rest[1], &r.Payload); err != nil {
			return nil, err
		}
		return r, nil

	case MessageTypeCallError:
		if len(rest) < 4 {
			return nil, NewError(CodeProtocolError, "Message is missing elements", nil)
		}
		e := &CallError{}
		var code string
		if err := unpackString(rest[0], &e.UniqueID); err != nil {
			return nil, err
		}
		if err := unpackString(rest[1], &code); err != nil {
			return nil, err
		}
		if err := unpackString(rest[2], &e.Description); err != nil {
			return nil, err
		}
		if err := unpackPayload(rest[3], &e.Details); err != nil {
			return nil, err
		}
		e.Code = ErrorCode(code)
		return e, nil

	default:
		return nil, NewError(CodePropertyConstraintViolation,
			fmt.Sprintf("MessageTypeId '%d' isn't valid", typeTag), nil)
	}
}

func unpackString(raw json.RawMessage, dst *string) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return NewError(CodeProtocolError,
			fmt.Sprintf("Message element %s is not a string", raw), nil)
	}
	return nil
}

func unpackPayload(raw json.RawMessage, dst *map[string]any) error {
	if string(raw) == "null" {
		*dst = map[string]any{}
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return NewError(CodeProtocolError,
			fmt.Sprintf("Message payload %s is not an object", truncate(raw, 128)), nil)
	}
	return nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func truncate(raw []byte, n int) string {
	if len(raw) > n {
		return string(raw[:n]) + "..."
	}
	return string(raw)
}

func payloadOrEmpty(p map[string]any) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return p
}

// RoundFloats returns a copy of the value with every numeric leaf rounded
// to one decimal place. Maps and slices are copied, everything else is
// returned as is.
func RoundFloats(v any) any { return roundFloats(v) }

func roundFloats(v any) any {
	switch tv := v.(type) {
	case float64:
		return math.Round(tv*10) / 10
	case float32:
		return math.Round(float64(tv)*10) / 10
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, val := range tv {
			out[k] = roundFloats(val)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, val := range tv {
			out[i] = roundFloats(val)
		}
		return out
	default:
		return v
	}
}

// RemoveNulls strips nil-valued map entries and nil slice elements,
// recursively. The wire format omits optional-absent fields rather than
// emitting explicit nulls.
func RemoveNulls(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, val := range tv {
			if val == nil {
				continue
			}
			out[k] = RemoveNulls(val)
		}
		return out
	case []any:
		out := make([]any, 0, len(tv))
		for _, val := range tv {
			if val == nil {
				continue
			}
			out = append(out, RemoveNulls(val))
		}
		return out
	default:
		return v
	}
}

// RemoveNullsMap is RemoveNulls specialized for the common payload shape.
func RemoveNullsMap(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	return RemoveNulls(p).(map[string]any)
}
