package ocpp

import "fmt"

// ErrorCode is a wire-stable OCPP error code.
type ErrorCode string

const (
	CodeNotImplemented              ErrorCode = "NotImplemented"
	CodeNotSupported                ErrorCode = "NotSupported"
	CodeInternalError               ErrorCode = "InternalError"
	CodeProtocolError               ErrorCode = "ProtocolError"
	CodeSecurityError               ErrorCode = "SecurityError"
	CodeFormatViolation             ErrorCode = "FormatViolation"
	CodeFormationViolation          ErrorCode = "FormationViolation"
	CodePropertyConstraintViolation ErrorCode = "PropertyConstraintViolation"
	CodeTypeConstraintViolation     ErrorCode = "TypeConstraintViolation"
	CodeGenericError                ErrorCode = "GenericError"

	// CodeOccurrenceConstraintViolation is the corrected spelling and the
	// only one emitted. The legacy spelling below is accepted on decode.
	CodeOccurrenceConstraintViolation ErrorCode = "OccurrenceConstraintViolation"
	CodeOccurenceConstraintViolation  ErrorCode = "OccurenceConstraintViolation"
)

// defaultDescriptions follow the OCPP specification wording.
var defaultDescriptions = map[ErrorCode]string{
	CodeNotImplemented:                "Request Action is recognized but not supported by the receiver",
	CodeNotSupported:                  "Requested Action is not known by receiver",
	CodeInternalError:                 "An internal error occurred and the receiver was not able to process the requested Action successfully",
	CodeProtocolError:                 "Payload for Action is incomplete",
	CodeSecurityError:                 "During the processing of Action a security issue occurred preventing receiver from completing the Action successfully",
	CodeFormatViolation:               "Payload for Action is syntactically incorrect or structure for Action",
	CodeFormationViolation:            "Payload for Action is syntactically incorrect or structure for Action",
	CodePropertyConstraintViolation:   "Payload is syntactically correct but at least one field contains an invalid value",
	CodeOccurenceConstraintViolation:  "Payload for Action is syntactically correct but at least one of the fields violates occurence constraints",
	CodeOccurrenceConstraintViolation: "Payload for Action is syntactically correct but at least one of the fields violates occurence constraints",
	CodeTypeConstraintViolation:       "Payload for Action is syntactically correct but at least one of the fields violates data type constraints",
	CodeGenericError:                  "Any other error not covered by the other OCPP defined errors",
}

// KnownErrorCode reports whether code is a member of the closed taxonomy,
// in either spelling.
func KnownErrorCode(code ErrorCode) bool {
	_, ok := defaultDescriptions[code]
	return ok
}

// canonicalCode maps the legacy spelling onto the corrected one.
func canonicalCode(code ErrorCode) ErrorCode {
	if code == CodeOccurenceConstraintViolation {
		return CodeOccurrenceConstraintViolation
	}
	return code
}

// Error is a protocol failure carrying a taxonomy code. It round-trips
// between Go errors and wire-level CallError frames.
type Error struct {
	Code        ErrorCode
	Description string
	Details     map[string]any
}

// NewError builds an Error for the given code. An empty description takes
// the code's default wording.
func NewError(code ErrorCode, description string, details map[string]any) *Error {
	if description == "" {
		description = defaultDescriptions[code]
	}
	if details == nil {
		details = map[string]any{}
	}
	return &Error{Code: canonicalCode(code), Description: description, Details: details}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches on the taxonomy code so callers can use errors.Is with a bare
// NewError(code, "", nil) target.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && canonicalCode(t.Code) == e.Code
}

// UnknownCallErrorCodeError reports an inbound CallError whose code is not
// a member of the taxonomy. It is a local failure, never a wire code, and
// must surface to whoever issued the original Call.
type UnknownCallErrorCodeError struct {
	Code string
}

func (e *UnknownCallErrorCodeError) Error() string {
	return fmt.Sprintf("error code %q is not defined by the OCPP specification", e.Code)
}

// ToError reconstructs the taxonomy failure carried by a CallError.
// Codes outside the closed set yield *UnknownCallErrorCodeError.
func (e *CallError) ToError() (*Error, error) {
	if !KnownErrorCode(e.Code) {
		return nil, &UnknownCallErrorCodeError{Code: string(e.Code)}
	}
	return NewError(e.Code, e.Description, e.Details), nil
}
