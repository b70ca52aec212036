package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/gridwise/ocppd/internal/ocpp"
)

// Validator checks a payload against the schema selected by message kind,
// action and protocol version. A nil return means the payload is valid.
type Validator interface {
	Validate(msgType ocpp.MessageType, action, version string, payload map[string]any) error
}

// NoOpValidator accepts everything. Used when no schema directory is
// configured and in tests that exercise routing rather than validation.
type NoOpValidator struct{}

func (NoOpValidator) Validate(ocpp.MessageType, string, string, map[string]any) error {
	return nil
}

// FileValidator loads and caches JSON Schema documents from a directory.
type FileValidator struct {
	dir string

	mu    sync.Mutex
	cache map[string]*gojsonschema.Schema
}

// NewFileValidator returns a validator rooted at dir. The directory is not
// scanned up front; schemas are compiled lazily per action.
func NewFileValidator(dir string) *FileValidator {
	return &FileValidator{
		dir:   dir,
		cache: make(map[string]*gojsonschema.Schema),
	}
}

// Validate implements Validator.
func (v *FileValidator) Validate(msgType ocpp.MessageType, action, version string, payload map[string]any) error {
	sch, err := v.schemaFor(msgType, action, version)
	if err != nil {
		return err
	}

	result, err := sch.Validate(gojsonschema.NewGoLoader(payloadOrEmpty(payload)))
	if err != nil {
		return ocpp.NewError(ocpp.CodeNotImplemented,
			fmt.Sprintf("Failed to validate action: %s", action), nil)
	}
	if result.Valid() {
		return nil
	}
	return violationError(action, payload, result.Errors())
}

// schemaFor resolves, loads and compiles the schema document for the given
// message kind, action and version.
func (v *FileValidator) schemaFor(msgType ocpp.MessageType, action, version string) (*gojsonschema.Schema, error) {
	name, err := schemaName(msgType, action, version)
	if err != nil {
		return nil, err
	}
	subdir, err := schemaDir(version)
	if err != nil {
		return nil, err
	}
	cacheKey := subdir + "/" + name

	v.mu.Lock()
	defer v.mu.Unlock()

	if sch, ok := v.cache[cacheKey]; ok {
		return sch, nil
	}

	path := filepath.Join(v.dir, subdir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ocpp.NewError(ocpp.CodeNotImplemented,
			fmt.Sprintf("Failed to load or compile schema for action: %s", action), nil)
	}

	sch, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, ocpp.NewError(ocpp.CodeNotImplemented,
			fmt.Sprintf("Failed to load or compile schema for action: %s", action), nil)
	}

	v.cache[cacheKey] = sch
	return sch, nil
}

// schemaName follows the upstream file naming: 1.6 requests are bare
// action names, 2.x requests carry a Request suffix, responses always
// carry a Response suffix, and 2.0 documents additionally end in _v1p0.
func schemaName(msgType ocpp.MessageType, action, version string) (string, error) {
	name := action
	switch msgType {
	case ocpp.MessageTypeCallResult:
		name += "Response"
	case ocpp.MessageTypeCall:
		if version == ocpp.V20 || version == ocpp.V201 {
			name += "Request"
		}
	default:
		return "", ocpp.NewError(ocpp.CodeNotImplemented,
			fmt.Sprintf("%s messages are never schema validated", msgType), nil)
	}
	if version == ocpp.V20 {
		name += "_v1p0"
	}
	return name, nil
}

func schemaDir(version string) (string, error) {
	switch version {
	case ocpp.V16:
		return "v16", nil
	case ocpp.V20:
		return "v20", nil
	case ocpp.V201:
		return "v201", nil
	default:
		return "", ocpp.NewError(ocpp.CodeNotImplemented,
			fmt.Sprintf("Invalid OCPP version %q", version), nil)
	}
}

// violationError maps the first validator violation to its taxonomy error.
func violationError(action string, payload map[string]any, errs []gojsonschema.ResultError) error {
	if len(errs) == 0 {
		return ocpp.NewError(ocpp.CodeFormatViolation,
			fmt.Sprintf("Payload for action '%s' is not valid", action), nil)
	}
	violation := errs[0]

	switch violation.Type() {
	case "invalid_type":
		return ocpp.NewError(ocpp.CodeTypeConstraintViolation, violation.Description(), nil)
	case "additional_property_not_allowed":
		return ocpp.NewError(ocpp.CodeFormatViolation, violation.Description(), nil)
	case "required":
		return ocpp.NewError(ocpp.CodeProtocolError, violation.Description(), nil)
	case "string_lte", "string_gte":
		// Length constraints.
		return ocpp.NewError(ocpp.CodeTypeConstraintViolation, violation.Description(), nil)
	default:
		return ocpp.NewError(ocpp.CodeFormatViolation,
			fmt.Sprintf("Payload %v for action '%s' is not valid: %s", payload, action, violation.Description()), nil)
	}
}

func payloadOrEmpty(p map[string]any) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return p
}
