// Package ocpp implements the OCPP-J message envelope and error taxonomy.
//
// OCPP-J frames every message as a JSON array with a leading integer type
// tag. Three message kinds exist:
//
//	Call:       [2, "<uniqueId>", "<action>", {<payload>}]
//	CallResult: [3, "<uniqueId>", {<payload>}]
//	CallError:  [4, "<uniqueId>", "<errorCode>", "<errorDescription>", {<details>}]
//
// A Call is a request and may travel in either direction; CallResult and
// CallError answer exactly one prior Call, tied together by the unique id.
//
// Outbound Call and CallResult payloads have all numeric leaves rounded to
// one decimal place before serialization. Charge points running OCPP 1.6
// expect fixed single-decimal precision and reject naive float encodings.
// CallError is serialized without that normalization.
//
// The error taxonomy is the closed set of wire-stable error codes defined
// by the OCPP specification. Decoding accepts both the legacy
// "OccurenceConstraintViolation" spelling and the corrected one; only the
// corrected spelling is ever emitted.
package ocpp
