// Package routing maps OCPP actions to handlers and drives inbound
// Call dispatch.
//
// A Table is built once at startup from a slice of Route entries and is
// read-only afterwards, so it is safe for concurrent use by every
// connection. Resolution distinguishes two failure modes: an action the
// protocol version does not define at all (NotSupported) and an action
// the catalog knows but no handler is registered for (NotImplemented).
//
// Dispatch validates the inbound payload, invokes the handler, strips
// nulls from the reply, validates the outbound payload and wraps the
// result in a CallResult. Any failure along the way becomes a CallError
// carrying the matching taxonomy code. Handlers receive the decoded
// payload as a plain map; no reflection or struct binding is involved.
package routing
