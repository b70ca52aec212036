// Package dispatch owns the per-connection message loop for a charge
// point: routing inbound frames, correlating outbound Calls with their
// responses and enforcing the single-outstanding-call rule.
//
// A ChargePoint couples one transport connection with a routing table
// and a payload validator. Inbound Calls are dispatched and answered;
// inbound CallResult and CallError frames are handed to whichever Call
// is currently awaiting a response. At most one outbound Call is in
// flight per connection; a mutex serializes callers and is released on
// every exit path, including timeouts.
//
// Responses are matched by unique id. A response carrying any other id
// is logged and discarded, and the wait continues against the remaining
// deadline budget. A wait that exhausts its budget fails with
// *CallTimeoutError. Malformed inbound frames are logged and dropped
// without closing the connection.
package dispatch
