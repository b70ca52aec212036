// Package backsync mirrors session state into an external CPMS
// backend over HTTP.
//
// CPMS (charge point management system) is the business-side system of
// record; this server only owns live protocol state. The syncer pushes
// a snapshot of all sessions on an interval so the backend converges
// even when individual event deliveries were missed. Requests carry an
// X-Internal-Service header for internal authentication and retry with
// exponential backoff on server errors; a failed sync round is logged
// and the next tick tries again.
package backsync
