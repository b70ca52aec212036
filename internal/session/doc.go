// Package session tracks connected charge points and their connector
// state.
//
// A Session is the last-known projection of one charge point: identity,
// boot attributes and per-connector status. Sessions live in a Store,
// which is a pluggable persistence plus pub/sub boundary; MemoryStore
// serves tests and single-node runs, and the NATS-backed store mirrors
// sessions into JetStream for other consumers.
//
// The Registry applies protocol events to sessions. Reconnecting under
// an identity that already has a session reattaches to it and keeps the
// recorded connector state; connector updates replace the slice rather
// than mutating it in place, so concurrent readers never observe a
// half-applied update. Store and publish failures on these side-effect
// paths are logged and swallowed, never failing the dispatch that
// triggered them.
package session
