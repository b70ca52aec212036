// Package store implements the session.Store interface on NATS.
//
// Sessions are persisted in a JetStream key-value bucket keyed by
// charge point identity, so a restarted server reattaches charge
// points to their recorded state. Registry events are published as
// plain NATS messages on their topic subjects, where the command relay
// and any external consumer can pick them up.
package store
