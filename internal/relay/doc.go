// Package relay bridges NATS subjects to connected charge points, so
// operator tooling and backend services can drive clients without
// talking WebSocket themselves.
//
// Two command subjects are served: ocpp.cmd.disconnect force-closes a
// client socket, and ocpp.cmd.call pushes a server-initiated Call and
// waits for the outcome. Replies go to the message's reply subject when
// one is set, otherwise to ocpp.cmd.reply. After each handled command a
// snapshot of connected client identities is published on
// ocpp.notify.clients, best-effort.
//
// The relay talks to the server through the ClientController interface
// and never touches sockets directly.
package relay
