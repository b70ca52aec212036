package server

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/gridwise/ocppd/internal/dispatch"
	"github.com/gridwise/ocppd/internal/logging"
	"github.com/gridwise/ocppd/internal/metrics"
)

// The Server is the relay.ClientController for its own socket table.

// Disconnect force-closes a client socket. Reports whether the client
// was connected here.
func (s *Server) Disconnect(identity string) bool {
	s.mu.Lock()
	c, ok := s.clients[identity]
	s.mu.Unlock()
	if !ok {
		return false
	}
	logging.Info("Disconnecting client on command", zap.String("identity", identity))
	c.close()
	return true
}

// SendCall pushes a server-initiated Call to a connected client and
// returns its result payload. CallErrors surface as errors here; the
// relay caller asked for the outcome, suppressing it would hide it.
func (s *Server) SendCall(ctx context.Context, identity, action string, payload map[string]any) (map[string]any, error) {
	s.mu.Lock()
	c, ok := s.clients[identity]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("client %s is not connected", identity)
	}
	result, err := c.cp.Call(ctx, action, payload, dispatch.WithStrictErrors())
	var timeout *dispatch.CallTimeoutError
	if errors.As(err, &timeout) {
		metrics.CallTimeoutsTotal.Inc()
	}
	return result, err
}

// ConnectedClients lists the identities currently attached, sorted for
// stable snapshots.
func (s *Server) ConnectedClients() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.clients))
	for identity := range s.clients {
		out = append(out, identity)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}

// SendToClient delivers a raw text frame to one client.
func (s *Server) SendToClient(identity string, message []byte) error {
	s.mu.Lock()
	c, ok := s.clients[identity]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("client %s is not connected", identity)
	}
	return c.Send(message)
}

// Broadcast delivers a raw text frame to every connected client.
// Clients that are locally absent or whose socket is no longer open are
// skipped silently.
func (s *Server) Broadcast(message []byte) {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		if c.closed.Load() {
			continue
		}
		if err := c.Send(message); err != nil {
			logging.Debug("Broadcast skipped client",
				zap.String("identity", c.identity),
				zap.Error(err),
			)
		}
	}
}
