package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/gridwise/ocppd/internal/logging"
	"github.com/gridwise/ocppd/internal/ocpp"
)

// Event is the payload published on connect, disconnect and boot
// topics.
type Event struct {
	Identity  string    `json:"identity"`
	Timestamp time.Time `json:"timestamp"`
	Model     string    `json:"model,omitempty"`
	Vendor    string    `json:"vendor,omitempty"`
}

// ConnectorEvent is the payload published on connector status changes.
type ConnectorEvent struct {
	Identity  string          `json:"identity"`
	Connector ConnectorStatus `json:"connector"`
	Timestamp time.Time       `json:"timestamp"`
}

// ClientsEvent is the connected-clients snapshot published after every
// successfully dispatched call.
type ClientsEvent struct {
	Clients   []string  `json:"clients"`
	Timestamp time.Time `json:"timestamp"`
}

// Registry applies protocol events to the session store. Its methods
// run on dispatch side-effect paths, so store and publish failures are
// logged rather than returned.
type Registry struct {
	store Store
	now   func() time.Time
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store, now: time.Now}
}

// Connect records a charge point connection. An existing session under
// the same identity is reattached: its boot attributes and connector
// state survive, only the connection timestamp moves.
func (r *Registry) Connect(ctx context.Context, identity string) *Session {
	s, err := r.store.Get(ctx, identity)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logging.Warn("Session lookup failed", zap.String("identity", identity), zap.Error(err))
		}
		s = &Session{Identity: identity}
	}
	s.LastConnected = r.now().UTC()

	r.put(ctx, s)
	r.publish(ctx, TopicConnected, Event{Identity: identity, Timestamp: s.LastConnected})
	return s.Clone()
}

// Disconnect drops the session. Calling it for an identity that has no
// session is a no-op; no event is published twice.
func (r *Registry) Disconnect(ctx context.Context, identity string) {
	if _, err := r.store.Get(ctx, identity); err != nil {
		return
	}
	if err := r.store.Delete(ctx, identity); err != nil {
		logging.Warn("Session delete failed", zap.String("identity", identity), zap.Error(err))
		return
	}
	r.publish(ctx, TopicDisconnected, Event{Identity: identity, Timestamp: r.now().UTC()})
}

// UpdateConnector replaces the status of one connector. The connector
// slice is rebuilt, never mutated, so sessions already handed out keep
// their view.
func (r *Registry) UpdateConnector(ctx context.Context, identity string, cs ConnectorStatus) {
	s, err := r.store.Get(ctx, identity)
	if err != nil {
		logging.Warn("Connector update for unknown session",
			zap.String("identity", identity), zap.Int("connector", cs.ID))
		return
	}

	replaced := false
	connectors := make([]ConnectorStatus, 0, len(s.Connectors)+1)
	for _, c := range s.Connectors {
		if c.ID == cs.ID {
			connectors = append(connectors, cs)
			replaced = true
		} else {
			connectors = append(connectors, c)
		}
	}
	if !replaced {
		connectors = append(connectors, cs)
	}
	s.Connectors = connectors

	r.put(ctx, s)
	r.publish(ctx, TopicConnectorStatus, ConnectorEvent{
		Identity:  identity,
		Connector: cs,
		Timestamp: r.now().UTC(),
	})
}

// MergeAttributes folds boot attributes from a payload into the
// session. Unknown keys are ignored; absent keys leave the recorded
// values alone.
func (r *Registry) MergeAttributes(ctx context.Context, identity string, payload map[string]any) {
	s, err := r.store.Get(ctx, identity)
	if err != nil {
		logging.Warn("Attribute merge for unknown session", zap.String("identity", identity))
		return
	}

	changed := false
	if model, ok := payload["chargePointModel"].(string); ok && model != "" {
		s.Model = model
		changed = true
	}
	if vendor, ok := payload["chargePointVendor"].(string); ok && vendor != "" {
		s.Vendor = vendor
		changed = true
	}
	if !changed {
		return
	}

	r.put(ctx, s)
	r.publish(ctx, TopicBoot, Event{
		Identity:  identity,
		Timestamp: r.now().UTC(),
		Model:     s.Model,
		Vendor:    s.Vendor,
	})
}

// PublishClients broadcasts which identities hold a connection right
// now.
func (r *Registry) PublishClients(ctx context.Context, identities []string) {
	r.publish(ctx, TopicClients, ClientsEvent{
		Clients:   identities,
		Timestamp: r.now().UTC(),
	})
}

// ObserveCall applies the session side effects of an inbound Call. It
// runs before the call is dispatched, so the registry reflects a
// StatusNotification before its reply reaches the wire. Boot
// attributes are not merged here; they fold in only once the call has
// dispatched successfully.
func (r *Registry) ObserveCall(ctx context.Context, identity string, call *ocpp.Call) {
	switch call.Action {
	case "StatusNotification":
		cs := ConnectorStatus{CallID: call.UniqueID}
		if id, ok := call.Payload["connectorId"].(float64); ok {
			cs.ID = int(id)
		}
		cs.Status, _ = call.Payload["status"].(string)
		cs.ErrorCode, _ = call.Payload["errorCode"].(string)
		cs.Timestamp, _ = call.Payload["timestamp"].(string)
		if cs.Timestamp == "" {
			cs.Timestamp = r.now().UTC().Format(time.RFC3339)
		}
		r.UpdateConnector(ctx, identity, cs)
	}
}

// Get returns a copy of one session.
func (r *Registry) Get(ctx context.Context, identity string) (*Session, error) {
	return r.store.Get(ctx, identity)
}

// List returns copies of all sessions.
func (r *Registry) List(ctx context.Context) ([]*Session, error) {
	return r.store.List(ctx)
}

func (r *Registry) put(ctx context.Context, s *Session) {
	if err := r.store.Put(ctx, s); err != nil {
		logging.Warn("Session store failed", zap.String("identity", s.Identity), zap.Error(err))
	}
}

func (r *Registry) publish(ctx context.Context, topic string, event any) {
	if err := r.store.Publish(ctx, topic, event); err != nil {
		logging.Warn("Event publish failed", zap.String("topic", topic), zap.Error(err))
	}
}
