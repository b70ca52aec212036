package session

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned by Store.Get for an unknown identity.
var ErrNotFound = errors.New("session not found")

// Topics published by the Registry. A Store maps these onto whatever
// transport it wraps; MemoryStore just records them.
const (
	TopicConnected       = "ocpp.events.connected"
	TopicDisconnected    = "ocpp.events.disconnected"
	TopicBoot            = "ocpp.events.boot"
	TopicConnectorStatus = "ocpp.connector_status"
	TopicClients         = "ocpp.notify.clients"
)

// Store persists sessions and fans out session events.
type Store interface {
	Get(ctx context.Context, identity string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, identity string) error
	List(ctx context.Context) ([]*Session, error)
	Publish(ctx context.Context, topic string, event any) error
}

// PublishedEvent is one event captured by a MemoryStore.
type PublishedEvent struct {
	Topic string
	Event any
}

// MemoryStore keeps sessions in a map. It backs tests and single-node
// deployments where no NATS cluster is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	events   []PublishedEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Get(_ context.Context, identity string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[identity]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Identity] = s.Clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, identity)
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out, nil
}

func (m *MemoryStore) Publish(_ context.Context, topic string, event any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, PublishedEvent{Topic: topic, Event: event})
	return nil
}

// Events returns a snapshot of everything published so far.
func (m *MemoryStore) Events() []PublishedEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PublishedEvent, len(m.events))
	copy(out, m.events)
	return out
}
