package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/gridwise/ocppd/internal/logging"
	"github.com/gridwise/ocppd/internal/session"
)

// SessionBucket is the JetStream KV bucket holding session projections.
const SessionBucket = "ocpp_sessions"

// NATSStore implements session.Store on a NATS connection with
// JetStream enabled.
type NATSStore struct {
	nc *nats.Conn
	kv jetstream.KeyValue
}

type options struct {
	name          string
	username      string
	password      string
	reconnectWait time.Duration
	timeout       time.Duration
}

// Option configures the NATS connection.
type Option func(*options)

// WithName sets the client name reported to the NATS server.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithUserInfo sets username/password authentication.
func WithUserInfo(username, password string) Option {
	return func(o *options) { o.username = username; o.password = password }
}

// WithReconnectWait overrides the delay between reconnect attempts.
func WithReconnectWait(d time.Duration) Option {
	return func(o *options) { o.reconnectWait = d }
}

// Connect dials NATS and ensures the session bucket exists. The
// connection reconnects indefinitely; sends during an outage are
// buffered by the client.
func Connect(ctx context.Context, url string, opts ...Option) (*NATSStore, error) {
	o := options{
		name:          "ocppd",
		reconnectWait: 2 * time.Second,
		timeout:       5 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}

	natsOpts := []nats.Option{
		nats.Name(o.name),
		nats.Timeout(o.timeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(o.reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logging.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	if o.username != "" {
		natsOpts = append(natsOpts, nats.UserInfo(o.username, o.password))
	}

	nc, err := nats.Connect(url, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  SessionBucket,
		History: 1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure bucket %s: %w", SessionBucket, err)
	}

	return &NATSStore{nc: nc, kv: kv}, nil
}

// Conn exposes the underlying connection for the command relay, which
// shares it rather than dialing twice.
func (s *NATSStore) Conn() *nats.Conn { return s.nc }

func (s *NATSStore) Get(ctx context.Context, identity string) (*session.Session, error) {
	entry, err := s.kv.Get(ctx, identity)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("get session %s: %w", identity, err)
	}

	var sess session.Session
	if err := json.Unmarshal(entry.Value(), &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", identity, err)
	}
	return &sess, nil
}

func (s *NATSStore) Put(ctx context.Context, sess *session.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.Identity, err)
	}
	if _, err := s.kv.Put(ctx, sess.Identity, data); err != nil {
		return fmt.Errorf("put session %s: %w", sess.Identity, err)
	}
	return nil
}

func (s *NATSStore) Delete(ctx context.Context, identity string) error {
	if err := s.kv.Delete(ctx, identity); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("delete session %s: %w", identity, err)
	}
	return nil
}

func (s *NATSStore) List(ctx context.Context) ([]*session.Session, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var out []*session.Session
	for key := range lister.Keys() {
		sess, err := s.Get(ctx, key)
		if err != nil {
			// Deleted between listing and reading.
			if errors.Is(err, session.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

// Publish sends a registry event on its topic subject as JSON.
func (s *NATSStore) Publish(_ context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event for %s: %w", topic, err)
	}
	if err := s.nc.Publish(topic, data); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close drains the connection, flushing pending publishes.
func (s *NATSStore) Close() {
	if err := s.nc.Drain(); err != nil {
		logging.Warn("NATS drain failed", zap.Error(err))
	}
}
