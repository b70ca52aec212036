package backsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v3"
	"go.uber.org/zap"

	"github.com/gridwise/ocppd/internal/logging"
	"github.com/gridwise/ocppd/internal/session"
)

// DefaultInterval is how often a full snapshot is pushed.
const DefaultInterval = time.Minute

// internalServiceHeader authenticates this server to the CPMS backend.
const internalServiceHeader = "ocpp-server"

// syncPath receives charge point snapshots.
const syncPath = "/api/ocpp/charge-points/sync"

// Snapshot is the payload posted on every sync round.
type Snapshot struct {
	ChargePoints []*session.Session `json:"chargePoints"`
	Timestamp    time.Time          `json:"timestamp"`
}

// Syncer periodically mirrors the session registry into the CPMS API.
type Syncer struct {
	baseURL  string
	interval time.Duration
	client   *http.Client
	registry *session.Registry
	now      func() time.Time
}

// New builds a syncer. interval <= 0 selects DefaultInterval.
func New(baseURL string, interval time.Duration, registry *session.Registry) *Syncer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Syncer{
		baseURL:  baseURL,
		interval: interval,
		client:   &http.Client{Timeout: 30 * time.Second},
		registry: registry,
		now:      time.Now,
	}
}

// Run syncs immediately, then on every tick, until the context is
// canceled. Failures are logged; the loop never stops on them.
func (s *Syncer) Run(ctx context.Context) {
	logging.Info("Backend sync started",
		zap.String("base_url", s.baseURL),
		zap.Duration("interval", s.interval),
	)

	if err := s.SyncOnce(ctx); err != nil {
		logging.Warn("Backend sync failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.SyncOnce(ctx); err != nil {
				logging.Warn("Backend sync failed", zap.Error(err))
			}
		case <-ctx.Done():
			logging.Info("Backend sync stopped")
			return
		}
	}
}

// SyncOnce pushes one full snapshot.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	sessions, err := s.registry.List(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []*session.Session{}
	}

	snapshot := Snapshot{ChargePoints: sessions, Timestamp: s.now().UTC()}
	if err := s.post(ctx, syncPath, snapshot); err != nil {
		return fmt.Errorf("push snapshot: %w", err)
	}

	logging.Debug("Backend sync completed", zap.Int("charge_points", len(sessions)))
	return nil
}

// post delivers one JSON request with exponential backoff. Client
// errors are permanent; server errors and transport failures retry
// until the backoff budget runs out.
func (s *Syncer) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	backoffStrategy := backoff.WithContext(&backoff.ExponentialBackOff{
		InitialInterval:     100 * time.Millisecond,
		RandomizationFactor: 0.5,
		Multiplier:          1.5,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      30 * time.Second,
		Clock:               backoff.SystemClock,
	}, ctx)

	return backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Internal-Service", internalServiceHeader)

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return backoff.Permanent(
				fmt.Errorf("%s (client error)", http.StatusText(resp.StatusCode)),
			)
		case resp.StatusCode >= 500:
			return errors.New("5xx (server error)")
		}
		return nil
	}, backoffStrategy)
}
