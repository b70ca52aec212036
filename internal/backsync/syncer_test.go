package backsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwise/ocppd/internal/session"
)

func seededRegistry(t *testing.T) *session.Registry {
	t.Helper()
	reg := session.NewRegistry(session.NewMemoryStore())
	reg.Connect(context.Background(), "CP001")
	reg.MergeAttributes(context.Background(), "CP001", map[string]any{
		"chargePointModel": "HOMEADVANCED", "chargePointVendor": "AVT-Company",
	})
	reg.UpdateConnector(context.Background(), "CP001", session.ConnectorStatus{
		ID: 1, Status: "Charging", ErrorCode: "NoError",
	})
	return reg
}

func TestSyncOncePostsSnapshot(t *testing.T) {
	var got Snapshot
	var header string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, syncPath, r.URL.Path)
		header = r.Header.Get("X-Internal-Service")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer ts.Close()

	s := New(ts.URL, time.Minute, seededRegistry(t))
	require.NoError(t, s.SyncOnce(context.Background()))

	assert.Equal(t, "ocpp-server", header)
	require.Len(t, got.ChargePoints, 1)
	assert.Equal(t, "CP001", got.ChargePoints[0].Identity)
	assert.Equal(t, "HOMEADVANCED", got.ChargePoints[0].Model)
	require.Len(t, got.ChargePoints[0].Connectors, 1)
	assert.Equal(t, "Charging", got.ChargePoints[0].Connectors[0].Status)
}

func TestSyncRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer ts.Close()

	s := New(ts.URL, time.Minute, seededRegistry(t))
	require.NoError(t, s.SyncOnce(context.Background()))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestSyncGivesUpOnClientErrors(t *testing.T) {
	var attempts atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	s := New(ts.URL, time.Minute, seededRegistry(t))
	err := s.SyncOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client error")
	assert.Equal(t, int32(1), attempts.Load())
}

func TestSyncEmptyRegistryPostsEmptyList(t *testing.T) {
	var got Snapshot
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer ts.Close()

	reg := session.NewRegistry(session.NewMemoryStore())
	s := New(ts.URL, time.Minute, reg)
	require.NoError(t, s.SyncOnce(context.Background()))
	assert.NotNil(t, got.ChargePoints)
	assert.Empty(t, got.ChargePoints)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ts.Close()

	s := New(ts.URL, 10*time.Millisecond, seededRegistry(t))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
