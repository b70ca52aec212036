package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwise/ocppd/internal/ocpp"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestConnectCreatesSession(t *testing.T) {
	store := NewMemoryStore()
	reg := NewRegistry(store)
	reg.now = fixedClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	s := reg.Connect(context.Background(), "CP001")
	require.NotNil(t, s)
	assert.Equal(t, "CP001", s.Identity)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), s.LastConnected)

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, TopicConnected, events[0].Topic)
}

func TestReconnectPreservesConnectorState(t *testing.T) {
	store := NewMemoryStore()
	reg := NewRegistry(store)
	ctx := context.Background()

	reg.Connect(ctx, "CP001")
	reg.UpdateConnector(ctx, "CP001", ConnectorStatus{ID: 1, Status: "Charging", ErrorCode: "NoError"})
	reg.MergeAttributes(ctx, "CP001", map[string]any{
		"chargePointModel": "HOMEADVANCED", "chargePointVendor": "AVT-Company",
	})

	// Drop and come back under the same identity.
	s := reg.Connect(ctx, "CP001")
	require.NotNil(t, s)
	assert.Equal(t, "HOMEADVANCED", s.Model)
	assert.Equal(t, "AVT-Company", s.Vendor)
	cs, ok := s.Connector(1)
	require.True(t, ok)
	assert.Equal(t, "Charging", cs.Status)
}

func TestUpdateConnectorReplacesById(t *testing.T) {
	store := NewMemoryStore()
	reg := NewRegistry(store)
	ctx := context.Background()
	reg.Connect(ctx, "CP001")

	reg.UpdateConnector(ctx, "CP001", ConnectorStatus{ID: 1, Status: "Available", ErrorCode: "NoError"})
	reg.UpdateConnector(ctx, "CP001", ConnectorStatus{ID: 2, Status: "Available", ErrorCode: "NoError"})

	before, err := reg.Get(ctx, "CP001")
	require.NoError(t, err)

	reg.UpdateConnector(ctx, "CP001", ConnectorStatus{ID: 1, Status: "Charging", ErrorCode: "NoError"})

	after, err := reg.Get(ctx, "CP001")
	require.NoError(t, err)
	require.Len(t, after.Connectors, 2)
	cs, _ := after.Connector(1)
	assert.Equal(t, "Charging", cs.Status)
	cs, _ = after.Connector(2)
	assert.Equal(t, "Available", cs.Status)

	// The session handed out earlier still sees the old slice.
	cs, _ = before.Connector(1)
	assert.Equal(t, "Available", cs.Status)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	reg := NewRegistry(store)
	ctx := context.Background()

	reg.Connect(ctx, "CP001")
	reg.Disconnect(ctx, "CP001")
	reg.Disconnect(ctx, "CP001")
	reg.Disconnect(ctx, "never-connected")

	_, err := reg.Get(ctx, "CP001")
	assert.ErrorIs(t, err, ErrNotFound)

	var disconnects int
	for _, e := range store.Events() {
		if e.Topic == TopicDisconnected {
			disconnects++
		}
	}
	assert.Equal(t, 1, disconnects)
}

func TestMergeAttributesIgnoresAbsentKeys(t *testing.T) {
	store := NewMemoryStore()
	reg := NewRegistry(store)
	ctx := context.Background()
	reg.Connect(ctx, "CP001")

	reg.MergeAttributes(ctx, "CP001", map[string]any{
		"chargePointModel": "HOMEADVANCED", "chargePointVendor": "AVT-Company",
	})
	// A later payload without vendor keeps the recorded one.
	reg.MergeAttributes(ctx, "CP001", map[string]any{"chargePointModel": "HOMEBASIC"})

	s, err := reg.Get(ctx, "CP001")
	require.NoError(t, err)
	assert.Equal(t, "HOMEBASIC", s.Model)
	assert.Equal(t, "AVT-Company", s.Vendor)

	// Nothing relevant in the payload publishes nothing.
	n := len(store.Events())
	reg.MergeAttributes(ctx, "CP001", map[string]any{"reason": "PowerUp"})
	assert.Len(t, store.Events(), n)
}

func TestObserveCall(t *testing.T) {
	store := NewMemoryStore()
	reg := NewRegistry(store)
	ctx := context.Background()
	reg.Connect(ctx, "CP001")

	reg.ObserveCall(ctx, "CP001", &ocpp.Call{
		UniqueID: "s1",
		Action:   "StatusNotification",
		Payload: map[string]any{
			"connectorId": float64(1), "status": "Preparing", "errorCode": "NoError",
		},
	})
	// Actions without pre-dispatch side effects are ignored. Boot
	// attributes in particular wait for a successful dispatch.
	reg.ObserveCall(ctx, "CP001", &ocpp.Call{
		UniqueID: "h1", Action: "Heartbeat", Payload: map[string]any{},
	})
	reg.ObserveCall(ctx, "CP001", &ocpp.Call{
		UniqueID: "b1",
		Action:   "BootNotification",
		Payload: map[string]any{
			"chargePointModel": "HOMEADVANCED", "chargePointVendor": "AVT-Company",
		},
	})

	s, err := reg.Get(ctx, "CP001")
	require.NoError(t, err)
	assert.Empty(t, s.Model)
	assert.Empty(t, s.Vendor)
	cs, ok := s.Connector(1)
	require.True(t, ok)
	assert.Equal(t, "Preparing", cs.Status)
	assert.Equal(t, "s1", cs.CallID)
	assert.NotEmpty(t, cs.Timestamp)

	var statusEvents []ConnectorEvent
	for _, e := range store.Events() {
		if e.Topic == TopicConnectorStatus {
			statusEvents = append(statusEvents, e.Event.(ConnectorEvent))
		}
	}
	require.Len(t, statusEvents, 1)
	assert.Equal(t, "Preparing", statusEvents[0].Connector.Status)
}

func TestPublishClients(t *testing.T) {
	store := NewMemoryStore()
	reg := NewRegistry(store)
	reg.now = fixedClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	reg.PublishClients(context.Background(), []string{"CP001", "CP002"})

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, TopicClients, events[0].Topic)
	snapshot := events[0].Event.(ClientsEvent)
	assert.Equal(t, []string{"CP001", "CP002"}, snapshot.Clients)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), snapshot.Timestamp)
}

func TestMemoryStoreList(t *testing.T) {
	store := NewMemoryStore()
	reg := NewRegistry(store)
	ctx := context.Background()

	reg.Connect(ctx, "CP002")
	reg.Connect(ctx, "CP001")

	sessions, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "CP001", sessions[0].Identity)
	assert.Equal(t, "CP002", sessions[1].Identity)
}
