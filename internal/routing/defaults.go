package routing

import (
	"context"
	"math/rand"
	"time"
)

// BootInterval is the heartbeat interval handed to charge points in
// BootNotification responses, in seconds.
const BootInterval = 300

// DefaultRoutes returns the built-in handler set for charge-point
// initiated actions. Handlers here accept everything; policy decisions
// (authorization backends, transaction ledgers) live upstream and can
// replace individual routes.
func DefaultRoutes() []Route {
	now := func() string { return time.Now().UTC().Format(time.RFC3339) }
	empty := func(ctx context.Context, req Request) (map[string]any, error) {
		return map[string]any{}, nil
	}
	accepted := map[string]any{"status": "Accepted"}

	return []Route{
		{
			Action: "BootNotification",
			Handler: func(ctx context.Context, req Request) (map[string]any, error) {
				return map[string]any{
					"status":      "Accepted",
					"currentTime": now(),
					"interval":    BootInterval,
				}, nil
			},
		},
		{
			Action: "Authorize",
			Handler: func(ctx context.Context, req Request) (map[string]any, error) {
				return map[string]any{"idTagInfo": accepted}, nil
			},
		},
		{
			Action: "Heartbeat",
			Handler: func(ctx context.Context, req Request) (map[string]any, error) {
				return map[string]any{"currentTime": now()}, nil
			},
		},
		{Action: "StatusNotification", Handler: empty},
		{
			Action: "StartTransaction",
			Handler: func(ctx context.Context, req Request) (map[string]any, error) {
				return map[string]any{
					"idTagInfo":     accepted,
					"transactionId": rand.Intn(1_000_000) + 1,
				}, nil
			},
		},
		{
			Action: "StopTransaction",
			Handler: func(ctx context.Context, req Request) (map[string]any, error) {
				return map[string]any{"idTagInfo": accepted}, nil
			},
		},
		{
			Action: "DataTransfer",
			Handler: func(ctx context.Context, req Request) (map[string]any, error) {
				return map[string]any{"status": "Accepted"}, nil
			},
		},
		{Action: "DiagnosticsStatusNotification", Handler: empty},
		{Action: "FirmwareStatusNotification", Handler: empty},
		{Action: "MeterValues", Handler: empty},
	}
}
