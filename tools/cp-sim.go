//go:build ignore

// Cp-sim is a minimal charge point simulator for exercising an ocppd
// server by hand.
//
// It connects as a charge point, performs a boot sequence
// (BootNotification, StatusNotification, Heartbeat) and then answers
// any server-initiated Call with an empty CallResult while sending a
// Heartbeat on every interval.
//
// Usage:
//
//	go run tools/cp-sim.go -url ws://localhost:9000/acme/CP001
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

var (
	url      = flag.String("url", "ws://localhost:9000/acme/CP001", "Server URL including /{org}/{chargePointID}")
	model    = flag.String("model", "SIM-1", "chargePointModel to report")
	vendor   = flag.String("vendor", "gridwise", "chargePointVendor to report")
	interval = flag.Duration("interval", 30*time.Second, "Heartbeat interval")
)

var seq int

func nextID() string {
	seq++
	return fmt.Sprintf("sim-%d", seq)
}

func send(conn *websocket.Conn, frame []any) {
	raw, err := json.Marshal(frame)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf(">> %s\n", raw)
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		fmt.Fprintf(os.Stderr, "send: %v\n", err)
		os.Exit(1)
	}
}

func call(conn *websocket.Conn, action string, payload map[string]any) {
	send(conn, []any{2, nextID(), action, payload})
}

func main() {
	flag.Parse()

	dialer := websocket.Dialer{Subprotocols: []string{"ocpp1.6"}}
	conn, _, err := dialer.Dial(*url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", *url, err)
		os.Exit(1)
	}
	defer conn.Close()
	fmt.Printf("connected to %s (subprotocol %q)\n", *url, conn.Subprotocol())

	call(conn, "BootNotification", map[string]any{
		"chargePointModel":  *model,
		"chargePointVendor": *vendor,
	})
	call(conn, "StatusNotification", map[string]any{
		"connectorId": 1,
		"errorCode":   "NoError",
		"status":      "Available",
	})

	heartbeats := time.NewTicker(*interval)
	defer heartbeats.Stop()
	go func() {
		for range heartbeats.C {
			call(conn, "Heartbeat", map[string]any{})
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			fmt.Fprintf(os.Stderr, "read: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("<< %s\n", raw)

		// Answer server-initiated Calls so the server never times out.
		var elems []json.RawMessage
		if json.Unmarshal(raw, &elems) != nil || len(elems) < 3 {
			continue
		}
		var msgType int
		var id string
		if json.Unmarshal(elems[0], &msgType) != nil || msgType != 2 {
			continue
		}
		if json.Unmarshal(elems[1], &id) != nil {
			continue
		}
		send(conn, []any{3, id, map[string]any{"status": "Accepted"}})
	}
}
