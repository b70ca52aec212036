// Package server implements the WebSocket front door for OCPP charge
// points.
//
// Charge points connect to /{org}/{chargePointID} and negotiate an
// OCPP subprotocol (ocpp1.6, ocpp2.0, ocpp2.0.1). Each accepted socket
// gets a dedicated reader goroutine feeding a dispatch.ChargePoint, so
// frames from one client are processed in arrival order while clients
// proceed independently.
//
// # Socket Table
//
// Connected clients live in a map owned by the Server, keyed by charge
// point identity and mutated only on connect and disconnect. A second
// connection under an identity already in the table evicts the first.
// SendToClient and Broadcast read from it; Broadcast silently skips
// clients whose sockets are locally absent or no longer open.
//
// # HTTP Surface
//
// Besides the WebSocket endpoint the server exposes:
//   - /health: liveness probe answering {"ok":true}
//   - /metrics: Prometheus instruments
//
// # Usage Example
//
//	srv, err := server.New(&server.Config{
//	    Host:        "",
//	    Port:        9000,
//	    OCPPVersion: ocpp.V16,
//	    SchemaDir:   "./schemas",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start blocks until shutdown signal or error
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// The server handles SIGINT and SIGTERM for graceful shutdown:
//  1. Stop accepting new connections
//  2. Close existing WebSocket connections
//  3. Wait for handler goroutines with a timeout
//  4. Clean up resources
//
// # Thread Safety
//
// The server is fully concurrent and handles any number of charge point
// connections simultaneously. Each connection runs in its own goroutine.
package server
