// Package logging provides structured logging for the OCPP server.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the server. It provides both general logging functions
// and specialized functions for protocol-specific logging needs.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (raw frames, correlation waits)
//   - Info: Normal operations (connections, messages, state changes)
//   - Warn: Non-fatal issues (connection drops, stale responses, retries)
//   - Error: Fatal issues (startup failures, critical errors)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Charge point connected",
//	    zap.String("identity", "CP001"),
//	    zap.String("remote_addr", "192.168.1.100"),
//	    zap.String("vendor", "AVT-Company"),
//	)
//
// # Specialized Logging
//
// Connection Logging:
//
//	logging.LogConnection(identity, remoteAddr, "websocket_upgraded")
//	logging.LogConnection(identity, remoteAddr, "websocket_closed")
//
// OCPP Message Logging:
//
//	logging.LogMessage(identity, "inbound", "BootNotification", uniqueID, raw)
//	logging.LogMessage(identity, "outbound", "Heartbeat", uniqueID, raw)
//
// # Configuration
//
// Initialize logging at server startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap logger
// handles synchronization automatically.
package logging
