// Package config loads the server configuration from a YAML file.
//
// Every key has a working default, so the server runs with no config
// file at all: plain WebSocket on :9000, OCPP 1.6, in-memory sessions,
// validation and backsync disabled. A config file overrides only what
// it names.
//
// Example:
//
//	version: 1
//	logLevel: info
//	server:
//	  host: ""
//	  port: 9000
//	  certPath: /etc/ocppd/tls/fullchain.pem
//	  keyPath: /etc/ocppd/tls/privkey.pem
//	ocpp:
//	  version: "1.6"
//	  schemaDir: /etc/ocppd/schemas
//	  callTimeoutSeconds: 30
//	nats:
//	  url: nats://127.0.0.1:4222
//	backsync:
//	  url: http://cpms.internal:3000
//	  intervalSeconds: 60
//
// Leaving nats.url empty keeps sessions in memory and disables the
// command relay; leaving backsync.url empty disables the backend sync
// job.
package config
