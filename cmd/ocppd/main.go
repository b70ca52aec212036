// Ocppd is an OCPP-J WebSocket server for electric vehicle charge
// points.
//
// It terminates charge point WebSocket connections, validates and
// routes OCPP 1.6/2.0 messages, tracks sessions, and exposes the fleet
// to backend services over NATS and an optional CPMS HTTP mirror.
//
// Usage:
//
//	ocppd serve [flags]
//
// See 'ocppd serve --help' for available options.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gridwise/ocppd/internal/backsync"
	"github.com/gridwise/ocppd/internal/config"
	"github.com/gridwise/ocppd/internal/relay"
	"github.com/gridwise/ocppd/internal/server"
	"github.com/gridwise/ocppd/internal/store"
	"github.com/gridwise/ocppd/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ocppd",
	Short: "OCPP WebSocket Server",
	Long: `A WebSocket server implementing the OCPP-J protocol for EV charge points.

Charge points connect over ws:// or wss:// at /{org}/{chargePointID} and talk
OCPP 1.6 (or 2.0/2.0.1) JSON framing. Sessions can be mirrored into NATS
JetStream so backend services see the fleet, and commands published on NATS
subjects are relayed to the charge points.`,
	Version: version.Version,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command and flags
var (
	configPath  string
	host        string
	port        int
	certPath    string
	keyPath     string
	logLevel    string
	schemaDir   string
	ocppVersion string
	natsURL     string
	backsyncURL string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the OCPP WebSocket server",
	Long: `Start the OCPP server and accept charge point connections.

All settings come from the config file and can be overridden per-flag. With no
config file the server listens on :9000 for plain WebSocket connections,
serves OCPP 1.6 with validation disabled, and keeps sessions in memory.`,
	Example: `  # Start with defaults (ws on :9000, OCPP 1.6, in-memory sessions)
  ocppd serve

  # Start from a config file
  ocppd serve --config /etc/ocppd/config.yaml

  # Enable schema validation and debug logging
  ocppd serve --schema-dir ./schemas --log-level debug

  # Terminate TLS and mirror sessions into NATS
  ocppd serve --cert fullchain.pem --key privkey.pem --nats-url nats://127.0.0.1:4222`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "Path to YAML config file (optional)")
	serveCmd.Flags().StringVar(&host, "host", "", "Listen hostname (empty = all interfaces)")
	serveCmd.Flags().IntVar(&port, "port", 9000, "Listen port")
	serveCmd.Flags().StringVar(&certPath, "cert", "", "Path to TLS certificate file (empty = plain ws://)")
	serveCmd.Flags().StringVar(&keyPath, "key", "", "Path to TLS private key file")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error; empty = silent)")
	serveCmd.Flags().StringVar(&schemaDir, "schema-dir", "", "Root of the JSON schema tree (empty = validation off)")
	serveCmd.Flags().StringVar(&ocppVersion, "ocpp-version", "", "OCPP version to serve (1.6, 2.0, 2.0.1)")
	serveCmd.Flags().StringVar(&natsURL, "nats-url", "", "NATS URL for session store and command relay")
	serveCmd.Flags().StringVar(&backsyncURL, "backsync-url", "", "CPMS base URL for backend session sync")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, cfg)

	if cfg.Server.CertPath != "" {
		if _, err := os.Stat(cfg.Server.CertPath); os.IsNotExist(err) {
			return fmt.Errorf("certificate file not found: %s", cfg.Server.CertPath)
		}
		if _, err := os.Stat(cfg.Server.KeyPath); os.IsNotExist(err) {
			return fmt.Errorf("private key file not found: %s", cfg.Server.KeyPath)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverConfig := &server.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		CertPath:    cfg.Server.CertPath,
		KeyPath:     cfg.Server.KeyPath,
		LogLevel:    cfg.LogLevel,
		OCPPVersion: cfg.OCPP.Version,
		SchemaDir:   cfg.OCPP.SchemaDir,
		CallTimeout: cfg.CallTimeout(),
	}

	var serverOpts []server.Option
	var natsStore *store.NATSStore
	if cfg.NATS.URL != "" {
		storeOpts := []store.Option{store.WithName("ocppd")}
		if cfg.NATS.Username != "" {
			storeOpts = append(storeOpts, store.WithUserInfo(cfg.NATS.Username, cfg.NATS.Password))
		}
		natsStore, err = store.Connect(ctx, cfg.NATS.URL, storeOpts...)
		if err != nil {
			return fmt.Errorf("failed to connect NATS: %w", err)
		}
		defer natsStore.Close()
		serverOpts = append(serverOpts, server.WithStore(natsStore))
	}

	srv, err := server.New(serverConfig, serverOpts...)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if natsStore != nil {
		r := relay.New(natsStore.Conn(), srv, cfg.CallTimeout()*2)
		if err := r.Start(); err != nil {
			return fmt.Errorf("failed to start command relay: %w", err)
		}
		defer r.Stop()
	}

	if cfg.Backsync.URL != "" {
		syncer := backsync.New(cfg.Backsync.URL, cfg.BacksyncInterval(), srv.Registry())
		go syncer.Run(ctx)
	}

	return srv.Start()
}

// applyFlagOverrides lets explicit flags win over the config file.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = host
	}
	if flags.Changed("port") {
		cfg.Server.Port = port
	}
	if flags.Changed("cert") {
		cfg.Server.CertPath = certPath
	}
	if flags.Changed("key") {
		cfg.Server.KeyPath = keyPath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("schema-dir") {
		cfg.OCPP.SchemaDir = schemaDir
	}
	if flags.Changed("ocpp-version") {
		cfg.OCPP.Version = ocppVersion
	}
	if flags.Changed("nats-url") {
		cfg.NATS.URL = natsURL
	}
	if flags.Changed("backsync-url") {
		cfg.Backsync.URL = backsyncURL
	}
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ocppd %s (commit: %s)\n", version.Version, version.Commit)
	},
}
