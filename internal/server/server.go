package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gridwise/ocppd/internal/dispatch"
	"github.com/gridwise/ocppd/internal/logging"
	"github.com/gridwise/ocppd/internal/metrics"
	"github.com/gridwise/ocppd/internal/ocpp"
	"github.com/gridwise/ocppd/internal/routing"
	"github.com/gridwise/ocppd/internal/schema"
	"github.com/gridwise/ocppd/internal/session"
)

// Config holds the server configuration
type Config struct {
	Host        string
	Port        int
	CertPath    string // Path to certificate file (empty = plain ws://)
	KeyPath     string // Path to private key file
	LogLevel    string
	OCPPVersion string        // Protocol version served ("1.6", "2.0", "2.0.1")
	SchemaDir   string        // Root of the schema tree (empty = validation off)
	CallTimeout time.Duration // Response timeout for server-initiated Calls
}

// Option injects collaborators into a Server.
type Option func(*Server)

// WithStore replaces the default in-memory session store.
func WithStore(store session.Store) Option {
	return func(s *Server) { s.registry = session.NewRegistry(store) }
}

// WithRoutes replaces the default route set.
func WithRoutes(routes []routing.Route) Option {
	return func(s *Server) { s.routes = routes }
}

// Server is the OCPP WebSocket server.
type Server struct {
	config    *Config
	tlsConfig *tls.Config

	table     *routing.Table
	routes    []routing.Route
	validator schema.Validator
	registry  *session.Registry

	httpServer *http.Server
	listener   net.Listener

	mu      sync.Mutex
	clients map[string]*client
	wg      sync.WaitGroup
}

// New creates a new Server instance
func New(config *Config, opts ...Option) (*Server, error) {
	// Initialize logging
	if err := logging.Initialize(config.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	if config.OCPPVersion == "" {
		config.OCPPVersion = ocpp.V16
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = dispatch.DefaultCallTimeout
	}

	s := &Server{
		config:  config,
		clients: make(map[string]*client),
	}

	if config.SchemaDir != "" {
		s.validator = schema.NewFileValidator(config.SchemaDir)
	} else {
		s.validator = schema.NoOpValidator{}
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.registry == nil {
		s.registry = session.NewRegistry(session.NewMemoryStore())
	}
	if s.routes == nil {
		s.routes = routing.DefaultRoutes()
	}

	table, err := routing.NewTable(s.routes)
	if err != nil {
		return nil, fmt.Errorf("failed to build route table: %w", err)
	}
	s.table = table

	if config.CertPath != "" {
		s.tlsConfig, err = NewTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	}

	return s, nil
}

// Registry exposes the session registry for the CLI and backsync job.
func (s *Server) Registry() *session.Registry { return s.registry }

// Handler returns the HTTP handler, exported so tests can mount it on
// httptest servers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/", s.handleWebSocket)
	return mux
}

// Start starts the server and blocks until shutdown
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	logging.Info("Starting OCPP WebSocket Server",
		zap.String("addr", addr),
		zap.String("ocpp_version", s.config.OCPPVersion),
		zap.String("schema_dir", s.config.SchemaDir),
		zap.Bool("tls", s.tlsConfig != nil),
		zap.String("log_level", s.config.LogLevel),
	)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	if s.tlsConfig != nil {
		listener = tls.NewListener(listener, s.tlsConfig)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.Info("Server listening for connections", zap.String("addr", addr))

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
			return
		}
		errChan <- nil
	}()

	// Wait for shutdown signal or error
	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	// Stop accepting new connections
	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("Error shutting down HTTP server", zap.Error(err))
		}
	}

	// Close all active client sockets
	s.mu.Lock()
	for identity, c := range s.clients {
		logging.Info("Closing active connection", zap.String("identity", identity))
		c.close()
	}
	s.mu.Unlock()

	// Wait for handler goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	case <-time.After(10 * time.Second):
		logging.Warn("Shutdown timeout after 10 seconds, forcing close")
	}

	// Sync logger
	logging.Sync()

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true}`))
}

// GetActiveConnections returns the number of active connections
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
