package server

import (
	"crypto/tls"
	"fmt"

	"go.uber.org/zap"

	"github.com/gridwise/ocppd/internal/logging"
)

// NewTLSConfig creates a TLS configuration from certificate and key
// files. TLS 1.2 is the floor; plenty of deployed charge points cannot
// speak 1.3 yet, so it is not forced.
func NewTLSConfig(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	logging.Info("TLS configuration created from files",
		zap.String("cert", certPath),
		zap.String("key", keyPath),
		zap.String("min_version", "1.2"),
	)

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
