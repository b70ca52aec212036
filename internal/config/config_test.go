package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwise/ocppd/internal/ocpp"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, CurrentVersion, cfg.Version)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, ocpp.V16, cfg.OCPP.Version)
	assert.Equal(t, 30*time.Second, cfg.CallTimeout())
	assert.Equal(t, time.Minute, cfg.BacksyncInterval())
	assert.Empty(t, cfg.NATS.URL)
	assert.Empty(t, cfg.Backsync.URL)
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesOnlyNamedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: 1
logLevel: debug
server:
  port: 8443
  certPath: /tls/cert.pem
  keyPath: /tls/key.pem
nats:
  url: nats://127.0.0.1:4222
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8443, cfg.Server.Port)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	// Untouched keys keep their defaults.
	assert.Equal(t, ocpp.V16, cfg.OCPP.Version)
	assert.Equal(t, 30, cfg.OCPP.CallTimeoutSeconds)
}

func TestLoadRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"wrong version", "version: 2\n"},
		{"bad port", "version: 1\nserver:\n  port: -1\n"},
		{"bad ocpp version", "version: 1\nocpp:\n  version: \"3.0\"\n"},
		{"cert without key", "version: 1\nserver:\n  port: 9000\n  certPath: /tls/cert.pem\n"},
		{"not yaml", "{{{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0600))
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.LogLevel = "info"
	cfg.Backsync.URL = "http://cpms.internal:3000"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	// No stray temp file left behind.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
