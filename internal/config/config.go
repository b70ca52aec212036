package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gridwise/ocppd/internal/ocpp"
)

// CurrentVersion is the config file format version this build reads.
const CurrentVersion = 1

// Config is the root of the YAML configuration.
type Config struct {
	Version  int            `yaml:"version"`
	LogLevel string         `yaml:"logLevel"`
	Server   ServerConfig   `yaml:"server"`
	OCPP     OCPPConfig     `yaml:"ocpp"`
	NATS     NATSConfig     `yaml:"nats"`
	Backsync BacksyncConfig `yaml:"backsync"`
}

// ServerConfig configures the WebSocket listener.
type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	CertPath string `yaml:"certPath"`
	KeyPath  string `yaml:"keyPath"`
}

// OCPPConfig configures protocol behavior.
type OCPPConfig struct {
	Version            string `yaml:"version"`
	SchemaDir          string `yaml:"schemaDir"`
	CallTimeoutSeconds int    `yaml:"callTimeoutSeconds"`
}

// NATSConfig configures the session store and command relay. An empty
// URL keeps sessions in memory and disables the relay.
type NATSConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// BacksyncConfig configures the CPMS mirror job. An empty URL disables
// it.
type BacksyncConfig struct {
	URL             string `yaml:"url"`
	IntervalSeconds int    `yaml:"intervalSeconds"`
}

// Default returns a configuration that runs with no file at all.
func Default() *Config {
	return &Config{
		Version:  CurrentVersion,
		LogLevel: "",
		Server: ServerConfig{
			Host: "",
			Port: 9000,
		},
		OCPP: OCPPConfig{
			Version:            ocpp.V16,
			CallTimeoutSeconds: 30,
		},
		Backsync: BacksyncConfig{
			IntervalSeconds: 60,
		},
	}
}

// Load reads the config file at path. A missing file yields defaults;
// a present file overrides only the keys it names.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version: %d (expected %d)", cfg.Version, CurrentVersion)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.OCPP.Version {
	case ocpp.V16, ocpp.V20, ocpp.V201:
	default:
		return fmt.Errorf("unsupported OCPP version: %q", c.OCPP.Version)
	}
	if (c.Server.CertPath == "") != (c.Server.KeyPath == "") {
		return fmt.Errorf("certPath and keyPath must be set together")
	}
	return nil
}

// CallTimeout returns the response timeout as a duration.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.OCPP.CallTimeoutSeconds) * time.Second
}

// BacksyncInterval returns the sync interval as a duration.
func (c *Config) BacksyncInterval() time.Duration {
	return time.Duration(c.Backsync.IntervalSeconds) * time.Second
}

// Save writes the config atomically: temp file first, then rename.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# ocppd configuration file\n# Location: " + path + "\n\n")
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}
