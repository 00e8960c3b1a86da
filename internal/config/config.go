// Package config provides centralized configuration for the zord indexer daemon.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the zord daemon.
type Config struct {
	// StartHeight is the block height to begin indexing from when no
	// progress has been persisted yet.
	StartHeight uint64 `yaml:"start_height"`

	// Reindex deletes the database file at boot before opening a fresh one.
	Reindex bool `yaml:"reindex"`

	Storage StorageConfig `yaml:"storage"`
	RPC     RPCConfig     `yaml:"rpc"`
	ZMQ     ZMQConfig     `yaml:"zmq"`
	API     APIConfig     `yaml:"api"`
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig holds KV store settings.
type StorageConfig struct {
	// DataDir is the directory holding the store file.
	DataDir string `yaml:"data_dir"`
}

// RPCConfig holds the chain node JSON-RPC connection settings.
type RPCConfig struct {
	URL      string        `yaml:"url"`
	User     string        `yaml:"user"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`

	// PollInterval is how long the indexer waits for a new tip when it is
	// already caught up and no push notification arrives.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// ZMQConfig holds the optional push-notification subscriber settings.
type ZMQConfig struct {
	// URL is the node's ZMQ publisher endpoint, e.g. tcp://127.0.0.1:28332.
	// Empty disables the notifier; the indexer falls back to polling.
	URL string `yaml:"url"`
}

// APIConfig holds the read-only HTTP API server settings.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		StartHeight: 0,
		Reindex:     false,
		Storage: StorageConfig{
			DataDir: "~/.zord",
		},
		RPC: RPCConfig{
			URL:          "http://127.0.0.1:8232",
			Timeout:      30 * time.Second,
			PollInterval: 10 * time.Second,
		},
		ZMQ: ZMQConfig{},
		API: APIConfig{
			ListenAddr: "127.0.0.1:8080",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ConfigFileName is the default config file name.
const ConfigFileName = "config.yaml"

// LoadConfig loads configuration from a YAML file in dataDir, creating one
// with default values if it doesn't exist yet.
func LoadConfig(dataDir string) (*Config, error) {
	expandedDir := expandPath(dataDir)
	configPath := filepath.Join(expandedDir, ConfigFileName)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.Storage.DataDir = dataDir

		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}

		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# zord indexer configuration\n# Generated automatically on first run\n\n")
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ConfigPath returns the full path to the config file for the given data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(expandPath(dataDir), ConfigFileName)
}

// DBPath returns the full path to the store file for the given data directory.
func DBPath(dataDir string) string {
	return filepath.Join(expandPath(dataDir), "zord.db")
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
