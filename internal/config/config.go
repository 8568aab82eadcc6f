package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StoreConfig locates the inventory database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// IngestConfig controls the ingestion pipeline.
type IngestConfig struct {
	SpoolDir        string            `yaml:"spool_dir"`
	FlushThreshold  int               `yaml:"flush_threshold"`
	RefreshInterval string            `yaml:"refresh_interval"`
	// AppProtocols maps per-protocol log files to the label their records
	// are tagged with, e.g. modbus.log -> MODBUS.
	AppProtocols map[string]string `yaml:"app_protocols"`
}

// QueryConfig bounds the read accessors.
type QueryConfig struct {
	MaxRows     int `yaml:"max_rows"`
	SummarySize int `yaml:"summary_size"`
}

// APIConfig holds the configuration for the HTTP API server.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// NATSConfig holds the record transport settings; an empty URL disables it.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Store  StoreConfig  `yaml:"store"`
	Ingest IngestConfig `yaml:"ingest"`
	Query  QueryConfig  `yaml:"query"`
	API    APIConfig    `yaml:"api"`
	NATS   NATSConfig   `yaml:"nats"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{Path: "data/inventory.sqlite"},
		Ingest: IngestConfig{
			SpoolDir:        "data/zeek_logs",
			FlushThreshold:  5000,
			RefreshInterval: "5s",
			AppProtocols: map[string]string{
				"modbus.log": "MODBUS",
				"enip.log":   "ENIP",
				"s7comm.log": "S7COMM",
			},
		},
		Query: QueryConfig{MaxRows: 1000, SummarySize: 5},
		API:   APIConfig{ListenAddr: ":8080"},
		NATS:  NATSConfig{Subject: "inventory.records"},
	}
}

// Load reads the configuration from a YAML file, layered over the defaults
// and under the environment overrides. An empty path skips the file.
func Load(filePath string) (*Config, error) {
	cfg := Default()
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv applies the environment overrides the deployment containers use.
func (c *Config) applyEnv() {
	if v := os.Getenv("NI_DB_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("NI_SPOOL_DIR"); v != "" {
		c.Ingest.SpoolDir = v
	}
	if v := os.Getenv("NI_LISTEN_ADDR"); v != "" {
		c.API.ListenAddr = v
	}
	if v := os.Getenv("NI_NATS_URL"); v != "" {
		c.NATS.URL = v
	}
}
