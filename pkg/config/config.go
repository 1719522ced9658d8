// Package config loads the boot-time configuration for a Replicante
// Core process from a YAML file, in the shape of the teacher's
// cmd/warren/apply.go (gopkg.in/yaml.v3 unmarshal of a declarative
// file) repurposed to load spec.md §6's "process surface" fields
// instead of a cluster resource manifest.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/replicante-io/replicore/pkg/log"
)

// Config is the top-level boot configuration (spec.md §6 "Config fields
// of interest").
type Config struct {
	NodeID   string `yaml:"node_id"`
	BindAddr string `yaml:"bind_addr"`

	Log          LogConfig      `yaml:"log"`
	Coordinator  CoordinatorDSN `yaml:"coordinator"`
	Queue        QueueConfig    `yaml:"queue"`
	Stream       StreamDSN      `yaml:"stream"`
	Store        StoreDSN       `yaml:"store"`
	TLS          TLSConfig      `yaml:"tls"`
	NodeTimeout  time.Duration  `yaml:"node_timeout"`
	Orchestrator ScheduleConfig `yaml:"orchestrator"`
	Discovery    ScheduleConfig `yaml:"discovery"`
	Sentry       SentryConfig   `yaml:"sentry"`
}

// LogConfig configures pkg/log.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CoordinatorDSN is the raft coordinator's data directory, mirroring
// coordinator.Config (spec.md §6 "coordinator backend").
type CoordinatorDSN struct {
	DataDir string `yaml:"data_dir"`
}

// QueueConfig is the task broker's data directory plus per-queue worker
// enablement flags (spec.md §6 "task broker ... per-queue worker
// enablement flags").
type QueueConfig struct {
	DataDir string          `yaml:"data_dir"`
	Workers map[string]bool `yaml:"workers"`
}

// StreamDSN is the event stream's data directory (spec.md §6 "stream broker").
type StreamDSN struct {
	DataDir string `yaml:"data_dir"`
}

// StoreDSN is the primary/view store's data directory (spec.md §6 "store DSNs").
type StoreDSN struct {
	DataDir string `yaml:"data_dir"`
}

// TLSConfig names the certificate material for mTLS-secured node-agent
// calls (spec.md §6 "TLS paths"). Node-agent TLS itself is out of scope
// for this core (spec.md §1 Non-goals list "agent wire protocols, TLS"
// as an external collaborator concern), so these fields are loaded and
// validated for forward compatibility but are not yet consumed by
// pkg/client.NodeClient.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`
}

// ScheduleConfig configures one leader-elected harness's looping
// cadence: Term is the election.Config.ElectionTerm (loops before a
// forced re-election), Interval is the election.Config.LoopDelay
// (spec.md §6 "orchestrator.term/interval", "discovery.term/interval").
type ScheduleConfig struct {
	Term     int           `yaml:"term"`
	Interval time.Duration `yaml:"interval"`
}

// SentryConfig toggles optional error-reporting capture (spec.md §6
// "sentry capture flags", §7 "Sentry capture is optional and configured
// at boot"). No Sentry SDK is wired in this core; the flag is carried
// so an operator's config file round-trips, and no code reads Enabled
// or DSN.
type SentryConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// Default returns the configuration used when no --config file is
// given, mirroring the flag defaults in the teacher's cmd/warren
// (127.0.0.1 addresses, ./warren-data directories).
func Default() *Config {
	return &Config{
		NodeID:   "replicore-1",
		BindAddr: "127.0.0.1:7946",
		Log:      LogConfig{Level: "info"},
		Coordinator: CoordinatorDSN{
			DataDir: "./replicore-data/coordinator",
		},
		Queue: QueueConfig{
			DataDir: "./replicore-data/queue",
			Workers: map[string]bool{
				"discover_clusters":  true,
				"orchestrate_cluster": true,
			},
		},
		Stream: StreamDSN{DataDir: "./replicore-data/stream"},
		Store:  StoreDSN{DataDir: "./replicore-data/store"},
		NodeTimeout: 10 * time.Second,
		Orchestrator: ScheduleConfig{
			Term:     20,
			Interval: 2 * time.Second,
		},
		Discovery: ScheduleConfig{
			Term:     20,
			Interval: 30 * time.Second,
		},
	}
}

// Load reads and validates a YAML config file, starting from Default()
// so an operator only needs to override the fields that matter to them.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields that would otherwise fail far from their
// source (an empty data directory, a zero node-id) with a message
// naming the offending field instead of a confusing bbolt/raft error.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("config: node_id is required")
	}
	if c.Coordinator.DataDir == "" {
		return fmt.Errorf("config: coordinator.data_dir is required")
	}
	if c.Queue.DataDir == "" {
		return fmt.Errorf("config: queue.data_dir is required")
	}
	if c.Stream.DataDir == "" {
		return fmt.Errorf("config: stream.data_dir is required")
	}
	if c.Store.DataDir == "" {
		return fmt.Errorf("config: store.data_dir is required")
	}
	if c.NodeTimeout <= 0 {
		return fmt.Errorf("config: node_timeout must be positive")
	}
	return nil
}

// QueueEnabled reports whether a named queue's worker should be
// started, defaulting to enabled when the map omits the queue entirely.
func (c *Config) QueueEnabled(name string) bool {
	enabled, ok := c.Queue.Workers[name]
	if !ok {
		return true
	}
	return enabled
}

// LogLevel converts the YAML-facing log level into pkg/log's Level,
// defaulting to InfoLevel for an unrecognised value.
func (c *Config) LogLevel() log.Level {
	switch c.Log.Level {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
