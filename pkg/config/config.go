// Package config loads kgraph configuration from defaults, a YAML file and
// environment variables.
//
// Sources are applied lowest to highest precedence:
//
//  1. DefaultConfig()
//  2. YAML file (LoadConfig)
//  3. Environment variables prefixed with KGRAPH_
//
// Call Validate() on the result before use.
//
// Example Usage:
//
//	cfg, err := config.LoadFromEnvOrFile("./kgraph.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//
//	g := graph.New(cfg.GraphOptions())
//
// Environment Variables:
//
// Graph:
//   - KGRAPH_ENABLED=true
//   - KGRAPH_MAX_ENTITIES=100000
//   - KGRAPH_MAX_RELATIONSHIPS=500000
//   - KGRAPH_MAX_INFERENCE_DEPTH=5
//   - KGRAPH_AUTO_INFERENCE=false
//   - KGRAPH_DEDUPLICATE_ENTITIES=true
//
// Logging:
//   - KGRAPH_LOG_LEVEL="info" (debug, info, warn, error)
//   - KGRAPH_LOG_FORMAT="text" (text, json, logfmt)
//
// Snapshots:
//   - KGRAPH_SNAPSHOT_DIR="./data/snapshots"
//   - KGRAPH_SNAPSHOT_IN_MEMORY=false
//   - KGRAPH_SNAPSHOT_SYNC_WRITES=false
//
// Metrics:
//   - KGRAPH_METRICS_ENABLED=false
//   - KGRAPH_METRICS_NAMESPACE="kgraph"
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/orneryd/kgraph/pkg/graph"
)

var validate = validator.New()

// Config holds all kgraph configuration.
//
// Sections:
//   - Graph: engine limits and behavior
//   - Logging: log level and output format
//   - Snapshot: the Badger snapshot store
//   - Metrics: Prometheus instrumentation
type Config struct {
	Graph    GraphConfig    `yaml:"graph"`
	Logging  LoggingConfig  `yaml:"logging"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// GraphConfig mirrors graph.Config.
type GraphConfig struct {
	// Enabled gates every mutating graph operation
	Enabled bool `yaml:"enabled"`
	// MaxEntities is the hard entity limit
	MaxEntities int `yaml:"max_entities" validate:"gt=0"`
	// MaxRelationships is the hard relationship limit
	MaxRelationships int `yaml:"max_relationships" validate:"gt=0"`
	// MaxInferenceDepth bounds inference rounds and default query depth
	MaxInferenceDepth int `yaml:"max_inference_depth" validate:"gte=1"`
	// AutoInference runs inference after every add
	AutoInference bool `yaml:"auto_inference"`
	// DeduplicateEntities merges entities sharing (name, type)
	DeduplicateEntities bool `yaml:"deduplicate_entities"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level     string `yaml:"level" validate:"oneof=debug info warn error"`
	Format    string `yaml:"format" validate:"oneof=text json logfmt"`
	Timestamp bool   `yaml:"timestamp"`
}

// SnapshotConfig holds snapshot store settings.
type SnapshotConfig struct {
	// Dir is the Badger directory; ignored when InMemory is set
	Dir string `yaml:"dir" validate:"required_unless=InMemory true"`
	// InMemory keeps snapshots in memory only (tests, ephemeral runs)
	InMemory bool `yaml:"in_memory"`
	// SyncWrites fsyncs every save
	SyncWrites bool `yaml:"sync_writes"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace" validate:"required_if=Enabled true"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Graph: GraphConfig{
			Enabled:             true,
			MaxEntities:         graph.DefaultMaxEntities,
			MaxRelationships:    graph.DefaultMaxRelationships,
			MaxInferenceDepth:   graph.DefaultMaxInferenceDepth,
			AutoInference:       false,
			DeduplicateEntities: true,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "text",
			Timestamp: true,
		},
		Snapshot: SnapshotConfig{
			Dir: "./data/snapshots",
		},
		Metrics: MetricsConfig{
			Namespace: "kgraph",
		},
	}
}

// LoadFromEnv loads configuration from defaults and environment variables.
//
// Example:
//
//	os.Setenv("KGRAPH_MAX_ENTITIES", "1000")
//	cfg := config.LoadFromEnv()
//	fmt.Println(cfg.Graph.MaxEntities) // 1000
func LoadFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg
}

// LoadConfig loads configuration from a YAML file. Keys missing from the
// file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnvOrFile loads the YAML file when it exists, then applies
// environment overrides. An empty path or a missing file yields the
// defaults plus environment.
func LoadFromEnvOrFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		fileCfg, err := LoadConfig(path)
		switch {
		case err == nil:
			cfg = fileCfg
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Graph.Enabled = getEnvBool("KGRAPH_ENABLED", c.Graph.Enabled)
	c.Graph.MaxEntities = getEnvInt("KGRAPH_MAX_ENTITIES", c.Graph.MaxEntities)
	c.Graph.MaxRelationships = getEnvInt("KGRAPH_MAX_RELATIONSHIPS", c.Graph.MaxRelationships)
	c.Graph.MaxInferenceDepth = getEnvInt("KGRAPH_MAX_INFERENCE_DEPTH", c.Graph.MaxInferenceDepth)
	c.Graph.AutoInference = getEnvBool("KGRAPH_AUTO_INFERENCE", c.Graph.AutoInference)
	c.Graph.DeduplicateEntities = getEnvBool("KGRAPH_DEDUPLICATE_ENTITIES", c.Graph.DeduplicateEntities)

	c.Logging.Level = strings.ToLower(getEnv("KGRAPH_LOG_LEVEL", c.Logging.Level))
	c.Logging.Format = strings.ToLower(getEnv("KGRAPH_LOG_FORMAT", c.Logging.Format))

	c.Snapshot.Dir = getEnv("KGRAPH_SNAPSHOT_DIR", c.Snapshot.Dir)
	c.Snapshot.InMemory = getEnvBool("KGRAPH_SNAPSHOT_IN_MEMORY", c.Snapshot.InMemory)
	c.Snapshot.SyncWrites = getEnvBool("KGRAPH_SNAPSHOT_SYNC_WRITES", c.Snapshot.SyncWrites)

	c.Metrics.Enabled = getEnvBool("KGRAPH_METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Namespace = getEnv("KGRAPH_METRICS_NAMESPACE", c.Metrics.Namespace)
}

// Validate checks the configuration for invalid values.
//
// This method checks:
//   - Capacities are positive and the inference depth is at least 1
//   - Log level and format are known
//   - A snapshot directory is set unless snapshots are in memory
//   - A metrics namespace is set when metrics are enabled
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// GraphOptions converts the Graph section into engine options.
func (c *Config) GraphOptions() *graph.Config {
	return &graph.Config{
		Enabled:             c.Graph.Enabled,
		MaxEntities:         c.Graph.MaxEntities,
		MaxRelationships:    c.Graph.MaxRelationships,
		MaxInferenceDepth:   c.Graph.MaxInferenceDepth,
		AutoInference:       c.Graph.AutoInference,
		DeduplicateEntities: c.Graph.DeduplicateEntities,
	}
}

// String returns a one-line summary suitable for logging.
func (c *Config) String() string {
	snapshots := c.Snapshot.Dir
	if c.Snapshot.InMemory {
		snapshots = "memory"
	}
	return fmt.Sprintf(
		"Config{MaxEntities: %d, MaxRelationships: %d, InferenceDepth: %d, AutoInference: %v, Dedup: %v, Log: %s/%s, Snapshots: %s, Metrics: %v}",
		c.Graph.MaxEntities, c.Graph.MaxRelationships, c.Graph.MaxInferenceDepth,
		c.Graph.AutoInference, c.Graph.DeduplicateEntities,
		c.Logging.Level, c.Logging.Format,
		snapshots, c.Metrics.Enabled,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return parseBool(val, defaultVal)
	}
	return defaultVal
}

// parseBool parses a boolean from string with a default value.
func parseBool(s string, defaultVal bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultVal
	}
}

// ExampleConfigYAML is a complete configuration file with the defaults.
const ExampleConfigYAML = `# kgraph configuration

graph:
  enabled: true
  max_entities: 100000
  max_relationships: 500000
  max_inference_depth: 5   # also the default query depth
  auto_inference: false    # run inference after every add
  deduplicate_entities: true

logging:
  level: info              # debug, info, warn, error
  format: text             # text, json, logfmt
  timestamp: true

snapshot:
  dir: ./data/snapshots
  in_memory: false
  sync_writes: false

metrics:
  enabled: false
  namespace: kgraph
`
