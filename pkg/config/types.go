package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-yaml/ast"
)

// Config is the root configuration object, unmarshaled from YAML and then
// layered with environment and flag overrides by LoadEffectiveConfig.
type Config struct {
	Admin      AdminConfig      `yaml:"admin"`
	Backend    BackendConfig    `yaml:"backend"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Retention  RetentionConfig  `yaml:"retention"`
	Logging    LoggingConfig    `yaml:"logging"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// AdminConfig holds the operational HTTP listener settings (/healthz,
// /metrics). There is no data-plane listener: the storage backend is the
// broker.
type AdminConfig struct {
	Address string `yaml:"address,default=0.0.0.0:9090"`
}

// BackendConfig selects and configures the storage backend shared by the
// Queue and Stream, per the backend selector's DSN grammar.
type BackendConfig struct {
	DSN string `yaml:"dsn,default=sqlite://./colas.db"`
}

// DispatcherConfig controls the Dispatcher's queue/results table naming and
// its polling behavior.
type DispatcherConfig struct {
	QueueName       string   `yaml:"queue_name,default=tasks"`
	ResultsTable    string   `yaml:"results_table,default=results"`
	PollingInterval Duration `yaml:"polling_interval,default=100ms"`
	Workers         int      `yaml:"workers,default=1"`
	Envelope        bool     `yaml:"envelope,default=false"`
}

// RetentionConfig controls the periodic Stream.Clean sweep and the lease
// that coordinates it across processes.
type RetentionConfig struct {
	Enabled bool     `yaml:"enabled,default=false"`
	Cron    string   `yaml:"cron,default=0 2 * * *"`
	TTL     Duration `yaml:"ttl,default=720h"`
	LockTTL Duration `yaml:"lock_ttl,default=5m"`
	Lockdir string   `yaml:"lock_dir,default=./.colas"`
}

// LoggingConfig holds logger verbosity.
type LoggingConfig struct {
	Level string `yaml:"level,default=info"`
}

// TelemetryConfig controls per-operation trace collection.
type TelemetryConfig struct {
	BufferSize    SizeBytes `yaml:"buffer_size,default=8MiB"`
	FileMaxSize   SizeBytes `yaml:"file_max_size,default=40MiB"`
	FlushInterval Duration  `yaml:"flush_interval,default=2s"`
	QueueCapacity int       `yaml:"queue_capacity,default=2048"`
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly
// strings like "64MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node ast.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	var value string
	switch n := node.(type) {
	case *ast.StringNode:
		value = n.Value
	case *ast.IntegerNode:
		value = n.GetToken().Value
	default:
		return fmt.Errorf("expected string or integer node for SizeBytes, got %T", node)
	}
	raw := strings.TrimSpace(value)
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*s = SizeBytes(i)
		return nil
	}
	return fmt.Errorf("invalid size value: %q", value)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

// Duration is a wrapper around time.Duration that supports YAML parsing
// from strings like "100ms" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node ast.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	var value string
	switch n := node.(type) {
	case *ast.StringNode:
		value = n.Value
	case *ast.IntegerNode, *ast.FloatNode:
		value = n.GetToken().Value
	default:
		return fmt.Errorf("expected string or number node for Duration, got %T", node)
	}
	raw := strings.TrimSpace(value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
