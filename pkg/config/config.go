// Package config implements the layered flag -> env -> YAML-file
// configuration shared by the worker and client entrypoints. The layers
// merge field-by-field rather than whole-source: the config surface is
// small enough that per-field overlay stays readable and catches typos at
// compile time.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"colas/pkg/logger"
)

// LoadConfigFile reads and parses a YAML config file. A missing file is not
// an error: the caller distinguishes via os.IsNotExist and falls back to
// defaults/env/flags.
func LoadConfigFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

// ResolveConfigPath returns the config file path, preferring an explicitly
// set flag, then the COLAS_CONFIG env var, then the flag default.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("COLAS_CONFIG"); p != "" {
		return p
	}
	return flagPath
}

// applyDefaults fills in zero-valued fields with the package defaults
// after every layer has had its chance to set them.
func applyDefaults(c *Config) {
	if c.Admin.Address == "" {
		c.Admin.Address = "0.0.0.0:9090"
	}
	if c.Backend.DSN == "" {
		c.Backend.DSN = "sqlite://./colas.db"
	}
	if c.Dispatcher.QueueName == "" {
		c.Dispatcher.QueueName = "tasks"
	}
	if c.Dispatcher.ResultsTable == "" {
		c.Dispatcher.ResultsTable = "results"
	}
	if c.Dispatcher.PollingInterval.Duration() == 0 {
		c.Dispatcher.PollingInterval = Duration(defaultPollingInterval)
	}
	if c.Dispatcher.Workers <= 0 {
		c.Dispatcher.Workers = 1
	}
	if c.Retention.Cron == "" {
		c.Retention.Cron = defaultRetentionCron
	}
	if c.Retention.TTL.Duration() == 0 {
		c.Retention.TTL = Duration(defaultRetentionTTL)
	}
	if c.Retention.LockTTL.Duration() == 0 {
		c.Retention.LockTTL = Duration(defaultRetentionLockTTL)
	}
	if c.Retention.Lockdir == "" {
		c.Retention.Lockdir = "./.colas"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Telemetry.BufferSize.Int64() == 0 {
		c.Telemetry.BufferSize = SizeBytes(defaultTelemetryBufferSize)
	}
	if c.Telemetry.FileMaxSize.Int64() == 0 {
		c.Telemetry.FileMaxSize = SizeBytes(defaultTelemetryFileMaxSize)
	}
	if c.Telemetry.FlushInterval.Duration() == 0 {
		c.Telemetry.FlushInterval = Duration(defaultTelemetryFlushInterval)
	}
	if c.Telemetry.QueueCapacity <= 0 {
		c.Telemetry.QueueCapacity = defaultTelemetryQueueCapacity
	}
}

// LogSummary prints the resolved configuration at startup so operators can
// see at a glance what source each value came from.
func LogSummary(eff EffectiveConfigResult) {
	logger.LogConfigSummary("effective_config", []string{
		fmt.Sprintf("source: %s", eff.Source),
		fmt.Sprintf("admin.address: %s", eff.Config.Admin.Address),
		fmt.Sprintf("backend.dsn: %s", eff.Config.Backend.DSN),
		fmt.Sprintf("dispatcher.queue_name: %s", eff.Config.Dispatcher.QueueName),
		fmt.Sprintf("dispatcher.results_table: %s", eff.Config.Dispatcher.ResultsTable),
		fmt.Sprintf("dispatcher.polling_interval: %s", eff.Config.Dispatcher.PollingInterval.Duration()),
		fmt.Sprintf("retention.enabled: %v", eff.Config.Retention.Enabled),
		fmt.Sprintf("retention.cron: %s", eff.Config.Retention.Cron),
	})
}
