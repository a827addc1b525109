package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Defaults for fields that applyDefaults fills in when unset by any layer.
const (
	defaultPollingInterval        = 100 * time.Millisecond
	defaultRetentionCron          = "0 2 * * *"
	defaultRetentionTTL           = 720 * time.Hour
	defaultRetentionLockTTL       = 5 * time.Minute
	defaultTelemetryBufferSize    = 8 * 1024 * 1024
	defaultTelemetryFileMaxSize   = 40 * 1024 * 1024
	defaultTelemetryFlushInterval = 2 * time.Second
	defaultTelemetryQueueCapacity = 2048
)

// Flags holds parsed command-line flag values and which were set
// explicitly, so LoadEffectiveConfig can tell "default" from "chosen".
type Flags struct {
	Admin    string
	DSN      string
	Config   string
	Set      map[string]bool
	Validate bool
}

// EnvResult reports whether any recognized COLAS_* env var was present.
type EnvResult struct {
	EnvUsed bool
}

// EffectiveConfigResult is the final, fully-defaulted configuration plus a
// record of which layer won for diagnostic purposes.
type EffectiveConfigResult struct {
	Config *Config
	Source string // "flags+env+yaml", "flags+yaml", "env+yaml", "yaml", or "defaults"
}

// ParseConfigFlags parses command-line flags and returns them alongside
// which ones were explicitly set.
func ParseConfigFlags() Flags {
	adminPtr := flag.String("admin", "0.0.0.0:9090", "admin HTTP listen address (/healthz, /metrics)")
	dsnPtr := flag.String("dsn", "sqlite://./colas.db", "backend data source name (sqlite://path or postgres://dsn)")
	cfgPtr := flag.String("config", "./colas.yaml", "path to YAML config file")
	validatePtr := flag.Bool("validate", false, "validate the effective config and exit")
	flag.Parse()

	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	return Flags{Admin: *adminPtr, DSN: *dsnPtr, Config: *cfgPtr, Set: setFlags, Validate: *validatePtr}
}

// ParseConfigFile loads the config file named by flags, treating a missing
// file as "not found" rather than an error, so a fresh install can run on
// flags/env alone.
func ParseConfigFile(flags Flags) (*Config, bool, error) {
	path := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := LoadConfigFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

// ParseConfigEnvs reads the COLAS_* environment variables into a fresh
// Config, along with whether any of them were actually set.
func ParseConfigEnvs() (*Config, EnvResult) {
	envs := map[string]string{
		"ADMIN_ADDRESS":       os.Getenv("COLAS_ADMIN_ADDRESS"),
		"BACKEND_DSN":         os.Getenv("COLAS_BACKEND_DSN"),
		"QUEUE_NAME":          os.Getenv("COLAS_QUEUE_NAME"),
		"RESULTS_TABLE":       os.Getenv("COLAS_RESULTS_TABLE"),
		"POLLING_INTERVAL":    os.Getenv("COLAS_POLLING_INTERVAL"),
		"WORKERS":             os.Getenv("COLAS_WORKERS"),
		"ENVELOPE":            os.Getenv("COLAS_ENVELOPE"),
		"RETENTION_ENABLED":   os.Getenv("COLAS_RETENTION_ENABLED"),
		"RETENTION_CRON":      os.Getenv("COLAS_RETENTION_CRON"),
		"RETENTION_TTL":       os.Getenv("COLAS_RETENTION_TTL"),
		"RETENTION_LOCK_TTL":  os.Getenv("COLAS_RETENTION_LOCK_TTL"),
		"RETENTION_LOCK_DIR":  os.Getenv("COLAS_RETENTION_LOCK_DIR"),
		"LOG_LEVEL":           os.Getenv("COLAS_LOG_LEVEL"),
		"TELEMETRY_BUFFER":    os.Getenv("COLAS_TELEMETRY_BUFFER_SIZE"),
		"TELEMETRY_FILE_MAX":  os.Getenv("COLAS_TELEMETRY_FILE_MAX_SIZE"),
		"TELEMETRY_FLUSH":     os.Getenv("COLAS_TELEMETRY_FLUSH_INTERVAL"),
		"TELEMETRY_QUEUE_CAP": os.Getenv("COLAS_TELEMETRY_QUEUE_CAPACITY"),
	}

	envUsed := false
	for _, v := range envs {
		if v != "" {
			envUsed = true
			break
		}
	}

	cfg := &Config{}
	if v := envs["ADMIN_ADDRESS"]; v != "" {
		cfg.Admin.Address = v
	}
	if v := envs["BACKEND_DSN"]; v != "" {
		cfg.Backend.DSN = v
	}
	if v := envs["QUEUE_NAME"]; v != "" {
		cfg.Dispatcher.QueueName = v
	}
	if v := envs["RESULTS_TABLE"]; v != "" {
		cfg.Dispatcher.ResultsTable = v
	}
	if v := envs["POLLING_INTERVAL"]; v != "" {
		cfg.Dispatcher.PollingInterval = parseDuration(v)
	}
	if v := envs["WORKERS"]; v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Dispatcher.Workers = n
		}
	}
	if v := envs["ENVELOPE"]; v != "" {
		cfg.Dispatcher.Envelope = parseBool(v)
	}
	if v := envs["RETENTION_ENABLED"]; v != "" {
		cfg.Retention.Enabled = parseBool(v)
	}
	if v := envs["RETENTION_CRON"]; v != "" {
		cfg.Retention.Cron = v
	}
	if v := envs["RETENTION_TTL"]; v != "" {
		cfg.Retention.TTL = parseDuration(v)
	}
	if v := envs["RETENTION_LOCK_TTL"]; v != "" {
		cfg.Retention.LockTTL = parseDuration(v)
	}
	if v := envs["RETENTION_LOCK_DIR"]; v != "" {
		cfg.Retention.Lockdir = v
	}
	if v := envs["LOG_LEVEL"]; v != "" {
		cfg.Logging.Level = strings.ToLower(strings.TrimSpace(v))
	}
	if v := envs["TELEMETRY_BUFFER"]; v != "" {
		cfg.Telemetry.BufferSize = parseSizeBytes(v)
	}
	if v := envs["TELEMETRY_FILE_MAX"]; v != "" {
		cfg.Telemetry.FileMaxSize = parseSizeBytes(v)
	}
	if v := envs["TELEMETRY_FLUSH"]; v != "" {
		cfg.Telemetry.FlushInterval = parseDuration(v)
	}
	if v := envs["TELEMETRY_QUEUE_CAP"]; v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Telemetry.QueueCapacity = n
		}
	}

	return cfg, EnvResult{EnvUsed: envUsed}
}

// LoadEffectiveConfig merges the three layers field-by-field: the YAML file
// is the base, COLAS_* env vars override it, and explicitly-set flags
// override both. Defaults are applied last for any field still unset.
func LoadEffectiveConfig(flags Flags, fileCfg *Config, fileExists bool, envCfg *Config, envRes EnvResult) (EffectiveConfigResult, error) {
	out := &Config{}
	if fileExists {
		*out = *fileCfg
	}

	overlayNonZero(out, envCfg)

	if flags.Set["admin"] {
		out.Admin.Address = flags.Admin
	}
	if flags.Set["dsn"] {
		out.Backend.DSN = flags.DSN
	}

	applyDefaults(out)

	source := "defaults"
	switch {
	case (flags.Set["admin"] || flags.Set["dsn"]) && envRes.EnvUsed:
		source = "flags+env+yaml"
	case flags.Set["admin"] || flags.Set["dsn"]:
		source = "flags+yaml"
	case envRes.EnvUsed:
		source = "env+yaml"
	case fileExists:
		source = "yaml"
	}

	return EffectiveConfigResult{Config: out, Source: source}, nil
}

// overlayNonZero copies every non-zero field of src onto dst. It is a
// small, explicit field list rather than reflection, since the config
// surface is small and explicitness catches typos at compile time.
func overlayNonZero(dst, src *Config) {
	if src.Admin.Address != "" {
		dst.Admin.Address = src.Admin.Address
	}
	if src.Backend.DSN != "" {
		dst.Backend.DSN = src.Backend.DSN
	}
	if src.Dispatcher.QueueName != "" {
		dst.Dispatcher.QueueName = src.Dispatcher.QueueName
	}
	if src.Dispatcher.ResultsTable != "" {
		dst.Dispatcher.ResultsTable = src.Dispatcher.ResultsTable
	}
	if src.Dispatcher.PollingInterval.Duration() != 0 {
		dst.Dispatcher.PollingInterval = src.Dispatcher.PollingInterval
	}
	if src.Dispatcher.Workers != 0 {
		dst.Dispatcher.Workers = src.Dispatcher.Workers
	}
	if src.Dispatcher.Envelope {
		dst.Dispatcher.Envelope = true
	}
	if src.Retention.Enabled {
		dst.Retention.Enabled = true
	}
	if src.Retention.Cron != "" {
		dst.Retention.Cron = src.Retention.Cron
	}
	if src.Retention.TTL.Duration() != 0 {
		dst.Retention.TTL = src.Retention.TTL
	}
	if src.Retention.LockTTL.Duration() != 0 {
		dst.Retention.LockTTL = src.Retention.LockTTL
	}
	if src.Retention.Lockdir != "" {
		dst.Retention.Lockdir = src.Retention.Lockdir
	}
	if src.Logging.Level != "" {
		dst.Logging.Level = src.Logging.Level
	}
	if src.Telemetry.BufferSize != 0 {
		dst.Telemetry.BufferSize = src.Telemetry.BufferSize
	}
	if src.Telemetry.FileMaxSize != 0 {
		dst.Telemetry.FileMaxSize = src.Telemetry.FileMaxSize
	}
	if src.Telemetry.FlushInterval.Duration() != 0 {
		dst.Telemetry.FlushInterval = src.Telemetry.FlushInterval
	}
	if src.Telemetry.QueueCapacity != 0 {
		dst.Telemetry.QueueCapacity = src.Telemetry.QueueCapacity
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func parseDuration(v string) Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return Duration(0)
	}
	if td, err := time.ParseDuration(v); err == nil {
		return Duration(td)
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return Duration(time.Duration(f * float64(time.Second)))
	}
	return Duration(0)
}

func parseSizeBytes(v string) SizeBytes {
	v = strings.TrimSpace(v)
	if v == "" {
		return SizeBytes(0)
	}
	if u, err := humanize.ParseBytes(v); err == nil {
		return SizeBytes(u)
	}
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return SizeBytes(i)
	}
	return SizeBytes(0)
}
