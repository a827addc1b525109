package config

import (
	"testing"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/require"
)

func TestLoadEffectiveConfigEnvOverridesFile(t *testing.T) {
	fileCfg := &Config{}
	fileCfg.Dispatcher.PollingInterval = Duration(5 * time.Second)
	fileCfg.Backend.DSN = "sqlite://./file.db"

	envCfg := &Config{}
	envCfg.Dispatcher.PollingInterval = Duration(2 * time.Second)

	eff, err := LoadEffectiveConfig(Flags{Set: map[string]bool{}}, fileCfg, true, envCfg, EnvResult{EnvUsed: true})
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, eff.Config.Dispatcher.PollingInterval.Duration())
	require.Equal(t, "sqlite://./file.db", eff.Config.Backend.DSN)
}

func TestLoadEffectiveConfigFlagOverridesEnvAndFile(t *testing.T) {
	fileCfg := &Config{}
	fileCfg.Backend.DSN = "sqlite://./file.db"
	envCfg := &Config{}
	envCfg.Backend.DSN = "sqlite://./env.db"

	flags := Flags{DSN: "sqlite://./flag.db", Set: map[string]bool{"dsn": true}}
	eff, err := LoadEffectiveConfig(flags, fileCfg, true, envCfg, EnvResult{EnvUsed: true})
	require.NoError(t, err)
	require.Equal(t, "sqlite://./flag.db", eff.Config.Backend.DSN)
}

func TestLoadEffectiveConfigAppliesDefaults(t *testing.T) {
	eff, err := LoadEffectiveConfig(Flags{Set: map[string]bool{}}, &Config{}, false, &Config{}, EnvResult{})
	require.NoError(t, err)

	cfg := eff.Config
	require.Equal(t, "tasks", cfg.Dispatcher.QueueName)
	require.Equal(t, "results", cfg.Dispatcher.ResultsTable)
	require.Equal(t, 100*time.Millisecond, cfg.Dispatcher.PollingInterval.Duration())
	require.Equal(t, 1, cfg.Dispatcher.Workers)
	require.Equal(t, "defaults", eff.Source)
}

func TestParseConfigEnvsReadsColasVars(t *testing.T) {
	t.Setenv("COLAS_POLLING_INTERVAL", "250ms")
	t.Setenv("COLAS_BACKEND_DSN", "postgres://localhost/colas")
	t.Setenv("COLAS_WORKERS", "3")

	cfg, res := ParseConfigEnvs()
	require.True(t, res.EnvUsed)
	require.Equal(t, 250*time.Millisecond, cfg.Dispatcher.PollingInterval.Duration())
	require.Equal(t, "postgres://localhost/colas", cfg.Backend.DSN)
	require.Equal(t, 3, cfg.Dispatcher.Workers)
}

func TestYAMLDurationAndSizeParsing(t *testing.T) {
	src := []byte(`
dispatcher:
  polling_interval: "150ms"
telemetry:
  buffer_size: "4MB"
  flush_interval: "2.5"
`)
	var cfg Config
	require.NoError(t, yaml.Unmarshal(src, &cfg))
	require.Equal(t, 150*time.Millisecond, cfg.Dispatcher.PollingInterval.Duration())
	require.EqualValues(t, 4*1000*1000, cfg.Telemetry.BufferSize.Int64())
	// bare numbers are seconds
	require.Equal(t, 2500*time.Millisecond, cfg.Telemetry.FlushInterval.Duration())
}

func TestValidateConfigRejectsBadScheme(t *testing.T) {
	eff, err := LoadEffectiveConfig(Flags{Set: map[string]bool{}}, &Config{}, false, &Config{}, EnvResult{})
	require.NoError(t, err)
	eff.Config.Backend.DSN = "mysql://localhost/db"
	require.Error(t, ValidateConfig(eff))
}

func TestValidateConfigRejectsBadRetentionCron(t *testing.T) {
	eff, err := LoadEffectiveConfig(Flags{Set: map[string]bool{}}, &Config{}, false, &Config{}, EnvResult{})
	require.NoError(t, err)
	eff.Config.Retention.Enabled = true
	eff.Config.Retention.Cron = "not a cron"
	require.Error(t, ValidateConfig(eff))
}

func TestValidateConfigAcceptsDefaults(t *testing.T) {
	eff, err := LoadEffectiveConfig(Flags{Set: map[string]bool{}}, &Config{}, false, &Config{}, EnvResult{})
	require.NoError(t, err)
	require.NoError(t, ValidateConfig(eff))
}
