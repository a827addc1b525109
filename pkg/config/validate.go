package config

import (
	"fmt"
	"strings"

	"github.com/adhocore/gronx"
)

// ValidateConfig fails fast on configuration that the rest of the module
// would otherwise only discover at the first Backend.Connect or Dispatcher
// operation.
func ValidateConfig(eff EffectiveConfigResult) error {
	cfg := eff.Config
	if cfg == nil {
		return fmt.Errorf("effective config is nil")
	}

	dsn := strings.TrimSpace(cfg.Backend.DSN)
	if dsn == "" {
		return fmt.Errorf("backend.dsn is empty: set --dsn flag, COLAS_BACKEND_DSN env, or backend.dsn in config")
	}
	scheme := dsn
	if i := strings.Index(dsn, "://"); i >= 0 {
		scheme = dsn[:i]
	}
	switch strings.ToLower(scheme) {
	case "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("unsupported backend.dsn scheme %q: must be sqlite://, postgres://, or postgresql://", scheme)
	}

	if cfg.Dispatcher.QueueName == "" {
		return fmt.Errorf("dispatcher.queue_name is empty")
	}
	if cfg.Dispatcher.ResultsTable == "" {
		return fmt.Errorf("dispatcher.results_table is empty")
	}
	if cfg.Dispatcher.PollingInterval.Duration() <= 0 {
		return fmt.Errorf("dispatcher.polling_interval must be positive")
	}
	if cfg.Dispatcher.Workers <= 0 {
		return fmt.Errorf("dispatcher.workers must be positive")
	}

	if cfg.Retention.Enabled {
		if cfg.Retention.Cron != "" && !gronx.IsValid(cfg.Retention.Cron) {
			return fmt.Errorf("invalid retention.cron: not a valid cron expression: %q", cfg.Retention.Cron)
		}
		if cfg.Retention.TTL.Duration() <= 0 {
			return fmt.Errorf("invalid retention.ttl: must be a positive duration")
		}
		if cfg.Retention.LockTTL.Duration() <= 0 {
			return fmt.Errorf("invalid retention.lock_ttl: must be a positive duration")
		}
	}

	return nil
}
