// Command colas-worker runs the dispatcher's worker loop: it consumes the
// configured queue, executes registered handlers, stores results on the
// configured results table, and exposes /healthz and /metrics over the
// admin listener. It also drives the periodic retention sweep when enabled.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"colas/internal/retention"
	"colas/pkg/adminhttp"
	"colas/pkg/backend"
	"colas/pkg/banner"
	"colas/pkg/colaserr"
	"colas/pkg/config"
	"colas/pkg/dispatcher"
	"colas/pkg/logger"
	"colas/pkg/metrics"
	"colas/pkg/telemetry"
)

var version = "dev"

func main() {
	_ = godotenv.Load(".env")

	flags := config.ParseConfigFlags()
	fileCfg, fileExists, err := config.ParseConfigFile(flags)
	if err != nil {
		log.Fatalf("failed to load config file: %v", err)
	}
	envCfg, envRes := config.ParseConfigEnvs()

	eff, err := config.LoadEffectiveConfig(flags, fileCfg, fileExists, envCfg, envRes)
	if err != nil {
		log.Fatalf("failed to build effective config: %v", err)
	}
	if err := config.ValidateConfig(eff); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if flags.Validate {
		config.LogSummary(eff)
		return
	}

	logger.InitWithLevel(eff.Config.Logging.Level)
	defer logger.Sync()

	telemetry.Init(".colas/telemetry", int(eff.Config.Telemetry.BufferSize), eff.Config.Telemetry.QueueCapacity,
		eff.Config.Telemetry.FlushInterval.Duration(), eff.Config.Telemetry.FileMaxSize.Int64())
	defer telemetry.Close()

	pair, err := backend.Connect(eff.Config.Backend.DSN)
	if err != nil {
		log.Fatalf("failed to connect backend: %v", err)
	}
	defer pair.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pair.Queue.Init(ctx, eff.Config.Dispatcher.QueueName); err != nil {
		log.Fatalf("failed to init queue: %v", err)
	}
	if err := pair.Stream.Init(ctx, eff.Config.Dispatcher.ResultsTable); err != nil {
		log.Fatalf("failed to init results table: %v", err)
	}

	opts := []dispatcher.Option{dispatcher.WithPollingInterval(eff.Config.Dispatcher.PollingInterval.Duration())}
	if eff.Config.Dispatcher.Envelope {
		opts = append(opts, dispatcher.WithResultEnvelope())
	}
	d := dispatcher.New(pair.Queue, pair.Stream, eff.Config.Dispatcher.QueueName, eff.Config.Dispatcher.ResultsTable, opts...)
	registerHandlers(d)

	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)
	admin := adminhttp.New(eff.Config.Admin.Address, reg)
	go func() {
		if err := admin.ListenAndServe(); err != nil {
			logger.Error("admin_listen_failed", "error", err)
		}
	}()
	defer admin.Shutdown()

	retCancel, err := retention.Start(ctx, eff.Config.Retention, pair.Stream, []string{eff.Config.Dispatcher.ResultsTable})
	if err != nil {
		log.Fatalf("failed to start retention sweeper: %v", err)
	}
	defer retCancel()

	banner.Print(eff.Config.Admin.Address, eff.Config.Backend.DSN, eff.Config.Dispatcher.QueueName, eff.Config.Dispatcher.ResultsTable, eff.Source, version)
	logger.Info("worker_starting", "workers", eff.Config.Dispatcher.Workers, "queue", eff.Config.Dispatcher.QueueName)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigc
		logger.Info("signal_received", "signal", s.String())
		cancel()
	}()

	err = d.RunWorkerPool(ctx, eff.Config.Dispatcher.Workers)
	if err != nil && ctx.Err() == nil && !colaserr.Of(err, colaserr.CancelError) {
		logger.Error("worker_pool_exited", "error", err)
		os.Exit(1)
	}
	logger.Info("worker_stopped")
}

// registerHandlers binds the demo handlers exercised by the end-to-end
// happy-path scenario: mul(a, b) -> a*b.
func registerHandlers(d *dispatcher.Dispatcher) {
	d.Register("mul", func(args []any, kwargs map[string]any) (any, error) {
		a, b, err := mulArgs(args, kwargs)
		if err != nil {
			return nil, err
		}
		return a * b, nil
	})
}

func mulArgs(args []any, kwargs map[string]any) (int64, int64, error) {
	toInt := func(v any) (int64, bool) {
		switch n := v.(type) {
		case int64:
			return n, true
		case int:
			return int64(n), true
		case float64:
			return int64(n), true
		}
		return 0, false
	}
	if len(args) >= 2 {
		a, ok1 := toInt(args[0])
		b, ok2 := toInt(args[1])
		if ok1 && ok2 {
			return a, b, nil
		}
	}
	a, ok1 := toInt(kwargs["a"])
	b, ok2 := toInt(kwargs["b"])
	if ok1 && ok2 {
		return a, b, nil
	}
	return 0, 0, colaserr.Handler("mul", errNotEnoughArgs)
}

var errNotEnoughArgs = errArgs("mul requires two integer arguments: a, b")

type errArgs string

func (e errArgs) Error() string { return string(e) }
