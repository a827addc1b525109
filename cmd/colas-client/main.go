// Command colas-client is a small invocation façade: it connects to the
// configured backend, pushes one task onto the queue, waits on the stream
// for its result, and prints it: the client side of the happy-path
// round trip a worker process completes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"colas/pkg/backend"
	"colas/pkg/config"
	"colas/pkg/dispatcher"
)

func main() {
	_ = godotenv.Load(".env")

	a := flag.Int64("a", 2, "first mul operand")
	b := flag.Int64("b", 3, "second mul operand")
	timeout := flag.Duration("timeout", 10*time.Second, "how long to wait for the result")

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

	pair, err := backend.Connect(eff.Config.Backend.DSN)
	if err != nil {
		log.Fatalf("failed to connect backend: %v", err)
	}
	defer pair.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
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

	result, err := d.Invoke(ctx, "mul", []any{*a, *b}, nil)
	if err != nil {
		log.Fatalf("invoke failed: %v", err)
	}
	fmt.Printf("mul(%d, %d) = %v\n", *a, *b, result)
}
