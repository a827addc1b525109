// Package metrics exposes Prometheus counters and histograms for queue and
// stream operations: package-level vectors registered once against the
// process registry, incremented inline by callers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Pushes counts successful Queue.Push calls, labeled by queue name.
	Pushes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "colas",
		Name:      "queue_pushes_total",
		Help:      "Total tasks pushed onto a queue.",
	}, []string{"queue"})

	// Pops counts Queue.Pop calls that returned a task, labeled by queue name.
	Pops = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "colas",
		Name:      "queue_pops_total",
		Help:      "Total tasks popped from a queue.",
	}, []string{"queue"})

	// PollSleeps counts polling-interval sleeps taken by Tasks()/Wait().
	PollSleeps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "colas",
		Name:      "poll_sleeps_total",
		Help:      "Total polling sleeps taken while waiting for work or a result.",
	}, []string{"component"})

	// StreamStores counts Stream.Store calls, labeled by result table.
	StreamStores = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "colas",
		Name:      "stream_stores_total",
		Help:      "Total results stored in a stream table.",
	}, []string{"table"})

	// WaitLatency observes end-to-end Invoke wait duration, in seconds.
	WaitLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "colas",
		Name:      "invoke_wait_seconds",
		Help:      "Time spent waiting for a result in Dispatcher.Invoke.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"handler"})

	// RetentionSweeps counts retention sweep outcomes: "ok" per finished run,
	// "error" per table whose Stream.Clean failed, "aborted" per aborted run.
	RetentionSweeps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "colas",
		Name:      "retention_sweeps_total",
		Help:      "Total retention sweep attempts, by outcome.",
	}, []string{"outcome"})
)

// Registry collects all of this package's vectors for registration against
// a prometheus.Registerer.
func Registry() []prometheus.Collector {
	return []prometheus.Collector{Pushes, Pops, PollSleeps, StreamStores, WaitLatency, RetentionSweeps}
}

// MustRegister registers every collector in Registry() against reg.
func MustRegister(reg prometheus.Registerer) {
	for _, c := range Registry() {
		reg.MustRegister(c)
	}
}
