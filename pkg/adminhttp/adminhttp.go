// Package adminhttp exposes a small operational listener serving /healthz
// and /metrics. It is an ops sidecar, not a data plane: tasks and results
// only ever travel through the storage backend.
package adminhttp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"colas/pkg/logger"
)

// Server is a minimal fasthttp-backed admin listener. Requests are rate
// limited per remote address so a misbehaving scraper cannot starve the
// worker of connections.
type Server struct {
	addr     string
	reg      *prometheus.Registry
	srv      *fasthttp.Server
	limiters *limiterPool
}

// New constructs an admin Server bound to addr, serving Prometheus metrics
// registered against reg.
func New(addr string, reg *prometheus.Registry) *Server {
	s := &Server{addr: addr, reg: reg, limiters: newLimiterPool()}
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	s.srv = &fasthttp.Server{
		Handler: func(ctx *fasthttp.RequestCtx) {
			if !s.limiters.Allow(ctx.RemoteIP().String()) {
				ctx.SetStatusCode(fasthttp.StatusTooManyRequests)
				return
			}
			switch string(ctx.Path()) {
			case "/healthz":
				ctx.SetStatusCode(fasthttp.StatusOK)
				ctx.SetBodyString("ok")
			case "/metrics":
				handler(ctx)
			default:
				ctx.SetStatusCode(fasthttp.StatusNotFound)
			}
		},
	}
	return s
}

// ListenAndServe blocks serving admin requests until the listener fails.
func (s *Server) ListenAndServe() error {
	logger.Info("adminhttp_listening", "addr", s.addr)
	return s.srv.ListenAndServe(s.addr)
}

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown() error {
	return s.srv.Shutdown()
}
