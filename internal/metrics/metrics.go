// Package metrics is the optional Prometheus exporter ambient component: it
// mirrors the Session Engine's counters and current-session gauge on a
// /metrics endpoint, with a flag-configured port and path.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nlmon/frr-converge/internal/session"
	"github.com/nlmon/frr-converge/pkg/logging"
)

// Monitor is the narrow dependency the exporter needs from the Session
// Engine: read-only counter and current-session snapshots, never a control
// path. Collection happens on scrape, not on a timer, so the gauges/counters
// below are all *Func variants rather than stored state the exporter has to
// keep in sync itself.
type Monitor interface {
	Counters() session.Counters
	CurrentSessionID() (int64, bool)
}

// Exporter owns the registered collectors and the HTTP server that exposes
// them. It holds no mutable state of its own: every collector reads through
// to the live Monitor at scrape time. Each Exporter carries its own
// registry rather than the global default one, so constructing more than
// one in a test doesn't collide on duplicate metric names.
type Exporter struct {
	monitor  Monitor
	registry *prometheus.Registry
	server   *http.Server
}

// New registers the convergence counters/gauge and returns an Exporter
// ready to Serve.
func New(monitor Monitor) *Exporter {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "frr_converge_route_events_total",
		Help: "total route events observed across all sessions",
	}, func() float64 {
		return float64(monitor.Counters().TotalRouteEvents)
	})
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "frr_converge_netem_triggers_total",
		Help: "total sessions triggered by a netem qdisc event",
	}, func() float64 {
		return float64(monitor.Counters().TotalNetemTriggers)
	})
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "frr_converge_route_triggers_total",
		Help: "total sessions triggered by a route event",
	}, func() float64 {
		return float64(monitor.Counters().TotalRouteTriggers)
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "frr_converge_session_active",
		Help: "1 if a convergence measurement session is currently open, else 0",
	}, func() float64 {
		if _, ok := monitor.CurrentSessionID(); ok {
			return 1
		}
		return 0
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "frr_converge_current_session_id",
		Help: "id of the currently open session, or 0 while idle",
	}, func() float64 {
		id, ok := monitor.CurrentSessionID()
		if !ok {
			return 0
		}
		return float64(id)
	})

	return &Exporter{monitor: monitor, registry: reg}
}

// Serve starts the metrics HTTP server on port, exposing path, and blocks
// until Shutdown is called or the server fails. Run it in a goroutine.
func (e *Exporter) Serve(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))

	e.server = &http.Server{
		Addr:    ":" + strconv.Itoa(port),
		Handler: mux,
	}

	logging.Infof("serving metrics on :%d%s", port, path)
	if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server, if one was started.
func (e *Exporter) Shutdown(ctx context.Context) error {
	if e.server == nil {
		return nil
	}
	return e.server.Shutdown(ctx)
}
