// Command observer runs the routing-convergence monitor: it wires the
// kernel subscriber, event parser, session engine, quiet-period ticker,
// record sink, statistics aggregator, and the optional metrics exporter
// together and runs until SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nlmon/frr-converge/internal/kernel"
	"github.com/nlmon/frr-converge/internal/metrics"
	"github.com/nlmon/frr-converge/internal/parser"
	"github.com/nlmon/frr-converge/internal/session"
	"github.com/nlmon/frr-converge/internal/sink"
	"github.com/nlmon/frr-converge/internal/stats"
	"github.com/nlmon/frr-converge/internal/ticker"
	"github.com/nlmon/frr-converge/pkg/logging"
)

const (
	tickInterval    = 1 * time.Second
	defaultLogDir   = "/var/log/frr"
	defaultLogName  = "async_route_convergence.json"
	forceQuitWithin = 1 * time.Second
)

var (
	threshold   = flag.Int64("threshold", 3000, "convergence quiet-period threshold in milliseconds")
	routerName  = flag.String("router-name", "", "router name recorded in the log stream (default: auto-generated)")
	logPath     = flag.String("log-path", "", "structured log file path (default: "+defaultLogDir+"/"+defaultLogName+")")
	metricsPort = flag.Int("metrics.port", 5121, "port for the Prometheus metrics server, 0 disables it")
	metricsPath = flag.String("metrics.path", "/metrics", "path for the Prometheus metrics server")
	debug       = flag.Bool("logging.debug", false, "enable debug-level operator logging")
)

func main() {
	flag.Parse()
	logging.SetDebug(*debug)

	if *threshold <= 0 {
		fmt.Fprintln(os.Stderr, "error: --threshold must be a positive integer")
		os.Exit(1)
	}

	name := resolveRouterName(*routerName)
	path := resolveLogPath(*logPath)

	logSink, err := sink.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot set up log sink: %v\n", err)
		os.Exit(1)
	}
	logSink.Start()

	monitor := session.New(name, *threshold, logSink)

	var exporter *metrics.Exporter
	if *metricsPort != 0 {
		exporter = metrics.New(monitor)
		go func() {
			if err := exporter.Serve(*metricsPort, *metricsPath); err != nil {
				logging.Errorf("metrics server stopped: %v", err)
			}
		}()
	}

	p := parser.New()
	subscriber := kernel.New(p, monitor)

	quietTicker := ticker.New(tickInterval, monitor)

	startedAt := time.Now().UnixMilli()
	monitor.EmitMonitoringStarted(path, startedAt)

	logging.Infof("monitoring started: router=%s threshold=%dms log=%s", name, *threshold, path)

	if err := subscriber.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot start kernel subscriber: %v\n", err)
		os.Exit(1)
	}
	quietTicker.Start()

	waitForShutdown()

	logging.Infof("shutting down")

	quietTicker.Stop()
	if err := subscriber.Stop(); err != nil {
		logging.Errorf("error stopping kernel subscriber: %v", err)
	}

	stats.Finalize(monitor, logSink, name, monitor.MonitorID, path, *threshold, startedAt, time.Now().UnixMilli())
	logSink.Stop()

	if exporter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		exporter.Shutdown(ctx)
		cancel()
	}

	logging.Infof("shutdown complete")
}

// waitForShutdown blocks until SIGINT/SIGTERM. A second signal within
// forceQuitWithin terminates the process immediately instead of waiting for
// the graceful path.
func waitForShutdown() {
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	first := <-sig
	logging.Infof("received signal %v, shutting down gracefully", first)

	go func() {
		select {
		case second := <-sig:
			logging.Infof("received second signal %v within %s, forcing exit", second, forceQuitWithin)
			os.Exit(1)
		case <-time.After(forceQuitWithin):
		}
	}()
}

// resolveRouterName builds the default router_<user>_<unix-seconds> name
// used when --router-name is not given.
func resolveRouterName(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	u, err := user.Current()
	username := "unknown"
	if err == nil {
		username = u.Username
	}
	return fmt.Sprintf("router_%s_%d", username, time.Now().Unix())
}

// resolveLogPath applies the --log-path default: prefer /var/log/frr when
// writable, otherwise the current working directory. The parent directory
// is created with mode 0755 if missing.
func resolveLogPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}

	dir := defaultLogDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		logging.Errorf("cannot create %s, falling back to current directory: %v", dir, err)
		dir = "."
	} else if probe, err := os.CreateTemp(dir, ".write-probe-*"); err != nil {
		logging.Errorf("%s is not writable, falling back to current directory: %v", dir, err)
		dir = "."
	} else {
		probe.Close()
		os.Remove(probe.Name())
	}
	return filepath.Join(dir, defaultLogName)
}
