package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"strings"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"hearth/internal/notify"
	"hearth/internal/obs"
	"hearth/internal/ops"
	"hearth/internal/store"
	"hearth/pkg/conn"
	"hearth/pkg/gateway"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		logs.Errorf("gateway: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to JSON config")
	tokenFlag := flag.String("token", "", "Bearer token (default: $HEARTH_TOKEN)")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		return err
	}
	token := strings.TrimSpace(*tokenFlag)
	if token == "" {
		token = cfg.Token
	}
	if token == "" {
		return errors.New("missing token; use -token or HEARTH_TOKEN")
	}

	if cfg.Profiling.ServerAddress != "" {
		stop, err := startProfiler(cfg.Profiling)
		if err != nil {
			return err
		}
		defer stop()
	}

	messages, closeStore, err := openStore(cfg.Postgres)
	if err != nil {
		return err
	}
	defer closeStore()

	notifier := notify.New(notify.LogSink{})
	notifier.SetSelf(cfg.Notify.Self)
	notifier.SetMuted(cfg.Notify.Muted)
	notifier.SetFocusMode(cfg.Notify.FocusMode)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := obs.NewMetrics(registry)
	if cfg.Metrics.Addr != "" {
		stop := serveMetrics(cfg.Metrics.Addr, registry)
		defer stop()
	}

	client, err := gateway.NewClient(cfg.GatewayOption(gateway.Handlers{
		Store:    messages,
		Notifier: notifier,
	}, metrics))
	if err != nil {
		return err
	}
	logs.Infof("gateway: endpoint %s", client.Endpoint())

	states, unsubscribe := client.Signal().Subscribe()
	defer unsubscribe()
	go func() {
		for state := range states {
			logs.Infof("gateway: state %s", state)
		}
	}()

	client.Connect(token)
	<-sys.Shutdown()

	client.Disconnect()
	snap := metrics.Snapshot(client.State())
	logs.Infof("gateway: shutdown, frames: %d, dropped: %d, reconnects: %d, heartbeats: %d, connect avg: %s",
		snap.Frames, snap.Dropped, snap.Reconnects, snap.Heartbeats, snap.ConnectLatency.Avg)
	return nil
}

// storeCloser releases the store's resources.
type storeCloser func()

func openStore(cfg ops.PostgresConfig) (gateway.MessageStore, storeCloser, error) {
	if !cfg.Enabled() {
		logs.Infof("gateway: using in-memory message store")
		return store.NewMemoryStore(), func() {}, nil
	}

	client, err := conn.New(cfg.Option())
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	messages, err := store.NewGormStore(client.DB())
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	logs.Infof("gateway: using postgres message store")
	return messages, func() {
		if err := client.Close(); err != nil {
			logs.Warnf("gateway: close postgres, err: %+v", err)
		}
	}, nil
}

func serveMetrics(addr string, registry *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Errorf("gateway: metrics server, err: %+v", err)
		}
	}()
	logs.Infof("gateway: metrics on %s/metrics", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

func startProfiler(cfg ops.ProfilingConfig) (func(), error) {
	name := cfg.ApplicationName
	if name == "" {
		name = "hearth.gateway"
	}
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: name,
		ServerAddress:   cfg.ServerAddress,
		Logger:          profilerLogger{},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		return nil, err
	}
	return func() {
		_ = profiler.Stop()
	}, nil
}

// profilerLogger forwards pyroscope's own messages to the process log.
type profilerLogger struct{}

func (profilerLogger) Infof(format string, args ...any) { logs.Debugf("pyroscope: "+format, args...) }
func (profilerLogger) Debugf(format string, args ...any) { logs.Debugf("pyroscope: "+format, args...) }
func (profilerLogger) Errorf(format string, args ...any) { logs.Errorf("pyroscope: "+format, args...) }
