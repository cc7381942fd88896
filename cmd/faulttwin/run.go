package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/faulttwin/faulttwin/internal/alerts"
	"github.com/faulttwin/faulttwin/internal/api"
	"github.com/faulttwin/faulttwin/internal/config"
	"github.com/faulttwin/faulttwin/internal/history"
	"github.com/faulttwin/faulttwin/internal/inference"
	"github.com/faulttwin/faulttwin/internal/ingest"
	"github.com/faulttwin/faulttwin/internal/metrics"
	"github.com/faulttwin/faulttwin/internal/model"
	"github.com/faulttwin/faulttwin/internal/present"
	"github.com/faulttwin/faulttwin/internal/publish"
	"github.com/faulttwin/faulttwin/internal/source"
	"github.com/faulttwin/faulttwin/internal/ws"
)

const shutdownTimeout = 5 * time.Second

func runCmd(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "config.yaml", "path to config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "faulttwin: %v\n", err)
		return 1
	}

	level := new(slog.LevelVar)
	level.Set(cfg.Log.SlogLevel())
	slog.SetDefault(newLogger(stderr, cfg.Log.Format, level))

	slog.Info("faulttwin starting", "config", *configPath)
	slog.Info("config loaded",
		"source", cfg.Source.Type,
		"models_dir", cfg.Models.Dir,
		"history_capacity", cfg.History.Capacity,
		"poll_interval", cfg.Presentation.PollInterval,
		"http_port", cfg.Server.HTTPPort,
		"mqtt", cfg.MQTT.Enabled,
		"alert_rules", len(cfg.Alerts.Rules),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, cfg, level); err != nil {
		slog.Error("faulttwin stopped", "err", err)
		return 1
	}
	slog.Info("faulttwin shut down")
	return 0
}

func run(ctx context.Context, configPath string, cfg *config.Config, level *slog.LevelVar) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	arts, err := model.LoadArtifacts(model.Files(cfg.Models))
	if err != nil {
		return err
	}
	inf, err := inference.New(arts, inference.WithObserver(m))
	if err != nil {
		return err
	}
	slog.Info("models loaded",
		"classes", arts.Classifier.NumClasses(),
		"features", inf.Features(),
	)

	store := history.New(cfg.History.Capacity)

	src, err := source.Open(ctx, cfg.Source)
	if err != nil {
		return err
	}
	loop := ingest.New(src, inf, store, ingest.WithObserver(m))

	engine, err := alerts.New(cfg.Alerts)
	if err != nil {
		src.Close()
		return err
	}

	poller := present.NewPoller(store, cfg.Presentation.PollInterval,
		present.SinkFunc(func(_ context.Context, v *present.View) {
			idx, ok := 0.0, v.Health.Index != nil
			if ok {
				idx = *v.Health.Index
			}
			m.SetWindow(v.Entries, idx, ok)
		}),
		engine,
	)
	hub := ws.New(poller)
	poller.AddSink(hub)

	var pub *publish.Publisher
	if cfg.MQTT.Enabled {
		pub = publish.New(cfg.MQTT, publish.WithObserver(m))
		poller.AddSink(pub)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", api.New(api.Deps{
		Viewer: poller,
		Window: store,
		Alerts: engine,
		Stats:  loop,
	}))
	mux.Handle("/ws/stream", hub)
	mux.Handle("/metrics", metrics.Handler(reg))

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := loop.Run(gctx); err != nil {
			return err
		}
		st := loop.Stats()
		slog.Info("source exhausted, still serving the last window",
			"lines", st.Lines, "accepted", st.Accepted, "rejected", st.Rejected())
		return nil
	})
	g.Go(func() error { return poller.Run(gctx) })
	g.Go(func() error { return hub.Run(gctx) })
	if pub != nil {
		g.Go(func() error { return pub.Run(gctx) })
	}

	g.Go(func() error {
		return config.Watch(gctx, configPath, func(updated *config.Config) {
			level.Set(updated.Log.SlogLevel())
			if err := engine.SetConfig(updated.Alerts); err != nil {
				slog.Error("alert rules not reloaded", "err", err)
			}
			slog.Info("config hot-reloaded",
				"log_level", updated.Log.Level,
				"alert_rules", len(updated.Alerts.Rules),
			)
		})
	})

	g.Go(func() error {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})

	err = g.Wait()
	engine.Wait()
	return err
}
