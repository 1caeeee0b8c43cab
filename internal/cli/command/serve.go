package command

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/pagejournal/internal/infra/shutdown"
	"github.com/yndnr/pagejournal/internal/server/httpserver"
)

// readyDatabase is the database name counted by the readiness check.
const readyDatabase = "pagejournal-ready"

// ServeCommand returns the serve command.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Hold the page store open for value log GC and expose metrics",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Metrics listen address (overrides metrics.addr)",
			},
			&cli.IntFlag{
				Name:  "rate-limit",
				Usage: "Maximum requests per second to the metrics server, 0 disables (overrides metrics.rate_limit)",
			},
			&cli.DurationFlag{
				Name:  "stats-interval",
				Usage: "Interval between store statistics log lines (0 disables)",
				Value: time.Minute,
			},
			&cli.DurationFlag{
				Name:  "shutdown-timeout",
				Usage: "Time allowed for graceful shutdown",
				Value: 30 * time.Second,
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	e := envFrom(c)
	store, err := e.Store()
	if err != nil {
		return err
	}

	addr := e.cfg.Metrics.Addr
	if c.IsSet("metrics-addr") {
		addr = c.String("metrics-addr")
	}

	if c.IsSet("rate-limit") {
		e.overrides["metrics.rate_limit"] = c.Int("rate-limit")
		e.cfg.Metrics.RateLimit = c.Int("rate-limit")
	}
	limiter := httpserver.NewRequestLimiter(e.cfg.Metrics.RateLimit)

	reg := e.registry
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if e.badger != nil {
		e.badger.RegisterMetrics(reg, e.cfg.Metrics.Namespace)
	}

	srv := httpserver.New(addr, httpserver.NewRouter(httpserver.RouterConfig{
		Gatherer: reg,
		Ready: func(ctx context.Context) error {
			_, err := store.PageCount(ctx, readyDatabase)
			return err
		},
		Logger:  e.logger,
		Limiter: limiter,
	}))
	bound, err := srv.Listen()
	if err != nil {
		return err
	}

	handler := shutdown.NewHandler(c.Duration("shutdown-timeout"), e.logger)
	handler.OnShutdown("metrics server", func(ctx context.Context) error {
		e.logger.Info("shutting down metrics server")
		return srv.Shutdown(ctx)
	})

	if e.configPath != "" {
		reloader := &configReloader{
			path:      e.configPath,
			overrides: e.overrides,
			limiter:   limiter,
			logger:    e.logger,
		}
		w, err := reloader.watch(c.Context)
		if err != nil {
			_ = srv.Shutdown(c.Context)
			return err
		}
		handler.OnClose("config watcher", w.Stop)
	}

	go func() {
		e.logger.Info("metrics server listening", "addr", bound.String())
		if err := srv.Serve(); err != nil {
			e.logger.Error("metrics server error", "error", err)
		}
	}()

	if interval := c.Duration("stats-interval"); interval > 0 && e.badger != nil {
		go logStats(c.Context, e, interval, handler.Done())
	}

	e.logger.Info("serving, press Ctrl+C to stop", "engine", e.cfg.Storage.Engine)
	return handler.WaitContext(c.Context)
}

func logStats(ctx context.Context, e *env, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			st, err := e.badger.Stats(ctx)
			if err != nil {
				e.logger.Warn("store stats failed", "error", err)
				continue
			}
			e.logger.Info("store stats",
				"total_size", st.TotalSize,
				"lsm_size", st.LSMSize,
				"vlog_size", st.ValueLogSize,
				"gc_runs", st.GCRuns,
			)
		}
	}
}
