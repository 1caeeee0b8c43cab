package command

import (
	"context"
	"log/slog"

	"github.com/yndnr/pagejournal/internal/config"
	"github.com/yndnr/pagejournal/internal/infra/confloader"
	"github.com/yndnr/pagejournal/internal/server/httpserver"
	"github.com/yndnr/pagejournal/internal/telemetry/logger"
)

// configReloader re-resolves the configuration and applies the settings
// that can change while serving: log.level and metrics.rate_limit.
type configReloader struct {
	path      string
	overrides map[string]any
	limiter   *httpserver.RequestLimiter
	logger    *slog.Logger
}

// reload leaves the running settings untouched when the new configuration
// does not load or verify.
func (r *configReloader) reload(ctx context.Context) error {
	resolved, err := config.Resolve(r.path, r.overrides)
	if err != nil {
		r.logger.WarnContext(ctx, "configuration reload failed, keeping current settings",
			"path", r.path, "error", err)
		return err
	}

	cfg := resolved.Config
	logger.SetLevel(cfg.Log.Level)
	r.limiter.SetRate(cfg.Metrics.RateLimit)
	r.logger.InfoContext(ctx, "configuration reloaded",
		"path", r.path,
		"log_level", logger.GetLevel(),
		"rate_limit", cfg.Metrics.RateLimit,
	)
	return nil
}

// watch starts reloading whenever the configuration file changes. The
// returned watcher must be stopped by the caller.
func (r *configReloader) watch(ctx context.Context) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(logger.Component(r.logger, "confloader")))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(r.path); err != nil {
		_ = w.Stop()
		return nil, err
	}
	w.OnChange(func(string) { _ = r.reload(ctx) })
	w.StartAsync(ctx)
	return w, nil
}
