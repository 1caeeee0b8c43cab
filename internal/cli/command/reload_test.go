package command

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/yndnr/pagejournal/internal/server/httpserver"
	"github.com/yndnr/pagejournal/internal/telemetry/logger"
)

func writeConfig(t *testing.T, path, level string, rateLimit int) {
	t.Helper()
	content := "storage:\n  engine: memory\nlog:\n  level: " + level +
		"\nmetrics:\n  rate_limit: " + strconv.Itoa(rateLimit) + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func resetLevel(t *testing.T) {
	t.Helper()
	prev := logger.GetLevel()
	t.Cleanup(func() { logger.SetLevel(prev) })
}

func newReloader(t *testing.T, overrides map[string]any) (*configReloader, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pagejournal.yaml")
	writeConfig(t, path, "info", 0)
	if overrides == nil {
		overrides = map[string]any{}
	}
	return &configReloader{
		path:      path,
		overrides: overrides,
		limiter:   httpserver.NewRequestLimiter(0),
		logger:    slog.New(slog.DiscardHandler),
	}, path
}

func TestConfigReloader_Reload(t *testing.T) {
	resetLevel(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		overrides map[string]any
		level     string
		rateLimit int
		wantLevel string
		wantRate  int
		wantErr   bool
	}{
		{"applies file", nil, "debug", 3, "debug", 3, false},
		{"flag pins rate limit", map[string]any{"metrics.rate_limit": 7}, "warn", 3, "warn", 7, false},
		{"flag pins log level", map[string]any{"log.level": "error"}, "debug", 2, "error", 2, false},
		{"invalid file keeps settings", nil, "loud", 9, "info", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger.SetLevel("info")
			r, path := newReloader(t, tt.overrides)
			writeConfig(t, path, tt.level, tt.rateLimit)

			err := r.reload(ctx)
			if (err != nil) != tt.wantErr {
				t.Fatalf("reload() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := logger.GetLevel(); got != tt.wantLevel {
				t.Errorf("level = %q, want %q", got, tt.wantLevel)
			}
			if got := r.limiter.Rate(); got != tt.wantRate {
				t.Errorf("rate limit = %d, want %d", got, tt.wantRate)
			}
		})
	}
}

func TestConfigReloader_WatchAppliesOnWrite(t *testing.T) {
	resetLevel(t)
	logger.SetLevel("info")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r, path := newReloader(t, nil)
	w, err := r.watch(ctx)
	if err != nil {
		t.Fatalf("watch() error = %v", err)
	}
	defer w.Stop()

	writeConfig(t, path, "debug", 4)
	waitFor(t, func() bool { return logger.GetLevel() == "debug" && r.limiter.Rate() == 4 })
}

func TestServeReloadsLogLevel(t *testing.T) {
	resetLevel(t)
	path := filepath.Join(t.TempDir(), "pagejournal.yaml")
	writeConfig(t, path, "warn", 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := runAppContext(ctx, t, "--config", path,
			"serve", "--metrics-addr", "127.0.0.1:0", "--shutdown-timeout", "1s")
		done <- err
	}()

	waitFor(t, func() bool { return logger.GetLevel() == "warn" })
	// The watcher may not be registered yet, so keep rewriting slower than
	// its debounce until the change lands.
	waitFor(t, func() bool {
		writeConfig(t, path, "debug", 0)
		time.Sleep(300 * time.Millisecond)
		return logger.GetLevel() == "debug"
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
