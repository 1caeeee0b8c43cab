package shutdown

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) hook(name string) func(context.Context) error {
	return func(context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.order = append(r.order, name)
		return nil
	}
}

func (r *recorder) calls() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.order, ",")
}

func TestHandler_Done(t *testing.T) {
	h := NewHandler(5*time.Second, nil)
	select {
	case <-h.Done():
		t.Error("Done channel should not be closed initially")
	default:
	}
}

func TestHandler_WaitContext_ReverseOrder(t *testing.T) {
	h := NewHandler(5*time.Second, nil)
	rec := &recorder{}
	for _, name := range []string{"store", "server", "stats"} {
		h.OnShutdown(name, rec.hook(name))
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.WaitContext(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("WaitContext() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitContext() did not complete in time")
	}

	if got := rec.calls(); got != "stats,server,store" {
		t.Errorf("hooks called in order %s, want stats,server,store", got)
	}
	select {
	case <-h.Done():
	default:
		t.Error("Done channel should be closed after shutdown")
	}
}

func TestHandler_WaitContext_Signal(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(5*time.Second, slog.New(slog.NewTextHandler(&buf, nil)))
	rec := &recorder{}
	h.OnShutdown("server", rec.hook("server"))

	errCh := make(chan error, 1)
	go func() { errCh <- h.WaitContext(context.Background()) }()

	// Give WaitContext time to install the signal handler.
	time.Sleep(50 * time.Millisecond)
	syscall.Kill(syscall.Getpid(), syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("WaitContext() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitContext() did not complete in time")
	}
	if got := rec.calls(); got != "server" {
		t.Errorf("hooks called = %s", got)
	}
	if !strings.Contains(buf.String(), "signal=terminated") {
		t.Errorf("signal not logged: %s", buf.String())
	}
}

func TestHandler_HookErrors(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(5*time.Second, slog.New(slog.NewTextHandler(&buf, nil)))
	errClose := errors.New("close failed")
	errFlush := errors.New("flush failed")
	rec := &recorder{}

	h.OnShutdown("first", rec.hook("first"))
	h.OnClose("store", func() error { return errClose })
	h.OnShutdown("flush", func(context.Context) error { return errFlush })

	err := h.Shutdown()
	if !errors.Is(err, errClose) || !errors.Is(err, errFlush) {
		t.Errorf("Shutdown() = %v, want both hook errors", err)
	}
	if !strings.Contains(err.Error(), "store: close failed") {
		t.Errorf("error %q does not name the hook", err)
	}
	if rec.calls() != "first" {
		t.Error("a failing hook must not stop the rest")
	}
	if !strings.Contains(buf.String(), "hook=store") {
		t.Errorf("failure not logged: %s", buf.String())
	}
}

func TestHandler_ShutdownOnce(t *testing.T) {
	h := NewHandler(time.Second, nil)
	rec := &recorder{}
	h.OnShutdown("a", rec.hook("a"))
	h.OnClose("b", func() error { return errors.New("boom") })

	first := h.Shutdown()
	second := h.Shutdown()
	if rec.calls() != "a" {
		t.Errorf("hooks ran %q, want once", rec.calls())
	}
	if first == nil || first != second {
		t.Errorf("Shutdown() results differ: %v vs %v", first, second)
	}
}

func TestHandler_HookDeadline(t *testing.T) {
	h := NewHandler(20*time.Millisecond, nil)
	h.OnShutdown("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err := h.Shutdown(); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Shutdown() = %v, want DeadlineExceeded", err)
	}
}

func TestHandler_ConcurrentOnShutdown(t *testing.T) {
	h := NewHandler(5*time.Second, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.OnShutdown("noop", func(context.Context) error { return nil })
		}()
	}
	wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.hooks) != 10 {
		t.Errorf("expected 10 hooks, got %d", len(h.hooks))
	}
}
