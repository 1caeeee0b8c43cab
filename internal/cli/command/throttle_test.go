package command

import (
	"bytes"
	"context"
	"testing"
)

func TestNewByteLimiter(t *testing.T) {
	if l := newByteLimiter(0, 4096); l != nil {
		t.Error("zero rate should disable the limiter")
	}
	if l := newByteLimiter(100, 4096); l == nil || l.Burst() != 4096 {
		t.Errorf("burst should be raised to one page, got %v", l)
	}
	if l := newByteLimiter(1<<20, 4096); l.Burst() != 1<<20 {
		t.Errorf("burst = %d, want %d", l.Burst(), 1<<20)
	}
}

func TestThrottledWriter(t *testing.T) {
	data := bytes.Repeat([]byte("page"), 5000)

	t.Run("passes bytes through", func(t *testing.T) {
		var buf bytes.Buffer
		w := throttledWriter{ctx: context.Background(), w: &buf, limiter: newByteLimiter(1<<30, 1024)}
		n, err := w.Write(data)
		if err != nil || n != len(data) {
			t.Fatalf("Write() = %d, %v", n, err)
		}
		if !bytes.Equal(buf.Bytes(), data) {
			t.Error("content changed")
		}
	})

	t.Run("unlimited", func(t *testing.T) {
		var buf bytes.Buffer
		w := throttledWriter{ctx: context.Background(), w: &buf}
		if n, err := w.Write(data); err != nil || n != len(data) {
			t.Fatalf("Write() = %d, %v", n, err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		var buf bytes.Buffer
		w := throttledWriter{ctx: ctx, w: &buf, limiter: newByteLimiter(1, 1024)}
		if _, err := w.Write(data); err == nil {
			t.Fatal("expected context error")
		}
	})
}

func TestPageImportWithMaxRate(t *testing.T) {
	base := storeArgs(t)
	src, _ := createImage(t, 1024, 5)
	if _, err := runApp(t, args(base, "page", "import", "--max-rate", "1073741824", "--db", "main.db", src)...); err != nil {
		t.Fatalf("import: %v", err)
	}
}
