package command

import (
	"context"
	"testing"
	"time"
)

func TestServeStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := runAppContext(ctx, t, args(storeArgs(t),
			"serve", "--metrics-addr", "127.0.0.1:0", "--stats-interval", "10ms", "--shutdown-timeout", "1s")...)
		done <- err
	}()

	time.Sleep(100 * time.Millisecond)
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

func TestServeBadAddress(t *testing.T) {
	_, err := runApp(t, "--engine", "memory", "serve", "--metrics-addr", "not-an-address")
	if err == nil {
		t.Fatal("expected listen error")
	}
}
