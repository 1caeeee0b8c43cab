// Package shutdown runs named cleanup hooks when the process is asked to
// stop.
//
//	h := shutdown.NewHandler(10*time.Second, log)
//	h.OnShutdown("metrics server", srv.Shutdown)
//	err := h.WaitContext(ctx) // SIGINT, SIGTERM or ctx done
package shutdown
