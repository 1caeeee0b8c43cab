// Package logger configures structured logging.
//
// It builds log/slog loggers with a JSON or text handler and a process-wide
// level that can be changed at runtime. Components accept a *slog.Logger
// and fall back to slog.Default() when given nil; Component tags a logger
// with the emitting component's name.
package logger
