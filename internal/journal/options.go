package journal

import (
	"log/slog"
	"strings"

	"github.com/yndnr/pagejournal/internal/telemetry/metric"
)

// DefaultSuffix is appended to a database name to form its journal name.
const DefaultSuffix = "-journal"

// Option configures a journal File.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *metric.Metrics
	suffix  string
}

func defaultOptions() options {
	return options{
		suffix: DefaultSuffix,
	}
}

// WithLogger sets the logger. Without it the logger carried by the
// context passed to Open is used.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics sink. Nil disables metrics.
func WithMetrics(m *metric.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithSuffix sets the journal name suffix.
func WithSuffix(suffix string) Option {
	return func(o *options) {
		if suffix != "" {
			o.suffix = suffix
		}
	}
}

// DatabaseName derives a database name from its journal name.
func DatabaseName(journalName, suffix string) string {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return strings.TrimSuffix(journalName, suffix)
}

// IsJournalName reports whether name carries the journal suffix.
func IsJournalName(name, suffix string) bool {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return strings.HasSuffix(name, suffix) && len(name) > len(suffix)
}
