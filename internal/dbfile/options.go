package dbfile

import (
	"log/slog"

	"github.com/yndnr/pagejournal/internal/telemetry/metric"
	"github.com/yndnr/pagejournal/internal/vfs"
)

// Option configures a database File.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	metrics    *metric.Metrics
	sectorSize int
	pageSize   int64
	readOnly   bool
}

func defaultOptions() options {
	return options{
		sectorSize: vfs.DefaultSectorSize,
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

// WithMetrics sets the metrics sink.
func WithMetrics(m *metric.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithSectorSize sets the reported sector size. Non-positive values are
// ignored.
func WithSectorSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.sectorSize = n
		}
	}
}

// WithPageSize sets the page size used when the store holds no pages and
// the first write is not a whole page.
func WithPageSize(n int64) Option {
	return func(o *options) {
		if ValidPageSize(n) {
			o.pageSize = n
		}
	}
}

// WithReadOnly rejects writes.
func WithReadOnly(ro bool) Option {
	return func(o *options) { o.readOnly = ro }
}
