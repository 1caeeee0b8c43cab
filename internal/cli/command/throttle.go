package command

import (
	"context"
	"io"

	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"
)

func maxRateFlag() cli.Flag {
	return &cli.Int64Flag{
		Name:  "max-rate",
		Usage: "Limit page transfer to this many bytes per second (0 disables)",
	}
}

// newByteLimiter returns nil when bytesPerSec is not positive. The burst
// is at least minBurst so a single page never exceeds it.
func newByteLimiter(bytesPerSec int64, minBurst int) *rate.Limiter {
	if bytesPerSec <= 0 {
		return nil
	}
	burst := max(int(min(bytesPerSec, 1<<30)), minBurst)
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

// throttledWriter paces writes through a byte limiter.
type throttledWriter struct {
	ctx     context.Context
	w       io.Writer
	limiter *rate.Limiter
}

func (t throttledWriter) Write(p []byte) (int, error) {
	if t.limiter == nil {
		return t.w.Write(p)
	}
	written := 0
	for written < len(p) {
		chunk := min(len(p)-written, t.limiter.Burst())
		if err := t.limiter.WaitN(t.ctx, chunk); err != nil {
			return written, err
		}
		n, err := t.w.Write(p[written : written+chunk])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
