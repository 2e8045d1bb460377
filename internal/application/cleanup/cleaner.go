package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/shutterbook/studio-api/internal/observability/metrics"
)

type otpStore interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Cleaner removes one-time codes past their expiry. Redemption already rejects
// expired codes, so sweeping only bounds storage.
type Cleaner struct {
	store otpStore
	now   func() time.Time
}

func NewCleaner(store otpStore, now func() time.Time) *Cleaner {
	if now == nil {
		now = time.Now
	}
	return &Cleaner{store: store, now: now}
}

// SweepExpired deletes every code with an expiry before now and returns how many went.
func (c *Cleaner) SweepExpired(ctx context.Context) (int64, error) {
	n, err := c.store.DeleteExpired(ctx, c.now())
	if err != nil {
		metrics.OTPSweepErrorsTotal.Inc()
		return n, err
	}
	metrics.OTPSweptTotal.Add(float64(n))
	return n, nil
}

// Run sweeps once per interval until ctx is done. A failed sweep is logged and
// left for the next tick.
func (c *Cleaner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.SweepExpired(ctx)
			if err != nil {
				slog.Warn("expired code sweep failed", "err", err)
				continue
			}
			if n > 0 {
				slog.Info("expired codes swept", "count", n)
			}
		}
	}
}
