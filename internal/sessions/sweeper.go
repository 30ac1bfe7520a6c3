package sessions

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultSweepInterval is how often expiry runs when no interval is configured.
const DefaultSweepInterval = 15 * time.Second

// Sweeper runs Store.SweepExpired on a fixed interval, independent of any connection,
// so sessions end even when nobody is watching them.
type Sweeper struct {
	store    *Store
	interval time.Duration
	logger   *zap.Logger
}

// NewSweeper creates a sweeper for store.
func NewSweeper(store *Store, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{store: store, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.logger.Info("session sweeper started", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("session sweeper stopping")
			return
		case <-ticker.C:
			res := w.store.SweepExpired()
			if res.Expired > 0 || res.Purged > 0 {
				w.logger.Info("swept sessions",
					zap.Int("expired", res.Expired),
					zap.Int("purged", res.Purged),
					zap.Int("remaining", w.store.Count()),
				)
			}
		}
	}
}
