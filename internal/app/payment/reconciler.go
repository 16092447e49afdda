package payment

import (
	"context"
	"log/slog"
	"time"
)

// ReconcilerConfig tunes the background sweep.
type ReconcilerConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
}

// RunReconciler sweeps payments stuck in PROCESSING every Interval until ctx
// is done. Sweep errors are logged and the loop carries on.
func (s *Service) RunReconciler(ctx context.Context, cfg ReconcilerConfig) error {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "payment reconciler started",
		"interval", cfg.Interval, "stale_after", cfg.StaleAfter, "batch_size", cfg.BatchSize)
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "payment reconciler stopped")
			return nil
		case <-ticker.C:
			n, err := s.ReconcileStale(ctx, cfg.StaleAfter, cfg.BatchSize)
			if err != nil {
				slog.ErrorContext(ctx, "reconcile sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.InfoContext(ctx, "reconcile sweep settled payments", "count", n)
			}
		}
	}
}
