package currency

import (
	"context"
	"log/slog"
	"time"
)

// StartPersistJob flushes the full ledger to storage on a fixed interval so a
// crash loses at most one window of accrual. On shutdown it performs a final
// flush before returning.
func StartPersistJob(ctx context.Context, ledger *Ledger, interval time.Duration, persist PersistFunc) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			if err := persist(flushCtx, ledger.Snapshot()); err != nil {
				slog.Error("final ledger flush failed", slog.Any("err", err), slog.String("component", "currency_persist"))
			}
			cancel()
			return
		case <-ticker.C:
			if err := persist(ctx, ledger.Snapshot()); err != nil {
				slog.Warn("ledger persist failed", slog.Any("err", err), slog.String("component", "currency_persist"))
			}
		}
	}
}
