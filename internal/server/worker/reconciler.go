// Package worker runs background jobs of the server.
package worker

import (
	"context"
	"time"

	"github.com/dmitrijs2005/walletkeeper/internal/logging"
)

// Syncer reconciles every custodial wallet and reports how many succeeded.
type Syncer interface {
	ReconcileAll(ctx context.Context) (int, error)
}

// ReconcileWorker periodically pulls chain history for all custodial
// wallets.
type ReconcileWorker struct {
	syncer   Syncer
	interval time.Duration
	logger   logging.Logger
}

func NewReconcileWorker(s Syncer, interval time.Duration, l logging.Logger) *ReconcileWorker {
	return &ReconcileWorker{syncer: s, interval: interval, logger: l.With("module", "reconcile_worker")}
}

// Start blocks until ctx is done. A non-positive interval disables the
// worker.
func (w *ReconcileWorker) Start(ctx context.Context) {
	if w.interval <= 0 {
		w.logger.Info(ctx, "Reconcile worker disabled")
		return
	}

	w.logger.Info(ctx, "Starting reconcile worker", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.runOnce(ctx)
		case <-ctx.Done():
			w.logger.Info(ctx, "Stopping reconcile worker")
			return
		}
	}
}

func (w *ReconcileWorker) runOnce(ctx context.Context) {
	start := time.Now()
	n, err := w.syncer.ReconcileAll(ctx)
	if err != nil {
		w.logger.Error(ctx, "reconcile pass failed", "error", err, "done", n)
		return
	}
	w.logger.Debug(ctx, "reconcile pass finished", "wallets", n, "duration", time.Since(start))
}
