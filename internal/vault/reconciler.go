package vault

import (
	"context"
	"log/slog"
	"time"

	"vaultdao/internal/ledger"
)

const (
	defaultReconcileInterval = 15 * time.Second
	// reconcileGiveUp bounds how long an ambiguous submission is polled before
	// it is abandoned and left for the activity feed to settle.
	reconcileGiveUp = 30 * time.Minute
)

// Reconciler resolves ambiguous submission outcomes. When a submit ends in an
// unknown state the service records the transaction hash; the reconciler polls
// the network's status query until it answers, then commits or discards the
// pending transition through the service. It never resubmits.
type Reconciler struct {
	service  *Service
	rpc      ledger.RPC
	logger   *slog.Logger
	interval time.Duration
}

func NewReconciler(service *Service, rpc ledger.RPC, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		service:  service,
		rpc:      rpc,
		logger:   logger,
		interval: defaultReconcileInterval,
	}
}

// Run polls until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", r.interval.String())
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reconciler) sweep(ctx context.Context) {
	for _, ps := range r.service.PendingSubmissions() {
		if time.Since(ps.SubmitAt) > reconcileGiveUp {
			// The outcome is still unknown; the service keeps the marker set
			// and only stops polling.
			r.service.Abandon(ctx, ps)
			continue
		}

		status, err := r.rpc.TransactionStatus(ctx, ps.TxHash)
		if err != nil {
			r.logger.WarnContext(ctx, "status query failed, will retry",
				"tx_hash", ps.TxHash, "error", err)
			continue
		}
		if !status.Found || status.Status == ledger.SubmitPending {
			continue
		}

		success := status.Status == ledger.SubmitSuccess
		if err := r.service.Resolve(ctx, ps, success, status.Ledger, status.ReturnValue); err != nil {
			r.logger.ErrorContext(ctx, "failed to resolve submission",
				"tx_hash", ps.TxHash, "error", err)
		}
	}
}
