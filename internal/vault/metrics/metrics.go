package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts confirmed proposal lifecycle transitions.
type Metrics struct {
	ProposalsCreated         prometheus.Counter
	ApprovalsRecorded        prometheus.Counter
	ProposalsExecuted        prometheus.Counter
	ProposalsRejected        prometheus.Counter
	ProposalsExpired         prometheus.Counter
	Reconciliations          prometheus.Counter
	ReconciliationsAbandoned prometheus.Counter
}

// New creates and registers all vault lifecycle metrics.
func New() *Metrics {
	return &Metrics{
		ProposalsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vaultdao_proposals_created_total",
			Help: "Proposals confirmed created on the ledger",
		}),
		ApprovalsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vaultdao_approvals_recorded_total",
			Help: "Signer approvals confirmed by the ledger",
		}),
		ProposalsExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vaultdao_proposals_executed_total",
			Help: "Proposals confirmed executed",
		}),
		ProposalsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vaultdao_proposals_rejected_total",
			Help: "Proposals confirmed rejected",
		}),
		ProposalsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vaultdao_proposals_expired_total",
			Help: "Pending proposals expired past their policy window",
		}),
		Reconciliations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vaultdao_reconciliations_resolved_total",
			Help: "Ambiguous submission outcomes resolved by status queries",
		}),
		ReconciliationsAbandoned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vaultdao_reconciliations_abandoned_total",
			Help: "Ambiguous submissions dropped from polling with the outcome still unknown",
		}),
	}
}
