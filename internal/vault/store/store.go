// Package store owns the vault's proposal and activity collections. Stores
// are interface-driven so the in-memory and postgres implementations swap
// without rewiring business code; the vault Service is the sole writer.
package store

import (
	"context"
	"time"

	"vaultdao/internal/domain"
)

// ProposalStore persists proposals. Terminal proposals are never deleted.
type ProposalStore interface {
	Save(ctx context.Context, p domain.Proposal) error
	FindByID(ctx context.Context, id uint64) (domain.Proposal, error)
	// List returns all proposals in creation order. Callers receive copies.
	List(ctx context.Context) ([]domain.Proposal, error)
	// SetReconciling flags or clears the pending-reconciliation marker.
	SetReconciling(ctx context.Context, id uint64, reconciling bool) error
}

// ActivityStore persists the append-only activity log. Append is idempotent
// by EventID since the feed may redeliver on cursor retry.
type ActivityStore interface {
	Append(ctx context.Context, a domain.VaultActivity) error
	// ListActivity returns all records in (ledger, index) order. Callers
	// receive copies.
	ListActivity(ctx context.Context) ([]domain.VaultActivity, error)
}

// Snapshot is one consistent read of both collections: neither slice reflects
// a different point in time than the other.
type Snapshot struct {
	Proposals []domain.Proposal
	Activity  []domain.VaultActivity
	TakenAt   time.Time
}

// SnapshotStore takes a single consistent read across both collections for
// the export assembler.
type SnapshotStore interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Store is the full coordinating store contract.
type Store interface {
	ProposalStore
	ActivityStore
	SnapshotStore
}
