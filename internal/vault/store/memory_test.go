package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultdao/internal/domain"
	"vaultdao/pkg/platform/sentinel"
)

func proposal(id uint64) domain.Proposal {
	return domain.Proposal{
		ID:        id,
		Proposer:  "GALICE",
		Recipient: "GRECIPIENT",
		Token:     "CTOKEN",
		Amount:    decimal.NewFromInt(1000),
		Status:    domain.StatusPending,
		Approvals: []domain.Address{"GALICE"},
		Threshold: 3,
		CreatedAt: time.Now().UTC(),
	}
}

func activityRecord(eventID string, ledgerSeq uint64, index uint32) domain.VaultActivity {
	return domain.VaultActivity{
		ID:      eventID,
		EventID: eventID,
		Type:    domain.TypeProposalCreated,
		Ledger:  ledgerSeq,
		Index:   index,
	}
}

func TestInMemoryProposals(t *testing.T) {
	ctx := context.Background()

	t.Run("save then find", func(t *testing.T) {
		st := NewInMemoryStore()
		require.NoError(t, st.Save(ctx, proposal(1)))

		got, err := st.FindByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), got.ID)
	})

	t.Run("missing id yields the not-found sentinel", func(t *testing.T) {
		st := NewInMemoryStore()
		_, err := st.FindByID(ctx, 42)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("list preserves creation order across overwrites", func(t *testing.T) {
		st := NewInMemoryStore()
		require.NoError(t, st.Save(ctx, proposal(2)))
		require.NoError(t, st.Save(ctx, proposal(1)))

		updated := proposal(2)
		updated.Status = domain.StatusApproved
		require.NoError(t, st.Save(ctx, updated))

		got, err := st.List(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, uint64(2), got[0].ID)
		assert.Equal(t, domain.StatusApproved, got[0].Status)
		assert.Equal(t, uint64(1), got[1].ID)
	})

	t.Run("readers never alias the stored slices", func(t *testing.T) {
		st := NewInMemoryStore()
		require.NoError(t, st.Save(ctx, proposal(1)))

		got, err := st.FindByID(ctx, 1)
		require.NoError(t, err)
		got.Approvals[0] = "GMALLORY"

		again, err := st.FindByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, domain.Address("GALICE"), again.Approvals[0])
	})

	t.Run("set reconciling flags and clears", func(t *testing.T) {
		st := NewInMemoryStore()
		require.NoError(t, st.Save(ctx, proposal(1)))

		require.NoError(t, st.SetReconciling(ctx, 1, true))
		got, err := st.FindByID(ctx, 1)
		require.NoError(t, err)
		assert.True(t, got.Reconciling)

		require.NoError(t, st.SetReconciling(ctx, 1, false))
		got, err = st.FindByID(ctx, 1)
		require.NoError(t, err)
		assert.False(t, got.Reconciling)

		assert.ErrorIs(t, st.SetReconciling(ctx, 42, true), sentinel.ErrNotFound)
	})
}

func TestInMemoryActivity(t *testing.T) {
	ctx := context.Background()

	t.Run("append is idempotent by event id", func(t *testing.T) {
		st := NewInMemoryStore()
		require.NoError(t, st.Append(ctx, activityRecord("e1", 100, 0)))
		require.NoError(t, st.Append(ctx, activityRecord("e1", 100, 0)))

		got, err := st.ListActivity(ctx)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("records come back in ledger then index order", func(t *testing.T) {
		st := NewInMemoryStore()
		require.NoError(t, st.Append(ctx, activityRecord("e3", 101, 0)))
		require.NoError(t, st.Append(ctx, activityRecord("e1", 100, 0)))
		require.NoError(t, st.Append(ctx, activityRecord("e2", 100, 1)))

		got, err := st.ListActivity(ctx)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "e1", got[0].EventID)
		assert.Equal(t, "e2", got[1].EventID)
		assert.Equal(t, "e3", got[2].EventID)
	})
}

func TestInMemorySnapshot(t *testing.T) {
	ctx := context.Background()
	st := NewInMemoryStore()

	require.NoError(t, st.Save(ctx, proposal(1)))
	require.NoError(t, st.Append(ctx, activityRecord("e1", 100, 0)))

	snap, err := st.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Proposals, 1)
	assert.Len(t, snap.Activity, 1)
	assert.False(t, snap.TakenAt.IsZero())

	// Later writes do not leak into the taken snapshot.
	require.NoError(t, st.Save(ctx, proposal(2)))
	assert.Len(t, snap.Proposals, 1)
}
