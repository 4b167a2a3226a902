package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultdao/internal/domain"
	"vaultdao/internal/vault/store"
	dErrors "vaultdao/pkg/domain-errors"
)

type fixedSnapshotter struct {
	snap store.Snapshot
	err  error
}

func (f fixedSnapshotter) Snapshot(context.Context) (store.Snapshot, error) {
	return f.snap, f.err
}

func sampleSnapshot() store.Snapshot {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return store.Snapshot{
		Proposals: []domain.Proposal{
			{
				ID: 1, Proposer: "GALICE", Recipient: "GDEV", Token: "CTOKEN",
				Amount: decimal.NewFromInt(500), Memo: "dev grant",
				Status: domain.StatusPending, Approvals: []domain.Address{"GALICE"},
				Threshold: 3, CreatedAt: created,
			},
			{
				ID: 2, Proposer: "GBOB", Recipient: "GOPS", Token: "CTOKEN",
				Amount: decimal.NewFromInt(9000), Memo: "ops budget",
				Status: domain.StatusExecuted, Approvals: []domain.Address{"GALICE", "GBOB", "GCAROL"},
				Threshold: 3, CreatedAt: created,
				ExecutedTxHash: "deadbeef", LastObservedLedger: 1042,
			},
		},
		Activity: []domain.VaultActivity{
			{
				EventID: "e1", Type: domain.TypeProposalCreated,
				Timestamp: created, Ledger: 1000, Actor: "GALICE",
				Details: domain.ProposalCreatedDetails{ProposalID: 1, Proposer: "GALICE", Recipient: "GDEV", Amount: decimal.NewFromInt(500)},
			},
		},
		TakenAt: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}
}

func TestAssemble(t *testing.T) {
	ctx := context.Background()
	asm := NewAssembler(fixedSnapshotter{snap: sampleSnapshot()})

	t.Run("all three data sets derive from one snapshot", func(t *testing.T) {
		files, err := asm.Assemble(ctx, nil, FormatCSV)
		require.NoError(t, err)
		require.Len(t, files, 3)

		byType := make(map[DataType]File, 3)
		for _, f := range files {
			byType[f.DataType] = f
			assert.Equal(t, "text/csv", f.MimeType)
			assert.Contains(t, f.Filename, "2026-03-02")
		}

		proposals := parseCSV(t, byType[DataProposals].Data)
		require.Len(t, proposals, 3) // header + 2 rows
		assert.Equal(t, "executed", proposals[2][1])

		// The executed proposal appears in both its own set and transactions.
		transactions := parseCSV(t, byType[DataTransactions].Data)
		require.Len(t, transactions, 2)
		assert.Equal(t, "deadbeef", transactions[1][1])

		activity := parseCSV(t, byType[DataActivity].Data)
		require.Len(t, activity, 2)
		assert.Equal(t, "e1", activity[1][0])
	})

	t.Run("json format round-trips", func(t *testing.T) {
		files, err := asm.Assemble(ctx, []DataType{DataProposals}, FormatJSON)
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "application/json", files[0].MimeType)

		var proposals []domain.Proposal
		require.NoError(t, json.Unmarshal(files[0].Data, &proposals))
		require.Len(t, proposals, 2)
		assert.True(t, proposals[1].Amount.Equal(decimal.NewFromInt(9000)))
	})

	t.Run("transactions hold only executed proposals", func(t *testing.T) {
		rows := Transactions(sampleSnapshot().Proposals)
		require.Len(t, rows, 1)
		assert.Equal(t, uint64(2), rows[0].ProposalID)
		assert.Equal(t, uint64(1042), rows[0].Ledger)
	})

	t.Run("unsupported format is a validation error", func(t *testing.T) {
		_, err := asm.Assemble(ctx, nil, Format("xml"))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("unsupported data type is a validation error", func(t *testing.T) {
		_, err := asm.Assemble(ctx, []DataType{DataType("balances")}, FormatCSV)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("snapshot failure surfaces as internal", func(t *testing.T) {
		broken := NewAssembler(fixedSnapshotter{err: context.DeadlineExceeded})
		_, err := broken.Assemble(ctx, nil, FormatCSV)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func parseCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	return rows
}
