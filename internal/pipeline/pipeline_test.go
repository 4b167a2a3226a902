package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"vaultdao/internal/domain"
	"vaultdao/internal/ledger"
	"vaultdao/internal/ledger/mocks"
	dErrors "vaultdao/pkg/domain-errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPipeline(t *testing.T) (*Pipeline, *mocks.MockRPC, *mocks.MockSigner) {
	t.Helper()
	ctrl := gomock.NewController(t)
	rpc := mocks.NewMockRPC(ctrl)
	signer := mocks.NewMockSigner(ctrl)
	return New(rpc, signer, "CVAULT", "Test Network", testLogger(), nil), rpc, signer
}

// =============================================================================
// Validation (nothing reaches the network)
// =============================================================================

func TestProposeValidation(t *testing.T) {
	pl, _, _ := newPipeline(t)
	ctx := context.Background()

	cases := []struct {
		name      string
		caller    string
		recipient string
		amount    decimal.Decimal
		memo      string
	}{
		{"empty caller", "", "GRECIPIENT", decimal.NewFromInt(10), ""},
		{"empty recipient", "GALICE", "", decimal.NewFromInt(10), ""},
		{"fractional amount", "GALICE", "GRECIPIENT", decimal.RequireFromString("10.5"), ""},
		{"negative amount", "GALICE", "GRECIPIENT", decimal.NewFromInt(-10), ""},
		{"oversized memo", "GALICE", "GRECIPIENT", decimal.NewFromInt(10), string(make([]byte, MemoLimit+1))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := pl.Propose(ctx, domain.Address(tc.caller), domain.Address(tc.recipient), "CTOKEN", tc.amount, tc.memo)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Equal(t, OutcomeFailed, res.Outcome)
		})
	}
}

// =============================================================================
// Stage failures
// =============================================================================

func TestStageFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("simulation rejection carries the simulation code", func(t *testing.T) {
		pl, rpc, _ := newPipeline(t)
		rpc.EXPECT().SimulateTransaction(gomock.Any(), gomock.Any()).
			Return(ledger.SimulationResult{}, errors.New("contract trapped"))

		res, err := pl.Approve(ctx, "GALICE", 7)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeSimulation))
		assert.Equal(t, OutcomeFailed, res.Outcome)
	})

	t.Run("signer decline carries the signing code and is retryable", func(t *testing.T) {
		pl, rpc, signer := newPipeline(t)
		rpc.EXPECT().SimulateTransaction(gomock.Any(), gomock.Any()).
			Return(ledger.SimulationResult{}, nil)
		signer.EXPECT().Sign(gomock.Any(), gomock.Any(), "Test Network").
			Return(nil, errors.New("user declined"))

		res, err := pl.Approve(ctx, "GALICE", 7)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeSigningRejected))
		assert.Equal(t, OutcomeFailed, res.Outcome)
		assert.Empty(t, res.Hash)
	})

	t.Run("ledger rejection at submit is a definitive failure", func(t *testing.T) {
		pl, rpc, signer := newPipeline(t)
		rpc.EXPECT().SimulateTransaction(gomock.Any(), gomock.Any()).
			Return(ledger.SimulationResult{}, nil)
		signer.EXPECT().Sign(gomock.Any(), gomock.Any(), gomock.Any()).
			Return([]byte("signed"), nil)
		rpc.EXPECT().SubmitTransaction(gomock.Any(), []byte("signed")).
			Return(ledger.SubmitResult{Hash: "h1", Status: ledger.SubmitFailed, ErrorMessage: "insufficient balance"}, nil)

		res, err := pl.Execute(ctx, "GALICE", 7)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeSubmission))
		assert.Equal(t, OutcomeFailed, res.Outcome)
	})
}

// =============================================================================
// Ambiguous outcomes
// =============================================================================

func TestUnknownOutcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("transport failure at submit is unknown, never failure", func(t *testing.T) {
		pl, rpc, signer := newPipeline(t)
		rpc.EXPECT().SimulateTransaction(gomock.Any(), gomock.Any()).
			Return(ledger.SimulationResult{}, nil)
		signer.EXPECT().Sign(gomock.Any(), gomock.Any(), gomock.Any()).
			Return([]byte("signed"), nil)
		rpc.EXPECT().SubmitTransaction(gomock.Any(), gomock.Any()).
			Return(ledger.SubmitResult{}, errors.New("connection reset"))

		res, err := pl.Execute(ctx, "GALICE", 7)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeSubmission))
		assert.Equal(t, OutcomeUnknown, res.Outcome)
		// The hash survives so the reconciler can track the submission.
		assert.NotEmpty(t, res.Hash)
	})

	t.Run("still-pending after the wait is unknown", func(t *testing.T) {
		pl, rpc, signer := newPipeline(t)
		rpc.EXPECT().SimulateTransaction(gomock.Any(), gomock.Any()).
			Return(ledger.SimulationResult{}, nil)
		signer.EXPECT().Sign(gomock.Any(), gomock.Any(), gomock.Any()).
			Return([]byte("signed"), nil)
		rpc.EXPECT().SubmitTransaction(gomock.Any(), gomock.Any()).
			Return(ledger.SubmitResult{Hash: "h1", Status: ledger.SubmitPending}, nil)

		res, err := pl.Execute(ctx, "GALICE", 7)
		require.Error(t, err)
		assert.Equal(t, OutcomeUnknown, res.Outcome)
		assert.Equal(t, "h1", res.Hash)
	})
}

// =============================================================================
// Confirmed outcome
// =============================================================================

func TestConfirmedPropose(t *testing.T) {
	pl, rpc, signer := newPipeline(t)
	ctx := context.Background()

	ret, _ := json.Marshal(uint64(42))
	rpc.EXPECT().SimulateTransaction(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, op ledger.UnsignedOperation) (ledger.SimulationResult, error) {
			assert.Equal(t, "propose_transfer", op.Function)
			assert.Equal(t, "CVAULT", op.Contract)
			return ledger.SimulationResult{}, nil
		})
	signer.EXPECT().Sign(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]byte("signed"), nil)
	rpc.EXPECT().SubmitTransaction(gomock.Any(), gomock.Any()).
		Return(ledger.SubmitResult{Hash: "h1", Status: ledger.SubmitSuccess, Ledger: 1042, ReturnValue: ret}, nil)

	res, err := pl.Propose(ctx, "GALICE", "GRECIPIENT", "CTOKEN", decimal.NewFromInt(1000), "ops")
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, uint64(1042), res.Ledger)

	id, err := ProposalIDFromResult(res)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
}

