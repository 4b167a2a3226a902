package vault

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"vaultdao/internal/domain"
	"vaultdao/internal/pipeline"
	"vaultdao/internal/vault/store"
	dErrors "vaultdao/pkg/domain-errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// Vault Service Test Suite
// =============================================================================
// Justification for unit tests: the service owns per-proposal serialization,
// the idempotent-execute short cut, and the ambiguous-outcome bookkeeping,
// none of which can be exercised precisely against a live network.

type stubPipeline struct {
	results map[string]pipeline.Result
	errs    map[string]error
	calls   map[string]int
	nextID  uint64
}

func newStubPipeline() *stubPipeline {
	return &stubPipeline{
		results: make(map[string]pipeline.Result),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
		nextID:  1,
	}
}

func (s *stubPipeline) run(action string) (pipeline.Result, error) {
	s.calls[action]++
	if res, ok := s.results[action]; ok {
		return res, s.errs[action]
	}
	return pipeline.Result{Outcome: pipeline.OutcomeConfirmed, Hash: action + "-hash", Ledger: 1000}, nil
}

func (s *stubPipeline) Propose(context.Context, domain.Address, domain.Address, domain.Address, decimal.Decimal, string) (pipeline.Result, error) {
	if _, ok := s.results["propose"]; !ok {
		ret, _ := json.Marshal(s.nextID)
		s.nextID++
		s.calls["propose"]++
		return pipeline.Result{Outcome: pipeline.OutcomeConfirmed, Hash: "propose-hash", Ledger: 1000, ReturnValue: ret}, nil
	}
	return s.run("propose")
}

func (s *stubPipeline) Approve(context.Context, domain.Address, uint64) (pipeline.Result, error) {
	return s.run("approve")
}

func (s *stubPipeline) Reject(context.Context, domain.Address, uint64) (pipeline.Result, error) {
	return s.run("reject")
}

func (s *stubPipeline) Execute(context.Context, domain.Address, uint64) (pipeline.Result, error) {
	return s.run("execute")
}

type stubClock struct {
	height uint64
	err    error
}

func (c *stubClock) CurrentHeight(context.Context) (uint64, error) { return c.height, c.err }
func (c *stubClock) SecondsPerLedger() int                         { return 5 }

type ServiceSuite struct {
	suite.Suite
	store   *store.InMemoryStore
	pipe    *stubPipeline
	clock   *stubClock
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemoryStore()
	s.pipe = newStubPipeline()
	s.clock = &stubClock{height: 1000}

	cfg := domain.VaultConfig{
		Signers:           []domain.Address{"GALICE", "GBOB", "GCAROL"},
		Admins:            []domain.Address{"GADMIN"},
		Threshold:         3,
		TimelockThreshold: decimal.NewFromInt(10000),
		TimelockDelay:     500,
		ExpiryDelta:       2000,
		SecondsPerLedger:  5,
	}

	var err error
	s.service, err = NewService(s.store, s.pipe, s.clock, cfg, testLogger(), nil, nil)
	s.Require().NoError(err)
}

func (s *ServiceSuite) propose(amount int64) domain.Proposal {
	p, err := s.service.Propose(s.ctx, "GALICE", "GRECIPIENT", "CTOKEN", decimal.NewFromInt(amount), "ops budget")
	s.Require().NoError(err)
	return p
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *ServiceSuite) TestNewService() {
	s.Run("nil store returns error", func() {
		_, err := NewService(nil, s.pipe, s.clock, s.service.Config(), testLogger(), nil, nil)
		s.Error(err)
	})

	s.Run("zero threshold returns error", func() {
		_, err := NewService(s.store, s.pipe, s.clock, domain.VaultConfig{}, testLogger(), nil, nil)
		s.Error(err)
	})
}

// =============================================================================
// Propose Tests
// =============================================================================

func (s *ServiceSuite) TestPropose() {
	s.Run("proposer counts as the first approval", func() {
		p := s.propose(1000)
		s.Equal(domain.StatusPending, p.Status)
		s.Equal(uint32(1), p.ApprovalCount())
		s.True(p.HasApproved("GALICE"))
	})

	s.Run("timelock is fixed at creation for large amounts", func() {
		p := s.propose(20000)
		s.Equal(uint64(1500), p.UnlockLedger)
		s.Equal(uint64(3000), p.ExpiresLedger)
	})

	s.Run("small amounts get no timelock", func() {
		p := s.propose(1000)
		s.Zero(p.UnlockLedger)
	})

	s.Run("non-signer cannot propose", func() {
		_, err := s.service.Propose(s.ctx, "GSTRANGER", "GRECIPIENT", "CTOKEN", decimal.NewFromInt(10), "")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Zero(s.pipe.calls["propose"])
	})
}

// =============================================================================
// Approve Tests
// =============================================================================

func (s *ServiceSuite) TestApprove() {
	s.Run("third approval crosses the threshold", func() {
		p := s.propose(1000)

		p, err := s.service.Approve(s.ctx, "GBOB", p.ID)
		s.Require().NoError(err)
		s.Equal(domain.StatusPending, p.Status)
		s.Equal(uint32(2), p.ApprovalCount())

		p, err = s.service.Approve(s.ctx, "GCAROL", p.ID)
		s.Require().NoError(err)
		s.Equal(domain.StatusApproved, p.Status)
		s.Equal(uint32(3), p.ApprovalCount())
	})

	s.Run("duplicate approver is rejected before any network call", func() {
		p := s.propose(1000)
		calls := s.pipe.calls["approve"]

		_, err := s.service.Approve(s.ctx, "GALICE", p.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeStateConflict))
		s.Equal(calls, s.pipe.calls["approve"])

		stored, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(uint32(1), stored.ApprovalCount())
	})

	s.Run("missing proposal returns not found", func() {
		_, err := s.service.Approve(s.ctx, "GBOB", 999)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Execute Tests
// =============================================================================

func (s *ServiceSuite) approved() domain.Proposal {
	p := s.propose(1000)
	var err error
	_, err = s.service.Approve(s.ctx, "GBOB", p.ID)
	s.Require().NoError(err)
	p, err = s.service.Approve(s.ctx, "GCAROL", p.ID)
	s.Require().NoError(err)
	return p
}

func (s *ServiceSuite) TestExecute() {
	s.Run("executes an approved proposal", func() {
		p := s.approved()

		out, err := s.service.Execute(s.ctx, "GALICE", p.ID)
		s.Require().NoError(err)
		s.Equal(domain.StatusExecuted, out.Status)
		s.NotEmpty(out.ExecutedTxHash)
	})

	s.Run("second execute is a no-op returning the original, no resubmission", func() {
		p := s.approved()

		first, err := s.service.Execute(s.ctx, "GALICE", p.ID)
		s.Require().NoError(err)
		calls := s.pipe.calls["execute"]

		second, err := s.service.Execute(s.ctx, "GBOB", p.ID)
		s.Require().NoError(err)
		s.Equal(first.ExecutedTxHash, second.ExecutedTxHash)
		s.Equal(calls, s.pipe.calls["execute"])
	})

	s.Run("pending proposal cannot execute", func() {
		p := s.propose(1000)

		_, err := s.service.Execute(s.ctx, "GALICE", p.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeStateConflict))
	})

	s.Run("timelocked proposal cannot execute before unlock", func() {
		p := s.propose(20000)
		_, err := s.service.Approve(s.ctx, "GBOB", p.ID)
		s.Require().NoError(err)
		_, err = s.service.Approve(s.ctx, "GCAROL", p.ID)
		s.Require().NoError(err)

		s.clock.height = 1200
		_, err = s.service.Execute(s.ctx, "GALICE", p.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeStateConflict))

		s.clock.height = 1500
		out, err := s.service.Execute(s.ctx, "GALICE", p.ID)
		s.Require().NoError(err)
		s.Equal(domain.StatusExecuted, out.Status)
	})

	s.Run("daily velocity limit blocks further executions in the window", func() {
		s.store = store.NewInMemoryStore()
		cfg := s.service.Config()
		cfg.DailyLimit = decimal.NewFromInt(1500)
		svc, err := NewService(s.store, s.pipe, s.clock, cfg, testLogger(), nil, nil)
		s.Require().NoError(err)
		s.service = svc

		first := s.approved()
		_, err = s.service.Execute(s.ctx, "GALICE", first.ID)
		s.Require().NoError(err)
		calls := s.pipe.calls["execute"]

		second := s.approved()
		_, err = s.service.Execute(s.ctx, "GALICE", second.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeStateConflict))

		stored, err := s.store.FindByID(s.ctx, second.ID)
		s.Require().NoError(err)
		s.Equal(domain.StatusApproved, stored.Status)
		s.Equal(calls, s.pipe.calls["execute"], "the blocked execution must not reach the ledger")
	})
}

// =============================================================================
// Reject Tests
// =============================================================================

func (s *ServiceSuite) TestReject() {
	s.Run("proposer rejects while pending", func() {
		p := s.propose(1000)

		out, err := s.service.Reject(s.ctx, "GALICE", p.ID, "superseded")
		s.Require().NoError(err)
		s.Equal(domain.StatusRejected, out.Status)
		s.Equal("superseded", out.RejectReason)
	})

	s.Run("admin overrides an approved proposal", func() {
		p := s.approved()

		out, err := s.service.Reject(s.ctx, "GADMIN", p.ID, "policy")
		s.Require().NoError(err)
		s.Equal(domain.StatusRejected, out.Status)
	})

	s.Run("signer cannot override an approved proposal", func() {
		p := s.approved()

		_, err := s.service.Reject(s.ctx, "GBOB", p.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Zero(s.pipe.calls["reject"])
	})
}

// =============================================================================
// Ambiguous Outcome Tests
// =============================================================================

func (s *ServiceSuite) TestUnknownOutcome() {
	s.Run("unknown execute outcome marks reconciling and tracks the hash", func() {
		p := s.approved()
		s.pipe.results["execute"] = pipeline.Result{Outcome: pipeline.OutcomeUnknown, Hash: "ambiguous-hash"}
		s.pipe.errs["execute"] = dErrors.New(dErrors.CodeSubmission, "submission timed out")

		_, err := s.service.Execute(s.ctx, "GALICE", p.ID)
		s.Error(err)

		stored, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.True(stored.Reconciling)
		s.NotEqual(domain.StatusExecuted, stored.Status)

		pending := s.service.PendingSubmissions()
		s.Require().Len(pending, 1)
		s.Equal("ambiguous-hash", pending[0].TxHash)
		s.Equal("execute", pending[0].Action)
	})

	s.Run("reconciled success resolves to executed without resubmission", func() {
		p := s.approved()
		s.pipe.results["execute"] = pipeline.Result{Outcome: pipeline.OutcomeUnknown, Hash: "ambiguous-hash"}
		s.pipe.errs["execute"] = dErrors.New(dErrors.CodeSubmission, "submission timed out")

		_, err := s.service.Execute(s.ctx, "GALICE", p.ID)
		s.Error(err)
		calls := s.pipe.calls["execute"]

		ps := s.service.PendingSubmissions()[0]
		s.Require().NoError(s.service.Resolve(s.ctx, ps, true, 1042, nil))

		stored, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(domain.StatusExecuted, stored.Status)
		s.Equal("ambiguous-hash", stored.ExecutedTxHash)
		s.False(stored.Reconciling)
		s.Empty(s.service.PendingSubmissions())
		s.Equal(calls, s.pipe.calls["execute"])
	})

	s.Run("reconciled failure clears the marker and leaves the proposal", func() {
		p := s.approved()
		s.pipe.results["execute"] = pipeline.Result{Outcome: pipeline.OutcomeUnknown, Hash: "ambiguous-hash"}
		s.pipe.errs["execute"] = dErrors.New(dErrors.CodeSubmission, "submission timed out")

		_, err := s.service.Execute(s.ctx, "GALICE", p.ID)
		s.Error(err)

		ps := s.service.PendingSubmissions()[0]
		s.Require().NoError(s.service.Resolve(s.ctx, ps, false, 0, nil))

		stored, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(domain.StatusApproved, stored.Status)
		s.False(stored.Reconciling)
	})

	s.Run("unknown propose outcome tracks the payload for reconciliation", func() {
		s.pipe.results["propose"] = pipeline.Result{Outcome: pipeline.OutcomeUnknown, Hash: "propose-ambiguous"}
		s.pipe.errs["propose"] = dErrors.New(dErrors.CodeSubmission, "submission timed out")

		_, err := s.service.Propose(s.ctx, "GALICE", "GRECIPIENT", "CTOKEN", decimal.NewFromInt(1000), "ops budget")
		s.Error(err)

		pending := s.service.PendingSubmissions()
		s.Require().Len(pending, 1)
		s.Equal("propose", pending[0].Action)
		s.Equal("propose-ambiguous", pending[0].TxHash)
		s.Equal(domain.Address("GRECIPIENT"), pending[0].Recipient)
		s.True(decimal.NewFromInt(1000).Equal(pending[0].Amount))
	})

	s.Run("reconciled propose materializes the proposal with the ledger id", func() {
		s.pipe.results["propose"] = pipeline.Result{Outcome: pipeline.OutcomeUnknown, Hash: "propose-ambiguous"}
		s.pipe.errs["propose"] = dErrors.New(dErrors.CodeSubmission, "submission timed out")

		_, err := s.service.Propose(s.ctx, "GALICE", "GRECIPIENT", "CTOKEN", decimal.NewFromInt(1000), "ops budget")
		s.Error(err)

		ps := s.service.PendingSubmissions()[0]
		ret, _ := json.Marshal(uint64(42))
		s.Require().NoError(s.service.Resolve(s.ctx, ps, true, 1042, ret))

		stored, err := s.store.FindByID(s.ctx, 42)
		s.Require().NoError(err)
		s.Equal(domain.Address("GALICE"), stored.Proposer)
		s.Equal(uint64(1042), stored.CreatedLedger)
		s.Equal([]domain.Address{"GALICE"}, stored.Approvals)
		s.Empty(s.service.PendingSubmissions())
	})

	s.Run("failed propose reconciliation leaves no record", func() {
		s.pipe.results["propose"] = pipeline.Result{Outcome: pipeline.OutcomeUnknown, Hash: "propose-ambiguous"}
		s.pipe.errs["propose"] = dErrors.New(dErrors.CodeSubmission, "submission timed out")

		_, err := s.service.Propose(s.ctx, "GALICE", "GRECIPIENT", "CTOKEN", decimal.NewFromInt(1000), "ops budget")
		s.Error(err)

		ps := s.service.PendingSubmissions()[0]
		s.Require().NoError(s.service.Resolve(s.ctx, ps, false, 0, nil))

		_, err = s.store.FindByID(s.ctx, 42)
		s.Error(err)
		s.Empty(s.service.PendingSubmissions())
	})

	s.Run("abandon drops the entry but keeps the reconciling marker", func() {
		p := s.approved()
		s.pipe.results["execute"] = pipeline.Result{Outcome: pipeline.OutcomeUnknown, Hash: "ambiguous-hash"}
		s.pipe.errs["execute"] = dErrors.New(dErrors.CodeSubmission, "submission timed out")

		_, err := s.service.Execute(s.ctx, "GALICE", p.ID)
		s.Error(err)

		ps := s.service.PendingSubmissions()[0]
		s.service.Abandon(s.ctx, ps)

		s.Empty(s.service.PendingSubmissions())
		stored, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.True(stored.Reconciling, "an abandoned outcome is still unknown")
	})
}

// =============================================================================
// Expiry Tests
// =============================================================================

func (s *ServiceSuite) TestExpireSweep() {
	s.Run("expires pending proposals past their window", func() {
		p := s.propose(1000)
		s.Equal(uint64(3000), p.ExpiresLedger)

		s.clock.height = 3000
		n, err := s.service.ExpireSweep(s.ctx)
		s.Require().NoError(err)
		s.Zero(n)

		s.clock.height = 3001
		n, err = s.service.ExpireSweep(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, n)

		stored, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(domain.StatusExpired, stored.Status)
	})

	s.Run("approved proposals survive the sweep", func() {
		p := s.approved()

		s.clock.height = 1 << 40
		_, err := s.service.ExpireSweep(s.ctx)
		s.Require().NoError(err)

		stored, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(domain.StatusApproved, stored.Status)
	})
}
