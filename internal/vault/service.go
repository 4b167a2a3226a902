package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"vaultdao/internal/domain"
	"vaultdao/internal/pipeline"
	"vaultdao/internal/vault/metrics"
	"vaultdao/internal/vault/store"
	dErrors "vaultdao/pkg/domain-errors"
	"vaultdao/pkg/platform/sentinel"
)

// Runner is the slice of the transaction pipeline the service drives.
type Runner interface {
	Propose(ctx context.Context, caller, recipient, token domain.Address, amount decimal.Decimal, memo string) (pipeline.Result, error)
	Approve(ctx context.Context, caller domain.Address, proposalID uint64) (pipeline.Result, error)
	Reject(ctx context.Context, caller domain.Address, proposalID uint64) (pipeline.Result, error)
	Execute(ctx context.Context, caller domain.Address, proposalID uint64) (pipeline.Result, error)
}

// HeightSource supplies the authoritative ledger height.
type HeightSource interface {
	CurrentHeight(ctx context.Context) (uint64, error)
	SecondsPerLedger() int
}

// Publisher fans confirmed lifecycle events out to downstream consumers.
// Implementations must tolerate being nil-checked away when unconfigured.
type Publisher interface {
	Publish(ctx context.Context, a domain.VaultActivity) error
}

// PendingSubmission tracks an ambiguous submit until a status query resolves
// it. Held in memory; after a restart the activity feed re-derives the
// proposal's true state instead.
//
// For a propose there is no local record yet, so the submission carries the
// full transfer payload; a confirming status query materializes the proposal
// from it.
type PendingSubmission struct {
	ProposalID uint64
	Action     string
	Caller     domain.Address
	TxHash     string
	SubmitAt   time.Time

	Recipient domain.Address
	Token     domain.Address
	Amount    decimal.Decimal
	Memo      string
}

// Service is the sole writer of the proposal collection. It serializes
// mutating actions per proposal id, applies confirmed pipeline outcomes
// through the state machine, and hands read-only snapshots to everyone else.
type Service struct {
	store   store.Store
	pipe    Runner
	clock   HeightSource
	cfg     domain.VaultConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
	pub     Publisher

	lockMu sync.Mutex
	locks  map[uint64]*sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]PendingSubmission
}

func NewService(st store.Store, pipe Runner, clock HeightSource, cfg domain.VaultConfig, logger *slog.Logger, m *metrics.Metrics, pub Publisher) (*Service, error) {
	if st == nil {
		return nil, errors.New("proposal store is required")
	}
	if pipe == nil {
		return nil, errors.New("transaction pipeline is required")
	}
	if clock == nil {
		return nil, errors.New("ledger clock is required")
	}
	if cfg.Threshold < 1 {
		return nil, errors.New("vault threshold must be at least 1")
	}
	return &Service{
		store:   st,
		pipe:    pipe,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		pub:     pub,
		locks:   make(map[uint64]*sync.Mutex),
		pending: make(map[string]PendingSubmission),
	}, nil
}

// Config returns the vault's governance configuration.
func (s *Service) Config() domain.VaultConfig { return s.cfg }

// lockProposal serializes mutating actions on one proposal id. Concurrent
// actions on the same id queue; actions on different ids proceed in parallel.
func (s *Service) lockProposal(id uint64) func() {
	s.lockMu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.lockMu.Unlock()
	l.Lock()
	return l.Unlock
}

// Propose submits a new transfer proposal. On confirmation the local record
// is created with the ledger-assigned id, the proposer counted as the first
// approval, and the timelock fixed from the vault configuration.
func (s *Service) Propose(ctx context.Context, caller, recipient, token domain.Address, amount decimal.Decimal, memo string) (domain.Proposal, error) {
	if !s.cfg.RoleOf(caller).CanPropose() {
		return domain.Proposal{}, dErrors.New(dErrors.CodeForbidden,
			fmt.Sprintf("%s is not authorized to propose transfers", caller))
	}
	if !s.cfg.SpendingLimit.IsZero() && amount.GreaterThan(s.cfg.SpendingLimit) {
		return domain.Proposal{}, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("amount exceeds the per-proposal spending limit of %s", s.cfg.SpendingLimit))
	}

	res, err := s.pipe.Propose(ctx, caller, recipient, token, amount, memo)
	if res.Outcome == pipeline.OutcomeUnknown {
		// No local record exists yet; keep the payload so reconciliation can
		// materialize the proposal once the ledger answers.
		s.pendingMu.Lock()
		s.pending[res.Hash] = PendingSubmission{
			Action:    "propose",
			Caller:    caller,
			TxHash:    res.Hash,
			SubmitAt:  time.Now().UTC(),
			Recipient: recipient,
			Token:     token,
			Amount:    amount,
			Memo:      memo,
		}
		s.pendingMu.Unlock()
		return domain.Proposal{}, err
	}
	if err != nil {
		return domain.Proposal{}, err
	}

	id, err := pipeline.ProposalIDFromResult(res)
	if err != nil {
		return domain.Proposal{}, err
	}

	height, err := s.clock.CurrentHeight(ctx)
	if err != nil {
		// The proposal is confirmed on the ledger; fall back to the ledger
		// the submission landed in rather than failing the local record.
		height = res.Ledger
	}

	return s.saveNewProposal(ctx, id, caller, recipient, token, amount, memo, height, res.Hash)
}

// saveNewProposal builds, persists, and announces a ledger-confirmed proposal.
// Shared by the direct propose path and propose reconciliation.
func (s *Service) saveNewProposal(ctx context.Context, id uint64, caller, recipient, token domain.Address, amount decimal.Decimal, memo string, height uint64, txHash string) (domain.Proposal, error) {
	p := domain.Proposal{
		ID:                 id,
		Proposer:           caller,
		Recipient:          recipient,
		Token:              token,
		Amount:             amount,
		Memo:               memo,
		Status:             domain.StatusPending,
		Approvals:          []domain.Address{caller},
		Threshold:          s.cfg.Threshold,
		CreatedAt:          time.Now().UTC(),
		CreatedLedger:      height,
		LastObservedLedger: height,
	}
	if s.cfg.ExpiryDelta > 0 {
		p.ExpiresLedger = height + s.cfg.ExpiryDelta
	}
	if !s.cfg.TimelockThreshold.IsZero() && amount.GreaterThanOrEqual(s.cfg.TimelockThreshold) {
		p.UnlockLedger = height + s.cfg.TimelockDelay
	}
	if p.ApprovalCount() >= p.Threshold {
		p.Status = domain.StatusApproved
	}

	if err := s.store.Save(ctx, p); err != nil {
		return domain.Proposal{}, dErrors.Wrap(dErrors.CodeInternal, "persist confirmed proposal", err)
	}
	if s.metrics != nil {
		s.metrics.ProposalsCreated.Inc()
	}
	s.emit(ctx, domain.TypeProposalCreated, caller, txHash, height, domain.ProposalCreatedDetails{
		ProposalID: id, Proposer: caller, Recipient: recipient, Amount: amount,
	})
	return p, nil
}

// Approve records one signer approval. The local counter is eventually
// consistent with the ledger: the Approved transition is only committed here,
// after the ledger confirms the threshold-crossing approval.
func (s *Service) Approve(ctx context.Context, caller domain.Address, id uint64) (domain.Proposal, error) {
	if !s.cfg.RoleOf(caller).CanPropose() {
		return domain.Proposal{}, dErrors.New(dErrors.CodeForbidden,
			fmt.Sprintf("%s is not an authorized signer", caller))
	}

	unlock := s.lockProposal(id)
	defer unlock()

	p, err := s.find(ctx, id)
	if err != nil {
		return domain.Proposal{}, err
	}
	// Reject locally what the ledger would reject, before any network call.
	if err := GuardApprove(p, caller); err != nil {
		return domain.Proposal{}, err
	}

	res, err := s.pipe.Approve(ctx, caller, id)
	if res.Outcome == pipeline.OutcomeUnknown {
		s.markReconciling(ctx, id, "approve", caller, res.Hash)
		return domain.Proposal{}, err
	}
	if err != nil {
		return domain.Proposal{}, err
	}

	updated, crossed, err := ApplyApprove(p, caller)
	if err != nil {
		return domain.Proposal{}, err
	}
	if err := s.store.Save(ctx, updated); err != nil {
		return domain.Proposal{}, dErrors.Wrap(dErrors.CodeInternal, "persist confirmed approval", err)
	}
	if s.metrics != nil {
		s.metrics.ApprovalsRecorded.Inc()
	}
	s.emit(ctx, domain.TypeProposalApproved, caller, res.Hash, res.Ledger, domain.ProposalApprovedDetails{
		ProposalID: id, Approver: caller, ApprovalCount: updated.ApprovalCount(), Threshold: updated.Threshold,
	})
	if crossed {
		s.emit(ctx, domain.TypeProposalReady, caller, res.Hash, res.Ledger, domain.ProposalReadyDetails{ProposalID: id})
	}
	return updated, nil
}

// Reject cancels a proposal under the authorization matrix: proposer or admin
// from Pending, admin override only from Approved.
func (s *Service) Reject(ctx context.Context, caller domain.Address, id uint64, reason string) (domain.Proposal, error) {
	unlock := s.lockProposal(id)
	defer unlock()

	p, err := s.find(ctx, id)
	if err != nil {
		return domain.Proposal{}, err
	}
	role := s.cfg.RoleOf(caller)
	if err := GuardReject(p, caller, role); err != nil {
		return domain.Proposal{}, err
	}

	res, err := s.pipe.Reject(ctx, caller, id)
	if res.Outcome == pipeline.OutcomeUnknown {
		s.markReconciling(ctx, id, "reject", caller, res.Hash)
		return domain.Proposal{}, err
	}
	if err != nil {
		return domain.Proposal{}, err
	}

	updated, err := ApplyReject(p, caller, role, reason)
	if err != nil {
		return domain.Proposal{}, err
	}
	if err := s.store.Save(ctx, updated); err != nil {
		return domain.Proposal{}, dErrors.Wrap(dErrors.CodeInternal, "persist confirmed rejection", err)
	}
	if s.metrics != nil {
		s.metrics.ProposalsRejected.Inc()
	}
	s.emit(ctx, domain.TypeProposalRejected, caller, res.Hash, res.Ledger, domain.ProposalRejectedDetails{
		ProposalID: id, Rejector: caller, Reason: reason,
	})
	return updated, nil
}

// Execute moves an approved, timelock-satisfied proposal's funds. Executing
// an already-Executed proposal is a no-op success returning the original
// result; the short-circuit happens before any ledger call.
func (s *Service) Execute(ctx context.Context, caller domain.Address, id uint64) (domain.Proposal, error) {
	unlock := s.lockProposal(id)
	defer unlock()

	p, err := s.find(ctx, id)
	if err != nil {
		return domain.Proposal{}, err
	}
	if p.Status == domain.StatusExecuted {
		return p, nil
	}

	height, err := s.clock.CurrentHeight(ctx)
	if err != nil {
		return domain.Proposal{}, dErrors.Wrap(dErrors.CodeUnavailable, "ledger height unavailable", err)
	}
	if err := GuardExecute(p, height); err != nil {
		return domain.Proposal{}, err
	}
	if !s.cfg.DailyLimit.IsZero() || !s.cfg.WeeklyLimit.IsZero() {
		all, err := s.store.List(ctx)
		if err != nil {
			return domain.Proposal{}, dErrors.Wrap(dErrors.CodeInternal, "load executed proposals for velocity check", err)
		}
		if err := GuardVelocity(s.cfg, all, p.Amount, height); err != nil {
			return domain.Proposal{}, err
		}
	}

	res, err := s.pipe.Execute(ctx, caller, id)
	if res.Outcome == pipeline.OutcomeUnknown {
		s.markReconciling(ctx, id, "execute", caller, res.Hash)
		return domain.Proposal{}, err
	}
	if err != nil {
		return domain.Proposal{}, err
	}

	updated, err := ApplyExecute(p, height, res.Hash)
	if err != nil {
		return domain.Proposal{}, err
	}
	if err := s.store.Save(ctx, updated); err != nil {
		return domain.Proposal{}, dErrors.Wrap(dErrors.CodeInternal, "persist confirmed execution", err)
	}
	if s.metrics != nil {
		s.metrics.ProposalsExecuted.Inc()
	}
	s.emit(ctx, domain.TypeProposalExecuted, caller, res.Hash, res.Ledger, domain.ProposalExecutedDetails{
		ProposalID: id, Executor: caller, Recipient: updated.Recipient, Amount: updated.Amount,
	})
	return updated, nil
}

// Get returns one proposal with a timelock countdown computed from the
// authoritative current height.
func (s *Service) Get(ctx context.Context, id uint64) (domain.Proposal, Countdown, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return domain.Proposal{}, Countdown{}, err
	}
	height, err := s.clock.CurrentHeight(ctx)
	if err != nil {
		// Serve the record with the stale countdown rather than failing the read.
		height = p.LastObservedLedger
	}
	return p, NewCountdown(p, height, s.clock.SecondsPerLedger(), time.Now().UTC()), nil
}

// List returns all proposals in creation order.
func (s *Service) List(ctx context.Context) ([]domain.Proposal, error) {
	return s.store.List(ctx)
}

// Snapshot exposes the store's consistent read for the export assembler.
func (s *Service) Snapshot(ctx context.Context) (store.Snapshot, error) {
	return s.store.Snapshot(ctx)
}

// ExpireSweep transitions pending proposals whose policy window elapsed.
// Returns how many proposals expired.
func (s *Service) ExpireSweep(ctx context.Context) (int, error) {
	height, err := s.clock.CurrentHeight(ctx)
	if err != nil {
		return 0, dErrors.Wrap(dErrors.CodeUnavailable, "ledger height unavailable", err)
	}
	proposals, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, p := range proposals {
		if p.Status != domain.StatusPending || p.ExpiresLedger == 0 || height <= p.ExpiresLedger {
			continue
		}
		unlock := s.lockProposal(p.ID)
		current, err := s.find(ctx, p.ID)
		if err != nil {
			unlock()
			continue
		}
		updated, err := ApplyExpire(current, height)
		if err != nil {
			unlock()
			continue
		}
		if err := s.store.Save(ctx, updated); err != nil {
			unlock()
			return expired, dErrors.Wrap(dErrors.CodeInternal, "persist expiry", err)
		}
		unlock()
		expired++
		if s.metrics != nil {
			s.metrics.ProposalsExpired.Inc()
		}
	}
	return expired, nil
}

// PendingSubmissions returns the ambiguous submissions awaiting resolution.
func (s *Service) PendingSubmissions() []PendingSubmission {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	out := make([]PendingSubmission, 0, len(s.pending))
	for _, ps := range s.pending {
		out = append(out, ps)
	}
	return out
}

// Resolve applies the result of a reconciliation status query for a tracked
// submission. Confirmed success commits the pending transition without a
// second submission; confirmed failure clears the marker and leaves the
// proposal untouched. returnValue is the status query's return payload, used
// to recover the ledger-assigned id of a reconciled propose.
func (s *Service) Resolve(ctx context.Context, ps PendingSubmission, success bool, confirmedLedger uint64, returnValue json.RawMessage) error {
	if ps.Action == "propose" {
		return s.resolvePropose(ctx, ps, success, confirmedLedger, returnValue)
	}

	unlock := s.lockProposal(ps.ProposalID)
	defer unlock()

	p, err := s.find(ctx, ps.ProposalID)
	if err != nil {
		return err
	}

	if success {
		switch ps.Action {
		case "approve":
			updated, _, err := ApplyApprove(p, ps.Caller)
			if err != nil {
				// Already applied through another path; nothing to do.
				break
			}
			p = updated
		case "reject":
			updated, err := ApplyLedgerRejection(p, "confirmed during reconciliation")
			if err != nil {
				break
			}
			p = updated
		case "execute":
			p = ApplyConfirmedExecution(p, confirmedLedger, ps.TxHash)
		}
	}

	p.Reconciling = false
	if err := s.store.Save(ctx, p); err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "persist reconciled proposal", err)
	}

	s.pendingMu.Lock()
	delete(s.pending, ps.TxHash)
	s.pendingMu.Unlock()

	if s.metrics != nil {
		s.metrics.Reconciliations.Inc()
	}
	s.logger.InfoContext(ctx, "submission reconciled",
		"proposal_id", ps.ProposalID,
		"action", ps.Action,
		"tx_hash", ps.TxHash,
		"success", success,
	)
	return nil
}

// resolvePropose settles an ambiguous propose. On confirmed success the
// proposal is materialized from the tracked payload with the ledger-assigned
// id; on confirmed failure there is nothing to roll back.
func (s *Service) resolvePropose(ctx context.Context, ps PendingSubmission, success bool, confirmedLedger uint64, returnValue json.RawMessage) error {
	if success {
		id, err := pipeline.ProposalIDFromResult(pipeline.Result{ReturnValue: returnValue})
		if err != nil {
			// Keep the entry; the next sweep retries until give-up.
			return err
		}
		unlock := s.lockProposal(id)
		if _, findErr := s.store.FindByID(ctx, id); errors.Is(findErr, sentinel.ErrNotFound) {
			if _, err := s.saveNewProposal(ctx, id, ps.Caller, ps.Recipient, ps.Token, ps.Amount, ps.Memo, confirmedLedger, ps.TxHash); err != nil {
				unlock()
				return err
			}
		}
		unlock()
	}

	s.pendingMu.Lock()
	delete(s.pending, ps.TxHash)
	s.pendingMu.Unlock()

	if s.metrics != nil {
		s.metrics.Reconciliations.Inc()
	}
	s.logger.InfoContext(ctx, "submission reconciled",
		"action", ps.Action,
		"tx_hash", ps.TxHash,
		"success", success,
	)
	return nil
}

// Abandon stops polling a submission without deciding its outcome. The pending
// entry is dropped but any Reconciling marker stays set: the true result is
// still unknown, and clearing it would falsely report failure.
func (s *Service) Abandon(ctx context.Context, ps PendingSubmission) {
	s.pendingMu.Lock()
	delete(s.pending, ps.TxHash)
	s.pendingMu.Unlock()

	if s.metrics != nil {
		s.metrics.ReconciliationsAbandoned.Inc()
	}
	s.logger.WarnContext(ctx, "reconciliation abandoned with outcome unknown",
		"proposal_id", ps.ProposalID,
		"action", ps.Action,
		"tx_hash", ps.TxHash,
		"age", time.Since(ps.SubmitAt).String(),
	)
}

func (s *Service) find(ctx context.Context, id uint64) (domain.Proposal, error) {
	p, err := s.store.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return domain.Proposal{}, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("proposal %d not found", id))
	}
	if err != nil {
		return domain.Proposal{}, dErrors.Wrap(dErrors.CodeInternal, "load proposal", err)
	}
	return p, nil
}

func (s *Service) markReconciling(ctx context.Context, id uint64, action string, caller domain.Address, txHash string) {
	if err := s.store.SetReconciling(ctx, id, true); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark proposal reconciling",
			"proposal_id", id,
			"error", err,
		)
	}
	s.pendingMu.Lock()
	s.pending[txHash] = PendingSubmission{
		ProposalID: id,
		Action:     action,
		Caller:     caller,
		TxHash:     txHash,
		SubmitAt:   time.Now().UTC(),
	}
	s.pendingMu.Unlock()
}

// emit appends a locally-derived activity record and fans it out to the
// publisher when one is configured. Feed-ingested records for the same ledger
// event dedupe on EventID.
func (s *Service) emit(ctx context.Context, t domain.ActivityType, actor domain.Address, txHash string, ledgerSeq uint64, details domain.ActivityDetails) {
	a := domain.VaultActivity{
		ID:        uuid.NewString(),
		EventID:   fmt.Sprintf("%s-%s", txHash, t),
		Type:      t,
		Timestamp: time.Now().UTC(),
		Ledger:    ledgerSeq,
		Actor:     actor,
		Details:   details,
		TxHash:    txHash,
	}
	if err := s.store.Append(ctx, a); err != nil {
		s.logger.ErrorContext(ctx, "failed to append activity", "event_id", a.EventID, "error", err)
	}
	if s.pub != nil {
		if err := s.pub.Publish(ctx, a); err != nil {
			s.logger.WarnContext(ctx, "activity publish failed", "event_id", a.EventID, "error", err)
		}
	}
}
