// Package pipeline drives every mutating vault action through the same
// four-stage protocol against the ledger: build, simulate, sign, submit.
// Stage failures carry the stage in their error code because the right
// recovery differs per stage; an ambiguous submit is surfaced as a distinct
// Unknown outcome, never silently folded into failure.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"vaultdao/internal/domain"
	"vaultdao/internal/ledger"
	dErrors "vaultdao/pkg/domain-errors"
)

// MemoLimit bounds proposal memos, matching the contract's symbol limit.
const MemoLimit = 256

// Outcome classifies what the pipeline knows about a submitted action.
type Outcome int

const (
	// OutcomeConfirmed: the network applied the action.
	OutcomeConfirmed Outcome = iota
	// OutcomeFailed: the network definitively did not apply it.
	OutcomeFailed
	// OutcomeUnknown: the submission may or may not have landed. The caller
	// must reconcile via a status query before retrying anything
	// non-idempotent.
	OutcomeUnknown
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeFailed:
		return "failed"
	case OutcomeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Result is the terminal report of one pipeline run. Hash is always set once
// a transaction was signed, so Unknown outcomes stay trackable.
type Result struct {
	Outcome     Outcome
	Hash        string
	Ledger      uint64
	ReturnValue json.RawMessage
}

// Pipeline executes vault contract invocations. It holds no proposal state;
// the vault service owns local mutation and per-proposal serialization.
type Pipeline struct {
	rpc               ledger.RPC
	signer            ledger.Signer
	contract          string
	networkPassphrase string
	submitWait        time.Duration
	logger            *slog.Logger
	metrics           *Metrics
}

func New(rpc ledger.RPC, signer ledger.Signer, contract, networkPassphrase string, logger *slog.Logger, metrics *Metrics) *Pipeline {
	return &Pipeline{
		rpc:               rpc,
		signer:            signer,
		contract:          contract,
		networkPassphrase: networkPassphrase,
		submitWait:        30 * time.Second,
		logger:            logger,
		metrics:           metrics,
	}
}

// Propose invokes propose_transfer. On confirmation the return value carries
// the ledger-assigned proposal id.
func (pl *Pipeline) Propose(ctx context.Context, caller, recipient, token domain.Address, amount decimal.Decimal, memo string) (Result, error) {
	if err := validatePropose(caller, recipient, token, amount, memo); err != nil {
		return Result{Outcome: OutcomeFailed}, err
	}
	op := ledger.UnsignedOperation{
		Contract: pl.contract,
		Function: "propose_transfer",
		Args:     []any{caller, recipient, token, amount.String(), memo},
		Source:   caller,
	}
	return pl.run(ctx, "propose", op)
}

// Approve invokes approve_proposal.
func (pl *Pipeline) Approve(ctx context.Context, caller domain.Address, proposalID uint64) (Result, error) {
	if err := validateCaller(caller); err != nil {
		return Result{Outcome: OutcomeFailed}, err
	}
	op := ledger.UnsignedOperation{
		Contract: pl.contract,
		Function: "approve_proposal",
		Args:     []any{caller, proposalID},
		Source:   caller,
	}
	return pl.run(ctx, "approve", op)
}

// Reject invokes reject_proposal.
func (pl *Pipeline) Reject(ctx context.Context, caller domain.Address, proposalID uint64) (Result, error) {
	if err := validateCaller(caller); err != nil {
		return Result{Outcome: OutcomeFailed}, err
	}
	op := ledger.UnsignedOperation{
		Contract: pl.contract,
		Function: "reject_proposal",
		Args:     []any{caller, proposalID},
		Source:   caller,
	}
	return pl.run(ctx, "reject", op)
}

// Execute invokes execute_proposal. Callers must short-circuit locally
// Executed proposals before reaching the pipeline; see vault.Service.
func (pl *Pipeline) Execute(ctx context.Context, caller domain.Address, proposalID uint64) (Result, error) {
	if err := validateCaller(caller); err != nil {
		return Result{Outcome: OutcomeFailed}, err
	}
	op := ledger.UnsignedOperation{
		Contract: pl.contract,
		Function: "execute_proposal",
		Args:     []any{caller, proposalID},
		Source:   caller,
	}
	return pl.run(ctx, "execute", op)
}

// run walks simulate, sign, submit for an already-built operation.
func (pl *Pipeline) run(ctx context.Context, action string, op ledger.UnsignedOperation) (Result, error) {
	start := time.Now()

	sim, err := pl.rpc.SimulateTransaction(ctx, op)
	if err != nil {
		pl.observe(action, "simulate", start, OutcomeFailed)
		// The dry run rejecting is the network saying no before anything was
		// signed; nothing changed anywhere.
		return Result{Outcome: OutcomeFailed},
			dErrors.Wrap(dErrors.CodeSimulation, fmt.Sprintf("%s simulation rejected", action), err)
	}

	unsignedTx, err := json.Marshal(struct {
		Op  ledger.UnsignedOperation `json:"op"`
		Sim ledger.SimulationResult  `json:"sim"`
	}{op, sim})
	if err != nil {
		pl.observe(action, "build", start, OutcomeFailed)
		return Result{Outcome: OutcomeFailed},
			dErrors.Wrap(dErrors.CodeInternal, "assemble transaction envelope", err)
	}

	signedTx, err := pl.signer.Sign(ctx, unsignedTx, pl.networkPassphrase)
	if err != nil {
		pl.observe(action, "sign", start, OutcomeFailed)
		// Safe to retry: nothing has reached the ledger.
		return Result{Outcome: OutcomeFailed},
			dErrors.Wrap(dErrors.CodeSigningRejected, fmt.Sprintf("%s signing rejected", action), err)
	}

	hash := txHash(signedTx)
	submitCtx, cancel := context.WithTimeout(ctx, pl.submitWait)
	defer cancel()

	res, err := pl.rpc.SubmitTransaction(submitCtx, signedTx)
	if err != nil {
		pl.observe(action, "submit", start, OutcomeUnknown)
		pl.logger.WarnContext(ctx, "submission outcome unknown",
			"action", action,
			"tx_hash", hash,
			"error", err,
		)
		// The effect may have landed. Report Unknown and keep the hash so the
		// reconciler can resolve it; never report failure here.
		return Result{Outcome: OutcomeUnknown, Hash: hash},
			dErrors.Wrap(dErrors.CodeSubmission, fmt.Sprintf("%s submission outcome unknown", action), err)
	}

	switch res.Status {
	case ledger.SubmitSuccess:
		pl.observe(action, "submit", start, OutcomeConfirmed)
		return Result{Outcome: OutcomeConfirmed, Hash: res.Hash, Ledger: res.Ledger, ReturnValue: res.ReturnValue}, nil
	case ledger.SubmitFailed:
		pl.observe(action, "submit", start, OutcomeFailed)
		return Result{Outcome: OutcomeFailed, Hash: res.Hash, Ledger: res.Ledger},
			dErrors.New(dErrors.CodeSubmission, fmt.Sprintf("%s rejected by ledger: %s", action, res.ErrorMessage))
	default:
		// The network accepted the transaction but reported no terminal
		// status within the wait; same ambiguity as a transport failure.
		pl.observe(action, "submit", start, OutcomeUnknown)
		return Result{Outcome: OutcomeUnknown, Hash: coalesce(res.Hash, hash)},
			dErrors.New(dErrors.CodeSubmission, fmt.Sprintf("%s still pending after submit wait", action))
	}
}

// ProposalIDFromResult parses the ledger-assigned proposal id out of a
// confirmed propose result.
func ProposalIDFromResult(r Result) (uint64, error) {
	var id uint64
	if err := json.Unmarshal(r.ReturnValue, &id); err != nil {
		return 0, dErrors.Wrap(dErrors.CodeInternal, "parse proposal id from ledger result", err)
	}
	return id, nil
}

func validateCaller(caller domain.Address) error {
	if caller.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "caller is not authenticated")
	}
	return nil
}

func validatePropose(caller, recipient, token domain.Address, amount decimal.Decimal, memo string) error {
	if err := validateCaller(caller); err != nil {
		return err
	}
	if recipient.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "recipient must not be empty")
	}
	if token.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "token must not be empty")
	}
	if !amount.IsInteger() {
		return dErrors.New(dErrors.CodeValidation, "amount must be an integer number of smallest-denomination units")
	}
	if amount.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "amount must not be negative")
	}
	if len(memo) > MemoLimit {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("memo exceeds %d bytes", MemoLimit))
	}
	return nil
}

func txHash(signedTx []byte) string {
	sum := sha256.Sum256(signedTx)
	return hex.EncodeToString(sum[:])
}

func coalesce(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
