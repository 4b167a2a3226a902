package vault

import (
	"fmt"

	"vaultdao/internal/domain"
	dErrors "vaultdao/pkg/domain-errors"
)

// The proposal state machine. Every function here is pure: it takes a proposal
// value and returns the transitioned copy, or a state_conflict / forbidden
// error when the guard table rejects the event. The Service is the sole writer
// and calls these under the per-proposal lock, so no transition is ever
// half-observed by readers.
//
// Guard table:
//
//	Pending  --approve--> Pending (membership grows) | Approved (threshold crossed)
//	Pending  --reject---> Rejected (proposer or admin)
//	Pending  --expire---> Expired (past expiry ledger)
//	Approved --execute--> Executed (threshold AND timelock satisfied)
//	Approved --reject---> Rejected (admin override only)
//	non-terminal --ledger rejection--> Rejected (carrying the ledger's reason)

// GuardApprove rejects approvals the ledger would also reject, before any
// network call is made.
func GuardApprove(p domain.Proposal, signer domain.Address) error {
	if p.Status != domain.StatusPending {
		return dErrors.New(dErrors.CodeStateConflict,
			fmt.Sprintf("cannot approve proposal %d in status %s", p.ID, p.Status))
	}
	if p.HasApproved(signer) {
		return dErrors.New(dErrors.CodeStateConflict,
			fmt.Sprintf("signer %s already approved proposal %d", signer, p.ID))
	}
	return nil
}

// ApplyApprove records a confirmed approval. The returned bool reports whether
// this approval crossed the threshold. Membership never shrinks and a signer
// is counted at most once.
func ApplyApprove(p domain.Proposal, signer domain.Address) (domain.Proposal, bool, error) {
	if err := GuardApprove(p, signer); err != nil {
		return p, false, err
	}
	out := p.Clone()
	out.Approvals = append(out.Approvals, signer)
	if out.ApprovalCount() >= out.Threshold {
		out.Status = domain.StatusApproved
		return out, true, nil
	}
	return out, false, nil
}

// GuardReject enforces the rejection authorization matrix: from Pending the
// proposer or an admin may reject; from Approved only an admin override is
// permitted.
func GuardReject(p domain.Proposal, caller domain.Address, role domain.Role) error {
	switch p.Status {
	case domain.StatusPending:
		if caller != p.Proposer && role != domain.RoleAdmin {
			return dErrors.New(dErrors.CodeForbidden,
				fmt.Sprintf("only the proposer or an admin may reject proposal %d", p.ID))
		}
		return nil
	case domain.StatusApproved:
		if role != domain.RoleAdmin {
			return dErrors.New(dErrors.CodeForbidden,
				fmt.Sprintf("only an admin may reject approved proposal %d", p.ID))
		}
		return nil
	default:
		return dErrors.New(dErrors.CodeStateConflict,
			fmt.Sprintf("cannot reject proposal %d in status %s", p.ID, p.Status))
	}
}

// ApplyReject records a confirmed rejection.
func ApplyReject(p domain.Proposal, caller domain.Address, role domain.Role, reason string) (domain.Proposal, error) {
	if err := GuardReject(p, caller, role); err != nil {
		return p, err
	}
	out := p.Clone()
	out.Status = domain.StatusRejected
	out.RejectReason = reason
	return out, nil
}

// GuardExecute is the pre-network execution check. Callers must short-circuit
// already-Executed proposals before reaching here; see Service.Execute.
func GuardExecute(p domain.Proposal, currentLedger uint64) error {
	if p.Status != domain.StatusApproved {
		return dErrors.New(dErrors.CodeStateConflict,
			fmt.Sprintf("cannot execute proposal %d in status %s", p.ID, p.Status))
	}
	if p.ApprovalCount() < p.Threshold {
		return dErrors.New(dErrors.CodeStateConflict,
			fmt.Sprintf("proposal %d has %d of %d required approvals", p.ID, p.ApprovalCount(), p.Threshold))
	}
	if remaining := RemainingLedgers(p, currentLedger); remaining > 0 {
		return dErrors.New(dErrors.CodeStateConflict,
			fmt.Sprintf("proposal %d is timelocked for %d more ledgers", p.ID, remaining))
	}
	return nil
}

// ApplyExecute records a confirmed execution, pinning the transaction hash so
// idempotent re-execution can return the original result.
func ApplyExecute(p domain.Proposal, currentLedger uint64, txHash string) (domain.Proposal, error) {
	if err := GuardExecute(p, currentLedger); err != nil {
		return p, err
	}
	out := p.Clone()
	out.Status = domain.StatusExecuted
	out.ExecutedTxHash = txHash
	out.LastObservedLedger = currentLedger
	return out, nil
}

// ApplyConfirmedExecution records an execution the ledger has already
// confirmed, regardless of local guards. The ledger is authoritative once a
// reconciliation query reports success; already-Executed proposals pass
// through unchanged.
func ApplyConfirmedExecution(p domain.Proposal, confirmedLedger uint64, txHash string) domain.Proposal {
	if p.Status == domain.StatusExecuted {
		return p
	}
	out := p.Clone()
	out.Status = domain.StatusExecuted
	out.ExecutedTxHash = txHash
	out.LastObservedLedger = confirmedLedger
	return out
}

// ApplyExpire transitions a pending proposal whose policy window elapsed.
func ApplyExpire(p domain.Proposal, currentLedger uint64) (domain.Proposal, error) {
	if p.Status != domain.StatusPending {
		return p, dErrors.New(dErrors.CodeStateConflict,
			fmt.Sprintf("cannot expire proposal %d in status %s", p.ID, p.Status))
	}
	if p.ExpiresLedger == 0 || currentLedger <= p.ExpiresLedger {
		return p, dErrors.New(dErrors.CodeStateConflict,
			fmt.Sprintf("proposal %d has not reached its expiry ledger", p.ID))
	}
	out := p.Clone()
	out.Status = domain.StatusExpired
	out.LastObservedLedger = currentLedger
	return out, nil
}

// ApplyLedgerRejection records a contract-level rejection reported by the
// ledger. Valid from any non-terminal state; the ledger's reason is kept.
func ApplyLedgerRejection(p domain.Proposal, reason string) (domain.Proposal, error) {
	if p.Status.Terminal() {
		return p, dErrors.New(dErrors.CodeStateConflict,
			fmt.Sprintf("proposal %d is already in terminal status %s", p.ID, p.Status))
	}
	out := p.Clone()
	out.Status = domain.StatusRejected
	out.RejectReason = reason
	return out, nil
}
