package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Address identifies a vault participant, recipient, or token contract on the
// ledger. It is opaque to the engine; the ledger validates its format.
type Address string

func (a Address) IsZero() bool { return a == "" }

// ProposalStatus is the lifecycle state of a transfer proposal. Wire values
// match the vault contract enum.
type ProposalStatus uint32

const (
	StatusPending  ProposalStatus = 0
	StatusApproved ProposalStatus = 1
	StatusExecuted ProposalStatus = 2
	StatusRejected ProposalStatus = 3
	StatusExpired  ProposalStatus = 4
)

func (s ProposalStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusApproved:
		return "approved"
	case StatusExecuted:
		return "executed"
	case StatusRejected:
		return "rejected"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is permitted from s.
// Terminal proposals are retained for audit and export, never deleted.
func (s ProposalStatus) Terminal() bool {
	return s == StatusExecuted || s == StatusRejected || s == StatusExpired
}

// ParseProposalStatus maps the string form back to a status. The second return
// is false for unrecognized input.
func ParseProposalStatus(s string) (ProposalStatus, bool) {
	switch s {
	case "pending":
		return StatusPending, true
	case "approved":
		return StatusApproved, true
	case "executed":
		return StatusExecuted, true
	case "rejected":
		return StatusRejected, true
	case "expired":
		return StatusExpired, true
	default:
		return 0, false
	}
}

// Proposal is a proposed treasury transfer. Amount is an integer number of the
// token's smallest denomination; decimal.Decimal keeps it exact end to end.
//
// Approvals is ordered membership, not a bare counter: a signer may approve at
// most once, and the exposed count is derived from it. UnlockLedger is fixed at
// creation (0 = no timelock) and never mutated afterwards.
type Proposal struct {
	ID                 uint64          `json:"id"`
	Proposer           Address         `json:"proposer"`
	Recipient          Address         `json:"recipient"`
	Token              Address         `json:"token"`
	Amount             decimal.Decimal `json:"amount"`
	Memo               string          `json:"memo"`
	Status             ProposalStatus  `json:"status"`
	Approvals          []Address       `json:"approvals"`
	Threshold          uint32          `json:"threshold"`
	CreatedAt          time.Time       `json:"created_at"`
	CreatedLedger      uint64          `json:"created_ledger"`
	ExpiresLedger      uint64          `json:"expires_ledger"`
	UnlockLedger       uint64          `json:"unlock_ledger"`
	LastObservedLedger uint64          `json:"last_observed_ledger"`
	RejectReason       string          `json:"reject_reason,omitempty"`
	ExecutedTxHash     string          `json:"executed_tx_hash,omitempty"`
	// Reconciling marks a proposal whose last submission outcome was
	// ambiguous. It is cleared once a status query resolves the effect.
	Reconciling bool `json:"reconciling,omitempty"`
}

// ApprovalCount derives the exposed approval counter from membership.
func (p Proposal) ApprovalCount() uint32 {
	return uint32(len(p.Approvals))
}

// HasApproved reports whether signer already approved this proposal.
func (p Proposal) HasApproved(signer Address) bool {
	for _, a := range p.Approvals {
		if a == signer {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so readers never alias the store's slices.
func (p Proposal) Clone() Proposal {
	out := p
	out.Approvals = append([]Address(nil), p.Approvals...)
	return out
}
