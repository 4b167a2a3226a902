package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ActivityType is the closed set of vault event kinds. Unrecognized wire
// values map to TypeUnknown; records are never dropped.
type ActivityType string

const (
	TypeInitialized      ActivityType = "initialized"
	TypeProposalCreated  ActivityType = "proposal_created"
	TypeProposalApproved ActivityType = "proposal_approved"
	TypeProposalReady    ActivityType = "proposal_ready"
	TypeProposalExecuted ActivityType = "proposal_executed"
	TypeProposalRejected ActivityType = "proposal_rejected"
	TypeSignerAdded      ActivityType = "signer_added"
	TypeSignerRemoved    ActivityType = "signer_removed"
	TypeConfigUpdated    ActivityType = "config_updated"
	TypeRoleAssigned     ActivityType = "role_assigned"
	TypeUnknown          ActivityType = "unknown"
)

var knownActivityTypes = map[ActivityType]bool{
	TypeInitialized:      true,
	TypeProposalCreated:  true,
	TypeProposalApproved: true,
	TypeProposalReady:    true,
	TypeProposalExecuted: true,
	TypeProposalRejected: true,
	TypeSignerAdded:      true,
	TypeSignerRemoved:    true,
	TypeConfigUpdated:    true,
	TypeRoleAssigned:     true,
}

// ParseActivityType maps a wire event name to its type, falling back to
// TypeUnknown for anything the engine does not recognize.
func ParseActivityType(s string) ActivityType {
	if knownActivityTypes[ActivityType(s)] {
		return ActivityType(s)
	}
	return TypeUnknown
}

// ActivityDetails is the tagged payload union. The concrete type is determined
// by the record's ActivityType; UnknownDetails preserves the raw payload for
// forward compatibility.
type ActivityDetails interface {
	isActivityDetails()
}

type InitializedDetails struct {
	Admin     Address `json:"admin"`
	Threshold uint32  `json:"threshold"`
}

type ProposalCreatedDetails struct {
	ProposalID uint64          `json:"proposal_id"`
	Proposer   Address         `json:"proposer"`
	Recipient  Address         `json:"recipient"`
	Amount     decimal.Decimal `json:"amount"`
}

type ProposalApprovedDetails struct {
	ProposalID    uint64  `json:"proposal_id"`
	Approver      Address `json:"approver"`
	ApprovalCount uint32  `json:"approval_count"`
	Threshold     uint32  `json:"threshold"`
}

type ProposalReadyDetails struct {
	ProposalID uint64 `json:"proposal_id"`
}

type ProposalExecutedDetails struct {
	ProposalID uint64          `json:"proposal_id"`
	Executor   Address         `json:"executor"`
	Recipient  Address         `json:"recipient"`
	Amount     decimal.Decimal `json:"amount"`
}

type ProposalRejectedDetails struct {
	ProposalID uint64  `json:"proposal_id"`
	Rejector   Address `json:"rejector"`
	Reason     string  `json:"reason,omitempty"`
}

type SignerChangedDetails struct {
	Signer       Address `json:"signer"`
	TotalSigners uint32  `json:"total_signers"`
}

type ConfigUpdatedDetails struct {
	Updater  Address `json:"updater"`
	Field    string  `json:"field,omitempty"`
	OldValue string  `json:"old_value,omitempty"`
	NewValue string  `json:"new_value,omitempty"`
}

type RoleAssignedDetails struct {
	Account Address `json:"account"`
	Role    Role    `json:"role"`
}

// UnknownDetails carries the untouched wire payload of an unrecognized event.
type UnknownDetails struct {
	Raw json.RawMessage `json:"raw"`
}

func (InitializedDetails) isActivityDetails()      {}
func (ProposalCreatedDetails) isActivityDetails()  {}
func (ProposalApprovedDetails) isActivityDetails() {}
func (ProposalReadyDetails) isActivityDetails()    {}
func (ProposalExecutedDetails) isActivityDetails() {}
func (ProposalRejectedDetails) isActivityDetails() {}
func (SignerChangedDetails) isActivityDetails()    {}
func (ConfigUpdatedDetails) isActivityDetails()    {}
func (RoleAssignedDetails) isActivityDetails()     {}
func (UnknownDetails) isActivityDetails()          {}

// VaultActivity is one immutable, append-only record of a vault event.
// Ordering is by (Ledger, Index) ascending; EventID is unique across the feed.
type VaultActivity struct {
	ID          string          `json:"id"`
	EventID     string          `json:"event_id"`
	Type        ActivityType    `json:"type"`
	Timestamp   time.Time       `json:"timestamp"`
	Ledger      uint64          `json:"ledger"`
	Index       uint32          `json:"index"`
	Actor       Address         `json:"actor"`
	Details     ActivityDetails `json:"details,omitempty"`
	TxHash      string          `json:"tx_hash,omitempty"`
	PagingToken string          `json:"paging_token"`
}

// Before reports whether a precedes b in feed order.
func (a VaultActivity) Before(b VaultActivity) bool {
	if a.Ledger != b.Ledger {
		return a.Ledger < b.Ledger
	}
	return a.Index < b.Index
}
