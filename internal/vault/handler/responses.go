package handler

import (
	"time"

	"vaultdao/internal/domain"
	"vaultdao/internal/vault"
)

type proposalResponse struct {
	ID             uint64           `json:"id"`
	Proposer       domain.Address   `json:"proposer"`
	Recipient      domain.Address   `json:"recipient"`
	Token          domain.Address   `json:"token"`
	Amount         string           `json:"amount"`
	Memo           string           `json:"memo,omitempty"`
	Status         string           `json:"status"`
	Approvals      []domain.Address `json:"approvals"`
	ApprovalCount  uint32           `json:"approval_count"`
	Threshold      uint32           `json:"threshold"`
	CreatedAt      time.Time        `json:"created_at"`
	CreatedLedger  uint64           `json:"created_ledger"`
	ExpiresLedger  uint64           `json:"expires_ledger,omitempty"`
	UnlockLedger   uint64           `json:"unlock_ledger,omitempty"`
	RejectReason   string           `json:"reject_reason,omitempty"`
	ExecutedTxHash string           `json:"executed_tx_hash,omitempty"`
	Reconciling    bool             `json:"reconciling,omitempty"`
	Timelock       *timelockView    `json:"timelock,omitempty"`
}

type timelockView struct {
	RemainingLedgers uint64    `json:"remaining_ledgers"`
	RemainingSeconds int64     `json:"remaining_seconds"`
	SyncedLedger     uint64    `json:"synced_ledger"`
	SyncedAt         time.Time `json:"synced_at"`
}

func toProposalResponse(p domain.Proposal) proposalResponse {
	return proposalResponse{
		ID:             p.ID,
		Proposer:       p.Proposer,
		Recipient:      p.Recipient,
		Token:          p.Token,
		Amount:         p.Amount.String(),
		Memo:           p.Memo,
		Status:         p.Status.String(),
		Approvals:      p.Approvals,
		ApprovalCount:  p.ApprovalCount(),
		Threshold:      p.Threshold,
		CreatedAt:      p.CreatedAt,
		CreatedLedger:  p.CreatedLedger,
		ExpiresLedger:  p.ExpiresLedger,
		UnlockLedger:   p.UnlockLedger,
		RejectReason:   p.RejectReason,
		ExecutedTxHash: p.ExecutedTxHash,
		Reconciling:    p.Reconciling,
	}
}

func toProposalWithCountdown(p domain.Proposal, cd vault.Countdown) proposalResponse {
	resp := toProposalResponse(p)
	if p.UnlockLedger > 0 && p.Status != domain.StatusExecuted {
		resp.Timelock = &timelockView{
			RemainingLedgers: cd.RemainingLedgers,
			RemainingSeconds: int64(cd.RemainingWait / time.Second),
			SyncedLedger:     cd.SyncedLedger,
			SyncedAt:         cd.SyncedAt,
		}
	}
	return resp
}

type listResponse struct {
	Proposals []proposalResponse `json:"proposals"`
	Total     int                `json:"total"`
}
