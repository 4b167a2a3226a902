package vault

import (
	"fmt"

	"github.com/shopspring/decimal"

	"vaultdao/internal/domain"
	dErrors "vaultdao/pkg/domain-errors"
)

// Velocity windows are calendar buckets in ledger time, not rolling windows:
// the contract tracks spending per day number and week number, so two
// executions land in the same bucket exactly when their execution ledgers
// divide to the same quotient.
const (
	ledgersPerDay  = 17_280 // ~24h at 5s per ledger
	ledgersPerWeek = ledgersPerDay * 7
)

// SpentInWindows sums the executed amounts that share the current day and week
// buckets with height. Executed proposals carry their execution ledger in
// LastObservedLedger.
func SpentInWindows(proposals []domain.Proposal, height uint64) (day, week decimal.Decimal) {
	for _, p := range proposals {
		if p.Status != domain.StatusExecuted {
			continue
		}
		if p.LastObservedLedger/ledgersPerDay == height/ledgersPerDay {
			day = day.Add(p.Amount)
		}
		if p.LastObservedLedger/ledgersPerWeek == height/ledgersPerWeek {
			week = week.Add(p.Amount)
		}
	}
	return day, week
}

// GuardVelocity rejects an execution that would push the aggregate executed
// amount past the daily or weekly limit. Zero limits disable their window.
func GuardVelocity(cfg domain.VaultConfig, proposals []domain.Proposal, amount decimal.Decimal, height uint64) error {
	if cfg.DailyLimit.IsZero() && cfg.WeeklyLimit.IsZero() {
		return nil
	}
	day, week := SpentInWindows(proposals, height)
	if !cfg.DailyLimit.IsZero() && day.Add(amount).GreaterThan(cfg.DailyLimit) {
		return dErrors.New(dErrors.CodeStateConflict,
			fmt.Sprintf("executing would exceed the daily limit of %s (%s already spent)", cfg.DailyLimit, day))
	}
	if !cfg.WeeklyLimit.IsZero() && week.Add(amount).GreaterThan(cfg.WeeklyLimit) {
		return dErrors.New(dErrors.CodeStateConflict,
			fmt.Sprintf("executing would exceed the weekly limit of %s (%s already spent)", cfg.WeeklyLimit, week))
	}
	return nil
}
