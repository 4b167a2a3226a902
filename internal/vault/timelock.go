package vault

import (
	"time"

	"vaultdao/internal/domain"
)

// DefaultSecondsPerLedger is the network's ledger close cadence. Overridable
// through configuration for networks with a different cadence.
const DefaultSecondsPerLedger = 5

// RemainingLedgers returns how many ledgers must still close before the
// proposal's timelock is satisfied. Zero when there is no timelock or the
// unlock ledger has passed. Monotonically non-increasing in currentLedger.
func RemainingLedgers(p domain.Proposal, currentLedger uint64) uint64 {
	if p.UnlockLedger == 0 || currentLedger >= p.UnlockLedger {
		return 0
	}
	return p.UnlockLedger - currentLedger
}

// RemainingWait converts the remaining ledger count into a wall-clock
// estimate using the network cadence.
func RemainingWait(p domain.Proposal, currentLedger uint64, secondsPerLedger int) time.Duration {
	if secondsPerLedger <= 0 {
		secondsPerLedger = DefaultSecondsPerLedger
	}
	return time.Duration(RemainingLedgers(p, currentLedger)) * time.Duration(secondsPerLedger) * time.Second
}

// TimelockSatisfied reports whether execution is no longer height-gated.
func TimelockSatisfied(p domain.Proposal, currentLedger uint64) bool {
	return RemainingLedgers(p, currentLedger) == 0
}

// Countdown is the resync protocol record for timelock display. The engine's
// authoritative state is always the last synced height; display layers may
// interpolate from SyncedAt between refreshes but every refresh replaces the
// whole value. Local interpolation never overrides a synced height.
type Countdown struct {
	RemainingLedgers uint64        `json:"remaining_ledgers"`
	RemainingWait    time.Duration `json:"remaining_wait"`
	SyncedLedger     uint64        `json:"synced_ledger"`
	SyncedAt         time.Time     `json:"synced_at"`
}

// NewCountdown computes a countdown from the authoritative current height.
func NewCountdown(p domain.Proposal, currentLedger uint64, secondsPerLedger int, now time.Time) Countdown {
	return Countdown{
		RemainingLedgers: RemainingLedgers(p, currentLedger),
		RemainingWait:    RemainingWait(p, currentLedger, secondsPerLedger),
		SyncedLedger:     currentLedger,
		SyncedAt:         now,
	}
}
