package domain

import "github.com/shopspring/decimal"

// VaultConfig is the vault's governance configuration, fixed by the contract
// at initialization and amended only through config-update proposals.
type VaultConfig struct {
	Signers []Address
	// Admins hold the override powers of RoleAdmin.
	Admins []Address
	// Threshold is the number of distinct signer approvals required before a
	// proposal may execute. Always >= 1.
	Threshold uint32
	// SpendingLimit caps a single proposal's amount. Zero means unlimited.
	SpendingLimit decimal.Decimal
	// DailyLimit caps the aggregate amount executed within one ledger day.
	// Zero means unlimited.
	DailyLimit decimal.Decimal
	// WeeklyLimit caps the aggregate amount executed within one ledger week.
	// Zero means unlimited.
	WeeklyLimit decimal.Decimal
	// TimelockThreshold is the amount at or above which a new proposal gets a
	// timelock of TimelockDelay ledgers. Zero disables timelocks.
	TimelockThreshold decimal.Decimal
	// TimelockDelay is the ledger delta between creation and unlock for
	// timelocked proposals.
	TimelockDelay uint64
	// ExpiryDelta is how many ledgers a pending proposal may live before it
	// expires without reaching threshold.
	ExpiryDelta uint64
	// SecondsPerLedger is the network cadence used to convert ledger deltas
	// into wait-time estimates.
	SecondsPerLedger int
}

// IsSigner reports whether addr is an authorized signer.
func (c VaultConfig) IsSigner(addr Address) bool {
	for _, s := range c.Signers {
		if s == addr {
			return true
		}
	}
	return false
}

// RoleOf resolves the permission level of addr: admin beats treasurer, and
// anyone else is a read-only member.
func (c VaultConfig) RoleOf(addr Address) Role {
	for _, a := range c.Admins {
		if a == addr {
			return RoleAdmin
		}
	}
	if c.IsSigner(addr) {
		return RoleTreasurer
	}
	return RoleMember
}
