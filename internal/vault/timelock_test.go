package vault

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"vaultdao/internal/domain"
	"vaultdao/pkg/testutil"
)

func TestRemainingLedgers(t *testing.T) {
	locked := domain.Proposal{UnlockLedger: 1500}

	t.Run("counts down toward the unlock ledger", func(t *testing.T) {
		assert.Equal(t, uint64(300), RemainingLedgers(locked, 1200))
	})

	t.Run("zero at the unlock ledger", func(t *testing.T) {
		assert.Equal(t, uint64(0), RemainingLedgers(locked, 1500))
		assert.True(t, TimelockSatisfied(locked, 1500))
	})

	t.Run("never negative past the unlock ledger", func(t *testing.T) {
		assert.Equal(t, uint64(0), RemainingLedgers(locked, 9000))
	})

	t.Run("zero unlock ledger means no timelock", func(t *testing.T) {
		free := domain.Proposal{UnlockLedger: 0}
		assert.Equal(t, uint64(0), RemainingLedgers(free, 0))
		assert.True(t, TimelockSatisfied(free, 0))
	})

	t.Run("monotonically non-increasing as height advances", func(t *testing.T) {
		prev := RemainingLedgers(locked, 1000)
		for h := uint64(1001); h <= 1600; h += 100 {
			cur := RemainingLedgers(locked, h)
			assert.LessOrEqual(t, cur, prev)
			prev = cur
		}
	})
}

func TestRemainingWait(t *testing.T) {
	locked := domain.Proposal{UnlockLedger: 1500}

	t.Run("converts ledgers to wall clock at the configured cadence", func(t *testing.T) {
		assert.Equal(t, 1500*time.Second, RemainingWait(locked, 1200, 5))
		assert.Equal(t, 1800*time.Second, RemainingWait(locked, 1200, 6))
	})

	t.Run("falls back to the default cadence", func(t *testing.T) {
		assert.Equal(t, 1500*time.Second, RemainingWait(locked, 1200, 0))
	})
}

func TestNewCountdown(t *testing.T) {
	locked := domain.Proposal{UnlockLedger: 1500}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cd := NewCountdown(locked, 1200, 5, now)
	assert.Equal(t, uint64(300), cd.RemainingLedgers)
	assert.Equal(t, 1500*time.Second, cd.RemainingWait)
	assert.Equal(t, uint64(1200), cd.SyncedLedger)
	assert.Equal(t, now, cd.SyncedAt)
}

func TestCountdownResync(t *testing.T) {
	locked := domain.Proposal{UnlockLedger: 1500}

	testutil.Given(t, "a countdown synced at ledger 1200", func(t *testing.T) {
		first := NewCountdown(locked, 1200, 5, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

		testutil.When(t, "the clock resyncs at a later height", func(t *testing.T) {
			second := NewCountdown(locked, 1450, 5, time.Date(2026, 3, 1, 12, 20, 0, 0, time.UTC))

			testutil.Then(t, "the whole countdown is replaced from the new height", func(t *testing.T) {
				assert.Less(t, second.RemainingLedgers, first.RemainingLedgers)
				assert.Equal(t, uint64(50), second.RemainingLedgers)
				assert.Equal(t, 250*time.Second, second.RemainingWait)
				assert.Equal(t, uint64(1450), second.SyncedLedger)
			})
		})
	})
}
