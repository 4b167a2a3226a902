package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SortKey orders a filtered proposal set.
type SortKey string

const (
	SortNewest  SortKey = "newest"
	SortOldest  SortKey = "oldest"
	SortHighest SortKey = "highest"
	SortLowest  SortKey = "lowest"
)

// FilterSpec is a value object describing one proposal query. It has no
// persisted identity; results are recomputed per query.
//
// Empty Search matches everything; an empty status set means all statuses; a
// nil range bound is unbounded. To is treated as end-of-day inclusive.
type FilterSpec struct {
	Search    string
	Statuses  []ProposalStatus
	From      *time.Time
	To        *time.Time
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	Sort      SortKey
}

// MatchesStatus reports whether the spec's status set admits s.
func (f FilterSpec) MatchesStatus(s ProposalStatus) bool {
	if len(f.Statuses) == 0 {
		return true
	}
	for _, st := range f.Statuses {
		if st == s {
			return true
		}
	}
	return false
}

// ActivityFilter bounds an activity feed query. Applied before deduplication
// so memory stays proportional to matching records.
type ActivityFilter struct {
	Types []ActivityType
	Actor Address
	From  *time.Time
	To    *time.Time
}

// Matches reports whether the record passes the filter.
func (f ActivityFilter) Matches(a VaultActivity) bool {
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if t == a.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.Actor.IsZero() && f.Actor != a.Actor {
		return false
	}
	if f.From != nil && a.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && a.Timestamp.After(endOfDay(*f.To)) {
		return false
	}
	return true
}

// endOfDay pushes t to 23:59:59.999999999 so inclusive date filtering keeps
// records from the To day itself.
func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// EndOfDay is the shared inclusive upper bound used by both filters.
func EndOfDay(t time.Time) time.Time { return endOfDay(t) }
