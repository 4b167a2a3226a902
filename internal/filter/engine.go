// Package filter evaluates proposal queries in memory. The engine is pure:
// it never mutates its input and returns a fresh slice on every call, so a
// query result is stable even while the underlying collection keeps moving.
package filter

import (
	"sort"
	"strconv"
	"strings"

	"vaultdao/internal/domain"
)

// Engine applies a FilterSpec to a proposal snapshot.
type Engine struct{}

func New() *Engine { return &Engine{} }

// Apply returns the proposals matching spec, ordered by spec.Sort. The input
// slice is left untouched. An empty spec passes everything through in newest-
// first order.
func (e *Engine) Apply(proposals []domain.Proposal, spec domain.FilterSpec) []domain.Proposal {
	out := make([]domain.Proposal, 0, len(proposals))
	needle := strings.ToLower(strings.TrimSpace(spec.Search))
	for _, p := range proposals {
		if !e.matches(p, spec, needle) {
			continue
		}
		out = append(out, p)
	}
	e.order(out, spec.Sort)
	return out
}

func (e *Engine) matches(p domain.Proposal, spec domain.FilterSpec, needle string) bool {
	if !spec.MatchesStatus(p.Status) {
		return false
	}
	if spec.From != nil && p.CreatedAt.Before(*spec.From) {
		return false
	}
	if spec.To != nil && p.CreatedAt.After(domain.EndOfDay(*spec.To)) {
		return false
	}
	if spec.MinAmount != nil && p.Amount.LessThan(*spec.MinAmount) {
		return false
	}
	if spec.MaxAmount != nil && p.Amount.GreaterThan(*spec.MaxAmount) {
		return false
	}
	if needle != "" && !searchMatch(p, needle) {
		return false
	}
	return true
}

// searchMatch checks the needle against memo, recipient, proposer, and the
// numeric id, all case-insensitively.
func searchMatch(p domain.Proposal, needle string) bool {
	if strings.Contains(strings.ToLower(p.Memo), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(string(p.Recipient)), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(string(p.Proposer)), needle) {
		return true
	}
	return strconv.FormatUint(p.ID, 10) == needle
}

// order sorts in place. The stable sort leaves ties on the primary key in
// their original relative order.
func (e *Engine) order(proposals []domain.Proposal, key domain.SortKey) {
	less := func(a, b domain.Proposal) bool { return a.CreatedAt.After(b.CreatedAt) }
	switch key {
	case domain.SortOldest:
		less = func(a, b domain.Proposal) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case domain.SortHighest:
		less = func(a, b domain.Proposal) bool { return a.Amount.GreaterThan(b.Amount) }
	case domain.SortLowest:
		less = func(a, b domain.Proposal) bool { return a.Amount.LessThan(b.Amount) }
	}
	sort.SliceStable(proposals, func(i, j int) bool {
		return less(proposals[i], proposals[j])
	})
}
