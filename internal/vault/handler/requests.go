package handler

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"vaultdao/internal/domain"
	"vaultdao/internal/pipeline"
	dErrors "vaultdao/pkg/domain-errors"
)

type proposeRequest struct {
	Recipient string `json:"recipient"`
	Token     string `json:"token"`
	Amount    string `json:"amount"`
	Memo      string `json:"memo,omitempty"`
}

func (r proposeRequest) Validate() error {
	if strings.TrimSpace(r.Recipient) == "" {
		return dErrors.New(dErrors.CodeValidation, "recipient is required")
	}
	if strings.TrimSpace(r.Token) == "" {
		return dErrors.New(dErrors.CodeValidation, "token is required")
	}
	amt, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "amount must be a decimal string")
	}
	if !amt.IsInteger() || amt.IsNegative() || amt.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "amount must be a positive integer of the token's smallest denomination")
	}
	if len(r.Memo) > pipeline.MemoLimit {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("memo exceeds %d characters", pipeline.MemoLimit))
	}
	return nil
}

func (r proposeRequest) amount() decimal.Decimal {
	amt, _ := decimal.NewFromString(r.Amount)
	return amt
}

type rejectRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (r rejectRequest) Validate() error {
	if len(r.Reason) > 512 {
		return dErrors.New(dErrors.CodeValidation, "reason exceeds 512 characters")
	}
	return nil
}

// filterFromQuery builds a FilterSpec from list query parameters. Unknown
// status or sort values are rejected rather than silently ignored.
func filterFromQuery(q url.Values) (domain.FilterSpec, error) {
	spec := domain.FilterSpec{
		Search: strings.TrimSpace(q.Get("search")),
		Sort:   domain.SortNewest,
	}

	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st, ok := domain.ParseProposalStatus(strings.TrimSpace(s))
			if !ok {
				return spec, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown status %q", s))
			}
			spec.Statuses = append(spec.Statuses, st)
		}
	}

	if raw := q.Get("sort"); raw != "" {
		switch domain.SortKey(raw) {
		case domain.SortNewest, domain.SortOldest, domain.SortHighest, domain.SortLowest:
			spec.Sort = domain.SortKey(raw)
		default:
			return spec, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown sort %q", raw))
		}
	}

	var err error
	if spec.From, err = parseTime(q.Get("from")); err != nil {
		return spec, err
	}
	if spec.To, err = parseTime(q.Get("to")); err != nil {
		return spec, err
	}
	if spec.MinAmount, err = parseAmount(q.Get("min_amount")); err != nil {
		return spec, err
	}
	if spec.MaxAmount, err = parseAmount(q.Get("max_amount")); err != nil {
		return spec, err
	}
	return spec, nil
}

func parseTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unparseable time %q", raw))
}

func parseAmount(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	amt, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unparseable amount %q", raw))
	}
	return &amt, nil
}
