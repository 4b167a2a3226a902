package activity

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"vaultdao/internal/domain"
	dErrors "vaultdao/pkg/domain-errors"
	"vaultdao/pkg/platform/httputil"
	"vaultdao/pkg/requestcontext"
)

type Handler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator, logger *slog.Logger) *Handler {
	return &Handler{aggregator: aggregator, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/activity", h.feed)
}

type feedResponse struct {
	Records      []recordView `json:"records"`
	Cursor       string       `json:"cursor,omitempty"`
	LatestLedger uint64       `json:"latest_ledger,omitempty"`
	// Partial marks a response whose fetch ended early; Cursor resumes it.
	Partial bool `json:"partial,omitempty"`
}

type recordView struct {
	EventID   string              `json:"event_id"`
	Type      domain.ActivityType `json:"type"`
	Timestamp time.Time           `json:"timestamp"`
	Ledger    uint64              `json:"ledger"`
	Actor     domain.Address      `json:"actor,omitempty"`
	TxHash    string              `json:"tx_hash,omitempty"`
	Details   any                 `json:"details,omitempty"`
}

func toRecordViews(records []domain.VaultActivity) []recordView {
	out := make([]recordView, len(records))
	for i, rec := range records {
		out[i] = recordView{
			EventID:   rec.EventID,
			Type:      rec.Type,
			Timestamp: rec.Timestamp,
			Ledger:    rec.Ledger,
			Actor:     rec.Actor,
			TxHash:    rec.TxHash,
			Details:   rec.Details,
		}
	}
	return out
}

// feed serves one aggregated page. A mid-fetch failure degrades to a partial
// page with a resume cursor instead of an error, as long as anything arrived.
func (h *Handler) feed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	q := r.URL.Query()

	f, err := filterFromQuery(q)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit := defaultPageSize
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 1000 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be between 1 and 1000"))
			return
		}
	}

	feed, err := h.aggregator.Fetch(ctx, q.Get("cursor"), f, limit)
	if err != nil {
		if len(feed.Records) == 0 {
			h.logger.WarnContext(ctx, "activity fetch failed", "request_id", requestID, "error", err)
			httputil.WriteError(w, err)
			return
		}
		h.logger.WarnContext(ctx, "activity fetch returned partial page",
			"request_id", requestID, "records", len(feed.Records), "error", err)
		httputil.WriteJSON(w, http.StatusOK, feedResponse{
			Records: toRecordViews(feed.Records),
			Cursor:  feed.Cursor,
			Partial: true,
		})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, feedResponse{
		Records:      toRecordViews(feed.Records),
		Cursor:       feed.Cursor,
		LatestLedger: feed.LatestLedger,
	})
}

func filterFromQuery(q url.Values) (domain.ActivityFilter, error) {
	f := domain.ActivityFilter{Actor: domain.Address(q.Get("actor"))}

	if raw := q.Get("type"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			f.Types = append(f.Types, domain.ParseActivityType(strings.TrimSpace(s)))
		}
	}

	var err error
	if f.From, err = parseTime(q.Get("from")); err != nil {
		return f, err
	}
	if f.To, err = parseTime(q.Get("to")); err != nil {
		return f, err
	}
	return f, nil
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
