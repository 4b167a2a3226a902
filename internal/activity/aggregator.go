// Package activity assembles the vault's event feed. Records come from the
// contract's event log, get typed, deduplicated, and merged with the locally
// derived lifecycle records; the caller reads one consistent, ordered list.
package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"vaultdao/internal/domain"
	"vaultdao/internal/ledger"
	"vaultdao/internal/platform/redis"
	dErrors "vaultdao/pkg/domain-errors"
)

const (
	defaultPageSize = 100
	// maxPages caps one Fetch so a misbehaving cursor cannot spin forever.
	maxPages = 50

	checkpointKey = "vaultdao:activity_cursor"
	checkpointTTL = 24 * time.Hour
)

// FeedError reports a fetch that ended early. Records already collected are
// returned alongside it; Cursor is the last position that fetched cleanly,
// suitable for resuming.
type FeedError struct {
	Cursor  string
	Partial int
	Err     error
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("activity feed interrupted after %d records (cursor %q): %v", e.Partial, e.Cursor, e.Err)
}

func (e *FeedError) Unwrap() error { return e.Err }

// Feed is one aggregated page of activity.
type Feed struct {
	Records []domain.VaultActivity
	// Cursor resumes the feed after the last event this fetch consumed.
	// Empty when exhausted.
	Cursor       string
	LatestLedger uint64
}

// Store is the slice of the proposal store the aggregator writes through.
type Store interface {
	Append(ctx context.Context, a domain.VaultActivity) error
	ListActivity(ctx context.Context) ([]domain.VaultActivity, error)
}

// Aggregator pulls typed activity out of the raw contract event log.
type Aggregator struct {
	rpc      ledger.RPC
	store    Store
	redis    *redis.Client
	logger   *slog.Logger
	pageSize int
}

func NewAggregator(rpc ledger.RPC, store Store, rdb *redis.Client, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		rpc:      rpc,
		store:    store,
		redis:    rdb,
		logger:   logger,
		pageSize: defaultPageSize,
	}
}

// Fetch pulls pages from the event log starting at cursor ("" = checkpoint,
// falling back to the feed start), applies the filter before deduplication,
// and returns up to limit records in (ledger, index) order.
//
// A page failure mid-fetch does not discard what already arrived: the partial
// feed is returned together with a *FeedError wrapping the cause.
func (g *Aggregator) Fetch(ctx context.Context, cursor string, f domain.ActivityFilter, limit int) (Feed, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if cursor == "" {
		cursor = g.checkpoint(ctx)
	}

	feed := Feed{Records: make([]domain.VaultActivity, 0, limit)}
	seen := make(map[string]bool, limit)
	lastGood := cursor

	for page := 0; page < maxPages && len(feed.Records) < limit; page++ {
		ep, err := g.rpc.Events(ctx, cursor, g.pageSize)
		if err != nil {
			feed.Cursor = lastGood
			return feed, dErrors.Wrap(dErrors.CodeFeed, "fetch activity page",
				&FeedError{Cursor: lastGood, Partial: len(feed.Records), Err: err})
		}
		feed.LatestLedger = ep.LatestLedger

		pageDone := true
		for _, raw := range ep.Events {
			if len(feed.Records) >= limit {
				// The unread tail of this page stays ahead of the resume
				// cursor; the page cursor would jump past it.
				pageDone = false
				break
			}
			lastGood = raw.PagingToken
			rec := Typed(raw)
			if !f.Matches(rec) {
				continue
			}
			if seen[rec.EventID] {
				continue
			}
			seen[rec.EventID] = true
			feed.Records = append(feed.Records, rec)
			if err := g.store.Append(ctx, rec); err != nil {
				g.logger.WarnContext(ctx, "failed to persist activity record",
					"event_id", rec.EventID, "error", err)
			}
		}
		if !pageDone {
			break
		}

		lastGood = ep.Cursor
		if ep.Cursor == "" || len(ep.Events) == 0 {
			break
		}
		cursor = ep.Cursor
	}

	sort.SliceStable(feed.Records, func(i, j int) bool {
		return feed.Records[i].Before(feed.Records[j])
	})
	feed.Cursor = lastGood
	g.saveCheckpoint(ctx, lastGood)
	return feed, nil
}

// Local reads the persisted feed without touching the network.
func (g *Aggregator) Local(ctx context.Context, f domain.ActivityFilter, limit int) ([]domain.VaultActivity, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	records, err := g.store.ListActivity(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.VaultActivity, 0, limit)
	for _, rec := range records {
		if !f.Matches(rec) {
			continue
		}
		out = append(out, rec)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Typed converts one raw log entry into a feed record. Unrecognized event
// types are kept with their payload preserved verbatim, never dropped.
func Typed(raw ledger.RawEvent) domain.VaultActivity {
	t := domain.ParseActivityType(raw.Type)
	details, err := domain.UnmarshalDetails(t, raw.Data)
	if err != nil {
		// A known type with a malformed payload degrades to unknown rather
		// than losing the record.
		t = domain.TypeUnknown
		details = domain.UnknownDetails{Raw: append(json.RawMessage(nil), raw.Data...)}
	}
	return domain.VaultActivity{
		ID:          raw.EventID,
		EventID:     raw.EventID,
		Type:        t,
		Timestamp:   raw.Timestamp,
		Ledger:      raw.Ledger,
		Index:       raw.Index,
		Actor:       domain.Address(raw.Actor),
		Details:     details,
		TxHash:      raw.TxHash,
		PagingToken: raw.PagingToken,
	}
}

func (g *Aggregator) checkpoint(ctx context.Context) string {
	if g.redis == nil {
		return ""
	}
	cursor, err := g.redis.Get(ctx, checkpointKey).Result()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			g.logger.WarnContext(ctx, "failed to read activity checkpoint", "error", err)
		}
		return ""
	}
	return cursor
}

func (g *Aggregator) saveCheckpoint(ctx context.Context, cursor string) {
	if g.redis == nil || cursor == "" {
		return
	}
	if err := g.redis.Set(ctx, checkpointKey, cursor, checkpointTTL).Err(); err != nil {
		g.logger.WarnContext(ctx, "failed to save activity checkpoint", "error", err)
	}
}
