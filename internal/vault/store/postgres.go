package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"vaultdao/internal/domain"
	"vaultdao/pkg/platform/sentinel"
	txcontext "vaultdao/pkg/platform/tx"
)

// PostgresStore persists both collections in postgres. Snapshot opens one
// repeatable-read transaction so the two row sets come from a single point in
// time even under concurrent writes.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema is applied by the operator (or tests); kept here so the store and
// its tables stay in one file.
const Schema = `
CREATE TABLE IF NOT EXISTS proposals (
	id                   BIGINT PRIMARY KEY,
	proposer             TEXT NOT NULL,
	recipient            TEXT NOT NULL,
	token                TEXT NOT NULL,
	amount               NUMERIC NOT NULL,
	memo                 TEXT NOT NULL DEFAULT '',
	status               INT NOT NULL,
	approvals            TEXT[] NOT NULL DEFAULT '{}',
	threshold            INT NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL,
	created_ledger       BIGINT NOT NULL,
	expires_ledger       BIGINT NOT NULL DEFAULT 0,
	unlock_ledger        BIGINT NOT NULL DEFAULT 0,
	last_observed_ledger BIGINT NOT NULL DEFAULT 0,
	reject_reason        TEXT NOT NULL DEFAULT '',
	executed_tx_hash     TEXT NOT NULL DEFAULT '',
	reconciling          BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS vault_activity (
	id           TEXT PRIMARY KEY,
	event_id     TEXT NOT NULL UNIQUE,
	type         TEXT NOT NULL,
	ts           TIMESTAMPTZ NOT NULL,
	ledger       BIGINT NOT NULL,
	idx          INT NOT NULL,
	actor        TEXT NOT NULL DEFAULT '',
	details      JSONB,
	tx_hash      TEXT NOT NULL DEFAULT '',
	paging_token TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS vault_activity_order ON vault_activity (ledger, idx);
`

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Save(ctx context.Context, p domain.Proposal) error {
	approvals := make([]string, len(p.Approvals))
	for i, a := range p.Approvals {
		approvals[i] = string(a)
	}
	query := `
		INSERT INTO proposals (
			id, proposer, recipient, token, amount, memo, status, approvals,
			threshold, created_at, created_ledger, expires_ledger, unlock_ledger,
			last_observed_ledger, reject_reason, executed_tx_hash, reconciling
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			approvals = EXCLUDED.approvals,
			last_observed_ledger = EXCLUDED.last_observed_ledger,
			reject_reason = EXCLUDED.reject_reason,
			executed_tx_hash = EXCLUDED.executed_tx_hash,
			reconciling = EXCLUDED.reconciling
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		p.ID, p.Proposer, p.Recipient, p.Token, p.Amount.String(), p.Memo,
		p.Status, pq.Array(approvals), p.Threshold, p.CreatedAt, p.CreatedLedger,
		p.ExpiresLedger, p.UnlockLedger, p.LastObservedLedger, p.RejectReason,
		p.ExecutedTxHash, p.Reconciling,
	)
	if err != nil {
		return fmt.Errorf("save proposal %d: %w", p.ID, err)
	}
	return nil
}

const proposalColumns = `
	id, proposer, recipient, token, amount, memo, status, approvals, threshold,
	created_at, created_ledger, expires_ledger, unlock_ledger,
	last_observed_ledger, reject_reason, executed_tx_hash, reconciling`

func (s *PostgresStore) FindByID(ctx context.Context, id uint64) (domain.Proposal, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id)
	p, err := scanProposal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Proposal{}, fmt.Errorf("proposal %d: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("find proposal %d: %w", id, err)
	}
	return p, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]domain.Proposal, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+proposalColumns+` FROM proposals ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	var out []domain.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetReconciling(ctx context.Context, id uint64, reconciling bool) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE proposals SET reconciling = $2 WHERE id = $1`, id, reconciling)
	if err != nil {
		return fmt.Errorf("set reconciling on proposal %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("proposal %d: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, a domain.VaultActivity) error {
	details, err := domain.MarshalDetails(a.Details)
	if err != nil {
		return fmt.Errorf("marshal activity details: %w", err)
	}
	// Duplicate deliveries are dropped on event_id, keeping Append idempotent.
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO vault_activity (id, event_id, type, ts, ledger, idx, actor, details, tx_hash, paging_token)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (event_id) DO NOTHING`,
		a.ID, a.EventID, a.Type, a.Timestamp, a.Ledger, a.Index, a.Actor,
		details, a.TxHash, a.PagingToken,
	)
	if err != nil {
		return fmt.Errorf("append activity %s: %w", a.EventID, err)
	}
	return nil
}

func (s *PostgresStore) ListActivity(ctx context.Context) ([]domain.VaultActivity, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, event_id, type, ts, ledger, idx, actor, details, tx_hash, paging_token
		FROM vault_activity ORDER BY ledger, idx`)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()
	return scanActivity(rows)
}

func (s *PostgresStore) Snapshot(ctx context.Context) (Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return Snapshot{}, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // read-only

	snapCtx := txcontext.WithTx(ctx, tx)
	proposals, err := s.List(snapCtx)
	if err != nil {
		return Snapshot{}, err
	}
	activity, err := s.ListActivity(snapCtx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Proposals: proposals, Activity: activity, TakenAt: time.Now()}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProposal(row rowScanner) (domain.Proposal, error) {
	var (
		p         domain.Proposal
		amount    string
		approvals pq.StringArray
	)
	err := row.Scan(
		&p.ID, &p.Proposer, &p.Recipient, &p.Token, &amount, &p.Memo, &p.Status,
		&approvals, &p.Threshold, &p.CreatedAt, &p.CreatedLedger, &p.ExpiresLedger,
		&p.UnlockLedger, &p.LastObservedLedger, &p.RejectReason, &p.ExecutedTxHash,
		&p.Reconciling,
	)
	if err != nil {
		return domain.Proposal{}, err
	}
	p.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("parse stored amount %q: %w", amount, err)
	}
	p.Approvals = make([]domain.Address, len(approvals))
	for i, a := range approvals {
		p.Approvals[i] = domain.Address(a)
	}
	return p, nil
}

func scanActivity(rows *sql.Rows) ([]domain.VaultActivity, error) {
	var out []domain.VaultActivity
	for rows.Next() {
		var (
			a       domain.VaultActivity
			details []byte
		)
		if err := rows.Scan(&a.ID, &a.EventID, &a.Type, &a.Timestamp, &a.Ledger,
			&a.Index, &a.Actor, &details, &a.TxHash, &a.PagingToken); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		d, err := domain.UnmarshalDetails(a.Type, details)
		if err != nil {
			return nil, err
		}
		a.Details = d
		out = append(out, a)
	}
	return out, rows.Err()
}
