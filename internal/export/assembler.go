// Package export renders the vault's history into downloadable files. All
// three data sets of one export derive from a single store snapshot, so a
// proposal row, its activity rows, and its transaction row never disagree.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"vaultdao/internal/domain"
	"vaultdao/internal/vault/store"
	dErrors "vaultdao/pkg/domain-errors"
)

// DataType selects which slice of history an export covers.
type DataType string

const (
	DataProposals    DataType = "proposals"
	DataActivity     DataType = "activity"
	DataTransactions DataType = "transactions"
)

// Format is the serialization of an export file.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// File is one assembled export, ready to stream to the caller.
type File struct {
	Filename   string
	DataType   DataType
	Format     Format
	ExportedAt time.Time
	MimeType   string
	Data       []byte
}

// TransactionRow is the executed-transfer view: one row per proposal that
// moved funds, derived from the proposal set rather than tracked separately.
type TransactionRow struct {
	ProposalID uint64          `json:"proposal_id"`
	TxHash     string          `json:"tx_hash"`
	Recipient  domain.Address  `json:"recipient"`
	Token      domain.Address  `json:"token"`
	Amount     decimal.Decimal `json:"amount"`
	Ledger     uint64          `json:"ledger"`
	Memo       string          `json:"memo,omitempty"`
}

// Snapshotter is the store capability the assembler needs.
type Snapshotter interface {
	Snapshot(ctx context.Context) (store.Snapshot, error)
}

// Assembler builds export files from consistent snapshots.
type Assembler struct {
	store Snapshotter
}

func NewAssembler(st Snapshotter) *Assembler {
	return &Assembler{store: st}
}

// Assemble renders every requested data type in the given format, all from
// the same snapshot. The sets are serialized concurrently.
func (a *Assembler) Assemble(ctx context.Context, types []DataType, format Format) ([]File, error) {
	if format != FormatCSV && format != FormatJSON {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if len(types) == 0 {
		types = []DataType{DataProposals, DataActivity, DataTransactions}
	}

	snap, err := a.store.Snapshot(ctx)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "take export snapshot", err)
	}

	files := make([]File, len(types))
	g, _ := errgroup.WithContext(ctx)
	for i, t := range types {
		i, t := i, t
		g.Go(func() error {
			f, err := a.render(snap, t, format)
			if err != nil {
				return err
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func (a *Assembler) render(snap store.Snapshot, t DataType, format Format) (File, error) {
	var (
		data []byte
		err  error
	)
	switch t {
	case DataProposals:
		data, err = renderProposals(snap.Proposals, format)
	case DataActivity:
		data, err = renderActivity(snap.Activity, format)
	case DataTransactions:
		data, err = renderTransactions(Transactions(snap.Proposals), format)
	default:
		return File{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unsupported export data type %q", t))
	}
	if err != nil {
		return File{}, err
	}

	stamp := snap.TakenAt.UTC()
	mime := "text/csv"
	if format == FormatJSON {
		mime = "application/json"
	}
	return File{
		Filename:   fmt.Sprintf("vault-%s-%s.%s", t, stamp.Format("2006-01-02T150405Z"), format),
		DataType:   t,
		Format:     format,
		ExportedAt: stamp,
		MimeType:   mime,
		Data:       data,
	}, nil
}

// Transactions derives the executed-transfer rows from the proposal set.
func Transactions(proposals []domain.Proposal) []TransactionRow {
	rows := make([]TransactionRow, 0)
	for _, p := range proposals {
		if p.Status != domain.StatusExecuted {
			continue
		}
		rows = append(rows, TransactionRow{
			ProposalID: p.ID,
			TxHash:     p.ExecutedTxHash,
			Recipient:  p.Recipient,
			Token:      p.Token,
			Amount:     p.Amount,
			Ledger:     p.LastObservedLedger,
			Memo:       p.Memo,
		})
	}
	return rows
}

func renderProposals(proposals []domain.Proposal, format Format) ([]byte, error) {
	if format == FormatJSON {
		return marshalJSON(proposals)
	}
	return writeCSV(
		[]string{"id", "status", "proposer", "recipient", "token", "amount", "memo", "approvals", "threshold", "created_at", "unlock_ledger", "expires_ledger", "executed_tx_hash", "reject_reason"},
		len(proposals),
		func(i int) []string {
			p := proposals[i]
			return []string{
				strconv.FormatUint(p.ID, 10),
				p.Status.String(),
				string(p.Proposer),
				string(p.Recipient),
				string(p.Token),
				p.Amount.String(),
				p.Memo,
				strconv.FormatUint(uint64(p.ApprovalCount()), 10),
				strconv.FormatUint(uint64(p.Threshold), 10),
				p.CreatedAt.UTC().Format(time.RFC3339),
				strconv.FormatUint(p.UnlockLedger, 10),
				strconv.FormatUint(p.ExpiresLedger, 10),
				p.ExecutedTxHash,
				p.RejectReason,
			}
		},
	)
}

func renderActivity(records []domain.VaultActivity, format Format) ([]byte, error) {
	if format == FormatJSON {
		return marshalJSON(records)
	}
	return writeCSV(
		[]string{"event_id", "type", "timestamp", "ledger", "actor", "tx_hash", "details"},
		len(records),
		func(i int) []string {
			r := records[i]
			details, err := domain.MarshalDetails(r.Details)
			if err != nil {
				details = []byte("null")
			}
			return []string{
				r.EventID,
				string(r.Type),
				r.Timestamp.UTC().Format(time.RFC3339),
				strconv.FormatUint(r.Ledger, 10),
				string(r.Actor),
				r.TxHash,
				string(details),
			}
		},
	)
}

func renderTransactions(rows []TransactionRow, format Format) ([]byte, error) {
	if format == FormatJSON {
		return marshalJSON(rows)
	}
	return writeCSV(
		[]string{"proposal_id", "tx_hash", "recipient", "token", "amount", "ledger", "memo"},
		len(rows),
		func(i int) []string {
			r := rows[i]
			return []string{
				strconv.FormatUint(r.ProposalID, 10),
				r.TxHash,
				string(r.Recipient),
				string(r.Token),
				r.Amount.String(),
				strconv.FormatUint(r.Ledger, 10),
				r.Memo,
			}
		},
	)
}

func marshalJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "marshal export", err)
	}
	return data, nil
}

func writeCSV(header []string, n int, row func(int) []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "write export header", err)
	}
	for i := 0; i < n; i++ {
		if err := w.Write(row(i)); err != nil {
			return nil, dErrors.Wrap(dErrors.CodeInternal, "write export row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "flush export", err)
	}
	return buf.Bytes(), nil
}
