// Package journal persists the terminal outcome of every orchestrated
// action. One row per action; the ledger, not the journal, is the source
// of truth for entity state.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

type Entry struct {
	ID          uuid.UUID       `json:"id"`
	Verb        string          `json:"verb"`
	Entity      string          `json:"entity"`
	State       string          `json:"state"`
	TxHash      string          `json:"txHash,omitempty"`
	BudgetLimit uint64          `json:"budgetLimit"`
	BudgetPrice string          `json:"budgetPrice"`
	Outcome     json.RawMessage `json:"outcome,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	SettledAt   *time.Time      `json:"settledAt,omitempty"`
}

type EntryInput struct {
	ID          uuid.UUID
	Verb        string
	Entity      string
	State       string
	TxHash      string
	BudgetLimit uint64
	BudgetPrice string
	Outcome     json.RawMessage
	Reason      string
	SettledAt   *time.Time
}

type Journal interface {
	Record(ctx context.Context, in EntryInput) (Entry, error)
	Get(ctx context.Context, id uuid.UUID) (Entry, error)
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
	Ping(ctx context.Context) error
}

type PGJournal struct {
	db *sql.DB
}

func NewPGJournal(db *sql.DB) *PGJournal {
	return &PGJournal{db: db}
}

// EnsureSchema creates the actions table when it does not exist yet.
func (j *PGJournal) EnsureSchema(ctx context.Context) error {
	q := `
CREATE TABLE IF NOT EXISTS actions (
  id uuid PRIMARY KEY,
  verb text NOT NULL,
  entity text NOT NULL,
  state text NOT NULL,
  tx_hash text NOT NULL DEFAULT '',
  budget_limit bigint NOT NULL DEFAULT 0,
  budget_price text NOT NULL DEFAULT '',
  outcome jsonb NOT NULL DEFAULT '{}',
  reason text NOT NULL DEFAULT '',
  created_at timestamptz NOT NULL DEFAULT now(),
  settled_at timestamptz
);
CREATE INDEX IF NOT EXISTS idx_actions_created_at ON actions (created_at DESC);
`
	_, err := j.db.ExecContext(ctx, q)
	return err
}

const entryColumns = "id, verb, entity, state, tx_hash, budget_limit, budget_price, outcome, reason, created_at, settled_at"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		e         Entry
		outcome   []byte
		settledAt sql.NullTime
	)
	if err := row.Scan(
		&e.ID,
		&e.Verb,
		&e.Entity,
		&e.State,
		&e.TxHash,
		&e.BudgetLimit,
		&e.BudgetPrice,
		&outcome,
		&e.Reason,
		&e.CreatedAt,
		&settledAt,
	); err != nil {
		return Entry{}, err
	}
	if len(outcome) > 0 {
		e.Outcome = append(json.RawMessage(nil), outcome...)
	}
	if settledAt.Valid {
		t := settledAt.Time
		e.SettledAt = &t
	}
	return e, nil
}

func ensureJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	return raw
}

func (j *PGJournal) Record(ctx context.Context, in EntryInput) (Entry, error) {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	query := `
		INSERT INTO actions (id, verb, entity, state, tx_hash, budget_limit, budget_price, outcome, reason, settled_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING ` + entryColumns
	row := j.db.QueryRowContext(ctx, query,
		in.ID, in.Verb, in.Entity, in.State, in.TxHash,
		in.BudgetLimit, in.BudgetPrice, ensureJSON(in.Outcome), in.Reason, in.SettledAt)
	entry, err := scanEntry(row)
	if err != nil {
		return Entry{}, fmt.Errorf("insert action: %w", err)
	}
	return entry, nil
}

func (j *PGJournal) Get(ctx context.Context, id uuid.UUID) (Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM actions WHERE id=$1`
	entry, err := scanEntry(j.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("get action: %w", err)
	}
	return entry, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func (j *PGJournal) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM actions ORDER BY created_at DESC LIMIT $1`
	rows, err := j.db.QueryContext(ctx, query, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return entries, nil
}

func (j *PGJournal) Ping(ctx context.Context) error {
	if err := j.db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}
