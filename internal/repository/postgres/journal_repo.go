package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres
	"github.com/xela07ax/shuma-dashboard/internal/journal"
)

const schema = `
CREATE TABLE IF NOT EXISTS refresh_journal (
	id         UUID PRIMARY KEY,
	tab        TEXT NOT NULL,
	reason     TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	fetch_ms   DOUBLE PRECISION NOT NULL DEFAULT 0,
	render_ms  DOUBLE PRECISION NOT NULL DEFAULT 0,
	at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS refresh_journal_tab_at_idx ON refresh_journal (tab, at DESC);`

// Количество колонок в таблице refresh_journal
const numFields = 8

type JournalRepo struct {
	db *sql.DB
}

func NewJournalRepo(connString string, maxConns int) (*JournalRepo, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 5
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &JournalRepo{db: db}, nil
}

// NewJournalRepoFromDB: для готового пула.
func NewJournalRepoFromDB(db *sql.DB) *JournalRepo {
	return &JournalRepo{db: db}
}

func (r *JournalRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *JournalRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

func (r *JournalRepo) WriteBatch(ctx context.Context, entries []journal.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	query, vals := buildInsert(entries)
	_, err := r.db.ExecContext(ctx, query, vals...)
	return err
}

// buildInsert строит пакетный INSERT одной командой.
func buildInsert(entries []journal.Entry) (string, []any) {
	var sb strings.Builder
	vals := make([]any, 0, len(entries)*numFields)

	for i, e := range entries {
		if i > 0 {
			sb.WriteByte(',')
		}
		p := i * numFields
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8)
		vals = append(vals, e.ID, e.Tab, e.Reason, e.Outcome, e.Error, e.FetchMs, e.RenderMs, e.At)
	}

	query := "INSERT INTO refresh_journal (id, tab, reason, outcome, error, fetch_ms, render_ms, at) VALUES " + sb.String()
	return query, vals
}

// FetchRecent: последние записи, опционально по одной вкладке.
func (r *JournalRepo) FetchRecent(ctx context.Context, tab string, limit int) ([]journal.Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT id, tab, reason, outcome, error, fetch_ms, render_ms, at FROM refresh_journal`
	args := []any{}
	if tab != "" {
		query += ` WHERE tab = $1 ORDER BY at DESC LIMIT $2`
		args = append(args, tab, limit)
	} else {
		query += ` ORDER BY at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]journal.Entry, 0, limit)
	for rows.Next() {
		var e journal.Entry
		if err := rows.Scan(&e.ID, &e.Tab, &e.Reason, &e.Outcome, &e.Error, &e.FetchMs, &e.RenderMs, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *JournalRepo) Close() error {
	return r.db.Close()
}
