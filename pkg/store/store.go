// Package store implements persistence for the governance engine on an
// embedded SQLite database. Derived-state writes (plan replacement,
// enforcement-event appends, snapshot creation) run inside per-deal immediate
// transactions; reads are plain queries and may lag the most recent write by
// one recomputation cycle.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dealforge/governor/pkg/contracts"
)

// Store is the SQLite-backed persistence layer shared by every component.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Serialized writer discipline: a single connection avoids SQLITE_BUSY
	// storms under concurrent regeneration while keeping immediate
	// transactions meaningful.
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing database handle (used by tests with sqlmock).
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS deals (
		deal_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		account_name TEXT NOT NULL DEFAULT '',
		stage TEXT NOT NULL,
		forecast_category TEXT NOT NULL,
		close_date TEXT,
		amount_micros INTEGER NOT NULL DEFAULT 0 CHECK (amount_micros >= 0),
		enforcement_state TEXT NOT NULL DEFAULT 'ACTIVE',
		frozen_reason TEXT,
		stage_entered_at TEXT NOT NULL,
		owner_id TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS evidence (
		deal_id TEXT NOT NULL,
		category TEXT NOT NULL,
		status TEXT NOT NULL,
		refs TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		editor_id TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL,
		PRIMARY KEY (deal_id, category)
	);
	CREATE TABLE IF NOT EXISTS close_plans (
		deal_id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		target_close_date TEXT,
		generated_at TEXT NOT NULL,
		generated_by TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS close_plan_items (
		item_id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		deal_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		sort_order INTEGER NOT NULL,
		due_date TEXT,
		owner_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		completed_at TEXT,
		task_refs TEXT NOT NULL DEFAULT '',
		UNIQUE (plan_id, sort_order)
	);
	CREATE TABLE IF NOT EXISTS risk_scores (
		score_id TEXT PRIMARY KEY,
		deal_id TEXT NOT NULL,
		total REAL NOT NULL,
		state TEXT NOT NULL,
		factors TEXT NOT NULL,
		computed_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_risk_scores_deal ON risk_scores (deal_id, computed_at DESC);
	CREATE TABLE IF NOT EXISTS enforcement_events (
		event_id TEXT PRIMARY KEY,
		deal_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		reason TEXT NOT NULL,
		resulting_state TEXT NOT NULL,
		actor_id TEXT NOT NULL DEFAULT '',
		at TEXT NOT NULL,
		UNIQUE (deal_id, seq)
	);
	CREATE TABLE IF NOT EXISTS proof_packs (
		pack_id TEXT PRIMARY KEY,
		deal_id TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		payload TEXT NOT NULL,
		generated_by TEXT NOT NULL,
		generated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_proof_packs_deal ON proof_packs (deal_id, generated_at DESC);
	CREATE TABLE IF NOT EXISTS stakeholders (
		deal_id TEXT NOT NULL,
		contact_id TEXT NOT NULL,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (deal_id, contact_id)
	);
	CREATE TABLE IF NOT EXISTS activities (
		id TEXT PRIMARY KEY,
		deal_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		occurred_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_activities_deal ON activities (deal_id, occurred_at DESC);
	`
	if _, err := s.db.ExecContext(context.Background(), schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// dsn appends the driver parameter that turns every transaction into BEGIN
// IMMEDIATE, so the write lock is taken up front instead of upgraded mid-way.
func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path + "&_txlock=immediate"
	}
	return path + "?_txlock=immediate"
}

// immediate starts a write transaction. The _txlock=immediate DSN parameter
// makes BeginTx issue BEGIN IMMEDIATE, so two regenerations for the same deal
// serialize instead of interleaving.
func (s *Store) immediate(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, nil
}

// isBusy reports whether err is SQLite's lock-contention failure, which the
// engine surfaces as a CONFLICT so the caller resubmits the whole request.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func asConflict(err error, op string) error {
	if isBusy(err) {
		return contracts.NewConflict(fmt.Sprintf("%s: concurrent write detected, resubmit the request", op))
	}
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

// refs are stored newline-joined; empty string means none.
func joinRefs(refs []string) string {
	return strings.Join(refs, "\n")
}

func splitRefs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return contracts.NewNotFound(what + " not found")
	}
	return err
}
