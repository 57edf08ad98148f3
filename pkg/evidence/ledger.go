// Package evidence provides the Evidence Ledger, the per-category
// qualification record of a deal. The ledger is always logically complete: reads return
// one entry per defined category even when the backing rows are sparse, and
// writes are validated against the closed category/status domains before
// anything is persisted.
package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dealforge/governor/pkg/contracts"
)

// LedgerStore is the persistence surface the ledger needs.
type LedgerStore interface {
	GetDeal(ctx context.Context, dealID string) (*contracts.Deal, error)
	ListEvidence(ctx context.Context, dealID string) ([]contracts.EvidenceRecord, error)
	UpsertEvidence(ctx context.Context, r *contracts.EvidenceRecord, now time.Time) error
}

// Ledger stores and serves qualification evidence.
type Ledger struct {
	store  LedgerStore
	logger *slog.Logger
	clock  func() time.Time
}

// NewLedger creates a ledger over the given store.
func NewLedger(store LedgerStore, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: store, logger: logger, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

// Read returns exactly one record per defined category in canonical order,
// defaulting absent categories to MISSING with empty references and notes.
func (l *Ledger) Read(ctx context.Context, dealID string) ([]contracts.EvidenceRecord, error) {
	if _, err := l.store.GetDeal(ctx, dealID); err != nil {
		return nil, err
	}

	stored, err := l.store.ListEvidence(ctx, dealID)
	if err != nil {
		return nil, err
	}
	byCategory := make(map[contracts.EvidenceCategory]contracts.EvidenceRecord, len(stored))
	for _, r := range stored {
		byCategory[r.Category] = r
	}

	out := make([]contracts.EvidenceRecord, 0, len(contracts.CanonicalCategories()))
	for _, cat := range contracts.CanonicalCategories() {
		if r, ok := byCategory[cat]; ok {
			out = append(out, r)
			continue
		}
		out = append(out, contracts.EvidenceRecord{
			DealID:   dealID,
			Category: cat,
			Status:   contracts.StatusMissing,
		})
	}
	return out, nil
}

// Upsert creates or replaces the single record for (deal, category). The
// category and status are validated against their closed domains before any
// write; repeated identical upserts are safe to retry.
func (l *Ledger) Upsert(ctx context.Context, dealID, category, status string, refs []string, notes, editorID string) (*contracts.EvidenceRecord, error) {
	cat, err := contracts.ParseEvidenceCategory(category)
	if err != nil {
		return nil, err
	}
	st, err := contracts.ParseEvidenceStatus(status)
	if err != nil {
		return nil, err
	}
	if dealID == "" {
		return nil, contracts.NewValidation("deal id is required")
	}
	if _, err := l.store.GetDeal(ctx, dealID); err != nil {
		return nil, err
	}

	now := l.clock()
	rec := &contracts.EvidenceRecord{
		DealID:    dealID,
		Category:  cat,
		Status:    st,
		Refs:      refs,
		Notes:     notes,
		EditorID:  editorID,
		UpdatedAt: now,
	}
	if err := l.store.UpsertEvidence(ctx, rec, now); err != nil {
		return nil, fmt.Errorf("upsert evidence: %w", err)
	}

	l.logger.Info("evidence upserted",
		"deal_id", dealID,
		"category", string(cat),
		"status", string(st),
		"editor_id", editorID)
	return rec, nil
}

// Strength maps an evidence status to its qualification strength. It is the
// single mapping shared by the risk scorer and the win-probability
// computation.
func Strength(status contracts.EvidenceStatus) float64 {
	switch status {
	case contracts.StatusClaimed:
		return 40
	case contracts.StatusEvidenced:
		return 75
	case contracts.StatusBuyerConfirmed:
		return 100
	default:
		return 0
	}
}
