package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dealforge/governor/pkg/contracts"
)

// ListEvidence returns the physically stored evidence rows for a deal.
// Logical completion (defaulting absent categories to MISSING) is the
// ledger's job, not the store's.
func (s *Store) ListEvidence(ctx context.Context, dealID string) ([]contracts.EvidenceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT deal_id, category, status, refs, notes, editor_id, updated_at
		FROM evidence WHERE deal_id = ? ORDER BY category`, dealID)
	if err != nil {
		return nil, fmt.Errorf("list evidence for %s: %w", dealID, err)
	}
	defer func() { _ = rows.Close() }()

	var recs []contracts.EvidenceRecord
	for rows.Next() {
		var (
			r         contracts.EvidenceRecord
			category  string
			status    string
			refs      string
			updatedAt string
		)
		if err := rows.Scan(&r.DealID, &category, &status, &refs, &r.Notes, &r.EditorID, &updatedAt); err != nil {
			return nil, err
		}
		r.Category = contracts.EvidenceCategory(category)
		r.Status = contracts.EvidenceStatus(status)
		r.Refs = splitRefs(refs)
		r.UpdatedAt = parseTime(updatedAt)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// UpsertEvidence creates or replaces the single record for (deal, category).
// Repeated identical upserts collapse to one stored row.
func (s *Store) UpsertEvidence(ctx context.Context, r *contracts.EvidenceRecord, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evidence (deal_id, category, status, refs, notes, editor_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (deal_id, category) DO UPDATE SET
			status = excluded.status,
			refs = excluded.refs,
			notes = excluded.notes,
			editor_id = excluded.editor_id,
			updated_at = excluded.updated_at`,
		r.DealID, string(r.Category), string(r.Status), joinRefs(r.Refs),
		r.Notes, r.EditorID, formatTime(now))
	if err != nil {
		return fmt.Errorf("upsert evidence %s/%s: %w", r.DealID, r.Category, asConflict(err, "upsert evidence"))
	}
	return nil
}
