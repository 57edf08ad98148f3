package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dealforge/governor/pkg/contracts"
)

// InsertProofPack persists a snapshot exactly once. The full artifact is
// stored as its JSON payload; rows are never updated or deleted.
func (s *Store) InsertProofPack(ctx context.Context, p *contracts.ProofPackSnapshot) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("serialize proof pack: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO proof_packs (pack_id, deal_id, content_hash, payload, generated_by, generated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.PackID, p.DealID, p.ContentHash, string(payload), p.GeneratedBy, formatTime(p.GeneratedAt))
	if err != nil {
		return fmt.Errorf("insert proof pack %s: %w", p.PackID, asConflict(err, "insert proof pack"))
	}
	return nil
}

// ListProofPacks returns the full snapshot history for a deal, newest first.
func (s *Store) ListProofPacks(ctx context.Context, dealID string) ([]contracts.ProofPackSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM proof_packs WHERE deal_id = ?
		ORDER BY generated_at DESC, pack_id DESC`, dealID)
	if err != nil {
		return nil, fmt.Errorf("list proof packs for %s: %w", dealID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []contracts.ProofPackSnapshot
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var p contracts.ProofPackSnapshot
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("decode proof pack: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
