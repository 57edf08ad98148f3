package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dealforge/governor/pkg/contracts"
)

// AppendRiskScore appends one immutable history entry. Prior entries are
// never touched.
func (s *Store) AppendRiskScore(ctx context.Context, sc *contracts.RiskScore) error {
	factors, err := json.Marshal(sc.Factors)
	if err != nil {
		return fmt.Errorf("serialize risk factors: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO risk_scores (score_id, deal_id, total, state, factors, computed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sc.ScoreID, sc.DealID, sc.Total, string(sc.State), string(factors), formatTime(sc.ComputedAt))
	if err != nil {
		return fmt.Errorf("append risk score for %s: %w", sc.DealID, asConflict(err, "append risk score"))
	}
	return nil
}

// LatestRiskScore is the pure most-recent query over the append-only history.
// Returns (nil, nil) when no score has been computed yet.
func (s *Store) LatestRiskScore(ctx context.Context, dealID string) (*contracts.RiskScore, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT score_id, deal_id, total, state, factors, computed_at
		FROM risk_scores WHERE deal_id = ?
		ORDER BY computed_at DESC, score_id DESC LIMIT 1`, dealID)
	sc, err := scanRiskScore(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sc, nil
}

// RiskHistory returns the full history newest-first.
func (s *Store) RiskHistory(ctx context.Context, dealID string) ([]contracts.RiskScore, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT score_id, deal_id, total, state, factors, computed_at
		FROM risk_scores WHERE deal_id = ?
		ORDER BY computed_at DESC, score_id DESC`, dealID)
	if err != nil {
		return nil, fmt.Errorf("risk history for %s: %w", dealID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []contracts.RiskScore
	for rows.Next() {
		sc, err := scanRiskScore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sc)
	}
	return out, rows.Err()
}

func scanRiskScore(row rowScanner) (*contracts.RiskScore, error) {
	var (
		sc         contracts.RiskScore
		state      string
		factors    string
		computedAt string
	)
	if err := row.Scan(&sc.ScoreID, &sc.DealID, &sc.Total, &state, &factors, &computedAt); err != nil {
		return nil, err
	}
	sc.State = contracts.RiskState(state)
	sc.ComputedAt = parseTime(computedAt)
	if factors != "" {
		if err := json.Unmarshal([]byte(factors), &sc.Factors); err != nil {
			return nil, fmt.Errorf("decode risk factors: %w", err)
		}
	}
	return &sc, nil
}
