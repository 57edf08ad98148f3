package risk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dealforge/governor/pkg/contracts"
)

// ScoreStore is the persistence surface the scorer needs.
type ScoreStore interface {
	GetDeal(ctx context.Context, dealID string) (*contracts.Deal, error)
	ListStakeholders(ctx context.Context, dealID string) ([]contracts.Stakeholder, error)
	AppendRiskScore(ctx context.Context, sc *contracts.RiskScore) error
	LatestRiskScore(ctx context.Context, dealID string) (*contracts.RiskScore, error)
	RiskHistory(ctx context.Context, dealID string) ([]contracts.RiskScore, error)
}

// EvidenceReader supplies the logically complete ledger read.
type EvidenceReader interface {
	Read(ctx context.Context, dealID string) ([]contracts.EvidenceRecord, error)
}

// Scorer snapshots current inputs, scores them, and appends to the immutable
// history. Recomputation is externally triggered, not scheduled, so the
// latest entry may lag the most recent evidence write by one cycle.
type Scorer struct {
	store  ScoreStore
	ledger EvidenceReader
	policy Policy
	logger *slog.Logger
	clock  func() time.Time
}

// NewScorer creates a scorer with the given policy.
func NewScorer(store ScoreStore, ledger EvidenceReader, policy Policy, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{store: store, ledger: ledger, policy: policy, logger: logger, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (s *Scorer) WithClock(clock func() time.Time) *Scorer {
	s.clock = clock
	return s
}

// ComputeAndRecord scores the deal's current state and appends one history
// entry. Prior entries are never overwritten.
func (s *Scorer) ComputeAndRecord(ctx context.Context, dealID string) (*contracts.RiskScore, error) {
	deal, err := s.store.GetDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	records, err := s.ledger.Read(ctx, dealID)
	if err != nil {
		return nil, err
	}
	roster, err := s.store.ListStakeholders(ctx, dealID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	bd := Compute(Inputs{
		Deal:         *deal,
		Evidence:     records,
		Stakeholders: roster,
		Now:          now,
	}, s.policy)

	sc := &contracts.RiskScore{
		ScoreID:    uuid.New().String(),
		DealID:     dealID,
		Total:      bd.Total,
		State:      bd.State,
		Factors:    bd.Factors,
		ComputedAt: now,
	}
	if err := s.store.AppendRiskScore(ctx, sc); err != nil {
		return nil, fmt.Errorf("record risk score: %w", err)
	}

	s.logger.Info("risk score recorded",
		"deal_id", dealID,
		"total", bd.Total,
		"state", string(bd.State))
	return sc, nil
}

// Latest returns the most recent history entry, or NOT_FOUND when the deal
// has never been scored.
func (s *Scorer) Latest(ctx context.Context, dealID string) (*contracts.RiskScore, error) {
	if _, err := s.store.GetDeal(ctx, dealID); err != nil {
		return nil, err
	}
	sc, err := s.store.LatestRiskScore(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, contracts.NewNotFound("no risk score computed for deal " + dealID)
	}
	return sc, nil
}

// History returns the full append-only score history, newest first.
func (s *Scorer) History(ctx context.Context, dealID string) ([]contracts.RiskScore, error) {
	if _, err := s.store.GetDeal(ctx, dealID); err != nil {
		return nil, err
	}
	return s.store.RiskHistory(ctx, dealID)
}
