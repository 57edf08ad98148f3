// Package proofpack builds immutable point-in-time snapshots of a deal's
// qualification state. A snapshot is written exactly once with a canonical
// content hash; later reads return the stored artifact byte-for-byte, never
// a recomputation.
package proofpack

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"github.com/dealforge/governor/pkg/contracts"
	"github.com/dealforge/governor/pkg/evidence"
)

// recentActivityLimit bounds how much of the activity log a snapshot embeds.
const recentActivityLimit = 10

// PackStore is the persistence surface the snapshot service needs.
type PackStore interface {
	GetDeal(ctx context.Context, dealID string) (*contracts.Deal, error)
	ListEvidence(ctx context.Context, dealID string) ([]contracts.EvidenceRecord, error)
	ListStakeholders(ctx context.Context, dealID string) ([]contracts.Stakeholder, error)
	RecentActivities(ctx context.Context, dealID string, limit int) ([]contracts.Activity, error)
	LatestRiskScore(ctx context.Context, dealID string) (*contracts.RiskScore, error)
	InsertProofPack(ctx context.Context, p *contracts.ProofPackSnapshot) error
	ListProofPacks(ctx context.Context, dealID string) ([]contracts.ProofPackSnapshot, error)
}

// Archiver exports the immutable artifact to external object storage. Nil
// disables archival; a failed export never fails the snapshot, which is
// already durable locally.
type Archiver interface {
	Archive(ctx context.Context, pack *contracts.ProofPackSnapshot, payload []byte) error
}

// Service assembles and persists proof packs.
type Service struct {
	store    PackStore
	archiver Archiver
	logger   *slog.Logger
	clock    func() time.Time
}

// NewService creates the snapshot service. archiver may be nil.
func NewService(store PackStore, archiver Archiver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, archiver: archiver, logger: logger, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Generate assembles a snapshot from the deal's current state and persists
// it write-once. When summary is empty an executive summary is composed from
// the captured state.
func (s *Service) Generate(ctx context.Context, dealID, authorID, summary string) (*contracts.ProofPackSnapshot, error) {
	deal, err := s.store.GetDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListEvidence(ctx, dealID)
	if err != nil {
		return nil, err
	}
	roster, err := s.store.ListStakeholders(ctx, dealID)
	if err != nil {
		return nil, err
	}
	activities, err := s.store.RecentActivities(ctx, dealID, recentActivityLimit)
	if err != nil {
		return nil, err
	}
	latest, err := s.store.LatestRiskScore(ctx, dealID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	pack := &contracts.ProofPackSnapshot{
		PackID:         uuid.New().String(),
		DealID:         deal.ID,
		DealName:       deal.Name,
		AccountName:    deal.AccountName,
		Amount:         deal.Amount,
		Stage:          deal.Stage,
		CloseDate:      deal.CloseDate,
		Evidence:       records,
		Stakeholders:   roster,
		RecentActivity: activities,
		WinProbability: WinProbability(records),
		Summary:        summary,
		GeneratedBy:    authorID,
		GeneratedAt:    now,
	}
	if latest != nil {
		pack.RiskTotal = latest.Total
		pack.RiskState = latest.State
	}
	if pack.Summary == "" {
		pack.Summary = composeSummary(deal, records, roster, pack.RiskState, now)
	}

	hash, err := contentHash(pack)
	if err != nil {
		return nil, fmt.Errorf("hash proof pack: %w", err)
	}
	pack.ContentHash = hash

	if err := s.store.InsertProofPack(ctx, pack); err != nil {
		return nil, err
	}

	s.logger.Info("proof pack generated",
		"deal_id", dealID,
		"pack_id", pack.PackID,
		"win_probability", pack.WinProbability,
		"content_hash", pack.ContentHash,
		"generated_by", authorID)

	if s.archiver != nil {
		payload, err := json.Marshal(pack)
		if err == nil {
			err = s.archiver.Archive(ctx, pack, payload)
		}
		if err != nil {
			s.logger.Warn("proof pack archival failed",
				"deal_id", dealID, "pack_id", pack.PackID, "error", err)
		}
	}
	return pack, nil
}

// List returns every snapshot for a deal, newest first. The deal must exist.
func (s *Service) List(ctx context.Context, dealID string) ([]contracts.ProofPackSnapshot, error) {
	if _, err := s.store.GetDeal(ctx, dealID); err != nil {
		return nil, err
	}
	return s.store.ListProofPacks(ctx, dealID)
}

// WinProbability is the rounded mean evidence strength over the stored
// records. No records means zero; absent categories do not dilute the mean.
func WinProbability(records []contracts.EvidenceRecord) int {
	if len(records) == 0 {
		return 0
	}
	var sum float64
	for _, r := range records {
		sum += evidence.Strength(r.Status)
	}
	return int(math.Round(sum / float64(len(records))))
}

// contentHash is the SHA-256 of the snapshot's JCS-canonical JSON, computed
// before the hash field itself is set. Two snapshots of identical state at
// identical times hash identically.
func contentHash(pack *contracts.ProofPackSnapshot) (string, error) {
	unhashed := *pack
	unhashed.ContentHash = ""
	raw, err := json.Marshal(&unhashed)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
