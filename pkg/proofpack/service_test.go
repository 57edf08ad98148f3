package proofpack

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealforge/governor/pkg/contracts"
	"github.com/dealforge/governor/pkg/evidence"
	"github.com/dealforge/governor/pkg/store"
)

func setupService(t *testing.T, archiver Archiver) (*Service, *store.Store, *evidence.Ledger) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return NewService(s, archiver, nil), s, evidence.NewLedger(s, nil)
}

func seedDeal(t *testing.T, s *store.Store, closeDate *time.Time) {
	t.Helper()
	require.NoError(t, s.PutDeal(context.Background(), &contracts.Deal{
		ID:             "d1",
		Name:           "Globex renewal",
		AccountName:    "Globex",
		Stage:          contracts.StageProcurement,
		Forecast:       contracts.ForecastCommit,
		CloseDate:      closeDate,
		Amount:         contracts.Micros(1_200_000_000_000),
		Enforcement:    contracts.EnforcementActive,
		StageEnteredAt: time.Now(),
	}))
}

func TestWinProbabilityIsMeanOfStoredStrengths(t *testing.T) {
	// (100 + 75 + 40 + 0) / 4 = 53.75, rounded to 54.
	records := []contracts.EvidenceRecord{
		{Status: contracts.StatusBuyerConfirmed},
		{Status: contracts.StatusEvidenced},
		{Status: contracts.StatusClaimed},
		{Status: contracts.StatusMissing},
	}
	assert.Equal(t, 54, WinProbability(records))
	assert.Equal(t, 0, WinProbability(nil))
}

func TestGenerateCapturesStateAndHash(t *testing.T) {
	svc, s, ledger := setupService(t, nil)
	ctx := context.Background()
	close := time.Now().Add(20 * 24 * time.Hour)
	seedDeal(t, s, &close)

	_, err := ledger.Upsert(ctx, "d1", "METRICS", "BUYER_CONFIRMED", []string{"crm:call/123"}, "", "u1")
	require.NoError(t, err)
	_, err = ledger.Upsert(ctx, "d1", "CHAMPION", "EVIDENCED", nil, "", "u1")
	require.NoError(t, err)

	require.NoError(t, s.PutStakeholder(ctx, "d1", &contracts.Stakeholder{
		ContactID: "c1", Name: "Dana Ruiz", Role: contracts.RoleChampion,
	}))
	require.NoError(t, s.AppendActivity(ctx, &contracts.Activity{
		ID: "a1", DealID: "d1", Kind: "call", Summary: "Pricing review", OccurredAt: time.Now(),
	}))

	pack, err := svc.Generate(ctx, "d1", "u9", "")
	require.NoError(t, err)

	assert.Equal(t, "Globex renewal", pack.DealName)
	assert.Len(t, pack.Evidence, 2, "snapshot embeds stored records only")
	assert.Equal(t, 88, pack.WinProbability, "(100+75)/2 rounded")
	assert.Len(t, pack.RecentActivity, 1)
	assert.NotEmpty(t, pack.ContentHash)
	assert.Equal(t, "u9", pack.GeneratedBy)

	// Composed summary names the champion and the open categories.
	assert.Contains(t, pack.Summary, "Dana Ruiz")
	assert.Contains(t, pack.Summary, "1 of 8")
	assert.Contains(t, pack.Summary, "Economic Buyer")
}

func TestSnapshotIsImmutableUnderLaterEdits(t *testing.T) {
	svc, s, ledger := setupService(t, nil)
	ctx := context.Background()
	seedDeal(t, s, nil)

	_, err := ledger.Upsert(ctx, "d1", "METRICS", "CLAIMED", nil, "", "u1")
	require.NoError(t, err)

	pack, err := svc.Generate(ctx, "d1", "u1", "manual summary")
	require.NoError(t, err)
	require.Equal(t, 40, pack.WinProbability)

	// Mutate everything the snapshot captured.
	_, err = ledger.Upsert(ctx, "d1", "METRICS", "BUYER_CONFIRMED", nil, "", "u1")
	require.NoError(t, err)

	stored, err := svc.List(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 40, stored[0].WinProbability, "stored artifact is returned verbatim")
	assert.Equal(t, pack.ContentHash, stored[0].ContentHash)
	assert.Equal(t, "manual summary", stored[0].Summary)
}

func TestListIsNewestFirst(t *testing.T) {
	svc, s, _ := setupService(t, nil)
	ctx := context.Background()
	seedDeal(t, s, nil)

	base := time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)
	tick := 0
	svc.WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Hour)
	})

	first, err := svc.Generate(ctx, "d1", "u1", "one")
	require.NoError(t, err)
	second, err := svc.Generate(ctx, "d1", "u1", "two")
	require.NoError(t, err)

	packs, err := svc.List(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, packs, 2)
	assert.Equal(t, second.PackID, packs[0].PackID)
	assert.Equal(t, first.PackID, packs[1].PackID)
}

func TestGenerateForMissingDealIsNotFound(t *testing.T) {
	svc, _, _ := setupService(t, nil)
	_, err := svc.Generate(context.Background(), "missing", "u1", "")
	require.True(t, contracts.IsKind(err, contracts.FaultNotFound))

	_, err = svc.List(context.Background(), "missing")
	require.True(t, contracts.IsKind(err, contracts.FaultNotFound))
}

type captureArchiver struct {
	packs    []string
	payloads [][]byte
}

func (c *captureArchiver) Archive(_ context.Context, pack *contracts.ProofPackSnapshot, payload []byte) error {
	c.packs = append(c.packs, pack.PackID)
	c.payloads = append(c.payloads, payload)
	return nil
}

func TestArchiverReceivesArtifact(t *testing.T) {
	arch := &captureArchiver{}
	svc, s, _ := setupService(t, arch)
	ctx := context.Background()
	seedDeal(t, s, nil)

	pack, err := svc.Generate(ctx, "d1", "u1", "s")
	require.NoError(t, err)
	require.Len(t, arch.packs, 1)
	assert.Equal(t, pack.PackID, arch.packs[0])
	assert.True(t, strings.Contains(string(arch.payloads[0]), pack.ContentHash))
}

func TestSummarySeparatesValidatedFromGaps(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	deal := &contracts.Deal{Name: "N", AccountName: "A", Stage: contracts.StageCommit}
	records := []contracts.EvidenceRecord{
		{Category: contracts.CategoryMetrics, Status: contracts.StatusBuyerConfirmed},
		{Category: contracts.CategoryChampion, Status: contracts.StatusEvidenced},
	}

	text := composeSummary(deal, records, nil, contracts.RiskYellow, now)
	assert.Contains(t, text, "1 of 8")
	assert.Contains(t, text, "Validated: Metrics.")

	// Only MISSING and CLAIMED categories are gaps. An EVIDENCED category is
	// neither validated nor a gap.
	idx := strings.Index(text, "Gaps:")
	require.GreaterOrEqual(t, idx, 0)
	gaps := text[idx:]
	assert.Contains(t, gaps, "Economic Buyer")
	assert.Contains(t, gaps, "Competition")
	assert.NotContains(t, gaps, "Champion")
	assert.NotContains(t, gaps, "Metrics")
}

func TestSummaryCoversSlippedCloseDate(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	past := now.Add(-14 * 24 * time.Hour)
	deal := &contracts.Deal{Name: "N", AccountName: "A", Stage: contracts.StageCommit, CloseDate: &past}

	text := composeSummary(deal, nil, nil, contracts.RiskRed, now)
	assert.Contains(t, text, "slipped 14 days ago")
	assert.Contains(t, text, "Risk state: RED")
	assert.Contains(t, text, "Neither a champion nor an economic buyer")
}
