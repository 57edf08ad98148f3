package store

import (
	"context"
	"testing"
	"time"

	"github.com/dealforge/governor/pkg/contracts"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedDeal(t *testing.T, s *Store, id string) {
	t.Helper()
	close := time.Now().Add(30 * 24 * time.Hour)
	err := s.PutDeal(context.Background(), &contracts.Deal{
		ID:             id,
		Name:           "Acme expansion",
		AccountName:    "Acme Corp",
		Stage:          contracts.StageDiscovery,
		Forecast:       contracts.ForecastPipeline,
		CloseDate:      &close,
		Amount:         250_000_000_000,
		Enforcement:    contracts.EnforcementActive,
		StageEnteredAt: time.Now().Add(-48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("seed deal: %v", err)
	}
}

func TestUpsertEvidenceIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seedDeal(t, s, "d1")

	rec := &contracts.EvidenceRecord{
		DealID:   "d1",
		Category: contracts.CategoryChampion,
		Status:   contracts.StatusEvidenced,
		Refs:     []string{"call-2026-08-12"},
		EditorID: "u1",
	}
	now := time.Now()
	if err := s.UpsertEvidence(ctx, rec, now); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertEvidence(ctx, rec, now); err != nil {
		t.Fatal(err)
	}

	recs, err := s.ListEvidence(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected exactly one stored record, got %d", len(recs))
	}
	if recs[0].Status != contracts.StatusEvidenced {
		t.Fatalf("expected EVIDENCED, got %s", recs[0].Status)
	}
}

func TestReplacePlanDiscardsPreviousItems(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seedDeal(t, s, "d1")

	first := &contracts.ClosePlan{
		PlanID:      "p1",
		DealID:      "d1",
		GeneratedAt: time.Now(),
		Items: []contracts.ClosePlanItem{
			{ItemID: "i1", Title: "Develop a champion", SortOrder: 0, Status: contracts.ItemPending},
			{ItemID: "i2", Title: "Map paper process", SortOrder: 1, Status: contracts.ItemPending},
		},
	}
	if err := s.ReplacePlan(ctx, first); err != nil {
		t.Fatal(err)
	}

	second := &contracts.ClosePlan{
		PlanID:      "p2",
		DealID:      "d1",
		GeneratedAt: time.Now(),
		Items: []contracts.ClosePlanItem{
			{ItemID: "i3", Title: "Identify economic buyer", SortOrder: 0, Status: contracts.ItemPending},
		},
	}
	if err := s.ReplacePlan(ctx, second); err != nil {
		t.Fatal(err)
	}

	plan, err := s.GetPlan(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if plan.PlanID != "p2" {
		t.Fatalf("expected p2, got %s", plan.PlanID)
	}
	if len(plan.Items) != 1 {
		t.Fatalf("expected the previous item set to be discarded entirely, got %d items", len(plan.Items))
	}
	if plan.Items[0].Title != "Identify economic buyer" {
		t.Fatalf("unexpected surviving item %q", plan.Items[0].Title)
	}
}

func TestEnforcementEventsTotallyOrdered(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seedDeal(t, s, "d1")

	for i, step := range []struct {
		state  contracts.EnforcementState
		reason contracts.ReasonCode
	}{
		{contracts.EnforcementFrozen, contracts.ReasonRiskRed},
		{contracts.EnforcementActive, contracts.ReasonManualClear},
		{contracts.EnforcementFrozen, contracts.ReasonComplianceHold},
	} {
		ev, appended, err := s.AppendEnforcementTransition(ctx, &contracts.EnforcementEvent{
			EventID:   "ev" + string(rune('a'+i)),
			DealID:    "d1",
			Reason:    step.reason,
			State:     step.state,
			Timestamp: time.Now(),
		})
		if err != nil {
			t.Fatal(err)
		}
		if !appended {
			t.Fatalf("transition %d not appended", i)
		}
		if ev.Seq != uint64(i+1) {
			t.Fatalf("expected seq %d, got %d", i+1, ev.Seq)
		}
	}

	head, err := s.LatestEnforcementEvent(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if head.Seq != 3 || head.State != contracts.EnforcementFrozen {
		t.Fatalf("unexpected log head: seq=%d state=%s", head.Seq, head.State)
	}

	// The denormalized field follows the log.
	deal, err := s.GetDeal(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if deal.Enforcement != contracts.EnforcementFrozen || deal.FrozenReason != contracts.ReasonComplianceHold {
		t.Fatalf("deal fields diverged from log: %s/%s", deal.Enforcement, deal.FrozenReason)
	}
}

func TestSameStateTransitionRecordsNothing(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seedDeal(t, s, "d1")

	first, appended, err := s.AppendEnforcementTransition(ctx, &contracts.EnforcementEvent{
		EventID: "ev1", DealID: "d1", Reason: contracts.ReasonRiskRed,
		State: contracts.EnforcementFrozen, Timestamp: time.Now(),
	})
	if err != nil || !appended {
		t.Fatalf("first transition: appended=%v err=%v", appended, err)
	}

	// The head already carries FROZEN; the check runs under the same write
	// lock as the insert would, so a duplicate can never slip in between.
	repeat, appended, err := s.AppendEnforcementTransition(ctx, &contracts.EnforcementEvent{
		EventID: "ev2", DealID: "d1", Reason: contracts.ReasonManualFreeze,
		State: contracts.EnforcementFrozen, Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if appended {
		t.Fatal("same-state request appended a second event")
	}
	if repeat.EventID != first.EventID || repeat.Seq != first.Seq {
		t.Fatalf("expected the existing head back, got %+v", repeat)
	}

	log, err := s.ListEnforcementEvents(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 1 {
		t.Fatalf("expected exactly one event per transition, got %d", len(log))
	}
}

func TestSameStateTransitionRepairsDivergedField(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seedDeal(t, s, "d1")

	if _, _, err := s.AppendEnforcementTransition(ctx, &contracts.EnforcementEvent{
		EventID: "ev1", DealID: "d1", Reason: contracts.ReasonRiskRed,
		State: contracts.EnforcementFrozen, Timestamp: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}

	// Out-of-band write leaves the denormalized field diverged from the log.
	deal, err := s.GetDeal(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	deal.Enforcement = contracts.EnforcementActive
	deal.FrozenReason = ""
	if err := s.PutDeal(ctx, deal); err != nil {
		t.Fatal(err)
	}

	if _, appended, err := s.AppendEnforcementTransition(ctx, &contracts.EnforcementEvent{
		EventID: "ev2", DealID: "d1", Reason: contracts.ReasonRiskRed,
		State: contracts.EnforcementFrozen, Timestamp: time.Now(),
	}); err != nil || appended {
		t.Fatalf("expected a repairing no-op: appended=%v err=%v", appended, err)
	}

	deal, err = s.GetDeal(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if deal.Enforcement != contracts.EnforcementFrozen || deal.FrozenReason != contracts.ReasonRiskRed {
		t.Fatalf("diverged field not repaired from the log: %s/%s", deal.Enforcement, deal.FrozenReason)
	}
}

func TestDSNRequestsImmediateTransactions(t *testing.T) {
	if got := dsn("governor.db"); got != "governor.db?_txlock=immediate" {
		t.Fatalf("unexpected dsn %q", got)
	}
	if got := dsn("file:shared.db?cache=shared"); got != "file:shared.db?cache=shared&_txlock=immediate" {
		t.Fatalf("unexpected dsn %q", got)
	}
}

func TestLatestRiskScoreOverHistory(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seedDeal(t, s, "d1")

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, total := range []float64{35, 55, 72} {
		err := s.AppendRiskScore(ctx, &contracts.RiskScore{
			ScoreID:    "sc" + string(rune('a'+i)),
			DealID:     "d1",
			Total:      total,
			State:      contracts.RiskYellow,
			ComputedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	latest, err := s.LatestRiskScore(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if latest.Total != 72 {
		t.Fatalf("expected latest total 72, got %.0f", latest.Total)
	}

	history, err := s.RiskHistory(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 {
		t.Fatalf("history must be append-only, got %d entries", len(history))
	}
}

func TestProofPacksNewestFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seedDeal(t, s, "d1")

	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := s.InsertProofPack(ctx, &contracts.ProofPackSnapshot{
			PackID:      "pp" + string(rune('a'+i)),
			DealID:      "d1",
			DealName:    "Acme expansion",
			ContentHash: "sha256:stub",
			GeneratedBy: "u1",
			GeneratedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	packs, err := s.ListProofPacks(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if len(packs) != 3 {
		t.Fatalf("expected 3 packs, got %d", len(packs))
	}
	if packs[0].PackID != "ppc" {
		t.Fatalf("expected newest first, got %s", packs[0].PackID)
	}
}

func TestPatchMissingDealIsNotFound(t *testing.T) {
	s := setupTestStore(t)
	err := s.PatchAmount(context.Background(), "missing", 100)
	if !contracts.IsKind(err, contracts.FaultNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
