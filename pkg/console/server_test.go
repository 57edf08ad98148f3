package console

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/dealforge/governor/pkg/auth"
	"github.com/dealforge/governor/pkg/closeplan"
	"github.com/dealforge/governor/pkg/contracts"
	"github.com/dealforge/governor/pkg/enforcement"
	"github.com/dealforge/governor/pkg/evidence"
	"github.com/dealforge/governor/pkg/policy"
	"github.com/dealforge/governor/pkg/proofpack"
	"github.com/dealforge/governor/pkg/risk"
	"github.com/dealforge/governor/pkg/store"
)

const testSecret = "console-test-secret"

func setupHandler(t *testing.T) (http.Handler, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	profile, err := policy.Default()
	require.NoError(t, err)
	triggers, err := policy.NewFreezeTriggers(profile.Triggers)
	require.NoError(t, err)

	ledger := evidence.NewLedger(s, nil)
	scorer := risk.NewScorer(s, ledger, profile.Risk, nil)
	plans := closeplan.NewGenerator(s, ledger, nil, nil)
	gate := enforcement.NewGate(s, triggers, nil)
	packs := proofpack.NewService(s, nil, nil)

	srv := NewServer(ledger, scorer, plans, gate, packs, nil, nil)
	return srv.Handler(Options{Validator: auth.NewJWTValidator(testSecret)}), s
}

func bearerToken(t *testing.T) string {
	t.Helper()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "rep-7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Roles: []string{"seller"},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+bearerToken(t))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func seedHTTPDeal(t *testing.T, s *store.Store, stage contracts.DealStage) {
	t.Helper()
	close := time.Now().Add(30 * 24 * time.Hour)
	require.NoError(t, s.PutDeal(context.Background(), &contracts.Deal{
		ID:             "d1",
		Name:           "Initech renewal",
		AccountName:    "Initech",
		Stage:          stage,
		Forecast:       contracts.ForecastBestCase,
		CloseDate:      &close,
		Amount:         250_000_000_000,
		Enforcement:    contracts.EnforcementActive,
		StageEnteredAt: time.Now(),
	}))
}

func TestHealthzIsPublic(t *testing.T) {
	h, _ := setupHandler(t)

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestRoutesRequireAuth(t *testing.T) {
	h, s := setupHandler(t)
	seedHTTPDeal(t, s, contracts.StageDiscovery)

	req := httptest.NewRequest("GET", "/v1/deals/d1/evidence", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEvidenceRoundTrip(t *testing.T) {
	h, s := setupHandler(t)
	seedHTTPDeal(t, s, contracts.StageDiscovery)

	w := doRequest(t, h, "PUT", "/v1/deals/d1/evidence/ECONOMIC_BUYER",
		`{"status":"BUYER_CONFIRMED","refs":["call-recording-44"],"notes":"CFO confirmed budget"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var rec contracts.EvidenceRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	require.Equal(t, contracts.StatusBuyerConfirmed, rec.Status)
	require.Equal(t, "rep-7", rec.EditorID)

	w = doRequest(t, h, "GET", "/v1/deals/d1/evidence", "")
	require.Equal(t, http.StatusOK, w.Code)

	var env evidenceEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Len(t, env.Evidence, len(contracts.CanonicalCategories()))
}

func TestUnknownCategoryIsProblemDocument(t *testing.T) {
	h, s := setupHandler(t)
	seedHTTPDeal(t, s, contracts.StageDiscovery)

	w := doRequest(t, h, "PUT", "/v1/deals/d1/evidence/VIBES", `{"status":"CLAIMED"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	require.Contains(t, w.Body.String(), "VALIDATION")
}

func TestMissingDealIsNotFound(t *testing.T) {
	h, _ := setupHandler(t)

	w := doRequest(t, h, "GET", "/v1/deals/ghost/evidence", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestClosePlanLifecycleOverHTTP(t *testing.T) {
	h, s := setupHandler(t)
	seedHTTPDeal(t, s, contracts.StageDiscovery)

	w := doRequest(t, h, "POST", "/v1/deals/d1/close-plan", "")
	require.Equal(t, http.StatusCreated, w.Code)

	var plan contracts.ClosePlan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plan))
	require.NotEmpty(t, plan.Items)

	itemID := plan.Items[0].ItemID
	w = doRequest(t, h, "PATCH", "/v1/deals/d1/close-plan/items/"+itemID,
		`{"status":"COMPLETE"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var item contracts.ClosePlanItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
	require.Equal(t, contracts.ItemComplete, item.Status)
	require.NotNil(t, item.CompletedAt)

	w = doRequest(t, h, "GET", "/v1/deals/d1/close-plan", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestFrozenDealRejectsPatchWithLocked(t *testing.T) {
	h, s := setupHandler(t)
	seedHTTPDeal(t, s, contracts.StageProposal)

	w := doRequest(t, h, "PUT", "/v1/deals/d1/enforcement",
		`{"state":"FROZEN","reason":"COMPLIANCE_HOLD"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, h, "PATCH", "/v1/deals/d1", `{"stage":"LEGAL"}`)
	require.Equal(t, http.StatusLocked, w.Code)
	require.Contains(t, w.Body.String(), "COMPLIANCE_HOLD")

	// Unfreeze, then the same patch goes through.
	w = doRequest(t, h, "PUT", "/v1/deals/d1/enforcement",
		`{"state":"ACTIVE","reason":"MANUAL_CLEAR"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, h, "PATCH", "/v1/deals/d1", `{"stage":"LEGAL"}`)
	require.Equal(t, http.StatusNoContent, w.Code)

	deal, err := s.GetDeal(context.Background(), "d1")
	require.NoError(t, err)
	require.Equal(t, contracts.StageLegal, deal.Stage)
}

func TestFreezeWithoutReasonIsRejected(t *testing.T) {
	h, s := setupHandler(t)
	seedHTTPDeal(t, s, contracts.StageProposal)

	w := doRequest(t, h, "PUT", "/v1/deals/d1/enforcement", `{"state":"FROZEN"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestComputeScoreAutoFreezesRedCommitDeal(t *testing.T) {
	h, s := setupHandler(t)
	// No evidence at all on a COMMIT-stage deal scores deep red, which the
	// default profile's first trigger converts into a freeze.
	seedHTTPDeal(t, s, contracts.StageCommit)

	w := doRequest(t, h, "POST", "/v1/deals/d1/risk-score", "")
	require.Equal(t, http.StatusCreated, w.Code)

	var resp computeScoreResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, contracts.RiskRed, resp.Score.State)
	require.True(t, resp.AutoFrozen)

	w = doRequest(t, h, "GET", "/v1/deals/d1/enforcement", "")
	require.Equal(t, http.StatusOK, w.Code)

	var hist enforcementHistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	require.NotEmpty(t, hist.Events)
	require.Equal(t, contracts.EnforcementFrozen, hist.Events[len(hist.Events)-1].State)
	require.Equal(t, contracts.ReasonRiskRed, hist.Events[len(hist.Events)-1].Reason)
}

func TestRiskScoreHistoryQuery(t *testing.T) {
	h, s := setupHandler(t)
	seedHTTPDeal(t, s, contracts.StageDiscovery)

	require.Equal(t, http.StatusCreated, doRequest(t, h, "POST", "/v1/deals/d1/risk-score", "").Code)
	require.Equal(t, http.StatusCreated, doRequest(t, h, "POST", "/v1/deals/d1/risk-score", "").Code)

	w := doRequest(t, h, "GET", "/v1/deals/d1/risk-score?history=true", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp scoreHistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.History, 2)
}

func TestProofPackOverHTTP(t *testing.T) {
	h, s := setupHandler(t)
	seedHTTPDeal(t, s, contracts.StageProposal)

	w := doRequest(t, h, "POST", "/v1/deals/d1/proof-packs", "")
	require.Equal(t, http.StatusCreated, w.Code)

	var pack contracts.ProofPackSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pack))
	require.NotEmpty(t, pack.ContentHash)
	require.Equal(t, "rep-7", pack.GeneratedBy)

	w = doRequest(t, h, "GET", "/v1/deals/d1/proof-packs", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list packListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Packs, 1)
}

func TestAmountCrossesWireAsString(t *testing.T) {
	h, s := setupHandler(t)
	seedHTTPDeal(t, s, contracts.StageDiscovery)

	w := doRequest(t, h, "PATCH", "/v1/deals/d1", `{"amount_micros":"300000000000"}`)
	require.Equal(t, http.StatusNoContent, w.Code)

	deal, err := s.GetDeal(context.Background(), "d1")
	require.NoError(t, err)
	require.Equal(t, contracts.Micros(300_000_000_000), deal.Amount)

	// Bare numbers are rejected at the codec.
	w = doRequest(t, h, "PATCH", "/v1/deals/d1", `{"amount_micros":300}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEmptyPatchIsRejected(t *testing.T) {
	h, s := setupHandler(t)
	seedHTTPDeal(t, s, contracts.StageDiscovery)

	w := doRequest(t, h, "PATCH", "/v1/deals/d1", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
