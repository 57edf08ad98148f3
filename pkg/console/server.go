// Package console exposes the governance engine over HTTP: the evidence
// ledger, close-plan generator, risk scorer, enforcement gate and proof-pack
// service, behind JWT auth, per-IP rate limiting and RFC 7807 error responses.
package console

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dealforge/governor/pkg/api"
	"github.com/dealforge/governor/pkg/auth"
	"github.com/dealforge/governor/pkg/closeplan"
	"github.com/dealforge/governor/pkg/enforcement"
	"github.com/dealforge/governor/pkg/evidence"
	"github.com/dealforge/governor/pkg/observability"
	"github.com/dealforge/governor/pkg/proofpack"
	"github.com/dealforge/governor/pkg/risk"
)

const maxBodyBytes = 1 << 20

// Server is the HTTP surface over the governance engines.
type Server struct {
	ledger *evidence.Ledger
	scorer *risk.Scorer
	plans  *closeplan.Generator
	gate   *enforcement.Gate
	packs  *proofpack.Service
	obs    *observability.Provider
	logger *slog.Logger
}

// NewServer wires the engines into a server. The observability provider may
// be nil when telemetry is disabled.
func NewServer(ledger *evidence.Ledger, scorer *risk.Scorer, plans *closeplan.Generator, gate *enforcement.Gate, packs *proofpack.Service, obs *observability.Provider, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ledger: ledger,
		scorer: scorer,
		plans:  plans,
		gate:   gate,
		packs:  packs,
		obs:    obs,
		logger: logger.With("component", "console"),
	}
}

// Options configures the middleware chain around the routes.
type Options struct {
	Validator   *auth.JWTValidator
	CORSOrigins []string
	RateRPS     int
	RateBurst   int
}

// Handler builds the full route table with the middleware chain applied:
// request ID, CORS, rate limit, then auth in front of the mux.
func (s *Server) Handler(opts Options) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)

	mux.HandleFunc("GET /v1/deals/{id}/evidence", s.track("readEvidence", s.handleReadEvidence))
	mux.HandleFunc("PUT /v1/deals/{id}/evidence/{category}", s.track("upsertEvidence", s.handleUpsertEvidence))

	mux.HandleFunc("POST /v1/deals/{id}/close-plan", s.track("generateClosePlan", s.handleGeneratePlan))
	mux.HandleFunc("GET /v1/deals/{id}/close-plan", s.track("getClosePlan", s.handleGetPlan))
	mux.HandleFunc("PATCH /v1/deals/{id}/close-plan/items/{itemID}", s.track("updateClosePlanItem", s.handleUpdatePlanItem))

	mux.HandleFunc("POST /v1/deals/{id}/risk-score", s.track("computeRiskScore", s.handleComputeScore))
	mux.HandleFunc("GET /v1/deals/{id}/risk-score", s.track("getRiskScore", s.handleGetScore))

	mux.HandleFunc("POST /v1/deals/{id}/proof-packs", s.track("generateProofPack", s.handleGeneratePack))
	mux.HandleFunc("GET /v1/deals/{id}/proof-packs", s.track("listProofPacks", s.handleListPacks))

	mux.HandleFunc("PUT /v1/deals/{id}/enforcement", s.track("setEnforcementState", s.handleSetEnforcement))
	mux.HandleFunc("GET /v1/deals/{id}/enforcement", s.track("enforcementHistory", s.handleEnforcementHistory))

	mux.HandleFunc("PATCH /v1/deals/{id}", s.track("patchDeal", s.handlePatchDeal))

	var h http.Handler = auth.NewMiddleware(opts.Validator)(mux)
	if opts.RateRPS > 0 {
		h = api.NewGlobalRateLimiter(opts.RateRPS, opts.RateBurst).Middleware(h)
	}
	h = auth.CORSMiddleware(opts.CORSOrigins)(h)
	return auth.RequestIDMiddleware(h)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// track wraps a handler in a span plus RED metrics, recording server faults.
func (s *Server) track(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.obs == nil {
			h(w, r)
			return
		}
		ctx, done := s.obs.TrackOperation(r.Context(), name,
			attribute.String("deal.id", r.PathValue("id")),
		)
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r.WithContext(ctx))
		if sw.status >= http.StatusInternalServerError {
			done(fmt.Errorf("%s returned status %d", name, sw.status))
			return
		}
		done(nil)
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// decodeJSON reads a bounded request body. Unknown fields are rejected so
// typos in field names fail loudly instead of silently dropping data.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
