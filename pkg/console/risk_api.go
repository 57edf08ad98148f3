package console

import (
	"net/http"

	"github.com/dealforge/governor/pkg/api"
	"github.com/dealforge/governor/pkg/contracts"
)

type computeScoreResponse struct {
	Score      *contracts.RiskScore `json:"score"`
	AutoFrozen bool                 `json:"auto_frozen"`
}

type scoreHistoryResponse struct {
	DealID  string                `json:"deal_id"`
	History []contracts.RiskScore `json:"history"`
}

// handleComputeScore serves POST /v1/deals/{id}/risk-score. After the score
// is appended the enforcement gate evaluates the profile's freeze triggers;
// a trigger failure is logged but never voids the recorded score.
func (s *Server) handleComputeScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dealID := r.PathValue("id")

	sc, err := s.scorer.ComputeAndRecord(ctx, dealID)
	if err != nil {
		api.WriteFault(w, r, err)
		return
	}

	frozen, err := s.gate.ApplyRiskTriggers(ctx, dealID, sc)
	if err != nil {
		s.logger.WarnContext(ctx, "freeze trigger evaluation failed",
			"deal_id", dealID, "error", err)
	}

	writeJSON(w, http.StatusCreated, computeScoreResponse{Score: sc, AutoFrozen: frozen})
}

// handleGetScore serves GET /v1/deals/{id}/risk-score. With ?history=true the
// full append-only history is returned, newest first.
func (s *Server) handleGetScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dealID := r.PathValue("id")

	if r.URL.Query().Get("history") == "true" {
		history, err := s.scorer.History(ctx, dealID)
		if err != nil {
			api.WriteFault(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, scoreHistoryResponse{DealID: dealID, History: history})
		return
	}

	sc, err := s.scorer.Latest(ctx, dealID)
	if err != nil {
		api.WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}
