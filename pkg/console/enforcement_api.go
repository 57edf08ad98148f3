package console

import (
	"net/http"

	"github.com/dealforge/governor/pkg/api"
	"github.com/dealforge/governor/pkg/auth"
	"github.com/dealforge/governor/pkg/contracts"
)

type setEnforcementRequest struct {
	State  string `json:"state"`
	Reason string `json:"reason,omitempty"`
}

type enforcementHistoryResponse struct {
	DealID string                       `json:"deal_id"`
	Events []contracts.EnforcementEvent `json:"events"`
}

// handleSetEnforcement serves PUT /v1/deals/{id}/enforcement. Freezing
// requires a reason code; repeating the current state is a no-op that echoes
// the latest event instead of appending a duplicate.
func (s *Server) handleSetEnforcement(w http.ResponseWriter, r *http.Request) {
	var req setEnforcementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		api.WriteBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	state, err := contracts.ParseEnforcementState(req.State)
	if err != nil {
		api.WriteFault(w, r, err)
		return
	}

	var reason contracts.ReasonCode
	if req.Reason != "" {
		reason, err = contracts.ParseReasonCode(req.Reason)
		if err != nil {
			api.WriteFault(w, r, err)
			return
		}
	}

	ctx := r.Context()
	event, err := s.gate.SetState(ctx, r.PathValue("id"), state, reason, auth.ActorID(ctx))
	if err != nil {
		api.WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// handleEnforcementHistory serves GET /v1/deals/{id}/enforcement: the
// append-only event log, oldest first.
func (s *Server) handleEnforcementHistory(w http.ResponseWriter, r *http.Request) {
	dealID := r.PathValue("id")
	events, err := s.gate.History(r.Context(), dealID)
	if err != nil {
		api.WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, enforcementHistoryResponse{DealID: dealID, Events: events})
}
