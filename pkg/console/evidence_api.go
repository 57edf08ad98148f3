package console

import (
	"net/http"

	"github.com/dealforge/governor/pkg/api"
	"github.com/dealforge/governor/pkg/auth"
	"github.com/dealforge/governor/pkg/contracts"
)

type evidenceEnvelope struct {
	DealID   string                     `json:"deal_id"`
	Evidence []contracts.EvidenceRecord `json:"evidence"`
}

type upsertEvidenceRequest struct {
	Status string   `json:"status"`
	Refs   []string `json:"refs,omitempty"`
	Notes  string   `json:"notes,omitempty"`
}

// handleReadEvidence serves GET /v1/deals/{id}/evidence. The response always
// carries all eight categories; unrecorded ones appear as MISSING.
func (s *Server) handleReadEvidence(w http.ResponseWriter, r *http.Request) {
	dealID := r.PathValue("id")
	records, err := s.ledger.Read(r.Context(), dealID)
	if err != nil {
		api.WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evidenceEnvelope{DealID: dealID, Evidence: records})
}

// handleUpsertEvidence serves PUT /v1/deals/{id}/evidence/{category}.
func (s *Server) handleUpsertEvidence(w http.ResponseWriter, r *http.Request) {
	var req upsertEvidenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		api.WriteBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	ctx := r.Context()
	rec, err := s.ledger.Upsert(ctx,
		r.PathValue("id"), r.PathValue("category"),
		req.Status, req.Refs, req.Notes, auth.ActorID(ctx))
	if err != nil {
		api.WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
