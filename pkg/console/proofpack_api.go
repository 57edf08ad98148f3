package console

import (
	"errors"
	"io"
	"net/http"

	"github.com/dealforge/governor/pkg/api"
	"github.com/dealforge/governor/pkg/auth"
	"github.com/dealforge/governor/pkg/contracts"
)

type generatePackRequest struct {
	Summary string `json:"executive_summary,omitempty"`
}

type packListResponse struct {
	DealID string                        `json:"deal_id"`
	Packs  []contracts.ProofPackSnapshot `json:"packs"`
}

// handleGeneratePack serves POST /v1/deals/{id}/proof-packs. An empty
// summary asks the service to compose one from deal state.
func (s *Server) handleGeneratePack(w http.ResponseWriter, r *http.Request) {
	var req generatePackRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		api.WriteBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	ctx := r.Context()
	pack, err := s.packs.Generate(ctx, r.PathValue("id"), auth.ActorID(ctx), req.Summary)
	if err != nil {
		api.WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pack)
}

// handleListPacks serves GET /v1/deals/{id}/proof-packs, newest first.
func (s *Server) handleListPacks(w http.ResponseWriter, r *http.Request) {
	dealID := r.PathValue("id")
	packs, err := s.packs.List(r.Context(), dealID)
	if err != nil {
		api.WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, packListResponse{DealID: dealID, Packs: packs})
}
