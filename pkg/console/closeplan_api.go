package console

import (
	"errors"
	"io"
	"net/http"

	"github.com/dealforge/governor/pkg/api"
	"github.com/dealforge/governor/pkg/auth"
	"github.com/dealforge/governor/pkg/closeplan"
)

type generatePlanRequest struct {
	Items []closeplan.ExplicitItem `json:"items,omitempty"`
}

// handleGeneratePlan serves POST /v1/deals/{id}/close-plan. An empty body
// requests a fully derived plan; explicit items are used verbatim.
func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	var req generatePlanRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		api.WriteBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	ctx := r.Context()
	plan, err := s.plans.Generate(ctx, r.PathValue("id"), req.Items, auth.ActorID(ctx))
	if err != nil {
		api.WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

// handleGetPlan serves GET /v1/deals/{id}/close-plan.
func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.plans.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		api.WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// handleUpdatePlanItem serves PATCH /v1/deals/{id}/close-plan/items/{itemID}.
// Absent fields are left untouched.
func (s *Server) handleUpdatePlanItem(w http.ResponseWriter, r *http.Request) {
	var patch closeplan.ItemPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		api.WriteBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	item, err := s.plans.UpdateItem(r.Context(), r.PathValue("itemID"), patch)
	if err != nil {
		api.WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
