package console

import (
	"net/http"

	"github.com/dealforge/governor/pkg/api"
	"github.com/dealforge/governor/pkg/auth"
	"github.com/dealforge/governor/pkg/contracts"
)

type patchDealRequest struct {
	Stage    *string           `json:"stage,omitempty"`
	Forecast *string           `json:"forecast_category,omitempty"`
	Amount   *contracts.Micros `json:"amount_micros,omitempty"`
}

// handlePatchDeal serves PATCH /v1/deals/{id} for the three gated fields.
// Every present field passes through the enforcement gate, so a frozen deal
// rejects the whole patch with 423.
func (s *Server) handlePatchDeal(w http.ResponseWriter, r *http.Request) {
	var req patchDealRequest
	if err := decodeJSON(w, r, &req); err != nil {
		api.WriteBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.Stage == nil && req.Forecast == nil && req.Amount == nil {
		api.WriteBadRequest(w, "patch must set at least one of stage, forecast_category, amount_micros")
		return
	}

	ctx := r.Context()
	dealID := r.PathValue("id")
	actor := auth.ActorID(ctx)

	if req.Stage != nil {
		stage, err := contracts.ParseDealStage(*req.Stage)
		if err != nil {
			api.WriteFault(w, r, err)
			return
		}
		if err := s.gate.ChangeStage(ctx, dealID, stage, actor); err != nil {
			api.WriteFault(w, r, err)
			return
		}
	}
	if req.Forecast != nil {
		fc, err := contracts.ParseForecastCategory(*req.Forecast)
		if err != nil {
			api.WriteFault(w, r, err)
			return
		}
		if err := s.gate.ChangeForecast(ctx, dealID, fc, actor); err != nil {
			api.WriteFault(w, r, err)
			return
		}
	}
	if req.Amount != nil {
		if err := s.gate.ChangeAmount(ctx, dealID, *req.Amount, actor); err != nil {
			api.WriteFault(w, r, err)
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}
