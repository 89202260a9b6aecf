package rest

import (
	"net/http"

	"scolapay/internal/domain"
	"scolapay/internal/transport/auth"
)

func feeTypeJSON(ft domain.FeeType) map[string]any {
	return map[string]any{
		"id":              ft.ID,
		"code":            ft.Code,
		"label":           ft.Label,
		"description":     ft.Description,
		"standard_amount": ft.StandardAmount,
		"currency":        ft.Currency,
		"recurrence":      ft.Recurrence,
		"active":          ft.Active,
	}
}

func (h *Handler) listFeeTypes(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.GetActor(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	feeTypes, err := h.catalog.ListActiveFeeTypes(r.Context(), actor.SchoolID)
	if err != nil {
		HandleServiceError(w, "fee type listing", err)
		return
	}

	items := make([]map[string]any, 0, len(feeTypes))
	for _, ft := range feeTypes {
		items = append(items, feeTypeJSON(ft))
	}
	Success(w, "OK", map[string]any{"items": items})
}

func (h *Handler) createFeeType(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.GetActor(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	req, err := ValidateCreateFeeTypeRequest(r)
	if err != nil {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	ft, err := h.catalog.CreateFeeType(r.Context(), actor.SchoolID, req.ToServiceInput())
	if err != nil {
		HandleServiceError(w, "fee type creation", err)
		return
	}

	SuccessCreated(w, "fee type created", map[string]any{
		"fee_type_id": ft.ID,
		"fee_type":    feeTypeJSON(*ft),
	})
}
