package rest

import (
	"log"
	"net/http"

	"scolapay/internal/transport/auth"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) exportLedger(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.GetActor(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	req, err := ValidateLedgerExportRequest(r)
	if err != nil {
		ErrorBadRequest(w, "invalid JSON")
		return
	}
	filter, err := req.ToRepositoryFilter()
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	exportID, err := h.exports.StartLedgerExport(r.Context(), actor.SchoolID, actor.UserID, req.Fields, filter)
	if err != nil {
		log.Printf("[HTTP] startLedgerExport error: %v", err)
		ErrorInternal(w, "failed to start export")
		return
	}

	SuccessAccepted(w, "export queued", map[string]any{"export_id": exportID})
}

func (h *Handler) listExports(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.GetActor(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	exports, err := h.exports.GetExports(r.Context(), actor.UserID)
	if err != nil {
		HandleServiceError(w, "export listing", err)
		return
	}
	Success(w, "OK", map[string]any{"items": exports})
}

func (h *Handler) getExport(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.GetActor(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	export, err := h.exports.GetExport(r.Context(), chi.URLParam(r, "export_id"), actor.UserID)
	if err != nil {
		HandleServiceError(w, "export lookup", err)
		return
	}
	Success(w, "OK", export)
}
