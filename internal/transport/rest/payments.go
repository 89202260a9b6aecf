package rest

import (
	"net/http"

	"scolapay/internal/domain"
	"scolapay/internal/repository"
	"scolapay/internal/transport/auth"

	"github.com/go-chi/chi/v5"
)

func paymentJSON(p domain.Payment) map[string]any {
	out := map[string]any{
		"id":                 p.ID,
		"student_id":         p.StudentID,
		"paid_at":            p.PaidAt.Format("2006-01-02T15:04:05Z07:00"),
		"total_amount":       p.TotalAmount,
		"currency":           p.Currency,
		"method":             p.Method,
		"external_reference": p.ExternalRef,
		"receipt_number":     p.ReceiptNumber,
		"status":             p.Status,
		"notes":              p.Notes,
		"recorded_by":        p.RecordedBy,
	}
	if p.StudentLastName != nil {
		out["student_last_name"] = *p.StudentLastName
	}
	if p.StudentFirstName != nil {
		out["student_first_name"] = *p.StudentFirstName
	}
	if p.StudentMatricule != nil {
		out["student_matricule"] = *p.StudentMatricule
	}
	if len(p.Lines) > 0 {
		lines := make([]map[string]any, 0, len(p.Lines))
		for _, l := range p.Lines {
			lines = append(lines, map[string]any{
				"id":          l.ID,
				"fee_type_id": l.FeeTypeID,
				"label":       l.FeeTypeLabel,
				"amount":      l.Amount,
				"net_amount":  l.NetAmount,
				"period":      l.Period,
			})
		}
		out["lines"] = lines
	}
	return out
}

func statsJSON(st repository.MonthlyStats) map[string]any {
	return map[string]any{
		"confirmed_count":  st.ConfirmedCount,
		"confirmed_total":  st.ConfirmedTotal,
		"pending_count":    st.PendingCount,
		"pending_total":    st.PendingTotal,
		"cancelled_count":  st.CancelledCount,
		"refunded_count":   st.RefundedCount,
		"partial_count":    st.PartialCount,
		"overdue_students": st.OverdueStudents,
	}
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.GetActor(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	req, err := ValidateRecordPaymentRequest(r)
	if err != nil {
		if _, ok := err.(*ValidationError); ok {
			ErrorBadRequest(w, err.Error())
			return
		}
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	res, err := h.payments.RecordPayment(r.Context(), actor.SchoolID, actor.UserID, req.ToServiceInput())
	if err != nil {
		HandleServiceError(w, "payment recording", err)
		return
	}

	SuccessCreated(w, "payment recorded", map[string]any{
		"payment_id":            res.Payment.ID,
		"receipt_number":        res.Payment.ReceiptNumber,
		"external_reference":    res.Payment.ExternalRef,
		"reference_regenerated": res.RefRegenerated,
	})
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.GetActor(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	filter, page, pageSize, err := ParseLedgerQuery(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	result, err := h.ledger.ListPayments(r.Context(), actor.SchoolID, filter, page, pageSize)
	if err != nil {
		HandleServiceError(w, "payment listing", err)
		return
	}

	items := make([]map[string]any, 0, len(result.Items))
	for _, p := range result.Items {
		items = append(items, paymentJSON(p))
	}

	Success(w, "OK", map[string]any{
		"items":     items,
		"total":     result.Total,
		"page":      result.Page,
		"page_size": result.PageSize,
		"stats":     statsJSON(result.Stats),
	})
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.GetActor(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	p, err := h.payments.GetPayment(r.Context(), actor.SchoolID, chi.URLParam(r, "payment_id"))
	if err != nil {
		HandleServiceError(w, "payment lookup", err)
		return
	}
	Success(w, "OK", paymentJSON(*p))
}

func (h *Handler) getReceipt(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.GetActor(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	doc, err := h.receipts.RenderReceipt(r.Context(), actor.SchoolID, chi.URLParam(r, "payment_id"))
	if err != nil {
		HandleServiceError(w, "receipt rendering", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// cancelPayment is restricted to privileged roles; the transition is
// irreversible and leaves line items untouched.
func (h *Handler) cancelPayment(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.GetActor(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}
	if !actor.Privileged() {
		ErrorForbidden(w, "insufficient role for cancellation")
		return
	}

	if err := h.payments.CancelPayment(r.Context(), actor.SchoolID, chi.URLParam(r, "payment_id")); err != nil {
		HandleServiceError(w, "payment cancellation", err)
		return
	}
	Success(w, "payment cancelled", nil)
}
