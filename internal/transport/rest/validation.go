package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"scolapay/internal/repository"
	"scolapay/internal/service"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type CreateFeeTypeRequest struct {
	Label          string  `json:"label"`
	Code           string  `json:"code"`
	StandardAmount float64 `json:"standard_amount"`
	Currency       string  `json:"currency"`
	Recurrence     string  `json:"recurrence"`
	Description    *string `json:"description"`
}

func ValidateCreateFeeTypeRequest(r *http.Request) (*CreateFeeTypeRequest, error) {
	var req CreateFeeTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		return nil, err
	}
	return &req, nil
}

func (r *CreateFeeTypeRequest) ToServiceInput() service.CreateFeeTypeInput {
	return service.CreateFeeTypeInput{
		Label:          r.Label,
		Code:           r.Code,
		StandardAmount: r.StandardAmount,
		Currency:       r.Currency,
		Recurrence:     r.Recurrence,
		Description:    r.Description,
	}
}

type RecordLineRequest struct {
	FeeTypeID string  `json:"fee_type_id"`
	Amount    float64 `json:"amount"`
	Period    *string `json:"period"`
}

type RecordPaymentRequest struct {
	StudentID   string              `json:"student_id"`
	TotalAmount float64             `json:"total_amount"`
	Currency    string              `json:"currency"`
	Method      string              `json:"method"`
	ExternalRef string              `json:"external_reference"`
	PaidAt      string              `json:"paid_at"`
	Notes       *string             `json:"notes"`
	Lines       []RecordLineRequest `json:"lines"`
}

func ValidateRecordPaymentRequest(r *http.Request) (*RecordPaymentRequest, error) {
	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		return nil, err
	}
	if req.PaidAt != "" {
		if _, err := parseDateTime(req.PaidAt); err != nil {
			return nil, &ValidationError{Field: "paid_at", Message: "paid_at must be RFC3339 or YYYY-MM-DD"}
		}
	}
	return &req, nil
}

func (r *RecordPaymentRequest) ToServiceInput() service.RecordPaymentInput {
	in := service.RecordPaymentInput{
		StudentID:   r.StudentID,
		TotalAmount: r.TotalAmount,
		Currency:    r.Currency,
		Method:      r.Method,
		ExternalRef: r.ExternalRef,
		Notes:       r.Notes,
	}
	if r.PaidAt != "" {
		if t, err := parseDateTime(r.PaidAt); err == nil {
			in.PaidAt = t
		}
	}
	for _, l := range r.Lines {
		in.Lines = append(in.Lines, service.RecordLineInput{
			FeeTypeID: l.FeeTypeID,
			Amount:    l.Amount,
			Period:    l.Period,
		})
	}
	return in
}

// ParseLedgerQuery maps the optional list filters onto the repository filter.
// Unknown or empty parameters are simply absent predicates.
func ParseLedgerQuery(r *http.Request) (repository.PaymentsFilter, int, int, error) {
	q := r.URL.Query()
	var f repository.PaymentsFilter

	if v := q.Get("search"); v != "" {
		f.Search = &v
	}
	if v := q.Get("status"); v != "" {
		f.Status = &v
	}
	if v := q.Get("method"); v != "" {
		f.Method = &v
	}
	if v := q.Get("date_from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, 0, 0, &ValidationError{Field: "date_from", Message: "date_from must be YYYY-MM-DD"}
		}
		f.DateFrom = &t
	}
	if v := q.Get("date_to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, 0, 0, &ValidationError{Field: "date_to", Message: "date_to must be YYYY-MM-DD"}
		}
		// inclusive end of day
		end := t.Add(24*time.Hour - time.Nanosecond)
		f.DateTo = &end
	}

	page := 1
	if v := q.Get("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 1 {
			return f, 0, 0, &ValidationError{Field: "page", Message: "page must be a positive integer"}
		}
		page = p
	}
	pageSize := 0
	if v := q.Get("page_size"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 1 {
			return f, 0, 0, &ValidationError{Field: "page_size", Message: "page_size must be a positive integer"}
		}
		pageSize = p
	}

	return f, page, pageSize, nil
}

type LedgerExportRequest struct {
	Fields   []string `json:"fields"`
	Search   *string  `json:"search"`
	Status   *string  `json:"status"`
	Method   *string  `json:"method"`
	DateFrom *string  `json:"date_from"`
	DateTo   *string  `json:"date_to"`
}

func ValidateLedgerExportRequest(r *http.Request) (*LedgerExportRequest, error) {
	var req LedgerExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		return nil, err
	}
	return &req, nil
}

func (r *LedgerExportRequest) ToRepositoryFilter() (repository.PaymentsFilter, error) {
	var f repository.PaymentsFilter
	if r.Search != nil && *r.Search != "" {
		f.Search = r.Search
	}
	if r.Status != nil && *r.Status != "" {
		f.Status = r.Status
	}
	if r.Method != nil && *r.Method != "" {
		f.Method = r.Method
	}
	if r.DateFrom != nil && *r.DateFrom != "" {
		t, err := time.Parse("2006-01-02", *r.DateFrom)
		if err != nil {
			return f, &ValidationError{Field: "date_from", Message: "date_from must be YYYY-MM-DD"}
		}
		f.DateFrom = &t
	}
	if r.DateTo != nil && *r.DateTo != "" {
		t, err := time.Parse("2006-01-02", *r.DateTo)
		if err != nil {
			return f, &ValidationError{Field: "date_to", Message: "date_to must be YYYY-MM-DD"}
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		f.DateTo = &end
	}
	return f, nil
}

func parseDateTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}
