package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"scolapay/internal/clients"
	"scolapay/internal/domain"
	"scolapay/internal/repository"
)

type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment, refSupplied bool) (bool, error)
	FindWithLines(ctx context.Context, schoolID, id string) (*domain.Payment, error)
	Cancel(ctx context.Context, schoolID, id string, version int64) error
}

type StudentRepository interface {
	FindActive(ctx context.Context, schoolID, id string) (*domain.Student, error)
}

// PaymentService records payments against the fee catalog and handles the
// cancel transition. Recording is all-or-nothing: either the payment and all
// of its lines commit, or nothing is written.
type PaymentService struct {
	payments PaymentRepository
	students StudentRepository
	feeTypes FeeTypeRepository
	ws       *clients.WebSocketClient
}

func NewPaymentService(payments PaymentRepository, students StudentRepository, feeTypes FeeTypeRepository, ws *clients.WebSocketClient) *PaymentService {
	return &PaymentService{payments: payments, students: students, feeTypes: feeTypes, ws: ws}
}

type RecordLineInput struct {
	FeeTypeID string
	Amount    float64
	Period    *string
}

type RecordPaymentInput struct {
	StudentID   string
	PaidAt      time.Time
	TotalAmount float64
	Currency    string
	Method      string
	ExternalRef string
	Notes       *string
	Lines       []RecordLineInput
}

type RecordResult struct {
	Payment *domain.Payment
	// RefRegenerated tells the caller their supplied external reference
	// collided and a fresh one was issued in its place.
	RefRegenerated bool
}

// RecordPayment validates the submission, collecting every violation before
// aborting, then persists the payment and its lines in one transaction.
func (s *PaymentService) RecordPayment(ctx context.Context, schoolID string, userID int64, in RecordPaymentInput) (*RecordResult, error) {
	var violations ValidationErrors

	_, err := s.students.FindActive(ctx, schoolID, in.StudentID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		violations.Add("student_id", "student is unknown or inactive")
	case err != nil:
		return nil, err
	}

	if in.TotalAmount <= 0 {
		violations.Add("total_amount", "total amount must be positive")
	}
	if !domain.ValidMethod(in.Method) {
		violations.Add("method", fmt.Sprintf("unknown payment method %q", in.Method))
	}
	if in.PaidAt.IsZero() {
		violations.Add("paid_at", "payment date is required")
	}

	currency := in.Currency
	if currency == "" {
		currency = domain.CurrencyCDF
	}
	if !domain.ValidCurrency(currency) {
		violations.Add("currency", fmt.Sprintf("unknown currency %q", in.Currency))
	}

	// Entries with non-positive amounts or no fee type are dropped rather
	// than rejected; what remains must be non-empty and fully resolvable.
	var lines []domain.PaymentLine
	var sum float64
	for _, l := range in.Lines {
		if l.FeeTypeID == "" || l.Amount <= 0 {
			continue
		}
		_, err := s.feeTypes.FindActive(ctx, schoolID, l.FeeTypeID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			violations.Add("lines", fmt.Sprintf("fee type %s is unknown or inactive", l.FeeTypeID))
			continue
		case err != nil:
			return nil, err
		}
		lines = append(lines, domain.PaymentLine{
			FeeTypeID: l.FeeTypeID,
			Amount:    l.Amount,
			NetAmount: l.Amount,
			Period:    l.Period,
		})
		sum += l.Amount
	}
	if len(lines) == 0 {
		violations.Add("lines", "at least one line is required")
	} else if math.Abs(sum-in.TotalAmount) > domain.AmountTolerance {
		violations.Add("total_amount", fmt.Sprintf("line amounts sum to %.2f, total is %.2f", sum, in.TotalAmount))
	}

	if len(violations) > 0 {
		return nil, violations
	}

	p := &domain.Payment{
		SchoolID:    schoolID,
		StudentID:   in.StudentID,
		PaidAt:      in.PaidAt,
		TotalAmount: in.TotalAmount,
		Currency:    currency,
		Method:      in.Method,
		ExternalRef: in.ExternalRef,
		Status:      domain.StatusConfirmed,
		Notes:       in.Notes,
		RecordedBy:  userID,
		Lines:       lines,
	}

	regenerated, err := s.payments.Create(ctx, p, in.ExternalRef != "")
	if err != nil {
		log.Printf("[PAYMENT] record failed for student %s: %v", in.StudentID, err)
		return nil, err
	}

	if s.ws != nil {
		_ = s.ws.NotifyPaymentRecorded(ctx, userID, p.ID, p.ReceiptNumber, p.TotalAmount, p.Currency)
	}

	return &RecordResult{Payment: p, RefRegenerated: regenerated}, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, schoolID, id string) (*domain.Payment, error) {
	p, err := s.payments.FindWithLines(ctx, schoolID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CancelPayment is a status transition only; line items are untouched and the
// row is never removed. Cancelling an already-cancelled payment is a no-op.
func (s *PaymentService) CancelPayment(ctx context.Context, schoolID, id string) error {
	p, err := s.GetPayment(ctx, schoolID, id)
	if err != nil {
		return err
	}
	if p.Status == domain.StatusCancelled {
		return nil
	}
	err = s.payments.Cancel(ctx, schoolID, id, p.Version)
	if errors.Is(err, repository.ErrStale) {
		return ErrConflict
	}
	return err
}
