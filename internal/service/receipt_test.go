package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"scolapay/internal/domain"
)

type fakeSchoolRepo struct {
	school *domain.School
}

func (f *fakeSchoolRepo) FindByID(ctx context.Context, id string) (*domain.School, error) {
	if f.school == nil || f.school.ID != id {
		return nil, sql.ErrNoRows
	}
	return f.school, nil
}

func strPtr(s string) *string { return &s }

func receiptFixture() (*ReceiptService, *fakePaymentRepo) {
	payments := newFakePaymentRepo()

	period := "2026-03"
	payments.byID["pay-1"] = domain.Payment{
		ID:            "pay-1",
		SchoolID:      "school-1",
		StudentID:     "stu-1",
		PaidAt:        time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
		TotalAmount:   150000,
		Currency:      domain.CurrencyCDF,
		Method:        domain.MethodCash,
		ExternalRef:   "CSH-20260310-093000-1A2B3C4D",
		ReceiptNumber: "REC-2026-00042",
		Status:        domain.StatusConfirmed,

		StudentLastName:  strPtr("Kabongo"),
		StudentFirstName: strPtr("Patience"),
		StudentMatricule: strPtr("MAT-0042"),

		Lines: []domain.PaymentLine{
			{FeeTypeLabel: strPtr("Cantine"), Amount: 50000, Period: &period},
			{FeeTypeLabel: strPtr("Scolarité"), Amount: 100000, Period: &period},
		},
	}

	schools := &fakeSchoolRepo{school: &domain.School{
		ID:      "school-1",
		Name:    "Complexe Scolaire La Colombe",
		Address: strPtr("12 avenue de l'École"),
		City:    strPtr("Kinshasa"),
		Phone:   strPtr("+243 000 000 000"),
	}}

	return NewReceiptService(payments, schools), payments
}

func TestRenderReceipt(t *testing.T) {
	svc, _ := receiptFixture()

	doc, err := svc.RenderReceipt(context.Background(), "school-1", "pay-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	html := string(doc)
	for _, want := range []string{
		"REC-2026-00042",
		"CSH-20260310-093000-1A2B3C4D",
		"Complexe Scolaire La Colombe",
		"Kabongo Patience",
		"MAT-0042",
		"Espèces",
		"Cantine",
		"50000.00 CDF",
		"150000.00 CDF",
		"10/03/2026 09:30",
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("receipt missing %q:\n%s", want, html)
		}
	}
}

func TestRenderReceipt_CancelledIsNotFound(t *testing.T) {
	svc, payments := receiptFixture()

	p := payments.byID["pay-1"]
	p.Status = domain.StatusCancelled
	payments.byID["pay-1"] = p

	if _, err := svc.RenderReceipt(context.Background(), "school-1", "pay-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for cancelled payment, got %v", err)
	}
}

func TestRenderReceipt_UnknownPayment(t *testing.T) {
	svc, _ := receiptFixture()

	if _, err := svc.RenderReceipt(context.Background(), "school-1", "pay-ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRenderReceipt_WrongSchool(t *testing.T) {
	svc, _ := receiptFixture()

	if _, err := svc.RenderReceipt(context.Background(), "school-2", "pay-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across schools, got %v", err)
	}
}

func TestMethodLabel_FallsBackToRaw(t *testing.T) {
	if got := methodLabel(domain.MethodMobileMoney); got != "Mobile Money" {
		t.Fatalf("expected Mobile Money, got %s", got)
	}
	if got := methodLabel("barter"); got != "barter" {
		t.Fatalf("expected raw fallback, got %s", got)
	}
}
