package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"scolapay/internal/domain"
	"scolapay/internal/repository"
)

type fakePaymentRepo struct {
	byID map[string]domain.Payment

	created     []domain.Payment
	regenerated bool
	createErr   error

	cancelCalls    int
	cancelVersions []int64
	cancelErr      error
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{byID: map[string]domain.Payment{}}
}

func (f *fakePaymentRepo) Create(ctx context.Context, p *domain.Payment, refSupplied bool) (bool, error) {
	if f.createErr != nil {
		return false, f.createErr
	}
	p.ID = fmt.Sprintf("pay-%d", len(f.created)+1)
	p.ReceiptNumber = fmt.Sprintf("REC-2026-%05d", len(f.created)+1)
	if p.ExternalRef == "" || f.regenerated {
		p.ExternalRef = repository.NewExternalRef(p.Method, p.PaidAt)
	}
	p.Version = 1
	f.created = append(f.created, *p)
	f.byID[p.ID] = *p
	return f.regenerated, nil
}

func (f *fakePaymentRepo) FindWithLines(ctx context.Context, schoolID, id string) (*domain.Payment, error) {
	p, ok := f.byID[id]
	if !ok || p.SchoolID != schoolID {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (f *fakePaymentRepo) Cancel(ctx context.Context, schoolID, id string, version int64) error {
	f.cancelCalls++
	f.cancelVersions = append(f.cancelVersions, version)
	if f.cancelErr != nil {
		return f.cancelErr
	}
	p := f.byID[id]
	p.Status = domain.StatusCancelled
	p.Version++
	f.byID[id] = p
	return nil
}

type fakeStudentRepo struct {
	active map[string]bool
}

func (f *fakeStudentRepo) FindActive(ctx context.Context, schoolID, id string) (*domain.Student, error) {
	if !f.active[id] {
		return nil, sql.ErrNoRows
	}
	return &domain.Student{ID: id, SchoolID: schoolID, Active: true}, nil
}

func newRecorderFixture() (*PaymentService, *fakePaymentRepo) {
	payments := newFakePaymentRepo()
	students := &fakeStudentRepo{active: map[string]bool{"stu-1": true}}
	feeTypes := newFakeFeeTypeRepo()
	feeTypes.byID["ft-scolarite"] = domain.FeeType{ID: "ft-scolarite", Label: "Scolarité", Active: true}
	feeTypes.byID["ft-cantine"] = domain.FeeType{ID: "ft-cantine", Label: "Cantine", Active: true}
	return NewPaymentService(payments, students, feeTypes, nil), payments
}

func validInput() RecordPaymentInput {
	return RecordPaymentInput{
		StudentID:   "stu-1",
		PaidAt:      time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
		TotalAmount: 100,
		Method:      domain.MethodCash,
		Lines: []RecordLineInput{
			{FeeTypeID: "ft-scolarite", Amount: 60},
			{FeeTypeID: "ft-cantine", Amount: 40},
		},
	}
}

func TestRecordPayment_Success(t *testing.T) {
	svc, payments := newRecorderFixture()

	res, err := svc.RecordPayment(context.Background(), "school-1", 7, validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := res.Payment
	if p.Status != domain.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", p.Status)
	}
	if p.Currency != domain.CurrencyCDF {
		t.Fatalf("expected default currency CDF, got %s", p.Currency)
	}
	if p.ReceiptNumber == "" || p.ExternalRef == "" {
		t.Fatalf("expected receipt number and external ref, got %q / %q", p.ReceiptNumber, p.ExternalRef)
	}
	if p.RecordedBy != 7 {
		t.Fatalf("expected recorded_by 7, got %d", p.RecordedBy)
	}
	if len(p.Lines) != 2 || p.Lines[0].NetAmount != 60 {
		t.Fatalf("unexpected lines: %+v", p.Lines)
	}
	if res.RefRegenerated {
		t.Fatal("reference was not supplied, nothing to regenerate")
	}
	if len(payments.created) != 1 {
		t.Fatalf("expected one persisted payment, got %d", len(payments.created))
	}
}

func TestRecordPayment_SumMismatchRejected(t *testing.T) {
	svc, payments := newRecorderFixture()

	in := validInput()
	in.Lines[1].Amount = 39 // 60 + 39 != 100

	_, err := svc.RecordPayment(context.Background(), "school-1", 7, in)

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	found := false
	for _, v := range verrs {
		if v.Field == "total_amount" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected total_amount violation, got %v", verrs)
	}
	if len(payments.created) != 0 {
		t.Fatal("nothing should be persisted when the sum check fails")
	}
}

func TestRecordPayment_SumWithinTolerance(t *testing.T) {
	svc, _ := newRecorderFixture()

	in := validInput()
	in.Lines[0].Amount = 60.004
	in.Lines[1].Amount = 40.001

	if _, err := svc.RecordPayment(context.Background(), "school-1", 7, in); err != nil {
		t.Fatalf("a 0.005 gap is within tolerance, got %v", err)
	}
}

func TestRecordPayment_UnknownStudentRejected(t *testing.T) {
	svc, payments := newRecorderFixture()

	in := validInput()
	in.StudentID = "stu-ghost"

	_, err := svc.RecordPayment(context.Background(), "school-1", 7, in)

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if verrs[0].Field != "student_id" {
		t.Fatalf("expected student_id violation, got %+v", verrs[0])
	}
	if len(payments.created) != 0 {
		t.Fatal("nothing should be persisted for an unknown student")
	}
}

func TestRecordPayment_ZeroAmountLinesDropped(t *testing.T) {
	svc, _ := newRecorderFixture()

	in := validInput()
	in.Lines = []RecordLineInput{
		{FeeTypeID: "ft-scolarite", Amount: 0},
		{FeeTypeID: "", Amount: 50},
	}

	_, err := svc.RecordPayment(context.Background(), "school-1", 7, in)

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	found := false
	for _, v := range verrs {
		if v.Field == "lines" && v.Message == "at least one line is required" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected empty-lines violation, got %v", verrs)
	}
}

func TestRecordPayment_InactiveFeeTypeRejected(t *testing.T) {
	svc, _ := newRecorderFixture()

	in := validInput()
	in.Lines = []RecordLineInput{{FeeTypeID: "ft-unknown", Amount: 100}}

	_, err := svc.RecordPayment(context.Background(), "school-1", 7, in)

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if verrs[0].Field != "lines" {
		t.Fatalf("expected lines violation, got %+v", verrs[0])
	}
}

func TestRecordPayment_CollectsAllViolations(t *testing.T) {
	svc, _ := newRecorderFixture()

	in := RecordPaymentInput{
		StudentID:   "stu-ghost",
		TotalAmount: 0,
		Method:      "barter",
		Currency:    "GBP",
	}

	_, err := svc.RecordPayment(context.Background(), "school-1", 7, in)

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	// student, total, method, paid_at, currency, lines
	if len(verrs) != 6 {
		t.Fatalf("expected 6 violations, got %d: %v", len(verrs), verrs)
	}
}

func TestRecordPayment_SuppliedRefRegenerated(t *testing.T) {
	svc, payments := newRecorderFixture()
	payments.regenerated = true

	in := validInput()
	in.ExternalRef = "CSH-20260310-093000-DEADBEEF"

	res, err := svc.RecordPayment(context.Background(), "school-1", 7, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.RefRegenerated {
		t.Fatal("expected the regenerated flag to surface to the caller")
	}
}

func TestCancelPayment_UsesLoadedVersion(t *testing.T) {
	svc, payments := newRecorderFixture()

	res, err := svc.RecordPayment(context.Background(), "school-1", 7, validInput())
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if err := svc.CancelPayment(context.Background(), "school-1", res.Payment.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if payments.cancelCalls != 1 || payments.cancelVersions[0] != 1 {
		t.Fatalf("expected one cancel with version 1, got %d calls %v", payments.cancelCalls, payments.cancelVersions)
	}
}

func TestCancelPayment_AlreadyCancelledIsNoOp(t *testing.T) {
	svc, payments := newRecorderFixture()

	res, err := svc.RecordPayment(context.Background(), "school-1", 7, validInput())
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.CancelPayment(context.Background(), "school-1", res.Payment.ID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}

	if err := svc.CancelPayment(context.Background(), "school-1", res.Payment.ID); err != nil {
		t.Fatalf("second cancel should be a no-op, got %v", err)
	}
	if payments.cancelCalls != 1 {
		t.Fatalf("expected a single repository cancel, got %d", payments.cancelCalls)
	}
}

func TestCancelPayment_StaleVersionIsConflict(t *testing.T) {
	svc, payments := newRecorderFixture()

	res, err := svc.RecordPayment(context.Background(), "school-1", 7, validInput())
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	payments.cancelErr = repository.ErrStale

	if err := svc.CancelPayment(context.Background(), "school-1", res.Payment.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCancelPayment_NotFound(t *testing.T) {
	svc, _ := newRecorderFixture()

	if err := svc.CancelPayment(context.Background(), "school-1", "pay-ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetPayment_WrongSchoolIsNotFound(t *testing.T) {
	svc, _ := newRecorderFixture()

	res, err := svc.RecordPayment(context.Background(), "school-1", 7, validInput())
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if _, err := svc.GetPayment(context.Background(), "school-2", res.Payment.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across schools, got %v", err)
	}
}
