package service

import (
	"context"
	"errors"
	"testing"

	"scolapay/internal/domain"
	"scolapay/internal/repository"
)

type fakeLedgerRepo struct {
	items []domain.Payment
	total int64
	stats *repository.MonthlyStats

	listErr  error
	statsErr error

	lastLimit  int
	lastOffset int
}

func (f *fakeLedgerRepo) List(ctx context.Context, schoolID string, filter repository.PaymentsFilter, limit, offset int) ([]domain.Payment, error) {
	f.lastLimit, f.lastOffset = limit, offset
	return f.items, f.listErr
}

func (f *fakeLedgerRepo) Count(ctx context.Context, schoolID string, filter repository.PaymentsFilter) (int64, error) {
	return f.total, nil
}

func (f *fakeLedgerRepo) MonthStats(ctx context.Context, schoolID string) (*repository.MonthlyStats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return f.stats, nil
}

func TestListPayments_NormalizesPaging(t *testing.T) {
	repo := &fakeLedgerRepo{total: 3, stats: &repository.MonthlyStats{}}
	svc := NewLedgerService(repo, nil)

	page, err := svc.ListPayments(context.Background(), "school-1", repository.PaymentsFilter{}, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Page != 1 || page.PageSize != 25 {
		t.Fatalf("expected defaults page=1 size=25, got %d/%d", page.Page, page.PageSize)
	}
	if repo.lastLimit != 25 || repo.lastOffset != 0 {
		t.Fatalf("expected limit 25 offset 0, got %d/%d", repo.lastLimit, repo.lastOffset)
	}

	if _, err := svc.ListPayments(context.Background(), "school-1", repository.PaymentsFilter{}, 3, 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.lastLimit != 100 {
		t.Fatalf("page size should be capped at 100, got %d", repo.lastLimit)
	}
	if repo.lastOffset != 200 {
		t.Fatalf("expected offset 200 for page 3, got %d", repo.lastOffset)
	}
}

func TestListPayments_StatsFailureDegradesToZero(t *testing.T) {
	repo := &fakeLedgerRepo{
		items:    []domain.Payment{{ID: "pay-1"}},
		total:    1,
		statsErr: errors.New("stats query timeout"),
	}
	svc := NewLedgerService(repo, nil)

	page, err := svc.ListPayments(context.Background(), "school-1", repository.PaymentsFilter{}, 1, 25)
	if err != nil {
		t.Fatalf("stats failure must not fail the list: %v", err)
	}
	if len(page.Items) != 1 || page.Total != 1 {
		t.Fatalf("list result lost: %+v", page)
	}
	if page.Stats != (repository.MonthlyStats{}) {
		t.Fatalf("expected zeroed stats, got %+v", page.Stats)
	}
}

func TestListPayments_StatsPassThrough(t *testing.T) {
	repo := &fakeLedgerRepo{
		total: 2,
		stats: &repository.MonthlyStats{ConfirmedCount: 2, ConfirmedTotal: 250000, OverdueStudents: 14},
	}
	svc := NewLedgerService(repo, nil)

	page, err := svc.ListPayments(context.Background(), "school-1", repository.PaymentsFilter{}, 1, 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Stats.ConfirmedCount != 2 || page.Stats.OverdueStudents != 14 {
		t.Fatalf("unexpected stats: %+v", page.Stats)
	}
}

func TestListPayments_ListErrorPropagates(t *testing.T) {
	repo := &fakeLedgerRepo{listErr: errors.New("db down")}
	svc := NewLedgerService(repo, nil)

	if _, err := svc.ListPayments(context.Background(), "school-1", repository.PaymentsFilter{}, 1, 25); err == nil {
		t.Fatal("expected list error to propagate")
	}
}
