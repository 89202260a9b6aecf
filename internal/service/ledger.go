package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"scolapay/internal/clients"
	"scolapay/internal/domain"
	"scolapay/internal/repository"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100

	statsTTL = time.Minute
)

type LedgerRepository interface {
	List(ctx context.Context, schoolID string, f repository.PaymentsFilter, limit, offset int) ([]domain.Payment, error)
	Count(ctx context.Context, schoolID string, f repository.PaymentsFilter) (int64, error)
	MonthStats(ctx context.Context, schoolID string) (*repository.MonthlyStats, error)
}

// LedgerService serves the historical payment list plus its aggregate panel.
// The aggregates are best-effort: a stats failure never blocks the list.
type LedgerService struct {
	repo  LedgerRepository
	redis *clients.RedisClient
}

func NewLedgerService(repo LedgerRepository, redis *clients.RedisClient) *LedgerService {
	return &LedgerService{repo: repo, redis: redis}
}

type LedgerPage struct {
	Items    []domain.Payment
	Total    int64
	Page     int
	PageSize int
	Stats    repository.MonthlyStats
}

func (s *LedgerService) ListPayments(ctx context.Context, schoolID string, f repository.PaymentsFilter, page, pageSize int) (*LedgerPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	offset := (page - 1) * pageSize

	items, err := s.repo.List(ctx, schoolID, f, pageSize, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.Count(ctx, schoolID, f)
	if err != nil {
		return nil, err
	}

	out := &LedgerPage{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	out.Stats = s.monthStats(ctx, schoolID)
	return out, nil
}

// monthStats returns the current-month aggregates, cached briefly in redis.
// Any failure degrades to zeroed stats instead of failing the list.
func (s *LedgerService) monthStats(ctx context.Context, schoolID string) repository.MonthlyStats {
	cacheKey := fmt.Sprintf("ledger_stats:%s", schoolID)

	if s.redis != nil {
		if data, err := s.redis.Get(ctx, cacheKey); err == nil {
			var st repository.MonthlyStats
			if err := json.Unmarshal([]byte(data), &st); err == nil {
				return st
			}
		}
	}

	st, err := s.repo.MonthStats(ctx, schoolID)
	if err != nil {
		log.Printf("[LEDGER] stats query failed for school %s: %v", schoolID, err)
		return repository.MonthlyStats{}
	}

	if s.redis != nil {
		if data, err := json.Marshal(st); err == nil {
			_ = s.redis.Set(ctx, cacheKey, string(data), statsTTL)
		}
	}
	return *st
}
