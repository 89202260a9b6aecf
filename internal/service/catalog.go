package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scolapay/internal/domain"
)

type FeeTypeRepository interface {
	ListActive(ctx context.Context, schoolID string) ([]domain.FeeType, error)
	FindActive(ctx context.Context, schoolID, id string) (*domain.FeeType, error)
	ActiveLabelExists(ctx context.Context, schoolID, label string) (bool, error)
	ActiveCodeExists(ctx context.Context, schoolID, code string) (bool, error)
	Create(ctx context.Context, ft *domain.FeeType) error
}

// CatalogService manages the per-school fee catalog consumed by payment
// entry. Fee types are never hard-deleted; the active flag is the lifecycle.
type CatalogService struct {
	repo FeeTypeRepository
}

func NewCatalogService(repo FeeTypeRepository) *CatalogService {
	return &CatalogService{repo: repo}
}

func (s *CatalogService) ListActiveFeeTypes(ctx context.Context, schoolID string) ([]domain.FeeType, error) {
	return s.repo.ListActive(ctx, schoolID)
}

type CreateFeeTypeInput struct {
	Label          string
	Code           string
	StandardAmount float64
	Currency       string
	Recurrence     string
	Description    *string
}

func (s *CatalogService) CreateFeeType(ctx context.Context, schoolID string, in CreateFeeTypeInput) (*domain.FeeType, error) {
	var violations ValidationErrors

	label := strings.TrimSpace(in.Label)
	if label == "" {
		violations.Add("label", "label is required")
	}

	currency := in.Currency
	if currency == "" {
		currency = domain.CurrencyCDF
	}
	if !domain.ValidCurrency(currency) {
		violations.Add("currency", fmt.Sprintf("unknown currency %q", in.Currency))
	}

	recurrence := in.Recurrence
	if recurrence == "" {
		recurrence = domain.RecurrenceUnique
	}
	if !domain.ValidRecurrence(recurrence) {
		violations.Add("recurrence", fmt.Sprintf("unknown recurrence %q", in.Recurrence))
	}

	if in.StandardAmount < 0 {
		violations.Add("standard_amount", "standard amount cannot be negative")
	}

	if len(violations) > 0 {
		return nil, violations
	}

	exists, err := s.repo.ActiveLabelExists(ctx, schoolID, label)
	if err != nil {
		return nil, err
	}
	if exists {
		violations.Add("label", fmt.Sprintf("an active fee type labelled %q already exists", label))
		return nil, violations
	}

	code := strings.ToUpper(strings.TrimSpace(in.Code))
	if code == "" {
		code = DeriveFeeCode(label)
		taken, err := s.repo.ActiveCodeExists(ctx, schoolID, code)
		if err != nil {
			return nil, err
		}
		if taken {
			// Last-resort disambiguation, not a uniqueness guarantee: two
			// same-label creations within the same second can still collide.
			code = fmt.Sprintf("%s%s", code, time.Now().Format("150405"))
		}
	} else {
		taken, err := s.repo.ActiveCodeExists(ctx, schoolID, code)
		if err != nil {
			return nil, err
		}
		if taken {
			violations.Add("code", fmt.Sprintf("an active fee type with code %q already exists", code))
			return nil, violations
		}
	}

	ft := &domain.FeeType{
		SchoolID:       schoolID,
		Code:           code,
		Label:          label,
		Description:    in.Description,
		StandardAmount: in.StandardAmount,
		Currency:       currency,
		Recurrence:     recurrence,
		Active:         true,
	}
	if err := s.repo.Create(ctx, ft); err != nil {
		return nil, err
	}
	return ft, nil
}

// DeriveFeeCode builds a code from a label: ASCII uppercase alphanumerics
// only, truncated to 8 characters.
func DeriveFeeCode(label string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(label) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() >= 8 {
			break
		}
	}
	if b.Len() == 0 {
		return "FEE"
	}
	return b.String()
}
