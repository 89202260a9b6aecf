package repository

import (
	"context"
	"database/sql"

	"scolapay/internal/domain"

	"github.com/google/uuid"
)

type FeeTypeRepository struct {
	db *sql.DB
}

func NewFeeTypeRepository(db *sql.DB) *FeeTypeRepository {
	return &FeeTypeRepository{db: db}
}

const feeTypeColumns = `id, school_id, code, label, description, standard_amount, currency, recurrence, active, created_at, updated_at`

func scanFeeType(row interface{ Scan(...any) error }) (*domain.FeeType, error) {
	var ft domain.FeeType
	if err := row.Scan(
		&ft.ID,
		&ft.SchoolID,
		&ft.Code,
		&ft.Label,
		&ft.Description,
		&ft.StandardAmount,
		&ft.Currency,
		&ft.Recurrence,
		&ft.Active,
		&ft.CreatedAt,
		&ft.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ft, nil
}

func (r *FeeTypeRepository) ListActive(ctx context.Context, schoolID string) ([]domain.FeeType, error) {
	query := `SELECT ` + feeTypeColumns + ` FROM fee_types WHERE school_id = $1 AND active ORDER BY label`

	rows, err := r.db.QueryContext(ctx, query, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FeeType
	for rows.Next() {
		ft, err := scanFeeType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ft)
	}
	return out, rows.Err()
}

// FindActive returns the fee type only when it is active and belongs to the school.
func (r *FeeTypeRepository) FindActive(ctx context.Context, schoolID, id string) (*domain.FeeType, error) {
	query := `SELECT ` + feeTypeColumns + ` FROM fee_types WHERE id = $1 AND school_id = $2 AND active`
	return scanFeeType(r.db.QueryRowContext(ctx, query, id, schoolID))
}

func (r *FeeTypeRepository) ActiveLabelExists(ctx context.Context, schoolID, label string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM fee_types WHERE school_id = $1 AND active AND lower(label) = lower($2))`
	if err := r.db.QueryRowContext(ctx, query, schoolID, label).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *FeeTypeRepository) ActiveCodeExists(ctx context.Context, schoolID, code string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM fee_types WHERE school_id = $1 AND active AND code = $2)`
	if err := r.db.QueryRowContext(ctx, query, schoolID, code).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *FeeTypeRepository) Create(ctx context.Context, ft *domain.FeeType) error {
	if ft.ID == "" {
		ft.ID = uuid.NewString()
	}
	query := `
		INSERT INTO fee_types (id, school_id, code, label, description, standard_amount, currency, recurrence, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true)
		RETURNING created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		ft.ID,
		ft.SchoolID,
		ft.Code,
		ft.Label,
		ft.Description,
		ft.StandardAmount,
		ft.Currency,
		ft.Recurrence,
	).Scan(&ft.CreatedAt, &ft.UpdatedAt)
}
