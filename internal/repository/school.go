package repository

import (
	"context"
	"database/sql"

	"scolapay/internal/domain"
)

type SchoolRepository struct {
	db *sql.DB
}

func NewSchoolRepository(db *sql.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

func (r *SchoolRepository) FindByID(ctx context.Context, id string) (*domain.School, error) {
	query := `SELECT id, name, address, city, phone, email FROM schools WHERE id = $1`

	var s domain.School
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID,
		&s.Name,
		&s.Address,
		&s.City,
		&s.Phone,
		&s.Email,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
