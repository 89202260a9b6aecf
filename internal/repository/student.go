package repository

import (
	"context"
	"database/sql"

	"scolapay/internal/domain"
)

type StudentRepository struct {
	db *sql.DB
}

func NewStudentRepository(db *sql.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindActive resolves a student within the school; inactive students are not
// returned (payments may only be recorded against active students).
func (r *StudentRepository) FindActive(ctx context.Context, schoolID, id string) (*domain.Student, error) {
	query := `
		SELECT id, school_id, matricule, last_name, first_name, active
		FROM students
		WHERE id = $1 AND school_id = $2 AND active`

	var s domain.Student
	err := r.db.QueryRowContext(ctx, query, id, schoolID).Scan(
		&s.ID,
		&s.SchoolID,
		&s.Matricule,
		&s.LastName,
		&s.FirstName,
		&s.Active,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
