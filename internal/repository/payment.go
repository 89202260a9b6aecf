package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"scolapay/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrStale is returned when an update loses the optimistic version check.
var ErrStale = errors.New("payment was modified concurrently")

const maxRefAttempts = 5

type PaymentsFilter struct {
	Search   *string
	Status   *string
	Method   *string
	DateFrom *time.Time
	DateTo   *time.Time
}

type MonthlyStats struct {
	ConfirmedCount  int64
	ConfirmedTotal  float64
	PendingCount    int64
	PendingTotal    float64
	CancelledCount  int64
	RefundedCount   int64
	PartialCount    int64
	OverdueStudents int64
}

type PaymentRepository struct {
	db    *sql.DB
	alloc *ReferenceAllocator
}

func NewPaymentRepository(db *sql.DB, alloc *ReferenceAllocator) *PaymentRepository {
	return &PaymentRepository{db: db, alloc: alloc}
}

// Create persists the payment and its lines in one transaction. The receipt
// number is allocated inside the same transaction. Colliding external
// references are expected-rare and never an error: the reference is checked
// against the table before the insert (a unique-index failure would abort the
// whole transaction), and an insert that still loses the race to a concurrent
// writer rolls back and retries on a fresh transaction. The returned bool
// reports whether a caller-supplied reference had to be replaced.
func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment, refSupplied bool) (bool, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = domain.StatusConfirmed
	}
	if p.ExternalRef == "" {
		p.ExternalRef = NewExternalRef(p.Method, p.PaidAt)
		refSupplied = false
	}

	regenerated := false
	var err error
	for attempt := 0; attempt < maxRefAttempts; attempt++ {
		var regen bool
		regen, err = r.createTx(ctx, p, refSupplied)
		if regen {
			regenerated = true
			refSupplied = false
		}
		if err == nil {
			return regenerated, nil
		}
		if !isUniqueViolation(err, "external_ref") {
			return false, err
		}
		// lost the race between the reference check and the insert; the
		// receipt counter upsert rolled back with the rest, so the number is
		// not burned
		if refSupplied {
			regenerated = true
			refSupplied = false
		}
		p.ExternalRef = NewExternalRef(p.Method, p.PaidAt)
	}
	return false, err
}

func (r *PaymentRepository) createTx(ctx context.Context, p *domain.Payment, refSupplied bool) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	number, err := r.alloc.NextReceiptNumber(ctx, tx, p.SchoolID, p.PaidAt)
	if err != nil {
		return false, err
	}
	p.ReceiptNumber = number

	regenerated := false
	for attempt := 0; ; attempt++ {
		taken, err := externalRefTaken(ctx, tx, p.ExternalRef)
		if err != nil {
			return regenerated, err
		}
		if !taken {
			break
		}
		if attempt+1 >= maxRefAttempts {
			return regenerated, fmt.Errorf("no free external reference after %d attempts", maxRefAttempts)
		}
		if refSupplied {
			regenerated = true
			refSupplied = false
		}
		p.ExternalRef = NewExternalRef(p.Method, p.PaidAt)
	}

	if err := r.insertPayment(ctx, tx, p); err != nil {
		return regenerated, err
	}

	lineQuery := `
		INSERT INTO payment_lines (id, payment_id, fee_type_id, amount, net_amount, period)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for i := range p.Lines {
		l := &p.Lines[i]
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		l.PaymentID = p.ID
		if l.NetAmount == 0 {
			l.NetAmount = l.Amount
		}
		if _, err := tx.ExecContext(ctx, lineQuery, l.ID, l.PaymentID, l.FeeTypeID, l.Amount, l.NetAmount, l.Period); err != nil {
			return regenerated, fmt.Errorf("insert payment line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return regenerated, err
	}
	return regenerated, nil
}

func externalRefTaken(ctx context.Context, tx *sql.Tx, ref string) (bool, error) {
	var taken bool
	query := `SELECT EXISTS (SELECT 1 FROM payments WHERE external_ref = $1)`
	if err := tx.QueryRowContext(ctx, query, ref).Scan(&taken); err != nil {
		return false, err
	}
	return taken, nil
}

func (r *PaymentRepository) insertPayment(ctx context.Context, tx *sql.Tx, p *domain.Payment) error {
	query := `
		INSERT INTO payments (id, school_id, student_id, paid_at, total_amount, currency, method,
		                      external_ref, receipt_number, status, notes, recorded_by, cashier_id, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1)
		RETURNING version, created_at, updated_at`

	return tx.QueryRowContext(ctx, query,
		p.ID,
		p.SchoolID,
		p.StudentID,
		p.PaidAt,
		p.TotalAmount,
		p.Currency,
		p.Method,
		p.ExternalRef,
		p.ReceiptNumber,
		p.Status,
		p.Notes,
		p.RecordedBy,
		p.CashierID,
	).Scan(&p.Version, &p.CreatedAt, &p.UpdatedAt)
}

func isUniqueViolation(err error, constraintPart string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, constraintPart)
}

const paymentColumns = `
	p.id, p.school_id, p.student_id, p.paid_at, p.total_amount, p.currency, p.method,
	p.external_ref, p.receipt_number, p.status, p.notes, p.recorded_by, p.cashier_id,
	p.version, p.created_at, p.updated_at, p.deleted_at,
	s.last_name, s.first_name, s.matricule`

func scanPayment(rows interface{ Scan(...any) error }) (*domain.Payment, error) {
	var p domain.Payment
	if err := rows.Scan(
		&p.ID,
		&p.SchoolID,
		&p.StudentID,
		&p.PaidAt,
		&p.TotalAmount,
		&p.Currency,
		&p.Method,
		&p.ExternalRef,
		&p.ReceiptNumber,
		&p.Status,
		&p.Notes,
		&p.RecordedBy,
		&p.CashierID,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.DeletedAt,
		&p.StudentLastName,
		&p.StudentFirstName,
		&p.StudentMatricule,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

// FindWithLines loads a payment within the school together with its lines and
// the fee type labels needed for display. Soft-deleted payments are not found.
func (r *PaymentRepository) FindWithLines(ctx context.Context, schoolID, id string) (*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments p
		JOIN students s ON s.id = p.student_id
		WHERE p.id = $1 AND p.school_id = $2 AND p.deleted_at IS NULL`

	p, err := scanPayment(r.db.QueryRowContext(ctx, query, id, schoolID))
	if err != nil {
		return nil, err
	}

	lineQuery := `
		SELECT l.id, l.payment_id, l.fee_type_id, l.amount, l.net_amount, l.period, ft.code, ft.label
		FROM payment_lines l
		JOIN fee_types ft ON ft.id = l.fee_type_id
		WHERE l.payment_id = $1
		ORDER BY ft.label`

	rows, err := r.db.QueryContext(ctx, lineQuery, p.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.PaymentLine
		if err := rows.Scan(&l.ID, &l.PaymentID, &l.FeeTypeID, &l.Amount, &l.NetAmount, &l.Period, &l.FeeTypeCode, &l.FeeTypeLabel); err != nil {
			return nil, err
		}
		p.Lines = append(p.Lines, l)
	}
	return p, rows.Err()
}

func buildPaymentsWhere(schoolID string, f PaymentsFilter) (string, []any) {
	where := []string{"p.school_id = $1", "p.deleted_at IS NULL"}
	args := []any{schoolID}
	i := 2

	if f.Search != nil && *f.Search != "" {
		where = append(where, fmt.Sprintf(
			"(s.last_name ILIKE $%d OR s.first_name ILIKE $%d OR s.matricule ILIKE $%d OR p.receipt_number ILIKE $%d)",
			i, i, i, i))
		args = append(args, "%"+*f.Search+"%")
		i++
	}
	if f.Status != nil && *f.Status != "" {
		where = append(where, fmt.Sprintf("p.status = $%d", i))
		args = append(args, *f.Status)
		i++
	}
	if f.Method != nil && *f.Method != "" {
		where = append(where, fmt.Sprintf("p.method = $%d", i))
		args = append(args, *f.Method)
		i++
	}
	if f.DateFrom != nil {
		where = append(where, fmt.Sprintf("p.paid_at >= $%d", i))
		args = append(args, *f.DateFrom)
		i++
	}
	if f.DateTo != nil {
		where = append(where, fmt.Sprintf("p.paid_at <= $%d", i))
		args = append(args, *f.DateTo)
		i++
	}

	return strings.Join(where, " AND "), args
}

func (r *PaymentRepository) List(ctx context.Context, schoolID string, f PaymentsFilter, limit, offset int) ([]domain.Payment, error) {
	whereClause, args := buildPaymentsWhere(schoolID, f)

	query := `
		SELECT ` + paymentColumns + `
		FROM payments p
		JOIN students s ON s.id = p.student_id
		WHERE ` + whereClause + `
		ORDER BY p.paid_at DESC`

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, limit, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PaymentRepository) Count(ctx context.Context, schoolID string, f PaymentsFilter) (int64, error) {
	whereClause, args := buildPaymentsWhere(schoolID, f)

	query := `
		SELECT COUNT(*)
		FROM payments p
		JOIN students s ON s.id = p.student_id
		WHERE ` + whereClause

	var total int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// MonthStats aggregates the current month's payments by status plus the count
// of active students with no confirmed payment yet this month.
func (r *PaymentRepository) MonthStats(ctx context.Context, schoolID string) (*MonthlyStats, error) {
	query := `
		SELECT status, COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM payments
		WHERE school_id = $1 AND deleted_at IS NULL AND paid_at >= date_trunc('month', now())
		GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var st MonthlyStats
	for rows.Next() {
		var status string
		var count int64
		var total float64
		if err := rows.Scan(&status, &count, &total); err != nil {
			return nil, err
		}
		switch status {
		case domain.StatusConfirmed:
			st.ConfirmedCount, st.ConfirmedTotal = count, total
		case domain.StatusPending:
			st.PendingCount, st.PendingTotal = count, total
		case domain.StatusCancelled:
			st.CancelledCount = count
		case domain.StatusRefunded:
			st.RefundedCount = count
		case domain.StatusPartial:
			st.PartialCount = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	overdueQuery := `
		SELECT COUNT(*)
		FROM students s
		WHERE s.school_id = $1 AND s.active
		  AND NOT EXISTS (
			SELECT 1 FROM payments p
			WHERE p.student_id = s.id AND p.status = 'confirmed'
			  AND p.deleted_at IS NULL AND p.paid_at >= date_trunc('month', now())
		  )`
	if err := r.db.QueryRowContext(ctx, overdueQuery, schoolID).Scan(&st.OverdueStudents); err != nil {
		return nil, err
	}

	return &st, nil
}

// Cancel flips the payment to cancelled. The version guard makes the update
// fail with ErrStale when another writer got there first; line items are
// never touched.
func (r *PaymentRepository) Cancel(ctx context.Context, schoolID, id string, version int64) error {
	query := `
		UPDATE payments
		SET status = $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND school_id = $3 AND deleted_at IS NULL AND status <> $1 AND version = $4`

	res, err := r.db.ExecContext(ctx, query, domain.StatusCancelled, id, schoolID, version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStale
	}
	return nil
}
