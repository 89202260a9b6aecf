package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var methodPrefixes = map[string]string{
	"cash":          "CSH",
	"mobile_money":  "MOM",
	"card":          "CRD",
	"bank_transfer": "BNK",
	"cheque":        "CHQ",
}

// NewExternalRef builds a transaction reference from the payment method
// prefix, the payment date and a random suffix. Uniqueness is probabilistic;
// the insert path re-checks and regenerates on collision.
func NewExternalRef(method string, at time.Time) string {
	prefix, ok := methodPrefixes[method]
	if !ok {
		prefix = "PAY"
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, at.Format("20060102-150405"), suffix)
}

// ReferenceAllocator hands out school-scoped receipt numbers from a per-year
// counter row. The upsert runs inside the caller's payment transaction so an
// aborted payment never burns a number that a reader could observe.
type ReferenceAllocator struct{}

func NewReferenceAllocator() *ReferenceAllocator {
	return &ReferenceAllocator{}
}

func (a *ReferenceAllocator) NextReceiptNumber(ctx context.Context, tx *sql.Tx, schoolID string, at time.Time) (string, error) {
	query := `
		INSERT INTO receipt_counters (school_id, year, value)
		VALUES ($1, $2, 1)
		ON CONFLICT (school_id, year) DO UPDATE SET value = receipt_counters.value + 1
		RETURNING value`

	year := at.Year()
	var seq int64
	if err := tx.QueryRowContext(ctx, query, schoolID, year).Scan(&seq); err != nil {
		return "", fmt.Errorf("allocate receipt number: %w", err)
	}
	return FormatReceiptNumber(year, seq), nil
}

func FormatReceiptNumber(year int, seq int64) string {
	return fmt.Sprintf("REC-%d-%05d", year, seq)
}
