package domain

import "time"

const (
	MethodCash         = "cash"
	MethodMobileMoney  = "mobile_money"
	MethodCard         = "card"
	MethodBankTransfer = "bank_transfer"
	MethodCheque       = "cheque"
)

const (
	StatusConfirmed = "confirmed"
	StatusPending   = "pending"
	StatusCancelled = "cancelled"
	StatusRefunded  = "refunded"
	StatusPartial   = "partial"
)

// AmountTolerance is the absolute tolerance used when comparing the payment
// total against the sum of its line amounts.
const AmountTolerance = 0.01

func ValidMethod(m string) bool {
	switch m {
	case MethodCash, MethodMobileMoney, MethodCard, MethodBankTransfer, MethodCheque:
		return true
	}
	return false
}

func ValidStatus(s string) bool {
	switch s {
	case StatusConfirmed, StatusPending, StatusCancelled, StatusRefunded, StatusPartial:
		return true
	}
	return false
}

type Payment struct {
	ID        string
	SchoolID  string
	StudentID string

	PaidAt      time.Time
	TotalAmount float64
	Currency    string
	Method      string

	// ExternalRef is unique system-wide; ReceiptNumber is unique per school.
	ExternalRef   string
	ReceiptNumber string

	Status string
	Notes  *string

	RecordedBy int64
	CashierID  *int64

	Version int64

	CreatedAt *time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time

	Lines []PaymentLine

	// joined display fields
	StudentLastName  *string
	StudentFirstName *string
	StudentMatricule *string
}

type PaymentLine struct {
	ID        string
	PaymentID string
	FeeTypeID string

	Amount    float64
	NetAmount float64
	Period    *string

	FeeTypeCode  *string
	FeeTypeLabel *string
}
