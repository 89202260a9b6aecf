package domain

import "time"

const (
	CurrencyCDF = "CDF"
	CurrencyUSD = "USD"
	CurrencyEUR = "EUR"
)

const (
	RecurrenceUnique    = "unique"
	RecurrenceMonthly   = "monthly"
	RecurrenceQuarterly = "quarterly"
	RecurrenceSemester  = "semester"
	RecurrenceAnnual    = "annual"
)

func ValidCurrency(c string) bool {
	switch c {
	case CurrencyCDF, CurrencyUSD, CurrencyEUR:
		return true
	}
	return false
}

func ValidRecurrence(r string) bool {
	switch r {
	case RecurrenceUnique, RecurrenceMonthly, RecurrenceQuarterly, RecurrenceSemester, RecurrenceAnnual:
		return true
	}
	return false
}

type FeeType struct {
	ID       string
	SchoolID string

	Code        string
	Label       string
	Description *string

	StandardAmount float64
	Currency       string
	Recurrence     string

	Active bool

	CreatedAt *time.Time
	UpdatedAt *time.Time
}
