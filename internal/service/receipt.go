package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html/template"

	"scolapay/internal/domain"
)

type SchoolRepository interface {
	FindByID(ctx context.Context, id string) (*domain.School, error)
}

// ReceiptService renders a persisted payment as a printable document. Pure
// read path: no mutation, freely concurrent.
type ReceiptService struct {
	payments PaymentRepository
	schools  SchoolRepository
}

func NewReceiptService(payments PaymentRepository, schools SchoolRepository) *ReceiptService {
	return &ReceiptService{payments: payments, schools: schools}
}

type receiptLine struct {
	Label  string
	Period string
	Amount string
}

type receiptData struct {
	SchoolName    string
	SchoolAddress string
	SchoolCity    string
	SchoolPhone   string

	ReceiptNumber string
	ExternalRef   string
	PaidAt        string
	Method        string

	StudentName      string
	StudentMatricule string

	Lines []receiptLine
	Total string
}

var methodLabels = map[string]string{
	domain.MethodCash:         "Espèces",
	domain.MethodMobileMoney:  "Mobile Money",
	domain.MethodCard:         "Carte bancaire",
	domain.MethodBankTransfer: "Virement bancaire",
	domain.MethodCheque:       "Chèque",
}

const receiptTemplate = `<!DOCTYPE html>
<html lang="fr">
<head>
<meta charset="utf-8">
<title>Reçu {{.ReceiptNumber}}</title>
<style>
body { font-family: "Helvetica Neue", Arial, sans-serif; margin: 2em auto; max-width: 640px; color: #222; }
header { text-align: center; border-bottom: 2px solid #222; padding-bottom: 1em; margin-bottom: 1.5em; }
h1 { font-size: 1.2em; margin: 0; }
.meta { display: flex; justify-content: space-between; margin-bottom: 1.5em; }
table { width: 100%; border-collapse: collapse; margin-bottom: 1.5em; }
th, td { border: 1px solid #999; padding: 6px 10px; text-align: left; }
td.amount, th.amount { text-align: right; }
tfoot td { font-weight: bold; }
.signatures { display: flex; justify-content: space-between; margin-top: 4em; }
.signatures div { width: 40%; border-top: 1px solid #222; text-align: center; padding-top: 4px; }
@media print { body { margin: 0; } }
</style>
</head>
<body>
<header>
<h1>{{.SchoolName}}</h1>
{{if .SchoolAddress}}<div>{{.SchoolAddress}}{{if .SchoolCity}}, {{.SchoolCity}}{{end}}</div>{{end}}
{{if .SchoolPhone}}<div>Tél : {{.SchoolPhone}}</div>{{end}}
</header>
<div class="meta">
<div>
<div><strong>Reçu N° :</strong> {{.ReceiptNumber}}</div>
<div><strong>Référence :</strong> {{.ExternalRef}}</div>
</div>
<div>
<div><strong>Date :</strong> {{.PaidAt}}</div>
<div><strong>Mode :</strong> {{.Method}}</div>
</div>
</div>
<div><strong>Élève :</strong> {{.StudentName}} ({{.StudentMatricule}})</div>
<table>
<thead><tr><th>Frais</th><th>Période</th><th class="amount">Montant</th></tr></thead>
<tbody>
{{range .Lines}}<tr><td>{{.Label}}</td><td>{{.Period}}</td><td class="amount">{{.Amount}}</td></tr>
{{end}}</tbody>
<tfoot><tr><td colspan="2">Total</td><td class="amount">{{.Total}}</td></tr></tfoot>
</table>
<div class="signatures">
<div>Le caissier</div>
<div>Le payeur</div>
</div>
</body>
</html>
`

var receiptTmpl = template.Must(template.New("receipt").Parse(receiptTemplate))

// RenderReceipt loads the payment within the school scope and renders the
// printable document. Cancelled or soft-deleted payments are a hard NotFound.
func (s *ReceiptService) RenderReceipt(ctx context.Context, schoolID, paymentID string) ([]byte, error) {
	p, err := s.payments.FindWithLines(ctx, schoolID, paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.Status == domain.StatusCancelled {
		return nil, ErrNotFound
	}

	school, err := s.schools.FindByID(ctx, schoolID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	data := receiptData{
		SchoolName:    school.Name,
		SchoolAddress: strOrEmpty(school.Address),
		SchoolCity:    strOrEmpty(school.City),
		SchoolPhone:   strOrEmpty(school.Phone),

		ReceiptNumber: p.ReceiptNumber,
		ExternalRef:   p.ExternalRef,
		PaidAt:        p.PaidAt.Format("02/01/2006 15:04"),
		Method:        methodLabel(p.Method),

		StudentName:      fmt.Sprintf("%s %s", strOrEmpty(p.StudentLastName), strOrEmpty(p.StudentFirstName)),
		StudentMatricule: strOrEmpty(p.StudentMatricule),

		Total: formatAmount(p.TotalAmount, p.Currency),
	}
	for _, l := range p.Lines {
		data.Lines = append(data.Lines, receiptLine{
			Label:  strOrEmpty(l.FeeTypeLabel),
			Period: strOrEmpty(l.Period),
			Amount: formatAmount(l.Amount, p.Currency),
		})
	}

	var buf bytes.Buffer
	if err := receiptTmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func methodLabel(method string) string {
	if label, ok := methodLabels[method]; ok {
		return label
	}
	return method
}

func formatAmount(v float64, currency string) string {
	return fmt.Sprintf("%.2f %s", v, currency)
}

func strOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
