package rest

import (
	"context"
	"net/http"
	"time"

	"scolapay/internal/domain"
	"scolapay/internal/repository"
	"scolapay/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Catalog interface {
	ListActiveFeeTypes(ctx context.Context, schoolID string) ([]domain.FeeType, error)
	CreateFeeType(ctx context.Context, schoolID string, in service.CreateFeeTypeInput) (*domain.FeeType, error)
}

type Recorder interface {
	RecordPayment(ctx context.Context, schoolID string, userID int64, in service.RecordPaymentInput) (*service.RecordResult, error)
	GetPayment(ctx context.Context, schoolID, id string) (*domain.Payment, error)
	CancelPayment(ctx context.Context, schoolID, id string) error
}

type ReceiptIssuer interface {
	RenderReceipt(ctx context.Context, schoolID, paymentID string) ([]byte, error)
}

type Ledger interface {
	ListPayments(ctx context.Context, schoolID string, f repository.PaymentsFilter, page, pageSize int) (*service.LedgerPage, error)
}

type Exporter interface {
	StartLedgerExport(ctx context.Context, schoolID string, userID int64, selected []string, f repository.PaymentsFilter) (string, error)
	GetExports(ctx context.Context, userID int64) ([]any, error)
	GetExport(ctx context.Context, exportID string, userID int64) (any, error)
}

type Handler struct {
	catalog  Catalog
	payments Recorder
	receipts ReceiptIssuer
	ledger   Ledger
	exports  Exporter
}

func NewHandler(catalog Catalog, payments Recorder, receipts ReceiptIssuer, ledger Ledger, exports Exporter) *Handler {
	return &Handler{
		catalog:  catalog,
		payments: payments,
		receipts: receipts,
		ledger:   ledger,
		exports:  exports,
	}
}

func (h *Handler) InitRouter() *chi.Mux {
	return h.InitRouterWithAuth(nil)
}

func (h *Handler) InitRouterWithAuth(authMiddleware func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	if authMiddleware != nil {
		r.Use(authMiddleware)
	}

	r.Route("/fee-types", func(r chi.Router) {
		r.Get("/", h.listFeeTypes)
		r.Post("/", h.createFeeType)
	})

	r.Route("/payments", func(r chi.Router) {
		r.Get("/", h.listPayments)
		r.Post("/", h.recordPayment)
		r.Post("/export", h.exportLedger)
		r.Get("/{payment_id}", h.getPayment)
		r.Get("/{payment_id}/receipt", h.getReceipt)
		r.Post("/{payment_id}/cancel", h.cancelPayment)
	})

	r.Route("/exports", func(r chi.Router) {
		r.Get("/", h.listExports)
		r.Get("/{export_id}", h.getExport)
	})

	return r
}
