package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"scolapay/internal/clients"
	"scolapay/internal/domain"
	"scolapay/internal/repository"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

type ExportStatus struct {
	Key      string    `json:"key"`
	Type     string    `json:"type"`
	SchoolID string    `json:"school_id"`
	UserID   int64     `json:"user_id"`
	Filters  any       `json:"filters"`
	Progress float64   `json:"progress"`
	FileURL  *string   `json:"file_url"`
	Error    *string   `json:"error,omitempty"`
	Created  time.Time `json:"created_at"`
}

const (
	exportSetKey = "export_ids"
	exportTTL    = 20 * time.Minute

	maxPaymentsForExport = 100_000
)

type PaymentColumn struct {
	Header string
	Value  func(p domain.Payment) any
}

var paymentColumns = map[string]PaymentColumn{
	"receipt_number": {Header: "N° reçu", Value: func(p domain.Payment) any { return p.ReceiptNumber }},
	"external_ref":   {Header: "Référence", Value: func(p domain.Payment) any { return p.ExternalRef }},
	"student_name": {Header: "Élève", Value: func(p domain.Payment) any {
		return fmt.Sprintf("%s %s", strOrEmpty(p.StudentLastName), strOrEmpty(p.StudentFirstName))
	}},
	"matricule":    {Header: "Matricule", Value: func(p domain.Payment) any { return strOrEmpty(p.StudentMatricule) }},
	"paid_at":      {Header: "Date de paiement", Value: func(p domain.Payment) any { return p.PaidAt.Format("2006-01-02 15:04:05") }},
	"method":       {Header: "Mode", Value: func(p domain.Payment) any { return methodLabel(p.Method) }},
	"status":       {Header: "Statut", Value: func(p domain.Payment) any { return p.Status }},
	"currency":     {Header: "Devise", Value: func(p domain.Payment) any { return p.Currency }},
	"total_amount": {Header: "Montant", Value: func(p domain.Payment) any { return p.TotalAmount }},
	"notes":        {Header: "Notes", Value: func(p domain.Payment) any { return strOrEmpty(p.Notes) }},
	"recorded_by":  {Header: "Enregistré par", Value: func(p domain.Payment) any { return p.RecordedBy }},
	"created_at":   {Header: "Créé le", Value: func(p domain.Payment) any { return timeOrEmpty(p.CreatedAt) }},
}

var defaultExportFields = []string{
	"receipt_number", "paid_at", "student_name", "matricule",
	"method", "status", "currency", "total_amount", "external_ref",
}

func timeOrEmpty(p *time.Time) string {
	if p == nil {
		return ""
	}
	return p.Format("2006-01-02 15:04:05")
}

// ExportService generates ledger spreadsheets in the background, tracking
// job progress in redis and pushing updates over the websocket hub.
type ExportService struct {
	repo    LedgerRepository
	redis   *clients.RedisClient
	storage clients.Storage
	ws      *clients.WebSocketClient
}

func NewExportService(repo LedgerRepository, redis *clients.RedisClient, storage clients.Storage, ws *clients.WebSocketClient) *ExportService {
	return &ExportService{repo: repo, redis: redis, storage: storage, ws: ws}
}

func (s *ExportService) saveStatus(ctx context.Context, st *ExportStatus) error {
	if s.redis == nil {
		return nil
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, st.Key, string(data), exportTTL); err != nil {
		return err
	}
	return s.redis.SAdd(ctx, exportSetKey, st.Key)
}

func (s *ExportService) StartLedgerExport(ctx context.Context, schoolID string, userID int64, selected []string, filter repository.PaymentsFilter) (string, error) {
	if len(selected) == 0 {
		selected = defaultExportFields
	}

	total, err := s.repo.Count(ctx, schoolID, filter)
	if err != nil {
		return "", err
	}
	if total > maxPaymentsForExport {
		return "", fmt.Errorf("too many payments for export (more than %d rows)", maxPaymentsForExport)
	}

	exportID := fmt.Sprintf("exports:%s", uuid.NewString())
	now := time.Now()

	status := &ExportStatus{
		Key:      exportID,
		Type:     "payments",
		SchoolID: schoolID,
		UserID:   userID,
		Filters:  buildFiltersMap(filter, selected),
		Progress: 0,
		Created:  now,
	}
	_ = s.saveStatus(ctx, status)

	go s.runLedgerExport(context.Background(), exportID, schoolID, userID, selected, filter, now)

	return exportID, nil
}

func (s *ExportService) runLedgerExport(ctx context.Context, exportID, schoolID string, userID int64, selected []string, filter repository.PaymentsFilter, createdAt time.Time) {
	status := &ExportStatus{
		Key:      exportID,
		Type:     "payments",
		SchoolID: schoolID,
		UserID:   userID,
		Filters:  buildFiltersMap(filter, selected),
		Progress: 0,
		Created:  createdAt,
	}

	fail := func(msg string, err error) {
		errStr := fmt.Sprintf("%s: %v", msg, err)
		log.Printf("[EXPORT] %s: %s", exportID, errStr)
		status.Error = &errStr
		status.Progress = 100
		_ = s.saveStatus(ctx, status)
		if s.ws != nil {
			_ = s.ws.NotifyExportFailed(ctx, userID, exportID, errStr)
		}
	}

	payments, err := s.repo.List(ctx, schoolID, filter, 0, 0)
	if err != nil {
		fail("ledger query failed", err)
		return
	}

	var cols []PaymentColumn
	for _, key := range selected {
		col, ok := paymentColumns[key]
		if !ok {
			continue
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		fail("no exportable columns selected", errors.New("unknown fields"))
		return
	}

	f := excelize.NewFile()
	sheet := "Paiements"
	f.SetSheetName(f.GetSheetName(0), sheet)
	_ = f.SetDocProps(&excelize.DocProperties{Creator: fmt.Sprintf("user_%d", userID)})

	for i, col := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, col.Header)
	}

	total := len(payments)
	rowIdx := 2
	chunkSize := 500
	for i, p := range payments {
		for colIdx, col := range cols {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx)
			_ = f.SetCellValue(sheet, cell, col.Value(p))
		}
		rowIdx++

		if (i+1)%chunkSize == 0 || i == total-1 {
			raw := float64(i+1) / float64(total) * 100.0
			progress := math.Round(raw)
			if progress >= 100 {
				progress = 95
			}
			status.Progress = progress
			_ = s.saveStatus(ctx, status)
			if s.ws != nil {
				_ = s.ws.NotifyExportProgress(ctx, userID, exportID, progress, "generating")
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		fail("spreadsheet write failed", err)
		return
	}

	fileName := fmt.Sprintf("paiements_%s.xlsx", time.Now().Format("20060102_150405"))

	status.Progress = 95
	_ = s.saveStatus(ctx, status)
	if s.ws != nil {
		_ = s.ws.NotifyExportProgress(ctx, userID, exportID, 95, "uploading")
	}

	savedName, err := s.storage.Save(ctx, fileName, buf.Bytes())
	if err != nil {
		fail("save export failed", err)
		return
	}
	url, err := s.storage.URL(ctx, savedName)
	if err != nil {
		fail("export url failed", err)
		return
	}

	status.FileURL = &url
	status.Progress = 100
	_ = s.saveStatus(ctx, status)
	if s.ws != nil {
		_ = s.ws.NotifyExportProgress(ctx, userID, exportID, 100, "ready")
		_ = s.ws.NotifyExportComplete(ctx, userID, exportID, url, fileName)
	}
}

func buildFiltersMap(f repository.PaymentsFilter, fields []string) map[string]any {
	m := map[string]any{}
	if f.Search != nil {
		m["search"] = *f.Search
	} else {
		m["search"] = nil
	}
	if f.Status != nil {
		m["status"] = *f.Status
	} else {
		m["status"] = nil
	}
	if f.Method != nil {
		m["method"] = *f.Method
	} else {
		m["method"] = nil
	}
	if f.DateFrom != nil {
		m["date_from"] = f.DateFrom.Format("2006-01-02")
	} else {
		m["date_from"] = nil
	}
	if f.DateTo != nil {
		m["date_to"] = f.DateTo.Format("2006-01-02")
	} else {
		m["date_to"] = nil
	}
	m["fields"] = fields
	return m
}

// GetExports lists the caller's export jobs, newest first.
func (s *ExportService) GetExports(ctx context.Context, userID int64) ([]any, error) {
	if s.redis == nil {
		return nil, errors.New("redis client not configured")
	}

	keys, err := s.redis.SMembers(ctx, exportSetKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get export keys: %w", err)
	}

	var statuses []ExportStatus
	for _, key := range keys {
		data, err := s.redis.Get(ctx, key)
		if err != nil {
			continue
		}
		var status ExportStatus
		if err := json.Unmarshal([]byte(data), &status); err != nil {
			continue
		}
		if status.UserID == userID {
			statuses = append(statuses, status)
		}
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Created.After(statuses[j].Created)
	})

	var exports []any
	for _, status := range statuses {
		exports = append(exports, exportMap(status))
	}
	return exports, nil
}

func (s *ExportService) GetExport(ctx context.Context, exportID string, userID int64) (any, error) {
	if s.redis == nil {
		return nil, errors.New("redis client not configured")
	}

	data, err := s.redis.Get(ctx, exportID)
	if err != nil {
		return nil, ErrNotFound
	}

	var status ExportStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, fmt.Errorf("failed to parse export status: %w", err)
	}
	if status.UserID != userID {
		return nil, ErrNotFound
	}
	return exportMap(status), nil
}

func exportMap(status ExportStatus) map[string]any {
	return map[string]any{
		"key":        status.Key,
		"type":       status.Type,
		"progress":   status.Progress,
		"file_url":   status.FileURL,
		"error":      status.Error,
		"filters":    status.Filters,
		"created_at": status.Created.Format("2006-01-02 15:04:05"),
	}
}
