package websocket

import "fmt"

// Message is the wire envelope pushed to dashboard clients.
type Message struct {
	UserID  int64       `json:"user_id,omitempty"`
	Type    string      `json:"type"`
	Channel string      `json:"channel,omitempty"`
	Data    interface{} `json:"data"`
}

func paymentChannel(userID int64) string { return fmt.Sprintf("payments#%d", userID) }
func exportChannel(userID int64) string  { return fmt.Sprintf("exports#%d", userID) }

// PaymentRecorded announces a freshly committed payment to the cashier's
// channel so open dashboards update without polling.
func PaymentRecorded(userID int64, paymentID, receiptNumber string, amount float64, currency string) *Message {
	return &Message{
		Type:    "payment_recorded",
		Channel: paymentChannel(userID),
		Data: map[string]any{
			"id":             paymentID,
			"receipt_number": receiptNumber,
			"amount":         amount,
			"currency":       currency,
		},
	}
}

func ExportProgress(userID int64, exportID string, progress float64, stage string) *Message {
	data := map[string]any{
		"id":       exportID,
		"progress": progress,
	}
	if stage != "" {
		data["stage"] = stage
	}
	return &Message{
		Type:    "export_progress",
		Channel: exportChannel(userID),
		Data:    data,
	}
}

func ExportComplete(userID int64, exportID, url, filename string) *Message {
	return &Message{
		Type:    "export_complete",
		Channel: exportChannel(userID),
		Data: map[string]any{
			"id":       exportID,
			"url":      url,
			"filename": filename,
		},
	}
}

func ExportFailed(userID int64, exportID, errMsg string) *Message {
	return &Message{
		Type:    "export_failed",
		Channel: exportChannel(userID),
		Data: map[string]any{
			"id":      exportID,
			"message": errMsg,
		},
	}
}
