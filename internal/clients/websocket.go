package clients

import (
	"context"

	ws "scolapay/internal/transport/websocket"
)

// WebSocketClient is the push side of the hub used by the services. All
// notifications are best-effort; a nil hub turns them into no-ops.
type WebSocketClient struct {
	hub *ws.Hub
}

func NewWebSocketClient(hub *ws.Hub) *WebSocketClient {
	return &WebSocketClient{hub: hub}
}

func (c *WebSocketClient) NotifyPaymentRecorded(ctx context.Context, userID int64, paymentID, receiptNumber string, amount float64, currency string) error {
	if c.hub == nil {
		return nil
	}
	c.hub.Broadcast(userID, ws.PaymentRecorded(userID, paymentID, receiptNumber, amount, currency))
	return nil
}

func (c *WebSocketClient) NotifyExportProgress(ctx context.Context, userID int64, exportID string, progress float64, stage string) error {
	if c.hub == nil {
		return nil
	}
	c.hub.Broadcast(userID, ws.ExportProgress(userID, exportID, progress, stage))
	return nil
}

func (c *WebSocketClient) NotifyExportComplete(ctx context.Context, userID int64, exportID, url, filename string) error {
	if c.hub == nil {
		return nil
	}
	c.hub.Broadcast(userID, ws.ExportComplete(userID, exportID, url, filename))
	return nil
}

func (c *WebSocketClient) NotifyExportFailed(ctx context.Context, userID int64, exportID, errMsg string) error {
	if c.hub == nil {
		return nil
	}
	c.hub.Broadcast(userID, ws.ExportFailed(userID, exportID, errMsg))
	return nil
}
