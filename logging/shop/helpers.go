package shop

import (
	"context"

	"drift-and-dredge/server/logging"
)

const (
	// EventStockRolled is emitted when a kiosk restocks.
	EventStockRolled logging.EventType = "shop.stock_rolled"
)

// StockRolledPayload captures a kiosk restock.
type StockRolledPayload struct {
	Kiosk       string   `json:"kiosk"`
	ItemIDs     []string `json:"itemIds"`
	PriceFactor float64  `json:"priceFactor"`
}

// StockRolled publishes a kiosk restock event.
func StockRolled(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload StockRolledPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventStockRolled,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryEconomy,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
