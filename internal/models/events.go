package models

import "time"

// Event types published for downstream production tracking
const (
	EventTypeOrderRegistered = "order.registered"
	EventTypeOrderUpdated    = "order.updated"
)

// BaseEvent contains common event fields
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderRegisteredEvent is emitted after an order's rows land in the workbook
type OrderRegisteredEvent struct {
	BaseEvent
	OrderNo   string         `json:"order_no"`
	OrderDate string         `json:"order_date"`
	CreatedBy string         `json:"created_by,omitempty"`
	Serials   []MintedSerial `json:"serials"`
}
