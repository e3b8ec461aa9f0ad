package models

import "time"

// OrderItemRecord is one row of the order workbook, the system of record.
// An order is the set of rows sharing an OrderNo; there is no separate
// header record, so the order-level fields (date, description) are copied
// onto every row.
type OrderItemRecord struct {
	RowID       int64     `json:"row_id"`
	OrderDate   string    `json:"order_date"` // Gregorian YYYY-MM-DD
	OrderNo     string    `json:"order_no"`
	ProductType string    `json:"product_type"`
	ProductCode string    `json:"product_code"`
	Quantity    int       `json:"quantity"`
	ItemIndex   int64     `json:"item_index"`
	Serial      string    `json:"serial"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// SequenceState holds the three running maxima needed to mint the next row:
// the highest item index of each numbering group and the highest global row
// id. It is never persisted as its own record; the durable source of truth
// is whatever a full rescan of the workbook recovers, which keeps the
// counters from diverging from the data after a crash. Row ids and item
// indexes are never reused, not even after deletes.
type SequenceState struct {
	MaxGroupA int64 `json:"max_group_a"`
	MaxGroupB int64 `json:"max_group_b"`
	MaxRowID  int64 `json:"max_row_id"`
}

// MintedSerial is one freshly assigned (item index, serial) pair, returned
// to the caller after a save for display and clipboard copy.
type MintedSerial struct {
	ItemIndex int64  `json:"item_index"`
	Serial    string `json:"serial"`
}
