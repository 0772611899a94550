package model

import "time"

type OpType string

const (
	OpProductPatch OpType = "PRODUCT_PATCH"
	OpUnitPatch    OpType = "UNIT_PATCH"
	OpStockMove    OpType = "STOCK_MOVE"
	OpSale         OpType = "SALE"
)

var OpTypes = []OpType{OpProductPatch, OpUnitPatch, OpStockMove, OpSale}

type OpStatus string

const (
	StatusPending OpStatus = "pending"
	StatusSent    OpStatus = "sent"
	StatusAcked   OpStatus = "acked"
	StatusError   OpStatus = "error"
)

type SyncOperation struct {
	ID         int64      `db:"id" json:"-"`
	OpID       string     `db:"op_id" json:"op_id"`
	OpType     OpType     `db:"op_type" json:"op_type"`
	EntityUUID string     `db:"entity_uuid" json:"entity_uuid"`
	EntityCode string     `db:"entity_code" json:"entity_code"`
	Payload    string     `db:"payload" json:"payload"` // JSON document
	DeviceID   string     `db:"device_id" json:"device_id"`
	Status     OpStatus   `db:"status" json:"status"`
	Tries      int        `db:"tries" json:"tries"`
	LastError  *string    `db:"last_error" json:"last_error"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
	SentAt     *time.Time `db:"sent_at" json:"sent_at"`
	AckedAt    *time.Time `db:"acked_at" json:"acked_at"`
}

type OutboxStats struct {
	PendingByType     map[OpType]int `json:"pending_by_type"`
	TotalPending      int            `json:"total_pending"`
	Sent              int            `json:"sent"`
	Errors            int            `json:"errors"`
	ErrorsAtCap       int            `json:"errors_at_cap"`
	StockMovesPending int            `json:"stock_moves_pending"`
	LastAckedAt       *time.Time     `json:"last_acked_at"`
}
