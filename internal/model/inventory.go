package model

import "time"

type MoveReason string

const (
	ReasonSale       MoveReason = "sale"
	ReasonAdjustment MoveReason = "adjustment"
	ReasonCorrection MoveReason = "correction"
	ReasonInventory  MoveReason = "inventory"
)

func (r MoveReason) Valid() bool {
	switch r {
	case ReasonSale, ReasonAdjustment, ReasonCorrection, ReasonInventory:
		return true
	}
	return false
}

type StockMove struct {
	ID          int64      `db:"id" json:"-"`
	MoveID      string     `db:"move_id" json:"move_id"`
	ProductUUID string     `db:"product_uuid" json:"product_uuid"`
	ProductCode string     `db:"product_code" json:"product_code"`
	UnitLevel   UnitLevel  `db:"unit_level" json:"unit_level"`
	UnitMark    string     `db:"unit_mark" json:"unit_mark"`
	Delta       float64    `db:"delta" json:"delta"`
	Reason      MoveReason `db:"reason" json:"reason"`
	ReferenceID *string    `db:"reference_id" json:"reference_id"`
	StockBefore float64    `db:"stock_before" json:"stock_before"`
	StockAfter  float64    `db:"stock_after" json:"stock_after"`
	DeviceID    string     `db:"device_id" json:"device_id"`
	Synced      bool       `db:"synced" json:"synced"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	SyncedAt    *time.Time `db:"synced_at" json:"synced_at"`
}
