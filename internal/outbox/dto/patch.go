package dto

import "github.com/fekuna/omnipos-sync/internal/model"

// ProductPatch holds the optional product fields a local edit touched.
type ProductPatch struct {
	Name     *string `json:"name,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// Merge returns p overlaid with every field set in next.
func (p ProductPatch) Merge(next ProductPatch) ProductPatch {
	if next.Name != nil {
		p.Name = next.Name
	}
	if next.IsActive != nil {
		p.IsActive = next.IsActive
	}
	return p
}

func (p ProductPatch) IsEmpty() bool {
	return p.Name == nil && p.IsActive == nil
}

// UnitPatch holds the optional unit fields a local edit touched. Stock is
// never patched: it travels as STOCK_MOVE deltas.
type UnitPatch struct {
	SalePriceUSD     *float64 `json:"sale_price_usd,omitempty"`
	PurchasePriceUSD *float64 `json:"purchase_price_usd,omitempty"`
	AutoStockFactor  *float64 `json:"auto_stock_factor,omitempty"`
	QtyStep          *float64 `json:"qty_step,omitempty"`
}

func (p UnitPatch) Merge(next UnitPatch) UnitPatch {
	if next.SalePriceUSD != nil {
		p.SalePriceUSD = next.SalePriceUSD
	}
	if next.PurchasePriceUSD != nil {
		p.PurchasePriceUSD = next.PurchasePriceUSD
	}
	if next.AutoStockFactor != nil {
		p.AutoStockFactor = next.AutoStockFactor
	}
	if next.QtyStep != nil {
		p.QtyStep = next.QtyStep
	}
	return p
}

func (p UnitPatch) IsEmpty() bool {
	return p.SalePriceUSD == nil && p.PurchasePriceUSD == nil && p.AutoStockFactor == nil && p.QtyStep == nil
}

// ProductPatchPayload is the JSON stored in sync_operations.payload.
type ProductPatchPayload struct {
	UUID string `json:"uuid"`
	Code string `json:"code"`
	ProductPatch
}

type UnitPatchPayload struct {
	ProductUUID string          `json:"product_uuid"`
	ProductCode string          `json:"product_code"`
	UnitLevel   model.UnitLevel `json:"unit_level"`
	UnitMark    string          `json:"unit_mark"`
	UnitPatch
}

type StockMovePayload struct {
	MoveID      string           `json:"move_id"`
	ProductUUID string           `json:"product_uuid"`
	ProductCode string           `json:"product_code"`
	UnitLevel   model.UnitLevel  `json:"unit_level"`
	UnitMark    string           `json:"unit_mark"`
	Delta       float64          `json:"delta"`
	Reason      model.MoveReason `json:"reason"`
	ReferenceID *string          `json:"reference_id"`
	StockBefore float64          `json:"stock_before"`
	StockAfter  float64          `json:"stock_after"`
	DeviceID    string           `json:"device_id"`
}

// Ptr is a helper for building patches.
func Ptr[T any](v T) *T {
	return &v
}
