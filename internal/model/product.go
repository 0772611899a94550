package model

import "time"

type UnitLevel string

const (
	UnitCarton  UnitLevel = "CARTON"
	UnitMillier UnitLevel = "MILLIER"
	UnitPiece   UnitLevel = "PIECE"
)

// UnitLevels is the order products are pulled in during a full import.
var UnitLevels = []UnitLevel{UnitCarton, UnitMillier, UnitPiece}

func (l UnitLevel) Valid() bool {
	switch l {
	case UnitCarton, UnitMillier, UnitPiece:
		return true
	}
	return false
}

type Origin string

const (
	OriginLocal  Origin = "LOCAL"
	OriginRemote Origin = "REMOTE"
)

type Product struct {
	ID        int64         `db:"id" json:"id"`
	UUID      string        `db:"uuid" json:"uuid"`
	Code      string        `db:"code" json:"code"`
	Name      string        `db:"name" json:"name"`
	IsActive  bool          `db:"is_active" json:"is_active"`
	Origin    Origin        `db:"origin" json:"origin"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
	Units     []ProductUnit `db:"-" json:"units"` // Not in DB table directly
}

type ProductUnit struct {
	ID               int64      `db:"id" json:"id"`
	UUID             string     `db:"uuid" json:"uuid"`
	UUIDProvisional  bool       `db:"uuid_provisional" json:"-"` // Local uuid the remote has not confirmed yet
	ProductID        int64      `db:"product_id" json:"product_id"`
	UnitLevel        UnitLevel  `db:"unit_level" json:"unit_level"`
	UnitMark         string     `db:"unit_mark" json:"unit_mark"`
	StockInitial     float64    `db:"stock_initial" json:"stock_initial"`
	StockCurrent     float64    `db:"stock_current" json:"stock_current"`
	BaselineMoveSeq  int64      `db:"baseline_move_seq" json:"-"`
	PurchasePriceUSD float64    `db:"purchase_price_usd" json:"purchase_price_usd"`
	SalePriceUSD     float64    `db:"sale_price_usd" json:"sale_price_usd"`
	SalePriceFC      float64    `db:"sale_price_fc" json:"sale_price_fc"` // Always derived from USD x rate
	AutoStockFactor  float64    `db:"auto_stock_factor" json:"auto_stock_factor"`
	QtyStep          float64    `db:"qty_step" json:"qty_step"`
	LastUpdate       *time.Time `db:"last_update" json:"last_update"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// UnitKey is the composite identity used by the outbox and the ledger.
type UnitKey struct {
	ProductCode string
	UnitLevel   UnitLevel
	UnitMark    string
}

func (k UnitKey) String() string {
	return k.ProductCode + "/" + string(k.UnitLevel) + "/" + k.UnitMark
}
