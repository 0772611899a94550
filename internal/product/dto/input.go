package dto

import (
	"time"

	"github.com/fekuna/omnipos-sync/internal/model"
)

// RemoteProduct is one product assembled from remote rows.
type RemoteProduct struct {
	UUID      string
	Code      string
	Name      string
	IsActive  bool
	UpdatedAt time.Time
	Units     []RemoteUnit
}

type RemoteUnit struct {
	UUID             string
	LocalID          int64 // Numeric id echoed back by the remote, 0 if unknown
	UnitLevel        model.UnitLevel
	UnitMark         string
	Stock            *float64 // Nil when the row carries no stock
	PurchasePriceUSD float64
	SalePriceUSD     float64
	AutoStockFactor  float64
	QtyStep          float64
	LastUpdate       *time.Time

	// Guards decided by the caller from pending local writes.
	KeepStock  bool
	KeepPrices bool
}
