package dto

import "github.com/fekuna/omnipos-sync/internal/model"

type RecordSaleInput struct {
	InvoiceNum  string
	ClientName  string
	ClientPhone string
	SellerName  string
	PaymentMode string // Defaults to cash
	Items       []SaleItemInput
}

type SaleItemInput struct {
	ProductCode string
	UnitLevel   model.UnitLevel
	UnitMark    string
	Qty         float64
}

// ApplyResult describes what happened to one remote sale.
type ApplyResult struct {
	Created      bool
	Replaced     bool
	SkippedLocal bool // A LOCAL sale already owns the invoice
	ItemsSkipped int
}
