package model

import "time"

type Sale struct {
	ID           int64      `db:"id" json:"id"`
	UUID         string     `db:"uuid" json:"uuid"`
	InvoiceNum   string     `db:"invoice_number" json:"invoice_number"`
	SoldAt       time.Time  `db:"sold_at" json:"sold_at"`
	ClientName   string     `db:"client_name" json:"client_name"`
	ClientPhone  string     `db:"client_phone" json:"client_phone"`
	SellerName   string     `db:"seller_name" json:"seller_name"`
	TotalFC      float64    `db:"total_fc" json:"total_fc"`
	TotalUSD     float64    `db:"total_usd" json:"total_usd"`
	RateFCPerUSD float64    `db:"rate_fc_per_usd" json:"rate_fc_per_usd"`
	PaymentMode  string     `db:"payment_mode" json:"payment_mode"`
	Status       string     `db:"status" json:"status"`
	Origin       Origin     `db:"origin" json:"origin"`
	DeviceID     string     `db:"device_id" json:"device_id"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	Items        []SaleItem `db:"-" json:"items"`
}

type SaleItem struct {
	ID           int64     `db:"id" json:"-"`
	UUID         string    `db:"uuid" json:"uuid"`
	SaleID       int64     `db:"sale_id" json:"-"`
	ProductID    int64     `db:"product_id" json:"-"`
	ProductCode  string    `db:"product_code" json:"product_code"`
	ProductName  string    `db:"product_name" json:"product_name"`
	UnitLevel    UnitLevel `db:"unit_level" json:"unit_level"`
	UnitMark     string    `db:"unit_mark" json:"unit_mark"`
	Qty          float64   `db:"qty" json:"qty"`
	UnitPriceFC  float64   `db:"unit_price_fc" json:"unit_price_fc"`
	UnitPriceUSD float64   `db:"unit_price_usd" json:"unit_price_usd"`
	SubtotalFC   float64   `db:"subtotal_fc" json:"subtotal_fc"`
	SubtotalUSD  float64   `db:"subtotal_usd" json:"subtotal_usd"`
}
