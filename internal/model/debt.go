package model

import "time"

type Debt struct {
	ID                 int64     `db:"id" json:"id"`
	UUID               string    `db:"uuid" json:"uuid"`
	InvoiceNum         string    `db:"invoice_number" json:"invoice_number"`
	ClientName         string    `db:"client_name" json:"client_name"`
	ClientPhone        string    `db:"client_phone" json:"client_phone"`
	ProductDescription string    `db:"product_description" json:"product_description"`
	TotalFC            float64   `db:"total_fc" json:"total_fc"`
	PaidFC             float64   `db:"paid_fc" json:"paid_fc"`
	RemainingFC        float64   `db:"remaining_fc" json:"remaining_fc"`
	TotalUSD           float64   `db:"total_usd" json:"total_usd"`
	Note               string    `db:"note" json:"note"`
	Status             string    `db:"status" json:"status"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

type ExchangeRate struct {
	ID           int64     `db:"id" json:"id"`
	RateFCPerUSD float64   `db:"rate_fc_per_usd" json:"rate_fc_per_usd"`
	EffectiveAt  time.Time `db:"effective_at" json:"effective_at"`
	Source       Origin    `db:"source" json:"source"`
}

type User struct {
	ID        int64     `db:"id" json:"id"`
	UUID      string    `db:"uuid" json:"uuid"`
	Username  string    `db:"username" json:"username"`
	Phone     string    `db:"phone" json:"phone"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	IsAdmin   bool      `db:"is_admin" json:"is_admin"`
	IsSeller  bool      `db:"is_seller" json:"is_seller"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
