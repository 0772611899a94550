package product

import "github.com/shopspring/decimal"

// SalePriceFC derives the local-currency price: round(usd × rate).
func SalePriceFC(usd, rate float64) float64 {
	return decimal.NewFromFloat(usd).Mul(decimal.NewFromFloat(rate)).Round(0).InexactFloat64()
}
