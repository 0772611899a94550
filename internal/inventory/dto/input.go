package dto

import "github.com/fekuna/omnipos-sync/internal/model"

type StockMoveInput struct {
	ProductUUID string
	ProductCode string
	UnitLevel   model.UnitLevel
	UnitMark    string
	Delta       float64
	Reason      model.MoveReason
	ReferenceID string // Optional correlation, e.g. invoice number
}

func (in *StockMoveInput) Key() model.UnitKey {
	return model.UnitKey{ProductCode: in.ProductCode, UnitLevel: in.UnitLevel, UnitMark: in.UnitMark}
}
