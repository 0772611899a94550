package dto

import (
	"time"

	"github.com/fekuna/omnipos-sync/internal/model"
)

type MoveFilters struct {
	ProductCode string
	UnitLevel   model.UnitLevel
	UnitMark    *string // Nil for every mark
	Reason      model.MoveReason
	ReferenceID string
	Synced      *bool
	StartDate   *time.Time
	EndDate     *time.Time
	Limit       int
}
