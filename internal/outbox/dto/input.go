package dto

import "github.com/fekuna/omnipos-sync/internal/model"

type PendingFilters struct {
	OpType *model.OpType // Nil for every type
	Limit  int
}
