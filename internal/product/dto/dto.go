package dto

type ProductFilters struct {
	IsActive    *bool
	SearchQuery string // For name or code search
	Page        int
	PageSize    int
}

// ApplyResult counts what happened to one remote product.
type ApplyResult struct {
	ProductCreated bool
	ProductUpdated bool
	UnitsInserted  int
	UnitsUpdated   int
	UnitsSkipped   int
	StockHeld      int // Units whose remote stock was ignored for pending moves
	UnitErrors     []error
}
