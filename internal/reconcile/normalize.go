package reconcile

import (
	"strings"

	"github.com/fekuna/omnipos-sync/internal/model"
)

// NormalizeUnitLevel maps the spellings found in remote sheets (millier,
// Milliers, cartons, Pièce, ...) to a unit level. Millier is checked first
// so that labels mentioning both resolve the same way every time.
func NormalizeUnitLevel(s string) (model.UnitLevel, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "":
		return "", false
	case strings.Contains(v, "millier"):
		return model.UnitMillier, true
	case strings.Contains(v, "carton"):
		return model.UnitCarton, true
	case strings.Contains(v, "piece"), strings.Contains(v, "pièce"):
		return model.UnitPiece, true
	}
	return "", false
}
