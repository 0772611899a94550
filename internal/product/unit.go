package product

import (
	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/product/dto"
)

// ResolveUnit finds the local unit a remote unit maps to: by uuid, then by
// local id, then by (level, mark). A nil unit with a nil error means the
// remote unit is new. Any other unit holding the same level makes the row a
// duplicate.
func ResolveUnit(units []model.ProductUnit, ru dto.RemoteUnit) (*model.ProductUnit, error) {
	var target *model.ProductUnit

	if ru.UUID != "" {
		for i := range units {
			if units[i].UUID == ru.UUID {
				target = &units[i]
				break
			}
		}
	}
	if target == nil && ru.LocalID != 0 {
		for i := range units {
			if units[i].ID == ru.LocalID {
				target = &units[i]
				break
			}
		}
	}
	// A uuid asserted by the remote only replaces a provisional local one.
	if target == nil {
		for i := range units {
			u := &units[i]
			if u.UnitLevel != ru.UnitLevel || u.UnitMark != ru.UnitMark {
				continue
			}
			if ru.UUID == "" || u.UUID == "" || u.UUIDProvisional {
				target = u
				break
			}
		}
	}

	for i := range units {
		u := &units[i]
		if u.UnitLevel != ru.UnitLevel {
			continue
		}
		if target == nil || u.ID != target.ID {
			return nil, ErrDuplicateUnit
		}
	}
	return target, nil
}
