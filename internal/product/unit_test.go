package product

import (
	"testing"

	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/product/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveUnit(t *testing.T) {
	units := []model.ProductUnit{
		{ID: 1, UUID: "u-carton", UnitLevel: model.UnitCarton},
		{ID: 2, UUID: "u-piece", UUIDProvisional: true, UnitLevel: model.UnitPiece, UnitMark: "sachet"},
	}

	tests := []struct {
		name    string
		in      dto.RemoteUnit
		wantID  int64
		wantErr error
	}{
		{"by uuid", dto.RemoteUnit{UUID: "u-carton", UnitLevel: model.UnitCarton, UnitMark: "25kg"}, 1, nil},
		{"by local id", dto.RemoteUnit{LocalID: 2, UnitLevel: model.UnitPiece}, 2, nil},
		{"by level and mark", dto.RemoteUnit{UnitLevel: model.UnitCarton}, 1, nil},
		{"remote uuid over provisional", dto.RemoteUnit{UUID: "r-piece", UnitLevel: model.UnitPiece, UnitMark: "sachet"}, 2, nil},
		{"new level", dto.RemoteUnit{UnitLevel: model.UnitMillier}, 0, nil},
		{"other identity at level", dto.RemoteUnit{UUID: "r-carton", UnitLevel: model.UnitCarton}, 0, ErrDuplicateUnit},
		{"other mark at level", dto.RemoteUnit{UnitLevel: model.UnitPiece, UnitMark: "boite"}, 0, ErrDuplicateUnit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveUnit(units, tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			if tt.wantID == 0 {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}
