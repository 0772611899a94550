package reconcile

import (
	"testing"

	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUnitLevel(t *testing.T) {
	tests := []struct {
		in   string
		want model.UnitLevel
		ok   bool
	}{
		{"MILLIER", model.UnitMillier, true},
		{" Milliers ", model.UnitMillier, true},
		{"cartons", model.UnitCarton, true},
		{"Pièce", model.UnitPiece, true},
		{"pieces", model.UnitPiece, true},
		{"millier de cartons", model.UnitMillier, true},
		{"sac", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeUnitLevel(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGroupProducts_UnitLevelDefaults(t *testing.T) {
	grouped, skipped := groupProducts([]remote.Row{
		{"product_code": "HUILE5", "product_name": "Huile 5L", "product_uuid": "p-huile", "uuid": "u-1"},
		{"code": "HUILE5", "unit_level": "sac", "unit_uuid": "u-2", "is_active": "non"},
	})
	assert.Equal(t, 0, skipped)
	require.Len(t, grouped, 1)

	p := grouped[0]
	assert.Equal(t, "p-huile", p.UUID)
	assert.Equal(t, "Huile 5L", p.Name)
	assert.False(t, p.IsActive)
	require.Len(t, p.Units, 2)
	assert.Equal(t, model.UnitPiece, p.Units[0].UnitLevel)
	assert.Equal(t, "u-1", p.Units[0].UUID)
	assert.Nil(t, p.Units[0].Stock)
	assert.Equal(t, model.UnitLevel("SAC"), p.Units[1].UnitLevel)
	assert.Equal(t, "u-2", p.Units[1].UUID)
}

func TestGroupSales_ComputesSubtotals(t *testing.T) {
	grouped, skipped := groupSales([]remote.Row{
		{"invoice_number": "FAC-1", "product_code": "RIZ25", "qty": 1.5, "unit_price_usd": 10.0, "unit_price_fc": 28000.0},
		{"invoice_number": "FAC-1", "product_code": "SUC50", "qty": 1.0, "subtotal_fc": 100000.0},
	})
	assert.Equal(t, 0, skipped)
	require.Len(t, grouped, 1)

	s := grouped[0]
	assert.Equal(t, "cash", s.PaymentMode)
	require.Len(t, s.Items, 2)
	assert.Equal(t, 42000.0, s.Items[0].SubtotalFC)
	assert.Equal(t, 15.0, s.Items[0].SubtotalUSD)
	assert.Equal(t, model.UnitLevel(""), s.Items[0].UnitLevel)
	assert.Equal(t, 142000.0, s.TotalFC)
}
