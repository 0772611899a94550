package remote

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRow(t *testing.T, s string) Row {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var r Row
	require.NoError(t, dec.Decode(&r))
	return r
}

func TestRow_Accessors(t *testing.T) {
	r := decodeRow(t, `{
		"code": " RIZ25 ",
		"name": "",
		"designation": "Riz 25kg",
		"stock_current": 12,
		"sale_price_usd": "10,5",
		"is_active": "oui",
		"missing": null,
		"units": [{"unit_level": "CARTON"}, "junk", {"unit_level": "PIECE"}]
	}`)

	assert.Equal(t, "RIZ25", r.String("code"))
	assert.Equal(t, "Riz 25kg", r.String("name", "designation"))
	assert.Equal(t, "", r.String("missing"))

	stock, ok := r.Float("stock_current")
	require.True(t, ok)
	assert.Equal(t, 12.0, stock)

	price, ok := r.Float("sale_price_usd")
	require.True(t, ok)
	assert.Equal(t, 10.5, price)

	assert.Equal(t, 1.0, r.FloatOr(1, "qty_step"))
	assert.Equal(t, int64(12), r.Int("stock_current"))
	assert.True(t, r.Bool(false, "is_active"))
	assert.False(t, r.Bool(false, "missing"))

	units, ok := r.Rows("units")
	require.True(t, ok)
	require.Len(t, units, 2)
	assert.Equal(t, "PIECE", units[1].String("unit_level"))
}

func TestRow_UpdatedAtPriority(t *testing.T) {
	r := decodeRow(t, `{
		"created_at": "2026-01-01T00:00:00Z",
		"last_update": "2026-02-01 10:00:00",
		"_remote_updated_at": "2026-03-01T08:30:00.250Z"
	}`)

	at, ok := r.UpdatedAt()
	require.True(t, ok)
	assert.True(t, at.Equal(time.Date(2026, 3, 1, 8, 30, 0, 250000000, time.UTC)))

	delete(r, "_remote_updated_at")
	at, ok = r.UpdatedAt()
	require.True(t, ok)
	assert.True(t, at.Equal(time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)))

	_, ok = Row{}.UpdatedAt()
	assert.False(t, ok)
}

func TestCursor_Decoding(t *testing.T) {
	var resp PullResponse
	require.NoError(t, json.Unmarshal([]byte(`{"next_cursor": 600}`), &resp))
	assert.Equal(t, Cursor("600"), resp.NextCursor)

	var last PullResponse
	require.NoError(t, json.Unmarshal([]byte(`{"next_cursor": null, "done": true}`), &last))
	assert.Equal(t, Cursor(""), last.NextCursor)
	assert.True(t, last.Done)
}
