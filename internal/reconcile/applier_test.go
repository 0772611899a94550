package reconcile

import (
	"context"
	"testing"

	"github.com/fekuna/omnipos-sync/internal/database/sqlite"
	debtrepo "github.com/fekuna/omnipos-sync/internal/debt/repository"
	debtusecase "github.com/fekuna/omnipos-sync/internal/debt/usecase"
	"github.com/fekuna/omnipos-sync/internal/device"
	invdto "github.com/fekuna/omnipos-sync/internal/inventory/dto"
	invrepo "github.com/fekuna/omnipos-sync/internal/inventory/repository"
	"github.com/fekuna/omnipos-sync/internal/logger"
	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/outbox"
	obdto "github.com/fekuna/omnipos-sync/internal/outbox/dto"
	obrepo "github.com/fekuna/omnipos-sync/internal/outbox/repository"
	obusecase "github.com/fekuna/omnipos-sync/internal/outbox/usecase"
	"github.com/fekuna/omnipos-sync/internal/product"
	prodrepo "github.com/fekuna/omnipos-sync/internal/product/repository"
	produsecase "github.com/fekuna/omnipos-sync/internal/product/usecase"
	"github.com/fekuna/omnipos-sync/internal/rate"
	raterepo "github.com/fekuna/omnipos-sync/internal/rate/repository"
	"github.com/fekuna/omnipos-sync/internal/remote"
	"github.com/fekuna/omnipos-sync/internal/sale"
	salerepo "github.com/fekuna/omnipos-sync/internal/sale/repository"
	saleusecase "github.com/fekuna/omnipos-sync/internal/sale/usecase"
	"github.com/fekuna/omnipos-sync/internal/testutil"
	"github.com/fekuna/omnipos-sync/internal/user"
	userrepo "github.com/fekuna/omnipos-sync/internal/user/repository"
	userusecase "github.com/fekuna/omnipos-sync/internal/user/usecase"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dc = device.Context{DeviceID: "device-0a1b2c3d"}

type fixture struct {
	db       *sqlx.DB
	applier  *Applier
	products product.UseCase
	sales    sale.UseCase
	users    user.UseCase
	rates    rate.Repository
	outbox   outbox.UseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	txm := sqlite.NewTxManager(db)
	log := logger.NewNop()

	ledger := invrepo.NewSQLiteRepository(db)
	rates := raterepo.NewSQLiteRepository(db, 2800)
	ob := obusecase.NewOutboxUseCase(obrepo.NewSQLiteRepository(db), ledger, txm, log)
	products := produsecase.NewProductUseCase(prodrepo.NewSQLiteRepository(db), ledger, rates, ob, txm, log)
	sales := saleusecase.NewSaleUseCase(salerepo.NewSQLiteRepository(db), prodrepo.NewSQLiteRepository(db), rates, ob, txm, log)
	debts := debtusecase.NewDebtUseCase(debtrepo.NewSQLiteRepository(db), txm, log)
	users := userusecase.NewUserUseCase(userrepo.NewSQLiteRepository(db), log)

	return &fixture{
		db:       db,
		applier:  NewApplier(products, sales, debts, users, rates, ob, txm, log),
		products: products,
		sales:    sales,
		users:    users,
		rates:    rates,
		outbox:   ob,
	}
}

func (f *fixture) seedRice(t *testing.T) *model.Product {
	t.Helper()
	return testutil.SeedProduct(t, f.db, model.Product{Code: "RIZ25", Name: "Riz 25kg", IsActive: true},
		model.ProductUnit{UnitLevel: model.UnitCarton, StockInitial: 10, StockCurrent: 10, SalePriceUSD: 10, SalePriceFC: 28000},
		model.ProductUnit{UnitLevel: model.UnitPiece, StockInitial: 40, StockCurrent: 40, SalePriceUSD: 0.45, SalePriceFC: 1260},
	)
}

func (f *fixture) unit(t *testing.T, code string, level model.UnitLevel) model.ProductUnit {
	t.Helper()
	p, err := f.products.GetProduct(context.Background(), code)
	require.NoError(t, err)
	for _, u := range p.Units {
		if u.UnitLevel == level {
			return u
		}
	}
	t.Fatalf("no %s unit on %s", level, code)
	return model.ProductUnit{}
}

func TestApply_UnknownEntity(t *testing.T) {
	f := newFixture(t)

	_, err := f.applier.Apply(context.Background(), "invoices", []remote.Row{{"x": 1}})
	require.ErrorIs(t, err, ErrUnknownEntity)

	res, err := f.applier.Apply(context.Background(), "invoices", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Rows)
}

func TestApplyProducts_FlatAndNestedRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rows := []remote.Row{
		{"code": "RIZ25", "name": "Riz 25kg", "unit_level": "Carton", "sale_price_usd": 10.0, "stock_current": 12.0},
		{"code": "RIZ25", "unit_level": "pièces", "sale_price_usd": "0,45", "stock_initial": "40"},
		{
			"uuid": "p-sucre",
			"code": "SUC50",
			"name": "Sucre 50kg",
			"units": []any{
				map[string]any{"uuid": "u-sucre-carton", "unit_level": "CARTON", "sale_price_usd": 40.0},
			},
		},
		{"name": "no code"},
	}

	res, err := f.applier.Apply(ctx, remote.EntityProducts, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, res.Failed)

	carton := f.unit(t, "RIZ25", model.UnitCarton)
	assert.Equal(t, 12.0, carton.StockCurrent)
	assert.Equal(t, 28000.0, carton.SalePriceFC)

	piece := f.unit(t, "RIZ25", model.UnitPiece)
	assert.Equal(t, 40.0, piece.StockCurrent)
	assert.Equal(t, 1260.0, piece.SalePriceFC)

	sucre, err := f.products.GetProduct(ctx, "SUC50")
	require.NoError(t, err)
	assert.Equal(t, "p-sucre", sucre.UUID)
	require.Len(t, sucre.Units, 1)
	assert.Equal(t, "u-sucre-carton", sucre.Units[0].UUID)
}

func TestApplyProducts_PendingStockMoveKeepsLocalStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedRice(t)

	_, err := f.outbox.EnqueueStockMove(ctx, dc, &invdto.StockMoveInput{
		ProductUUID: p.UUID,
		ProductCode: "RIZ25",
		UnitLevel:   model.UnitCarton,
		Delta:       -2,
		Reason:      model.ReasonAdjustment,
	})
	require.NoError(t, err)

	res, err := f.applier.Apply(ctx, remote.EntityProducts, []remote.Row{
		{"code": "RIZ25", "unit_level": "CARTON", "sale_price_usd": 12.0, "stock_current": 50.0},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	carton := f.unit(t, "RIZ25", model.UnitCarton)
	assert.Equal(t, 8.0, carton.StockCurrent)
	assert.Equal(t, 33600.0, carton.SalePriceFC)
}

func TestApplyProducts_RenamedMarkKeepsPendingStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedRice(t)
	carton := f.unit(t, "RIZ25", model.UnitCarton)

	moveID, err := f.outbox.EnqueueStockMove(ctx, dc, &invdto.StockMoveInput{
		ProductUUID: p.UUID,
		ProductCode: "RIZ25",
		UnitLevel:   model.UnitCarton,
		Delta:       -2,
		Reason:      model.ReasonSale,
	})
	require.NoError(t, err)

	rows := []remote.Row{
		{"code": "RIZ25", "unit_uuid": carton.UUID, "unit_level": "CARTON", "unit_mark": "25kg", "sale_price_usd": 10.0, "stock_current": 50.0},
	}

	for pass := 1; pass <= 2; pass++ {
		res, err := f.applier.Apply(ctx, remote.EntityProducts, rows)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Updated, "pass %d", pass)
		assert.Equal(t, 1, res.StockHeld, "pass %d", pass)

		got := f.unit(t, "RIZ25", model.UnitCarton)
		assert.Equal(t, 8.0, got.StockCurrent, "pass %d", pass)
		assert.Equal(t, "", got.UnitMark, "pass %d", pass)
	}

	// Once the move is acknowledged the remote snapshot and the rename land.
	require.NoError(t, f.outbox.MarkStockMovesSynced(ctx, []string{moveID}))
	res, err := f.applier.Apply(ctx, remote.EntityProducts, rows)
	require.NoError(t, err)
	assert.Zero(t, res.StockHeld)

	got := f.unit(t, "RIZ25", model.UnitCarton)
	assert.Equal(t, 50.0, got.StockCurrent)
	assert.Equal(t, "25kg", got.UnitMark)
	assert.Equal(t, carton.UUID, got.UUID)
}

func TestApplyProducts_RemoteUUIDReplacesProvisionalOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.applier.Apply(ctx, remote.EntityProducts, []remote.Row{
		{"code": "RIZ25", "name": "Riz 25kg", "unit_level": "CARTON", "sale_price_usd": 10.0, "stock_current": 12.0},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Inserted)
	provisional := f.unit(t, "RIZ25", model.UnitCarton)
	assert.True(t, provisional.UUIDProvisional)

	res, err = f.applier.Apply(ctx, remote.EntityProducts, []remote.Row{
		{"code": "RIZ25", "unit_uuid": "remote-u1", "unit_level": "CARTON", "sale_price_usd": 11.0, "stock_current": 20.0},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Zero(t, res.Skipped)

	carton := f.unit(t, "RIZ25", model.UnitCarton)
	assert.Equal(t, provisional.ID, carton.ID)
	assert.Equal(t, "remote-u1", carton.UUID)
	assert.False(t, carton.UUIDProvisional)
	assert.Equal(t, 11.0, carton.SalePriceUSD)
	assert.Equal(t, 30800.0, carton.SalePriceFC)
	assert.Equal(t, 20.0, carton.StockCurrent)

	// A confirmed uuid is an identity: another one at the same level collides.
	res, err = f.applier.Apply(ctx, remote.EntityProducts, []remote.Row{
		{"code": "RIZ25", "unit_uuid": "remote-u2", "unit_level": "CARTON", "sale_price_usd": 99.0, "stock_current": 1.0},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 11.0, f.unit(t, "RIZ25", model.UnitCarton).SalePriceUSD)
}

func TestApplyProducts_PendingProductPatchSkipsProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedRice(t)

	_, err := f.products.UpdateProduct(ctx, dc, "RIZ25", obdto.ProductPatch{Name: obdto.Ptr("Riz parfumé 25kg")})
	require.NoError(t, err)

	res, err := f.applier.Apply(ctx, remote.EntityProducts, []remote.Row{
		{"code": "RIZ25", "name": "Riz", "unit_level": "CARTON", "stock_current": 99.0},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, res.Applied())

	p, err := f.products.GetProduct(ctx, "RIZ25")
	require.NoError(t, err)
	assert.Equal(t, "Riz parfumé 25kg", p.Name)
	assert.Equal(t, 10.0, f.unit(t, "RIZ25", model.UnitCarton).StockCurrent)
}

func TestApplyProducts_PendingUnitPatchKeepsPrices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedRice(t)

	key := model.UnitKey{ProductCode: "RIZ25", UnitLevel: model.UnitPiece}
	_, err := f.products.UpdateUnit(ctx, dc, key, obdto.UnitPatch{SalePriceUSD: obdto.Ptr(0.5)})
	require.NoError(t, err)

	_, err = f.applier.Apply(ctx, remote.EntityProducts, []remote.Row{
		{"code": "RIZ25", "unit_level": "piece", "sale_price_usd": 0.4},
	})
	require.NoError(t, err)

	piece := f.unit(t, "RIZ25", model.UnitPiece)
	assert.Equal(t, 0.5, piece.SalePriceUSD)
	assert.Equal(t, 1400.0, piece.SalePriceFC)
}

func TestApplyRates_LatestRowRepricesUnits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedRice(t)

	res, err := f.applier.Apply(ctx, remote.EntityRates, []remote.Row{
		{"taux": "3000", "date": "2026-03-02"},
		{"rate_fc_per_usd": 2900.0, "effective_at": "2026-03-01T09:00:00Z"},
		{"rate": "n/a"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 2, res.Skipped)

	current, err := f.rates.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3000.0, current)
	assert.Equal(t, 30000.0, f.unit(t, "RIZ25", model.UnitCarton).SalePriceFC)
}

func TestApplySales_GroupsLinesByInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedRice(t)

	res, err := f.applier.Apply(ctx, remote.EntitySales, []remote.Row{
		{"invoice_number": "FAC-900", "sale_uuid": "s-900", "client_name": "Mama Nkulu", "product_code": "RIZ25", "unit_level": "carton", "qty": 2.0, "unit_price_fc": 28000.0},
		{"invoice_number": "FAC-900", "product_code": "RIZ25", "unit_level": "Pièce", "qty": "3", "unit_price_fc": 1260.0},
		{"invoice_number": "FAC-901", "product_code": "GHOST", "qty": 1.0},
		{"product_code": "RIZ25"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 2, res.Skipped)

	s, err := f.sales.GetSale(ctx, "FAC-900")
	require.NoError(t, err)
	assert.Equal(t, "s-900", s.UUID)
	assert.Equal(t, model.OriginRemote, s.Origin)
	assert.Equal(t, 59780.0, s.TotalFC)
	require.Len(t, s.Items, 2)
	assert.Equal(t, 56000.0, s.Items[0].SubtotalFC)
	assert.Equal(t, 3780.0, s.Items[1].SubtotalFC)

	// Remote sales never move local stock.
	assert.Equal(t, 10.0, f.unit(t, "RIZ25", model.UnitCarton).StockCurrent)
}

func TestApplyDebts_RemainingDefaultsAndSkips(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.applier.Apply(ctx, remote.EntityDebts, []remote.Row{
		{"invoice_number": "FAC-12", "client_name": "Papa Kabeya", "total_fc": 10000.0, "paid_fc": "4000"},
		{"note": "orphan"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Skipped)

	var remaining float64
	require.NoError(t, f.db.Get(&remaining, `SELECT remaining_fc FROM debts WHERE invoice_number = 'FAC-12'`))
	assert.Equal(t, 6000.0, remaining)

	res, err = f.applier.Apply(ctx, remote.EntityDebts, []remote.Row{
		{"invoice_number": "FAC-12", "client_name": "Papa Kabeya", "total_fc": 10000.0, "paid_fc": 10000.0},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
}

func TestApplyUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.applier.Apply(ctx, remote.EntityUsers, []remote.Row{
		{"nom": " Jean  Paul ", "numero": "0810000000", "is_admin": "oui"},
		{"username": ""},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Skipped)

	users, err := f.users.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "jean paul", users[0].Username)
	assert.True(t, users[0].IsAdmin)
	assert.True(t, users[0].IsSeller)
	assert.True(t, users[0].IsActive)
}
