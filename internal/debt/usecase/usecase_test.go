package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/fekuna/omnipos-sync/internal/database/sqlite"
	"github.com/fekuna/omnipos-sync/internal/debt"
	"github.com/fekuna/omnipos-sync/internal/debt/repository"
	"github.com/fekuna/omnipos-sync/internal/logger"
	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/testutil"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUseCase(t *testing.T) (debt.UseCase, *sqlx.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	return NewDebtUseCase(repository.NewSQLiteRepository(db), sqlite.NewTxManager(db), logger.NewNop()), db
}

func anonymousDebt(paid float64) *model.Debt {
	return &model.Debt{
		ClientName:         "Mama Nkulu",
		ProductDescription: "Riz 25kg x2",
		TotalFC:            56000,
		PaidFC:             paid,
		RemainingFC:        56000 - paid,
		CreatedAt:          time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestApplyRemote_StableKeyMapsToSameDebt(t *testing.T) {
	uc, db := newUseCase(t)
	ctx := context.Background()

	created, err := uc.ApplyRemote(ctx, anonymousDebt(0))
	require.NoError(t, err)
	assert.True(t, created)

	// Same debt, different casing and a new payment.
	again := anonymousDebt(20000)
	again.ClientName = "  MAMA NKULU "
	created, err = uc.ApplyRemote(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)

	debts, err := uc.ListDebts(ctx, false, 10)
	require.NoError(t, err)
	require.Len(t, debts, 1)
	assert.Equal(t, 20000.0, debts[0].PaidFC)
	assert.Equal(t, 36000.0, debts[0].RemainingFC)
	assert.Equal(t, debt.StatusOpen, debts[0].Status)

	var identities int
	require.NoError(t, db.Get(&identities, `SELECT COUNT(*) FROM debt_identities`))
	assert.Equal(t, 1, identities)
}

func TestApplyRemote_MatchesByInvoice(t *testing.T) {
	uc, _ := newUseCase(t)
	ctx := context.Background()

	_, err := uc.ApplyRemote(ctx, &model.Debt{UUID: "d-1", InvoiceNum: "FAC-001", TotalFC: 1000, RemainingFC: 1000})
	require.NoError(t, err)

	created, err := uc.ApplyRemote(ctx, &model.Debt{InvoiceNum: "FAC-001", TotalFC: 1000, PaidFC: 1000})
	require.NoError(t, err)
	assert.False(t, created)

	open, err := uc.ListDebts(ctx, true, 10)
	require.NoError(t, err)
	assert.Empty(t, open)

	all, err := uc.ListDebts(ctx, false, 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "d-1", all[0].UUID)
	assert.Equal(t, debt.StatusPaid, all[0].Status)
}

func TestStableKey(t *testing.T) {
	a := anonymousDebt(0)
	b := anonymousDebt(500)
	b.ProductDescription = " riz 25KG x2"
	assert.Equal(t, debt.StableKey(a), debt.StableKey(b))

	c := anonymousDebt(0)
	c.CreatedAt = c.CreatedAt.Add(time.Second)
	assert.NotEqual(t, debt.StableKey(a), debt.StableKey(c))
}
