package usecase

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/fekuna/omnipos-sync/internal/logger"
	"github.com/fekuna/omnipos-sync/internal/settings"
	"github.com/fekuna/omnipos-sync/internal/settings/repository"
	"github.com/fekuna/omnipos-sync/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUseCase(t *testing.T) (settings.UseCase, settings.Repository) {
	t.Helper()
	repo := repository.NewSQLiteRepository(testutil.NewDB(t))
	return NewSettingsUseCase(repo, logger.NewNop()), repo
}

func TestEnsureDeviceID_GeneratedOnceAndReused(t *testing.T) {
	uc, _ := newUseCase(t)
	ctx := context.Background()

	first, err := uc.EnsureDeviceID(ctx)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^device-[0-9a-f]{8}$`), first)

	second, err := uc.EnsureDeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestWatermark_DefaultsToEpoch(t *testing.T) {
	uc, _ := newUseCase(t)

	at, err := uc.Watermark(context.Background(), "products")
	require.NoError(t, err)
	assert.True(t, at.Equal(time.Unix(0, 0)))
}

func TestWatermark_RoundTripPerEntity(t *testing.T) {
	uc, repo := newUseCase(t)
	ctx := context.Background()
	at := time.Date(2026, 2, 10, 14, 30, 0, 123000000, time.UTC)

	require.NoError(t, uc.SetWatermark(ctx, "sales", at))

	got, err := uc.Watermark(ctx, "sales")
	require.NoError(t, err)
	assert.True(t, got.Equal(at))

	other, err := uc.Watermark(ctx, "debts")
	require.NoError(t, err)
	assert.True(t, other.Equal(time.Unix(0, 0)))

	raw, ok, err := repo.Get(ctx, "last_pull_sales")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2026-02-10T14:30:00.123Z", raw)
}

func TestWatermark_InvalidValueFallsBackToEpoch(t *testing.T) {
	uc, repo := newUseCase(t)
	ctx := context.Background()
	require.NoError(t, repo.Set(ctx, "last_pull_rates", "yesterday"))

	at, err := uc.Watermark(ctx, "rates")
	require.NoError(t, err)
	assert.True(t, at.Equal(time.Unix(0, 0)))
}

func TestResetWatermarks_KeepsOtherSettings(t *testing.T) {
	uc, repo := newUseCase(t)
	ctx := context.Background()

	id, err := uc.EnsureDeviceID(ctx)
	require.NoError(t, err)
	require.NoError(t, uc.SetWatermark(ctx, "users", time.Now()))
	require.NoError(t, uc.ResetWatermarks(ctx))

	_, ok, err := repo.Get(ctx, "last_pull_users")
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := uc.EnsureDeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestInitialImportFlag(t *testing.T) {
	uc, _ := newUseCase(t)
	ctx := context.Background()

	done, err := uc.InitialImportDone(ctx)
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, uc.MarkInitialImportDone(ctx))
	done, err = uc.InitialImportDone(ctx)
	require.NoError(t, err)
	assert.True(t, done)
}
