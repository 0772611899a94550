package repository

import (
	"context"
	"testing"
	"time"

	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrent_DefaultWhenNothingStored(t *testing.T) {
	repo := NewSQLiteRepository(testutil.NewDB(t), 2800)

	v, err := repo.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2800.0, v)
}

func TestSetCurrent_UpdatesSettingAndHistory(t *testing.T) {
	repo := NewSQLiteRepository(testutil.NewDB(t), 2800)
	ctx := context.Background()
	at := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.SetCurrent(ctx, 2750, at, model.OriginRemote))
	require.NoError(t, repo.SetCurrent(ctx, 2900.5, at.Add(time.Hour), model.OriginLocal))

	v, err := repo.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2900.5, v)

	history, err := repo.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 2900.5, history[0].RateFCPerUSD)
	assert.Equal(t, model.OriginLocal, history[0].Source)
	assert.Equal(t, model.OriginRemote, history[1].Source)
}

func TestSetCurrent_RejectsNonPositive(t *testing.T) {
	repo := NewSQLiteRepository(testutil.NewDB(t), 2800)

	assert.Error(t, repo.SetCurrent(context.Background(), 0, time.Now(), model.OriginLocal))
}
