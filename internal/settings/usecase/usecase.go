package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-sync/internal/device"
	"github.com/fekuna/omnipos-sync/internal/logger"
	"github.com/fekuna/omnipos-sync/internal/settings"
	"go.uber.org/zap"
)

type settingsUseCase struct {
	repo   settings.Repository
	logger logger.ZapLogger
}

func NewSettingsUseCase(repo settings.Repository, log logger.ZapLogger) settings.UseCase {
	return &settingsUseCase{
		repo:   repo,
		logger: log,
	}
}

func (uc *settingsUseCase) EnsureDeviceID(ctx context.Context) (string, error) {
	id, ok, err := uc.repo.Get(ctx, settings.KeyDeviceID)
	if err != nil {
		return "", err
	}
	if ok && id != "" {
		return id, nil
	}

	id = device.NewID()
	if err := uc.repo.Set(ctx, settings.KeyDeviceID, id); err != nil {
		return "", err
	}
	uc.logger.Info("Generated device id", zap.String("device_id", id))
	return id, nil
}

func (uc *settingsUseCase) Watermark(ctx context.Context, entity string) (time.Time, error) {
	raw, ok, err := uc.repo.Get(ctx, settings.WatermarkPrefix+entity)
	if err != nil {
		return time.Time{}, err
	}
	if !ok || raw == "" {
		return time.Unix(0, 0).UTC(), nil
	}

	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		// An unreadable watermark is treated as never pulled.
		uc.logger.Warn("Invalid watermark, falling back to epoch", zap.String("entity", entity), zap.String("value", raw))
		return time.Unix(0, 0).UTC(), nil
	}
	return at.UTC(), nil
}

func (uc *settingsUseCase) SetWatermark(ctx context.Context, entity string, at time.Time) error {
	value := at.UTC().Format(time.RFC3339Nano)
	if err := uc.repo.Set(ctx, settings.WatermarkPrefix+entity, value); err != nil {
		return fmt.Errorf("failed to set watermark for %s: %w", entity, err)
	}
	return uc.repo.Set(ctx, settings.KeyLastPullDate, value)
}

func (uc *settingsUseCase) ResetWatermarks(ctx context.Context) error {
	return uc.repo.DeletePrefix(ctx, settings.WatermarkPrefix)
}

func (uc *settingsUseCase) InitialImportDone(ctx context.Context) (bool, error) {
	v, _, err := uc.repo.Get(ctx, settings.KeyInitialImportDone)
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

func (uc *settingsUseCase) MarkInitialImportDone(ctx context.Context) error {
	return uc.repo.Set(ctx, settings.KeyInitialImportDone, "1")
}
