package settings

import (
	"context"
	"time"
)

const (
	KeyDeviceID          = "device_id"
	KeyInitialImportDone = "initial_import_done"
	KeyLastPullDate      = "last_pull_date"
	KeyExchangeRate      = "exchange_rate_fc_per_usd"
	WatermarkPrefix      = "last_pull_"
)

type UseCase interface {
	// EnsureDeviceID returns the persisted device id, generating it once.
	EnsureDeviceID(ctx context.Context) (string, error)

	// Watermark returns the last successful pull time for entity, or the
	// epoch when none was recorded.
	Watermark(ctx context.Context, entity string) (time.Time, error)
	SetWatermark(ctx context.Context, entity string, at time.Time) error
	ResetWatermarks(ctx context.Context) error

	InitialImportDone(ctx context.Context) (bool, error)
	MarkInitialImportDone(ctx context.Context) error
}
