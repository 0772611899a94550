package usecase

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-sync/internal/logger"
	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/user"
	"github.com/google/uuid"
)

type userUseCase struct {
	repo   user.Repository
	logger logger.ZapLogger
}

func NewUserUseCase(repo user.Repository, log logger.ZapLogger) user.UseCase {
	return &userUseCase{
		repo:   repo,
		logger: log,
	}
}

func (uc *userUseCase) ApplyRemote(ctx context.Context, remote *model.User) (bool, error) {
	u := *remote
	u.Username = user.NormalizeUsername(u.Username)
	if u.Username == "" {
		return false, user.ErrEmptyUsername
	}

	var existing *model.User
	var err error
	if u.UUID != "" {
		if existing, err = uc.repo.FindByUUID(ctx, u.UUID); err != nil {
			return false, err
		}
	}
	if existing == nil {
		if existing, err = uc.repo.FindByUsername(ctx, u.Username); err != nil {
			return false, err
		}
	}

	u.UpdatedAt = time.Now().UTC()
	if existing == nil {
		if u.UUID == "" {
			u.UUID = uuid.New().String()
		}
		return true, uc.repo.Create(ctx, &u)
	}

	u.ID = existing.ID
	if u.UUID == "" {
		u.UUID = existing.UUID
	}
	return false, uc.repo.Update(ctx, &u)
}

func (uc *userUseCase) ListUsers(ctx context.Context) ([]model.User, error) {
	return uc.repo.List(ctx)
}
