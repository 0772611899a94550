package reconcile

import (
	"context"
	"errors"

	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/remote"
	"github.com/fekuna/omnipos-sync/internal/user"
	"go.uber.org/zap"
)

func remoteUser(row remote.Row) *model.User {
	return &model.User{
		UUID:     row.String("uuid"),
		Username: row.String("username", "nom"),
		Phone:    row.String("phone", "numero"),
		IsActive: row.Bool(true, "is_active"),
		IsAdmin:  row.Bool(false, "is_admin"),
		IsSeller: row.Bool(true, "is_seller"),
	}
}

func (a *Applier) applyUsers(ctx context.Context, rows []remote.Row, res *Result) error {
	for _, row := range rows {
		u := remoteUser(row)
		created, err := a.users.ApplyRemote(ctx, u)
		switch {
		case errors.Is(err, user.ErrEmptyUsername):
			res.Skipped++
		case err != nil:
			res.Failed++
			a.logger.Error("Failed to apply remote user", zap.String("username", u.Username), zap.Error(err))
		case created:
			res.Inserted++
		default:
			res.Updated++
		}
	}
	return nil
}
