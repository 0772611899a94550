package user

import (
	"context"
	"errors"
	"strings"

	"github.com/fekuna/omnipos-sync/internal/model"
)

var ErrEmptyUsername = errors.New("username is empty")

type UseCase interface {
	ApplyRemote(ctx context.Context, remote *model.User) (created bool, err error)
	ListUsers(ctx context.Context) ([]model.User, error)
}

// NormalizeUsername lower-cases and collapses whitespace.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
