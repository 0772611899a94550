package debt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/jmoiron/sqlx"
)

const (
	StatusOpen = "open"
	StatusPaid = "paid"
)

type UseCase interface {
	// ApplyRemote upserts a remote debt by uuid, then invoice number, then
	// stable key. Remote financial fields win.
	ApplyRemote(ctx context.Context, remote *model.Debt) (created bool, err error)
	ListDebts(ctx context.Context, openOnly bool, limit int) ([]model.Debt, error)

	WithTx(tx *sqlx.Tx) UseCase
}

// StableKey identifies a debt that carries neither uuid nor invoice number.
func StableKey(d *model.Debt) string {
	parts := []string{
		strings.TrimSpace(d.InvoiceNum),
		strings.ToLower(strings.TrimSpace(d.ClientName)),
		strings.ToLower(strings.TrimSpace(d.ProductDescription)),
		d.CreatedAt.UTC().Format(time.RFC3339),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
