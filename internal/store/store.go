package store

import (
	"context"
	"errors"

	"github.com/nhle/mailsetup/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store defines the persistence interface for accounts, their cached
// folder listings, and per-account view settings.
type Store interface {
	// === Accounts ===

	UpsertAccount(ctx context.Context, acct model.Account) error
	GetAccounts(ctx context.Context) ([]model.Account, error)
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	DeleteAccount(ctx context.Context, id string) error

	// === Folder cache ===

	ReplaceFolders(ctx context.Context, accountID string, folders []model.Folder) error
	GetFolders(ctx context.Context, accountID string) ([]model.Folder, error)

	// === View settings ===

	GetViewSettings(ctx context.Context, accountID string) (*model.ViewSettings, error)
	SaveViewSettings(ctx context.Context, vs model.ViewSettings) error
}
