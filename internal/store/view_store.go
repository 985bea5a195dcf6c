package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nhle/mailsetup/internal/model"
)

// GetViewSettings retrieves the folders view settings of an account.
func (s *SQLiteStore) GetViewSettings(ctx context.Context, accountID string) (*model.ViewSettings, error) {
	var vs model.ViewSettings
	err := s.db.GetContext(ctx, &vs, "SELECT * FROM view_settings WHERE account_id = ?", accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting view settings of %s: %w", accountID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting view settings of %s: %w", accountID, err)
	}
	return &vs, nil
}

// SaveViewSettings inserts or replaces the view settings of an account.
func (s *SQLiteStore) SaveViewSettings(ctx context.Context, vs model.ViewSettings) error {
	if !model.ValidSortColumn(vs.SortColumn) {
		return fmt.Errorf("saving view settings of %s: unknown sort column %q", vs.AccountID, vs.SortColumn)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO view_settings (
			account_id, sort_column, sort_descending, children_ascending, root_visible
		) VALUES (?, ?, ?, ?, ?)`,
		vs.AccountID, vs.SortColumn,
		boolToInt(vs.SortDescending), boolToInt(vs.ChildrenAscending), boolToInt(vs.RootVisible),
	)
	if err != nil {
		return fmt.Errorf("saving view settings of %s: %w", vs.AccountID, err)
	}
	return nil
}
