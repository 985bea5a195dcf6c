package store

import (
	"context"
	"fmt"

	"github.com/nhle/mailsetup/internal/model"
)

// ReplaceFolders swaps the cached folder listing of an account for
// folders in one transaction.
func (s *SQLiteStore) ReplaceFolders(ctx context.Context, accountID string, folders []model.Folder) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM folders WHERE account_id = ?", accountID); err != nil {
		return fmt.Errorf("clearing folders of %s: %w", accountID, err)
	}

	const query = `
		INSERT INTO folders (
			account_id, name, delimiter, attrs,
			messages, unseen, subscribed, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing folder insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range folders {
		_, err := stmt.ExecContext(ctx,
			accountID, f.Name, f.Delimiter, f.Attrs,
			f.Messages, f.Unseen, boolToInt(f.Subscribed), f.FetchedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("inserting folder %q of %s: %w", f.Name, accountID, err)
		}
	}

	return tx.Commit()
}

// GetFolders retrieves the cached folder listing of an account.
func (s *SQLiteStore) GetFolders(ctx context.Context, accountID string) ([]model.Folder, error) {
	var folders []model.Folder
	err := s.db.SelectContext(ctx, &folders,
		"SELECT * FROM folders WHERE account_id = ? ORDER BY name", accountID)
	if err != nil {
		return nil, fmt.Errorf("querying folders of %s: %w", accountID, err)
	}
	return folders, nil
}
