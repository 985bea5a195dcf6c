package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/mailsetup/internal/model"
)

// UpsertAccount inserts or updates an account, keeping its creation
// time. If the account has no ID, a new UUID is generated.
func (s *SQLiteStore) UpsertAccount(ctx context.Context, acct model.Account) error {
	if acct.ID == "" {
		acct.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (
			id, name, email, username,
			imap_host, imap_port, smtp_host, smtp_port,
			tls, enabled, poll_interval_sec,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			username = excluded.username,
			imap_host = excluded.imap_host,
			imap_port = excluded.imap_port,
			smtp_host = excluded.smtp_host,
			smtp_port = excluded.smtp_port,
			tls = excluded.tls,
			enabled = excluded.enabled,
			poll_interval_sec = excluded.poll_interval_sec,
			updated_at = excluded.updated_at`,
		acct.ID, acct.Name, acct.Email, acct.Username,
		acct.IMAPHost, acct.IMAPPort, acct.SMTPHost, acct.SMTPPort,
		boolToInt(acct.TLS), boolToInt(acct.Enabled), acct.PollIntervalSec,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting account %s: %w", acct.ID, err)
	}
	return nil
}

// GetAccounts retrieves all accounts ordered by name.
func (s *SQLiteStore) GetAccounts(ctx context.Context) ([]model.Account, error) {
	var accounts []model.Account
	if err := s.db.SelectContext(ctx, &accounts, "SELECT * FROM accounts ORDER BY name, id"); err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	return accounts, nil
}

// GetAccount retrieves a single account by its ID.
func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	var acct model.Account
	err := s.db.GetContext(ctx, &acct, "SELECT * FROM accounts WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting account %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting account %s: %w", id, err)
	}
	return &acct, nil
}

// DeleteAccount removes an account with its folders and view settings.
func (s *SQLiteStore) DeleteAccount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting account %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("deleting account %s: %w", id, ErrNotFound)
	}
	return nil
}
