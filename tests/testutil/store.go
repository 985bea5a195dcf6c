package testutil

import (
	"testing"

	"github.com/nhle/mailsetup/internal/model"
	"github.com/nhle/mailsetup/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// NewAccount returns a complete account pointing at example hosts.
func NewAccount(name string) model.Account {
	acct := model.NewAccount(name)
	acct.Email = name + "@example.com"
	acct.Username = acct.Email
	acct.IMAPHost = "imap.example.com"
	acct.SMTPHost = "smtp.example.com"
	return acct
}
