package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/nhle/mailsetup/internal/credential"
	"github.com/nhle/mailsetup/internal/mailbox"
	"github.com/nhle/mailsetup/internal/model"
	"github.com/nhle/mailsetup/internal/store"
	appsync "github.com/nhle/mailsetup/internal/sync"
)

// sendTimeout bounds a test message delivery.
const sendTimeout = 30 * time.Second

// accountsLoadedMsg carries the configured accounts and their saved view
// settings after they were mirrored into the store.
type accountsLoadedMsg struct {
	cfg      *model.AppConfig
	accounts []model.Account
	settings map[string]model.ViewSettings
	err      error
}

// testSentMsg reports the outcome of a test message.
type testSentMsg struct {
	account model.Account
	err     error
}

// settingsSavedMsg reports a failed view settings write.
type settingsSavedMsg struct {
	err error
}

// loadAccounts reads the config file, mirrors its accounts into the
// store and loads the per-account view settings. The config file is the
// source of truth: store accounts it no longer lists are deleted.
func (m Model) loadAccounts() tea.Cmd {
	path := m.opts.ConfigPath
	s := m.opts.Store
	log := m.log
	return func() tea.Msg {
		cfg, err := model.LoadConfig(path)
		if err != nil {
			return accountsLoadedMsg{err: err}
		}
		ctx := context.Background()
		if err := SyncAccounts(ctx, s, cfg.Accounts); err != nil {
			return accountsLoadedMsg{err: err}
		}

		settings := make(map[string]model.ViewSettings, len(cfg.Accounts))
		for _, acct := range cfg.Accounts {
			vs, err := s.GetViewSettings(ctx, acct.ID)
			switch {
			case err == nil:
				settings[acct.ID] = *vs
			case errors.Is(err, store.ErrNotFound):
				settings[acct.ID] = cfg.Display.ViewSettings(acct.ID)
			default:
				log.WithError(err).WithField("account", acct.ID).Warn("loading view settings")
				settings[acct.ID] = cfg.Display.ViewSettings(acct.ID)
			}
		}
		return accountsLoadedMsg{cfg: cfg, accounts: cfg.Accounts, settings: settings}
	}
}

// SyncAccounts makes the store's accounts match accounts.
func SyncAccounts(ctx context.Context, s store.Store, accounts []model.Account) error {
	for _, acct := range accounts {
		if err := s.UpsertAccount(ctx, acct); err != nil {
			return err
		}
	}
	stored, err := s.GetAccounts(ctx)
	if err != nil {
		return err
	}
	for _, acct := range stored {
		known := slices.ContainsFunc(accounts, func(a model.Account) bool { return a.ID == acct.ID })
		if known {
			continue
		}
		if err := s.DeleteAccount(ctx, acct.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	return nil
}

// NewListerFactory returns the poller's lister factory: an IMAP client
// using the keyring password of each account.
func NewListerFactory(creds credential.Store, log logrus.FieldLogger) appsync.ListerFactory {
	return func(acct model.Account) (appsync.Lister, error) {
		if err := mailbox.CheckAccount(acct); err != nil {
			return nil, err
		}
		password, err := creds.Get(acct.CredentialKey())
		if err != nil {
			return nil, fmt.Errorf("reading password: %w", err)
		}
		return mailbox.NewIMAPClient(mailbox.IMAPConfig(acct, password), log), nil
	}
}

// saveViewSettings persists the view settings of one account.
func (m Model) saveViewSettings(vs model.ViewSettings) tea.Cmd {
	s := m.opts.Store
	return func() tea.Msg {
		return settingsSavedMsg{err: s.SaveViewSettings(context.Background(), vs)}
	}
}

// sendTestMessage mails the account's own address through its SMTP
// server.
func (m Model) sendTestMessage(acct model.Account) tea.Cmd {
	send := m.opts.SendTest
	creds := m.opts.Creds
	return func() tea.Msg {
		if acct.SMTPHost == "" {
			return testSentMsg{account: acct, err: errors.New("no SMTP server configured")}
		}
		password, err := creds.Get(acct.CredentialKey())
		if err != nil {
			return testSentMsg{account: acct, err: fmt.Errorf("reading password: %w", err)}
		}
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		return testSentMsg{account: acct, err: send(ctx, acct, password)}
	}
}

// SendTestMessage delivers a test message from the account to itself.
func SendTestMessage(ctx context.Context, acct model.Account, password string) error {
	return mailbox.SendTestMessage(ctx, mailbox.SMTPConfig(acct, password), acct.Email, acct.Email)
}
