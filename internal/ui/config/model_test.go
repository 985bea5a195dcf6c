package config

import (
	"context"
	"errors"
	"path/filepath"
	gosync "sync"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailsetup/internal/credential"
	"github.com/nhle/mailsetup/internal/keys"
	"github.com/nhle/mailsetup/internal/logging"
	"github.com/nhle/mailsetup/internal/model"
	"github.com/nhle/mailsetup/internal/store"
	"github.com/nhle/mailsetup/tests/testutil"
)

type memCreds struct {
	mu   gosync.Mutex
	vals map[string]string
}

func newMemCreds() *memCreds { return &memCreds{vals: map[string]string{}} }

func (c *memCreds) Get(key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.vals[key]
	if !ok {
		return "", credential.ErrNotFound
	}
	return v, nil
}

func (c *memCreds) Set(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals[key] = value
	return nil
}

func (c *memCreds) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.vals, key)
	return nil
}

type validateCall struct {
	acct     model.Account
	password string
}

func newDeps(t *testing.T, validateErr error) (Deps, *memCreds, *[]validateCall) {
	t.Helper()
	creds := newMemCreds()
	var calls []validateCall
	return Deps{
		Store:      testutil.NewTestStore(t),
		Creds:      creds,
		ConfigPath: filepath.Join(t.TempDir(), "config.yaml"),
		Validate: func(_ context.Context, acct model.Account, password string) error {
			calls = append(calls, validateCall{acct, password})
			return validateErr
		},
		Log: logging.Discard(),
	}, creds, &calls
}

// drain runs cmd and feeds every message it produces back into m,
// following batches, until no command is left. Spinner ticks are dropped.
func drain(t *testing.T, m Model, cmd tea.Cmd) (Model, []tea.Msg) {
	t.Helper()
	var seen []tea.Msg
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case spinner.TickMsg, nil:
		default:
			seen = append(seen, msg)
			var next tea.Cmd
			m, next = m.Update(msg)
			queue = append(queue, next)
		}
	}
	return m, seen
}

func newWizard(t *testing.T, deps Deps) Model {
	t.Helper()
	m := New(deps, keys.DefaultKeyMap(), 80, 24)
	m, _ = drain(t, m, m.Init())
	return m
}

func fill(m *Model, acct model.Account, password string) {
	m.resetFormFields(acct)
	m.fields.password = password
}

func TestSubmitValidatesThenSaves(t *testing.T) {
	deps, creds, calls := newDeps(t, nil)
	m := newWizard(t, deps)
	m.StartAdd()
	fill(&m, testutil.NewAccount("work"), "hunter2")

	m, cmd := m.submitForm()
	assert.Equal(t, ModeValidating, m.Mode())
	m, msgs := drain(t, m, cmd)

	require.Len(t, *calls, 1)
	assert.Equal(t, "hunter2", (*calls)[0].password)
	assert.Equal(t, ModeList, m.Mode())

	var saved *AccountSavedMsg
	for _, msg := range msgs {
		if s, ok := msg.(AccountSavedMsg); ok {
			saved = &s
		}
	}
	require.NotNil(t, saved)
	assert.Equal(t, "work@example.com", saved.Account.Email)

	pw, err := creds.Get(saved.Account.CredentialKey())
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)

	got, err := deps.Store.GetAccount(context.Background(), saved.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, "imap.example.com", got.IMAPHost)

	cfg, err := model.LoadConfig(deps.ConfigPath)
	require.NoError(t, err)
	_, ok := cfg.Account(saved.Account.ID)
	assert.True(t, ok, "account written to the config file")

	require.Len(t, m.Accounts(), 1)
}

func TestValidationFailureOffersRetryAndSave(t *testing.T) {
	deps, creds, calls := newDeps(t, errors.New("connection refused"))
	m := newWizard(t, deps)
	m.StartAdd()
	acct := testutil.NewAccount("home")
	fill(&m, acct, "pw")

	m, cmd := m.submitForm()
	m, _ = drain(t, m, cmd)
	assert.Equal(t, ModeValidateResult, m.Mode())
	assert.Contains(t, m.View(), "Connection failed")
	assert.Contains(t, m.View(), "save anyway")

	m, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	assert.Equal(t, ModeValidating, m.Mode())
	m, _ = drain(t, m, cmd)
	assert.Len(t, *calls, 2)
	assert.Equal(t, ModeValidateResult, m.Mode())

	m, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	m, _ = drain(t, m, cmd)
	assert.Equal(t, ModeList, m.Mode())
	require.Len(t, m.Accounts(), 1)

	_, err := creds.Get(m.Accounts()[0].CredentialKey())
	assert.NoError(t, err)
}

func TestEditKeepsStoredPassword(t *testing.T) {
	deps, creds, calls := newDeps(t, nil)
	acct := testutil.NewAccount("work")
	require.NoError(t, SaveAccount(context.Background(), deps, acct, "original"))

	m := newWizard(t, deps)
	m.StartEdit(acct)
	assert.Equal(t, "work@example.com", m.fields.email)
	m.fields.name = "Work mail"

	m, cmd := m.submitForm()
	m, _ = drain(t, m, cmd)

	require.Len(t, *calls, 1)
	assert.Equal(t, "original", (*calls)[0].password, "stored password used for the test")
	pw, err := creds.Get(acct.CredentialKey())
	require.NoError(t, err)
	assert.Equal(t, "original", pw)

	got, err := deps.Store.GetAccount(context.Background(), acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "Work mail", got.Name)
}

func TestDeleteAccountEverywhere(t *testing.T) {
	deps, creds, _ := newDeps(t, nil)
	ctx := context.Background()
	acct := testutil.NewAccount("work")
	require.NoError(t, SaveAccount(ctx, deps, acct, "pw"))

	require.NoError(t, DeleteAccount(ctx, deps, acct))

	_, err := creds.Get(acct.CredentialKey())
	assert.ErrorIs(t, err, credential.ErrNotFound)
	_, err = deps.Store.GetAccount(ctx, acct.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	cfg, err := model.LoadConfig(deps.ConfigPath)
	require.NoError(t, err)
	assert.Empty(t, cfg.Accounts)

	assert.NoError(t, DeleteAccount(ctx, deps, acct), "deleting twice")
}

func TestListKeys(t *testing.T) {
	deps, _, calls := newDeps(t, nil)
	ctx := context.Background()
	require.NoError(t, SaveAccount(ctx, deps, testutil.NewAccount("a"), "pw"))
	require.NoError(t, SaveAccount(ctx, deps, testutil.NewAccount("b"), "pw"))

	m := newWizard(t, deps)
	require.Len(t, m.Accounts(), 2)
	assert.Contains(t, m.View(), "a@example.com")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, m.selectedIdx)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 0, m.selectedIdx, "wraps around")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, ModeValidating, m.Mode())
	m, _ = drain(t, m, cmd)
	require.Len(t, *calls, 1)
	assert.Equal(t, "pw", (*calls)[0].password)
	assert.Equal(t, ModeValidateResult, m.Mode())
	assert.Contains(t, m.View(), "Connection successful")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ModeList, m.Mode())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, ConfigDoneMsg{}, cmd())
}

func TestEmptyList(t *testing.T) {
	deps, _, _ := newDeps(t, nil)
	m := newWizard(t, deps)
	assert.Contains(t, m.View(), "No accounts configured")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")})
	assert.Nil(t, cmd)
	assert.Equal(t, ModeList, m.Mode())
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validatePort("993"))
	assert.Error(t, validatePort(""))
	assert.Error(t, validatePort("0"))
	assert.Error(t, validatePort("70000"))
	assert.Error(t, validatePort("imap"))

	assert.NoError(t, validateOptionalPort(""))
	assert.Error(t, validateOptionalPort("x"))

	assert.NoError(t, validateEmail("Me <me@example.com>"))
	assert.Error(t, validateEmail("not an address"))
	assert.Error(t, validateEmail(" "))

	assert.NoError(t, validatePoll("300"))
	assert.Error(t, validatePoll("5"))

	assert.Error(t, validateRequired("Name")("  "))
}
