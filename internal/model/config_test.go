package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Accounts)
	assert.True(t, cfg.Display.RootVisible)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, filepath.Join(cfg.StateDir, "mailsetup.db"), cfg.DBPath)
}

func TestLoadConfigAccounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
state_dir: /tmp/ms
display:
  sort_column: unread
  sort_descending: true
accounts:
  - id: a1
    name: Work
    imap_host: imap.example.com
    imap_port: "993"
  - id: a2
    name: Old
    enabled: false
    poll_interval_sec: 60
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Accounts, 2)

	assert.True(t, cfg.Accounts[0].Enabled, "absent enabled means enabled")
	assert.Equal(t, DefaultPollIntervalSec, cfg.Accounts[0].PollIntervalSec)
	assert.False(t, cfg.Accounts[1].Enabled)
	assert.Equal(t, 60, cfg.Accounts[1].PollIntervalSec)

	assert.Equal(t, SortUnread, cfg.Display.SortColumn)
	assert.True(t, cfg.Display.SortDescending)
	assert.True(t, cfg.Display.RootVisible, "default kept")
	assert.Equal(t, "/tmp/ms/mailsetup.db", cfg.DBPath)
}

func TestLoadConfigRejectsUnknownSortColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("display:\n  sort_column: size\n"), 0o644))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "unknown sort column")
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := defaultAppConfig()
	acct := NewAccount("Home")
	acct.IMAPHost = "imap.example.org"
	acct.Username = "me@example.org"
	cfg.PutAccount(acct)
	cfg.Display.ChildrenAscending = true
	require.NoError(t, SaveConfig(path, cfg))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	loaded, ok := got.Account(acct.ID)
	require.True(t, ok)
	assert.Equal(t, acct.IMAPHost, loaded.IMAPHost)
	assert.Equal(t, acct.Username, loaded.Username)
	assert.True(t, loaded.TLS)
	assert.True(t, got.Display.ChildrenAscending)
}

func TestDefaultConfigPathEnv(t *testing.T) {
	t.Setenv(ConfigEnv, "/etc/mailsetup.yaml")
	assert.Equal(t, "/etc/mailsetup.yaml", DefaultConfigPath())
}

func TestPutAccountReplaces(t *testing.T) {
	var cfg AppConfig
	a := NewAccount("One")
	cfg.PutAccount(a)
	a.Name = "Renamed"
	cfg.PutAccount(a)
	require.Len(t, cfg.Accounts, 1)
	assert.Equal(t, "Renamed", cfg.Accounts[0].Name)
}

func TestNextSortColumn(t *testing.T) {
	assert.Equal(t, SortName, NextSortColumn(SortNone))
	assert.Equal(t, SortNone, NextSortColumn(SortTotal))
	assert.Equal(t, SortNone, NextSortColumn("bogus"))
}

func TestRemoveAccount(t *testing.T) {
	var cfg AppConfig
	a, b := NewAccount("One"), NewAccount("Two")
	cfg.PutAccount(a)
	cfg.PutAccount(b)

	assert.True(t, cfg.RemoveAccount(a.ID))
	assert.False(t, cfg.RemoveAccount(a.ID))
	require.Len(t, cfg.Accounts, 1)
	assert.Equal(t, b.ID, cfg.Accounts[0].ID)
}
