package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/viper"
)

// ConfigEnv overrides the config file location.
const ConfigEnv = "MAILSETUP_CONFIG"

// DisplayConfig holds the defaults for the folders view. Per-account
// ViewSettings saved in the store take precedence.
type DisplayConfig struct {
	Theme             string `mapstructure:"theme" yaml:"theme"`
	RootVisible       bool   `mapstructure:"root_visible" yaml:"root_visible"`
	SortColumn        string `mapstructure:"sort_column" yaml:"sort_column"`
	SortDescending    bool   `mapstructure:"sort_descending" yaml:"sort_descending"`
	ChildrenAscending bool   `mapstructure:"children_ascending" yaml:"children_ascending"`
	ExpandedDefault   bool   `mapstructure:"expanded_default" yaml:"expanded_default"`
}

// ViewSettings returns the display defaults as settings for accountID.
func (d DisplayConfig) ViewSettings(accountID string) ViewSettings {
	return ViewSettings{
		AccountID:         accountID,
		SortColumn:        d.SortColumn,
		SortDescending:    d.SortDescending,
		ChildrenAscending: d.ChildrenAscending,
		RootVisible:       d.RootVisible,
	}
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Accounts []Account    `mapstructure:"accounts" yaml:"accounts"`
	Display  DisplayConfig `mapstructure:"display" yaml:"display"`
	StateDir string        `mapstructure:"state_dir" yaml:"state_dir"`
	DBPath   string        `mapstructure:"db_path" yaml:"db_path"`
	LogLevel string        `mapstructure:"log_level" yaml:"log_level"`
}

// Account returns the configured account with the given id.
func (c *AppConfig) Account(id string) (Account, bool) {
	for _, a := range c.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return Account{}, false
}

// PutAccount replaces the account with the same id or appends it.
func (c *AppConfig) PutAccount(acct Account) {
	for i := range c.Accounts {
		if c.Accounts[i].ID == acct.ID {
			c.Accounts[i] = acct
			return
		}
	}
	c.Accounts = append(c.Accounts, acct)
}

// RemoveAccount drops the account with the given id and reports whether
// it was present.
func (c *AppConfig) RemoveAccount(id string) bool {
	n := len(c.Accounts)
	c.Accounts = slices.DeleteFunc(c.Accounts, func(a Account) bool { return a.ID == id })
	return len(c.Accounts) != n
}

// DefaultConfigPath returns $MAILSETUP_CONFIG, or
// ~/.config/mailsetup/config.yaml.
func DefaultConfigPath() string {
	if p := os.Getenv(ConfigEnv); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailsetup", "config.yaml")
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "state")
	}
	return filepath.Join(home, ".local", "state", "mailsetup")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	state := defaultStateDir()
	return &AppConfig{
		Accounts: []Account{},
		Display: DisplayConfig{
			Theme:       "default",
			RootVisible: true,
			SortColumn:  SortNone,
		},
		StateDir: state,
		DBPath:   filepath.Join(state, "mailsetup.db"),
		LogLevel: "warn",
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	def := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("display.theme", def.Display.Theme)
	v.SetDefault("display.root_visible", def.Display.RootVisible)
	v.SetDefault("display.sort_column", def.Display.SortColumn)
	v.SetDefault("state_dir", def.StateDir)
	v.SetDefault("log_level", def.LogLevel)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &pathErr) || errors.As(err, &notFound) {
			return def, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if !ValidSortColumn(cfg.Display.SortColumn) {
		return nil, fmt.Errorf("parsing config %s: unknown sort column %q", path, cfg.Display.SortColumn)
	}
	if !v.IsSet("db_path") {
		cfg.DBPath = filepath.Join(cfg.StateDir, "mailsetup.db")
	}

	for i := range cfg.Accounts {
		if cfg.Accounts[i].PollIntervalSec == 0 {
			cfg.Accounts[i].PollIntervalSec = DefaultPollIntervalSec
		}
		// Viper unmarshals missing bools as false; an absent key means enabled.
		if !cfg.Accounts[i].Enabled && !v.IsSet(fmt.Sprintf("accounts.%d.enabled", i)) {
			cfg.Accounts[i].Enabled = true
		}
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("accounts", cfg.Accounts)
	v.Set("display", cfg.Display)
	v.Set("state_dir", cfg.StateDir)
	v.Set("db_path", cfg.DBPath)
	v.Set("log_level", cfg.LogLevel)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
