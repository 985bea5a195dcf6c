package model

import (
	"time"

	"github.com/google/uuid"
)

// DefaultPollIntervalSec is used for accounts that do not set their own
// folder refresh interval.
const DefaultPollIntervalSec = 300

// Account is a configured mail account. The password is kept in the OS
// keyring under CredentialKey, never in the config file or database.
type Account struct {
	ID              string    `json:"id" db:"id" mapstructure:"id" yaml:"id"`
	Name            string    `json:"name" db:"name" mapstructure:"name" yaml:"name"`
	Email           string    `json:"email" db:"email" mapstructure:"email" yaml:"email"`
	Username        string    `json:"username" db:"username" mapstructure:"username" yaml:"username"`
	IMAPHost        string    `json:"imap_host" db:"imap_host" mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort        string    `json:"imap_port" db:"imap_port" mapstructure:"imap_port" yaml:"imap_port"`
	SMTPHost        string    `json:"smtp_host" db:"smtp_host" mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort        string    `json:"smtp_port" db:"smtp_port" mapstructure:"smtp_port" yaml:"smtp_port"`
	TLS             bool      `json:"tls" db:"tls" mapstructure:"tls" yaml:"tls"`
	Enabled         bool      `json:"enabled" db:"enabled" mapstructure:"enabled" yaml:"enabled"`
	PollIntervalSec int       `json:"poll_interval_sec" db:"poll_interval_sec" mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
	CreatedAt       time.Time `json:"created_at" db:"created_at" mapstructure:"-" yaml:"-"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at" mapstructure:"-" yaml:"-"`
}

// NewAccount returns an enabled account with a fresh id and the usual
// implicit-TLS ports.
func NewAccount(name string) Account {
	return Account{
		ID:              uuid.NewString(),
		Name:            name,
		IMAPPort:        "993",
		SMTPPort:        "465",
		TLS:             true,
		Enabled:         true,
		PollIntervalSec: DefaultPollIntervalSec,
	}
}

// CredentialKey is the keyring key holding the account password.
func (a Account) CredentialKey() string {
	return "account-" + a.ID
}

// PollInterval returns how often the account's folder list is refreshed.
func (a Account) PollInterval() time.Duration {
	if a.PollIntervalSec <= 0 {
		return DefaultPollIntervalSec * time.Second
	}
	return time.Duration(a.PollIntervalSec) * time.Second
}

// Label is the display name, falling back to the address.
func (a Account) Label() string {
	switch {
	case a.Name != "":
		return a.Name
	case a.Email != "":
		return a.Email
	default:
		return a.Username
	}
}
