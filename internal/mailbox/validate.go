package mailbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nhle/mailsetup/internal/model"
)

// ErrIncomplete reports an account missing required server settings.
var ErrIncomplete = errors.New("mailbox: account settings incomplete")

// CheckAccount reports which required account fields are empty.
func CheckAccount(acct model.Account) error {
	var missing []string
	if acct.IMAPHost == "" {
		missing = append(missing, "imap_host")
	}
	if acct.IMAPPort == "" {
		missing = append(missing, "imap_port")
	}
	if acct.Username == "" {
		missing = append(missing, "username")
	}
	if acct.SMTPHost != "" && acct.SMTPPort == "" {
		missing = append(missing, "smtp_port")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %v", ErrIncomplete, missing)
	}
	return nil
}

// Validate checks that acct can log in to IMAP and, when it has an SMTP
// server, that SMTP accepts the same credentials.
func Validate(ctx context.Context, acct model.Account, password string, log logrus.FieldLogger) error {
	if err := CheckAccount(acct); err != nil {
		return err
	}
	if err := NewIMAPClient(IMAPConfig(acct, password), log).Validate(ctx); err != nil {
		return fmt.Errorf("validating IMAP for %s: %w", acct.Label(), err)
	}
	if acct.SMTPHost == "" {
		return nil
	}
	if err := CheckSMTP(ctx, SMTPConfig(acct, password)); err != nil {
		return fmt.Errorf("validating SMTP for %s: %w", acct.Label(), err)
	}
	return nil
}
