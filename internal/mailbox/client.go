// Package mailbox talks to an account's IMAP and SMTP servers.
package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/sirupsen/logrus"

	"github.com/nhle/mailsetup/internal/folder"
	"github.com/nhle/mailsetup/internal/model"
)

// ServerConfig addresses one IMAP or SMTP server. TLS selects implicit
// TLS; otherwise the connection is upgraded with STARTTLS.
type ServerConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	TLS      bool
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// IMAPConfig returns the IMAP server settings of acct.
func IMAPConfig(acct model.Account, password string) ServerConfig {
	return ServerConfig{
		Host:     acct.IMAPHost,
		Port:     acct.IMAPPort,
		Username: acct.Username,
		Password: password,
		TLS:      acct.TLS,
	}
}

// SMTPConfig returns the SMTP server settings of acct.
func SMTPConfig(acct model.Account, password string) ServerConfig {
	return ServerConfig{
		Host:     acct.SMTPHost,
		Port:     acct.SMTPPort,
		Username: acct.Username,
		Password: password,
		TLS:      acct.TLS,
	}
}

// IMAPClient opens short-lived IMAP sessions for one account.
type IMAPClient struct {
	cfg ServerConfig
	log logrus.FieldLogger
}

// NewIMAPClient creates a new IMAP client configuration.
func NewIMAPClient(cfg ServerConfig, log logrus.FieldLogger) *IMAPClient {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &IMAPClient{
		cfg: cfg,
		log: log.WithFields(logrus.Fields{"component": "imap", "server": cfg.Addr()}),
	}
}

// Connect establishes a connection to the IMAP server, authenticates,
// and returns the connected client. The caller is responsible for
// calling Close on the returned client. Cancelling ctx aborts the dial,
// the greeting, STARTTLS and LOGIN.
func (c *IMAPClient) Connect(ctx context.Context) (*imapclient.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	addr := c.cfg.Addr()
	tlsConfig := &tls.Config{ServerName: c.cfg.Host, NextProtos: []string{"imap"}}
	opts := &imapclient.Options{
		TLSConfig: tlsConfig,
		Dialer:    &net.Dialer{Timeout: dialTimeout},
	}

	var conn net.Conn
	var err error
	if c.cfg.TLS {
		conn, err = (&tls.Dialer{NetDialer: opts.Dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = opts.Dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, c.connectError(ctx, fmt.Errorf("connecting to IMAP %s: %w", addr, err))
	}

	// imapclient has no context support; closing the connection unblocks
	// whatever command is waiting.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	var client *imapclient.Client
	if c.cfg.TLS {
		client = imapclient.New(conn, opts)
	} else if client, err = imapclient.NewStartTLS(conn, opts); err != nil {
		return nil, c.connectError(ctx, fmt.Errorf("IMAP STARTTLS with %s: %w", addr, err))
	}

	if err := client.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, c.connectError(ctx, loginError(addr, c.cfg.Username, err))
	}

	c.log.Debug("logged in")
	return client, nil
}

// connectError prefers ctx's error over the I/O error caused by closing
// the connection on cancellation.
func (c *IMAPClient) connectError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("connecting to IMAP %s: %w", c.cfg.Addr(), ctxErr)
	}
	return err
}

// loginError classifies a failed LOGIN. Only a tagged NO or BAD reply is
// a credential problem; anything else is a connection failure.
func loginError(addr, username string, err error) error {
	var imapErr *imap.Error
	if errors.As(err, &imapErr) &&
		(imapErr.Type == imap.StatusResponseTypeNo || imapErr.Type == imap.StatusResponseTypeBad) {
		return &AuthError{
			Server:  addr,
			Message: fmt.Sprintf("authentication failed for %s: %v", username, err),
			Err:     err,
		}
	}
	return fmt.Errorf("logging in to IMAP %s: %w", addr, err)
}

// Close logs out and closes the connection.
func (c *IMAPClient) Close(client *imapclient.Client) {
	if err := client.Logout().Wait(); err != nil {
		c.log.WithError(err).Debug("logout failed")
	}
	_ = client.Close()
}

// session connects and runs fn, closing the connection when fn returns
// or ctx is cancelled.
func (c *IMAPClient) session(ctx context.Context, fn func(*imapclient.Client) error) error {
	client, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer func() {
		if stop() {
			c.Close(client)
		}
	}()

	if err := fn(client); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Validate verifies the credentials by logging in and selecting INBOX.
func (c *IMAPClient) Validate(ctx context.Context) error {
	return c.session(ctx, func(client *imapclient.Client) error {
		if _, err := client.Select("INBOX", &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
			return fmt.Errorf("selecting INBOX: %w", err)
		}
		return nil
	})
}

// statusItems are the counts shown in the folders table.
var statusItems = &imap.StatusOptions{NumMessages: true, NumUnseen: true}

// listOptions asks for STATUS in the LIST response when the server
// supports LIST-STATUS.
func listOptions(caps imap.CapSet) *imap.ListOptions {
	opts := &imap.ListOptions{ReturnSubscribed: true}
	if caps.Has(imap.CapListStatus) {
		opts.ReturnStatus = statusItems
	}
	return opts
}

// ListFolders lists every mailbox of the account with its message
// counts. Servers without LIST-STATUS get one STATUS per selectable
// mailbox.
func (c *IMAPClient) ListFolders(ctx context.Context) ([]folder.Folder, error) {
	var folders []folder.Folder
	err := c.session(ctx, func(client *imapclient.Client) error {
		opts := listOptions(client.Caps())
		list, err := client.List("", "*", opts).Collect()
		if err != nil {
			return fmt.Errorf("listing mailboxes: %w", err)
		}

		folders = make([]folder.Folder, 0, len(list))
		for _, d := range list {
			f := folder.FromListData(d)
			if opts.ReturnStatus == nil && f.Selectable() {
				st, err := client.Status(f.Name, statusItems).Wait()
				if err != nil {
					c.log.WithError(err).WithField("mailbox", f.Name).Warn("status failed")
				} else {
					f.SetStatus(st)
				}
			}
			folders = append(folders, f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.log.WithField("count", len(folders)).Debug("listed mailboxes")
	return folders, nil
}
