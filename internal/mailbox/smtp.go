package mailbox

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"net/textproto"
	"time"

	"github.com/emersion/go-message/mail"
)

// dialTimeout bounds connecting to a mail server.
const dialTimeout = 30 * time.Second

// TestSubject is the subject of the message sent by SendTestMessage.
const TestSubject = "mailsetup test message"

// dialSMTP connects over implicit TLS or STARTTLS and authenticates.
func dialSMTP(ctx context.Context, cfg ServerConfig) (*smtp.Client, error) {
	addr := cfg.Addr()
	tlsConfig := &tls.Config{ServerName: cfg.Host}
	dialer := &net.Dialer{Timeout: dialTimeout}

	var conn net.Conn
	var err error
	if cfg.TLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating SMTP client: %w", err)
	}

	if !cfg.TLS {
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, fmt.Errorf("SMTP STARTTLS: %w", err)
		}
	}

	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	if err := client.Auth(auth); err != nil {
		client.Close()
		return nil, smtpAuthError(addr, cfg.Username, err)
	}

	return client, nil
}

// smtpAuthError classifies a failed AUTH. A permanent 5xx reply is a
// credential problem; transient replies and I/O errors are not.
func smtpAuthError(addr, username string, err error) error {
	var reply *textproto.Error
	if errors.As(err, &reply) && reply.Code >= 500 {
		return &AuthError{
			Server:  addr,
			Message: fmt.Sprintf("SMTP authentication failed for %s: %v", username, err),
			Err:     err,
		}
	}
	return fmt.Errorf("SMTP AUTH with %s: %w", addr, err)
}

// CheckSMTP verifies that the SMTP server accepts the credentials.
func CheckSMTP(ctx context.Context, cfg ServerConfig) error {
	client, err := dialSMTP(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Quit()
}

// SendTestMessage sends a short plain-text message from from to to.
func SendTestMessage(ctx context.Context, cfg ServerConfig, from, to string) error {
	body, err := composeTestMessage(from, to, time.Now())
	if err != nil {
		return err
	}

	client, err := dialSMTP(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	return sendMailViaSMTPClient(client, from, to, body)
}

// composeTestMessage renders the RFC 5322 test message.
func composeTestMessage(from, to string, now time.Time) ([]byte, error) {
	fromAddr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("parsing sender %q: %w", from, err)
	}
	toAddr, err := mail.ParseAddress(to)
	if err != nil {
		return nil, fmt.Errorf("parsing recipient %q: %w", to, err)
	}

	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{fromAddr})
	h.SetAddressList("To", []*mail.Address{toAddr})
	h.SetSubject(TestSubject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generating message id: %w", err)
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := io.WriteString(w, "This message confirms that mailsetup can send mail from "+fromAddr.Address+".\r\n"); err != nil {
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message body: %w", err)
	}
	return buf.Bytes(), nil
}

// sendMailViaSMTPClient sends a message using an already-authenticated
// SMTP client.
func sendMailViaSMTPClient(client *smtp.Client, from, to string, body []byte) error {
	fromAddr, err := mail.ParseAddress(from)
	if err != nil {
		return fmt.Errorf("parsing sender %q: %w", from, err)
	}
	toAddr, err := mail.ParseAddress(to)
	if err != nil {
		return fmt.Errorf("parsing recipient %q: %w", to, err)
	}

	if err := client.Mail(fromAddr.Address); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}
	if err := client.Rcpt(toAddr.Address); err != nil {
		return fmt.Errorf("SMTP RCPT TO: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}
	if _, err := writer.Write(body); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	return client.Quit()
}
