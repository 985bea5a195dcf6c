package mailbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailsetup/internal/model"
)

func TestComposeTestMessage(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	raw, err := composeTestMessage("Me <me@example.com>", "you@example.org", now)
	require.NoError(t, err)

	r, err := mail.CreateReader(strings.NewReader(string(raw)))
	require.NoError(t, err)
	defer r.Close()

	subject, err := r.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, TestSubject, subject)

	from, err := r.Header.AddressList("From")
	require.NoError(t, err)
	require.Len(t, from, 1)
	assert.Equal(t, "me@example.com", from[0].Address)
	assert.Equal(t, "Me", from[0].Name)

	date, err := r.Header.Date()
	require.NoError(t, err)
	assert.True(t, now.Equal(date))

	id, err := r.Header.MessageID()
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	part, err := r.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "me@example.com")
}

func TestComposeTestMessageRejectsBadAddress(t *testing.T) {
	_, err := composeTestMessage("not an address", "you@example.org", time.Now())
	assert.ErrorContains(t, err, "parsing sender")
	_, err = composeTestMessage("me@example.com", "", time.Now())
	assert.ErrorContains(t, err, "parsing recipient")
}

func TestListOptions(t *testing.T) {
	plain := listOptions(imap.CapSet{imap.CapIMAP4rev1: {}})
	assert.Nil(t, plain.ReturnStatus)
	assert.True(t, plain.ReturnSubscribed)

	withStatus := listOptions(imap.CapSet{imap.CapIMAP4rev1: {}, imap.CapListStatus: {}})
	require.NotNil(t, withStatus.ReturnStatus)
	assert.True(t, withStatus.ReturnStatus.NumMessages)
	assert.True(t, withStatus.ReturnStatus.NumUnseen)
}

func TestIsAuthError(t *testing.T) {
	err := fmt.Errorf("validating: %w", &AuthError{Server: "imap.example.com:993", Message: "bad password"})
	assert.True(t, IsAuthError(err))
	assert.Contains(t, err.Error(), "imap.example.com:993")
	assert.False(t, IsAuthError(fmt.Errorf("dial: %w", io.EOF)))
}

func TestServerConfigs(t *testing.T) {
	acct := model.NewAccount("Work")
	acct.IMAPHost = "imap.example.com"
	acct.SMTPHost = "::1"
	acct.Username = "me"

	imapCfg := IMAPConfig(acct, "secret")
	assert.Equal(t, "imap.example.com:993", imapCfg.Addr())
	assert.Equal(t, "secret", imapCfg.Password)
	assert.True(t, imapCfg.TLS)

	assert.Equal(t, "[::1]:465", SMTPConfig(acct, "secret").Addr())
}

func TestCheckAccount(t *testing.T) {
	acct := model.NewAccount("Work")
	err := CheckAccount(acct)
	require.ErrorIs(t, err, ErrIncomplete)
	assert.Contains(t, err.Error(), "imap_host")
	assert.Contains(t, err.Error(), "username")

	acct.IMAPHost = "imap.example.com"
	acct.Username = "me"
	assert.NoError(t, CheckAccount(acct))

	acct.SMTPHost = "smtp.example.com"
	acct.SMTPPort = ""
	assert.ErrorIs(t, CheckAccount(acct), ErrIncomplete)
}

func TestValidateIncompleteSkipsNetwork(t *testing.T) {
	err := Validate(context.Background(), model.Account{}, "", nil)
	assert.ErrorIs(t, err, ErrIncomplete)
}

func TestConnectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewIMAPClient(ServerConfig{Host: "imap.invalid", Port: "993", TLS: true}, nil)
	_, err := c.ListFolders(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// silentServer accepts connections and never writes to them.
func silentServer(t *testing.T) ServerConfig {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var conns []net.Conn
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			conns = append(conns, c)
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		<-done
		for _, c := range conns {
			c.Close()
		}
	})

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return ServerConfig{Host: host, Port: port, Username: "me", Password: "pw"}
}

func TestListFoldersHonoursDeadlineOnSilentServer(t *testing.T) {
	for _, implicitTLS := range []bool{true, false} {
		t.Run(fmt.Sprintf("tls=%t", implicitTLS), func(t *testing.T) {
			cfg := silentServer(t)
			cfg.TLS = implicitTLS

			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()

			start := time.Now()
			_, err := NewIMAPClient(cfg, nil).ListFolders(ctx)
			require.Error(t, err)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
			assert.False(t, IsAuthError(err))
			assert.Less(t, time.Since(start), 2*time.Second)
		})
	}
}

func TestLoginErrorClassification(t *testing.T) {
	rejected := &imap.Error{Type: imap.StatusResponseTypeNo, Code: imap.ResponseCodeAuthenticationFailed, Text: "bad password"}
	err := loginError("imap.example.com:993", "me", rejected)
	assert.True(t, IsAuthError(err))
	var imapErr *imap.Error
	assert.True(t, errors.As(err, &imapErr), "rejection kept in the chain")

	bad := &imap.Error{Type: imap.StatusResponseTypeBad, Text: "syntax"}
	assert.True(t, IsAuthError(loginError("imap.example.com:993", "me", bad)))

	err = loginError("imap.example.com:993", "me", io.ErrUnexpectedEOF)
	assert.False(t, IsAuthError(err))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestSMTPAuthErrorClassification(t *testing.T) {
	err := smtpAuthError("smtp.example.com:465", "me", &textproto.Error{Code: 535, Msg: "5.7.8 bad credentials"})
	assert.True(t, IsAuthError(err))

	err = smtpAuthError("smtp.example.com:465", "me", &textproto.Error{Code: 454, Msg: "4.7.0 try later"})
	assert.False(t, IsAuthError(err))

	err = smtpAuthError("smtp.example.com:465", "me", io.EOF)
	assert.False(t, IsAuthError(err))
	assert.ErrorIs(t, err, io.EOF)
}
