package detail

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailsetup/internal/folder"
	"github.com/nhle/mailsetup/internal/keys"
	"github.com/nhle/mailsetup/internal/model"
)

func account() model.Account {
	return model.Account{
		ID: "a1", Name: "Work", Email: "me@example.com", Username: "me",
		IMAPHost: "imap.example.com", IMAPPort: "993", SMTPHost: "smtp.example.com", SMTPPort: "465", TLS: true,
	}
}

func TestEmptyPane(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 60, 20)
	assert.Contains(t, m.View(), "No folder selected")
	_, ok := m.Subject()
	assert.False(t, ok)
}

func TestFolderContent(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 30)
	m.SetSubject(Subject{
		Account: account(),
		Path:    "Archive/Sent 2023",
		Folder: folder.Folder{
			Name: "Archive/Sent 2023", Delimiter: '/', Messages: 120, Unseen: 4,
			Attrs: []imap.MailboxAttr{imap.MailboxAttrSent, imap.MailboxAttrHasNoChildren}, Subscribed: true,
		},
		FetchedAt: time.Now().Add(-5 * time.Minute),
	})

	out := m.renderContent()
	assert.Contains(t, out, "Sent 2023")
	assert.Contains(t, out, "Archive/Sent 2023")
	assert.Contains(t, out, "'/'")
	assert.Contains(t, out, "120")
	assert.Contains(t, out, "subscribed")
	assert.Contains(t, out, "5m ago")
	assert.Contains(t, out, string(imap.MailboxAttrHasNoChildren))
}

func TestPlaceholderContent(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 30)
	m.SetSubject(Subject{
		Account: account(),
		Folder: folder.Folder{
			Name: "Lists", Delimiter: '.',
			Attrs: []imap.MailboxAttr{imap.MailboxAttrNonExistent, imap.MailboxAttrNoSelect},
		},
	})

	out := m.renderContent()
	assert.Contains(t, out, "not on server")
	assert.NotContains(t, out, "Messages")
	assert.Contains(t, out, "never")
}

func TestAccountContent(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 30)
	m.SetSubject(Subject{Account: account(), Root: true, Unread: 7, Total: 92})

	out := m.renderContent()
	assert.Contains(t, out, "imap.example.com:993 (implicit TLS)")
	assert.Contains(t, out, "smtp.example.com:465")
	assert.Contains(t, out, "92")
	assert.Contains(t, out, "send a test message")
}

func TestKeys(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 30)
	m.SetSubject(Subject{Account: account(), Root: true})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, BackMsg{}, cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("t")})
	require.NotNil(t, cmd)
	assert.Equal(t, TestSendMsg{AccountID: "a1"}, cmd())
}
