package folders

import (
	"os"
	"testing"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/nhle/mailsetup/internal/folder"
	"github.com/nhle/mailsetup/internal/keys"
	"github.com/nhle/mailsetup/internal/logging"
	"github.com/nhle/mailsetup/internal/model"
)

func mbox(name string, unseen, total uint32, attrs ...imap.MailboxAttr) folder.Folder {
	return folder.Folder{Name: name, Delimiter: '/', Unseen: unseen, Messages: total, Attrs: attrs}
}

func sample() []folder.Folder {
	return []folder.Folder{
		mbox("INBOX", 3, 40),
		mbox("Archive", 0, 50),
		mbox("Archive/2023", 0, 30),
		mbox("Archive/2024", 1, 20),
		mbox("Sent", 0, 12, imap.MailboxAttrSent),
	}
}

func newView(t *testing.T, stateDir string, settings model.ViewSettings) Model {
	t.Helper()
	acct := model.Account{ID: "acct-1", Name: "Work", Email: "me@example.com"}
	return New(acct, keys.DefaultKeyMap(), Options{
		Settings:  settings,
		StateDir:  stateDir,
		Collation: language.English,
		Log:       logging.Discard(),
	}, 80, 20)
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "space":
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		case "right":
			msg = tea.KeyMsg{Type: tea.KeyRight}
		case "left":
			msg = tea.KeyMsg{Type: tea.KeyLeft}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		m, _ = m.Update(msg)
	}
	return m
}

func names(m Model) []string {
	out := make([]string, len(m.Rows()))
	for i, r := range m.Rows() {
		out[i] = r[0]
	}
	return out
}

// requireFresh checks the spliced row cache against a full render.
func requireFresh(t *testing.T, m Model) {
	t.Helper()
	a := m.Adapter()
	want := make([]table.Row, a.RowCount())
	for i := range want {
		want[i] = RenderRow(a, i)
	}
	require.Equal(t, want, m.Rows())
}

func TestViewBeforeFolders(t *testing.T) {
	m := newView(t, "", model.ViewSettings{})
	assert.False(t, m.Loaded())
	assert.Empty(t, m.Rows())
	assert.Contains(t, m.View(), "Listing folders")
}

func TestRenderRows(t *testing.T) {
	m := newView(t, "", model.ViewSettings{})
	m.SetFolders(sample(), false)

	assert.Equal(t, []table.Row{
		{"  INBOX", "3", "40", "Inbox"},
		{"▸ Archive", "0", "50", ""},
		{"  Sent", "0", "12", "Sent"},
	}, m.Rows())
	requireFresh(t, m)
}

func TestToggleAndNavigate(t *testing.T) {
	m := newView(t, "", model.ViewSettings{})
	m.SetFolders(sample(), false)

	m = press(m, "down", "enter")
	assert.Equal(t, []string{"  INBOX", "▾ Archive", "    2023", "    2024", "  Sent"}, names(m))
	path, _ := m.SelectedPath()
	assert.Equal(t, "Archive", path)
	requireFresh(t, m)

	m = press(m, "down", "left")
	path, _ = m.SelectedPath()
	assert.Equal(t, "Archive", path, "left on a leaf jumps to its parent")

	m = press(m, "left")
	assert.Equal(t, []string{"  INBOX", "▸ Archive", "  Sent"}, names(m))
	requireFresh(t, m)

	m = press(m, "right")
	assert.Len(t, m.Rows(), 5)
	m = press(m, "space")
	assert.Len(t, m.Rows(), 3)
	requireFresh(t, m)
}

func TestExpandAndCollapseSubtree(t *testing.T) {
	m := newView(t, "", model.ViewSettings{})
	m.SetFolders(append(sample(), mbox("Archive/2024/Q1", 0, 4)), false)

	m = press(m, "down", "E")
	assert.Equal(t, []string{"  INBOX", "▾ Archive", "    2023", "  ▾ 2024", "      Q1", "  Sent"}, names(m))
	requireFresh(t, m)

	m = press(m, "C")
	assert.Equal(t, []string{"  INBOX", "▸ Archive", "  Sent"}, names(m))

	m.ExpandAll()
	assert.Len(t, m.Rows(), 6)
	m.CollapseAll()
	assert.Len(t, m.Rows(), 3)
	requireFresh(t, m)
}

func TestSortKeys(t *testing.T) {
	m := newView(t, "", model.ViewSettings{})
	m.SetFolders(sample(), false)

	m = press(m, "s")
	assert.Equal(t, model.SortName, m.Settings().SortColumn)
	assert.Equal(t, []string{"▸ Archive", "  INBOX", "  Sent"}, names(m))

	m = press(m, "s")
	assert.Equal(t, model.SortUnread, m.Settings().SortColumn)
	assert.Equal(t, []string{"▸ Archive", "  Sent", "  INBOX"}, names(m))

	m = press(m, "S")
	assert.True(t, m.Settings().SortDescending)
	assert.Equal(t, []string{"  INBOX", "▸ Archive", "  Sent"}, names(m))
	requireFresh(t, m)

	m = press(m, "s", "s")
	assert.Equal(t, model.SortNone, m.Settings().SortColumn)
	assert.Equal(t, []string{"  INBOX", "▸ Archive", "  Sent"}, names(m))
}

func TestSortFollowsCountChanges(t *testing.T) {
	m := newView(t, "", model.ViewSettings{SortColumn: model.SortUnread, SortDescending: true})
	m.SetFolders(sample(), false)
	assert.Equal(t, []string{"  INBOX", "▸ Archive", "  Sent"}, names(m))

	updated := sample()
	updated[4].Unseen = 9
	m.SetFolders(updated, false)
	assert.Equal(t, []string{"  Sent", "  INBOX", "▸ Archive"}, names(m))
	assert.Equal(t, "9", m.Rows()[0][1])
	requireFresh(t, m)
}

func TestRootRow(t *testing.T) {
	m := newView(t, "", model.ViewSettings{})
	m.SetFolders(sample(), false)

	m = press(m, "r")
	assert.True(t, m.Settings().RootVisible)
	require.Len(t, m.Rows(), 4)
	assert.Equal(t, table.Row{"▾ Work", "4", "152", ""}, m.Rows()[0])
	assert.Equal(t, "    INBOX", m.Rows()[1][0])

	updated := sample()
	updated[0].Unseen = 10
	m.SetFolders(updated, false)
	assert.Equal(t, "11", m.Rows()[0][1], "root totals follow folder changes")
	requireFresh(t, m)

	m = press(m, "r")
	assert.Len(t, m.Rows(), 3)
}

func TestChildrenAscendingKey(t *testing.T) {
	m := newView(t, "", model.ViewSettings{SortColumn: model.SortName, SortDescending: true})
	m.SetFolders(sample(), false)
	m.ExpandAll()
	assert.Equal(t, []string{"  Sent", "  INBOX", "▾ Archive", "    2024", "    2023"}, names(m))

	m = press(m, "a")
	assert.True(t, m.Settings().ChildrenAscending)
	assert.Equal(t, []string{"  Sent", "  INBOX", "▾ Archive", "    2023", "    2024"}, names(m))
	requireFresh(t, m)
}

func TestSettingsAndRefreshMessages(t *testing.T) {
	m := newView(t, "", model.ViewSettings{})
	m.SetFolders(sample(), false)

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	require.NotNil(t, cmd)
	msg, ok := cmd().(SettingsChangedMsg)
	require.True(t, ok)
	assert.Equal(t, "acct-1", msg.Settings.AccountID)
	assert.Equal(t, model.SortName, msg.Settings.SortColumn)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("R")})
	require.NotNil(t, cmd)
	assert.Equal(t, RefreshRequestMsg{AccountID: "acct-1"}, cmd())
}

func TestSelectCmd(t *testing.T) {
	m := newView(t, "", model.ViewSettings{RootVisible: true})
	m.SetFolders(sample(), false)

	sel, ok := m.SelectCmd()().(SelectedFolderMsg)
	require.True(t, ok)
	assert.True(t, sel.Root)

	m = press(m, "down", "d")
	sel = m.SelectCmd()().(SelectedFolderMsg)
	assert.Equal(t, "INBOX", sel.Path)
	assert.Equal(t, uint32(40), sel.Folder.Messages)
}

func TestFoldersRemovedUnderCursor(t *testing.T) {
	m := newView(t, "", model.ViewSettings{})
	m.SetFolders(sample(), false)
	m = press(m, "down", "enter", "down", "down")
	path, _ := m.SelectedPath()
	require.Equal(t, "Archive/2024", path)

	m.SetFolders([]folder.Folder{mbox("INBOX", 3, 40), mbox("Archive", 0, 50)}, false)
	assert.Equal(t, []string{"  INBOX", "  Archive"}, names(m))
	requireFresh(t, m)
	_, ok := m.SelectedPath()
	assert.True(t, ok, "cursor clamped to a remaining row")
}

func TestExpandStatePersists(t *testing.T) {
	dir := t.TempDir()

	m := newView(t, dir, model.ViewSettings{})
	m.SetFolders(sample(), false)
	m = press(m, "down", "enter")
	require.NoError(t, m.Close())

	_, err := os.Stat(StatePath(dir, "acct-1"))
	require.NoError(t, err)

	again := newView(t, dir, model.ViewSettings{})
	again.SetFolders(sample(), true)
	assert.True(t, again.Stale())
	assert.Equal(t, []string{"  INBOX", "▾ Archive", "    2023", "    2024", "  Sent"}, names(again))
	requireFresh(t, again)
}

func TestSaveStateSkipsUnloadedView(t *testing.T) {
	dir := t.TempDir()
	m := newView(t, dir, model.ViewSettings{})
	require.NoError(t, m.Close())

	_, err := os.Stat(StatePath(dir, "acct-1"))
	assert.True(t, os.IsNotExist(err))
}

func TestExpandedDefault(t *testing.T) {
	m := newView(t, "", model.ViewSettings{})
	m.SetFolders(sample(), false)

	m.SetExpandedDefault(true)
	assert.Len(t, m.Rows(), 5)
	requireFresh(t, m)
}
