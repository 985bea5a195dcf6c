package detail

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailsetup/internal/folder"
	"github.com/nhle/mailsetup/internal/keys"
	"github.com/nhle/mailsetup/internal/model"
	"github.com/nhle/mailsetup/internal/theme"
	"github.com/nhle/mailsetup/internal/ui"
)

// BackMsg signals the parent to close the detail pane.
type BackMsg struct{}

// TestSendMsg asks the parent to send a test message from the account.
type TestSendMsg struct {
	AccountID string
}

// Subject is what the pane describes: one folder, or the account when
// Root is set.
type Subject struct {
	Account   model.Account
	Path      string
	Folder    folder.Folder
	Root      bool
	FetchedAt time.Time
	// Unread and Total are the account totals shown for the root.
	Unread, Total uint32
}

// Model is the folder detail pane.
type Model struct {
	subject  *Subject
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a new detail pane.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail pane.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Detail):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.TestSend):
			if m.subject != nil {
				id := m.subject.Account.ID
				return m, func() tea.Msg { return TestSendMsg{AccountID: id} }
			}
			return m, nil
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// SetSubject replaces what the pane shows and scrolls to the top.
func (m *Model) SetSubject(s Subject) {
	m.subject = &s
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Subject returns what the pane shows.
func (m Model) Subject() (Subject, bool) {
	if m.subject == nil {
		return Subject{}, false
	}
	return *m.subject, true
}

// View renders the detail pane.
func (m Model) View() string {
	if m.subject == nil {
		return theme.DetailPanelStyle.
			Width(max(m.width-2, 0)).
			Height(max(m.height-2, 0)).
			Foreground(theme.ColorGray).
			Render("No folder selected")
	}
	return theme.DetailPanelStyle.
		Width(max(m.width-2, 0)).
		Height(max(m.height-2, 0)).
		Render(m.viewport.View())
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.subject == nil {
		return ""
	}
	if m.subject.Root {
		return m.renderAccount()
	}
	return m.renderFolder()
}

func (m Model) renderFolder() string {
	s := m.subject
	f := s.Folder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections := []string{titleStyle.Render(f.Leaf())}

	var badges []string
	if role := f.Role(); role != "" {
		badges = append(badges, theme.RoleStyle(role).Render(role))
	}
	if f.Placeholder() {
		badges = append(badges, theme.DimmedStyle.Render("not on server"))
	} else if !f.Selectable() {
		badges = append(badges, theme.DimmedStyle.Render("container"))
	}
	if f.Subscribed {
		badges = append(badges, lipgloss.NewStyle().Foreground(theme.ColorGreen).Render("subscribed"))
	}
	if len(badges) > 0 {
		sections = append(sections, strings.Join(badges, "  "))
	}
	sections = append(sections, "")

	delim := "none"
	if f.Delimiter != 0 {
		delim = strconv.QuoteRune(f.Delimiter)
	}
	rows := [][2]string{
		{"Mailbox", f.Name},
		{"Delimiter", delim},
	}
	if !f.Placeholder() {
		rows = append(rows,
			[2]string{"Messages", strconv.FormatUint(uint64(f.Messages), 10)},
			[2]string{"Unread", theme.UnreadStyle(f.Unseen).Render(strconv.FormatUint(uint64(f.Unseen), 10))},
		)
	}
	rows = append(rows, [2]string{"Fetched", ui.RelativeTime(s.FetchedAt)})
	sections = append(sections, table(rows)...)

	sections = append(sections, "", m.separator(), "")
	sections = append(sections, lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render("Attributes"))
	if len(f.Attrs) == 0 {
		sections = append(sections, theme.DimmedStyle.Italic(true).Render("none"))
	}
	for _, a := range f.Attrs {
		sections = append(sections, "  "+string(a))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderAccount() string {
	s := m.subject
	acct := s.Account

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections := []string{titleStyle.Render(acct.Label()), ""}

	tls := "STARTTLS"
	if acct.TLS {
		tls = "implicit TLS"
	}
	rows := [][2]string{
		{"Email", acct.Email},
		{"Username", acct.Username},
		{"IMAP", fmt.Sprintf("%s:%s (%s)", acct.IMAPHost, acct.IMAPPort, tls)},
	}
	if acct.SMTPHost != "" {
		rows = append(rows, [2]string{"SMTP", fmt.Sprintf("%s:%s", acct.SMTPHost, acct.SMTPPort)})
	}
	rows = append(rows,
		[2]string{"Poll", acct.PollInterval().String()},
		[2]string{"Unread", theme.UnreadStyle(s.Unread).Render(strconv.FormatUint(uint64(s.Unread), 10))},
		[2]string{"Messages", strconv.FormatUint(uint64(s.Total), 10)},
		[2]string{"Synced", ui.RelativeTime(s.FetchedAt)},
	)
	sections = append(sections, table(rows)...)

	if acct.SMTPHost != "" {
		sections = append(sections, "", theme.HelpStyle.Render("t send a test message to "+acct.Email))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) separator() string {
	return lipgloss.NewStyle().
		Foreground(theme.ColorSubtle).
		Render(strings.Repeat("─", max(min(m.width-6, 60), 1)))
}

// table aligns label/value pairs in two columns.
func table(rows [][2]string) []string {
	width := 0
	for _, r := range rows {
		width = max(width, lipgloss.Width(r[0]))
	}
	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(width + 2)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = metaStyle.Render(r[0]+":") + valStyle.Render(r[1])
	}
	return out
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = max(width-6, 1)
	m.viewport.Height = max(height-4, 1)
	if m.subject != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
