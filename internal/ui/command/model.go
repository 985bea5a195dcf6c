package command

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailsetup/internal/model"
	"github.com/nhle/mailsetup/internal/theme"
)

// Palette commands.
const (
	Refresh     = "refresh"
	Sort        = "sort"
	Root        = "root"
	Ascending   = "ascending"
	ExpandAll   = "expand-all"
	CollapseAll = "collapse-all"
	AddAccount  = "add-account"
	Quit        = "quit"
)

// Commands lists every palette command with its usage, for help and
// completion.
var Commands = []struct {
	Name, Usage string
}{
	{Refresh, "refresh            list folders of every account again"},
	{Sort, "sort name|unread|total|none [desc]"},
	{Root, "root               show or hide the account row"},
	{Ascending, "ascending          sort subfolders ascending"},
	{ExpandAll, "expand-all         expand every folder"},
	{CollapseAll, "collapse-all       collapse every folder"},
	{AddAccount, "add-account        open the account wizard"},
	{Quit, "quit               save state and exit"},
}

var aliases = map[string]string{
	"q":      Quit,
	"sync":   Refresh,
	"add":    AddAccount,
	"expand": ExpandAll,
}

// CommandMsg is emitted when the user executes a valid command.
type CommandMsg struct {
	Name string
	// SortColumn and Descending are set for the sort command.
	SortColumn string
	Descending bool
}

// ErrorMsg reports a command line that did not parse.
type ErrorMsg struct {
	Err error
}

// Parse turns a command line into a CommandMsg.
func Parse(line string) (CommandMsg, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return CommandMsg{}, fmt.Errorf("empty command")
	}
	name := fields[0]
	if full, ok := aliases[name]; ok {
		name = full
	}

	switch name {
	case Sort:
		if len(fields) < 2 || len(fields) > 3 {
			return CommandMsg{}, fmt.Errorf("usage: sort name|unread|total|none [desc]")
		}
		col := fields[1]
		if col == "none" {
			col = model.SortNone
		}
		if !model.ValidSortColumn(col) {
			return CommandMsg{}, fmt.Errorf("unknown sort column %q", fields[1])
		}
		desc := false
		if len(fields) == 3 {
			if fields[2] != "desc" && fields[2] != "asc" {
				return CommandMsg{}, fmt.Errorf("unknown sort direction %q", fields[2])
			}
			desc = fields[2] == "desc"
		}
		return CommandMsg{Name: Sort, SortColumn: col, Descending: desc}, nil
	}

	known := slices.ContainsFunc(Commands, func(c struct{ Name, Usage string }) bool {
		return c.Name == name
	})
	if !known {
		return CommandMsg{}, fmt.Errorf("unknown command %q", fields[0])
	}
	if len(fields) > 1 {
		return CommandMsg{}, fmt.Errorf("%s takes no arguments", name)
	}
	return CommandMsg{Name: name}, nil
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.Focus()
	ti.Width = width - 6
	ti.ShowSuggestions = true
	names := make([]string, len(Commands))
	for i, c := range Commands {
		names[i] = c.Name
	}
	ti.SetSuggestions(names)

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if line == "" {
				return m, nil
			}
			cmd, err := Parse(line)
			if err != nil {
				return m, func() tea.Msg { return ErrorMsg{Err: err} }
			}
			return m, func() tea.Msg { return cmd }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Command Palette")
	input := m.input.View()

	usage := make([]string, len(Commands))
	for i, c := range Commands {
		usage[i] = c.Usage
	}
	hints := theme.HelpStyle.Render(strings.Join(usage, "\n"))

	content := lipgloss.JoinVertical(lipgloss.Left, title, input, "", hints)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	m.input.Reset()
	return m.input.Focus()
}
