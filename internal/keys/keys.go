package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding

	// Tree
	Toggle      key.Binding
	Expand      key.Binding
	Collapse    key.Binding
	ExpandAll   key.Binding
	CollapseAll key.Binding

	// View settings
	CycleSort   key.Binding
	Reverse     key.Binding
	Ascending   key.Binding
	RootVisible key.Binding

	// Accounts
	NextAccount key.Binding
	AddAccount  key.Binding
	EditAccount key.Binding
	TestSend    key.Binding

	// Panels
	Detail  key.Binding
	Refresh key.Binding
	Command key.Binding
	Help    key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter/space", "toggle folder"),
		),
		Expand: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "expand"),
		),
		Collapse: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "collapse / parent"),
		),
		ExpandAll: key.NewBinding(
			key.WithKeys("E"),
			key.WithHelp("E", "expand subtree"),
		),
		CollapseAll: key.NewBinding(
			key.WithKeys("C"),
			key.WithHelp("C", "collapse subtree"),
		),
		CycleSort: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "cycle sort"),
		),
		Reverse: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "reverse sort"),
		),
		Ascending: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "subfolders ascending"),
		),
		RootVisible: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "show/hide account row"),
		),
		NextAccount: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next account"),
		),
		AddAccount: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "add account"),
		),
		EditAccount: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit account"),
		),
		TestSend: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "send test message"),
		),
		Detail: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "folder detail"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "refresh"),
		),
		Command: key.NewBinding(
			key.WithKeys(":"),
			key.WithHelp(":", "command palette"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.Toggle, k.CycleSort,
		k.Refresh, k.Quit, k.Help,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Toggle, k.Expand, k.Collapse, k.ExpandAll, k.CollapseAll},
		{k.CycleSort, k.Reverse, k.Ascending, k.RootVisible},
		{k.NextAccount, k.AddAccount, k.EditAccount, k.TestSend},
		{k.Detail, k.Refresh, k.Command, k.Help, k.Back, k.Quit},
	}
}
