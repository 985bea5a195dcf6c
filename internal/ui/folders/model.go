package folders

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/nhle/mailsetup/internal/folder"
	"github.com/nhle/mailsetup/internal/keys"
	"github.com/nhle/mailsetup/internal/model"
	"github.com/nhle/mailsetup/internal/theme"
	"github.com/nhle/mailsetup/internal/treetable"
)

// SettingsChangedMsg reports view settings changed from the keyboard.
type SettingsChangedMsg struct {
	Settings model.ViewSettings
}

// RefreshRequestMsg asks for the account's folders to be listed again.
type RefreshRequestMsg struct {
	AccountID string
}

// SelectedFolderMsg is sent when the user opens the detail pane on a row.
type SelectedFolderMsg struct {
	AccountID string
	Path      string
	Folder    folder.Folder
	// Root is set when the account row itself is selected.
	Root bool
}

// StatePath is where the expanded folders of accountID are saved.
func StatePath(stateDir, accountID string) string {
	return filepath.Join(stateDir, accountID+".expanded.xml")
}

// Options configures a folders view.
type Options struct {
	Settings        model.ViewSettings
	ExpandedDefault bool
	StateDir        string
	Collation       language.Tag
	Log             logrus.FieldLogger
}

// Model is the folder table of one account.
type Model struct {
	account model.Account
	tree    *folder.Tree
	adapter *treetable.Adapter[string]
	cache   *rowCache
	cancel  func()

	table     table.Model
	settings  model.ViewSettings
	collation language.Tag
	statePath string
	// stateLoaded is set once the saved expand state has been applied.
	stateLoaded bool

	keys   *keys.KeyMap
	log    logrus.FieldLogger
	loaded bool
	stale  bool
	width  int
	height int
}

// New creates the folders view for acct. Folders arrive later through
// SetFolders.
func New(acct model.Account, k *keys.KeyMap, opts Options, width, height int) Model {
	log := opts.Log
	if log == nil {
		log = logrus.New()
	}
	log = log.WithFields(logrus.Fields{"component": "folders", "account": acct.ID})

	settings := opts.Settings
	settings.AccountID = acct.ID

	tree := folder.NewTree(acct.Label(), nil)
	tree.SetExpandedDefault(opts.ExpandedDefault)

	a := treetable.New[string](tree,
		treetable.WithLogger(log),
		treetable.WithRootVisible(settings.RootVisible),
		treetable.WithSortChildrenAscending(settings.ChildrenAscending),
		treetable.WithOrdering(tree.OrderingFor(settings, opts.Collation)),
	)
	cache := newRowCache(a)
	cancel := a.Subscribe(cache)

	t := table.New(
		table.WithColumns(columns(width)),
		table.WithFocused(true),
		table.WithHeight(max(height-1, 1)),
	)
	t.KeyMap = tableKeyMap()
	styles := table.DefaultStyles()
	styles.Header = theme.TableHeaderStyle
	styles.Selected = theme.SelectedRowStyle
	t.SetStyles(styles)

	m := Model{
		account:   acct,
		tree:      tree,
		adapter:   a,
		cache:     cache,
		cancel:    cancel,
		table:     t,
		settings:  settings,
		collation: opts.Collation,
		keys:      k,
		log:       log,
		width:     width,
		height:    height,
	}
	if opts.StateDir != "" {
		m.statePath = StatePath(opts.StateDir, acct.ID)
	}
	m.syncTable("")
	return m
}

// tableKeyMap keeps the table's own navigation off the keys the view
// binds for tree operations.
func tableKeyMap() table.KeyMap {
	km := table.DefaultKeyMap()
	km.PageDown = key.NewBinding(key.WithKeys("pgdown", "f"))
	km.PageUp = key.NewBinding(key.WithKeys("pgup", "b"))
	km.HalfPageDown = key.NewBinding(key.WithKeys("ctrl+d"))
	km.HalfPageUp = key.NewBinding(key.WithKeys("ctrl+u"))
	return km
}

func columns(width int) []table.Column {
	const unread, total, role = 8, 8, 9
	name := max(width-unread-total-role-8, 16)
	return []table.Column{
		{Title: folder.ColumnTitles[folder.ColumnName], Width: name},
		{Title: folder.ColumnTitles[folder.ColumnUnread], Width: unread},
		{Title: folder.ColumnTitles[folder.ColumnTotal], Width: total},
		{Title: folder.ColumnTitles[folder.ColumnRole], Width: role},
	}
}

// Init returns nil; the app delivers folders.
func (m Model) Init() tea.Cmd {
	return nil
}

// AccountID returns the id of the account shown.
func (m Model) AccountID() string { return m.account.ID }

// Account returns the account shown.
func (m Model) Account() model.Account { return m.account }

// Settings returns the current view settings.
func (m Model) Settings() model.ViewSettings { return m.settings }

// Adapter exposes the table adapter.
func (m Model) Adapter() *treetable.Adapter[string] { return m.adapter }

// Tree exposes the folder hierarchy.
func (m Model) Tree() *folder.Tree { return m.tree }

// Rows returns the rendered rows.
func (m Model) Rows() []table.Row { return m.cache.rows }

// Loaded reports whether any folder list has been delivered.
func (m Model) Loaded() bool { return m.loaded }

// Stale reports whether the rows come from the cache after a failed
// refresh.
func (m Model) Stale() bool { return m.stale }

// SelectedPath returns the path under the cursor.
func (m Model) SelectedPath() (string, bool) {
	return m.adapter.NodeAt(m.table.Cursor())
}

// SetAccount updates the account, relabelling the root row.
func (m *Model) SetAccount(acct model.Account) {
	path, _ := m.SelectedPath()
	m.account = acct
	m.tree.SetLabel(acct.Label())
	m.adapter.Flush()
	m.syncTable(path)
}

// SetFolders replaces the folders shown. cached marks folders read from
// the store rather than the server. The saved expand state is applied
// the first time a non-empty list arrives.
func (m *Model) SetFolders(list []folder.Folder, cached bool) {
	path, _ := m.SelectedPath()

	m.tree.Replace(list)
	m.adapter.Flush()
	m.cache.refreshRoot()
	m.loaded = true
	m.stale = cached

	if !m.stateLoaded && len(list) > 0 {
		m.stateLoaded = true
		m.LoadState()
	}
	m.syncTable(path)
}

// MarkStale flags the rows as out of date after a failed refresh.
func (m *Model) MarkStale() { m.stale = true }

// LoadState applies the saved expand state. Missing or rejected
// documents leave the defaults in place.
func (m *Model) LoadState() {
	if m.statePath == "" {
		return
	}
	err := m.adapter.LoadExpandedStateFile(m.statePath)
	switch {
	case err == nil:
	case errors.Is(err, treetable.ErrStateDefaultMismatch), errors.Is(err, treetable.ErrStateVersion):
		m.log.WithError(err).Info("ignoring saved expand state")
	default:
		m.log.WithError(err).Warn("loading expand state")
	}
	m.adapter.Flush()
}

// SaveState writes the expand state next to the other account state.
func (m Model) SaveState() error {
	if m.statePath == "" || !m.loaded {
		return nil
	}
	if err := m.adapter.SaveExpandedStateFile(m.statePath); err != nil {
		return fmt.Errorf("saving expand state for %s: %w", m.account.ID, err)
	}
	return nil
}

// Close saves the expand state and detaches the view from its adapter.
func (m *Model) Close() error {
	err := m.SaveState()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.adapter.Close()
	return err
}

// Update handles messages for the folders view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		return m.handleKeys(msg)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	path, ok := m.SelectedPath()
	var cmd tea.Cmd

	switch {
	case key.Matches(msg, m.keys.Toggle):
		if ok {
			m.adapter.Toggle(path)
		}

	case key.Matches(msg, m.keys.Expand):
		if ok {
			m.adapter.Expand(path)
		}

	case key.Matches(msg, m.keys.Collapse):
		if ok {
			path = m.collapseOrParent(path)
		}

	case key.Matches(msg, m.keys.ExpandAll):
		if ok {
			m.adapter.SetExpandedRecursive(path, true)
		}

	case key.Matches(msg, m.keys.CollapseAll):
		if ok {
			m.adapter.SetExpandedRecursive(path, false)
		}

	case key.Matches(msg, m.keys.CycleSort):
		m.settings.SortColumn = model.NextSortColumn(m.settings.SortColumn)
		cmd = m.applyOrdering()

	case key.Matches(msg, m.keys.Reverse):
		m.settings.SortDescending = !m.settings.SortDescending
		cmd = m.applyOrdering()

	case key.Matches(msg, m.keys.Ascending):
		cmd = m.SetChildrenAscending(!m.settings.ChildrenAscending)

	case key.Matches(msg, m.keys.RootVisible):
		cmd = m.SetRootVisible(!m.settings.RootVisible)

	case key.Matches(msg, m.keys.Refresh):
		id := m.account.ID
		cmd = func() tea.Msg { return RefreshRequestMsg{AccountID: id} }

	case key.Matches(msg, m.keys.Detail):
		cmd = m.selectCmd()

	default:
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}

	m.adapter.Flush()
	m.syncTable(path)
	return m, cmd
}

// collapseOrParent collapses an open folder, or moves to the parent of
// a closed one. It returns the path the cursor should land on.
func (m *Model) collapseOrParent(path string) string {
	if m.adapter.IsExpanded(path) {
		root, _ := m.adapter.Root()
		if path != root || m.adapter.RootVisible() {
			m.adapter.Collapse(path)
			return path
		}
	}
	parent, ok := m.tree.Parent(path)
	if !ok || m.adapter.RowOf(parent) < 0 {
		return path
	}
	return parent
}

// SetSort applies a sort column and direction.
func (m *Model) SetSort(column string, descending bool) tea.Cmd {
	m.settings.SortColumn = column
	m.settings.SortDescending = descending
	cmd := m.applyOrdering()
	m.settle()
	return cmd
}

// SetChildrenAscending switches the ascending-children mode.
func (m *Model) SetChildrenAscending(on bool) tea.Cmd {
	m.settings.ChildrenAscending = on
	m.adapter.SetSortChildrenAscending(on)
	m.settle()
	return m.settingsChanged()
}

// SetRootVisible shows or hides the account row.
func (m *Model) SetRootVisible(visible bool) tea.Cmd {
	m.settings.RootVisible = visible
	m.adapter.SetRootVisible(visible)
	m.settle()
	return m.settingsChanged()
}

// ExpandAll expands every folder.
func (m *Model) ExpandAll() {
	if root, ok := m.adapter.Root(); ok {
		m.adapter.SetExpandedRecursive(root, true)
	}
	m.settle()
}

// CollapseAll collapses every top-level folder.
func (m *Model) CollapseAll() {
	root, ok := m.adapter.Root()
	if !ok {
		return
	}
	if m.adapter.RootVisible() {
		m.adapter.Collapse(root)
	} else {
		for c, ok := m.tree.FirstChild(root); ok; c, ok = m.tree.NextSibling(c) {
			m.adapter.Collapse(c)
		}
	}
	m.settle()
}

// SetExpandedDefault changes the state unvisited folders open in.
func (m *Model) SetExpandedDefault(expanded bool) {
	path, _ := m.SelectedPath()
	m.tree.SetExpandedDefault(expanded)
	m.adapter.Flush()
	m.syncTable(path)
}

func (m *Model) applyOrdering() tea.Cmd {
	m.adapter.SetOrdering(m.tree.OrderingFor(m.settings, m.collation))
	return m.settingsChanged()
}

func (m *Model) settingsChanged() tea.Cmd {
	s := m.settings
	return func() tea.Msg { return SettingsChangedMsg{Settings: s} }
}

// settle flushes deferred adapter work and refreshes the table,
// keeping the cursor on the same folder.
func (m *Model) settle() {
	path, _ := m.SelectedPath()
	m.adapter.Flush()
	m.syncTable(path)
}

func (m Model) selectCmd() tea.Cmd {
	path, ok := m.SelectedPath()
	if !ok {
		return nil
	}
	sel := SelectedFolderMsg{AccountID: m.account.ID, Path: path}
	if f, ok := m.tree.Folder(path); ok {
		sel.Folder = f
	} else {
		sel.Root = true
	}
	return func() tea.Msg { return sel }
}

// SelectCmd reports the row under the cursor as selected.
func (m Model) SelectCmd() tea.Cmd { return m.selectCmd() }

// syncTable pushes cached rows into the table and puts the cursor back
// on path when it still has a row.
func (m *Model) syncTable(path string) {
	cursor := m.table.Cursor()
	if m.cache.dirty {
		m.table.SetRows(slices.Clone(m.cache.rows))
		m.cache.dirty = false
	}
	if row := m.adapter.RowOf(path); row >= 0 {
		cursor = row
	}
	n := len(m.cache.rows)
	if n == 0 {
		return
	}
	m.table.SetCursor(min(max(cursor, 0), n-1))
}

// View renders the folders table.
func (m Model) View() string {
	if !m.loaded {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("Listing folders...")
	}
	if m.adapter.RowCount() == 0 {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No folders.\n\nPress R to refresh.")
	}
	return m.table.View()
}

// SetSize updates the table dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetColumns(columns(width))
	m.table.SetWidth(width)
	m.table.SetHeight(max(height-1, 1))
}
