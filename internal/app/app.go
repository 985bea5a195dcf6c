package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/nhle/mailsetup/internal/credential"
	"github.com/nhle/mailsetup/internal/folder"
	"github.com/nhle/mailsetup/internal/keys"
	"github.com/nhle/mailsetup/internal/model"
	"github.com/nhle/mailsetup/internal/store"
	appsync "github.com/nhle/mailsetup/internal/sync"
	"github.com/nhle/mailsetup/internal/theme"
	"github.com/nhle/mailsetup/internal/ui"
	"github.com/nhle/mailsetup/internal/ui/command"
	configview "github.com/nhle/mailsetup/internal/ui/config"
	"github.com/nhle/mailsetup/internal/ui/detail"
	"github.com/nhle/mailsetup/internal/ui/folders"
	helpview "github.com/nhle/mailsetup/internal/ui/help"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewFolders ViewState = iota
	ViewConfig
	ViewHelp
	ViewCommand
)

// SendFunc delivers a test message from an account.
type SendFunc func(ctx context.Context, acct model.Account, password string) error

// Options are the services the root model runs on.
type Options struct {
	Store      store.Store
	Creds      credential.Store
	ConfigPath string
	Poller     *appsync.Poller
	// Watcher reloads accounts when the config file changes; nil
	// disables reloading.
	Watcher   *appsync.ConfigWatcher
	Validate  configview.ValidateFunc
	SendTest  SendFunc
	Collation language.Tag
	Log       logrus.FieldLogger
}

// Model is the root Bubble Tea model that manages view routing,
// layout, and one folders view per account.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	opts         Options
	log          logrus.FieldLogger
	keys         *keys.KeyMap

	cfg      *model.AppConfig
	accounts []model.Account
	views    map[string]folders.Model
	activeID string
	fetched  map[string]time.Time
	started  bool

	detail      detail.Model
	detailOpen  bool
	helpView    helpview.Model
	commandView command.Model
	configView  configview.Model

	ready     bool
	statusErr string
	statusMsg string
}

// New creates the root application model.
func New(opts Options) Model {
	if opts.Log == nil {
		opts.Log = logrus.New()
	}
	if opts.SendTest == nil {
		opts.SendTest = SendTestMessage
	}
	k := keys.DefaultKeyMap()

	return Model{
		currentView: ViewFolders,
		opts:        opts,
		log:         opts.Log.WithField("component", "app"),
		keys:        k,
		views:       make(map[string]folders.Model),
		fetched:     make(map[string]time.Time),
		detail:      detail.New(k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
		configView: configview.New(configview.Deps{
			Store:      opts.Store,
			Creds:      opts.Creds,
			ConfigPath: opts.ConfigPath,
			Validate:   opts.Validate,
			Log:        opts.Log,
		}, k, 80, 24),
	}
}

// Init loads the configured accounts and starts watching the config
// file.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadAccounts()}
	if m.opts.Watcher != nil {
		wait, err := m.opts.Watcher.Start()
		if err != nil {
			m.log.WithError(err).Warn("config changes will not be picked up")
		} else {
			cmds = append(cmds, wait)
		}
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.resize()
		// Forward to the wizard so huh forms can calculate their layout.
		var cmd tea.Cmd
		m.configView, cmd = m.configView.Update(tea.WindowSizeMsg{
			Width:  m.layout.ContentWidth(),
			Height: m.layout.ContentHeight(),
		})
		return m, cmd

	case accountsLoadedMsg:
		if msg.err != nil {
			m.log.WithError(msg.err).Error("loading accounts")
			m.statusErr = msg.err.Error()
			return m, nil
		}
		return m, m.setAccounts(msg)

	case appsync.FoldersMsg:
		var cmd tea.Cmd
		if !msg.Cached {
			cmd = m.opts.Poller.WaitForNextResult()
		}
		m.applyFolders(msg)
		return m, cmd

	case appsync.RefreshDoneMsg:
		for _, r := range msg.Results {
			m.applyFolders(r)
		}
		m.statusMsg = "Refreshed all accounts"
		return m, nil

	case appsync.ConfigChangedMsg:
		m.log.WithField("path", msg.Path).Info("config changed, reloading accounts")
		return m, tea.Batch(m.loadAccounts(), m.opts.Watcher.Wait())

	case folders.SettingsChangedMsg:
		return m, m.saveViewSettings(msg.Settings)

	case settingsSavedMsg:
		if msg.err != nil {
			m.log.WithError(msg.err).Warn("saving view settings")
			m.statusErr = "saving view settings: " + msg.err.Error()
		}
		return m, nil

	case folders.RefreshRequestMsg:
		m.opts.Poller.RefreshAccount(msg.AccountID)
		m.statusMsg = "Refreshing..."
		return m, nil

	case folders.SelectedFolderMsg:
		m.openDetail(msg)
		return m, nil

	case detail.BackMsg:
		m.detailOpen = false
		m.resize()
		return m, nil

	case detail.TestSendMsg:
		if acct, ok := m.account(msg.AccountID); ok {
			m.statusMsg = "Sending test message..."
			return m, m.sendTestMessage(acct)
		}
		return m, nil

	case testSentMsg:
		if msg.err != nil {
			m.statusErr = fmt.Sprintf("test message from %s failed: %v", msg.account.Label(), msg.err)
			return m, nil
		}
		m.statusErr = ""
		m.statusMsg = "Test message sent to " + msg.account.Email
		return m, nil

	case command.CommandMsg:
		m.currentView = ViewFolders
		return m, m.executeCommand(msg)

	case command.ErrorMsg:
		m.currentView = ViewFolders
		m.statusErr = msg.Err.Error()
		return m, nil

	case configview.ConfigDoneMsg:
		m.currentView = ViewFolders
		return m, m.loadAccounts()

	case configview.AccountSavedMsg:
		m.activeID = msg.Account.ID
		return m, m.loadAccounts()

	case configview.AccountDeletedMsg:
		return m, m.loadAccounts()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		m.statusMsg = ""

		switch m.currentView {
		case ViewFolders:
			if m.detailOpen {
				break
			}
			switch {
			case key.Matches(msg, m.keys.Quit):
				return m.quit()

			case key.Matches(msg, m.keys.Help):
				m.previousView = m.currentView
				m.currentView = ViewHelp
				return m, nil

			case key.Matches(msg, m.keys.Command):
				m.previousView = m.currentView
				m.currentView = ViewCommand
				return m, m.commandView.Focus()

			case key.Matches(msg, m.keys.NextAccount):
				m.switchAccount()
				return m, nil

			case key.Matches(msg, m.keys.AddAccount):
				return m, m.openWizard(true)

			case key.Matches(msg, m.keys.EditAccount):
				return m, m.openWizard(false)

			case key.Matches(msg, m.keys.TestSend):
				if v, ok := m.activeView(); ok {
					m.statusMsg = "Sending test message..."
					return m, m.sendTestMessage(v.Account())
				}
				return m, nil

			case key.Matches(msg, m.keys.Back):
				m.statusErr = ""
				return m, nil
			}

		case ViewHelp:
			if key.Matches(msg, m.keys.Help) || key.Matches(msg, m.keys.Back) {
				m.currentView = m.previousView
				return m, nil
			}

		case ViewCommand:
			if key.Matches(msg, m.keys.Back) {
				m.currentView = m.previousView
				return m, nil
			}
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewFolders:
		if m.detailOpen {
			m.detail, cmd = m.detail.Update(msg)
			break
		}
		if v, ok := m.activeView(); ok {
			v, cmd = v.Update(msg)
			m.views[v.AccountID()] = v
		}
	case ViewConfig:
		m.configView, cmd = m.configView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// setAccounts creates a folders view for each new account, updates the
// existing ones and drops views of removed accounts.
func (m *Model) setAccounts(msg accountsLoadedMsg) tea.Cmd {
	m.cfg = msg.cfg
	m.accounts = msg.accounts
	width, height := m.tableSize()

	var cmds []tea.Cmd
	seen := make(map[string]bool, len(msg.accounts))
	for _, acct := range msg.accounts {
		seen[acct.ID] = true
		if v, ok := m.views[acct.ID]; ok {
			v.SetAccount(acct)
			v.SetExpandedDefault(m.cfg.Display.ExpandedDefault)
			m.views[acct.ID] = v
			continue
		}
		m.views[acct.ID] = folders.New(acct, m.keys, folders.Options{
			Settings:        msg.settings[acct.ID],
			ExpandedDefault: m.cfg.Display.ExpandedDefault,
			StateDir:        m.cfg.StateDir,
			Collation:       m.opts.Collation,
			Log:             m.opts.Log,
		}, width, height)
		cmds = append(cmds, m.opts.Poller.LoadCached(acct.ID))
	}
	for id, v := range m.views {
		if seen[id] {
			continue
		}
		m.dropView(v)
		delete(m.views, id)
		delete(m.fetched, id)
	}

	if _, ok := m.views[m.activeID]; !ok {
		m.activeID = ""
		if len(m.accounts) > 0 {
			m.activeID = m.accounts[0].ID
		}
	}
	if m.detailOpen {
		m.refreshDetail()
	}

	m.opts.Poller.SetAccounts(m.accounts)
	if !m.started {
		m.started = true
		cmds = append(cmds, m.opts.Poller.Start())
	}

	// First run: nothing configured yet.
	if len(m.accounts) == 0 && m.currentView == ViewFolders {
		cmds = append(cmds, m.openWizard(true))
	}
	return tea.Batch(cmds...)
}

// dropView closes the view of a removed account and forgets its saved
// expand state.
func (m *Model) dropView(v folders.Model) {
	if err := v.Close(); err != nil {
		m.log.WithError(err).Warn("closing folders view")
	}
	if m.cfg == nil {
		return
	}
	err := os.Remove(folders.StatePath(m.cfg.StateDir, v.AccountID()))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		m.log.WithError(err).Warn("removing expand state")
	}
}

// applyFolders hands a listing to its account's view. A cached listing
// never replaces one already shown.
func (m *Model) applyFolders(msg appsync.FoldersMsg) {
	v, ok := m.views[msg.AccountID]
	if !ok {
		return
	}
	label := v.Account().Label()

	if msg.Err != nil {
		if msg.Cached {
			m.log.WithError(msg.Err).WithField("account", msg.AccountID).Warn("loading cached folders")
			return
		}
		v.MarkStale()
		m.views[msg.AccountID] = v
		if msg.AuthFailed() {
			m.statusErr = fmt.Sprintf("%s: authentication failed, press e to update the password", label)
		}
		return
	}
	if msg.Cached && v.Loaded() {
		return
	}

	v.SetFolders(msg.Folders, msg.Cached)
	m.views[msg.AccountID] = v
	if !msg.Cached {
		m.fetched[msg.AccountID] = time.Now()
		if strings.HasPrefix(m.statusErr, label+":") {
			m.statusErr = ""
		}
	}
	if m.detailOpen {
		m.refreshDetail()
	}
}

// switchAccount saves the expand state of the current account and moves
// to the next one.
func (m *Model) switchAccount() {
	if len(m.accounts) < 2 {
		return
	}
	if v, ok := m.activeView(); ok {
		if err := v.SaveState(); err != nil {
			m.log.WithError(err).Warn("saving expand state")
		}
	}
	idx := 0
	for i, a := range m.accounts {
		if a.ID == m.activeID {
			idx = i
		}
	}
	m.activeID = m.accounts[(idx+1)%len(m.accounts)].ID
}

// openWizard shows the account view, on a new account form when add is
// set or on the active account's form otherwise.
func (m *Model) openWizard(add bool) tea.Cmd {
	m.previousView = m.currentView
	m.currentView = ViewConfig
	init := m.configView.Init()
	if add {
		return tea.Batch(init, m.configView.StartAdd())
	}
	if v, ok := m.activeView(); ok {
		return tea.Batch(init, m.configView.StartEdit(v.Account()))
	}
	return init
}

// openDetail shows the detail pane on a selected row.
func (m *Model) openDetail(sel folders.SelectedFolderMsg) {
	v, ok := m.views[sel.AccountID]
	if !ok {
		return
	}
	m.detail.SetSubject(m.subject(v, sel.Path, sel.Folder, sel.Root))
	m.detailOpen = true
	m.resize()
}

// refreshDetail re-reads the open subject after its folders changed.
func (m *Model) refreshDetail() {
	s, ok := m.detail.Subject()
	if !ok {
		return
	}
	v, ok := m.views[s.Account.ID]
	if !ok {
		m.detailOpen = false
		m.resize()
		return
	}
	if s.Root {
		m.detail.SetSubject(m.subject(v, s.Path, folder.Folder{}, true))
		return
	}
	f, ok := v.Tree().Folder(s.Path)
	if !ok {
		m.detailOpen = false
		m.resize()
		return
	}
	m.detail.SetSubject(m.subject(v, s.Path, f, false))
}

func (m Model) subject(v folders.Model, path string, f folder.Folder, root bool) detail.Subject {
	s := detail.Subject{
		Account:   v.Account(),
		Path:      path,
		Folder:    f,
		Root:      root,
		FetchedAt: m.fetched[v.AccountID()],
	}
	if root {
		s.Unread, _ = v.Tree().ValueAt(path, folder.ColumnUnread).(uint32)
		s.Total, _ = v.Tree().ValueAt(path, folder.ColumnTotal).(uint32)
	}
	return s
}

// executeCommand runs a palette command against the active account.
func (m *Model) executeCommand(c command.CommandMsg) tea.Cmd {
	if c.Name == command.Quit {
		m.shutdown()
		return tea.Quit
	}
	if c.Name == command.Refresh {
		m.statusMsg = "Refreshing all accounts..."
		return m.opts.Poller.RefreshAll()
	}
	if c.Name == command.AddAccount {
		return m.openWizard(true)
	}

	v, ok := m.activeView()
	if !ok {
		m.statusErr = "no account selected"
		return nil
	}
	var cmd tea.Cmd
	switch c.Name {
	case command.Sort:
		cmd = v.SetSort(c.SortColumn, c.Descending)
	case command.Root:
		cmd = v.SetRootVisible(!v.Settings().RootVisible)
	case command.Ascending:
		cmd = v.SetChildrenAscending(!v.Settings().ChildrenAscending)
	case command.ExpandAll:
		v.ExpandAll()
	case command.CollapseAll:
		v.CollapseAll()
	}
	m.views[v.AccountID()] = v
	return cmd
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.shutdown()
	return m, tea.Quit
}

// shutdown saves every account's expand state and stops background
// work.
func (m *Model) shutdown() {
	for _, v := range m.views {
		if err := v.Close(); err != nil {
			m.log.WithError(err).Warn("saving expand state")
		}
	}
	m.opts.Poller.Stop()
	if m.opts.Watcher != nil {
		m.opts.Watcher.Stop()
	}
}

func (m Model) account(id string) (model.Account, bool) {
	for _, a := range m.accounts {
		if a.ID == id {
			return a, true
		}
	}
	return model.Account{}, false
}

func (m Model) activeView() (folders.Model, bool) {
	v, ok := m.views[m.activeID]
	return v, ok
}

// tableSize is the size of the folders table given the detail pane.
func (m Model) tableSize() (int, int) {
	if !m.ready {
		return 80, 24
	}
	w, _ := m.layout.SplitWidths(m.detailOpen)
	return w, m.layout.ContentHeight()
}

// resize lays out every view for the current terminal size.
func (m *Model) resize() {
	if !m.ready {
		return
	}
	w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
	tableW, detailW := m.layout.SplitWidths(m.detailOpen)
	for id, v := range m.views {
		v.SetSize(tableW, h)
		m.views[id] = v
	}
	m.detail.SetSize(detailW, h)
	m.helpView.SetSize(w, h)
	m.commandView.SetSize(w, h)
	m.configView.SetSize(w, h)
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.title(), m.syncStatus())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints(), m.statusErr)

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewFolders:
		v, ok := m.activeView()
		if !ok {
			return lipgloss.NewStyle().
				Width(m.layout.ContentWidth()).
				Height(m.layout.ContentHeight()).
				Align(lipgloss.Center, lipgloss.Center).
				Foreground(theme.ColorGray).
				Render("No accounts configured.\n\nPress n to add one.")
		}
		if m.detailOpen {
			return lipgloss.JoinHorizontal(lipgloss.Top, v.View(), m.detail.View())
		}
		return v.View()
	case ViewConfig:
		return m.configView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// title lists the accounts with the active one highlighted.
func (m Model) title() string {
	if len(m.accounts) == 0 {
		return "mailsetup"
	}
	active := lipgloss.NewStyle().Bold(true).Underline(true)
	names := make([]string, len(m.accounts))
	for i, a := range m.accounts {
		name := a.Label()
		if v, ok := m.views[a.ID]; ok && v.Stale() {
			name += " (cached)"
		}
		if a.ID == m.activeID {
			name = active.Render(name)
		}
		names[i] = name
	}
	return "mailsetup  " + strings.Join(names, " | ")
}

// syncStatus returns a short string describing the combined refresh
// state.
func (m Model) syncStatus() string {
	statuses := m.opts.Poller.Statuses()
	if len(statuses) == 0 {
		return "no accounts"
	}

	running := 0
	var failed []string
	for _, s := range statuses {
		switch s.State {
		case appsync.SyncRunning:
			running++
		case appsync.SyncError:
			if a, ok := m.account(s.AccountID); ok {
				failed = append(failed, a.Label())
			}
		}
	}

	if running > 0 {
		return fmt.Sprintf("listing (%d)", running)
	}
	if len(failed) > 0 {
		return "unreachable: " + strings.Join(failed, ", ")
	}
	return "synced " + ui.RelativeTime(m.fetched[m.activeID])
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.statusMsg != "" && m.currentView == ViewFolders {
		return m.statusMsg
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewConfig:
		return "tab next field | enter submit | esc back"
	default:
		if m.detailOpen {
			return "esc/d close | t test message | j/k scroll"
		}
		return "q quit | ? help | enter toggle | s sort | tab account | n add | : command"
	}
}
