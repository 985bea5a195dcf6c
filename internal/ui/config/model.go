package config

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"

	"github.com/nhle/mailsetup/internal/credential"
	"github.com/nhle/mailsetup/internal/keys"
	"github.com/nhle/mailsetup/internal/model"
	"github.com/nhle/mailsetup/internal/store"
	"github.com/nhle/mailsetup/internal/theme"
)

// validateTimeout bounds a connection test started from the wizard.
const validateTimeout = 30 * time.Second

// ConfigMode represents the current state of the account view.
type ConfigMode int

const (
	ModeList           ConfigMode = iota // List configured accounts
	ModeForm                             // Account form
	ModeValidating                       // Testing connection
	ModeValidateResult                   // Show validation result
	ModeConfirmDelete                    // Confirm account deletion
)

// ConfigDoneMsg signals the account view should close.
type ConfigDoneMsg struct{}

// AccountSavedMsg signals an account was saved.
type AccountSavedMsg struct {
	Account model.Account
}

// AccountDeletedMsg signals an account was deleted.
type AccountDeletedMsg struct {
	ID string
}

// ValidateResultMsg carries the result of a connection test. Pending is
// set when the test was part of saving a new or edited account.
type ValidateResultMsg struct {
	Account model.Account
	Err     error
	Pending bool
}

type accountsLoadedMsg struct {
	accounts []model.Account
	err      error
}

type accountSavedInternalMsg struct {
	account model.Account
	err     error
}

type accountDeletedInternalMsg struct {
	id  string
	err error
}

// ValidateFunc tests that an account can log in with password.
type ValidateFunc func(ctx context.Context, acct model.Account, password string) error

// Deps are the services the account view persists through.
type Deps struct {
	Store store.Store
	Creds credential.Store
	// ConfigPath is the config file accounts are mirrored into; empty
	// skips the file.
	ConfigPath string
	Validate   ValidateFunc
	Log        logrus.FieldLogger
}

// formFields holds the values huh binds to. It lives behind a pointer so
// copies of Model share it.
type formFields struct {
	name     string
	email    string
	imapHost string
	imapPort string
	smtpHost string
	smtpPort string
	username string
	password string
	tls      bool
	poll     string
}

// Model is the Bubble Tea model for the account setup UI.
type Model struct {
	mode        ConfigMode
	deps        Deps
	accounts    []model.Account
	selectedIdx int
	editing     *model.Account

	form   *huh.Form
	fields *formFields

	// pending is the account waiting on its connection test, with the
	// password typed into the form.
	pending         *model.Account
	pendingPassword string
	validError      error
	validated       model.Account
	spinner         spinner.Model

	confirmDelete *huh.Form
	deleteConfirm *bool

	statusMsg string

	keys          *keys.KeyMap
	width, height int
}

// New creates a new account view model.
func New(deps Deps, k *keys.KeyMap, width, height int) Model {
	if deps.Log == nil {
		deps.Log = logrus.New()
	}
	deps.Log = deps.Log.WithField("component", "wizard")

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		mode:          ModeList,
		deps:          deps,
		fields:        &formFields{},
		deleteConfirm: new(bool),
		keys:          k,
		spinner:       sp,
		width:         width,
		height:        height,
	}
}

// Init loads accounts from the store on first render.
func (m Model) Init() tea.Cmd {
	m.mode = ModeList
	return m.loadAccounts()
}

// Mode returns the current mode.
func (m Model) Mode() ConfigMode { return m.mode }

// Accounts returns the listed accounts.
func (m Model) Accounts() []model.Account { return m.accounts }

// StartAdd opens the form for a new account.
func (m *Model) StartAdd() tea.Cmd {
	m.editing = nil
	m.resetFormFields(model.NewAccount(""))
	return m.openForm()
}

// StartEdit opens the form on an existing account.
func (m *Model) StartEdit(acct model.Account) tea.Cmd {
	m.editing = &acct
	m.resetFormFields(acct)
	return m.openForm()
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case accountsLoadedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error loading accounts: %v", msg.err)
			return m, nil
		}
		m.accounts = msg.accounts
		m.selectedIdx = min(m.selectedIdx, max(len(m.accounts)-1, 0))
		return m, nil

	case accountSavedInternalMsg:
		m.mode = ModeList
		m.pending = nil
		m.pendingPassword = ""
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error saving account: %v", msg.err)
			return m, nil
		}
		m.statusMsg = fmt.Sprintf("Account %q saved", msg.account.Label())
		acct := msg.account
		return m, tea.Batch(
			m.loadAccounts(),
			func() tea.Msg { return AccountSavedMsg{Account: acct} },
		)

	case accountDeletedInternalMsg:
		m.mode = ModeList
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error deleting account: %v", msg.err)
			return m, nil
		}
		m.statusMsg = "Account deleted"
		id := msg.id
		return m, tea.Batch(
			m.loadAccounts(),
			func() tea.Msg { return AccountDeletedMsg{ID: id} },
		)

	case ValidateResultMsg:
		if m.mode != ModeValidating {
			return m, nil
		}
		if msg.Err == nil && msg.Pending && m.pending != nil {
			return m, m.saveAccount(*m.pending, m.pendingPassword)
		}
		m.validated = msg.Account
		m.validError = msg.Err
		m.mode = ModeValidateResult
		return m, nil

	case spinner.TickMsg:
		if m.mode == ModeValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	// Delegate to active form
	return m.updateActiveForm(msg)
}

// handleKeyMsg processes key messages based on the current mode.
func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.mode {
	case ModeList:
		return m.handleListKeys(msg)
	case ModeForm:
		return m.updateForm(msg)
	case ModeValidateResult:
		return m.handleValidateResultKeys(msg)
	case ModeConfirmDelete:
		return m.updateConfirmDelete(msg)
	case ModeValidating:
		// Only allow escape during validation
		if msg.String() == "esc" {
			m.mode = ModeList
			m.pending = nil
			m.pendingPassword = ""
			return m, nil
		}
		return m, nil
	}
	return m, nil
}

// handleListKeys processes key events in the account list mode.
func (m Model) handleListKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return ConfigDoneMsg{} }

	case msg.String() == "a", key.Matches(msg, m.keys.AddAccount):
		cmd := m.StartAdd()
		return m, cmd

	case msg.String() == "e":
		if len(m.accounts) == 0 {
			return m, nil
		}
		cmd := m.StartEdit(m.accounts[m.selectedIdx])
		return m, cmd

	case msg.String() == "d":
		if len(m.accounts) == 0 {
			return m, nil
		}
		*m.deleteConfirm = false
		m.confirmDelete = m.buildDeleteConfirmForm()
		m.mode = ModeConfirmDelete
		return m, m.confirmDelete.Init()

	case msg.String() == "enter":
		if len(m.accounts) == 0 {
			return m, nil
		}
		acct := m.accounts[m.selectedIdx]
		m.mode = ModeValidating
		return m, tea.Batch(m.spinner.Tick, m.validateStored(acct))

	case key.Matches(msg, m.keys.Down):
		if len(m.accounts) > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % len(m.accounts)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if len(m.accounts) > 0 {
			m.selectedIdx--
			if m.selectedIdx < 0 {
				m.selectedIdx = len(m.accounts) - 1
			}
		}
		return m, nil
	}

	return m, nil
}

// handleValidateResultKeys processes key events on the validation result screen.
func (m Model) handleValidateResultKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.mode = ModeList
		m.pending = nil
		m.pendingPassword = ""
		m.validError = nil
		return m, nil

	case "r":
		if m.validError == nil {
			return m, nil
		}
		m.mode = ModeValidating
		if m.pending != nil {
			return m, tea.Batch(m.spinner.Tick, m.validate(*m.pending, m.pendingPassword, true))
		}
		return m, tea.Batch(m.spinner.Tick, m.validateStored(m.validated))

	case "s":
		// Save without a successful connection test, e.g. while offline.
		if m.validError != nil && m.pending != nil {
			return m, m.saveAccount(*m.pending, m.pendingPassword)
		}
	}
	return m, nil
}

// updateActiveForm dispatches non-key messages to the currently active form.
func (m Model) updateActiveForm(msg tea.Msg) (Model, tea.Cmd) {
	switch m.mode {
	case ModeForm:
		return m.updateForm(msg)
	case ModeConfirmDelete:
		return m.updateConfirmDelete(msg)
	}
	return m, nil
}

// --- Account form ---

func (m *Model) openForm() tea.Cmd {
	m.mode = ModeForm
	m.statusMsg = ""
	m.form = m.buildAccountForm()
	return m.form.Init()
}

func (m *Model) buildAccountForm() *huh.Form {
	f := m.fields
	passwordDesc := "Account password or app password"
	passwordCheck := validateRequired("Password")
	if m.editing != nil {
		passwordDesc = "Leave empty to keep the stored password"
		passwordCheck = nil
	}

	password := huh.NewInput().
		Title("Password").
		Description(passwordDesc).
		EchoMode(huh.EchoModePassword).
		Value(&f.password)
	if passwordCheck != nil {
		password = password.Validate(passwordCheck)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Description("A label for this account").
				Placeholder("Work").
				Value(&f.name).
				Validate(validateRequired("Name")),
			huh.NewInput().
				Title("Email").
				Description("Address used as sender for test messages").
				Placeholder("me@example.com").
				Value(&f.email).
				Validate(validateEmail),
			huh.NewInput().
				Title("Username").
				Description("Login name, usually the email address").
				Value(&f.username).
				Validate(validateRequired("Username")),
			password,
		).Title("Account"),
		huh.NewGroup(
			huh.NewInput().
				Title("IMAP Host").
				Placeholder("imap.example.com").
				Value(&f.imapHost).
				Validate(validateRequired("IMAP Host")),
			huh.NewInput().
				Title("IMAP Port").
				Description("993 for implicit TLS, 143 for STARTTLS").
				Value(&f.imapPort).
				Validate(validatePort),
			huh.NewInput().
				Title("SMTP Host").
				Description("Optional; leave empty to skip outgoing mail").
				Placeholder("smtp.example.com").
				Value(&f.smtpHost),
			huh.NewInput().
				Title("SMTP Port").
				Description("465 for implicit TLS, 587 for STARTTLS").
				Value(&f.smtpPort).
				Validate(validateOptionalPort),
			huh.NewConfirm().
				Title("Use implicit TLS").
				Description("No uses STARTTLS on the plain ports").
				Affirmative("Yes").
				Negative("No").
				Value(&f.tls),
			huh.NewInput().
				Title("Poll interval (seconds)").
				Value(&f.poll).
				Validate(validatePoll),
		).Title("Servers"),
	).WithWidth(m.formWidth())
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m.submitForm()
	}
	if m.form.State == huh.StateAborted {
		m.mode = ModeList
		return m, nil
	}

	return m, cmd
}

// submitForm starts the connection test for the form's account. The
// account is saved once the test passes.
func (m Model) submitForm() (Model, tea.Cmd) {
	acct := m.accountFromForm()
	m.pending = &acct
	m.pendingPassword = m.fields.password
	m.fields.password = ""
	m.mode = ModeValidating
	return m, tea.Batch(m.spinner.Tick, m.validate(acct, m.pendingPassword, true))
}

func (m Model) accountFromForm() model.Account {
	f := m.fields
	acct := model.NewAccount("")
	if m.editing != nil {
		acct = *m.editing
	}
	acct.Name = strings.TrimSpace(f.name)
	acct.Email = strings.TrimSpace(f.email)
	acct.Username = strings.TrimSpace(f.username)
	acct.IMAPHost = strings.TrimSpace(f.imapHost)
	acct.IMAPPort = strings.TrimSpace(f.imapPort)
	acct.SMTPHost = strings.TrimSpace(f.smtpHost)
	acct.SMTPPort = strings.TrimSpace(f.smtpPort)
	acct.TLS = f.tls
	if n, err := strconv.Atoi(strings.TrimSpace(f.poll)); err == nil && n > 0 {
		acct.PollIntervalSec = n
	}
	return acct
}

// --- Delete confirmation ---

func (m *Model) buildDeleteConfirmForm() *huh.Form {
	name := ""
	if m.selectedIdx < len(m.accounts) {
		name = m.accounts[m.selectedIdx].Label()
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete account %q?", name)).
				Description(
					"This removes the account, its stored password and " +
						"the cached folder list.",
				).
				Affirmative("Yes, delete").
				Negative("Cancel").
				Value(m.deleteConfirm),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateConfirmDelete(msg tea.Msg) (Model, tea.Cmd) {
	if m.confirmDelete == nil {
		return m, nil
	}

	mdl, cmd := m.confirmDelete.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirmDelete = f
	}

	if m.confirmDelete.State == huh.StateCompleted {
		if *m.deleteConfirm && m.selectedIdx < len(m.accounts) {
			return m, m.deleteAccount(m.accounts[m.selectedIdx])
		}
		m.mode = ModeList
		return m, nil
	}
	if m.confirmDelete.State == huh.StateAborted {
		m.mode = ModeList
		return m, nil
	}

	return m, cmd
}

// --- View ---

// View renders the account UI based on the current mode.
func (m Model) View() string {
	switch m.mode {
	case ModeList:
		return m.viewList()
	case ModeForm:
		return m.viewForm(m.form)
	case ModeValidating:
		return m.viewValidating()
	case ModeValidateResult:
		return m.viewValidateResult()
	case ModeConfirmDelete:
		return m.viewForm(m.confirmDelete)
	default:
		return ""
	}
}

func (m Model) viewList() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	b.WriteString(titleStyle.Render("Accounts"))
	b.WriteString("\n\n")

	if len(m.accounts) == 0 {
		emptyStyle := lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true)
		b.WriteString(emptyStyle.Render(
			"No accounts configured.\nPress 'a' to add one.",
		))
	} else {
		for i, acct := range m.accounts {
			b.WriteString(m.renderAccountItem(i, acct))
			b.WriteString("\n")
		}
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		statusStyle := lipgloss.NewStyle().
			Foreground(theme.ColorYellow).
			Italic(true)
		b.WriteString(statusStyle.Render(m.statusMsg))
	}

	b.WriteString("\n\n")
	b.WriteString(theme.HelpStyle.Render(
		"a add | e edit | d delete | enter test | esc back",
	))

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(b.String())
}

func (m Model) renderAccountItem(idx int, acct model.Account) string {
	enabledLabel := "enabled"
	enabledColor := theme.ColorGreen
	if !acct.Enabled {
		enabledLabel = "disabled"
		enabledColor = theme.ColorGray
	}

	statusLabel := lipgloss.NewStyle().
		Foreground(enabledColor).
		Render(enabledLabel)

	line := fmt.Sprintf("%s  <%s>  %s:%s  %s",
		acct.Label(), acct.Email, acct.IMAPHost, acct.IMAPPort, statusLabel,
	)

	if idx == m.selectedIdx {
		return theme.SelectedRowStyle.Render(line)
	}
	return lipgloss.NewStyle().Padding(0, 0).Render(line)
}

func (m Model) viewForm(f *huh.Form) string {
	if f == nil {
		return ""
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(f.View())
}

func (m Model) viewValidating() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	content := fmt.Sprintf(
		"%s Testing connection...\n\nPress esc to cancel.",
		m.spinner.View(),
	)

	return style.Render(content)
}

func (m Model) viewValidateResult() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	var content string
	if m.validError != nil {
		errStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorRed)
		hints := "r retry | enter/esc back"
		if m.pending != nil {
			hints = "r retry | s save anyway | enter/esc back"
		}
		content = errStyle.Render("Connection failed") + "\n\n" +
			m.validError.Error() + "\n\n" +
			theme.HelpStyle.Render(hints)
	} else {
		okStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorGreen)
		content = okStyle.Render("Connection successful") + "\n\n" +
			fmt.Sprintf("Logged in as: %s", m.validated.Username) + "\n\n" +
			theme.HelpStyle.Render("enter/esc back")
	}

	return style.Render(content)
}

// --- Helpers ---

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func (m *Model) resetFormFields(acct model.Account) {
	poll := acct.PollIntervalSec
	if poll == 0 {
		poll = model.DefaultPollIntervalSec
	}
	*m.fields = formFields{
		name:     acct.Name,
		email:    acct.Email,
		imapHost: acct.IMAPHost,
		imapPort: acct.IMAPPort,
		smtpHost: acct.SMTPHost,
		smtpPort: acct.SMTPPort,
		username: acct.Username,
		tls:      acct.TLS,
		poll:     strconv.Itoa(poll),
	}
}

// loadAccounts returns a command that loads all accounts from the store.
func (m Model) loadAccounts() tea.Cmd {
	s := m.deps.Store
	return func() tea.Msg {
		accounts, err := s.GetAccounts(context.Background())
		return accountsLoadedMsg{accounts: accounts, err: err}
	}
}

// validate tests acct with password.
func (m Model) validate(acct model.Account, password string, pending bool) tea.Cmd {
	deps := m.deps
	return func() tea.Msg {
		if password == "" {
			stored, err := deps.Creds.Get(acct.CredentialKey())
			if err != nil {
				return ValidateResultMsg{Account: acct, Err: fmt.Errorf("reading password: %w", err), Pending: pending}
			}
			password = stored
		}
		ctx, cancel := context.WithTimeout(context.Background(), validateTimeout)
		defer cancel()
		err := deps.Validate(ctx, acct, password)
		return ValidateResultMsg{Account: acct, Err: err, Pending: pending}
	}
}

// validateStored tests a saved account with its keyring password.
func (m Model) validateStored(acct model.Account) tea.Cmd {
	return m.validate(acct, "", false)
}

// saveAccount stores the password, then the account in the store and
// the config file.
func (m Model) saveAccount(acct model.Account, password string) tea.Cmd {
	deps := m.deps
	return func() tea.Msg {
		err := SaveAccount(context.Background(), deps, acct, password)
		return accountSavedInternalMsg{account: acct, err: err}
	}
}

// deleteAccount returns a command that removes an account everywhere.
func (m Model) deleteAccount(acct model.Account) tea.Cmd {
	deps := m.deps
	return func() tea.Msg {
		err := DeleteAccount(context.Background(), deps, acct)
		return accountDeletedInternalMsg{id: acct.ID, err: err}
	}
}

// SaveAccount persists acct. An empty password keeps the stored one.
func SaveAccount(ctx context.Context, deps Deps, acct model.Account, password string) error {
	if password != "" {
		if err := deps.Creds.Set(acct.CredentialKey(), password); err != nil {
			return fmt.Errorf("saving credential: %w", err)
		}
	}
	if err := deps.Store.UpsertAccount(ctx, acct); err != nil {
		return err
	}
	if deps.ConfigPath == "" {
		return nil
	}
	return updateConfig(deps.ConfigPath, func(cfg *model.AppConfig) { cfg.PutAccount(acct) })
}

// DeleteAccount removes acct from the keyring, the store and the config
// file. A missing credential is not an error.
func DeleteAccount(ctx context.Context, deps Deps, acct model.Account) error {
	if err := deps.Creds.Delete(acct.CredentialKey()); err != nil && !errors.Is(err, credential.ErrNotFound) {
		deps.Log.WithError(err).WithField("account", acct.ID).Warn("deleting credential")
	}
	if err := deps.Store.DeleteAccount(ctx, acct.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if deps.ConfigPath == "" {
		return nil
	}
	return updateConfig(deps.ConfigPath, func(cfg *model.AppConfig) { cfg.RemoveAccount(acct.ID) })
}

// updateConfig rereads the config file, applies fn and writes it back,
// so edits made outside the app since startup are kept.
func updateConfig(path string, fn func(*model.AppConfig)) error {
	cfg, err := model.LoadConfig(path)
	if err != nil {
		return err
	}
	fn(cfg)
	return model.SaveConfig(path, cfg)
}

// --- Validators ---

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateEmail(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("email is required")
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return fmt.Errorf("invalid email address: %w", err)
	}
	return nil
}

func validatePort(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("port is required")
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("port must be a number")
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

func validateOptionalPort(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return validatePort(s)
}

func validatePoll(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 30 {
		return fmt.Errorf("poll interval must be at least 30 seconds")
	}
	return nil
}
