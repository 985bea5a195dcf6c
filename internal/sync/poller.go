package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/mailsetup/internal/folder"
	"github.com/nhle/mailsetup/internal/mailbox"
	"github.com/nhle/mailsetup/internal/model"
	"github.com/nhle/mailsetup/internal/store"
)

// SyncState represents the current state of an account refresh.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the refresh state for a single account.
type SyncStatus struct {
	AccountID string
	State     SyncState
	LastSync  time.Time
	Error     error
}

// Lister lists the mailboxes of one account.
type Lister interface {
	ListFolders(ctx context.Context) ([]folder.Folder, error)
}

// ListerFactory returns the lister for an account, resolving its
// credentials.
type ListerFactory func(acct model.Account) (Lister, error)

// FoldersMsg is a tea.Msg carrying the folder listing of one account.
// Cached is set when the folders come from the store rather than the
// server.
type FoldersMsg struct {
	AccountID string
	Folders   []folder.Folder
	Cached    bool
	Err       error
}

// AuthFailed reports whether the listing failed on credentials.
func (m FoldersMsg) AuthFailed() bool {
	return mailbox.IsAuthError(m.Err)
}

// RefreshDoneMsg is a tea.Msg sent when RefreshAll completes.
type RefreshDoneMsg struct {
	Results []FoldersMsg
}

// fetchTimeout is the maximum time allowed for a single listing.
const fetchTimeout = 30 * time.Second

// refreshLimit bounds concurrent listings in RefreshAll.
const refreshLimit = 4

type accountEntry struct {
	acct    model.Account
	trigger chan struct{}
}

// Poller refreshes the folder listings of the configured accounts in
// the background and caches them in the store.
type Poller struct {
	store     store.Store
	newLister ListerFactory
	log       logrus.FieldLogger

	mu       gosync.Mutex
	accounts []*accountEntry
	statuses map[string]*SyncStatus
	resultCh chan FoldersMsg
	stopCh   chan struct{}
	wg       gosync.WaitGroup
	running  bool
}

// New creates a new Poller with the given store.
func New(s store.Store, newLister ListerFactory, log logrus.FieldLogger) *Poller {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Poller{
		store:     s,
		newLister: newLister,
		log:       log.WithField("component", "poller"),
		statuses:  make(map[string]*SyncStatus),
		resultCh:  make(chan FoldersMsg, 16),
	}
}

// SetAccounts replaces the polled accounts. Disabled accounts are
// skipped. A running poller is restarted.
func (p *Poller) SetAccounts(accounts []model.Account) {
	running := p.isRunning()
	if running {
		p.Stop()
	}

	p.mu.Lock()
	p.accounts = nil
	p.statuses = make(map[string]*SyncStatus)
	for _, a := range accounts {
		if !a.Enabled {
			continue
		}
		p.accounts = append(p.accounts, &accountEntry{acct: a, trigger: make(chan struct{}, 1)})
		p.statuses[a.ID] = &SyncStatus{AccountID: a.ID, State: SyncIdle}
	}
	p.mu.Unlock()

	if running {
		p.launch()
	}
}

// Start returns a tea.Cmd that starts one polling goroutine per account
// and waits for the first result.
func (p *Poller) Start() tea.Cmd {
	if !p.launch() {
		return nil
	}
	return p.waitForResult()
}

func (p *Poller) launch() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return false
	}
	p.running = true
	p.stopCh = make(chan struct{})
	for _, e := range p.accounts {
		p.wg.Add(1)
		go p.pollAccount(e, p.stopCh)
	}
	return true
}

// Stop halts all polling goroutines and waits for them to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.stopCh)
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Poller) isRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// RefreshAccount triggers an immediate listing of one account.
func (p *Poller) RefreshAccount(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.accounts {
		if e.acct.ID == id {
			select {
			case e.trigger <- struct{}{}:
			default:
				// A refresh is already queued.
			}
		}
	}
}

// RefreshAll returns a tea.Cmd listing every account concurrently.
func (p *Poller) RefreshAll() tea.Cmd {
	p.mu.Lock()
	accounts := make([]model.Account, len(p.accounts))
	for i, e := range p.accounts {
		accounts[i] = e.acct
	}
	p.mu.Unlock()

	return func() tea.Msg {
		results, _ := p.Refresh(context.Background(), accounts)
		return RefreshDoneMsg{Results: results}
	}
}

// Refresh lists accounts concurrently. Per-account failures are
// reported in the results; the returned error is only set when ctx
// ends first.
func (p *Poller) Refresh(ctx context.Context, accounts []model.Account) ([]FoldersMsg, error) {
	results := make([]FoldersMsg, len(accounts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshLimit)
	for i, acct := range accounts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = FoldersMsg{AccountID: acct.ID, Err: err}
				return nil
			}
			fctx, cancel := context.WithTimeout(gctx, fetchTimeout)
			defer cancel()
			results[i] = p.fetch(fctx, acct)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// LoadCached returns a tea.Cmd delivering the stored listing of an
// account.
func (p *Poller) LoadCached(accountID string) tea.Cmd {
	return func() tea.Msg {
		rows, err := p.store.GetFolders(context.Background(), accountID)
		if err != nil {
			return FoldersMsg{AccountID: accountID, Cached: true, Err: err}
		}
		folders := make([]folder.Folder, len(rows))
		for i, r := range rows {
			folders[i] = folder.FromModel(r)
		}
		return FoldersMsg{AccountID: accountID, Folders: folders, Cached: true}
	}
}

// Statuses returns the current refresh state of every account.
func (p *Poller) Statuses() []SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(p.accounts))
	for _, e := range p.accounts {
		statuses = append(statuses, *p.statuses[e.acct.ID])
	}
	return statuses
}

// pollAccount runs the polling loop for a single account.
func (p *Poller) pollAccount(e *accountEntry, stop <-chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(e.acct.PollInterval())
	defer ticker.Stop()

	// Stop abandons a listing in flight.
	base, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	go func() {
		select {
		case <-stop:
			cancelBase()
		case <-base.Done():
		}
	}()

	run := func() {
		ctx, cancel := context.WithTimeout(base, fetchTimeout)
		defer cancel()
		p.sendResult(p.fetch(ctx, e.acct), stop)
	}

	// Do an initial fetch immediately
	run()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			run()
		case <-e.trigger:
			run()
		}
	}
}

// fetch lists one account and caches the result.
func (p *Poller) fetch(ctx context.Context, acct model.Account) FoldersMsg {
	log := p.log.WithField("account", acct.ID)
	p.setStatus(acct.ID, SyncRunning, nil)

	folders, err := p.list(ctx, acct)
	if err != nil {
		p.setStatus(acct.ID, SyncError, err)
		if mailbox.IsAuthError(err) {
			log.WithError(err).Warn("authentication failed")
		} else {
			log.WithError(err).Error("listing folders failed")
		}
		return FoldersMsg{AccountID: acct.ID, Err: err}
	}

	now := time.Now()
	rows := make([]model.Folder, len(folders))
	for i, f := range folders {
		rows[i] = f.Model(acct.ID, now)
	}
	if err := p.store.ReplaceFolders(ctx, acct.ID, rows); err != nil {
		// The listing is still shown; only the cache is stale.
		log.WithError(err).Error("caching folders failed")
	}

	p.setStatus(acct.ID, SyncIdle, nil)
	log.WithField("count", len(folders)).Debug("refreshed folders")
	return FoldersMsg{AccountID: acct.ID, Folders: folders}
}

func (p *Poller) list(ctx context.Context, acct model.Account) ([]folder.Folder, error) {
	l, err := p.newLister(acct)
	if err != nil {
		return nil, fmt.Errorf("preparing %s: %w", acct.Label(), err)
	}
	folders, err := l.ListFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", acct.Label(), err)
	}
	return folders, nil
}

// setStatus updates the refresh status of an account.
func (p *Poller) setStatus(id string, state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[id]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state == SyncIdle && err == nil {
		status.LastSync = time.Now()
	}
}

// sendResult queues msg for the UI unless the poller stopped.
func (p *Poller) sendResult(msg FoldersMsg, stop <-chan struct{}) {
	select {
	case p.resultCh <- msg:
	case <-stop:
	}
}

// waitForResult returns a tea.Cmd that waits for the next result from
// the result channel.
func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		return <-p.resultCh
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next listing.
// It should be called after processing a FoldersMsg from the poller to
// continue listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
