package sync

import (
	"fmt"
	"path/filepath"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce is how long the config file must stay quiet before a
// change is reported.
const DefaultDebounce = 300 * time.Millisecond

// ConfigChangedMsg is a tea.Msg sent when the config file was written.
type ConfigChangedMsg struct {
	Path string
}

// Debouncer collapses bursts of calls into one call after a quiet
// period.
type Debouncer struct {
	mu    gosync.Mutex
	delay time.Duration
	timer *time.Timer
}

// NewDebouncer returns a debouncer waiting delay after the last trigger.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules fn, replacing any call still waiting.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Cancel drops a waiting call.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// ConfigWatcher reports writes to the config file. It watches the
// directory so editors that replace the file are seen too.
type ConfigWatcher struct {
	path      string
	log       logrus.FieldLogger
	debouncer *Debouncer
	changed   chan ConfigChangedMsg

	mu   gosync.Mutex
	fsw  *fsnotify.Watcher
	done chan struct{}
}

// NewConfigWatcher creates a watcher for path.
func NewConfigWatcher(path string, debounce time.Duration, log logrus.FieldLogger) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ConfigWatcher{
		path:      abs,
		log:       log.WithFields(logrus.Fields{"component": "config-watcher", "path": abs}),
		debouncer: NewDebouncer(debounce),
		changed:   make(chan ConfigChangedMsg, 1),
	}, nil
}

// Start begins watching and returns a tea.Cmd waiting for the first
// change.
func (w *ConfigWatcher) Start() (tea.Cmd, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw != nil {
		return w.Wait(), nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}
	w.fsw = fsw
	w.done = make(chan struct{})
	go w.loop(fsw, w.done)
	return w.Wait(), nil
}

// Stop ends watching.
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw == nil {
		return
	}
	close(w.done)
	w.fsw.Close()
	w.fsw = nil
	w.debouncer.Cancel()
}

// Wait returns a tea.Cmd that waits for the next change. It should be
// called again after each ConfigChangedMsg.
func (w *ConfigWatcher) Wait() tea.Cmd {
	return func() tea.Msg {
		return <-w.changed
	}
}

func (w *ConfigWatcher) loop(fsw *fsnotify.Watcher, done <-chan struct{}) {
	target := filepath.Base(w.path)
	for {
		select {
		case <-done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.debouncer.Trigger(w.notify)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("config watch error")
		}
	}
}

func (w *ConfigWatcher) notify() {
	select {
	case w.changed <- ConfigChangedMsg{Path: w.path}:
	default:
		// A change is already pending delivery.
	}
}
