package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/nhle/mailsetup/internal/app"
	"github.com/nhle/mailsetup/internal/mailbox"
	"github.com/nhle/mailsetup/internal/model"
	appsync "github.com/nhle/mailsetup/internal/sync"
)

// NewTUICmd creates the command launching the interactive UI.
func NewTUICmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Launch the interactive folder browser",
		Long: `Launch the terminal UI: one folder table per account, refreshed in
the background, with the account wizard one key away.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
				return fmt.Errorf("TUI mode requires an interactive terminal")
			}

			poller := appsync.New(e.store, app.NewListerFactory(e.creds, e.log), e.log)
			watcher, err := appsync.NewConfigWatcher(e.configPath, appsync.DefaultDebounce, e.log)
			if err != nil {
				e.log.WithError(err).Warn("config watcher disabled")
				watcher = nil
			}

			m := app.New(app.Options{
				Store:      e.store,
				Creds:      e.creds,
				ConfigPath: e.configPath,
				Poller:     poller,
				Watcher:    watcher,
				Validate: func(ctx context.Context, acct model.Account, password string) error {
					return mailbox.Validate(ctx, acct, password, e.log)
				},
				SendTest:  app.SendTestMessage,
				Collation: collation(),
				Log:       e.log,
			})

			p := tea.NewProgram(m, tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("error running TUI: %w", err)
			}
			return nil
		},
	}
}
