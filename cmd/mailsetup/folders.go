package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/nhle/mailsetup/internal/folder"
	"github.com/nhle/mailsetup/internal/mailbox"
	"github.com/nhle/mailsetup/internal/model"
	"github.com/nhle/mailsetup/internal/store"
	"github.com/nhle/mailsetup/internal/treetable"
	"github.com/nhle/mailsetup/internal/ui/folders"
)

// listTimeout bounds connecting and listing.
const listTimeout = 30 * time.Second

// folderRow is one table row in JSON output.
type folderRow struct {
	Path       string  `json:"path"`
	Name       string  `json:"name"`
	Depth      int     `json:"depth"`
	Expandable bool    `json:"expandable"`
	Expanded   bool    `json:"expanded"`
	Unread     *uint32 `json:"unread,omitempty"`
	Total      *uint32 `json:"total,omitempty"`
	Role       string  `json:"role,omitempty"`
}

// foldersOptions are the flags of the folders command.
type foldersOptions struct {
	asJSON     bool
	all        bool
	cached     bool
	sort       string
	descending bool
	root       bool
}

// NewFoldersCmd creates the `mailsetup folders` command.
func NewFoldersCmd(e *env) *cobra.Command {
	var opts foldersOptions

	cmd := &cobra.Command{
		Use:   "folders <account-id>",
		Short: "Print the folder hierarchy of an account",
		Long: `Connect to the account's IMAP server, list its folders and print them
as the folder table shows them: expanded as they were left in the TUI,
or fully expanded with --all.

Examples:
  mailsetup folders work
  mailsetup folders work --all --sort unread --desc
  mailsetup folders work --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !model.ValidSortColumn(opts.sort) {
				return fmt.Errorf("unknown sort column %q (want name, unread or total)", opts.sort)
			}
			acct, ok := e.cfg.Account(args[0])
			if !ok {
				return fmt.Errorf("no account with id %q", args[0])
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), listTimeout)
			defer cancel()
			list, err := e.listFolders(ctx, acct, opts.cached)
			if err != nil {
				return err
			}

			settings := e.viewSettings(ctx, acct.ID)
			if cmd.Flags().Changed("sort") {
				settings.SortColumn = opts.sort
			}
			if cmd.Flags().Changed("desc") {
				settings.SortDescending = opts.descending
			}
			if cmd.Flags().Changed("root") {
				settings.RootVisible = opts.root
			}

			a := buildAdapter(acct, list, settings, e.cfg, opts.all, collation(), e.log)
			defer a.Close()

			out := cmd.OutOrStdout()
			if opts.asJSON {
				return writeJSON(out, jsonRows(a))
			}
			return printFolders(out, a)
		},
	}

	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Output rows in JSON format")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Expand every folder")
	cmd.Flags().BoolVar(&opts.cached, "cached", false, "Use the folders cached by the last refresh instead of connecting")
	cmd.Flags().StringVar(&opts.sort, "sort", "", "Sort column: name, unread or total")
	cmd.Flags().BoolVar(&opts.descending, "desc", false, "Sort descending")
	cmd.Flags().BoolVar(&opts.root, "root", false, "Show the account row")
	return cmd
}

// listFolders lists the account's folders from the server, or from the
// store when cached is set. A fresh listing refreshes the store.
func (e *env) listFolders(ctx context.Context, acct model.Account, cached bool) ([]folder.Folder, error) {
	if cached {
		rows, err := e.store.GetFolders(ctx, acct.ID)
		if err != nil {
			return nil, err
		}
		list := make([]folder.Folder, len(rows))
		for i, r := range rows {
			list[i] = folder.FromModel(r)
		}
		return list, nil
	}

	if err := mailbox.CheckAccount(acct); err != nil {
		return nil, err
	}
	password, err := e.creds.Get(acct.CredentialKey())
	if err != nil {
		return nil, fmt.Errorf("reading password for %s: %w", acct.Label(), err)
	}
	client := mailbox.NewIMAPClient(mailbox.IMAPConfig(acct, password), e.log)
	list, err := client.ListFolders(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rows := make([]model.Folder, len(list))
	for i, f := range list {
		rows[i] = f.Model(acct.ID, now)
	}
	if err := e.store.UpsertAccount(ctx, acct); err != nil {
		e.log.WithError(err).Warn("saving account")
	} else if err := e.store.ReplaceFolders(ctx, acct.ID, rows); err != nil {
		e.log.WithError(err).Warn("caching folders")
	}
	return list, nil
}

// viewSettings returns the settings the TUI saved for the account, or
// the configured defaults.
func (e *env) viewSettings(ctx context.Context, accountID string) model.ViewSettings {
	vs, err := e.store.GetViewSettings(ctx, accountID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.log.WithError(err).Warn("loading view settings")
		}
		return e.cfg.Display.ViewSettings(accountID)
	}
	return *vs
}

// buildAdapter flattens list the way the folders view does, applying
// the saved expand state unless all is set.
func buildAdapter(
	acct model.Account,
	list []folder.Folder,
	settings model.ViewSettings,
	cfg *model.AppConfig,
	all bool,
	tag language.Tag,
	log logrus.FieldLogger,
) *treetable.Adapter[string] {
	tree := folder.NewTree(acct.Label(), list)
	tree.SetExpandedDefault(cfg.Display.ExpandedDefault)

	a := treetable.New[string](tree,
		treetable.WithLogger(log),
		treetable.WithRootVisible(settings.RootVisible),
		treetable.WithSortChildrenAscending(settings.ChildrenAscending),
		treetable.WithOrdering(tree.OrderingFor(settings, tag)),
	)

	if all {
		a.SetExpandedRecursive("", true)
	} else if err := a.LoadExpandedStateFile(folders.StatePath(cfg.StateDir, acct.ID)); err != nil {
		log.WithError(err).Warn("ignoring saved expand state")
	}
	a.Flush()
	return a
}

func printFolders(out io.Writer, a *treetable.Adapter[string]) error {
	if a.RowCount() == 0 {
		_, err := fmt.Fprintln(out, "No folders.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t\n", strings.Join(folder.ColumnTitles[:], "\t"))
	for row := range a.RowCount() {
		cells := folders.RenderRow(a, row)
		fmt.Fprintf(w, "%s\t\n", strings.Join(cells, "\t"))
	}
	return w.Flush()
}

func jsonRows(a *treetable.Adapter[string]) []folderRow {
	rows := make([]folderRow, 0, a.RowCount())
	for row := range a.RowCount() {
		p, ok := a.NodeAt(row)
		if !ok {
			continue
		}
		r := folderRow{
			Path:       p,
			Depth:      a.Depth(p),
			Expandable: a.IsExpandable(p),
			Expanded:   a.IsExpanded(p),
		}
		r.Name, _ = a.ValueAt(row, folder.ColumnName).(string)
		r.Role, _ = a.ValueAt(row, folder.ColumnRole).(string)
		if n, ok := a.ValueAt(row, folder.ColumnUnread).(uint32); ok {
			r.Unread = &n
		}
		if n, ok := a.ValueAt(row, folder.ColumnTotal).(uint32); ok {
			r.Total = &n
		}
		rows = append(rows, r)
	}
	return rows
}
