package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/nhle/mailsetup/internal/model"
)

// NewAccountsCmd creates the `mailsetup accounts` command.
func NewAccountsCmd(e *env) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "accounts",
		Short:   "List configured accounts",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, e.cfg.Accounts)
			}
			return printAccounts(out, e.cfg.Accounts)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

func printAccounts(out io.Writer, accounts []model.Account) error {
	if len(accounts) == 0 {
		_, err := fmt.Fprintln(out, "No accounts configured. Run mailsetup and press n to add one.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tIMAP\tSMTP\tPOLL\tENABLED")
	for _, a := range accounts {
		smtp := "-"
		if a.SMTPHost != "" {
			smtp = a.SMTPHost + ":" + a.SMTPPort
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s:%s\t%s\t%s\t%t\n",
			a.ID, a.Label(), a.Email, a.IMAPHost, a.IMAPPort, smtp, a.PollInterval(), a.Enabled)
	}
	return w.Flush()
}

func writeJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
