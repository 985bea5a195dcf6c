// Command mailsetup manages mail accounts and browses their IMAP folder
// hierarchy in the terminal.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/nhle/mailsetup/internal/credential"
	"github.com/nhle/mailsetup/internal/logging"
	"github.com/nhle/mailsetup/internal/model"
	"github.com/nhle/mailsetup/internal/store"
)

// env is what every subcommand runs on, set up once before it runs.
type env struct {
	configPath string
	logLevel   string

	cfg      *model.AppConfig
	log      *logrus.Logger
	closeLog func() error
	store    *store.SQLiteStore
	creds    credential.Store
}

func main() {
	e := &env{}

	tuiCmd := NewTUICmd(e)
	rootCmd := &cobra.Command{
		Use:          "mailsetup",
		Short:        "Set up mail accounts and browse their folders",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         tuiCmd.RunE,
	}
	rootCmd.PersistentFlags().StringVarP(&e.configPath, "config", "c", model.DefaultConfigPath(), "Path to the config file")
	rootCmd.PersistentFlags().StringVar(&e.logLevel, "log-level", "", "Override the configured log level")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return e.open()
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return e.close()
	}

	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(NewAccountsCmd(e))
	rootCmd.AddCommand(NewFoldersCmd(e))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// open loads the config and opens the log file, the database and the
// keyring.
func (e *env) open() error {
	cfg, err := model.LoadConfig(e.configPath)
	if err != nil {
		return err
	}
	e.cfg = cfg

	level := cfg.LogLevel
	if e.logLevel != "" {
		level = e.logLevel
	}
	log, closeLog, err := logging.New(cfg.StateDir, level)
	if err != nil {
		return err
	}
	e.log, e.closeLog = log, closeLog

	s, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	e.store = s
	e.creds = credential.NewKeyring()
	return nil
}

func (e *env) close() error {
	var err error
	if e.store != nil {
		err = e.store.Close()
	}
	if e.closeLog != nil {
		if cerr := e.closeLog(); err == nil {
			err = cerr
		}
	}
	return err
}

// collation picks the name ordering locale from the environment.
func collation() language.Tag {
	for _, v := range []string{"LC_ALL", "LC_COLLATE", "LANG"} {
		raw := os.Getenv(v)
		if raw == "" || raw == "C" || raw == "POSIX" {
			continue
		}
		raw, _, _ = strings.Cut(raw, ".")
		if tag, err := language.Parse(raw); err == nil {
			return tag
		}
	}
	return language.English
}
