// Package logging builds the application logger. The TUI owns the
// terminal, so logs go to a file under the state directory.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// FileName is the log file created in the state directory.
const FileName = "mailsetup.log"

// New returns a logger at level writing to stateDir/mailsetup.log, and
// a function that closes the file.
func New(stateDir, level string) (*logrus.Logger, func() error, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating state directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(stateDir, FileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return NewWriter(f, lvl), f.Close, nil
}

// NewWriter returns a text logger writing to w.
func NewWriter(w io.Writer, level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:    true,
		DisableColors:    true,
		QuoteEmptyFields: true,
	})
	return logger
}

// ParseLevel parses a level name, treating "" as warn.
func ParseLevel(level string) (logrus.Level, error) {
	if level == "" {
		return logrus.WarnLevel, nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return 0, fmt.Errorf("parsing log level: %w", err)
	}
	return lvl, nil
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	return NewWriter(io.Discard, logrus.PanicLevel)
}
