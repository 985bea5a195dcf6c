package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToStateDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	logger, closeFn, err := New(dir, "info")
	require.NoError(t, err)

	logger.WithField("account", "a1").Info("listed mailboxes")
	logger.Debug("hidden")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "listed mailboxes")
	assert.Contains(t, string(data), "account=a1")
	assert.NotContains(t, string(data), "hidden")
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, lvl)

	lvl, err = ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewWriterFormat(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf, logrus.WarnLevel).WithField("mailbox", "").Warn("empty")
	assert.Contains(t, buf.String(), `mailbox=""`)
	assert.Contains(t, buf.String(), "level=warning")
}
