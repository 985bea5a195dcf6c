package treetable

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saveState(t *testing.T, a *Adapter[string]) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, a.SaveExpandedState(&buf))
	return buf.String()
}

func TestSaveExpandedState(t *testing.T) {
	src := tree("R", "R>A", "A>A/x", "A/x>A/x/y", "R>B", "B>B/z")
	a := New[string](src, WithStrictContracts(true))
	a.Expand("A/x")

	doc := saveState(t, a)
	assert.Equal(t, `<?xml version="1.0" encoding="UTF-8"?>
<expanded_state vers="2" default="false">
  <node id="id:A"></node>
  <node id="id:A/x"></node>
</expanded_state>
`, doc)
}

func TestSaveSkipsHiddenRoot(t *testing.T) {
	src := tree("R", "R>A")
	a := New[string](src, WithRootVisible(false))
	assert.NotContains(t, saveState(t, a), "id:R")
}

func TestLoadExpandedState(t *testing.T) {
	src := tree("R", "R>A", "A>A/x", "A/x>A/x/y", "R>B", "B>B/z")
	a := New[string](src, WithStrictContracts(true))
	rec := record(a)

	err := a.LoadExpandedState(strings.NewReader(`<?xml version="1.0"?>
<expanded_state vers="2" default="false">
  <node id="id:A/x"/>
  <bookmark id="id:B"/>
  <node id=""/>
  <node id="id:gone"/>
  <node id="id:B"/>
</expanded_state>`))
	require.NoError(t, err)

	assert.Equal(t, []string{"R", "A", "A/x", "A/x/y", "B", "B/z"}, rows(a))
	assert.Equal(t, rows(a), rec.mirror)
	rec.requirePaired(t)
}

func TestLoadRejectsDocument(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		err  error
	}{
		{
			name: "wrong root element",
			doc:  `<collapsed_state vers="2" default="false"><node id="id:A"/></collapsed_state>`,
			err:  ErrStateFormat,
		},
		{
			name: "not xml",
			doc:  `expanded`,
			err:  ErrStateFormat,
		},
		{
			name: "newer version",
			doc:  `<expanded_state vers="3" default="false"><node id="id:A"/></expanded_state>`,
			err:  ErrStateVersion,
		},
		{
			name: "default mismatch",
			doc:  `<expanded_state vers="2" default="true"><node id="id:A"/></expanded_state>`,
			err:  ErrStateDefaultMismatch,
		},
		{
			name: "missing default",
			doc:  `<expanded_state vers="2"><node id="id:A"/></expanded_state>`,
			err:  ErrStateDefaultMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := tree("R", "R>A", "A>A/x")
			a := New[string](src, WithStrictContracts(true))
			rec := record(a)

			err := a.LoadExpandedState(strings.NewReader(tt.doc))
			require.ErrorIs(t, err, tt.err)
			assert.Empty(t, rec.events, "nothing applied")
			assert.Equal(t, []string{"R", "A"}, rows(a))
		})
	}
}

func TestLoadAcceptsOlderVersion(t *testing.T) {
	src := tree("R", "R>A", "A>A/x")
	src.expandedDefault = true
	a := New[string](src)

	err := a.LoadExpandedState(strings.NewReader(`<expanded_state vers="1" default="1"><node id="id:A"/></expanded_state>`))
	require.NoError(t, err)
	assert.Equal(t, []string{"R", "A"}, rows(a))
}

func TestExpandedStateRequiresSaveIDs(t *testing.T) {
	src := tree("R", "R>A")
	src.noSaveIDs = true
	a := New[string](src)

	assert.ErrorIs(t, a.SaveExpandedState(&bytes.Buffer{}), ErrNoSaveIDs)
	assert.ErrorIs(t, a.LoadExpandedState(strings.NewReader("")), ErrNoSaveIDs)
}

func TestExpandedStateRoundTrip(t *testing.T) {
	src := tree("R", "R>A", "A>A/x", "A/x>A/x/y", "R>B", "B>B/z", "B/z>B/z/w")
	src.expandedDefault = true
	a := New[string](src)
	a.Collapse("A/x")
	a.Collapse("B")
	first := saveState(t, a)

	b := New[string](src)
	require.NoError(t, b.LoadExpandedState(strings.NewReader(first)))
	assert.Equal(t, first, saveState(t, b))
	assert.Equal(t, rows(a), rows(b))
}

func TestExpandedStateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state", "acct.xml")

	src := tree("R", "R>A", "A>A/x")
	a := New[string](src)
	require.NoError(t, a.LoadExpandedStateFile(path), "missing file is not an error")

	a.Expand("A")
	require.NoError(t, a.SaveExpandedStateFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<node id="id:A">`)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file removed")

	b := New[string](src)
	require.NoError(t, b.LoadExpandedStateFile(path))
	assert.Equal(t, []string{"R", "A", "A/x"}, rows(b))
}
