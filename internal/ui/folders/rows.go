package folders

import (
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"

	"github.com/nhle/mailsetup/internal/folder"
	"github.com/nhle/mailsetup/internal/treetable"
)

// Expander glyphs drawn before folder names.
const (
	glyphExpanded  = "▾ "
	glyphCollapsed = "▸ "
	glyphLeaf      = "  "
)

// RenderRow formats row of a as table cells: the indented name with its
// expander, unread, total and role.
func RenderRow(a *treetable.Adapter[string], row int) table.Row {
	p, ok := a.NodeAt(row)
	if !ok {
		return nil
	}

	depth := a.Depth(p)
	if !a.RootVisible() {
		depth--
	}
	glyph := glyphLeaf
	if a.IsExpandable(p) {
		glyph = glyphCollapsed
		if a.IsExpanded(p) {
			glyph = glyphExpanded
		}
	}
	name, _ := a.ValueAt(row, folder.ColumnName).(string)

	return table.Row{
		strings.Repeat("  ", max(depth, 0)) + glyph + name,
		formatCount(a.ValueAt(row, folder.ColumnUnread)),
		formatCount(a.ValueAt(row, folder.ColumnTotal)),
		stringValue(a.ValueAt(row, folder.ColumnRole)),
	}
}

func formatCount(v any) string {
	n, ok := v.(uint32)
	if !ok {
		return ""
	}
	return strconv.FormatUint(uint64(n), 10)
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// rowCache mirrors the adapter's rows as rendered table rows, spliced
// from notifications instead of re-rendered on every change.
type rowCache struct {
	a     *treetable.Adapter[string]
	rows  []table.Row
	dirty bool
}

func newRowCache(a *treetable.Adapter[string]) *rowCache {
	c := &rowCache{a: a}
	c.rebuild()
	return c
}

// TableChanged implements treetable.Observer.
func (c *rowCache) TableChanged(n treetable.Notification) {
	switch n.Kind {
	case treetable.ModelChanged:
		c.rebuild()
	case treetable.RowChanged:
		c.render(n.Row)
	case treetable.RowsInserted:
		fresh := make([]table.Row, n.Count)
		for i := range fresh {
			fresh[i] = RenderRow(c.a, n.Row+i)
		}
		c.rows = slices.Insert(c.rows, n.Row, fresh...)
		// The row above owns the expander that just opened.
		c.render(n.Row - 1)
	case treetable.RowsDeleted:
		c.rows = slices.Delete(c.rows, n.Row, n.Row+n.Count)
		c.render(n.Row - 1)
	default:
		return
	}
	c.dirty = true
}

func (c *rowCache) rebuild() {
	c.rows = make([]table.Row, c.a.RowCount())
	for i := range c.rows {
		c.rows[i] = RenderRow(c.a, i)
	}
	c.dirty = true
}

func (c *rowCache) render(row int) {
	if row < 0 || row >= len(c.rows) {
		return
	}
	c.rows[row] = RenderRow(c.a, row)
}

// refreshRoot re-renders the root row, whose totals follow every
// folder without a change of its own.
func (c *rowCache) refreshRoot() {
	if root, ok := c.a.Root(); ok {
		if row := c.a.RowOf(root); row >= 0 {
			c.render(row)
			c.dirty = true
		}
	}
}
