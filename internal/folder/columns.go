package folder

import (
	"golang.org/x/text/language"

	"github.com/nhle/mailsetup/internal/model"
	"github.com/nhle/mailsetup/internal/treetable"
)

// Table columns.
const (
	ColumnName = iota
	ColumnUnread
	ColumnTotal
	ColumnRole
	columnCount
)

// ColumnTitles are the column headers, indexed by column.
var ColumnTitles = [columnCount]string{"Name", "Unread", "Total", "Role"}

func (t *Tree) ColumnCount() int { return columnCount }

// ValueAt returns the cell for path. Counts are uint32; placeholders
// have no counts. The root shows the account label and totals.
func (t *Tree) ValueAt(p string, column int) any {
	if p == "" {
		return t.rootValue(column)
	}
	e, ok := t.entries[p]
	if !ok {
		return nil
	}
	f := e.folder
	switch column {
	case ColumnName:
		return f.Leaf()
	case ColumnUnread:
		if f.Placeholder() {
			return nil
		}
		return f.Unseen
	case ColumnTotal:
		if f.Placeholder() {
			return nil
		}
		return f.Messages
	case ColumnRole:
		return f.Role()
	}
	return nil
}

func (t *Tree) rootValue(column int) any {
	switch column {
	case ColumnName:
		return t.label
	case ColumnUnread, ColumnTotal:
		var sum uint32
		for p, e := range t.entries {
			if p == "" {
				continue
			}
			if column == ColumnUnread {
				sum += e.folder.Unseen
			} else {
				sum += e.folder.Messages
			}
		}
		return sum
	case ColumnRole:
		return ""
	}
	return nil
}

// SortColumn maps a settings sort column to a table column.
func SortColumn(name string) (int, bool) {
	switch name {
	case model.SortName:
		return ColumnName, true
	case model.SortUnread:
		return ColumnUnread, true
	case model.SortTotal:
		return ColumnTotal, true
	}
	return 0, false
}

// NameOrdering orders mailboxes by name using the collation of tag.
func (t *Tree) NameOrdering(tag language.Tag, descending bool) *treetable.ColumnOrdering[string] {
	return treetable.NewColumnOrdering(t.ValueAt, treetable.SortKey{Column: ColumnName, Descending: descending}).
		WithComparer(treetable.CollatingComparer(tag))
}

// OrderingFor builds the ordering described by settings, or nil when
// mailboxes keep their natural order. Count columns fall back to the
// name for ties.
func (t *Tree) OrderingFor(s model.ViewSettings, tag language.Tag) treetable.Ordering[string] {
	col, ok := SortColumn(s.SortColumn)
	if !ok {
		return nil
	}
	keys := []treetable.SortKey{{Column: col, Descending: s.SortDescending}}
	if col != ColumnName {
		keys = append(keys, treetable.SortKey{Column: ColumnName})
	}
	return treetable.NewColumnOrdering(t.ValueAt, keys...).
		WithComparer(treetable.CollatingComparer(tag))
}
