package model

import "slices"

// Sort columns understood by the folders view.
const (
	SortNone   = ""
	SortName   = "name"
	SortUnread = "unread"
	SortTotal  = "total"
)

// SortColumns lists the sort columns in the order the view cycles them.
var SortColumns = []string{SortNone, SortName, SortUnread, SortTotal}

// ViewSettings are the per-account folders view preferences.
type ViewSettings struct {
	AccountID         string `json:"account_id" db:"account_id"`
	SortColumn        string `json:"sort_column" db:"sort_column"`
	SortDescending    bool   `json:"sort_descending" db:"sort_descending"`
	ChildrenAscending bool   `json:"children_ascending" db:"children_ascending"`
	RootVisible       bool   `json:"root_visible" db:"root_visible"`
}

// NextSortColumn returns the column after current in SortColumns.
func NextSortColumn(current string) string {
	i := slices.Index(SortColumns, current)
	if i < 0 {
		return SortNone
	}
	return SortColumns[(i+1)%len(SortColumns)]
}

// ValidSortColumn reports whether c names a known sort column.
func ValidSortColumn(c string) bool {
	return slices.Contains(SortColumns, c)
}
