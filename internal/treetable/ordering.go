package treetable

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Ordering decides the display order of sibling paths.
// Compare returns a negative number when a sorts before b.
type Ordering[P comparable] interface {
	Compare(a, b P) int
}

// OrderingFunc adapts a function to the Ordering interface.
type OrderingFunc[P comparable] func(a, b P) int

// Compare calls f(a, b).
func (f OrderingFunc[P]) Compare(a, b P) int { return f(a, b) }

// Ascender is implemented by orderings that can derive a variant with
// every key forced ascending. The adapter uses it for levels below the
// top when children-ascending mode is on.
type Ascender[P comparable] interface {
	Ascending() Ordering[P]
}

// Keyed is implemented by orderings built from sort keys. An ordering
// with no keys leaves siblings in source order.
type Keyed interface {
	SortKeys() []SortKey
}

// SortKey orders by one column.
type SortKey struct {
	Column     int
	Descending bool
}

// ValueComparer compares two cell values of the same column.
type ValueComparer func(column int, a, b any) int

// ColumnOrdering compares paths by their column values, key by key.
type ColumnOrdering[P comparable] struct {
	values  func(p P, column int) any
	compare ValueComparer
	keys    []SortKey
}

// NewColumnOrdering returns an ordering reading cells through values.
// Cells are compared with CompareValues unless WithComparer is used.
func NewColumnOrdering[P comparable](values func(p P, column int) any, keys ...SortKey) *ColumnOrdering[P] {
	return &ColumnOrdering[P]{
		values:  values,
		compare: CompareValues,
		keys:    slices.Clone(keys),
	}
}

// WithComparer returns a copy of o that compares cells with c.
func (o *ColumnOrdering[P]) WithComparer(c ValueComparer) *ColumnOrdering[P] {
	cp := *o
	cp.keys = slices.Clone(o.keys)
	cp.compare = c
	return &cp
}

// SortKeys returns a copy of the ordering's keys.
func (o *ColumnOrdering[P]) SortKeys() []SortKey {
	return slices.Clone(o.keys)
}

// Compare implements Ordering.
func (o *ColumnOrdering[P]) Compare(a, b P) int {
	return o.compareWith(o.keys, a, b)
}

// Ascending returns a decorator over o using a private copy of the keys
// with every descending key flipped.
func (o *ColumnOrdering[P]) Ascending() Ordering[P] {
	keys := slices.Clone(o.keys)
	for i := range keys {
		keys[i].Descending = false
	}
	return &ascendingOrdering[P]{base: o, keys: keys}
}

func (o *ColumnOrdering[P]) compareWith(keys []SortKey, a, b P) int {
	for _, k := range keys {
		c := o.compare(k.Column, o.values(a, k.Column), o.values(b, k.Column))
		if c == 0 {
			continue
		}
		if k.Descending {
			return -c
		}
		return c
	}
	return 0
}

type ascendingOrdering[P comparable] struct {
	base *ColumnOrdering[P]
	keys []SortKey
}

func (d *ascendingOrdering[P]) Compare(a, b P) int {
	return d.base.compareWith(d.keys, a, b)
}

func (d *ascendingOrdering[P]) SortKeys() []SortKey {
	return slices.Clone(d.keys)
}

// CompareValues orders common cell types. nil sorts first; values of
// different or unknown types fall back to their formatted text.
func CompareValues(_ int, a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case int:
		if bv, ok := b.(int); ok {
			return cmp.Compare(av, bv)
		}
	case int64:
		if bv, ok := b.(int64); ok {
			return cmp.Compare(av, bv)
		}
	case uint32:
		if bv, ok := b.(uint32); ok {
			return cmp.Compare(av, bv)
		}
	case uint64:
		if bv, ok := b.(uint64); ok {
			return cmp.Compare(av, bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return cmp.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// CollatingComparer compares strings with the collation rules of tag,
// ignoring case and ordering embedded numbers numerically. Other values
// go through CompareValues. The returned comparer is not safe for
// concurrent use.
func CollatingComparer(tag language.Tag) ValueComparer {
	c := collate.New(tag, collate.IgnoreCase, collate.Numeric)
	return func(column int, a, b any) int {
		as, aok := a.(string)
		bs, bok := b.(string)
		if aok && bok {
			if r := c.CompareString(as, bs); r != 0 {
				return r
			}
			return strings.Compare(as, bs)
		}
		return CompareValues(column, a, b)
	}
}

// orderingActive reports whether o would reorder anything.
func orderingActive[P comparable](o Ordering[P]) bool {
	if o == nil {
		return false
	}
	if k, ok := o.(Keyed); ok {
		return len(k.SortKeys()) > 0
	}
	return true
}
