package treetable

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// genTree draws a random hierarchy rooted at "R".
func genTree(t *rapid.T) *memSource {
	src := newMemSource("R")
	src.expandedDefault = rapid.Bool().Draw(t, "expandedDefault")

	paths := []string{"R"}
	n := rapid.IntRange(0, 14).Draw(t, "nodes")
	for i := 0; i < n; i++ {
		parent := rapid.SampledFrom(paths).Draw(t, "parent")
		child := fmt.Sprintf("%s/%d", parent, i)
		src.link(parent, child, len(src.children[parent]))
		src.size[child] = rapid.IntRange(0, 3).Draw(t, "size")
		paths = append(paths, child)
	}
	return src
}

func sourcePaths(src *memSource) []string {
	return append([]string{"R"}, slices.Sorted(maps.Keys(src.parent))...)
}

func genOrdering(t *rapid.T, src *memSource) Ordering[string] {
	switch rapid.IntRange(0, 2).Draw(t, "ordering") {
	case 1:
		return nameOrdering(src, SortKey{Column: colName, Descending: true})
	case 2:
		return nameOrdering(src, SortKey{Column: colSize}, SortKey{Column: colName, Descending: true})
	default:
		return nil
	}
}

// requireSorted checks every sibling group against the active ordering,
// or against source order when there is none.
func requireSorted(t require.TestingT, a *Adapter[string]) {
	if a.root == noNode || a.Pending() {
		return
	}
	var check func(k nodeKey)
	check = func(k nodeKey) {
		kids := a.reg.children(k)
		if a.sorting() {
			ord := a.orderingFor(k)
			for i := 1; i < len(kids); i++ {
				x, y := a.reg.get(kids[i-1]).path, a.reg.get(kids[i]).path
				require.LessOrEqual(t, ord.Compare(x, y), 0, "%q before %q", x, y)
			}
		} else {
			pos := map[string]int{}
			i := 0
			for c, ok := a.src.FirstChild(a.reg.get(k).path); ok; c, ok = a.src.NextSibling(c) {
				pos[c] = i
				i++
			}
			for i := 1; i < len(kids); i++ {
				require.Less(t, pos[a.reg.get(kids[i-1]).path], pos[a.reg.get(kids[i]).path])
			}
		}
		for _, c := range kids {
			check(c)
		}
	}
	check(a.root)
}

func TestAdapterInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		src := genTree(t)
		a := New[string](src,
			WithStrictContracts(true),
			WithRootVisible(rapid.Bool().Draw(t, "rootVisible")),
			WithSortChildrenAscending(rapid.Bool().Draw(t, "childrenAscending")),
			WithOrdering(genOrdering(t, src)),
		)
		rec := record(a)
		next := 0

		t.Repeat(map[string]func(*rapid.T){
			"expand": func(t *rapid.T) {
				a.Expand(rapid.SampledFrom(sourcePaths(src)).Draw(t, "path"))
			},
			"collapse": func(t *rapid.T) {
				a.Collapse(rapid.SampledFrom(sourcePaths(src)).Draw(t, "path"))
			},
			"insert": func(t *rapid.T) {
				parent := rapid.SampledFrom(sourcePaths(src)).Draw(t, "parent")
				pos := rapid.IntRange(0, len(src.children[parent])).Draw(t, "pos")
				next++
				src.insertAt(parent, fmt.Sprintf("%s/n%d", parent, next), pos)
			},
			"remove": func(t *rapid.T) {
				paths := sourcePaths(src)[1:]
				if len(paths) == 0 {
					t.Skip("nothing to remove")
				}
				src.remove(rapid.SampledFrom(paths).Draw(t, "path"))
			},
			"data": func(t *rapid.T) {
				p := rapid.SampledFrom(sourcePaths(src)).Draw(t, "path")
				src.setSize(p, rapid.IntRange(0, 3).Draw(t, "size"))
				a.Flush()
			},
			"rootVisible": func(t *rapid.T) {
				a.SetRootVisible(!a.RootVisible())
			},
			"ordering": func(t *rapid.T) {
				a.SetOrdering(genOrdering(t, src))
			},
			"childrenAscending": func(t *rapid.T) {
				a.SetSortChildrenAscending(!a.SortChildrenAscending())
			},
			"": func(t *rapid.T) {
				requireConsistent(t, a)
				requireSorted(t, a)
				rec.requirePaired(t)
				require.Equal(t, rows(a), rec.mirror)
			},
		})
	})
}

func TestAdapterIdempotence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		src := genTree(t)
		a := New[string](src, WithStrictContracts(true))
		for _, p := range rapid.SliceOf(rapid.SampledFrom(sourcePaths(src))).Draw(t, "expanded") {
			a.Expand(p)
		}

		p := rapid.SampledFrom(sourcePaths(src)).Draw(t, "target")
		if !a.IsMaterialized(p) {
			t.Skip("target not materialized")
		}
		k, _ := a.reg.lookup(p)
		expanded := a.reg.get(k).expanded

		before := rows(a)
		rec := record(a)
		a.SetExpanded(p, expanded)
		require.Empty(t, rec.events)
		require.Equal(t, before, rows(a))
		requireConsistent(t, a)
	})
}

func TestInsertRemoveSymmetry(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		src := genTree(t)
		a := New[string](src,
			WithStrictContracts(true),
			WithRootVisible(rapid.Bool().Draw(t, "rootVisible")),
			WithOrdering(genOrdering(t, src)),
		)
		for _, p := range rapid.SliceOf(rapid.SampledFrom(sourcePaths(src))).Draw(t, "expanded") {
			a.Expand(p)
		}

		var parents []string
		for _, p := range sourcePaths(src) {
			if k, ok := a.reg.lookup(p); ok && a.reg.get(k).expanded {
				parents = append(parents, p)
			}
		}
		parent := rapid.SampledFrom(parents).Draw(t, "parent")
		pos := rapid.IntRange(0, len(src.children[parent])).Draw(t, "pos")

		before := rows(a)
		src.insertAt(parent, parent+"/new", pos)
		require.Equal(t, len(before)+1, a.RowCount())
		src.remove(parent + "/new")

		require.Equal(t, before, rows(a))
		requireConsistent(t, a)
	})
}

func TestExpandedStateRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		src := genTree(t)
		visible := rapid.Bool().Draw(t, "rootVisible")
		a := New[string](src, WithRootVisible(visible), WithStrictContracts(true))
		for _, p := range rapid.SliceOf(rapid.SampledFrom(sourcePaths(src))).Draw(t, "toggled") {
			a.Toggle(p)
		}

		var first bytes.Buffer
		require.NoError(t, a.SaveExpandedState(&first))

		b := New[string](src, WithRootVisible(visible), WithStrictContracts(true))
		require.NoError(t, b.LoadExpandedState(bytes.NewReader(first.Bytes())))

		var second bytes.Buffer
		require.NoError(t, b.SaveExpandedState(&second))
		require.Equal(t, first.String(), second.String())
	})
}
