package treetable

import (
	"maps"
	"slices"
	"strings"

	"github.com/stretchr/testify/require"
)

const (
	colName = iota
	colSize
)

// memSource is an in-memory hierarchy keyed by slash-separated paths.
type memSource struct {
	root     string
	hasRoot  bool
	parent   map[string]string
	children map[string][]string
	size     map[string]int

	expandedDefault bool
	noSaveIDs       bool

	subs    map[int]func(Event[string])
	nextSub int
}

func newMemSource(root string) *memSource {
	return &memSource{
		root:     root,
		hasRoot:  root != "",
		parent:   map[string]string{},
		children: map[string][]string{},
		size:     map[string]int{},
		subs:     map[int]func(Event[string]){},
	}
}

// tree builds a source from "parent>child" pairs without emitting events.
func tree(root string, edges ...string) *memSource {
	s := newMemSource(root)
	for _, e := range edges {
		p, c, _ := strings.Cut(e, ">")
		s.link(p, c, len(s.children[p]))
	}
	return s
}

func (s *memSource) link(parent, child string, pos int) {
	s.parent[child] = parent
	s.children[parent] = slices.Insert(s.children[parent], pos, child)
}

func (s *memSource) emit(ev Event[string]) {
	for _, id := range slices.Sorted(maps.Keys(s.subs)) {
		s.subs[id](ev)
	}
}

func (s *memSource) add(parent, child string) {
	s.insertAt(parent, child, len(s.children[parent]))
}

func (s *memSource) insertAt(parent, child string, pos int) {
	s.emit(Event[string]{Kind: EventPreChange})
	s.link(parent, child, pos)
	s.emit(Event[string]{Kind: EventInserted, Parent: parent, Node: child})
}

func (s *memSource) remove(path string) {
	parent := s.parent[path]
	pos := slices.Index(s.children[parent], path)
	s.emit(Event[string]{Kind: EventPreChange})
	s.children[parent] = slices.Delete(s.children[parent], pos, pos+1)
	s.drop(path)
	s.emit(Event[string]{Kind: EventRemoved, Parent: parent, Node: path, OldPosition: pos})
}

func (s *memSource) drop(path string) {
	for _, c := range s.children[path] {
		s.drop(c)
	}
	delete(s.children, path)
	delete(s.parent, path)
	delete(s.size, path)
}

func (s *memSource) setSize(path string, v int) {
	s.size[path] = v
	s.emit(Event[string]{Kind: EventDataChanged, Node: path})
}

func (s *memSource) exists(path string) bool {
	if path == s.root {
		return s.hasRoot
	}
	_, ok := s.parent[path]
	return ok
}

func (s *memSource) Root() (string, bool) { return s.root, s.hasRoot }

func (s *memSource) Parent(p string) (string, bool) {
	parent, ok := s.parent[p]
	return parent, ok
}

func (s *memSource) FirstChild(p string) (string, bool) {
	if c := s.children[p]; len(c) > 0 {
		return c[0], true
	}
	return "", false
}

func (s *memSource) NextSibling(p string) (string, bool) {
	parent, ok := s.parent[p]
	if !ok {
		return "", false
	}
	sibs := s.children[parent]
	i := slices.Index(sibs, p)
	if i < 0 || i+1 >= len(sibs) {
		return "", false
	}
	return sibs[i+1], true
}

func (s *memSource) IsRoot(p string) bool      { return s.hasRoot && p == s.root }
func (s *memSource) IsExpandable(p string) bool { return len(s.children[p]) > 0 }
func (s *memSource) ExpandedDefault() bool      { return s.expandedDefault }
func (s *memSource) ColumnCount() int           { return 2 }

func (s *memSource) ValueAt(p string, column int) any {
	switch column {
	case colName:
		if i := strings.LastIndex(p, "/"); i >= 0 {
			return p[i+1:]
		}
		return p
	case colSize:
		return s.size[p]
	}
	return nil
}

func (s *memSource) HasSaveID() bool       { return !s.noSaveIDs }
func (s *memSource) SaveID(p string) string { return "id:" + p }

func (s *memSource) NodeByID(id string) (string, bool) {
	p, ok := strings.CutPrefix(id, "id:")
	if !ok || !s.exists(p) {
		return "", false
	}
	return p, true
}

func (s *memSource) Subscribe(fn func(Event[string])) func() {
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() { delete(s.subs, id) }
}

// recorder collects notifications and mirrors the table rows by
// applying them, the way a caching view would.
type recorder struct {
	a      *Adapter[string]
	events []Notification
	mirror []string
}

func record(a *Adapter[string]) *recorder {
	r := &recorder{a: a, mirror: rows(a)}
	a.Subscribe(ObserverFunc(r.TableChanged))
	return r
}

func (r *recorder) TableChanged(n Notification) {
	r.events = append(r.events, n)
	switch n.Kind {
	case ModelChanged:
		r.mirror = rows(r.a)
	case RowsInserted:
		added := make([]string, n.Count)
		for i := range added {
			added[i], _ = r.a.NodeAt(n.Row + i)
		}
		r.mirror = slices.Insert(r.mirror, n.Row, added...)
	case RowsDeleted:
		r.mirror = slices.Delete(r.mirror, n.Row, n.Row+n.Count)
	case RowChanged:
		r.mirror[n.Row], _ = r.a.NodeAt(n.Row)
	}
}

// terminals returns the recorded notifications without PreChange.
func (r *recorder) terminals() []Notification {
	var out []Notification
	for _, n := range r.events {
		if n.Kind != PreChange {
			out = append(out, n)
		}
	}
	return out
}

func (r *recorder) reset() { r.events = nil }

// requirePaired checks that every PreChange is closed by exactly one
// terminal notification before the next PreChange.
func (r *recorder) requirePaired(t require.TestingT) {
	open := false
	for i, n := range r.events {
		if n.Kind == PreChange {
			require.False(t, open, "nested pre-change at %d in %v", i, r.events)
			open = true
			continue
		}
		require.True(t, open, "%s at %d without pre-change in %v", n, i, r.events)
		open = false
	}
	require.False(t, open, "unterminated change in %v", r.events)
}

func rows(a *Adapter[string]) []string {
	out := make([]string, a.RowCount())
	for i := range out {
		out[i], _ = a.NodeAt(i)
	}
	return out
}

// requireConsistent checks the flat map and visible counts against the
// materialized tree.
func requireConsistent(t require.TestingT, a *Adapter[string]) {
	if a.root == noNode {
		require.Zero(t, a.RowCount())
		require.Zero(t, a.reg.len())
		return
	}

	var want []nodeKey
	var walk func(k nodeKey) int
	walk = func(k nodeKey) int {
		if k != a.root || a.rootVisible {
			want = append(want, k)
		}
		n := a.reg.get(k)
		if !n.expanded {
			require.Equal(t, noNode, n.firstChild, "collapsed %q keeps children", n.path)
		}
		sum := 0
		for c := n.firstChild; c != noNode; c = a.reg.get(c).next {
			require.Equal(t, k, a.reg.get(c).parent)
			sum += 1 + walk(c)
		}
		require.Equal(t, sum, a.reg.get(k).visibleCount, "visible count of %q", a.reg.get(k).path)
		return sum
	}
	walk(a.root)

	require.True(t, slices.Equal(want, a.rows.rows), "rows %v, want %v", a.rows.rows, want)
	for i, k := range a.rows.rows {
		require.Equal(t, i, indexOf(&a.rows, a.reg, k))
	}

	live := len(want)
	if !a.rootVisible {
		live++
	}
	require.Equal(t, live, a.reg.len())
}
