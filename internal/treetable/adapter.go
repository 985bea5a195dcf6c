// Package treetable presents a lazily navigable hierarchy as a flat,
// row-indexed table that follows expand/collapse state, sibling
// ordering, and live changes of the source.
//
// An Adapter is not safe for concurrent use. Every call, including the
// source's event delivery, must happen on one goroutine.
package treetable

import (
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"
)

// Reserved ValueAt columns.
const (
	// ColumnPath returns the source path of the row.
	ColumnPath = -1
	// ColumnSource returns the Source the adapter reads from.
	ColumnSource = -2
	// ColumnAdapter returns the adapter itself.
	ColumnAdapter = -3
)

// ForcedState overrides the source's default expansion for nodes
// materialized while it is set.
type ForcedState int

const (
	ForceNone ForcedState = iota
	ForceExpanded
	ForceCollapsed
)

type pendingWork uint8

const (
	pendingResort pendingWork = 1 << iota
)

// Adapter flattens a Source into table rows.
type Adapter[P comparable] struct {
	src    Source[P]
	log    logrus.FieldLogger
	strict bool

	reg         *registry[P]
	rows        flatMap
	root        nodeKey
	rootVisible bool
	force       ForcedState

	ordering          Ordering[P]
	childrenAscending bool
	childOrdering     Ordering[P]
	childOrderingOK   bool

	observers   observerSet
	changing    bool
	pending     pendingWork
	unsubscribe func()
	closed      bool
}

// New returns an adapter over src, subscribed to its events and
// populated from its current root.
func New[P comparable](src Source[P], opts ...Option) *Adapter[P] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	a := &Adapter[P]{
		src:               src,
		log:               o.log,
		strict:            o.strict,
		reg:               newRegistry[P](),
		root:              noNode,
		rootVisible:       o.rootVisible,
		childrenAscending: o.childrenAscending,
	}
	if o.ordering != nil {
		ord, ok := o.ordering.(Ordering[P])
		if !ok {
			a.violation("ordering %T does not match the source path type", o.ordering)
		}
		a.ordering = ord
	}

	a.unsubscribe = src.Subscribe(a.handle)
	if root, ok := src.Root(); ok {
		a.buildRoot(root)
	}
	return a
}

// Subscribe registers o for table notifications.
func (a *Adapter[P]) Subscribe(o Observer) (cancel func()) {
	id := a.observers.add(o)
	return func() { a.observers.remove(id) }
}

// Close cancels pending work and detaches from the source. The
// adapter keeps answering queries about its last state.
func (a *Adapter[P]) Close() {
	if a.closed {
		return
	}
	a.closed = true
	a.pending = 0
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
	a.observers = observerSet{}
}

// Source returns the underlying hierarchy.
func (a *Adapter[P]) Source() Source[P] { return a.src }

// RowCount returns the number of visible rows.
func (a *Adapter[P]) RowCount() int { return a.rows.len() }

// ColumnCount returns the source's column count.
func (a *Adapter[P]) ColumnCount() int { return a.src.ColumnCount() }

// ValueAt returns the cell at row and column. Negative columns are
// the reserved ColumnPath, ColumnSource and ColumnAdapter.
func (a *Adapter[P]) ValueAt(row, column int) any {
	switch column {
	case ColumnSource:
		return a.src
	case ColumnAdapter:
		return a
	}
	k := a.rows.nodeAt(row)
	if k == noNode {
		return nil
	}
	p := a.reg.get(k).path
	if column == ColumnPath {
		return p
	}
	return a.src.ValueAt(p, column)
}

// HasSaveID reports whether rows carry stable save identifiers.
func (a *Adapter[P]) HasSaveID() bool { return a.src.HasSaveID() }

// SaveIDAt returns the save identifier of row, or "" if there is none.
func (a *Adapter[P]) SaveIDAt(row int) string {
	if !a.src.HasSaveID() {
		return ""
	}
	k := a.rows.nodeAt(row)
	if k == noNode {
		return ""
	}
	return a.src.SaveID(a.reg.get(k).path)
}

// NodeAt returns the path displayed at row. RowLast selects the last row.
func (a *Adapter[P]) NodeAt(row int) (P, bool) {
	k := a.rows.nodeAt(row)
	if k == noNode {
		var zero P
		return zero, false
	}
	return a.reg.get(k).path, true
}

// RowOf returns the row displaying p, or -1.
func (a *Adapter[P]) RowOf(p P) int {
	k, ok := a.reg.lookup(p)
	if !ok {
		return -1
	}
	return a.rowOf(k)
}

// Root returns the materialized root path.
func (a *Adapter[P]) Root() (P, bool) {
	if a.root == noNode {
		var zero P
		return zero, false
	}
	return a.reg.get(a.root).path, true
}

// IsMaterialized reports whether the adapter tracks p.
func (a *Adapter[P]) IsMaterialized(p P) bool {
	_, ok := a.reg.lookup(p)
	return ok
}

// IsExpanded reports whether p is materialized, expandable and expanded.
func (a *Adapter[P]) IsExpanded(p P) bool {
	k, ok := a.reg.lookup(p)
	if !ok {
		return false
	}
	n := a.reg.get(k)
	return n.expandable && n.expanded
}

// IsExpandable reports the adapter's cached expandability of p.
func (a *Adapter[P]) IsExpandable(p P) bool {
	k, ok := a.reg.lookup(p)
	if !ok {
		return a.src.IsExpandable(p)
	}
	return a.reg.get(k).expandable
}

// NextSibling returns the sibling displayed after p.
func (a *Adapter[P]) NextSibling(p P) (P, bool) {
	var zero P
	k, ok := a.reg.lookup(p)
	if !ok {
		return zero, false
	}
	next := a.reg.get(k).next
	if next == noNode {
		return zero, false
	}
	return a.reg.get(next).path, true
}

// Depth returns the number of materialized ancestors of p, or -1.
func (a *Adapter[P]) Depth(p P) int {
	k, ok := a.reg.lookup(p)
	if !ok {
		return -1
	}
	d := 0
	for n := a.reg.get(k); n.parent != noNode; n = a.reg.get(n.parent) {
		d++
	}
	return d
}

// RootVisible reports whether the root occupies a row.
func (a *Adapter[P]) RootVisible() bool { return a.rootVisible }

// SetRootVisible shows or hides the root row. A hidden root is always
// expanded.
func (a *Adapter[P]) SetRootVisible(visible bool) {
	if a.rootVisible == visible {
		return
	}
	c := a.begin()
	a.rootVisible = visible
	if a.root == noNode {
		c.modelChanged()
		return
	}

	rn := a.reg.get(a.root)
	if !visible && !rn.expanded {
		rn.expanded = true
		count := a.materializeChildren(a.root)
		a.addVisible(a.root, count)
		if a.sorting() {
			a.resortNode(a.root, true)
		}
	}

	size := a.reg.get(a.root).visibleCount
	if visible {
		size++
	}
	a.rows.resize(size)
	a.fill(0, a.root)
	c.modelChanged()
}

// SetForcedExpandState overrides the source default for nodes
// materialized from now on. ForceNone restores the default.
func (a *Adapter[P]) SetForcedExpandState(f ForcedState) { a.force = f }

// Rebuild discards the materialized tree and rebuilds it from the source.
func (a *Adapter[P]) Rebuild() { a.rebuild() }

// Expand expands p, materializing its ancestors when needed.
func (a *Adapter[P]) Expand(p P) { a.SetExpanded(p, true) }

// Collapse collapses p and discards its materialized descendants.
func (a *Adapter[P]) Collapse(p P) { a.SetExpanded(p, false) }

// Toggle flips the expansion of p.
func (a *Adapter[P]) Toggle(p P) { a.SetExpanded(p, !a.IsExpanded(p)) }

// SetExpanded expands or collapses p. Calls that would not change the
// state emit nothing.
func (a *Adapter[P]) SetExpanded(p P, expanded bool) {
	k, ok := a.reg.lookup(p)
	if !ok {
		if !expanded {
			return
		}
		parent, ok := a.src.Parent(p)
		if !ok {
			a.violation("cannot expand %v: not materialized and has no parent", p)
			return
		}
		a.SetExpanded(parent, true)
		if k, ok = a.reg.lookup(p); !ok {
			a.log.WithField("path", p).Debug("node not materialized after expanding its parent")
			return
		}
	}

	n := a.reg.get(k)
	if !expanded && k == a.root && !a.rootVisible {
		a.log.Debug("refusing to collapse the hidden root")
		return
	}
	if n.expanded == expanded {
		return
	}

	if expanded {
		a.expand(k)
	} else {
		a.collapse(k)
	}
}

func (a *Adapter[P]) expand(k nodeKey) settled {
	c := a.begin()
	row, count := a.expandNode(k, true)
	return c.rowsInserted(row+1, count)
}

func (a *Adapter[P]) collapse(k nodeKey) settled {
	c := a.begin()
	row, count := a.collapseNode(k, true)
	return c.rowsDeleted(row+1, count)
}

// SetExpandedRecursive applies expanded to p and every source
// descendant of p.
func (a *Adapter[P]) SetExpandedRecursive(p P, expanded bool) {
	a.SetExpanded(p, expanded)
	if !expanded {
		// Collapsing discards the subtree; descendants have nothing left to collapse.
		return
	}
	for c, ok := a.src.FirstChild(p); ok; c, ok = a.src.NextSibling(c) {
		a.SetExpandedRecursive(c, expanded)
	}
}

// ShowNode expands every ancestor of p so that p gets a row.
func (a *Adapter[P]) ShowNode(p P) {
	var ancestors []P
	for parent, ok := a.src.Parent(p); ok; parent, ok = a.src.Parent(parent) {
		ancestors = append(ancestors, parent)
	}
	for i := len(ancestors) - 1; i >= 0; i-- {
		a.SetExpanded(ancestors[i], true)
	}
}

// Ordering returns the configured sibling ordering.
func (a *Adapter[P]) Ordering() Ordering[P] { return a.ordering }

// SetOrdering replaces the sibling ordering and resorts the whole tree.
// A nil ordering restores source order.
func (a *Adapter[P]) SetOrdering(o Ordering[P]) {
	a.ordering = o
	a.childOrdering, a.childOrderingOK = nil, false
	a.pending &^= pendingResort
	a.resortAll()
}

// SortChildrenAscending reports whether levels below the top are
// always sorted ascending.
func (a *Adapter[P]) SortChildrenAscending() bool { return a.childrenAscending }

// SetSortChildrenAscending toggles children-ascending mode and resorts.
func (a *Adapter[P]) SetSortChildrenAscending(on bool) {
	if a.childrenAscending == on {
		return
	}
	a.childrenAscending = on
	a.childOrdering, a.childOrderingOK = nil, false
	a.pending &^= pendingResort
	a.resortAll()
}

// Pending reports whether deferred work is waiting for Flush.
func (a *Adapter[P]) Pending() bool { return a.pending != 0 }

// Flush runs deferred work: the coalesced resort scheduled by data
// changes. Callers flush once control is back outside observer
// callbacks, typically after handling each input event.
func (a *Adapter[P]) Flush() {
	if a.closed || a.pending == 0 {
		return
	}
	if a.changing {
		a.violation("flush called during a change")
		return
	}
	work := a.pending
	a.pending = 0
	if work&pendingResort != 0 {
		a.resortAll()
	}
}

func (a *Adapter[P]) schedule(w pendingWork) {
	if a.closed {
		return
	}
	a.pending |= w
}

// handle is the source subscription.
func (a *Adapter[P]) handle(ev Event[P]) {
	if a.closed {
		return
	}
	switch ev.Kind {
	case EventPreChange:
		// Every handled event announces its own PreChange.
	case EventRebuilt:
		a.rebuild()
	case EventDataChanged:
		a.refresh(ev.Node)
	case EventInserted:
		a.insertNode(ev.Parent, ev.Node)
	case EventRemoved:
		a.removeNode(ev.Parent, ev.Node)
	case EventCollapseRequested:
		a.SetExpanded(ev.Node, false)
	default:
		a.log.WithField("kind", ev.Kind).Warn("ignoring unknown source event")
	}
}

func (a *Adapter[P]) rebuild() settled {
	if root, ok := a.src.Root(); ok {
		return a.buildRoot(root)
	}
	c := a.begin()
	a.teardown()
	return c.modelChanged()
}

// buildRoot replaces the materialized tree with one rooted at root.
func (a *Adapter[P]) buildRoot(root P) settled {
	c := a.begin()
	a.teardown()

	k, _ := a.reg.create(root, noNode)
	rn := a.reg.get(k)
	rn.expanded = true
	rn.expandable = a.src.IsExpandable(root)
	rn.defaultExpanded = a.src.ExpandedDefault()
	a.root = k

	count := a.materializeChildren(k)
	a.reg.get(k).visibleCount = count
	if a.sorting() {
		a.resortNode(k, true)
	}

	size := count
	if a.rootVisible {
		size++
	}
	a.rows.resize(size)
	a.fill(0, k)
	return c.modelChanged()
}

func (a *Adapter[P]) teardown() {
	a.reg.reset()
	a.root = noNode
	a.rows.resize(0)
}

// insertNode materializes child after the source added it under parent.
func (a *Adapter[P]) insertNode(parent, child P) settled {
	if _, ok := a.reg.lookup(child); ok {
		return a.begin().noChange()
	}

	pk, ok := a.reg.lookup(parent)
	if !ok {
		if a.src.IsRoot(parent) {
			return a.buildRoot(parent)
		}
		grand, ok := a.src.Parent(parent)
		if !ok {
			a.log.WithField("path", parent).Debug("insert under a parent outside the hierarchy")
			return a.begin().noChange()
		}
		a.insertNode(grand, parent)
		if _, ok := a.reg.lookup(child); ok {
			return settled{}
		}
		if pk, ok = a.reg.lookup(parent); !ok {
			return a.begin().noChange()
		}
	}

	a.refreshExpandable(pk)
	if !a.reg.get(pk).expanded {
		return a.begin().noChange()
	}

	c := a.begin()
	parentRow := a.rowOf(pk)
	before := a.reg.children(pk)

	ck, ok := a.createNode(child, pk)
	if !ok {
		return c.noChange()
	}
	if a.reg.get(ck).expanded {
		count := a.materializeChildren(ck)
		a.reg.get(ck).visibleCount = count
	}
	size := 1 + a.reg.get(ck).visibleCount
	a.addVisible(pk, size)

	a.resortNode(pk, false)
	if a.sorting() {
		a.resortNode(ck, true)
	}
	after := slices.DeleteFunc(a.reg.children(pk), func(k nodeKey) bool { return k == ck })
	reordered := !slices.Equal(before, after)

	old := a.rows.len()
	a.rows.resize(old + size)
	if parentRow < 0 {
		a.fill(0, pk)
	} else {
		newBlock := 1 + a.reg.get(pk).visibleCount
		oldBlock := newBlock - size
		a.rows.shift(parentRow+newBlock, parentRow+oldBlock, old-parentRow-oldBlock)
		a.fill(parentRow, pk)
	}

	if reordered {
		return c.modelChanged()
	}
	return c.rowsInserted(a.rowOf(ck), size)
}

// removeNode drops child and its subtree after the source removed it.
func (a *Adapter[P]) removeNode(parent, child P) settled {
	ck, ok := a.reg.lookup(child)
	if !ok {
		s := a.begin().noChange()
		if pk, ok := a.reg.lookup(parent); ok {
			a.refreshExpandable(pk)
		}
		return s
	}

	c := a.begin()
	if ck == a.root {
		a.teardown()
		return c.modelChanged()
	}

	n := a.reg.get(ck)
	pk := n.parent
	if got := a.reg.get(pk).path; got != parent {
		a.log.WithFields(logrus.Fields{"path": child, "parent": parent, "materialized_parent": got}).
			Debug("removal reported under a different parent")
	}
	row := a.rowOf(ck)
	size := 1 + n.visibleCount

	a.reg.destroy(ck)
	old := a.rows.len()
	a.rows.shift(row, row+size, old-row-size)
	a.rows.resize(old - size)
	a.addVisible(pk, -size)

	s := c.rowsDeleted(row, size)
	a.refreshExpandable(pk)
	return s
}

// refresh handles a change of p's own data.
func (a *Adapter[P]) refresh(p P) settled {
	k, ok := a.reg.lookup(p)
	if !ok {
		return a.begin().noChange()
	}

	c := a.begin()
	n := a.reg.get(k)
	n.expandable = a.src.IsExpandable(p)

	want := n.expanded
	if !n.explicit && a.force == ForceNone {
		if def := a.src.ExpandedDefault(); def != n.defaultExpanded {
			n.defaultExpanded = def
			want = def
		}
	}
	if k == a.root && !a.rootVisible {
		want = true
	}

	structural := false
	if want != n.expanded {
		var count int
		if want {
			_, count = a.expandNode(k, false)
		} else {
			_, count = a.collapseNode(k, false)
		}
		structural = count > 0
	}

	// Sibling order may depend on the changed data. Resorting here
	// would run inside observer callbacks, so it waits for Flush.
	a.schedule(pendingResort)

	if structural {
		return c.modelChanged()
	}
	row := a.rowOf(k)
	if row < 0 {
		return c.modelChanged()
	}
	return c.rowChanged(row)
}

// refreshExpandable updates k's cached expandability, announcing the
// row change when it differs.
func (a *Adapter[P]) refreshExpandable(k nodeKey) {
	exp := a.src.IsExpandable(a.reg.get(k).path)
	if exp == a.reg.get(k).expandable {
		return
	}
	c := a.begin()
	a.reg.get(k).expandable = exp
	c.rowChanged(a.rowOf(k))
}

// expandNode materializes k's children and opens their rows. It
// returns k's row and the number of rows inserted after it.
func (a *Adapter[P]) expandNode(k nodeKey, explicit bool) (row, count int) {
	row = a.rowOf(k)
	n := a.reg.get(k)
	n.expanded = true
	if explicit {
		n.explicit = true
	}

	count = a.materializeChildren(k)
	a.addVisible(k, count)
	if count == 0 {
		return row, 0
	}
	if a.sorting() {
		a.resortNode(k, true)
	}

	old := a.rows.len()
	start := row + 1
	a.rows.resize(old + count)
	a.rows.shift(start+count, start, old-start)
	if row < 0 {
		a.fill(0, k)
	} else {
		a.fill(row, k)
	}
	return row, count
}

// collapseNode discards k's descendants and closes their rows. It
// returns k's row and the number of rows removed after it.
func (a *Adapter[P]) collapseNode(k nodeKey, explicit bool) (row, count int) {
	row = a.rowOf(k)
	n := a.reg.get(k)
	count = n.visibleCount
	n.expanded = false
	if explicit {
		n.explicit = true
	}

	a.reg.destroyChildren(k)
	a.addVisible(k, -count)
	if count == 0 {
		return row, 0
	}

	old := a.rows.len()
	start := row + 1
	a.rows.shift(start, start+count, old-start-count)
	a.rows.resize(old - count)
	return row, count
}

// createNode registers p under parent with its initial expansion.
func (a *Adapter[P]) createNode(p P, parent nodeKey) (nodeKey, bool) {
	k, ok := a.reg.create(p, parent)
	if !ok {
		a.violation("node %v is already materialized", p)
		return noNode, false
	}
	n := a.reg.get(k)
	n.defaultExpanded = a.src.ExpandedDefault()
	n.expandable = a.src.IsExpandable(p)
	switch a.force {
	case ForceExpanded:
		n.expanded = true
	case ForceCollapsed:
		n.expanded = false
	default:
		n.expanded = n.defaultExpanded
	}
	return k, true
}

// materializeChildren creates k's children in source order, descending
// into children that start expanded. It returns the rows they occupy.
func (a *Adapter[P]) materializeChildren(k nodeKey) int {
	path := a.reg.get(k).path
	total := 0
	for c, ok := a.src.FirstChild(path); ok; c, ok = a.src.NextSibling(c) {
		ck, created := a.createNode(c, k)
		if !created {
			continue
		}
		if a.reg.get(ck).expanded {
			count := a.materializeChildren(ck)
			a.reg.get(ck).visibleCount = count
		}
		total += 1 + a.reg.get(ck).visibleCount
	}
	return total
}

// addVisible adds delta to the visible counts of k and its ancestors.
func (a *Adapter[P]) addVisible(k nodeKey, delta int) {
	for ; k != noNode; k = a.reg.get(k).parent {
		a.reg.get(k).visibleCount += delta
	}
}

// fill writes the pre-order rows of k's subtree starting at i and
// returns the position after the last row written.
func (a *Adapter[P]) fill(i int, k nodeKey) int {
	if k != a.root || a.rootVisible {
		a.rows.set(i, k)
		i++
	}
	for c := a.reg.get(k).firstChild; c != noNode; c = a.reg.get(c).next {
		i = a.fill(i, c)
	}
	return i
}

func (a *Adapter[P]) rowOf(k nodeKey) int {
	if k == a.root && !a.rootVisible {
		return -1
	}
	return indexOf(&a.rows, a.reg, k)
}

func (a *Adapter[P]) sorting() bool {
	return orderingActive(a.ordering)
}

// orderingFor returns the ordering for k's children.
func (a *Adapter[P]) orderingFor(k nodeKey) Ordering[P] {
	if !a.childrenAscending || a.reg.get(k).parent == noNode {
		return a.ordering
	}
	if !a.childOrderingOK {
		a.childOrdering = a.ordering
		if asc, ok := a.ordering.(Ascender[P]); ok {
			a.childOrdering = asc.Ascending()
		} else {
			a.log.WithField("ordering", fmt.Sprintf("%T", a.ordering)).
				Debug("ordering cannot derive an ascending variant; using it unchanged")
		}
		a.childOrderingOK = true
	}
	return a.childOrdering
}

// resortNode relinks k's children in source order, then sorts them
// when an ordering is configured. Source children that are not
// materialized are skipped.
func (a *Adapter[P]) resortNode(k nodeKey, recurse bool) {
	current := a.reg.children(k)
	if len(current) == 0 {
		return
	}

	keys := make([]nodeKey, 0, len(current))
	seen := make(map[nodeKey]struct{}, len(current))
	for c, ok := a.src.FirstChild(a.reg.get(k).path); ok; c, ok = a.src.NextSibling(c) {
		ck, found := a.reg.lookup(c)
		if !found || a.reg.get(ck).parent != k {
			continue
		}
		keys = append(keys, ck)
		seen[ck] = struct{}{}
	}
	// Children the source no longer lists keep their place at the end
	// until their removal arrives.
	for _, ck := range current {
		if _, ok := seen[ck]; !ok {
			keys = append(keys, ck)
		}
	}

	if len(keys) > 1 && a.sorting() {
		ord := a.orderingFor(k)
		slices.SortStableFunc(keys, func(x, y nodeKey) int {
			return ord.Compare(a.reg.get(x).path, a.reg.get(y).path)
		})
	}
	a.reg.relink(k, keys)

	if recurse {
		for _, ck := range keys {
			a.resortNode(ck, true)
		}
	}
}

// resortAll resorts the whole tree and refills the rows.
func (a *Adapter[P]) resortAll() {
	if a.root == noNode {
		return
	}
	c := a.begin()
	a.resortNode(a.root, true)
	a.fill(0, a.root)
	c.modelChanged()
}

func (a *Adapter[P]) violation(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if a.strict {
		panic("treetable: " + msg)
	}
	a.log.Error("contract violation: " + msg)
}
