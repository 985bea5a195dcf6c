package treetable

// nodeKey addresses a node in the registry arena.
type nodeKey int32

const noNode nodeKey = -1

// node is the adapter's record of a materialized source item.
// Links are arena keys; a node owns its materialized children.
type node[P comparable] struct {
	path P

	parent     nodeKey
	firstChild nodeKey
	lastChild  nodeKey
	prev       nodeKey
	next       nodeKey

	// visibleCount is the number of flat map rows occupied by the
	// node's subtree, excluding the node itself.
	visibleCount int
	// index is the node's flat map position, valid while the map is clean.
	index int

	expanded        bool
	explicit        bool
	defaultExpanded bool
	expandable      bool
}

// registry is the arena of materialized nodes plus the path lookup.
type registry[P comparable] struct {
	nodes  []node[P]
	free   []nodeKey
	byPath map[P]nodeKey
}

func newRegistry[P comparable]() *registry[P] {
	return &registry[P]{byPath: make(map[P]nodeKey)}
}

// get returns the node for k. The pointer is invalidated by create.
func (r *registry[P]) get(k nodeKey) *node[P] {
	return &r.nodes[k]
}

func (r *registry[P]) lookup(p P) (nodeKey, bool) {
	k, ok := r.byPath[p]
	return k, ok
}

func (r *registry[P]) len() int {
	return len(r.byPath)
}

// create registers p and appends it as the last child of parent.
// It returns false if p is already registered.
func (r *registry[P]) create(p P, parent nodeKey) (nodeKey, bool) {
	if _, dup := r.byPath[p]; dup {
		return noNode, false
	}

	n := node[P]{
		path:       p,
		parent:     parent,
		firstChild: noNode,
		lastChild:  noNode,
		prev:       noNode,
		next:       noNode,
		index:      -1,
	}

	var k nodeKey
	if last := len(r.free) - 1; last >= 0 {
		k = r.free[last]
		r.free = r.free[:last]
		r.nodes[k] = n
	} else {
		k = nodeKey(len(r.nodes))
		r.nodes = append(r.nodes, n)
	}
	r.byPath[p] = k

	if parent != noNode {
		r.appendChild(parent, k)
	}
	return k, true
}

func (r *registry[P]) appendChild(parent, k nodeKey) {
	pn := &r.nodes[parent]
	n := &r.nodes[k]
	n.parent = parent
	n.next = noNode
	n.prev = pn.lastChild
	if pn.lastChild != noNode {
		r.nodes[pn.lastChild].next = k
	} else {
		pn.firstChild = k
	}
	pn.lastChild = k
}

// unlink detaches k from its parent's child list.
func (r *registry[P]) unlink(k nodeKey) {
	n := &r.nodes[k]
	if n.parent == noNode {
		return
	}
	pn := &r.nodes[n.parent]
	if n.prev != noNode {
		r.nodes[n.prev].next = n.next
	} else {
		pn.firstChild = n.next
	}
	if n.next != noNode {
		r.nodes[n.next].prev = n.prev
	} else {
		pn.lastChild = n.prev
	}
	n.prev, n.next = noNode, noNode
}

// destroy unlinks k and unregisters its whole subtree.
func (r *registry[P]) destroy(k nodeKey) {
	r.unlink(k)
	r.release(k)
}

// destroyChildren unregisters every descendant of k.
func (r *registry[P]) destroyChildren(k nodeKey) {
	c := r.nodes[k].firstChild
	for c != noNode {
		next := r.nodes[c].next
		r.release(c)
		c = next
	}
	n := &r.nodes[k]
	n.firstChild, n.lastChild = noNode, noNode
}

func (r *registry[P]) release(k nodeKey) {
	c := r.nodes[k].firstChild
	for c != noNode {
		next := r.nodes[c].next
		r.release(c)
		c = next
	}
	n := &r.nodes[k]
	delete(r.byPath, n.path)
	var zero P
	*n = node[P]{path: zero, parent: noNode, firstChild: noNode, lastChild: noNode, prev: noNode, next: noNode, index: -1}
	r.free = append(r.free, k)
}

// children returns the keys of k's children in link order.
func (r *registry[P]) children(k nodeKey) []nodeKey {
	var out []nodeKey
	for c := r.nodes[k].firstChild; c != noNode; c = r.nodes[c].next {
		out = append(out, c)
	}
	return out
}

// relink replaces k's child list with keys, in order.
func (r *registry[P]) relink(k nodeKey, keys []nodeKey) {
	n := &r.nodes[k]
	n.firstChild, n.lastChild = noNode, noNode
	for _, c := range keys {
		r.appendChild(k, c)
	}
}

// reset drops every node.
func (r *registry[P]) reset() {
	r.nodes = r.nodes[:0]
	r.free = r.free[:0]
	clear(r.byPath)
}
