package treetable

// EventKind identifies a change reported by a hierarchical Source.
type EventKind int

const (
	// EventPreChange announces that the source is about to change.
	EventPreChange EventKind = iota
	// EventRebuilt means every node may have changed; the adapter
	// discards its materialized tree and rebuilds from the source root.
	EventRebuilt
	// EventDataChanged reports that a node's own data changed.
	EventDataChanged
	// EventInserted reports that Node was added under Parent.
	EventInserted
	// EventRemoved reports that Node was removed from Parent.
	// OldPosition is the node's former index among its siblings.
	EventRemoved
	// EventCollapseRequested asks views to collapse Node.
	EventCollapseRequested
)

func (k EventKind) String() string {
	switch k {
	case EventPreChange:
		return "pre-change"
	case EventRebuilt:
		return "rebuilt"
	case EventDataChanged:
		return "data-changed"
	case EventInserted:
		return "inserted"
	case EventRemoved:
		return "removed"
	case EventCollapseRequested:
		return "collapse-requested"
	default:
		return "unknown"
	}
}

// Event is a change notification emitted by a Source.
type Event[P comparable] struct {
	Kind        EventKind
	Parent      P
	Node        P
	OldPosition int
}

// Source is a lazily navigable hierarchy addressed by paths of type P.
// Paths must stay stable for as long as the item exists in the source.
type Source[P comparable] interface {
	// Root returns the root path, or false when the source is empty.
	Root() (P, bool)
	Parent(p P) (P, bool)
	FirstChild(p P) (P, bool)
	NextSibling(p P) (P, bool)
	IsRoot(p P) bool
	// IsExpandable reports whether p can have children.
	IsExpandable(p P) bool
	// ExpandedDefault is the state newly materialized nodes start in.
	ExpandedDefault() bool

	ColumnCount() int
	ValueAt(p P, column int) any

	// HasSaveID reports whether SaveID returns identifiers that are
	// stable across sessions.
	HasSaveID() bool
	SaveID(p P) string
	// NodeByID resolves a save identifier back to a path.
	NodeByID(id string) (P, bool)

	// Subscribe registers fn for change events and returns a function
	// that removes the subscription.
	Subscribe(fn func(Event[P])) (cancel func())
}
