package treetable

import "fmt"

// NotificationKind identifies a change delivered to table observers.
type NotificationKind int

const (
	// PreChange precedes every structural notification.
	PreChange NotificationKind = iota
	// ModelChanged means any row may have changed; observers re-read everything.
	ModelChanged
	// NoChange closes a PreChange that turned out not to change anything.
	NoChange
	// RowChanged means the values of Row changed.
	RowChanged
	// RowsInserted means Count rows were inserted starting at Row.
	RowsInserted
	// RowsDeleted means Count rows starting at Row were removed.
	RowsDeleted
)

func (k NotificationKind) String() string {
	switch k {
	case PreChange:
		return "pre-change"
	case ModelChanged:
		return "model-changed"
	case NoChange:
		return "no-change"
	case RowChanged:
		return "row-changed"
	case RowsInserted:
		return "rows-inserted"
	case RowsDeleted:
		return "rows-deleted"
	default:
		return "unknown"
	}
}

// Notification describes one change of the flattened table.
type Notification struct {
	Kind  NotificationKind
	Row   int
	Count int
}

func (n Notification) String() string {
	switch n.Kind {
	case RowChanged:
		return fmt.Sprintf("%s(%d)", n.Kind, n.Row)
	case RowsInserted, RowsDeleted:
		return fmt.Sprintf("%s(%d,%d)", n.Kind, n.Row, n.Count)
	default:
		return n.Kind.String()
	}
}

// Observer receives table notifications.
type Observer interface {
	TableChanged(n Notification)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(n Notification)

// TableChanged calls f(n).
func (f ObserverFunc) TableChanged(n Notification) { f(n) }

type observerSet struct {
	next      int
	observers map[int]Observer
	order     []int
}

func (s *observerSet) add(o Observer) int {
	if s.observers == nil {
		s.observers = make(map[int]Observer)
	}
	id := s.next
	s.next++
	s.observers[id] = o
	s.order = append(s.order, id)
	return id
}

func (s *observerSet) remove(id int) {
	if _, ok := s.observers[id]; !ok {
		return
	}
	delete(s.observers, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *observerSet) emit(n Notification) {
	// Copy so observers may unsubscribe while being notified.
	ids := append([]int(nil), s.order...)
	for _, id := range ids {
		if o, ok := s.observers[id]; ok {
			o.TableChanged(n)
		}
	}
}
