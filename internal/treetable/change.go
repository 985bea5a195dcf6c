package treetable

// settled is returned by the terminal methods of a change. Internal
// operations that begin a change return it, so a path that never
// releases the change does not compile.
type settled struct{}

// change is the guard for one structural mutation. begin announces
// PreChange; exactly one terminal method must follow.
type change[P comparable] struct {
	a    *Adapter[P]
	done bool
}

func (a *Adapter[P]) begin() *change[P] {
	if a.changing {
		a.violation("change started while another change is open")
	}
	a.changing = true
	a.observers.emit(Notification{Kind: PreChange})
	return &change[P]{a: a}
}

func (c *change[P]) release(n Notification) settled {
	if c.done {
		c.a.violation("change released twice (%s)", n)
		return settled{}
	}
	c.done = true
	c.a.changing = false
	c.a.observers.emit(n)
	return settled{}
}

func (c *change[P]) modelChanged() settled {
	return c.release(Notification{Kind: ModelChanged})
}

func (c *change[P]) noChange() settled {
	return c.release(Notification{Kind: NoChange})
}

// rowChanged falls back to NoChange for rows that are not displayed.
func (c *change[P]) rowChanged(row int) settled {
	if row < 0 {
		return c.noChange()
	}
	return c.release(Notification{Kind: RowChanged, Row: row})
}

// rowsInserted falls back to NoChange when count is zero.
func (c *change[P]) rowsInserted(row, count int) settled {
	if count <= 0 {
		return c.noChange()
	}
	return c.release(Notification{Kind: RowsInserted, Row: row, Count: count})
}

// rowsDeleted falls back to NoChange when count is zero.
func (c *change[P]) rowsDeleted(row, count int) settled {
	if count <= 0 {
		return c.noChange()
	}
	return c.release(Notification{Kind: RowsDeleted, Row: row, Count: count})
}
