package treetable

// RowLast is accepted by NodeAt as "the last row".
const RowLast = -1

// flatMap is the dense row -> node array of visible nodes in display order.
// Node indexes are recomputed lazily: any write marks the map dirty and
// the next indexOf performs a full remap.
type flatMap struct {
	rows  []nodeKey
	dirty bool
}

func (m *flatMap) len() int { return len(m.rows) }

// resize grows or truncates the map, keeping the prefix.
func (m *flatMap) resize(n int) {
	if n < 0 {
		n = 0
	}
	switch {
	case n <= len(m.rows):
		m.rows = m.rows[:n]
	case n <= cap(m.rows):
		old := len(m.rows)
		m.rows = m.rows[:n]
		for i := old; i < n; i++ {
			m.rows[i] = noNode
		}
	default:
		grown := make([]nodeKey, n, n+n/4)
		copy(grown, m.rows)
		for i := len(m.rows); i < n; i++ {
			grown[i] = noNode
		}
		m.rows = grown
	}
	m.dirty = true
}

// shift moves count entries from src to dst. Ranges may overlap.
func (m *flatMap) shift(dst, src, count int) {
	if count <= 0 || dst == src {
		return
	}
	copy(m.rows[dst:dst+count], m.rows[src:src+count])
	m.dirty = true
}

func (m *flatMap) set(i int, k nodeKey) {
	m.rows[i] = k
	m.dirty = true
}

// nodeAt returns the key at row i, or noNode when out of range.
func (m *flatMap) nodeAt(i int) nodeKey {
	if i == RowLast {
		i = len(m.rows) - 1
	}
	if i < 0 || i >= len(m.rows) {
		return noNode
	}
	return m.rows[i]
}

// remap writes every row's position into its node.
func remap[P comparable](m *flatMap, r *registry[P]) {
	for i, k := range m.rows {
		if k != noNode {
			r.get(k).index = i
		}
	}
	m.dirty = false
}

// indexOf returns the row of k, remapping first if needed.
func indexOf[P comparable](m *flatMap, r *registry[P], k nodeKey) int {
	if m.dirty {
		remap(m, r)
	}
	return r.get(k).index
}
