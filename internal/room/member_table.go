package room

// memberTable is an insertion-order-preserving map keyed by connection-id
// (spec §4.4). Host reassignment relies on that order: the oldest
// remaining member becomes host. It is only ever mutated from the Room
// Coordinator's single command-processing goroutine, so it needs no
// internal locking of its own — callers must never share it across
// goroutines directly.
type memberTable struct {
	order []string
	byID  map[string]*Member
}

func newMemberTable() *memberTable {
	return &memberTable{byID: make(map[string]*Member)}
}

func (t *memberTable) Add(m *Member) {
	if _, exists := t.byID[m.ConnID]; !exists {
		t.order = append(t.order, m.ConnID)
	}
	t.byID[m.ConnID] = m
}

func (t *memberTable) Get(connID string) (*Member, bool) {
	m, ok := t.byID[connID]
	return m, ok
}

func (t *memberTable) Remove(connID string) {
	if _, ok := t.byID[connID]; !ok {
		return
	}
	delete(t.byID, connID)

	for i, id := range t.order {
		if id == connID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

func (t *memberTable) Len() int { return len(t.order) }

// Oldest returns the earliest-joined member still present, or nil if the
// table is empty.
func (t *memberTable) Oldest() *Member {
	if len(t.order) == 0 {
		return nil
	}
	return t.byID[t.order[0]]
}

// Range iterates members in insertion order. The callback must not mutate
// the table.
func (t *memberTable) Range(fn func(*Member)) {
	for _, id := range t.order {
		fn(t.byID[id])
	}
}

// IDs returns connection-ids in insertion order. The returned slice is a
// copy, safe to retain.
func (t *memberTable) IDs() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// All returns a snapshot slice of members in insertion order. Each element
// is copied so callers can't mutate table state through it.
func (t *memberTable) All() []Member {
	out := make([]Member, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.byID[id])
	}
	return out
}
