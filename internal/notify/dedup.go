package notify

// DedupTracker remembers which external items have already produced an
// alert. Ids keep their insertion order so the persisted list is stable.
// DedupTracker is not safe for concurrent use; Center serializes access.
type DedupTracker struct {
	order []string
	set   map[string]struct{}
}

// NewDedupTracker returns a tracker seeded with ids. Duplicates and empty
// ids are ignored.
func NewDedupTracker(ids []string) *DedupTracker {
	t := &DedupTracker{set: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		t.MarkAlerted(id)
	}
	return t
}

func (t *DedupTracker) HasAlerted(id string) bool {
	_, ok := t.set[id]
	return ok
}

// MarkAlerted records id. It reports whether id was newly added.
func (t *DedupTracker) MarkAlerted(id string) bool {
	if id == "" || t.HasAlerted(id) {
		return false
	}
	t.set[id] = struct{}{}
	t.order = append(t.order, id)
	return true
}

// ClearAlerted forgets id. It reports whether id was present.
func (t *DedupTracker) ClearAlerted(id string) bool {
	if !t.HasAlerted(id) {
		return false
	}
	delete(t.set, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// IDs returns the tracked ids in insertion order.
func (t *DedupTracker) IDs() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}
