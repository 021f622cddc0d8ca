package sarc

import "iter"

// FileMap is an insertion-ordered map from archive-relative name to file
// content. It backs Writer.Files: names can be added, overwritten, removed,
// and reordered, and Serialize iterates it in whatever order Names reports
// before re-sorting by hash.
type FileMap struct {
	order []string
	data  map[string][]byte
}

// NewFileMap returns an empty FileMap.
func NewFileMap() *FileMap {
	return &FileMap{data: make(map[string][]byte)}
}

// Set adds name with content data, or overwrites its content in place if
// name is already present (preserving its position in Names).
func (m *FileMap) Set(name string, data []byte) {
	if _, ok := m.data[name]; !ok {
		m.order = append(m.order, name)
	}
	m.data[name] = data
}

// Get returns the content stored for name, if present.
func (m *FileMap) Get(name string) ([]byte, bool) {
	v, ok := m.data[name]
	return v, ok
}

// Delete removes name, if present.
func (m *FileMap) Delete(name string) {
	if _, ok := m.data[name]; !ok {
		return
	}
	delete(m.data, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Len reports the number of entries.
func (m *FileMap) Len() int { return len(m.order) }

// Names returns the current insertion order.
func (m *FileMap) Names() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Reorder replaces the insertion order with names, which must be a
// permutation of Names(). It panics if names omits or duplicates an entry,
// since that would silently drop a file from the next Serialize.
func (m *FileMap) Reorder(names []string) {
	if len(names) != len(m.order) {
		panic("sarc: Reorder: length mismatch")
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := m.data[n]; !ok {
			panic("sarc: Reorder: unknown name " + n)
		}
		if seen[n] {
			panic("sarc: Reorder: duplicate name " + n)
		}
		seen[n] = true
	}
	m.order = append([]string(nil), names...)
}

// All returns a sequence of (name, data) pairs in insertion order.
func (m *FileMap) All() iter.Seq2[string, []byte] {
	return func(yield func(string, []byte) bool) {
		for _, n := range m.order {
			if !yield(n, m.data[n]) {
				return
			}
		}
	}
}
