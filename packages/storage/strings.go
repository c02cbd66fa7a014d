package storage

// StringTable interns the text values held by text columns. each id carries
// a reference count so overwritten cells release their strings.
type StringTable struct {
	ids       map[string]uint32
	values    map[uint32]string
	refCounts map[uint32]int
	nextID    uint32
}

// NewStringTable creates a new string table
func NewStringTable() *StringTable {
	return &StringTable{
		ids:       make(map[string]uint32),
		values:    make(map[uint32]string),
		refCounts: make(map[uint32]int),
		nextID:    1, // 0 is the empty (missing) string
	}
}

// Intern returns the id for s, adding it to the table if needed. the empty
// string always maps to 0 and is never counted.
func (st *StringTable) Intern(s string) uint32 {
	if s == "" {
		return 0
	}
	if id, ok := st.ids[s]; ok {
		st.refCounts[id]++
		return id
	}

	id := st.nextID
	st.ids[s] = id
	st.values[id] = s
	st.refCounts[id] = 1
	st.nextID++

	return id
}

// Lookup returns the string for id. id 0 is the empty string.
func (st *StringTable) Lookup(id uint32) string {
	if id == 0 {
		return ""
	}
	return st.values[id]
}

// Release drops one reference to id and forgets the string once nothing
// refers to it. returns true if the string was removed.
func (st *StringTable) Release(id uint32) bool {
	s, ok := st.values[id]
	if !ok {
		return false
	}

	st.refCounts[id]--
	if st.refCounts[id] <= 0 {
		delete(st.ids, s)
		delete(st.values, id)
		delete(st.refCounts, id)
		return true
	}
	return false
}

// RefCount returns the number of references held on id
func (st *StringTable) RefCount(id uint32) int {
	return st.refCounts[id]
}

// Count returns the number of distinct strings in the table
func (st *StringTable) Count() int {
	return len(st.ids)
}
