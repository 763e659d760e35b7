package livebind

import "github.com/livefir/livebind/internal/identity"

// pendingDelete holds the nodesets of a deleted item that may reappear.
type pendingDelete struct {
	data     any
	nodesets []nodeset
}

// pendingDeleteStore is a side table from item identity to the nodes it left
// behind. Only items with an identity (pointers, maps, funcs, chans) are
// stored; everything else is removed right away.
type pendingDeleteStore struct {
	byKey map[identity.Key]int
	list  []*pendingDelete
}

// stash keeps set for data and reports whether data was eligible.
func (s *pendingDeleteStore) stash(data any, set nodeset) bool {
	key, ok := identity.Of(data)
	if !ok {
		return false
	}
	if s.byKey == nil {
		s.byKey = make(map[identity.Key]int)
	}
	i, exists := s.byKey[key]
	if !exists {
		i = len(s.list)
		s.byKey[key] = i
		s.list = append(s.list, &pendingDelete{data: data})
	}
	s.list[i].nodesets = append(s.list[i].nodesets, set)
	return true
}

// take pops the most recently stashed nodeset for data.
func (s *pendingDeleteStore) take(data any) (nodeset, bool) {
	key, ok := identity.Of(data)
	if !ok {
		return nodeset{}, false
	}
	i, exists := s.byKey[key]
	if !exists {
		return nodeset{}, false
	}
	pd := s.list[i]
	n := len(pd.nodesets)
	if n == 0 {
		return nodeset{}, false
	}
	set := pd.nodesets[n-1]
	pd.nodesets = pd.nodesets[:n-1]
	return set, true
}

// drain empties the store, returning every unclaimed nodeset.
func (s *pendingDeleteStore) drain() []nodeset {
	var sets []nodeset
	for _, pd := range s.list {
		for len(pd.nodesets) > 0 {
			n := len(pd.nodesets)
			sets = append(sets, pd.nodesets[n-1])
			pd.nodesets = pd.nodesets[:n-1]
		}
	}
	s.list = nil
	s.byKey = nil
	return sets
}

func (s *pendingDeleteStore) len() int {
	total := 0
	for _, pd := range s.list {
		total += len(pd.nodesets)
	}
	return total
}
