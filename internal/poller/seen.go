package poller

// seenSet remembers the most recent detection ids, evicting the oldest insertions
// once capacity is reached.
type seenSet struct {
	capacity int
	order    []int64
	ids      map[int64]struct{}
}

func newSeenSet(capacity int) *seenSet {
	if capacity <= 0 {
		capacity = 1
	}
	return &seenSet{
		capacity: capacity,
		order:    make([]int64, 0, capacity),
		ids:      make(map[int64]struct{}, capacity),
	}
}

func (s *seenSet) Has(id int64) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *seenSet) Add(id int64) {
	if s.Has(id) {
		return
	}
	if len(s.order) >= s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.ids, oldest)
	}
	s.order = append(s.order, id)
	s.ids[id] = struct{}{}
}

func (s *seenSet) Len() int { return len(s.order) }
