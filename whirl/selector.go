package whirl

// Predicate selects worker records by inspecting the worker, its tag and
// its id. Predicates must be pure: they are evaluated under the
// controller's lock and may run many times.
type Predicate func(w Worker, tag string, id int64) bool

// Selector is a small value describing a subset of registered workers.
// Build one with All, ByID, ByTag or Where. The zero Selector matches
// nothing.
type Selector struct {
	all  bool
	ids  map[int64]struct{}
	tags map[string]struct{}
	pred Predicate
}

// All selects every registered worker.
func All() Selector {
	return Selector{all: true}
}

// ByID selects the workers whose id is among ids.
func ByID(ids ...int64) Selector {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return Selector{ids: set}
}

// ByTag selects the workers whose tag is among tags. Tags are not unique;
// one tag may select many workers.
func ByTag(tags ...string) Selector {
	set := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		set[tag] = struct{}{}
	}
	return Selector{tags: set}
}

// Where selects workers matching an arbitrary predicate over
// (worker, tag, id).
func Where(pred Predicate) Selector {
	return Selector{pred: pred}
}

func (s Selector) matches(w Worker, tag string, id int64) bool {
	switch {
	case s.all:
		return true
	case s.ids != nil:
		_, ok := s.ids[id]
		return ok
	case s.tags != nil:
		_, ok := s.tags[tag]
		return ok
	case s.pred != nil:
		return s.pred(w, tag, id)
	}
	return false
}
