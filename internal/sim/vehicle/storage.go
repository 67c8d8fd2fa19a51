package vehicle

import (
	"errors"
	"fmt"
)

var (
	ErrFull           = errors.New("vehicle: storage full")
	ErrUnknownElement = errors.New("vehicle: unknown element")
	ErrEmptyLayout    = errors.New("vehicle: element has no components")
)

// ComponentStorage owns every element's components. Element ids are dense
// in [0, max) and recycled through a free stack.
type ComponentStorage struct {
	max int

	archetypes []*Archetype
	byLayout   map[Layout]int

	// element id -> archetype index, -1 when free
	owner []int
	free  []ElementID

	matching map[Layout][]*Archetype
}

func NewComponentStorage(maxElements int) *ComponentStorage {
	s := &ComponentStorage{max: maxElements}
	s.Clear()
	return s
}

// Clear drops every element and archetype.
func (s *ComponentStorage) Clear() {
	s.archetypes = nil
	s.byLayout = map[Layout]int{}
	s.matching = map[Layout][]*Archetype{}
	s.owner = make([]int, s.max)
	s.free = make([]ElementID, 0, s.max)
	for i := s.max - 1; i >= 0; i-- {
		s.owner[i] = -1
		s.free = append(s.free, ElementID(i))
	}
}

func (s *ComponentStorage) Cap() int { return s.max }

func (s *ComponentStorage) Len() int { return s.max - len(s.free) }

func (s *ComponentStorage) archetypeFor(l Layout) *Archetype {
	if i, ok := s.byLayout[l]; ok {
		return s.archetypes[i]
	}
	a := newArchetype(l, s.max)
	s.byLayout[l] = len(s.archetypes)
	s.archetypes = append(s.archetypes, a)
	// any cached query may now match one more archetype
	clear(s.matching)
	return a
}

// Create stores a copy of b under a fresh element id.
func (s *ComponentStorage) Create(b Bundle) (ElementID, error) {
	l := b.Layout()
	if l == 0 {
		return InvalidElement, ErrEmptyLayout
	}
	if len(s.free) == 0 {
		return InvalidElement, ErrFull
	}
	id := s.free[len(s.free)-1]
	a := s.archetypeFor(l)
	if err := a.insert(id, &b); err != nil {
		return InvalidElement, err
	}
	s.free = s.free[:len(s.free)-1]
	s.owner[id] = s.byLayout[l]
	return id, nil
}

func (s *ComponentStorage) valid(id ElementID) bool {
	return id >= 0 && int(id) < s.max && s.owner[id] >= 0
}

// Free removes id's components and recycles the id.
func (s *ComponentStorage) Free(id ElementID) error {
	if !s.valid(id) {
		return fmt.Errorf("%w: %d", ErrUnknownElement, id)
	}
	if err := s.archetypes[s.owner[id]].remove(id); err != nil {
		return err
	}
	s.owner[id] = -1
	s.free = append(s.free, id)
	return nil
}

// Move replaces id's components with b, changing archetype when the layout
// differs. The id is kept.
func (s *ComponentStorage) Move(id ElementID, b Bundle) error {
	if !s.valid(id) {
		return fmt.Errorf("%w: %d", ErrUnknownElement, id)
	}
	l := b.Layout()
	if l == 0 {
		return ErrEmptyLayout
	}
	if err := s.archetypes[s.owner[id]].remove(id); err != nil {
		return err
	}
	a := s.archetypeFor(l)
	if err := a.insert(id, &b); err != nil {
		return err
	}
	s.owner[id] = s.byLayout[l]
	return nil
}

func (s *ComponentStorage) Layout(id ElementID) (Layout, bool) {
	if !s.valid(id) {
		return 0, false
	}
	return s.archetypes[s.owner[id]].layout, true
}

func (s *ComponentStorage) Archetype(id ElementID) (*Archetype, bool) {
	if !s.valid(id) {
		return nil, false
	}
	return s.archetypes[s.owner[id]], true
}

// Get returns pointers to id's components. They are invalidated by the next
// Create, Free or Move.
func (s *ComponentStorage) Get(id ElementID) (Bundle, bool) {
	if !s.valid(id) {
		return Bundle{}, false
	}
	a := s.archetypes[s.owner[id]]
	return a.bundle(a.Dense(id)), true
}

// MatchingArchetypes returns the archetypes whose layout contains l, in
// creation order. The result is cached until a new archetype appears.
func (s *ComponentStorage) MatchingArchetypes(l Layout) []*Archetype {
	if m, ok := s.matching[l]; ok {
		return m
	}
	var out []*Archetype
	for _, a := range s.archetypes {
		if a.layout.Contains(l) {
			out = append(out, a)
		}
	}
	s.matching[l] = out
	return out
}

// Validate checks the storage invariants and reports the first violation.
func (s *ComponentStorage) Validate() error {
	live := 0
	for i, a := range s.archetypes {
		if s.byLayout[a.layout] != i {
			return fmt.Errorf("archetype %s: layout index %d want %d", a.layout, s.byLayout[a.layout], i)
		}
		for t := ComponentType(0); t < NumComponentTypes; t++ {
			n := a.columnLen(t)
			switch {
			case a.layout.Has(t) && n != len(a.elements):
				return fmt.Errorf("archetype %s: column %s len %d want %d", a.layout, t, n, len(a.elements))
			case !a.layout.Has(t) && n != -1:
				return fmt.Errorf("archetype %s: unexpected column %s", a.layout, t)
			}
		}
		for d, id := range a.elements {
			if a.lookup[id] != d {
				return fmt.Errorf("archetype %s: element %d lookup %d want %d", a.layout, id, a.lookup[id], d)
			}
			if s.owner[id] != i {
				return fmt.Errorf("element %d: owner %d want %d", id, s.owner[id], i)
			}
		}
		live += len(a.elements)
	}
	if live+len(s.free) != s.max {
		return fmt.Errorf("live %d + free %d != cap %d", live, len(s.free), s.max)
	}
	for _, id := range s.free {
		if s.owner[id] != -1 {
			return fmt.Errorf("free element %d still owned by %d", id, s.owner[id])
		}
	}
	return nil
}
