// Package chunk holds the 16-block chunk coordinates used to bucket
// hitboxes and bound per-tick collision work.
package chunk

import "xcombat.dev/internal/sim/mathx"

const Size = 16

// Coord is a 2D (x, z) chunk column.
type Coord struct {
	X int `json:"x"`
	Z int `json:"z"`
}

// Coord3D is a 16x16x16 chunk section.
type Coord3D struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func FromBlock(x, z int) Coord {
	return Coord{X: mathx.BlockToChunk(x), Z: mathx.BlockToChunk(z)}
}

func FromBlock3D(x, y, z int) Coord3D {
	return Coord3D{X: mathx.BlockToChunk(x), Y: mathx.BlockToChunk(y), Z: mathx.BlockToChunk(z)}
}

func FromPosition(x, z float64) Coord {
	return FromBlock(mathx.FloorInt(x), mathx.FloorInt(z))
}

func FromPosition3D(x, y, z float64) Coord3D {
	return FromBlock3D(mathx.FloorInt(x), mathx.FloorInt(y), mathx.FloorInt(z))
}

// Column drops the vertical component.
func (c Coord3D) Column() Coord { return Coord{X: c.X, Z: c.Z} }

// Set is an insertion-ordered set of chunk columns. Iteration follows
// insertion order so hitbox gathering is deterministic across runs.
type Set struct {
	idx   map[Coord]struct{}
	order []Coord
}

func NewSet(capacity int) *Set {
	return &Set{idx: make(map[Coord]struct{}, capacity), order: make([]Coord, 0, capacity)}
}

// Add inserts c and reports whether it was new.
func (s *Set) Add(c Coord) bool {
	if s.idx == nil {
		s.idx = map[Coord]struct{}{}
	}
	if _, ok := s.idx[c]; ok {
		return false
	}
	s.idx[c] = struct{}{}
	s.order = append(s.order, c)
	return true
}

func (s *Set) Has(c Coord) bool {
	if s == nil {
		return false
	}
	_, ok := s.idx[c]
	return ok
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

func (s *Set) Each(fn func(Coord)) {
	if s == nil {
		return
	}
	for _, c := range s.order {
		fn(c)
	}
}

// Union adds every member of other, preserving other's order for new entries.
func (s *Set) Union(other *Set) {
	other.Each(func(c Coord) { s.Add(c) })
}

// AddAround adds the (2r+1)^2 columns centered on c.
func (s *Set) AddAround(c Coord, r int) {
	for x := c.X - r; x <= c.X+r; x++ {
		for z := c.Z - r; z <= c.Z+r; z++ {
			s.Add(Coord{X: x, Z: z})
		}
	}
}

func (s *Set) Slice() []Coord {
	if s == nil {
		return nil
	}
	return append([]Coord(nil), s.order...)
}
