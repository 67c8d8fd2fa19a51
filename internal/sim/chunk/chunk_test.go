package chunk

import "testing"

func TestFromPositionNegative(t *testing.T) {
	c := FromPosition3D(-0.5, 17, 31.9)
	if c != (Coord3D{X: -1, Y: 1, Z: 1}) {
		t.Fatalf("coord=%+v want {-1 1 1}", c)
	}
	if c.Column() != (Coord{X: -1, Z: 1}) {
		t.Fatalf("column=%+v", c.Column())
	}
}

func TestSetOrderAndDedupe(t *testing.T) {
	s := NewSet(4)
	s.Add(Coord{2, 2})
	s.Add(Coord{0, 0})
	if s.Add(Coord{2, 2}) {
		t.Fatalf("duplicate add reported new")
	}
	other := NewSet(2)
	other.Add(Coord{5, 5})
	other.Add(Coord{0, 0})
	s.Union(other)

	got := s.Slice()
	want := []Coord{{2, 2}, {0, 0}, {5, 5}}
	if len(got) != len(want) {
		t.Fatalf("len=%d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order[%d]=%+v want %+v", i, got[i], want[i])
		}
	}
}

func TestAddAround(t *testing.T) {
	var s Set
	s.AddAround(Coord{0, 0}, 1)
	if s.Len() != 9 {
		t.Fatalf("len=%d want 9", s.Len())
	}
	if !s.Has(Coord{-1, 1}) {
		t.Fatalf("missing corner")
	}
}
