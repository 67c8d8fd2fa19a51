package vehicle

import (
	"errors"
	"math/rand"
	"testing"
)

var (
	layoutA  = LayoutOf(TypeTransform)
	layoutAB = LayoutOf(TypeTransform, TypeHealth)
	layoutAC = LayoutOf(TypeTransform, TypeAmmo)
)

// bundleFor builds a bundle with layout l whose every component carries x.
func bundleFor(l Layout, x int) Bundle {
	f := float64(x)
	var b Bundle
	if l.Has(TypeAmmo) {
		b.Ammo = &AmmoComponent{Current: f, Max: f}
	}
	if l.Has(TypeFuel) {
		b.Fuel = &FuelComponent{Current: f, Max: f}
	}
	if l.Has(TypeGunBarrel) {
		b.GunBarrel = &GunBarrelComponent{GunID: x}
	}
	if l.Has(TypeHealth) {
		b.Health = &HealthComponent{Current: f, Max: f}
	}
	if l.Has(TypeModel) {
		b.Model = &ModelComponent{ModelID: x}
	}
	if l.Has(TypeSeats) {
		b.Seats = &SeatsComponent{Count: x}
	}
	if l.Has(TypeTransform) {
		b.Transform = &TransformComponent{X: f}
	}
	return b
}

// carries reports whether every component of b holds x.
func carries(b Bundle, x int) bool {
	f := float64(x)
	ok := true
	if b.Ammo != nil && b.Ammo.Current != f {
		ok = false
	}
	if b.Fuel != nil && b.Fuel.Current != f {
		ok = false
	}
	if b.GunBarrel != nil && b.GunBarrel.GunID != x {
		ok = false
	}
	if b.Health != nil && b.Health.Current != f {
		ok = false
	}
	if b.Model != nil && b.Model.ModelID != x {
		ok = false
	}
	if b.Seats != nil && b.Seats.Count != x {
		ok = false
	}
	if b.Transform != nil && b.Transform.X != f {
		ok = false
	}
	return ok
}

func TestMatchingArchetypes(t *testing.T) {
	s := NewComponentStorage(8)
	if _, err := s.Create(bundleFor(layoutAB, 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(bundleFor(layoutAC, 2)); err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		query Layout
		want  int
	}{
		{LayoutOf(TypeTransform), 2},
		{LayoutOf(TypeHealth), 1},
		{LayoutOf(TypeTransform, TypeAmmo), 1},
		{LayoutOf(TypeHealth, TypeAmmo), 0},
	}
	for _, tc := range cases {
		if got := len(s.MatchingArchetypes(tc.query)); got != tc.want {
			t.Fatalf("MatchingArchetypes(%s)=%d want %d", tc.query, got, tc.want)
		}
	}

	// a new archetype must show up in previously cached results
	if _, err := s.Create(bundleFor(layoutA, 3)); err != nil {
		t.Fatal(err)
	}
	if got := len(s.MatchingArchetypes(LayoutOf(TypeTransform))); got != 3 {
		t.Fatalf("after new archetype=%d want 3", got)
	}

	sum := 0.0
	Query1(s, TransformCol, func(_ ElementID, tr *TransformComponent) { sum += tr.X })
	if sum != 6 {
		t.Fatalf("Query1 sum=%v want 6", sum)
	}
	n := 0
	Query2(s, TransformCol, HealthCol, func(_ ElementID, tr *TransformComponent, h *HealthComponent) {
		n++
		if tr.X != 1 || h.Current != 1 {
			t.Fatalf("Query2 visited x=%v hp=%v", tr.X, h.Current)
		}
	})
	if n != 1 {
		t.Fatalf("Query2 visits=%d want 1", n)
	}
}

func TestFreeSwapsLastIntoHole(t *testing.T) {
	s := NewComponentStorage(8)
	var ids []ElementID
	for i := 1; i <= 3; i++ {
		id, err := s.Create(bundleFor(layoutAB, i))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	if err := s.Free(ids[0]); err != nil {
		t.Fatal(err)
	}
	a, _ := s.Archetype(ids[2])
	if d := a.Dense(ids[2]); d != 0 {
		t.Fatalf("moved element dense=%d want 0", d)
	}
	b, ok := s.Get(ids[2])
	if !ok || !carries(b, 3) {
		t.Fatalf("moved element lost its components: %+v", b)
	}
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
	// removing the last dense element must not corrupt its own slot
	if err := s.Free(ids[1]); err != nil {
		t.Fatal(err)
	}
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len=%d want 1", s.Len())
	}
	if err := s.Free(ids[1]); !errors.Is(err, ErrUnknownElement) {
		t.Fatalf("double free err=%v want ErrUnknownElement", err)
	}
}

func TestCreateErrors(t *testing.T) {
	s := NewComponentStorage(2)
	if _, err := s.Create(Bundle{}); !errors.Is(err, ErrEmptyLayout) {
		t.Fatalf("empty bundle err=%v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := s.Create(bundleFor(layoutA, i)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Create(bundleFor(layoutA, 9)); !errors.Is(err, ErrFull) {
		t.Fatalf("full err=%v want ErrFull", err)
	}
}

func TestMoveChangesArchetype(t *testing.T) {
	s := NewComponentStorage(4)
	id, _ := s.Create(bundleFor(layoutA, 5))
	if err := s.Move(id, bundleFor(layoutAC, 6)); err != nil {
		t.Fatal(err)
	}
	if l, _ := s.Layout(id); l != layoutAC {
		t.Fatalf("layout=%s want %s", l, layoutAC)
	}
	if a, ok := GetComponent(s, AmmoCol, id); !ok || a.Current != 6 {
		t.Fatalf("ammo=%v ok=%v", a, ok)
	}
	if _, ok := GetComponent(s, HealthCol, id); ok {
		t.Fatalf("health present after move")
	}
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestRandomCreateFreeKeepsInvariants(t *testing.T) {
	const capacity = 64
	rng := rand.New(rand.NewSource(7))
	s := NewComponentStorage(capacity)
	live := map[ElementID]int{}
	next := 1

	for op := 0; op < 3000; op++ {
		if len(live) < capacity && (len(live) == 0 || rng.Intn(3) != 0) {
			l := Layout(1 + rng.Intn(1<<int(NumComponentTypes)-1))
			id, err := s.Create(bundleFor(l, next))
			if err != nil {
				t.Fatalf("op %d: Create: %v", op, err)
			}
			if _, dup := live[id]; dup {
				t.Fatalf("op %d: id %d handed out twice", op, id)
			}
			live[id] = next
			next++
		} else {
			var victim ElementID
			k := rng.Intn(len(live))
			for id := range live {
				if k == 0 {
					victim = id
					break
				}
				k--
			}
			if err := s.Free(victim); err != nil {
				t.Fatalf("op %d: Free(%d): %v", op, victim, err)
			}
			delete(live, victim)
		}
		if err := s.Validate(); err != nil {
			t.Fatalf("op %d: %v", op, err)
		}
	}
	if s.Len() != len(live) {
		t.Fatalf("Len=%d want %d", s.Len(), len(live))
	}
	for id, x := range live {
		b, ok := s.Get(id)
		if !ok || !carries(b, x) {
			t.Fatalf("element %d lost value %d: %+v", id, x, b)
		}
	}
}

func TestVehicleStorageRecyclesIDs(t *testing.T) {
	s := NewVehicleStorage(3)
	var ids []VehicleID
	for i := 0; i < 3; i++ {
		id, err := s.Insert(&Vehicle{Elements: []*Element{{ID: ElementID(i)}}})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	if ids[0] != 0 || ids[2] != 2 {
		t.Fatalf("ids=%v want [0 1 2]", ids)
	}
	if _, err := s.Insert(&Vehicle{}); !errors.Is(err, ErrFull) {
		t.Fatalf("err=%v want ErrFull", err)
	}
	if _, ok := s.Free(1); !ok {
		t.Fatalf("Free(1) failed")
	}
	if _, ok := s.OwnerOf(1); ok {
		t.Fatalf("element 1 still owned after free")
	}
	id, _ := s.Insert(&Vehicle{})
	if id != 1 {
		t.Fatalf("recycled id=%d want 1", id)
	}
	var order []VehicleID
	s.Each(func(v *Vehicle) { order = append(order, v.ID) })
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Fatalf("Each order=%v", order)
	}
}

func TestTypeByName(t *testing.T) {
	cases := []struct {
		name string
		want ComponentType
		ok   bool
	}{
		{"ammo", TypeAmmo, true},
		{"fuel", TypeFuel, true},
		{"gun_barrel", TypeGunBarrel, true},
		{"health", TypeHealth, true},
		{"model", TypeModel, true},
		{"seats", TypeSeats, true},
		{"transform", TypeTransform, true},
		{"hitbox", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := TypeByName(c.name)
		if got != c.want || ok != c.ok {
			t.Fatalf("TypeByName(%q)=%v,%v want %v,%v", c.name, got, ok, c.want, c.ok)
		}
		if ok && got.String() != c.name {
			t.Fatalf("String()=%q want %q", got.String(), c.name)
		}
	}
	if NumComponentTypes != 7 {
		t.Fatalf("NumComponentTypes=%d want 7", NumComponentTypes)
	}
}
