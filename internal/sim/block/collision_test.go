package block

import (
	"math/rand"
	"testing"
)

func TestEveryMaterialHasHandler(t *testing.T) {
	r := Default()
	for m := Material(0); m < NumMaterials; m++ {
		if r.handlers[m] == nil {
			t.Fatalf("material %s has no handler", m)
		}
		if m.String() == "unknown" {
			t.Fatalf("material %d has no name", m)
		}
	}
}

// Every shape state with random segments must produce 0, a partial value,
// or NoHit. Never negative, never NaN.
func TestResolveSentinelRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tables := []*Resolver{Default(), Default().PassthroughDoors()}
	heights := []WallHeight{WallNone, WallLow, WallTall}

	for _, r := range tables {
		for m := Material(0); m < NumMaterials; m++ {
			for f := North; f <= West; f++ {
				for h := Bottom; h <= Top; h++ {
					for sl := SlabBottom; sl <= SlabDouble; sl++ {
						for st := StairStraight; st <= StairOuterRight; st++ {
							for hi := HingeLeft; hi <= HingeRight; hi++ {
								for _, open := range []bool{false, true} {
									s := State{Material: m, Facing: f, Half: h, Slab: sl, Stairs: st, Hinge: hi, Open: open}
									for i := range s.Walls {
										s.Walls[i] = heights[rng.Intn(3)]
									}
									for k := 0; k < 8; k++ {
										x0 := 3 + rng.Float32()
										y0 := 70 + rng.Float32()
										z0 := -5 + rng.Float32()
										dx, dy, dz := rng.Float32()*2-1, rng.Float32()*2-1, rng.Float32()*2-1
										if k == 0 {
											dx, dy, dz = 1, 0, 0
										}
										d := rng.Float32() * 1.8
										v := r.Resolve(s, 3, 70, -5, x0, y0, z0, dx, dy, dz, d)
										if v != v || v < 0 {
											t.Fatalf("%s state=%+v got %v", m, s, v)
										}
										if v != 0 && v != NoHit && !(v > 0 && v < NoHit) {
											t.Fatalf("%s out of range: %v", m, v)
										}
									}
								}
							}
						}
					}
				}
			}
		}
	}
}

func TestFamilyBehaviour(t *testing.T) {
	r := Default()
	// segment along +X through the middle of block (0, 0, 0)
	mid := func(s State, y, z float32) float32 {
		return r.Resolve(s, 0, 0, 0, 0, y, z, 1, 0, 0, 1)
	}

	if v := mid(Of(Stone), 0.5, 0.5); v != 0 {
		t.Fatalf("stone=%v want 0", v)
	}
	if v := mid(Of(Air), 0.5, 0.5); v != NoHit {
		t.Fatalf("air=%v want NoHit", v)
	}
	for _, m := range []Material{Snow, Scaffolding, TallGrass, Leaves, Glass, Water, Carpet} {
		if v := mid(Of(m), 0.5, 0.5); v != NoHit {
			t.Fatalf("%s=%v want NoHit", m, v)
		}
	}
	if v := mid(Of(Anvil), 0.9, 0.5); v != 0 {
		t.Fatalf("anvil=%v want 0", v)
	}

	bottom := State{Material: Slab, Slab: SlabBottom}
	if v := mid(bottom, 0.8, 0.5); v != NoHit {
		t.Fatalf("above bottom slab=%v want NoHit", v)
	}
	if v := mid(bottom, 0.2, 0.5); v != 0 {
		t.Fatalf("through bottom slab=%v want 0", v)
	}
	if v := mid(State{Material: Slab, Slab: SlabDouble}, 0.9, 0.5); v != 0 {
		t.Fatalf("double slab=%v want 0", v)
	}
	// descending segment entering the lower half
	if v := r.Resolve(bottom, 0, 0, 0, 0, 0.9, 0.5, 0.6, -0.8, 0, 1); v != 0.5 {
		t.Fatalf("descending into slab=%v want 0.5", v)
	}
}

func TestDoors(t *testing.T) {
	r := Default()
	closedNorth := State{Material: Door, Facing: North}
	// door panel lies against the south face (z > 0.75)
	if v := r.Resolve(closedNorth, 0, 0, 0, 0, 0.5, 0.9, 1, 0, 0, 1); v != 0 {
		t.Fatalf("closed door=%v want 0", v)
	}
	if v := r.Resolve(closedNorth, 0, 0, 0, 0, 0.5, 0.5, 1, 0, 0, 1); v != NoHit {
		t.Fatalf("beside closed door=%v want NoHit", v)
	}
	// segment moving south enters the panel partway
	if v := r.Resolve(closedNorth, 0, 0, 0, 0.5, 0.5, 0.1, 0, 0, 1, 1); v != 0.75 {
		t.Fatalf("entering door=%v want 0.75", v)
	}

	openRight := State{Material: Door, Facing: North, Open: true, Hinge: HingeRight}
	if v := r.Resolve(openRight, 0, 0, 0, 0.9, 0.5, 0, 0, 0, 1, 1); v != 0 {
		t.Fatalf("open right-hinge door on east face=%v want 0", v)
	}
	openLeft := State{Material: Door, Facing: North, Open: true, Hinge: HingeLeft}
	if v := r.Resolve(openLeft, 0, 0, 0, 0.1, 0.5, 0, 0, 0, 1, 1); v != 0 {
		t.Fatalf("open left-hinge door on west face=%v want 0", v)
	}

	pass := r.PassthroughDoors()
	if v := pass.Resolve(closedNorth, 0, 0, 0, 0, 0.5, 0.9, 1, 0, 0, 1); v != NoHit {
		t.Fatalf("passthrough door=%v want NoHit", v)
	}
	if v := pass.Resolve(Of(Stone), 0, 0, 0, 0, 0.5, 0.5, 1, 0, 0, 1); v != 0 {
		t.Fatalf("passthrough stone=%v want 0", v)
	}

	closedTrap := State{Material: Trapdoor, Half: Bottom}
	if v := r.Resolve(closedTrap, 0, 0, 0, 0, 0.1, 0.5, 1, 0, 0, 1); v != 0 {
		t.Fatalf("closed bottom trapdoor=%v want 0", v)
	}
	if v := r.Resolve(closedTrap, 0, 0, 0, 0, 0.6, 0.5, 1, 0, 0, 1); v != NoHit {
		t.Fatalf("above trapdoor=%v want NoHit", v)
	}
}

func TestStairs(t *testing.T) {
	r := Default()
	east := State{Material: Stairs, Facing: East, Half: Bottom}
	// upper half, moving +X: enters the raised back half at x > 0.5
	if v := r.Resolve(east, 0, 0, 0, 0, 0.7, 0.5, 1, 0, 0, 1); v != 0.5 {
		t.Fatalf("straight east=%v want 0.5", v)
	}
	// lower half is always solid
	if v := r.Resolve(east, 0, 0, 0, 0, 0.2, 0.5, 1, 0, 0, 1); v != 0 {
		t.Fatalf("stair base=%v want 0", v)
	}
	west := State{Material: Stairs, Facing: West, Half: Bottom}
	if v := r.Resolve(west, 0, 0, 0, 0.2, 0.7, 0.5, 0, 0, 1, 0.5); v != 0 {
		t.Fatalf("straight west back half=%v want 0", v)
	}
	outer := State{Material: Stairs, Facing: East, Half: Bottom, Stairs: StairOuterLeft}
	// crosses the (x > 0.5, z < 0.5) quadrant with both endpoints outside
	d := float32(0.7071)
	if v := r.Resolve(outer, 0, 0, 0, 0.45, 0.7, 0.05, 0.7071, 0, 0.7071, d); v != 0.5*d {
		t.Fatalf("outer corner midpoint=%v want %v", v, 0.5*d)
	}
	if v := r.Resolve(outer, 0, 0, 0, 0.1, 0.7, 0.6, 1, 0, 0, 0.3); v != NoHit {
		t.Fatalf("outer corner miss=%v want NoHit", v)
	}
}

func TestWallsAndFences(t *testing.T) {
	r := Default()
	post := State{Material: Wall}
	if v := r.Resolve(post, 0, 0, 0, 0, 0.5, 0.5, 1, 0, 0, 1); v != 0.25 {
		t.Fatalf("wall post=%v want 0.25", v)
	}
	if v := r.Resolve(post, 0, 0, 0, 0, 0.5, 0.1, 1, 0, 0, 1); v != NoHit {
		t.Fatalf("unconnected wall edge=%v want NoHit", v)
	}
	withNorth := post
	withNorth.Walls[North] = WallTall
	v := r.Resolve(withNorth, 0, 0, 0, 0, 0.5, 0.1, 1, 0, 0, 1)
	if v != 0.25 {
		t.Fatalf("north stub=%v want 0.25", v)
	}
	if v := r.Resolve(Of(Fence), 0, 0, 0, 0, 0.5, 0.5, 1, 0, 0, 1); v == NoHit {
		t.Fatalf("fence post missed")
	}
	if v := r.Resolve(Of(Fence), 0, 0, 0, 0, 0.5, 0.2, 1, 0, 0, 1); v != NoHit {
		t.Fatalf("fence edge=%v want NoHit", v)
	}
}

func TestNewResolverOverrides(t *testing.T) {
	r := NewResolver(map[string]string{"glass": "solid", "nope": "solid", "stone": "bogus"}, nil)
	if v := r.Resolve(Of(Glass), 0, 0, 0, 0, 0.5, 0.5, 1, 0, 0, 1); v != 0 {
		t.Fatalf("glass override=%v want 0", v)
	}
	if v := r.Resolve(Of(Stone), 0, 0, 0, 0, 0.5, 0.5, 1, 0, 0, 1); v != 0 {
		t.Fatalf("stone kept default=%v want 0", v)
	}
	if _, ok := HandlerByName("stairs"); !ok {
		t.Fatalf("stairs handler missing")
	}
}
