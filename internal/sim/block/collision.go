package block

import (
	"fmt"
	"log"
	"math"
	"sort"
)

// NoHit is the "ray passes through" sentinel.
const NoHit float32 = math.MaxFloat32

// Handler tests a ray segment against the block at (bx, by, bz).
// (x0, y0, z0) is the segment start in world space, (dx, dy, dz) the unit
// direction and d the segment length.
//
// The result is 0 for a hit at segment start, NoHit for no collision, and
// any value in between for a hit somewhere inside the cell. The in-between
// value only positions impact particles; callers must treat every value
// other than NoHit as a collision.
type Handler func(s State, bx, by, bz int, x0, y0, z0, dx, dy, dz, d float32) float32

func noCollision(State, int, int, int, float32, float32, float32, float32, float32, float32, float32) float32 {
	return NoHit
}

func solidCollision(State, int, int, int, float32, float32, float32, float32, float32, float32, float32) float32 {
	return 0
}

func occludingCollision(s State, _, _, _ int, _, _, _, _, _, _, _ float32) float32 {
	if s.Material.Occluding() {
		return 0
	}
	return NoHit
}

// halfTest checks whether a segment with local start/end heights y0, y1 enters
// the lower (top=false) or upper half of the cell split at plane.
func halfTest(top bool, plane, y0, y1, partial float32) float32 {
	if top {
		if y0 > plane {
			return 0
		} else if y1 > plane {
			return partial
		}
		return NoHit
	}
	if y0 < plane {
		return 0
	} else if y1 < plane {
		return partial
	}
	return NoHit
}

func slabCollision(s State, _, by, _ int, _, y0, _, _, dy, _, d float32) float32 {
	if s.Slab == SlabDouble {
		return 0
	}
	ly0 := y0 - float32(by)
	ly1 := ly0 + d*dy
	return halfTest(s.Slab == SlabTop, 0.5, ly0, ly1, 0.5*d)
}

// lowBlockCollision handles beds and daylight detectors: a bottom half slab.
func lowBlockCollision(_ State, _, by, _ int, _, y0, _, _, dy, _, d float32) float32 {
	ly0 := y0 - float32(by)
	return halfTest(false, 0.5, ly0, ly0+d*dy, 0.5*d)
}

// quarterTest checks whether a segment enters the quarter-thick slab lying
// against the given face of the cell.
func quarterTest(side Facing, x0, z0, x1, z1, partial float32) float32 {
	switch side {
	case North:
		if z0 < 0.25 {
			return 0
		} else if z1 < 0.25 {
			return partial
		}
	case South:
		if z0 > 0.75 {
			return 0
		} else if z1 > 0.75 {
			return partial
		}
	case West:
		if x0 < 0.25 {
			return 0
		} else if x1 < 0.25 {
			return partial
		}
	case East:
		if x0 > 0.75 {
			return 0
		} else if x1 > 0.75 {
			return partial
		}
	}
	return NoHit
}

func doorCollision(s State, bx, _, bz int, x0, _, z0, dx, _, dz, d float32) float32 {
	lx0 := x0 - float32(bx)
	lz0 := z0 - float32(bz)
	lx1 := lx0 + d*dx
	lz1 := lz0 + d*dz

	// A closed door sits against the face opposite its facing; an open door
	// swings a quarter turn around its hinge.
	side := s.Facing.Opposite()
	if s.Open {
		if s.Hinge == HingeRight {
			side = s.Facing.Clockwise()
		} else {
			side = s.Facing.CounterClockwise()
		}
	}
	return quarterTest(side, lx0, lz0, lx1, lz1, 0.75*d)
}

func trapdoorCollision(s State, bx, by, bz int, x0, y0, z0, dx, dy, dz, d float32) float32 {
	if s.Open {
		lx0 := x0 - float32(bx)
		lz0 := z0 - float32(bz)
		return quarterTest(s.Facing.Opposite(), lx0, lz0, lx0+d*dx, lz0+d*dz, 0.75*d)
	}
	ly0 := y0 - float32(by)
	ly1 := ly0 + d*dy
	if s.Half == Bottom {
		return halfTest(false, 0.25, ly0, ly1, 0.75*d)
	}
	return halfTest(true, 0.75, ly0, ly1, 0.75*d)
}

// stairFrame rotates local (x, z) into a frame where u runs along the stair
// facing and w runs toward the stair's right side.
func stairFrame(f Facing, x, z float32) (u, w float32) {
	switch f {
	case East:
		return x, z
	case West:
		return 1 - x, 1 - z
	case North:
		return 1 - z, x
	default: // South
		return z, 1 - x
	}
}

func stairsCollision(s State, bx, by, bz int, x0, y0, z0, dx, dy, dz, d float32) float32 {
	ly0 := y0 - float32(by)
	ly1 := ly0 + d*dy
	if r := halfTest(s.Half == Top, 0.5, ly0, ly1, 0.5*d); r != NoHit {
		return r
	}

	lx0 := x0 - float32(bx)
	lz0 := z0 - float32(bz)
	lx1 := lx0 + d*dx
	lz1 := lz0 + d*dz
	u0, w0 := stairFrame(s.Facing, lx0, lz0)
	u1, w1 := stairFrame(s.Facing, lx1, lz1)
	um, wm := 0.5*(u0+u1), 0.5*(w0+w1)

	back := func(u float32) bool { return u > 0.5 }
	left := func(w float32) bool { return w < 0.5 }
	right := func(w float32) bool { return w > 0.5 }

	var in func(u, w float32) bool
	outer := false
	switch s.Stairs {
	case StairStraight:
		in = func(u, _ float32) bool { return back(u) }
	case StairInnerLeft:
		in = func(u, w float32) bool { return back(u) || left(w) }
	case StairInnerRight:
		in = func(u, w float32) bool { return back(u) || right(w) }
	case StairOuterLeft:
		in = func(u, w float32) bool { return back(u) && left(w) }
		outer = true
	case StairOuterRight:
		in = func(u, w float32) bool { return back(u) && right(w) }
		outer = true
	default:
		return 0
	}

	if in(u0, w0) {
		return 0
	}
	if in(u1, w1) {
		return 0.5 * d
	}
	// Outer corners are a single quadrant: a segment can cut through it with
	// both endpoints outside, so the midpoint is tested as an approximation.
	if outer && in(um, wm) {
		return 0.5 * d
	}
	return NoHit
}

// aabb2D is a slab test in the (x, z) plane, limited to [0, d].
func aabb2D(xmin, zmin, xmax, zmax, rx, rz, dx, dz, d float32) float32 {
	tmin := float32(0)
	tmax := d
	axis := func(lo, hi, r, dir float32) bool {
		if dir == 0 {
			return r >= lo && r <= hi
		}
		inv := 1 / dir
		t1 := (lo - r) * inv
		t2 := (hi - r) * inv
		tmin = max(tmin, min(t1, t2))
		tmax = min(tmax, max(t1, t2))
		return true
	}
	if !axis(xmin, xmax, rx, dx) || !axis(zmin, zmax, rz, dz) {
		return NoHit
	}
	if tmax >= tmin {
		return tmin
	}
	return NoHit
}

// wallStubs are the per-face boxes of a wall, indexed by Facing.
var wallStubs = [4][4]float32{
	North: {0.25, 0, 0.75, 0.75},
	East:  {0.25, 0.25, 1, 0.75},
	South: {0.25, 0.25, 0.75, 1},
	West:  {0, 0.25, 0.75, 0.75},
}

func wallCollision(s State, bx, _, bz int, x0, _, z0, dx, _, dz, d float32) float32 {
	lx0 := x0 - float32(bx)
	lz0 := z0 - float32(bz)
	xm := lx0 + 0.5*d*dx
	zm := lz0 + 0.5*d*dz
	if xm > 0.25 && xm < 0.75 && zm > 0.25 && zm < 0.75 {
		return 0.25 * d
	}
	for f := North; f <= West; f++ {
		if s.Walls[f] == WallNone {
			continue
		}
		b := wallStubs[f]
		if hit := aabb2D(b[0], b[1], b[2], b[3], lx0, lz0, dx, dz, d); hit != NoHit {
			return hit
		}
	}
	return NoHit
}

func fenceCollision(_ State, bx, _, bz int, x0, _, z0, dx, _, dz, d float32) float32 {
	xm := x0 - float32(bx) + 0.5*d*dx
	zm := z0 - float32(bz) + 0.5*d*dz
	if xm > 0.375 && xm < 0.625 && zm > 0.375 && zm < 0.625 {
		return 0.3 * d
	}
	return NoHit
}

var namedHandlers = map[string]Handler{
	"none":      noCollision,
	"solid":     solidCollision,
	"occluding": occludingCollision,
	"slab":      slabCollision,
	"half":      lowBlockCollision,
	"door":      doorCollision,
	"trapdoor":  trapdoorCollision,
	"stairs":    stairsCollision,
	"wall":      wallCollision,
	"fence":     fenceCollision,
}

// HandlerByName resolves a handler for config overrides.
func HandlerByName(name string) (Handler, bool) {
	h, ok := namedHandlers[name]
	return h, ok
}

func HandlerNames() []string {
	out := make([]string, 0, len(namedHandlers))
	for k := range namedHandlers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func familyHandler(f Family) Handler {
	switch f {
	case FamilyOpen:
		return noCollision
	case FamilySolid:
		return solidCollision
	case FamilySlab:
		return slabCollision
	case FamilyHalf:
		return lowBlockCollision
	case FamilyDoor:
		return doorCollision
	case FamilyTrapdoor:
		return trapdoorCollision
	case FamilyStairs:
		return stairsCollision
	case FamilyWall:
		return wallCollision
	case FamilyFence:
		return fenceCollision
	default:
		return occludingCollision
	}
}

// Resolver maps every material to a collision handler. Tables are built once
// at load time; lookups are a single array index per ray step.
type Resolver struct {
	handlers [NumMaterials]Handler
}

// Default builds the standard table from material families.
func Default() *Resolver {
	r := &Resolver{}
	for m := Material(0); m < NumMaterials; m++ {
		r.handlers[m] = familyHandler(m.Family())
	}
	return r
}

// NewResolver builds the default table then applies material -> handler name
// overrides. Unknown materials or handler names are logged and ignored.
func NewResolver(overrides map[string]string, logger *log.Logger) *Resolver {
	r := Default()
	names := make([]string, 0, len(overrides))
	for k := range overrides {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, mat := range names {
		hname := overrides[mat]
		m, ok := MaterialByName(mat)
		if !ok {
			logf(logger, "WARN block_collision: unknown material %q", mat)
			continue
		}
		h, ok := HandlerByName(hname)
		if !ok {
			logf(logger, "WARN block_collision: unknown handler %q for %s", hname, mat)
			continue
		}
		r.handlers[m] = h
	}
	return r
}

// PassthroughDoors clones r with doors and trapdoors made non-colliding.
func (r *Resolver) PassthroughDoors() *Resolver {
	out := &Resolver{handlers: r.handlers}
	for m := Material(0); m < NumMaterials; m++ {
		switch m.Family() {
		case FamilyDoor, FamilyTrapdoor:
			out.handlers[m] = noCollision
		}
	}
	return out
}

// Handler returns the table entry for m, falling back to the occluding test
// for materials outside the table.
func (r *Resolver) Handler(m Material) Handler {
	if m < NumMaterials && r.handlers[m] != nil {
		return r.handlers[m]
	}
	return occludingCollision
}

// Resolve runs the material handler and clamps the result into the
// documented range: 0, (0, NoHit), or NoHit.
func (r *Resolver) Resolve(s State, bx, by, bz int, x0, y0, z0, dx, dy, dz, d float32) float32 {
	v := r.Handler(s.Material)(s, bx, by, bz, x0, y0, z0, dx, dy, dz, d)
	switch {
	case v != v, v < 0:
		return 0
	case v > NoHit:
		return NoHit
	}
	return v
}

func logf(logger *log.Logger, format string, args ...any) {
	if logger != nil {
		logger.Printf(format, args...)
		return
	}
	log.Print(fmt.Sprintf(format, args...))
}
