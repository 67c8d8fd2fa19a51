// Package hitbox implements entity bounding boxes and the per-tick
// chunk-bucketed index used for projectile, throwable and explosion tests.
package hitbox

import (
	"math"

	"xcombat.dev/internal/sim/chunk"
	"xcombat.dev/internal/sim/host"
)

// Size describes an AABB relative to an entity's feet position.
type Size struct {
	XHalf   float32 `yaml:"x_half" json:"x_half"`
	ZHalf   float32 `yaml:"z_half" json:"z_half"`
	YHeight float32 `yaml:"y_height" json:"y_height"`
	YOffset float32 `yaml:"y_offset" json:"y_offset"`
}

// RadiusMin is the radius of the largest sphere inside the box.
func (s Size) RadiusMin() float32 {
	return min(s.XHalf, s.ZHalf, s.YHeight/2)
}

func (s Size) IsZero() bool { return s.XHalf == 0 && s.ZHalf == 0 && s.YHeight == 0 }

// DefaultSizes returns hitbox sizes for targetable entity kinds. Kinds with a
// zero size are not targetable.
func DefaultSizes() [host.NumEntityKinds]Size {
	var m [host.NumEntityKinds]Size
	m[host.KindPlayer] = Size{0.4, 0.4, 1.8, -0.1}
	m[host.KindZombie] = Size{0.4, 0.4, 2.05, -0.1}
	m[host.KindSkeleton] = Size{0.4, 0.4, 2.1, -0.1}
	m[host.KindVillager] = Size{0.4, 0.4, 2.05, -0.1}
	m[host.KindPig] = Size{0.55, 0.55, 1.0, -0.1}
	m[host.KindCow] = Size{0.55, 0.55, 1.5, -0.1}
	m[host.KindHorse] = Size{0.8, 0.8, 1.7, -0.1}
	return m
}

// Hitbox is an axis aligned box weakly linked to an entity.
type Hitbox struct {
	Entity host.EntityID
	Kind   host.EntityKind

	XMin, YMin, ZMin float32
	XMax, YMax, ZMax float32
	XC, YC, ZC       float32
	RadiusMin        float32

	// LastExplosionID marks the most recent explosion that damaged this box,
	// so a box bucketed into several chunks is only hit once.
	LastExplosionID int
}

// FromEntity builds a hitbox at the entity's location. Sneaking players lose
// 0.2 blocks of height, swimming (crawling) players shrink to 0.9.
func FromEntity(e host.Entity, s Size) *Hitbox {
	x := float32(e.Loc.X)
	y := float32(e.Loc.Y)
	z := float32(e.Loc.Z)

	hb := &Hitbox{
		Entity:          e.ID,
		Kind:            e.Kind,
		XMin:            x - s.XHalf,
		YMin:            y + s.YOffset,
		ZMin:            z - s.ZHalf,
		XMax:            x + s.XHalf,
		ZMax:            z + s.ZHalf,
		RadiusMin:       s.RadiusMin(),
		LastExplosionID: -1,
	}
	hb.YMax = hb.YMin + s.YHeight
	if e.Kind == host.KindPlayer {
		if e.Sneaking {
			hb.YMax -= 0.2
		} else if e.Swimming {
			hb.YMax = hb.YMin + 0.9
		}
	}
	hb.XC = 0.5 * (hb.XMin + hb.XMax)
	hb.YC = 0.5 * (hb.YMin + hb.YMax)
	hb.ZC = 0.5 * (hb.ZMin + hb.ZMax)
	return hb
}

func (h *Hitbox) Contains(x, y, z float32) bool {
	return x >= h.XMin && x <= h.XMax &&
		y >= h.YMin && y <= h.YMax &&
		z >= h.ZMin && z <= h.ZMax
}

// InvDir returns per-axis inverse direction components. Zero components map
// to MaxFloat32 so the slab test never multiplies 0 by Inf.
func InvDir(dx, dy, dz float32) (float32, float32, float32) {
	inv := func(v float32) float32 {
		if v == 0 {
			return math.MaxFloat32
		}
		return 1 / v
	}
	return inv(dx), inv(dy), inv(dz)
}

// IntersectRay runs the slab test and returns the forward distance along the
// ray to the box entry (0 when the origin is inside).
func (h *Hitbox) IntersectRay(rx, ry, rz, invX, invY, invZ float32) (float32, bool) {
	tx1 := (h.XMin - rx) * invX
	tx2 := (h.XMax - rx) * invX
	tmin := min(tx1, tx2)
	tmax := max(tx1, tx2)

	ty1 := (h.YMin - ry) * invY
	ty2 := (h.YMax - ry) * invY
	tmin = max(tmin, min(ty1, ty2))
	tmax = min(tmax, max(ty1, ty2))

	tz1 := (h.ZMin - rz) * invZ
	tz2 := (h.ZMax - rz) * invZ
	tmin = max(tmin, min(tz1, tz2))
	tmax = min(tmax, max(tz1, tz2))

	tmin = max(0, tmin)
	if tmax >= tmin {
		return tmin, true
	}
	return 0, false
}

// Distance is the distance from the box center to (x, y, z).
func (h *Hitbox) Distance(x, y, z float32) float32 {
	dx, dy, dz := x-h.XC, y-h.YC, z-h.ZC
	return float32(math.Sqrt(float64(dx*dx + dy*dy + dz*dz)))
}

// DistanceToLine returns the distance from the box center to the line
// a + t*n (n must be unit length) and the signed t of the closest point.
func (h *Hitbox) DistanceToLine(ax, ay, az, nx, ny, nz float32) (dist float32, along float32) {
	px, py, pz := h.XC-ax, h.YC-ay, h.ZC-az
	along = px*nx + py*ny + pz*nz
	dx := px - along*nx
	dy := py - along*ny
	dz := pz - along*nz
	return float32(math.Sqrt(float64(dx*dx + dy*dy + dz*dz))), along
}

// Index buckets hitboxes by every 3D chunk they overlap.
type Index map[chunk.Coord3D][]*Hitbox

// Add inserts hb into all intersecting chunk sections.
func (idx Index) Add(hb *Hitbox) {
	cxmin := int(math.Floor(float64(hb.XMin))) >> 4
	cymin := int(math.Floor(float64(hb.YMin))) >> 4
	czmin := int(math.Floor(float64(hb.ZMin))) >> 4
	cxmax := int(math.Ceil(float64(hb.XMax))) >> 4
	cymax := int(math.Ceil(float64(hb.YMax))) >> 4
	czmax := int(math.Ceil(float64(hb.ZMax))) >> 4
	for cx := cxmin; cx <= cxmax; cx++ {
		for cy := cymin; cy <= cymax; cy++ {
			for cz := czmin; cz <= czmax; cz++ {
				c := chunk.Coord3D{X: cx, Y: cy, Z: cz}
				idx[c] = append(idx[c], hb)
			}
		}
	}
}

func (idx Index) Query(c chunk.Coord3D) []*Hitbox { return idx[c] }

// Remove drops every bucket entry owned by id.
func (idx Index) Remove(id host.EntityID) {
	for c, list := range idx {
		out := list[:0]
		for _, hb := range list {
			if hb.Entity != id {
				out = append(out, hb)
			}
		}
		if len(out) == 0 {
			delete(idx, c)
		} else {
			idx[c] = out
		}
	}
}

// Find returns the first box owned by id.
func (idx Index) Find(id host.EntityID) *Hitbox {
	for _, list := range idx {
		for _, hb := range list {
			if hb.Entity == id {
				return hb
			}
		}
	}
	return nil
}
