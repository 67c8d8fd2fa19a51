package hitbox

import (
	"testing"

	"xcombat.dev/internal/sim/chunk"
	"xcombat.dev/internal/sim/host"
)

func player(x, y, z float64) host.Entity {
	return host.Entity{ID: host.NewEntityID(), Kind: host.KindPlayer, Loc: host.Location{X: x, Y: y, Z: z}, Living: true}
}

func TestFromEntityPose(t *testing.T) {
	size := DefaultSizes()[host.KindPlayer]
	e := player(0, 64, 0)
	hb := FromEntity(e, size)
	if h := hb.YMax - hb.YMin; h < 1.7999 || h > 1.8001 {
		t.Fatalf("height=%v want 1.8", h)
	}
	if hb.YMin > 64 || hb.YMin < 63.8 {
		t.Fatalf("ymin=%v want 63.9", hb.YMin)
	}
	e.Sneaking = true
	if got := FromEntity(e, size).YMax; got != hb.YMax-0.2 {
		t.Fatalf("sneak ymax=%v want %v", got, hb.YMax-0.2)
	}
	e.Sneaking = false
	e.Swimming = true
	if got := FromEntity(e, size).YMax; got != hb.YMin+0.9 {
		t.Fatalf("swim ymax=%v want %v", got, hb.YMin+0.9)
	}
	if r := size.RadiusMin(); r != 0.4 {
		t.Fatalf("radius=%v want 0.4", r)
	}
}

func TestIntersectRay(t *testing.T) {
	hb := FromEntity(player(5, 0, 0), Size{0.5, 0.5, 2, 0})
	ix, iy, iz := InvDir(1, 0, 0)
	d, ok := hb.IntersectRay(0, 1, 0, ix, iy, iz)
	if !ok || d != 4.5 {
		t.Fatalf("hit=%v d=%v want 4.5", ok, d)
	}
	// ray pointing away
	ix, iy, iz = InvDir(-1, 0, 0)
	if _, ok := hb.IntersectRay(0, 1, 0, ix, iy, iz); ok {
		t.Fatalf("expected miss behind origin")
	}
	// origin inside clamps to 0
	ix, iy, iz = InvDir(0, 0, 1)
	if d, ok := hb.IntersectRay(5, 1, 0, ix, iy, iz); !ok || d != 0 {
		t.Fatalf("inside hit=%v d=%v", ok, d)
	}
}

func TestDistanceToLine(t *testing.T) {
	hb := FromEntity(player(3, 0, 2), Size{0.5, 0.5, 2, -1})
	d, along := hb.DistanceToLine(0, 0, 0, 1, 0, 0)
	if d != 2 || along != 3 {
		t.Fatalf("d=%v along=%v want 2,3", d, along)
	}
}

func TestIndexSpansChunks(t *testing.T) {
	idx := Index{}
	hb := FromEntity(player(15.8, 10, 0.5), DefaultSizes()[host.KindPlayer])
	idx.Add(hb)
	for _, c := range []chunk.Coord3D{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}} {
		if len(idx.Query(c)) != 1 {
			t.Fatalf("chunk %+v missing hitbox", c)
		}
	}
	idx.Remove(hb.Entity)
	if len(idx) != 0 {
		t.Fatalf("index not empty after remove: %d", len(idx))
	}
}

func TestRegistrySizeFor(t *testing.T) {
	r := NewRegistry(DefaultSizes())
	stand := host.Entity{ID: host.NewEntityID(), Kind: host.KindArmorStand}
	if _, ok := r.SizeFor(stand); ok {
		t.Fatalf("plain armor stand should not be targetable")
	}
	r.SetCustom(stand.ID, Size{1, 1, 1, 0})
	if s, ok := r.SizeFor(stand); !ok || s.XHalf != 1 {
		t.Fatalf("custom size=%+v ok=%v", s, ok)
	}
	if _, ok := r.SizeFor(host.Entity{Kind: host.KindItem}); ok {
		t.Fatalf("items are not targetable")
	}
}
