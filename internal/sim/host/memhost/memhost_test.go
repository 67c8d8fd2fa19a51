package memhost

import (
	"testing"

	"xcombat.dev/internal/sim/chunk"
	"xcombat.dev/internal/sim/host"
	"xcombat.dev/internal/sim/voxel"
)

func TestDamageKillsMobAndMarksPlayerDead(t *testing.T) {
	h := New()
	mob := h.AddMob(host.KindZombie, host.Location{World: "w", X: 1}, 5)
	p := h.AddPlayer("bob", host.Location{World: "w"})

	h.Damage(mob, 6, p.ID())
	if _, ok := h.Entity(mob); ok {
		t.Fatalf("mob still present")
	}
	h.Damage(p.ID(), 25, mob)
	if !p.Dead() {
		t.Fatalf("player not dead")
	}
	if got := len(h.Damages()); got != 2 {
		t.Fatalf("damages=%d want 2", got)
	}
}

func TestEntitiesInChunk(t *testing.T) {
	h := New()
	h.AddMob(host.KindPig, host.Location{World: "w", X: 3, Z: 3}, 10)
	h.AddMob(host.KindPig, host.Location{World: "w", X: 17, Z: 3}, 10)
	h.AddMob(host.KindPig, host.Location{World: "other", X: 3, Z: 3}, 10)
	if got := len(h.EntitiesInChunk("w", chunk.Coord{})); got != 1 {
		t.Fatalf("chunk 0,0=%d want 1", got)
	}
	if got := len(h.EntitiesInChunk("w", chunk.Coord{X: 1})); got != 1 {
		t.Fatalf("chunk 1,0=%d want 1", got)
	}
}

func TestItemEntityFallsAndLands(t *testing.T) {
	h := New()
	world := voxel.NewFlat(voxel.Gen{GroundY: 4, RadiusChunks: 1})
	h.AttachWorld("w", world)
	id := h.SpawnItem(host.Location{World: "w", X: 0.5, Y: 8, Z: 0.5}, host.Item{Kind: host.ItemThrowable, Amount: 1}, [3]float64{0.2, 0, 0})
	for i := 0; i < 100; i++ {
		h.Step()
	}
	e, ok := h.Entity(id)
	if !ok {
		t.Fatalf("item gone")
	}
	if e.Loc.Y != 4 {
		t.Fatalf("y=%v want 4 (resting on ground)", e.Loc.Y)
	}
	if e.Vel != [3]float64{} {
		t.Fatalf("vel=%v want zero", e.Vel)
	}
	if !world.BlockAt(e.Loc.BlockX(), 3, e.Loc.BlockZ()).Material.Solid() {
		t.Fatalf("ground below not solid")
	}
}

func TestInventory(t *testing.T) {
	h := New()
	p := h.AddPlayer("c", host.Location{})
	p.AddItem(host.Item{Kind: host.ItemAmmo, Model: 2, Amount: 3})
	p.AddItem(host.Item{Kind: host.ItemAmmo, Model: 2, Amount: 2})
	if n := p.CountItems(host.ItemAmmo, 2); n != 5 {
		t.Fatalf("count=%d want 5", n)
	}
	if p.RemoveItems(host.ItemAmmo, 2, 6) {
		t.Fatalf("removed more than held")
	}
	if !p.RemoveItems(host.ItemAmmo, 2, 4) || p.CountItems(host.ItemAmmo, 2) != 1 {
		t.Fatalf("remove 4 failed")
	}
}
