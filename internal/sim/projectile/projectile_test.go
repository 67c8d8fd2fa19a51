package projectile

import (
	"math"
	"testing"

	"xcombat.dev/internal/sim/block"
	"xcombat.dev/internal/sim/catalogs"
	"xcombat.dev/internal/sim/chunk"
	"xcombat.dev/internal/sim/hitbox"
	"xcombat.dev/internal/sim/host"
	"xcombat.dev/internal/sim/host/memhost"
	"xcombat.dev/internal/sim/voxel"
)

type fixture struct {
	world *voxel.Store
	host  *memhost.Host
	reg   *hitbox.Registry
	sys   *System
}

func newFixture() *fixture {
	f := &fixture{
		world: voxel.NewFlat(voxel.Gen{Seed: 1, GroundY: 4, RadiusChunks: 2}),
		host:  memhost.New(),
		reg:   hitbox.NewRegistry(hitbox.DefaultSizes()),
	}
	f.sys = NewSystem(Config{World: "w", Blocks: f.world, Entities: f.host, Hitboxes: f.reg})
	return f
}

func gun(speed, gravity float32) *catalogs.Gun {
	g := catalogs.DefaultGun()
	g.ProjectileVelocity = speed
	g.ProjectileGravity = gravity
	return &g
}

func TestBlockHitOneBlockAway(t *testing.T) {
	f := newFixture()
	f.world.SetBlock(1, 10, 0, block.Of(block.Stone))
	f.sys.AddProjectile(New(gun(16, 0.025), host.Nil, 0.5, 10.5, 0.5, 1, 0, 0))

	_, blocks, entities := f.sys.Update(chunk.NewSet(0))
	if len(blocks) != 1 || len(entities) != 0 {
		t.Fatalf("blocks=%d entities=%d want 1,0", len(blocks), len(entities))
	}
	b := blocks[0]
	if b.BX != 1 || b.BY != 10 || b.BZ != 0 || b.Block.Material != block.Stone {
		t.Fatalf("hit=%+v want stone at 1,10,0", b)
	}
	if math.Abs(b.X-1) > 1e-3 {
		t.Fatalf("impact x=%v want 1", b.X)
	}
	if n := f.sys.Len(); n != 0 {
		t.Fatalf("live=%d want 0 after hit", n)
	}
	if imp := f.sys.Impacts(); len(imp) != 1 || !imp[0].Block {
		t.Fatalf("impacts=%+v", imp)
	}
}

func TestEntityHitSkipsSource(t *testing.T) {
	f := newFixture()
	shooter := f.host.AddPlayer("shooter", host.Location{World: "w", X: 0.5, Y: 10, Z: 0.5})
	zombie := f.host.AddMob(host.KindZombie, host.Location{World: "w", X: 5, Y: 10, Z: 0.5}, 20)

	f.sys.AddProjectile(New(gun(16, 0), shooter.ID(), 0.5, 11, 0.5, 1, 0, 0))
	index, blocks, entities := f.sys.Update(nil)
	if len(blocks) != 0 || len(entities) != 1 {
		t.Fatalf("blocks=%d entities=%d want 0,1", len(blocks), len(entities))
	}
	h := entities[0]
	if h.Target != zombie || h.Shooter != shooter.ID() {
		t.Fatalf("hit=%+v want zombie by shooter", h)
	}
	if math.Abs(h.Distance-4.1) > 1e-3 {
		t.Fatalf("distance=%v want 4.1", h.Distance)
	}
	if index.Find(shooter.ID()) == nil || index.Find(zombie) == nil {
		t.Fatalf("index missing hitboxes")
	}
}

func TestNearestHitWins(t *testing.T) {
	f := newFixture()
	f.world.SetBlock(3, 11, 0, block.Of(block.Stone))
	f.host.AddMob(host.KindZombie, host.Location{World: "w", X: 5, Y: 10, Z: 0.5}, 20)
	f.sys.AddProjectile(New(gun(16, 0), host.Nil, 0.5, 11.5, 0.5, 1, 0, 0))
	_, blocks, entities := f.sys.Update(nil)
	if len(blocks) != 1 || len(entities) != 0 {
		t.Fatalf("blocks=%d entities=%d want wall first", len(blocks), len(entities))
	}

	// zombie in front of the wall
	f2 := newFixture()
	f2.world.SetBlock(8, 11, 0, block.Of(block.Stone))
	f2.host.AddMob(host.KindZombie, host.Location{World: "w", X: 5, Y: 10, Z: 0.5}, 20)
	f2.sys.AddProjectile(New(gun(16, 0), host.Nil, 0.5, 11.5, 0.5, 1, 0, 0))
	_, blocks, entities = f2.sys.Update(nil)
	if len(blocks) != 0 || len(entities) != 1 {
		t.Fatalf("blocks=%d entities=%d want zombie first", len(blocks), len(entities))
	}
}

func TestVehicleOfSourceIgnored(t *testing.T) {
	f := newFixture()
	stand := f.host.AddArmorStand(host.Location{World: "w", X: 3, Y: 10, Z: 0.5})
	f.reg.SetCustom(stand, hitbox.Size{XHalf: 1, ZHalf: 1, YHeight: 3})
	rider := f.host.AddPlayer("rider", host.Location{World: "w", X: 0.5, Y: 10, Z: 0.5})
	f.host.Mount(rider.ID(), stand)

	f.sys.AddProjectile(New(gun(16, 0), rider.ID(), 0.5, 11, 0.5, 1, 0, 0))
	if _, _, entities := f.sys.Update(nil); len(entities) != 0 {
		t.Fatalf("hit own vehicle: %+v", entities)
	}

	other := f.host.AddPlayer("other", host.Location{World: "w", X: -5, Y: 10, Z: 0.5})
	f.sys.AddProjectile(New(gun(16, 0), other.ID(), -5, 11, 0.5, 1, 0, 0))
	_, _, entities := f.sys.Update(nil)
	if len(entities) != 1 || entities[0].Target != rider.ID() {
		t.Fatalf("entities=%+v want rider", entities)
	}
}

func TestProximityFuse(t *testing.T) {
	for _, tc := range []struct {
		proximity float32
		hits      int
	}{
		{0, 0},
		{1, 1},
	} {
		f := newFixture()
		f.host.AddMob(host.KindZombie, host.Location{World: "w", X: 5, Y: 10, Z: 1.5}, 20)
		g := gun(16, 0)
		g.ProjectileProximity = tc.proximity
		// zombie box center is at y 10.925, one block to the side of the path
		f.sys.AddProjectile(New(g, host.Nil, 0.5, 10.925, 0.5, 1, 0, 0))
		if _, _, e := f.sys.Update(nil); len(e) != tc.hits {
			t.Fatalf("proximity=%v hits=%d want %d", tc.proximity, len(e), tc.hits)
		}
	}
}

func TestLifetimeAndBounds(t *testing.T) {
	f := newFixture()
	g := gun(1, 0)
	g.ProjectileLifetime = 2
	f.sys.AddProjectile(New(g, host.Nil, 0.5, 20, 0.5, 1, 0, 0))
	for i, want := range []int{1, 1, 0} {
		f.sys.Update(nil)
		if n := f.sys.Len(); n != want {
			t.Fatalf("update %d live=%d want %d", i, n, want)
		}
	}
	if tr := f.sys.Trails(); len(tr) != 3 {
		t.Fatalf("trails=%d want 3", len(tr))
	}

	// flies out of the loaded area
	f.sys.AddProjectile(New(gun(16, 0), host.Nil, 30, 20, 0.5, 1, 0, 0))
	f.sys.Update(nil)
	if n := f.sys.Len(); n != 0 {
		t.Fatalf("live=%d want 0 after leaving loaded chunks", n)
	}

	g = gun(4, 0)
	g.ProjectileMaxDistance = 6
	f.sys.AddProjectile(New(g, host.Nil, 0.5, 20, 0.5, 0, 0, 1))
	f.sys.Update(nil)
	if f.sys.Len() != 1 {
		t.Fatalf("projectile died before max distance")
	}
	f.sys.Update(nil)
	if f.sys.Len() != 0 {
		t.Fatalf("projectile outlived max distance")
	}
}

func TestGravityBendsPath(t *testing.T) {
	f := newFixture()
	p := New(gun(1, 0.5), host.Nil, 0.5, 20, 0.5, 1, 0, 0)
	f.sys.AddProjectile(p)
	f.sys.Update(nil)
	if p.Y != 19.75 || p.VelY != -0.5 {
		t.Fatalf("y=%v vy=%v want 19.75 -0.5", p.Y, p.VelY)
	}
}

func TestVisitedChunksExtended(t *testing.T) {
	f := newFixture()
	visited := chunk.NewSet(4)
	visited.Add(chunk.Coord{X: -2, Z: -2})
	f.sys.AddProjectile(New(gun(1, 0), host.Nil, 0.5, 20, 0.5, 1, 0, 0))
	f.sys.Update(visited)
	if !visited.Has(chunk.Coord{X: 0, Z: 0}) || !visited.Has(chunk.Coord{X: -2, Z: -2}) {
		t.Fatalf("visited=%v", visited.Slice())
	}
	if visited.Has(chunk.Coord{X: 2, Z: 0}) {
		t.Fatalf("unloaded chunk added")
	}
}
