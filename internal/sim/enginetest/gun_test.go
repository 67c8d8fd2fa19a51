package enginetest

import (
	"testing"
	"time"

	"xcombat.dev/internal/sim/catalogs"
	"xcombat.dev/internal/sim/engine"
	"xcombat.dev/internal/sim/host"
)

func gunCatalog(mod func(*catalogs.Gun)) (*catalogs.Catalogs, catalogs.Gun) {
	g := catalogs.DefaultGun()
	g.ID = 1
	g.ModelDefault = 100
	if mod != nil {
		mod(&g)
	}
	cats := catalogs.Empty()
	cats.PutGun(g)
	return cats, g
}

func ammo(h *Harness, p host.Player) int64 {
	h.T.Helper()
	return h.Held(p).Int(catalogs.TagAmmo, -1)
}

func TestShootConsumesAmmoAndHitsTarget(t *testing.T) {
	cats, g := gunCatalog(nil)
	h := New(t, Options{Catalogs: cats})
	p := h.AddPlayer("alice", 0.5, 0.5)
	p.SetItemAt(0, GunItem(g, 5))
	zombie := h.Host.AddMob(host.KindZombie, host.Location{World: World, X: 0.5, Y: GroundY, Z: 8.5}, 100)

	h.Submit(p, engine.ActShoot)
	h.Step()

	if got := ammo(h, p); got != 4 {
		t.Fatalf("ammo=%d want 4", got)
	}
	if got := h.Host.Health(zombie); got != 96 {
		t.Fatalf("zombie health=%v want 96", got)
	}
	batches := h.Out.Take()
	trails := 0
	for _, b := range batches {
		trails += len(b.Trails)
	}
	if trails == 0 {
		t.Fatalf("no projectile trail emitted")
	}
	var info []engine.AmmoInfo
	for _, b := range batches {
		info = append(info, b.AmmoInfo...)
	}
	if len(info) == 0 || info[len(info)-1].Text() != "Ammo [4/10]" {
		t.Fatalf("ammo info=%v want Ammo [4/10]", info)
	}
}

func TestShootDelay(t *testing.T) {
	cats, g := gunCatalog(nil)
	h := New(t, Options{Catalogs: cats})
	p := h.AddPlayer("alice", 0.5, 0.5)
	p.SetItemAt(0, GunItem(g, 5))

	h.Submit(p, engine.ActShoot)
	h.Step()
	h.Submit(p, engine.ActShoot)
	h.Step()
	if got := ammo(h, p); got != 4 {
		t.Fatalf("ammo inside shoot delay=%d want 4", got)
	}

	h.Clock.Advance(time.Duration(g.ShootDelayMillis) * time.Millisecond)
	h.Submit(p, engine.ActShoot)
	h.Step()
	if got := ammo(h, p); got != 3 {
		t.Fatalf("ammo after delay=%d want 3", got)
	}
}

func TestEmptyGunClicks(t *testing.T) {
	cats, g := gunCatalog(nil)
	h := New(t, Options{Catalogs: cats})
	p := h.AddPlayer("alice", 0.5, 0.5)
	p.SetItemAt(0, GunItem(g, 0))

	h.Submit(p, engine.ActShoot)
	h.Step()

	sounds := Sounds(h.Out.Take())
	found := false
	for _, s := range sounds {
		if s == g.SoundEmpty.Name {
			found = true
		}
	}
	if !found {
		t.Fatalf("sounds=%v want %s", sounds, g.SoundEmpty.Name)
	}
}

func TestReloadFinishesAfterReloadTime(t *testing.T) {
	cats, g := gunCatalog(nil)
	h := New(t, Options{Catalogs: cats})
	p := h.AddPlayer("alice", 0.5, 0.5)
	p.SetItemAt(0, GunItem(g, 0))
	p.SetItemAt(1, AmmoItem(g.AmmoID, 5))

	h.Submit(p, engine.ActReload)
	h.Step()
	if !h.Held(p).Has(catalogs.TagReloading) {
		t.Fatalf("gun not marked reloading")
	}

	h.Step()
	if got := ammo(h, p); got != 0 {
		t.Fatalf("ammo before reload time=%d want 0", got)
	}

	h.Clock.Advance(time.Duration(g.ReloadTimeMillis) * time.Millisecond)
	h.Step()
	if got := ammo(h, p); got != int64(g.AmmoMax) {
		t.Fatalf("ammo=%d want %d", got, g.AmmoMax)
	}
	if h.Held(p).Has(catalogs.TagReloading) {
		t.Fatalf("reload tags left on gun")
	}
	if got := p.CountItems(host.ItemAmmo, g.AmmoID); got != 4 {
		t.Fatalf("ammo items=%d want 4", got)
	}
}

// A shot requested in the tick a reload completes is handled before the
// completion, so it is rejected as reloading.
func TestShootBeforeReloadCompletionInSameTick(t *testing.T) {
	cats, g := gunCatalog(nil)
	h := New(t, Options{Catalogs: cats})
	p := h.AddPlayer("alice", 0.5, 0.5)
	p.SetItemAt(0, GunItem(g, 0))
	p.SetItemAt(1, AmmoItem(g.AmmoID, 5))

	h.Submit(p, engine.ActReload)
	h.Step()
	h.Out.Take()

	h.Clock.Advance(2 * time.Second)
	h.Submit(p, engine.ActShoot)
	h.Step()

	if got := ammo(h, p); got != int64(g.AmmoMax) {
		t.Fatalf("ammo=%d want %d", got, g.AmmoMax)
	}
	for _, b := range h.Out.Take() {
		if len(b.Trails) > 0 {
			t.Fatalf("shot fired while reloading")
		}
	}
}

func TestReloadWithoutAmmoItems(t *testing.T) {
	cats, g := gunCatalog(nil)
	h := New(t, Options{Catalogs: cats})
	p := h.AddPlayer("alice", 0.5, 0.5)
	p.SetItemAt(0, GunItem(g, 0))

	h.Submit(p, engine.ActReload)
	h.Step()
	if h.Held(p).Has(catalogs.TagReloading) {
		t.Fatalf("reload started with no ammo items")
	}
}

func TestBurstFire(t *testing.T) {
	cats, g := gunCatalog(func(g *catalogs.Gun) {
		g.SingleFireMode = catalogs.FireBurst
		g.BurstFireCount = 3
		g.BurstFireDelayTicks = 2
	})
	h := New(t, Options{Catalogs: cats})
	p := h.AddPlayer("alice", 0.5, 0.5)
	p.SetItemAt(0, GunItem(g, 10))

	h.Submit(p, engine.ActShoot)
	h.Step()
	if got := ammo(h, p); got != 9 {
		t.Fatalf("ammo after first tick=%d want 9", got)
	}
	h.StepN(6)
	if got := ammo(h, p); got != 7 {
		t.Fatalf("ammo after burst=%d want 7", got)
	}
	h.StepN(10)
	if got := ammo(h, p); got != 7 {
		t.Fatalf("burst kept firing: ammo=%d want 7", got)
	}
}

func TestBurstStopsOnEmptyMagazine(t *testing.T) {
	cats, g := gunCatalog(func(g *catalogs.Gun) {
		g.SingleFireMode = catalogs.FireBurst
		g.BurstFireCount = 5
		g.BurstFireDelayTicks = 0
	})
	h := New(t, Options{Catalogs: cats})
	p := h.AddPlayer("alice", 0.5, 0.5)
	p.SetItemAt(0, GunItem(g, 2))

	h.Submit(p, engine.ActShoot)
	h.StepN(10)
	if got := ammo(h, p); got != 0 {
		t.Fatalf("ammo=%d want 0", got)
	}
}

func TestAutoFireNeedsHeldTrigger(t *testing.T) {
	cats, g := gunCatalog(func(g *catalogs.Gun) {
		g.AutoFire = true
		g.AutoFireDelayTicks = 2
	})
	h := New(t, Options{Catalogs: cats})
	p := h.AddPlayer("alice", 0.5, 0.5)
	p.SetItemAt(0, GunItem(g, 10))

	for range 7 {
		h.Submit(p, engine.ActShoot)
		h.Step()
	}
	if got := ammo(h, p); got != 7 {
		t.Fatalf("ammo while holding trigger=%d want 7", got)
	}

	h.StepN(10)
	settled := ammo(h, p)
	if settled < 6 {
		t.Fatalf("auto fire ran on after release: ammo=%d", settled)
	}
	h.StepN(10)
	if got := ammo(h, p); got != settled {
		t.Fatalf("ammo=%d want %d", got, settled)
	}
}

func TestCrawlRequiredGun(t *testing.T) {
	cats, g := gunCatalog(func(g *catalogs.Gun) {
		g.CrawlRequired = true
		g.CrawlTimeMillis = 1000
	})
	h := New(t, Options{Catalogs: cats})
	p := h.AddPlayer("alice", 0.5, 0.5)
	p.SetItemAt(0, GunItem(g, 5))

	h.Submit(p, engine.ActShoot)
	h.Step()
	if got := ammo(h, p); got != 5 {
		t.Fatalf("fired before crawling: ammo=%d", got)
	}
	if !h.Held(p).Has(catalogs.TagCrawlID) {
		t.Fatalf("crawl not requested")
	}

	h.Step()
	h.Clock.Advance(time.Duration(g.CrawlTimeMillis) * time.Millisecond)
	h.Step()

	h.Submit(p, engine.ActShoot)
	h.Step()
	if got := ammo(h, p); got != 4 {
		t.Fatalf("ammo after crawl=%d want 4", got)
	}
}

func TestCrawlRequestReplacesTask(t *testing.T) {
	cats, g := gunCatalog(func(g *catalogs.Gun) {
		g.CrawlRequired = true
		g.CrawlTimeMillis = 100_000
	})
	h := New(t, Options{Catalogs: cats})
	p := h.AddPlayer("alice", 0.5, 0.5)
	p.SetItemAt(0, GunItem(g, 5))

	h.Submit(p, engine.ActShoot)
	h.Step()
	first := h.Held(p).Int(catalogs.TagCrawlID, -1)

	h.Clock.Advance(3 * time.Second)
	h.Submit(p, engine.ActShoot)
	h.Step()
	second := h.Held(p).Int(catalogs.TagCrawlID, -1)
	if second == first {
		t.Fatalf("crawl id=%d not replaced", second)
	}

	h.StepN(5)
	h.Submit(p, engine.ActShoot)
	h.Step()
	if got := ammo(h, p); got != 5 {
		t.Fatalf("fired mid-crawl: ammo=%d want 5", got)
	}

	h.Clock.Advance(time.Duration(g.CrawlTimeMillis) * time.Millisecond)
	h.Step()
	h.Submit(p, engine.ActShoot)
	h.Step()
	if got := ammo(h, p); got != 4 {
		t.Fatalf("ammo after crawl=%d want 4", got)
	}
}
