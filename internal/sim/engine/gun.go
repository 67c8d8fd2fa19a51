package engine

import (
	"time"

	"xcombat.dev/internal/sim/catalogs"
	"xcombat.dev/internal/sim/host"
	"xcombat.dev/internal/sim/projectile"
	"xcombat.dev/internal/sim/queue"
	"xcombat.dev/internal/sim/tasks"
)

// staleReloadMillis is added to a gun's reload time before a reload that
// never reported back is treated as broken.
const staleReloadMillis = 1000

// ShootDelay holds the earliest time a player may fire again. After is the
// end of the gun's own delay; CanShoot may be pushed past it by the equip
// delay when switching guns.
type ShootDelay struct {
	After    int64
	CanShoot int64
}

// BurstFire is an in-progress burst. ID must match the held item's burst
// tag or the burst is dropped.
type BurstFire struct {
	ID              int64
	Player          host.EntityID
	Gun             *catalogs.Gun
	TotalTicks      int
	TicksSinceFired int
	Remaining       int
}

// AutoFire is an in-progress automatic fire sequence kept alive by repeated
// requests.
type AutoFire struct {
	ID                    int64
	Player                host.EntityID
	Gun                   *catalogs.Gun
	TotalTicks            int
	TicksSinceFired       int
	TicksSinceLastRequest int
}

type recoilState struct {
	Multiplier float64
	Recovery   float64
}

func useADS(p host.Player) bool { return p.Sneaking() && p.AimDownSights() }

// gunModel picks the visual model for a gun holding ammo rounds.
func gunModel(g *catalogs.Gun, ammo int, ads bool) int {
	switch {
	case ammo <= 0 && g.ModelEmpty > 0:
		return g.ModelEmpty
	case ads && g.ModelADS > 0:
		return g.ModelADS
	}
	return g.ModelDefault
}

func ammoOf(it host.Item) int { return int(it.Int(catalogs.TagAmmo, 0)) }

func isReloading(it host.Item) bool { return it.Int(catalogs.TagReloading, 0) == 1 }

func clearReload(it host.Item) host.Item {
	return it.Without(catalogs.TagReloading, catalogs.TagReloadID, catalogs.TagReloadStarted)
}

func (e *Engine) heldGun(p host.Player) (host.Item, *catalogs.Gun, bool) {
	it, ok := p.HeldItem()
	if !ok {
		return host.Item{}, nil, false
	}
	g := e.cat.GunOf(it)
	return it, g, g != nil
}

// reloadFresh reports whether a reloading item is still inside its reload
// window. Past it the reload is assumed lost.
func (e *Engine) reloadFresh(it host.Item, g *catalogs.Gun) bool {
	if !it.Has(catalogs.TagReloadStarted) {
		return false
	}
	return e.nowMs < it.Int(catalogs.TagReloadStarted, 0)+g.ReloadTimeMillis+staleReloadMillis
}

func (e *Engine) underShootDelay(id host.EntityID) bool {
	d, ok := e.shootDelay[id]
	return ok && e.nowMs < d.CanShoot
}

func (e *Engine) setShootDelay(id host.EntityID, g *catalogs.Gun) {
	after := e.nowMs + g.ShootDelayMillis
	e.shootDelay[id] = ShootDelay{After: after, CanShoot: after}
}

func (e *Engine) ammoInfo(id host.EntityID, ammo int, g *catalogs.Gun) {
	e.out.AmmoInfo = append(e.out.AmmoInfo, AmmoInfo{Player: id, Ammo: ammo, Max: g.AmmoMax})
}

// fireOnce spends a round from the held gun and launches its projectiles.
// It reports the rounds left, or false when nothing was fired.
func (e *Engine) fireOnce(p host.Player, it host.Item, g *catalogs.Gun, repeating bool) (int, bool) {
	loc := p.Location()
	ws, ok := e.worlds[loc.World]
	if !ok {
		return 0, false
	}
	ammo := ammoOf(it)
	if ammo <= 0 {
		e.ammoInfo(p.ID(), ammo, g)
		e.sound(loc, g.SoundEmpty)
		if !g.AmmoIgnore {
			return 0, false
		}
	}
	newAmmo := max(0, ammo-1)
	it = it.With(catalogs.TagAmmo, int64(newAmmo)).With(catalogs.TagModel, int64(gunModel(g, newAmmo, useADS(p))))
	p.SetItemAt(p.HeldSlot(), it)
	if repeating && newAmmo == 0 {
		e.sound(loc, g.SoundEmpty)
	}
	e.ammoInfo(p.ID(), newAmmo, g)

	e.launch(ws, p.ID(), p.ID(), g, p.EyeLocation(), nil)
	e.sound(loc, g.SoundShoot)
	e.kick(p.ID(), g)
	return newAmmo, true
}

// launch adds the gun's projectiles fired from eye along its look direction.
// Multi-projectile guns jitter each direction component by up to the
// spread. source is excluded from hits, shooter is credited for them.
func (e *Engine) launch(ws *WorldState, source, shooter host.EntityID, g *catalogs.Gun, eye host.Location, exclude func(host.EntityID) bool) {
	dx, dy, dz := eye.Direction()
	n := max(1, g.ProjectileCount)
	ps := make([]*projectile.Projectile, 0, n)
	for range n {
		jx, jy, jz := float32(dx), float32(dy), float32(dz)
		if g.ProjectileSpread > 0 {
			jx += g.ProjectileSpread * (2*e.rng.Float32() - 1)
			jy += g.ProjectileSpread * (2*e.rng.Float32() - 1)
			jz += g.ProjectileSpread * (2*e.rng.Float32() - 1)
		}
		pr := projectile.New(g, source, float32(eye.X), float32(eye.Y), float32(eye.Z), jx, jy, jz)
		pr.Shooter = shooter
		pr.Exclude = exclude
		ps = append(ps, pr)
	}
	ws.Projectiles.AddProjectiles(ps)
}

// kick emits a recoil packet scaled by the player's current multiplier and
// ramps the multiplier for sustained fire.
func (e *Engine) kick(id host.EntityID, g *catalogs.Gun) {
	r, ok := e.recoil[id]
	if !ok {
		r = &recoilState{Multiplier: 1}
		e.recoil[id] = r
	}
	if g.RecoilVertical != 0 || g.RecoilHorizontal != 0 {
		e.out.Recoil = append(e.out.Recoil, Recoil{
			Player:     id,
			Vertical:   g.RecoilVertical * r.Multiplier,
			Horizontal: g.RecoilHorizontal * r.Multiplier,
			Multiplier: r.Multiplier,
		})
	}
	r.Recovery = g.RecoilRecoveryRate
	if g.RecoilAutoFireRamp > 0 {
		r.Multiplier = min(r.Multiplier+g.RecoilAutoFireRamp, max(1, g.RecoilMaxMultiplier))
	}
}

func (e *Engine) recoilRecoverySystem() {
	for id, r := range e.recoil {
		r.Multiplier -= r.Recovery
		if r.Recovery <= 0 || r.Multiplier <= 1 {
			delete(e.recoil, id)
		}
	}
}

func (e *Engine) adsSystem() {
	for _, id := range queue.Swap(&e.req.ads) {
		e.guard("ads", id, func() {
			p, ok := e.player(id)
			if !ok || !p.AimDownSights() {
				return
			}
			it, g, ok := e.heldGun(p)
			if !ok || g.ModelADS <= 0 || isReloading(it) || ammoOf(it) <= 0 {
				return
			}
			model := g.ModelDefault
			if p.Sneaking() {
				model = g.ModelADS
			}
			p.SetItemAt(p.HeldSlot(), it.With(catalogs.TagModel, int64(model)))
		})
	}
}

// playerCleanupSystem strips reload flags and the sights model from the held
// gun when a player logs out or dies.
func (e *Engine) playerCleanupSystem() {
	for _, id := range queue.Swap(&e.req.cleanup) {
		e.guard("player cleanup", id, func() {
			p, ok := e.host.Player(id)
			if !ok {
				return
			}
			it, g, ok := e.heldGun(p)
			if !ok {
				return
			}
			it = clearReload(it).With(catalogs.TagModel, int64(gunModel(g, ammoOf(it), false)))
			p.SetItemAt(p.HeldSlot(), it)
		})
	}
}

func (e *Engine) itemCleanupSystem() {
	for _, r := range queue.Swap(&e.req.itemCleanup) {
		e.guard("item cleanup", r.Player, func() {
			it, ok := e.host.ItemOf(r.Entity)
			if !ok {
				return
			}
			g := e.cat.GunOf(it)
			if g == nil {
				return
			}
			e.host.SetItemOf(r.Entity, clearReload(it).With(catalogs.TagModel, int64(gunModel(g, ammoOf(it), false))))
		})
	}
}

// selectSystem handles swapping to a gun: leftover reload flags are cleared
// and the equip delay is added on top of the last shot's delay.
func (e *Engine) selectSystem() {
	for _, id := range queue.Swap(&e.req.selects) {
		e.guard("select", id, func() {
			p, ok := e.player(id)
			if !ok {
				return
			}
			it, g, ok := e.heldGun(p)
			if !ok {
				return
			}
			ads := useADS(p)
			it = clearReload(it).With(catalogs.TagModel, int64(gunModel(g, ammoOf(it), ads)))
			p.SetItemAt(p.HeldSlot(), it)
			if d, ok := e.shootDelay[id]; ok {
				d.CanShoot = d.After + g.EquipDelayMillis
				e.shootDelay[id] = d
			}
			if it.Has(catalogs.TagAmmo) {
				e.ammoInfo(id, ammoOf(it), g)
			}
		})
	}
}

func (e *Engine) reloadSystem() {
	for _, id := range queue.Swap(&e.req.reload) {
		e.guard("reload", id, func() { e.startReload(id) })
	}
}

func (e *Engine) startReload(id host.EntityID) {
	p, ok := e.player(id)
	if !ok {
		return
	}
	it, g, ok := e.heldGun(p)
	if !ok {
		return
	}
	if _, ok := e.burstFiring[id]; ok {
		return
	}
	if _, ok := e.autoFiring[id]; ok {
		return
	}
	if isReloading(it) && e.reloadFresh(it, g) {
		return
	}
	if ammoOf(it) >= g.AmmoMax {
		return
	}
	if p.CountItems(host.ItemAmmo, g.AmmoID) < 1 {
		e.status(id, "[No ammo in inventory]")
		return
	}

	e.nextReloadID++
	rid := e.nextReloadID
	slot := p.HeldSlot()
	it = it.With(catalogs.TagReloading, 1).
		With(catalogs.TagReloadID, rid).
		With(catalogs.TagReloadStarted, e.nowMs)
	if g.ModelReload > 0 {
		it = it.With(catalogs.TagModel, int64(g.ModelReload))
	}
	p.SetItemAt(slot, it)
	e.sound(p.Location(), g.SoundReloadStart)

	if h := e.reloadTasks[id]; h != nil {
		h.Cancel()
	}
	e.reloadTasks[id] = e.runner.Start(&tasks.ReloadTask{
		Player:    p,
		GunID:     g.ID,
		ReloadID:  rid,
		Slot:      slot,
		Started:   e.now(),
		Duration:  time.Duration(g.ReloadTimeMillis) * time.Millisecond,
		Finished:  &e.reloadFinished,
		Cancelled: &e.reloadCancelled,
		Status:    e.status,
	})
}

// finishReload fills the gun once its reload task completes. The held slot
// and reload id must still match, so a swapped item is never refilled.
func (e *Engine) finishReload(f tasks.ReloadFinish) {
	e.forgetReloadTask(f.Player)
	p, ok := e.player(f.Player)
	if !ok {
		return
	}
	g := e.cat.Gun(f.GunID)
	if g == nil {
		return
	}
	it, ok := p.HeldItem()
	if !ok || p.HeldSlot() != f.Slot || it.Int(catalogs.TagReloadID, -1) != f.ReloadID {
		e.status(f.Player, "[Item changed, reload cancelled]")
		return
	}
	ads := useADS(p)
	if !p.RemoveItems(host.ItemAmmo, g.AmmoID, 1) {
		e.status(f.Player, "[No ammo in inventory]")
		p.SetItemAt(f.Slot, clearReload(it).With(catalogs.TagModel, int64(gunModel(g, ammoOf(it), ads))))
		return
	}
	it = clearReload(it).
		With(catalogs.TagAmmo, int64(g.AmmoMax)).
		With(catalogs.TagModel, int64(gunModel(g, g.AmmoMax, ads)))
	p.SetItemAt(f.Slot, it)
	e.ammoInfo(f.Player, g.AmmoMax, g)
	e.sound(p.Location(), g.SoundReloadFinish)
}

func (e *Engine) cancelReload(c tasks.ReloadCancel) {
	e.forgetReloadTask(c.Player)
	p, ok := e.host.Player(c.Player)
	if !ok {
		return
	}
	if it, ok := p.ItemAt(c.Slot); ok && it.Int(catalogs.TagReloadID, -1) == c.ReloadID {
		it = clearReload(it)
		if g := e.cat.Gun(c.GunID); g != nil {
			it = it.With(catalogs.TagModel, int64(gunModel(g, ammoOf(it), useADS(p))))
		}
		p.SetItemAt(c.Slot, it)
	}
	if !c.PlayerDied {
		e.status(c.Player, "Reload cancelled...")
	}
}

func (e *Engine) forgetReloadTask(id host.EntityID) {
	if h := e.reloadTasks[id]; h != nil && h.Cancelled() {
		delete(e.reloadTasks, id)
	}
}

// reloadCompletionSystem applies reload outcomes reported by tasks since the
// last tick.
func (e *Engine) reloadCompletionSystem() {
	for _, f := range e.reloadFinished.GetAndEmpty() {
		e.guard("reload finish", f.Player, func() { e.finishReload(f) })
	}
	for _, c := range e.reloadCancelled.GetAndEmpty() {
		e.guard("reload cancel", c.Player, func() { e.cancelReload(c) })
	}
}

// autoFireRequestSystem starts an automatic fire sequence or keeps the
// current one alive.
func (e *Engine) autoFireRequestSystem() {
	for _, id := range queue.Swap(&e.req.autoFire) {
		e.guard("auto fire request", id, func() {
			if e.underShootDelay(id) {
				return
			}
			if a, ok := e.autoFiring[id]; ok {
				a.TicksSinceLastRequest = 0
				return
			}
			p, ok := e.player(id)
			if !ok {
				return
			}
			it, g, ok := e.heldGun(p)
			if !ok {
				return
			}
			if g.CrawlRequired && !e.crawlReady[id] {
				e.req.crawlToShoot = append(e.req.crawlToShoot, id)
				return
			}
			if isReloading(it) {
				if e.reloadFresh(it, g) {
					return
				}
				it = clearReload(it)
			}
			e.nextAutoID++
			e.autoFiring[id] = &AutoFire{ID: e.nextAutoID, Player: id, Gun: g}
			p.SetItemAt(p.HeldSlot(), it.With(catalogs.TagAutoFireID, e.nextAutoID))
		})
	}
}

func (e *Engine) shootSystem() {
	for _, id := range queue.Swap(&e.req.shoot) {
		e.guard("shoot", id, func() { e.shoot(id) })
	}
}

func (e *Engine) shoot(id host.EntityID) {
	p, ok := e.player(id)
	if !ok {
		return
	}
	it, g, ok := e.heldGun(p)
	if !ok {
		return
	}
	if _, ok := e.worlds[p.Location().World]; !ok {
		return
	}
	if g.CrawlRequired && !e.crawlReady[id] {
		e.req.crawlToShoot = append(e.req.crawlToShoot, id)
		return
	}
	if isReloading(it) {
		if e.reloadFresh(it, g) {
			return
		}
		it = clearReload(it)
		p.SetItemAt(p.HeldSlot(), it)
	}
	if e.underShootDelay(id) {
		return
	}

	switch g.SingleFireMode {
	case catalogs.FireNone:
	case catalogs.FireBurst:
		if _, firing := e.burstFiring[id]; firing {
			return
		}
		e.nextBurstID++
		e.burstFiring[id] = &BurstFire{ID: e.nextBurstID, Player: id, Gun: g, Remaining: g.BurstFireCount}
		p.SetItemAt(p.HeldSlot(), it.With(catalogs.TagBurstFireID, e.nextBurstID))
	default:
		if _, fired := e.fireOnce(p, it, g, false); fired {
			e.setShootDelay(id, g)
		}
	}
}

func (e *Engine) burstFireSystem() {
	next := make(map[host.EntityID]*BurstFire, len(e.burstFiring))
	for _, id := range sortedIDs(e.burstFiring) {
		b := e.burstFiring[id]
		e.guard("burst fire", id, func() {
			if e.stepBurst(b) {
				next[id] = b
			}
		})
	}
	e.burstFiring = next
}

// stepBurst fires the next round of a burst. It reports whether the burst
// continues next tick.
func (e *Engine) stepBurst(b *BurstFire) bool {
	p, ok := e.player(b.Player)
	if !ok {
		return false
	}
	it, ok := p.HeldItem()
	if !ok || it.Int(catalogs.TagBurstFireID, -1) != b.ID {
		return false
	}
	b.TotalTicks++
	if b.TicksSinceFired > 0 {
		b.TicksSinceFired--
		return true
	}
	newAmmo, fired := e.fireOnce(p, it, b.Gun, true)
	if !fired {
		return false
	}
	if b.Remaining > 1 && (newAmmo > 0 || b.Gun.AmmoIgnore) {
		b.TicksSinceFired = b.Gun.BurstFireDelayTicks
		b.Remaining--
		return true
	}
	e.setShootDelay(b.Player, b.Gun)
	return false
}

func (e *Engine) autoFireSystem() {
	next := make(map[host.EntityID]*AutoFire, len(e.autoFiring))
	for _, id := range sortedIDs(e.autoFiring) {
		a := e.autoFiring[id]
		e.guard("auto fire", id, func() {
			if e.stepAutoFire(a) {
				next[id] = a
			}
		})
	}
	e.autoFiring = next
}

func (e *Engine) stepAutoFire(a *AutoFire) bool {
	if a.TicksSinceLastRequest >= e.tun.AutoFireMaxTicksSinceRequest {
		return false
	}
	p, ok := e.player(a.Player)
	if !ok {
		return false
	}
	it, ok := p.HeldItem()
	if !ok || it.Int(catalogs.TagAutoFireID, -1) != a.ID {
		return false
	}
	a.TotalTicks++
	if a.TicksSinceFired > 0 {
		a.TicksSinceFired--
		a.TicksSinceLastRequest++
		return true
	}
	newAmmo, fired := e.fireOnce(p, it, a.Gun, true)
	if !fired {
		return false
	}
	if a.Gun.AmmoIgnore || newAmmo > 0 {
		a.TicksSinceFired = a.Gun.AutoFireDelayTicks
		a.TicksSinceLastRequest++
		return true
	}
	return false
}
