package engine

import (
	"xcombat.dev/internal/sim/block"
	"xcombat.dev/internal/sim/damage"
	"xcombat.dev/internal/sim/explosion"
	"xcombat.dev/internal/sim/host"
	"xcombat.dev/internal/sim/projectile"
	"xcombat.dev/internal/sim/vehicle"
)

// healthReader is implemented by hosts that expose mob health.
type healthReader interface {
	Health(id host.EntityID) float64
}

func (e *Engine) gunBlockHit(ws *WorldState, h projectile.BlockHit) {
	g := h.Gun
	switch g.HitBlockHandler {
	case "explosion":
		loc := host.Location{World: ws.Name, X: h.X, Y: h.Y, Z: h.Z}
		e.sound(loc, g.SoundExplosion)
		e.explode(ws, h.X, h.Y, h.Z, h.Shooter, explosion.FromDef(g.Explosion, host.ItemGun, g.ID))
	case "fire":
		e.igniteBlock(ws, h)
	}
}

// igniteBlock lights the hit block on fire with the gun's probability: an
// air block with solid ground burns in place, a solid block burns on top.
func (e *Engine) igniteBlock(ws *WorldState, h projectile.BlockHit) {
	loc := host.Location{World: ws.Name, X: float64(h.BX), Y: float64(h.BY), Z: float64(h.BZ)}
	if !e.host.CanCreateFireAt(loc) || e.rng.Float64() >= h.Gun.HitBlockFireProbability {
		return
	}
	fire := block.Of(block.Fire)
	switch {
	case h.Block.Material == block.Air:
		if ws.Blocks.BlockAt(h.BX, h.BY-1, h.BZ).Material.Solid() {
			ws.Blocks.SetBlock(h.BX, h.BY, h.BZ, fire)
		}
	case h.Block.Material.Solid():
		if ws.Blocks.BlockAt(h.BX, h.BY+1, h.BZ).Material == block.Air {
			ws.Blocks.SetBlock(h.BX, h.BY+1, h.BZ, fire)
		}
	}
}

func (e *Engine) gunEntityHit(ws *WorldState, h projectile.EntityHit) {
	g := h.Gun
	rec := vehicle.KillRecord{Killer: h.Shooter, DamageType: g.ProjectileDamageType, WeaponKind: host.ItemGun, WeaponID: g.ID}
	base := damage.AtDistance(g.ProjectileDamage, h.Distance, g.ProjectileDamageDropStart, g.ProjectileDamageDropRate, g.ProjectileDamageMin)
	switch g.HitEntityHandler {
	case "damage":
		e.hitEntity(h.Target, h.Kind, base, g.ProjectileArmorReduction, g.HitFireTicks, rec)
	case "explosion":
		e.hitEntity(h.Target, h.Kind, base, g.ProjectileArmorReduction, g.HitFireTicks, rec)
		e.sound(host.Location{World: ws.Name, X: h.X, Y: h.Y, Z: h.Z}, g.SoundExplosion)
		e.explode(ws, h.X, h.Y, h.Z, h.Shooter, explosion.FromDef(g.Explosion, host.ItemGun, g.ID))
	}
}

// hitEntity applies direct damage from rec.Killer. Armor stands are vehicle
// carriers and take the raw amount through the vehicle's own health.
// Players are only hurt where the region allows pvp.
func (e *Engine) hitEntity(target host.EntityID, kind host.EntityKind, base, armorReduction float64, fireTicks int, rec vehicle.KillRecord) {
	if kind == host.KindArmorStand {
		e.damageVehicle(target, base, rec)
		return
	}
	ent, ok := e.host.Entity(target)
	if !ok || !ent.Living {
		return
	}
	var armor, health float64
	var victim host.Player
	if ent.Kind == host.KindPlayer {
		p, ok := e.host.Player(target)
		if !ok || !e.host.CanPvpAt(ent.Loc) {
			return
		}
		victim = p
		armor, health = p.Armor(), p.Health()
	} else if hr, ok := e.host.(healthReader); ok {
		health = hr.Health(target)
	}
	vehicleArmor := 0.0
	if ent.Vehicle != host.Nil && e.vehicles != nil {
		vehicleArmor = e.vehicles.PassengerArmor(ent.Vehicle)
	}
	dmg := damage.AfterArmor(base, armor, vehicleArmor, armorReduction)

	if victim != nil {
		e.tagCombat(target, rec.Killer)
		if health > 0 && dmg >= health {
			e.recordDeath(target, rec, ent.Loc)
		}
	}
	e.host.Damage(target, dmg, rec.Killer)
	if fireTicks > 0 {
		e.host.SetFireTicks(target, fireTicks)
	}
}

// damageVehicle hurts the vehicle owning carrier. A destroyed vehicle is
// removed at the end of the tick.
func (e *Engine) damageVehicle(carrier host.EntityID, amount float64, rec vehicle.KillRecord) {
	if e.vehicles == nil {
		return
	}
	e.vehicles.Damage(carrier, amount, rec)
}

// explode runs an explosion against this tick's hitbox index and routes
// the results: carrier hits to vehicles, player hits to combat tags and
// death records.
func (e *Engine) explode(ws *WorldState, x, y, z float64, source host.EntityID, p explosion.Params) {
	for _, r := range e.explosions.Create(ws.Hitboxes, ws.Name, x, y, z, source, p) {
		rec := vehicle.KillRecord{Killer: r.Source, DamageType: r.DamageType, WeaponKind: r.WeaponKind, WeaponID: r.WeaponID}
		if r.Vehicle {
			e.damageVehicle(r.Target, r.Damage, rec)
			continue
		}
		if !r.Player {
			continue
		}
		e.tagCombat(r.Target, source)
		if r.Killed {
			loc := host.Location{World: ws.Name, X: x, Y: y, Z: z}
			if pl, ok := e.host.Player(r.Target); ok {
				loc = pl.Location()
			}
			e.recordDeath(r.Target, rec, loc)
		}
	}
}

func (e *Engine) throwableTimerExpired(ws *WorldState, x ExpiredThrowable) {
	t := x.Throwable
	if t.OnTimerExpired != "explosion" {
		return
	}
	e.sound(x.Location, t.SoundExplosion)
	e.explode(ws, x.Location.X, x.Location.Y, x.Location.Z, x.Source, explosion.FromDef(t.Explosion, host.ItemThrowable, t.ID))
}

func (e *Engine) throwableBlockHit(ws *WorldState, th *ThrownThrowable, at host.Location) {
	t := th.Throwable
	if t.OnBlockHit != "explosion" {
		return
	}
	e.sound(at, t.SoundExplosion)
	e.explode(ws, at.X, at.Y, at.Z, th.Source, explosion.FromDef(t.Explosion, host.ItemThrowable, t.ID))
}

func (e *Engine) throwableEntityHit(ws *WorldState, th *ThrownThrowable, at host.Location, target host.EntityID, kind host.EntityKind) {
	t := th.Throwable
	switch t.OnEntityHit {
	case "damage":
		rec := vehicle.KillRecord{Killer: th.Source, DamageType: t.ThrowDamageType, WeaponKind: host.ItemThrowable, WeaponID: t.ID}
		e.sound(at, t.SoundImpact)
		e.hitEntity(target, kind, t.ThrowDamage, t.ThrowDamageArmorReduction, t.ThrowFireTicks, rec)
	case "explosion":
		e.sound(at, t.SoundExplosion)
		e.explode(ws, at.X, at.Y, at.Z, th.Source, explosion.FromDef(t.Explosion, host.ItemThrowable, t.ID))
	}
}
