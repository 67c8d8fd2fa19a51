// Package explosion applies area damage around a point using the per-tick
// hitbox index.
package explosion

import (
	"math"

	"xcombat.dev/internal/sim/catalogs"
	"xcombat.dev/internal/sim/chunk"
	"xcombat.dev/internal/sim/damage"
	"xcombat.dev/internal/sim/hitbox"
	"xcombat.dev/internal/sim/host"
)

type Params struct {
	MaxDistance        float64
	Damage             float64
	Radius             float64
	Falloff            float64
	ArmorReduction     float64
	BlastProtReduction float64
	DamageType         damage.Type
	BlockDamagePower   float64
	FireTicks          int
	Particles          *catalogs.Particles

	// Death tracking metadata.
	WeaponKind host.ItemKind
	WeaponID   int
}

// FromDef converts an item explosion definition. A particle burst with zero
// count is dropped.
func FromDef(d catalogs.Explosion, kind host.ItemKind, id int) Params {
	p := Params{
		MaxDistance:        d.MaxDistance,
		Damage:             d.Damage,
		Radius:             d.Radius,
		Falloff:            d.Falloff,
		ArmorReduction:     d.ArmorReduction,
		BlastProtReduction: d.BlastProtReduction,
		DamageType:         d.DamageType,
		BlockDamagePower:   d.BlockDamagePower,
		FireTicks:          d.FireTicks,
		WeaponKind:         kind,
		WeaponID:           id,
	}
	if d.Particles.Count > 0 && d.Particles.Type != "" {
		pt := d.Particles
		p.Particles = &pt
	}
	return p
}

// Result is the damage one hitbox took from an explosion.
type Result struct {
	ExplosionID int
	Target      host.EntityID
	Kind        host.EntityKind
	Source      host.EntityID
	Distance    float64

	// Vehicle is set for armor stand carriers. Damage is then the raw hat
	// profile value and the vehicle system applies its own armor.
	Vehicle bool
	Damage  float64

	Player bool
	Killed bool

	DamageType damage.Type
	WeaponKind host.ItemKind
	WeaponID   int
}

type BlockDamage struct {
	World   string
	X, Y, Z float64
	Power   float64
}

type Burst struct {
	World     string
	X, Y, Z   float64
	Particles catalogs.Particles
}

type Engine struct {
	Entities   host.EntityOracle
	Players    host.PlayerDirectory
	Protection host.Protection

	// PassengerArmor reports the armor a vehicle carrier grants its riders.
	PassengerArmor func(vehicle host.EntityID) float64

	// BlockDamageEnabled gates OnBlockDamage.
	BlockDamageEnabled bool
	OnBlockDamage      func(BlockDamage)
	OnParticles        func(Burst)

	nextID int
}

// ResetIDs restarts explosion ids. Called once per tick, after the hitbox
// index has been rebuilt.
func (e *Engine) ResetIDs() { e.nextID = 0 }

func (e *Engine) NextID() int {
	id := e.nextID
	e.nextID++
	return id
}

// Create explodes at (x, y, z) in world. Nothing happens when the region
// forbids explosions.
func (e *Engine) Create(index hitbox.Index, world string, x, y, z float64, source host.EntityID, p Params) []Result {
	loc := host.Location{World: world, X: x, Y: y, Z: z}
	if e.Protection != nil && !e.Protection.CanExplodeAt(loc) {
		return nil
	}
	id := e.NextID()

	cxmin := int(math.Floor(x-p.MaxDistance)) >> 4
	cxmax := int(math.Ceil(x+p.MaxDistance)) >> 4
	cymin := int(math.Floor(y-p.MaxDistance)) >> 4
	cymax := int(math.Ceil(y+p.MaxDistance)) >> 4
	czmin := int(math.Floor(z-p.MaxDistance)) >> 4
	czmax := int(math.Ceil(z+p.MaxDistance)) >> 4

	var out []Result
	for cx := cxmin; cx <= cxmax; cx++ {
		for cy := cymin; cy <= cymax; cy++ {
			for cz := czmin; cz <= czmax; cz++ {
				for _, hb := range index.Query(chunk.Coord3D{X: cx, Y: cy, Z: cz}) {
					if hb.LastExplosionID == id {
						continue
					}
					hb.LastExplosionID = id
					if r, ok := e.hit(hb, id, x, y, z, source, p); ok {
						out = append(out, r)
					}
				}
			}
		}
	}

	if e.BlockDamageEnabled && p.BlockDamagePower > 0 && e.OnBlockDamage != nil {
		e.OnBlockDamage(BlockDamage{World: world, X: x, Y: y, Z: z, Power: p.BlockDamagePower})
	}
	if p.Particles != nil && e.OnParticles != nil {
		e.OnParticles(Burst{World: world, X: x, Y: y, Z: z, Particles: *p.Particles})
	}
	return out
}

func (e *Engine) hit(hb *hitbox.Hitbox, id int, x, y, z float64, source host.EntityID, p Params) (Result, bool) {
	dist := float64(hb.Distance(float32(x), float32(y), float32(z)) - hb.RadiusMin)
	base := damage.ExplosionBase(p.Damage, dist, p.Radius, p.Falloff)
	if base <= 0 {
		return Result{}, false
	}
	r := Result{
		ExplosionID: id,
		Target:      hb.Entity,
		Kind:        hb.Kind,
		Source:      source,
		Distance:    dist,
		DamageType:  p.DamageType,
		WeaponKind:  p.WeaponKind,
		WeaponID:    p.WeaponID,
	}
	if hb.Kind == host.KindArmorStand {
		r.Vehicle = true
		r.Damage = base
		return r, true
	}
	target, ok := e.Entities.Entity(hb.Entity)
	if !ok || !target.Living {
		return Result{}, false
	}

	var armor, blast, health float64
	if target.Kind == host.KindPlayer && e.Players != nil {
		if pl, ok := e.Players.Player(target.ID); ok {
			armor, blast, health = pl.Armor(), pl.BlastProtection(), pl.Health()
			r.Player = true
		}
	}
	if !r.Player {
		health = healthOf(e.Entities, target.ID)
	}
	vehicleArmor := 0.0
	if target.Vehicle != host.Nil && e.PassengerArmor != nil {
		vehicleArmor = e.PassengerArmor(target.Vehicle)
	}
	r.Damage = damage.ExplosionAfterArmor(base, armor, vehicleArmor, blast, p.ArmorReduction, p.BlastProtReduction)
	r.Killed = health > 0 && r.Damage >= health

	e.Entities.Damage(target.ID, r.Damage, source)
	if p.FireTicks > 0 {
		e.Entities.SetFireTicks(target.ID, p.FireTicks)
	}
	return r, true
}

// healthReader is implemented by hosts that expose mob health.
type healthReader interface {
	Health(id host.EntityID) float64
}

func healthOf(o host.EntityOracle, id host.EntityID) float64 {
	if hr, ok := o.(healthReader); ok {
		return hr.Health(id)
	}
	return 0
}
