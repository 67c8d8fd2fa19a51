package vehicle

import (
	"maps"

	"xcombat.dev/internal/sim/host"
)

// Bundle is the full component set of one element. Nil fields are absent.
type Bundle struct {
	Ammo      *AmmoComponent      `yaml:"ammo"`
	Fuel      *FuelComponent      `yaml:"fuel"`
	GunBarrel *GunBarrelComponent `yaml:"gun_barrel"`
	Health    *HealthComponent    `yaml:"health"`
	Model     *ModelComponent     `yaml:"model"`
	Seats     *SeatsComponent     `yaml:"seats"`
	Transform *TransformComponent `yaml:"transform"`
}

func (b *Bundle) Layout() Layout {
	var l Layout
	b.Each(func(c Component) { l |= 1 << c.Type() })
	return l
}

// Each visits present components in type order.
func (b *Bundle) Each(fn func(Component)) {
	if b.Ammo != nil {
		fn(b.Ammo)
	}
	if b.Fuel != nil {
		fn(b.Fuel)
	}
	if b.GunBarrel != nil {
		fn(b.GunBarrel)
	}
	if b.Health != nil {
		fn(b.Health)
	}
	if b.Model != nil {
		fn(b.Model)
	}
	if b.Seats != nil {
		fn(b.Seats)
	}
	if b.Transform != nil {
		fn(b.Transform)
	}
}

// Clone deep-copies every component so prototypes are never mutated by
// spawned vehicles.
func (b Bundle) Clone() Bundle {
	var out Bundle
	if b.Ammo != nil {
		c := *b.Ammo
		out.Ammo = &c
	}
	if b.Fuel != nil {
		c := *b.Fuel
		out.Fuel = &c
	}
	if b.GunBarrel != nil {
		c := *b.GunBarrel
		out.GunBarrel = &c
	}
	if b.Health != nil {
		c := *b.Health
		c.DamageMultiplier = maps.Clone(b.Health.DamageMultiplier)
		if b.Health.Death != nil {
			d := *b.Health.Death
			c.Death = &d
		}
		out.Health = &c
	}
	if b.Model != nil {
		c := *b.Model
		out.Model = &c
	}
	if b.Seats != nil {
		c := *b.Seats
		c.Offsets = append([]float64(nil), b.Seats.Offsets...)
		c.Markers = append([]host.EntityID(nil), b.Seats.Markers...)
		out.Seats = &c
	}
	if b.Transform != nil {
		c := *b.Transform
		out.Transform = &c
	}
	return out
}
