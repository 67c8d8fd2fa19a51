// Package vehicle stores vehicle elements in archetype tables: every distinct
// set of component types gets dense per-type columns, and queries visit only
// the archetypes whose layout covers the requested types.
package vehicle

import (
	"math"
	"strings"

	"xcombat.dev/internal/sim/damage"
	"xcombat.dev/internal/sim/hitbox"
	"xcombat.dev/internal/sim/host"
)

type ComponentType uint8

// Keep in alphabetical order; the persisted form is keyed by Name.
const (
	TypeAmmo ComponentType = iota
	TypeFuel
	TypeGunBarrel
	TypeHealth
	TypeModel
	TypeSeats
	TypeTransform
	NumComponentTypes
)

var typeNames = [NumComponentTypes]string{"ammo", "fuel", "gun_barrel", "health", "model", "seats", "transform"}

func (t ComponentType) String() string {
	if t < NumComponentTypes {
		return typeNames[t]
	}
	return "unknown"
}

func TypeByName(s string) (ComponentType, bool) {
	for i, n := range typeNames {
		if n == s {
			return ComponentType(i), true
		}
	}
	return 0, false
}

// Layout is the set of component types an element carries.
type Layout uint16

func LayoutOf(types ...ComponentType) Layout {
	var l Layout
	for _, t := range types {
		l |= 1 << t
	}
	return l
}

func (l Layout) Has(t ComponentType) bool { return l&(1<<t) != 0 }

// Contains reports whether l is a superset of o.
func (l Layout) Contains(o Layout) bool { return l&o == o }

func (l Layout) Types() []ComponentType {
	var out []ComponentType
	for t := ComponentType(0); t < NumComponentTypes; t++ {
		if l.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

func (l Layout) String() string {
	names := make([]string, 0, NumComponentTypes)
	for _, t := range l.Types() {
		names = append(names, t.String())
	}
	return "{" + strings.Join(names, ",") + "}"
}

type Component interface {
	Type() ComponentType
}

// Optional lifecycle hooks. Hooks run on the tick goroutine.
type (
	// SpawnInjector realizes world-side resources (marker entities) when an
	// element is spawned at a location, optionally by a player.
	SpawnInjector interface {
		InjectSpawnProperties(env *Env, loc host.Location, player host.Player)
	}
	// AfterCreator runs once every component of the element exists.
	AfterCreator interface {
		AfterCreated(env *Env, v *Vehicle, el *Element)
	}
	// Deleter releases world-side resources. despawn is false when the
	// vehicle is only unloaded and its entities should be left alone.
	Deleter interface {
		Delete(env *Env, v *Vehicle, el *Element, despawn bool)
	}
	// Persister round-trips the mutable runtime state.
	Persister interface {
		ToPersisted() map[string]float64
		FromPersisted(map[string]float64)
	}
)

// EntityLink maps a marker entity back to the element owning it.
type EntityLink struct {
	Vehicle   VehicleID
	Element   ElementID
	Component ComponentType
	Seat      int
}

// Env is the world side of the lifecycle hooks.
type Env struct {
	Entities host.EntityOracle
	Hitboxes *hitbox.Registry
	Links    map[host.EntityID]EntityLink
}

func NewEnv(entities host.EntityOracle, hitboxes *hitbox.Registry) *Env {
	return &Env{Entities: entities, Hitboxes: hitboxes, Links: map[host.EntityID]EntityLink{}}
}

// TransformComponent is the element's world pose.
type TransformComponent struct {
	OffsetX float64 `yaml:"offset_x"`
	OffsetY float64 `yaml:"offset_y"`
	OffsetZ float64 `yaml:"offset_z"`

	World      string  `yaml:"-"`
	X, Y, Z    float64 `yaml:"-"`
	Yaw, Pitch float64 `yaml:"-"`

	YawSin, YawCos float64 `yaml:"-"`
	Dirty          bool    `yaml:"-"`
}

func (*TransformComponent) Type() ComponentType { return TypeTransform }

func (c *TransformComponent) SetYaw(yaw float64) {
	c.Yaw = yaw
	rad := yaw * math.Pi / 180
	c.YawSin, c.YawCos = math.Sin(rad), math.Cos(rad)
	c.Dirty = true
}

func (c *TransformComponent) Location() host.Location {
	return host.Location{World: c.World, X: c.X, Y: c.Y, Z: c.Z, Yaw: float32(c.Yaw), Pitch: float32(c.Pitch)}
}

func (c *TransformComponent) InjectSpawnProperties(_ *Env, loc host.Location, _ host.Player) {
	c.World = loc.World
	c.X, c.Y, c.Z = loc.X+c.OffsetX, loc.Y+c.OffsetY, loc.Z+c.OffsetZ
	c.Pitch = float64(loc.Pitch)
	c.SetYaw(float64(loc.Yaw))
}

func (c *TransformComponent) ToPersisted() map[string]float64 {
	return map[string]float64{"x": c.X, "y": c.Y, "z": c.Z, "yaw": c.Yaw, "pitch": c.Pitch}
}

func (c *TransformComponent) FromPersisted(m map[string]float64) {
	c.X, c.Y, c.Z, c.Pitch = m["x"], m["y"], m["z"], m["pitch"]
	c.SetYaw(m["yaw"])
}

// KillRecord is bound to a health component the first time it reaches zero.
type KillRecord struct {
	Killer     host.EntityID
	DamageType damage.Type
	WeaponKind host.ItemKind
	WeaponID   int
}

type HealthComponent struct {
	Current float64 `yaml:"current"`
	Max     float64 `yaml:"max"`
	// DamageMultiplier scales incoming damage per damage type name, matched
	// case-insensitively; missing types use 1.
	DamageMultiplier map[string]float64 `yaml:"damage_multiplier"`

	Death *KillRecord `yaml:"-"`
}

func (*HealthComponent) Type() ComponentType { return TypeHealth }

func (c *HealthComponent) Multiplier(t damage.Type) float64 {
	for k, m := range c.DamageMultiplier {
		if strings.EqualFold(k, t.String()) {
			return m
		}
	}
	return 1
}

// Damage applies amount scaled by the type multiplier and binds a kill record
// when health first reaches zero. It reports whether this call destroyed it.
func (c *HealthComponent) Damage(amount float64, rec KillRecord) bool {
	c.Current = max(0, c.Current-amount*c.Multiplier(rec.DamageType))
	if c.Current <= 0 && c.Death == nil {
		r := rec
		c.Death = &r
		return true
	}
	return false
}

func (c *HealthComponent) ToPersisted() map[string]float64 {
	return map[string]float64{"current": c.Current}
}

func (c *HealthComponent) FromPersisted(m map[string]float64) {
	if v, ok := m["current"]; ok {
		c.Current = min(max(0, v), c.Max)
	}
}

type AmmoComponent struct {
	Current float64 `yaml:"current"`
	Max     float64 `yaml:"max"`
}

func (*AmmoComponent) Type() ComponentType { return TypeAmmo }

func (c *AmmoComponent) ToPersisted() map[string]float64 {
	return map[string]float64{"current": c.Current}
}

func (c *AmmoComponent) FromPersisted(m map[string]float64) {
	if v, ok := m["current"]; ok {
		c.Current = min(max(0, v), c.Max)
	}
}

type FuelComponent struct {
	Current float64 `yaml:"current"`
	Max     float64 `yaml:"max"`
}

func (*FuelComponent) Type() ComponentType { return TypeFuel }

func (c *FuelComponent) ToPersisted() map[string]float64 {
	return map[string]float64{"current": c.Current}
}

func (c *FuelComponent) FromPersisted(m map[string]float64) {
	if v, ok := m["current"]; ok {
		c.Current = min(max(0, v), c.Max)
	}
}

// ModelComponent is the visible body: an armor stand carrying the model and
// the element's custom hitbox.
type ModelComponent struct {
	OffsetX float64     `yaml:"offset_x"`
	OffsetY float64     `yaml:"offset_y"`
	OffsetZ float64     `yaml:"offset_z"`
	ModelID int         `yaml:"model_id"`
	Hitbox  hitbox.Size `yaml:"hitbox"`

	Stand host.EntityID `yaml:"-"`
}

func (*ModelComponent) Type() ComponentType { return TypeModel }

func (c *ModelComponent) InjectSpawnProperties(env *Env, loc host.Location, _ host.Player) {
	c.Stand = env.Entities.SpawnMarker(host.KindArmorStand, loc.Add(c.OffsetX, c.OffsetY, c.OffsetZ))
}

func (c *ModelComponent) AfterCreated(env *Env, v *Vehicle, el *Element) {
	if c.Stand == host.Nil {
		return
	}
	env.Links[c.Stand] = EntityLink{Vehicle: v.ID, Element: el.ID, Component: TypeModel}
	if c.Hitbox.XHalf > 0 && c.Hitbox.ZHalf > 0 && c.Hitbox.YHeight > 0 {
		env.Hitboxes.SetCustom(c.Stand, c.Hitbox)
	}
}

func (c *ModelComponent) Delete(env *Env, _ *Vehicle, _ *Element, despawn bool) {
	if c.Stand == host.Nil {
		return
	}
	env.Hitboxes.DeleteCustom(c.Stand)
	delete(env.Links, c.Stand)
	if despawn {
		env.Entities.Remove(c.Stand)
	}
}

// SeatsComponent owns one marker entity per seat. Offsets are xyz triples
// in the element's yaw frame.
type SeatsComponent struct {
	Count   int       `yaml:"count"`
	Offsets []float64 `yaml:"offsets"`
	// Armor protects passengers against projectiles and explosions.
	Armor float64 `yaml:"armor"`

	Markers []host.EntityID `yaml:"-"`
}

func (*SeatsComponent) Type() ComponentType { return TypeSeats }

func (c *SeatsComponent) offset(i int) (float64, float64, float64) {
	if 3*i+2 >= len(c.Offsets) {
		return 0, 0, 0
	}
	return c.Offsets[3*i], c.Offsets[3*i+1], c.Offsets[3*i+2]
}

// SeatLocation rotates seat i's offset by the transform yaw.
func (c *SeatsComponent) SeatLocation(i int, t *TransformComponent) host.Location {
	ox, oy, oz := c.offset(i)
	return host.Location{
		World: t.World,
		X:     t.X + t.YawCos*ox - t.YawSin*oz,
		Y:     t.Y + oy,
		Z:     t.Z + t.YawSin*ox + t.YawCos*oz,
		Yaw:   float32(t.Yaw),
	}
}

func (c *SeatsComponent) InjectSpawnProperties(env *Env, loc host.Location, _ host.Player) {
	c.Markers = make([]host.EntityID, c.Count)
	for i := range c.Markers {
		ox, oy, oz := c.offset(i)
		c.Markers[i] = env.Entities.SpawnMarker(host.KindArmorStand, loc.Add(ox, oy, oz))
	}
}

func (c *SeatsComponent) AfterCreated(env *Env, v *Vehicle, el *Element) {
	for i, m := range c.Markers {
		if m != host.Nil {
			env.Links[m] = EntityLink{Vehicle: v.ID, Element: el.ID, Component: TypeSeats, Seat: i}
		}
	}
}

func (c *SeatsComponent) Delete(env *Env, _ *Vehicle, _ *Element, despawn bool) {
	for _, m := range c.Markers {
		if m == host.Nil {
			continue
		}
		delete(env.Links, m)
		if despawn {
			env.Entities.Remove(m)
		}
	}
}

// GunBarrelComponent is a turret that fires a catalog gun from a barrel
// marker, controlled by the passenger of SeatController.
type GunBarrelComponent struct {
	BarrelX        float64 `yaml:"barrel_x"`
	BarrelY        float64 `yaml:"barrel_y"`
	BarrelZ        float64 `yaml:"barrel_z"`
	GunID          int     `yaml:"gun_id"`
	SeatController int     `yaml:"seat_controller"`
	PitchMin       float64 `yaml:"pitch_min"`
	PitchMax       float64 `yaml:"pitch_max"`

	Yaw, Pitch float64       `yaml:"-"`
	Barrel     host.EntityID `yaml:"-"`
}

func (*GunBarrelComponent) Type() ComponentType { return TypeGunBarrel }

func (c *GunBarrelComponent) Aim(yaw, pitch float64) {
	c.Yaw = yaw
	c.Pitch = min(max(pitch, c.PitchMin), c.PitchMax)
}

func (c *GunBarrelComponent) InjectSpawnProperties(env *Env, loc host.Location, _ host.Player) {
	c.Yaw = float64(loc.Yaw)
	c.Barrel = env.Entities.SpawnMarker(host.KindArmorStand, loc.Add(c.BarrelX, c.BarrelY, c.BarrelZ))
}

func (c *GunBarrelComponent) AfterCreated(env *Env, v *Vehicle, el *Element) {
	if c.Barrel != host.Nil {
		env.Links[c.Barrel] = EntityLink{Vehicle: v.ID, Element: el.ID, Component: TypeGunBarrel}
	}
}

func (c *GunBarrelComponent) Delete(env *Env, _ *Vehicle, _ *Element, despawn bool) {
	if c.Barrel == host.Nil {
		return
	}
	delete(env.Links, c.Barrel)
	if despawn {
		env.Entities.Remove(c.Barrel)
	}
}

func (c *GunBarrelComponent) ToPersisted() map[string]float64 {
	return map[string]float64{"yaw": c.Yaw, "pitch": c.Pitch}
}

func (c *GunBarrelComponent) FromPersisted(m map[string]float64) {
	c.Aim(m["yaw"], m["pitch"])
}
