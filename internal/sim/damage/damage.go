// Package damage defines damage types and the damage formulas shared by
// projectiles, throwables and explosions.
package damage

import (
	"fmt"
	"math"
	"strings"
)

type Type uint8

const (
	AntiTankRifle Type = iota
	ArmorPiercing
	ArmorPiercingShell
	Bullet
	Explosive
	ExplosiveBomb
	ExplosiveShell
	Fire
	Flak
	Flamethrower
	Melee
	Molotov
	Unknown
	numTypes
)

var typeNames = [numTypes]string{
	"ANTI_TANK_RIFLE", "ARMOR_PIERCING", "ARMOR_PIERCING_SHELL", "BULLET",
	"EXPLOSIVE", "EXPLOSIVE_BOMB", "EXPLOSIVE_SHELL", "FIRE", "FLAK",
	"FLAMETHROWER", "MELEE", "MOLOTOV", "UNKNOWN",
}

func (t Type) String() string {
	if t < numTypes {
		return typeNames[t]
	}
	return "UNKNOWN"
}

// Match parses a damage type name, case-insensitively.
func Match(name string) (Type, bool) {
	up := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range typeNames {
		if n == up {
			return Type(i), true
		}
	}
	return Unknown, false
}

func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Type) UnmarshalText(b []byte) error {
	v, ok := Match(string(b))
	if !ok {
		return fmt.Errorf("unknown damage type %q", string(b))
	}
	*t = v
	return nil
}

// AtDistance applies linear damage drop-off past dropStart, floored at min.
// A zero dropRate disables drop-off.
func AtDistance(base, distance, dropStart, dropRate, floor float64) float64 {
	if dropRate <= 0 || distance <= dropStart {
		return base
	}
	return math.Max(floor, base-(distance-dropStart)*dropRate)
}

// AfterArmor reduces projectile damage by armor. vehicleArmor > 0 means the
// target rides an armored vehicle: the floor drops to 0 so fully protected
// passengers take nothing. Otherwise damage is floored at 1.
func AfterArmor(base, armor, vehicleArmor, armorReduction float64) float64 {
	if vehicleArmor > 0 {
		return math.Max(0, base-(armor+vehicleArmor)*armorReduction)
	}
	return math.Max(1, base-armor*armorReduction)
}

// ExplosionBase is the "hat" profile: full damage inside radius, linear
// falloff beyond, floored at 0.
func ExplosionBase(base, distance, radius, falloff float64) float64 {
	beyond := math.Max(0, distance-radius)
	return math.Max(0, base-beyond*falloff)
}

// ExplosionAfterArmor applies armor and blast protection to a raw explosion
// damage value, with the same vehicle floor rule as AfterArmor.
func ExplosionAfterArmor(raw, armor, vehicleArmor, blastProt, armorReduction, blastReduction float64) float64 {
	if vehicleArmor > 0 {
		return math.Max(0, raw-(armor+vehicleArmor)*armorReduction-blastProt*blastReduction)
	}
	return math.Max(1, raw-armor*armorReduction-blastProt*blastReduction)
}
