// Package projectile advances in-flight bullets for one world and reports
// block and entity hits.
//
// Units are blocks and ticks: a gun with velocity 16 and gravity 0.025
// moves 16 blocks per tick and loses 0.025 blocks/tick of vertical speed
// every tick. Those values are tuned for feel, not realism.
package projectile

import (
	"xcombat.dev/internal/sim/catalogs"
	"xcombat.dev/internal/sim/host"
	"xcombat.dev/internal/sim/mathx"
)

// Projectile is owned by exactly one System and mutated in place each tick.
type Projectile struct {
	ID  uint64
	Gun *catalogs.Gun

	// Source is excluded from hits along with its vehicle and passengers.
	// Shooter is credited for hits; it differs from Source when a player
	// fires a vehicle-mounted gun.
	Source  host.EntityID
	Shooter host.EntityID
	// Exclude, when set, also skips entities it matches. Vehicle guns use it
	// to ignore their own hull.
	Exclude func(host.EntityID) bool

	X, Y, Z          float32
	DirX, DirY, DirZ float32
	VelX, VelY, VelZ float32

	Speed            float32
	Gravity          float32
	MaxLifetime      int
	MaxDistance      float32
	Proximity        float32
	PassthroughDoors bool

	Lifetime int
	Distance float32

	xNext, yNext, zNext float32
	distToNext          float32
}

// New builds a projectile from the gun's ballistic profile. dir need not be
// normalized.
func New(gun *catalogs.Gun, source host.EntityID, x, y, z, dirX, dirY, dirZ float32) *Projectile {
	p := &Projectile{
		Gun:              gun,
		Source:           source,
		Shooter:          source,
		X:                x,
		Y:                y,
		Z:                z,
		Speed:            gun.ProjectileVelocity,
		Gravity:          gun.ProjectileGravity,
		MaxLifetime:      gun.ProjectileLifetime,
		MaxDistance:      gun.ProjectileMaxDistance,
		Proximity:        gun.ProjectileProximity,
		PassthroughDoors: gun.ProjectilePassthroughDoors,
	}
	p.SetDirection(dirX, dirY, dirZ)
	return p
}

// SetDirection normalizes dir and resets velocity to dir * Speed.
func (p *Projectile) SetDirection(dx, dy, dz float32) {
	p.DirX, p.DirY, p.DirZ = mathx.Normalize3(dx, dy, dz)
	p.VelX = p.DirX * p.Speed
	p.VelY = p.DirY * p.Speed
	p.VelZ = p.DirZ * p.Speed
}

// integrate computes the end-of-tick position with linearized dynamics
//
//	v1 = v0 + g
//	x1 = x0 + v0 + g/2
//
// and points Dir along the chord.
func (p *Projectile) integrate() {
	p.xNext = p.X + p.VelX
	p.yNext = p.Y + p.VelY - p.Gravity/2
	p.zNext = p.Z + p.VelZ
	p.VelY -= p.Gravity

	dx, dy, dz := p.xNext-p.X, p.yNext-p.Y, p.zNext-p.Z
	p.distToNext = mathx.Length3(dx, dy, dz)
	if p.distToNext > 0 {
		p.DirX, p.DirY, p.DirZ = dx/p.distToNext, dy/p.distToNext, dz/p.distToNext
	}
}

// alive reports whether the projectile survives its bounds after a tick.
func (p *Projectile) alive() bool {
	return p.Lifetime <= p.MaxLifetime && p.Distance <= p.MaxDistance
}
