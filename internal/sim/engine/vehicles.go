package engine

import (
	"slices"

	"xcombat.dev/internal/sim/chunk"
	"xcombat.dev/internal/sim/host"
	"xcombat.dev/internal/sim/queue"
	"xcombat.dev/internal/sim/vehicle"
)

func (e *Engine) vehicleSpawnSystem() {
	for _, r := range queue.Swap(&e.req.vehicleSpawn) {
		e.guard("vehicle spawn", r.Player, func() {
			if e.vehicles == nil {
				return
			}
			p, ok := e.player(r.Player)
			if !ok {
				return
			}
			loc := p.Location()
			if _, ok := e.worlds[loc.World]; !ok {
				return
			}
			loc.Pitch = 0
			v, err := e.vehicles.Spawn(r.Name, loc, p)
			if err != nil {
				e.logger.Printf("WARN engine: spawn %q for %s: %v", r.Name, r.Player, err)
				e.status(r.Player, "Cannot spawn "+r.Name)
				return
			}
			e.logger.Printf("INFO engine: spawned %s %s for %s", v.Prototype, v.UUID, r.Player)
		})
	}
}

// vehicleMountSystem seats a player on a free vehicle seat marker.
func (e *Engine) vehicleMountSystem() {
	for _, r := range queue.Swap(&e.req.vehicleMount) {
		e.guard("vehicle mount", r.Player, func() {
			if e.vehicles == nil {
				return
			}
			link, ok := e.vehicles.LinkOf(r.Seat)
			if !ok || link.Component != vehicle.TypeSeats {
				return
			}
			p, ok := e.player(r.Player)
			if !ok {
				return
			}
			seat, ok := e.host.Entity(r.Seat)
			if !ok || len(seat.Passengers) > 0 {
				return
			}
			if _, crawling := e.crawling[r.Player]; crawling {
				e.stopCrawl(r.Player)
			}
			if p.Vehicle() != host.Nil {
				p.LeaveVehicle()
			}
			e.host.Mount(r.Player, r.Seat)
		})
	}
}

// vehicleShootSystem fires every gun barrel controlled by the seat the
// player rides. Barrels keep their own shoot delay and may carry ammo.
func (e *Engine) vehicleShootSystem() {
	for _, id := range queue.Swap(&e.req.vehicleShoot) {
		e.guard("vehicle shoot", id, func() {
			if e.vehicles == nil {
				return
			}
			p, ok := e.player(id)
			if !ok {
				return
			}
			link, ok := e.vehicles.LinkOf(p.Vehicle())
			if !ok || link.Component != vehicle.TypeSeats {
				return
			}
			v, ok := e.vehicles.Vehicles.Get(link.Vehicle)
			if !ok {
				return
			}
			ws, ok := e.worlds[v.World]
			if !ok {
				return
			}
			look := p.Location()
			for _, el := range v.Elements {
				e.fireBarrel(ws, p, v, el, link.Seat, look)
			}
		})
	}
}

func (e *Engine) fireBarrel(ws *WorldState, p host.Player, v *vehicle.Vehicle, el *vehicle.Element, seat int, look host.Location) {
	comps := e.vehicles.Components
	gb, ok := vehicle.GetComponent(comps, vehicle.GunBarrelCol, el.ID)
	if !ok || gb.SeatController != seat || gb.Barrel == host.Nil {
		return
	}
	t, ok := vehicle.GetComponent(comps, vehicle.TransformCol, el.ID)
	if !ok {
		return
	}
	g := e.cat.Gun(gb.GunID)
	if g == nil || e.underShootDelay(gb.Barrel) {
		return
	}
	gb.Aim(float64(look.Yaw), float64(look.Pitch))
	if ammo, ok := vehicle.GetComponent(comps, vehicle.AmmoCol, el.ID); ok && !g.AmmoIgnore {
		if ammo.Current < 1 {
			e.sound(t.Location(), g.SoundEmpty)
			return
		}
		ammo.Current--
		e.ammoInfo(p.ID(), int(ammo.Current), g)
	}

	muzzle := host.Location{
		World: t.World,
		X:     t.X + t.YawCos*gb.BarrelX - t.YawSin*gb.BarrelZ,
		Y:     t.Y + gb.BarrelY,
		Z:     t.Z + t.YawSin*gb.BarrelX + t.YawCos*gb.BarrelZ,
		Yaw:   float32(gb.Yaw),
		Pitch: float32(gb.Pitch),
	}
	own := v.ID
	shooter := p.ID()
	e.launch(ws, gb.Barrel, shooter, g, muzzle, func(id host.EntityID) bool {
		if id == shooter {
			return true
		}
		l, ok := e.vehicles.LinkOf(id)
		return ok && l.Vehicle == own
	})
	e.sound(muzzle, g.SoundShoot)
	e.setShootDelay(gb.Barrel, g)
}

// addVehicleChunks forces hitbox gathering around vehicles of world so
// explosions and thrown items see them even with no projectile nearby.
func (e *Engine) addVehicleChunks(world string, visited *chunk.Set) {
	if e.vehicles == nil {
		return
	}
	vehicle.Query1(e.vehicles.Components, vehicle.TransformCol, func(_ vehicle.ElementID, t *vehicle.TransformComponent) {
		if t.World == world {
			visited.Add(chunk.FromPosition(t.X, t.Z))
		}
	})
}

// vehicleDeathSystem removes vehicles whose health reached zero this tick
// and records who destroyed them.
func (e *Engine) vehicleDeathSystem() {
	if e.vehicles == nil {
		return
	}
	var dead []vehicle.ElementID
	vehicle.Query1(e.vehicles.Components, vehicle.HealthCol, func(id vehicle.ElementID, h *vehicle.HealthComponent) {
		if h.Death != nil {
			dead = append(dead, id)
		}
	})
	if len(dead) == 0 {
		return
	}
	slices.Sort(dead)
	done := map[vehicle.VehicleID]bool{}
	for _, el := range dead {
		v, ok := e.vehicles.Vehicles.OwnerOf(el)
		if !ok || done[v.ID] {
			continue
		}
		done[v.ID] = true
		h, _ := vehicle.GetComponent(e.vehicles.Components, vehicle.HealthCol, el)
		rec := *h.Death
		loc := host.Location{World: v.World}
		if t, ok := vehicle.GetComponent(e.vehicles.Components, vehicle.TransformCol, el); ok {
			loc = t.Location()
		}
		e.guard("vehicle death", v.UUID, func() {
			e.recordDeath(v.UUID, rec, loc)
			e.deaths[len(e.deaths)-1].Vehicle = v.Prototype
			e.vehicles.Destroy(v.ID, true)
			e.logger.Printf("INFO engine: vehicle %s %s destroyed by %s", v.Prototype, v.UUID, rec.Killer)
		})
	}
}
