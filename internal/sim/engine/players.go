package engine

import (
	"xcombat.dev/internal/sim/catalogs"
	"xcombat.dev/internal/sim/damage"
	"xcombat.dev/internal/sim/host"
	"xcombat.dev/internal/sim/queue"
	"xcombat.dev/internal/sim/vehicle"
)

const hatEquipSound = "minecraft:item.armor.equip_leather"

// combatTag marks a player recently hurt by another player. Logging out
// while tagged kills the player.
type combatTag struct {
	ticks    int
	attacker host.EntityID
}

// DeathRecord is one player (or vehicle) death. Vehicle holds the prototype
// name when the victim was a vehicle.
type DeathRecord struct {
	Tick       uint64        `json:"tick"`
	Victim     host.EntityID `json:"victim"`
	Killer     host.EntityID `json:"killer"`
	WeaponKind host.ItemKind `json:"weapon_kind"`
	WeaponID   int           `json:"weapon_id"`
	DamageType damage.Type   `json:"damage_type"`
	World      string        `json:"world"`
	X          float64       `json:"x"`
	Y          float64       `json:"y"`
	Z          float64       `json:"z"`
	Vehicle    string        `json:"vehicle,omitempty"`
}

// DeathSink stores death records. WriteDeaths runs on the tick goroutine
// and should hand off slow work.
type DeathSink interface {
	WriteDeaths(records []DeathRecord)
}

type DeathSinks []DeathSink

func (s DeathSinks) WriteDeaths(records []DeathRecord) {
	for _, x := range s {
		x.WriteDeaths(records)
	}
}

func (e *Engine) tagCombat(victim, attacker host.EntityID) {
	if e.tun.CombatLogTicks <= 0 || attacker == host.Nil || attacker == victim {
		return
	}
	if _, ok := e.host.Player(attacker); !ok {
		return
	}
	e.combatLog[victim] = &combatTag{ticks: e.tun.CombatLogTicks, attacker: attacker}
}

func (e *Engine) recordDeath(victim host.EntityID, rec vehicle.KillRecord, loc host.Location) {
	e.deaths = append(e.deaths, DeathRecord{
		Tick:       e.tick.Load(),
		Victim:     victim,
		Killer:     rec.Killer,
		WeaponKind: rec.WeaponKind,
		WeaponID:   rec.WeaponID,
		DamageType: rec.DamageType,
		World:      loc.World,
		X:          loc.X,
		Y:          loc.Y,
		Z:          loc.Z,
	})
}

// combatLogSystem handles quits and ages combat tags. A player who quits
// while tagged is killed and credited to the last attacker.
func (e *Engine) combatLogSystem() {
	for _, id := range queue.Swap(&e.req.quits) {
		e.guard("quit", id, func() {
			if tag, ok := e.combatLog[id]; ok {
				loc := host.Location{}
				if p, ok := e.host.Player(id); ok {
					loc = p.Location()
				}
				e.host.Kill(id)
				e.recordDeath(id, vehicle.KillRecord{Killer: tag.attacker, DamageType: damage.Unknown}, loc)
				e.logger.Printf("INFO engine: %s logged out in combat", id)
			}
			e.forgetPlayer(id)
		})
	}
	for id, tag := range e.combatLog {
		tag.ticks--
		if tag.ticks <= 0 {
			delete(e.combatLog, id)
		}
	}
}

// forgetPlayer drops every piece of per-player state.
func (e *Engine) forgetPlayer(id host.EntityID) {
	delete(e.shootDelay, id)
	delete(e.burstFiring, id)
	delete(e.autoFiring, id)
	delete(e.recoil, id)
	if h := e.reloadTasks[id]; h != nil {
		h.Cancel()
		delete(e.reloadTasks, id)
	}
	if t, ok := e.crawlTasks[id]; ok {
		t.handle.Cancel()
		delete(e.crawlTasks, id)
	}
	delete(e.crawling, id)
	delete(e.crawlReady, id)
	delete(e.combatLog, id)
	for tid, r := range e.readyThrowables {
		if r.Holder == id {
			delete(e.readyThrowables, tid)
		}
	}
}

// wearHatSystem swaps a held hat with the worn helmet.
func (e *Engine) wearHatSystem() {
	seen := map[host.EntityID]bool{}
	for _, id := range queue.Swap(&e.req.wearHat) {
		if seen[id] {
			continue
		}
		seen[id] = true
		e.guard("wear hat", id, func() {
			p, ok := e.player(id)
			if !ok {
				return
			}
			it, ok := p.HeldItem()
			if !ok {
				return
			}
			h := e.cat.HatOf(it)
			if h == nil {
				return
			}
			old, hadHelmet := p.Helmet()
			one := it.With(host.TagArmor, int64(h.Armor))
			one.Amount = 1
			p.SetHelmet(one)
			switch {
			case it.Amount > 1:
				it.Amount--
				p.SetItemAt(p.HeldSlot(), it)
				if hadHelmet {
					p.AddItem(old)
				}
			case hadHelmet:
				p.SetItemAt(p.HeldSlot(), old)
			default:
				p.SetItemAt(p.HeldSlot(), host.Item{})
			}
			e.sound(p.Location(), catalogs.Sound{Name: hatEquipSound, Volume: 1, Pitch: 1})
		})
	}
}

// stepDeaths flushes pending death records every
// DeathRecordSavePeriodTicks.
func (e *Engine) stepDeaths() {
	if e.tun.DeathRecordSavePeriodTicks <= 0 {
		e.flushDeaths()
		return
	}
	e.deathTimer--
	if e.deathTimer <= 0 {
		e.flushDeaths()
		e.deathTimer = e.tun.DeathRecordSavePeriodTicks
	}
}

func (e *Engine) flushDeaths() {
	if len(e.deaths) == 0 {
		return
	}
	out := e.deaths
	e.deaths = nil
	if e.cfg.DeathSink == nil {
		return
	}
	e.cfg.DeathSink.WriteDeaths(out)
}
