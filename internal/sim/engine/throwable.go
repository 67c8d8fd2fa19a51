package engine

import (
	"math"
	"slices"

	"xcombat.dev/internal/sim/block"
	"xcombat.dev/internal/sim/catalogs"
	"xcombat.dev/internal/sim/chunk"
	"xcombat.dev/internal/sim/host"
	"xcombat.dev/internal/sim/queue"
)

// thrownGravity matches the per-tick gravity of dropped item entities.
const thrownGravity = 0.04

// ReadyThrowable is a primed throwable still in its holder's inventory.
type ReadyThrowable struct {
	Throwable    *catalogs.Throwable
	ID           int64
	TicksElapsed int
	Holder       host.EntityID
	Slot         int
}

// ThrownThrowable is an item entity in flight. Loc is its position at the
// start of the current tick.
type ThrownThrowable struct {
	Throwable    *catalogs.Throwable
	ID           int64
	TicksElapsed int
	Entity       host.EntityID
	Source       host.EntityID
	Loc          host.Location
}

// ExpiredThrowable is a throwable whose timer ran out, waiting for its
// timer handler in the world phase.
type ExpiredThrowable struct {
	Throwable *catalogs.Throwable
	Location  host.Location
	Entity    host.EntityID
	Source    host.EntityID
}

func (e *Engine) heldThrowable(p host.Player) (host.Item, *catalogs.Throwable, bool) {
	it, ok := p.HeldItem()
	if !ok {
		return host.Item{}, nil, false
	}
	t := e.cat.ThrowableOf(it)
	return it, t, t != nil
}

func (e *Engine) throwReadySystem() {
	seen := map[host.EntityID]bool{}
	for _, id := range queue.Swap(&e.req.throwReady) {
		if seen[id] {
			continue
		}
		seen[id] = true
		e.guard("throw ready", id, func() {
			p, ok := e.player(id)
			if !ok {
				return
			}
			it, t, ok := e.heldThrowable(p)
			if !ok || it.Has(catalogs.TagThrowID) {
				return
			}
			e.nextThrowID++
			tid := e.nextThrowID
			it = it.With(catalogs.TagThrowID, tid)
			if t.ModelReady > 0 {
				it = it.With(catalogs.TagModel, int64(t.ModelReady))
			}
			p.SetItemAt(p.HeldSlot(), it)
			e.readyThrowables[tid] = &ReadyThrowable{Throwable: t, ID: tid, Holder: id, Slot: p.HeldSlot()}
			e.sound(p.Location(), t.SoundReady)
		})
	}
}

func (e *Engine) throwSystem() {
	seen := map[host.EntityID]bool{}
	for _, id := range queue.Swap(&e.req.throw) {
		if seen[id] {
			continue
		}
		seen[id] = true
		e.guard("throw", id, func() {
			p, ok := e.player(id)
			if !ok {
				return
			}
			ws, loc, ok := e.worldOf(p)
			if !ok {
				return
			}
			it, t, ok := e.heldThrowable(p)
			if !ok {
				return
			}
			if !it.Has(catalogs.TagThrowID) {
				e.status(id, "First ready throwable with [LEFT MOUSE]")
				return
			}
			tid := it.Int(catalogs.TagThrowID, 0)
			eye := p.EyeLocation()
			dx, dy, dz := eye.Direction()
			one := it
			one.Amount = 1
			ent := e.host.SpawnItem(eye, one, [3]float64{dx * t.ThrowSpeed, dy * t.ThrowSpeed, dz * t.ThrowSpeed})
			p.SetItemAt(p.HeldSlot(), host.Item{})

			ticks := 0
			if r, ok := e.readyThrowables[tid]; ok {
				ticks = r.TicksElapsed
				delete(e.readyThrowables, tid)
			}
			ws.Thrown = append(ws.Thrown, &ThrownThrowable{
				Throwable: t, ID: tid, TicksElapsed: ticks, Entity: ent, Source: id, Loc: eye,
			})
			e.sound(loc, t.SoundThrow)
		})
	}
}

// droppedThrowableSystem turns a primed throwable dropped from the
// inventory into a thrown one; its timer keeps running.
func (e *Engine) droppedThrowableSystem() {
	for _, d := range queue.Swap(&e.req.dropped) {
		e.guard("dropped throwable", d.Player, func() {
			it, ok := e.host.ItemOf(d.Entity)
			if !ok || !it.Has(catalogs.TagThrowID) {
				return
			}
			t := e.cat.ThrowableOf(it)
			if t == nil {
				return
			}
			tid := it.Int(catalogs.TagThrowID, 0)
			r, ok := e.readyThrowables[tid]
			if !ok {
				return
			}
			delete(e.readyThrowables, tid)
			ent, ok := e.host.Entity(d.Entity)
			if !ok {
				return
			}
			ws, ok := e.worlds[ent.Loc.World]
			if !ok {
				return
			}
			ws.Thrown = append(ws.Thrown, &ThrownThrowable{
				Throwable: t, ID: tid, TicksElapsed: r.TicksElapsed, Entity: d.Entity, Source: d.Player, Loc: ent.Loc,
			})
		})
	}
}

// readyThrowableSystem ticks primed throwables still held. One that runs out
// its timer in the inventory is consumed, hurts its holder and goes off at
// the holder's feet.
func (e *Engine) readyThrowableSystem() {
	ids := make([]int64, 0, len(e.readyThrowables))
	for id := range e.readyThrowables {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, tid := range ids {
		r := e.readyThrowables[tid]
		e.guard("ready throwable", r.Holder, func() {
			p, ok := e.host.Player(r.Holder)
			if !ok || !p.Online() {
				delete(e.readyThrowables, tid)
				return
			}
			if r.TicksElapsed < r.Throwable.TimeToExplode {
				r.TicksElapsed++
				return
			}
			delete(e.readyThrowables, tid)
			slot := r.Slot
			if it, ok := p.ItemAt(slot); !ok || it.Int(catalogs.TagThrowID, -1) != tid {
				slot = p.HeldSlot()
			}
			if it, ok := p.ItemAt(slot); ok && it.Int(catalogs.TagThrowID, -1) == tid {
				p.SetItemAt(slot, host.Item{})
			}
			if r.Throwable.DamageHolderOnTimerExpired > 0 {
				e.host.Damage(r.Holder, r.Throwable.DamageHolderOnTimerExpired, host.Nil)
			}
			loc := p.Location()
			if ws, ok := e.worlds[loc.World]; ok {
				ws.Expired = append(ws.Expired, ExpiredThrowable{Throwable: r.Throwable, Location: loc, Source: r.Holder})
			}
		})
	}
}

// thrownSystem moves every thrown item one step, testing blocks and hitboxes
// along the way when the throwable has handlers for them.
func (e *Engine) thrownSystem(ws *WorldState) {
	kept := ws.Thrown[:0]
	for _, t := range ws.Thrown {
		keep := true
		e.guard("thrown", t.Source, func() { keep = e.stepThrown(ws, t) })
		if keep {
			kept = append(kept, t)
		}
	}
	clear(ws.Thrown[len(kept):])
	ws.Thrown = kept
}

func (e *Engine) stepThrown(ws *WorldState, t *ThrownThrowable) bool {
	ent, ok := e.host.Entity(t.Entity)
	if !ok || t.TicksElapsed >= t.Throwable.TimeToExplode {
		loc := t.Loc
		if ok {
			loc = ent.Loc
		}
		e.host.Remove(t.Entity)
		e.throwableTimerExpired(ws, ExpiredThrowable{Throwable: t.Throwable, Location: loc, Entity: t.Entity, Source: t.Source})
		return false
	}
	cur := ent.Loc

	if t.Throwable.HasBlockHitHandler() {
		vx, vy, vz := ent.Vel[0], ent.Vel[1]-thrownGravity, ent.Vel[2]
		d := math.Sqrt(vx*vx + vy*vy + vz*vz)
		if d > 0 {
			next := cur.Add(vx, vy, vz)
			bx, by, bz := next.BlockX(), next.BlockY(), next.BlockZ()
			st := ws.Blocks.BlockAt(bx, by, bz)
			if st.Material != block.Air {
				dx, dy, dz := vx/d, vy/d, vz/d
				hit := e.resolver.Resolve(st, bx, by, bz,
					float32(cur.X), float32(cur.Y), float32(cur.Z),
					float32(dx), float32(dy), float32(dz), float32(d))
				if hit != block.NoHit {
					h := float64(hit)
					e.host.Remove(t.Entity)
					e.throwableBlockHit(ws, t, cur.Add(dx*h, dy*h, dz*h))
					return false
				}
			}
		}
	}

	if t.Throwable.HasEntityHitHandler() {
		c := chunk.FromPosition3D(cur.X, cur.Y, cur.Z)
		for _, hb := range ws.Hitboxes.Query(c) {
			if hb.Entity == t.Source || hb.Entity == t.Entity {
				continue
			}
			if hb.Contains(float32(cur.X), float32(cur.Y), float32(cur.Z)) {
				e.host.Remove(t.Entity)
				e.throwableEntityHit(ws, t, cur, hb.Entity, hb.Kind)
				return false
			}
		}
	}

	t.TicksElapsed++
	t.Loc = cur
	return true
}
