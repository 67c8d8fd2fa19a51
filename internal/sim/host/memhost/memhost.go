// Package memhost is a thread-safe in-memory host: players, mobs, item
// entities and markers living in named worlds. The demo server and the
// engine tests run against it.
package memhost

import (
	"sort"
	"sync"

	"xcombat.dev/internal/sim/block"
	"xcombat.dev/internal/sim/chunk"
	"xcombat.dev/internal/sim/host"
)

const (
	InventorySize    = 36
	DefaultHealth    = 20
	PlayerEyeHeight  = 1.62
	itemGravity      = 0.04
	itemDrag         = 0.98
	defaultFireTicks = 0
)

type entity struct {
	e         host.Entity
	health    float64
	fireTicks int
	item      host.Item
	dead      bool
}

// DamageEvent records one Damage call.
type DamageEvent struct {
	Target host.EntityID
	Source host.EntityID
	Amount float64
}

type Host struct {
	mu sync.RWMutex

	entities map[host.EntityID]*entity
	order    []host.EntityID
	players  map[host.EntityID]*Player
	worlds   map[string]block.Oracle

	damages []DamageEvent

	// Region rules. Nil means allowed.
	DenyPvp       func(host.Location) bool
	DenyExplosion func(host.Location) bool
	DenyFire      func(host.Location) bool
}

func New() *Host {
	return &Host{
		entities: map[host.EntityID]*entity{},
		players:  map[host.EntityID]*Player{},
		worlds:   map[string]block.Oracle{},
	}
}

// AttachWorld lets Step collide item entities with the world's blocks.
func (h *Host) AttachWorld(name string, blocks block.Oracle) {
	h.mu.Lock()
	h.worlds[name] = blocks
	h.mu.Unlock()
}

func (h *Host) add(en *entity) {
	h.entities[en.e.ID] = en
	h.order = append(h.order, en.e.ID)
}

// AddPlayer creates an online player at loc.
func (h *Host) AddPlayer(name string, loc host.Location) *Player {
	return h.AddPlayerWithID(host.NewEntityID(), name, loc)
}

func (h *Host) AddPlayerWithID(id host.EntityID, name string, loc host.Location) *Player {
	h.mu.Lock()
	defer h.mu.Unlock()
	p := &Player{h: h, id: id, name: name, online: true, ads: true}
	h.add(&entity{e: host.Entity{ID: id, Kind: host.KindPlayer, Loc: loc, Living: true}, health: DefaultHealth})
	h.players[id] = p
	return p
}

// AddMob adds a living non-player entity.
func (h *Host) AddMob(kind host.EntityKind, loc host.Location, health float64) host.EntityID {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := host.NewEntityID()
	h.add(&entity{e: host.Entity{ID: id, Kind: kind, Loc: loc, Living: true}, health: health})
	return id
}

// AddArmorStand adds a non-living armor stand, the carrier entity for
// vehicle hitboxes.
func (h *Host) AddArmorStand(loc host.Location) host.EntityID {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := host.NewEntityID()
	h.add(&entity{e: host.Entity{ID: id, Kind: host.KindArmorStand, Loc: loc}})
	return id
}

// Mount seats passenger on vehicle.
func (h *Host) Mount(passenger, vehicle host.EntityID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, v := h.entities[passenger], h.entities[vehicle]
	if p == nil || v == nil {
		return
	}
	h.dismountLocked(p)
	p.e.Vehicle = vehicle
	v.e.Passengers = append(v.e.Passengers, passenger)
}

func (h *Host) dismountLocked(p *entity) {
	if p.e.Vehicle == host.Nil {
		return
	}
	if v := h.entities[p.e.Vehicle]; v != nil {
		out := v.e.Passengers[:0]
		for _, id := range v.e.Passengers {
			if id != p.e.ID {
				out = append(out, id)
			}
		}
		v.e.Passengers = out
	}
	p.e.Vehicle = host.Nil
}

func (h *Host) snapshot(en *entity) host.Entity {
	e := en.e
	e.Passengers = append([]host.EntityID(nil), en.e.Passengers...)
	return e
}

func (h *Host) EntitiesInChunk(world string, c chunk.Coord) []host.Entity {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []host.Entity
	for _, id := range h.order {
		en := h.entities[id]
		if en == nil || en.dead || en.e.Loc.World != world {
			continue
		}
		if p := h.players[id]; p != nil && !p.online {
			continue
		}
		if en.e.Loc.Chunk() == c {
			out = append(out, h.snapshot(en))
		}
	}
	return out
}

func (h *Host) Entity(id host.EntityID) (host.Entity, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	en := h.entities[id]
	if en == nil || en.dead {
		return host.Entity{}, false
	}
	return h.snapshot(en), true
}

// Damage applies amount to a living entity. Mobs at zero health are removed;
// players are marked dead.
func (h *Host) Damage(id host.EntityID, amount float64, source host.EntityID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.damages = append(h.damages, DamageEvent{Target: id, Source: source, Amount: amount})
	en := h.entities[id]
	if en == nil || en.dead || !en.e.Living {
		return
	}
	en.health -= amount
	if en.health <= 0 {
		en.health = 0
		h.killLocked(en)
	}
}

func (h *Host) killLocked(en *entity) {
	en.dead = true
	en.health = 0
	h.dismountLocked(en)
	if h.players[en.e.ID] == nil {
		h.removeLocked(en.e.ID)
	}
}

func (h *Host) Kill(id host.EntityID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if en := h.entities[id]; en != nil && !en.dead {
		h.killLocked(en)
	}
}

func (h *Host) SetFireTicks(id host.EntityID, ticks int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if en := h.entities[id]; en != nil {
		en.fireTicks = max(en.fireTicks, ticks)
	}
}

func (h *Host) FireTicks(id host.EntityID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if en := h.entities[id]; en != nil {
		return en.fireTicks
	}
	return defaultFireTicks
}

func (h *Host) Health(id host.EntityID) float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if en := h.entities[id]; en != nil {
		return en.health
	}
	return 0
}

func (h *Host) SpawnMarker(kind host.EntityKind, loc host.Location) host.EntityID {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := host.NewEntityID()
	h.add(&entity{e: host.Entity{ID: id, Kind: kind, Loc: loc}})
	return id
}

func (h *Host) SpawnItem(loc host.Location, it host.Item, vel [3]float64) host.EntityID {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := host.NewEntityID()
	h.add(&entity{e: host.Entity{ID: id, Kind: host.KindItem, Loc: loc, Vel: vel}, item: it.Clone()})
	return id
}

// ItemOf returns the stack carried by an item entity.
func (h *Host) ItemOf(id host.EntityID) (host.Item, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	en := h.entities[id]
	if en == nil || en.e.Kind != host.KindItem {
		return host.Item{}, false
	}
	return en.item.Clone(), true
}

func (h *Host) SetItemOf(id host.EntityID, it host.Item) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if en := h.entities[id]; en != nil && en.e.Kind == host.KindItem {
		en.item = it.Clone()
	}
}

func (h *Host) Teleport(id host.EntityID, loc host.Location) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if en := h.entities[id]; en != nil {
		en.e.Loc = loc
	}
}

func (h *Host) SetVelocity(id host.EntityID, vel [3]float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if en := h.entities[id]; en != nil {
		en.e.Vel = vel
	}
}

func (h *Host) Remove(id host.EntityID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(id)
}

func (h *Host) removeLocked(id host.EntityID) {
	en := h.entities[id]
	if en == nil {
		return
	}
	h.dismountLocked(en)
	for _, pid := range en.e.Passengers {
		if p := h.entities[pid]; p != nil {
			p.e.Vehicle = host.Nil
		}
	}
	delete(h.entities, id)
	delete(h.players, id)
	for i, oid := range h.order {
		if oid == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Step advances item entity physics by one tick: gravity, drag, and
// landing on solid blocks of the attached world.
func (h *Host) Step() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range h.order {
		en := h.entities[id]
		if en == nil || en.e.Kind != host.KindItem {
			continue
		}
		v := &en.e.Vel
		if v[0] == 0 && v[1] == 0 && v[2] == 0 {
			if !h.solidBelowLocked(en.e.Loc) {
				v[1] = -itemGravity
			}
			continue
		}
		v[1] -= itemGravity
		next := en.e.Loc.Add(v[0], v[1], v[2])
		if blocks := h.worlds[next.World]; blocks != nil {
			if blocks.BlockAt(next.BlockX(), next.BlockY(), next.BlockZ()).Material.Solid() {
				next.Y = float64(next.BlockY() + 1)
				*v = [3]float64{}
				en.e.Loc = next
				continue
			}
		}
		en.e.Loc = next
		v[0] *= itemDrag
		v[1] *= itemDrag
		v[2] *= itemDrag
	}
	for _, p := range h.players {
		if en := h.entities[p.id]; en != nil && en.fireTicks > 0 {
			en.fireTicks--
		}
	}
}

func (h *Host) solidBelowLocked(loc host.Location) bool {
	blocks := h.worlds[loc.World]
	if blocks == nil {
		return true
	}
	return blocks.BlockAt(loc.BlockX(), loc.BlockY()-1, loc.BlockZ()).Material.Solid() ||
		blocks.BlockAt(loc.BlockX(), loc.BlockY(), loc.BlockZ()).Material.Solid()
}

// Damages returns and clears the recorded damage events.
func (h *Host) Damages() []DamageEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.damages
	h.damages = nil
	return out
}

func (h *Host) Player(id host.EntityID) (host.Player, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.players[id]
	if !ok {
		return nil, false
	}
	return p, true
}

func (h *Host) OnlinePlayers() []host.Player {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]host.Player, 0, len(h.players))
	for _, p := range h.players {
		if p.online {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (h *Host) CanPvpAt(loc host.Location) bool {
	return h.DenyPvp == nil || !h.DenyPvp(loc)
}

func (h *Host) CanExplodeAt(loc host.Location) bool {
	return h.DenyExplosion == nil || !h.DenyExplosion(loc)
}

func (h *Host) CanCreateFireAt(loc host.Location) bool {
	return h.DenyFire == nil || !h.DenyFire(loc)
}

var (
	_ host.EntityOracle    = (*Host)(nil)
	_ host.Protection      = (*Host)(nil)
	_ host.PlayerDirectory = (*Host)(nil)
)
