package memhost

import (
	"xcombat.dev/internal/sim/host"
)

// Player is an in-memory player. All state is guarded by the owning Host's
// mutex so background tasks may read it.
type Player struct {
	h    *Host
	id   host.EntityID
	name string

	online bool
	slot   int
	inv    [InventorySize]host.Item
	helmet host.Item

	armor float64
	blast float64
	ads   bool
}

func (p *Player) ent() *entity { return p.h.entities[p.id] }

func (p *Player) ID() host.EntityID { return p.id }
func (p *Player) Name() string      { return p.name }

func (p *Player) Online() bool {
	p.h.mu.RLock()
	defer p.h.mu.RUnlock()
	return p.online
}

func (p *Player) SetOnline(v bool) {
	p.h.mu.Lock()
	p.online = v
	p.h.mu.Unlock()
}

func (p *Player) Dead() bool {
	p.h.mu.RLock()
	defer p.h.mu.RUnlock()
	en := p.ent()
	return en == nil || en.dead
}

// Respawn revives the player at loc with full health.
func (p *Player) Respawn(loc host.Location) {
	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	if en := p.ent(); en != nil {
		en.dead = false
		en.health = DefaultHealth
		en.e.Loc = loc
	}
}

func (p *Player) Location() host.Location {
	p.h.mu.RLock()
	defer p.h.mu.RUnlock()
	if en := p.ent(); en != nil {
		return en.e.Loc
	}
	return host.Location{}
}

func (p *Player) EyeLocation() host.Location {
	loc := p.Location()
	eye := PlayerEyeHeight
	if p.Sneaking() {
		eye = 1.27
	} else if p.Swimming() {
		eye = 0.4
	}
	return loc.Add(0, eye, 0)
}

func (p *Player) Sneaking() bool {
	p.h.mu.RLock()
	defer p.h.mu.RUnlock()
	en := p.ent()
	return en != nil && en.e.Sneaking
}

func (p *Player) SetSneaking(v bool) {
	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	if en := p.ent(); en != nil {
		en.e.Sneaking = v
	}
}

func (p *Player) Swimming() bool {
	p.h.mu.RLock()
	defer p.h.mu.RUnlock()
	en := p.ent()
	return en != nil && en.e.Swimming
}

func (p *Player) SetCrawlPose(on bool) {
	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	if en := p.ent(); en != nil {
		en.e.Swimming = on
	}
}

func (p *Player) Vehicle() host.EntityID {
	p.h.mu.RLock()
	defer p.h.mu.RUnlock()
	if en := p.ent(); en != nil {
		return en.e.Vehicle
	}
	return host.Nil
}

func (p *Player) LeaveVehicle() {
	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	if en := p.ent(); en != nil {
		p.h.dismountLocked(en)
	}
}

func (p *Player) HeldSlot() int {
	p.h.mu.RLock()
	defer p.h.mu.RUnlock()
	return p.slot
}

func (p *Player) SetHeldSlot(slot int) {
	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	if slot >= 0 && slot < InventorySize {
		p.slot = slot
	}
}

func (p *Player) HeldItem() (host.Item, bool) {
	p.h.mu.RLock()
	defer p.h.mu.RUnlock()
	return p.itemAtLocked(p.slot)
}

func (p *Player) itemAtLocked(slot int) (host.Item, bool) {
	if slot < 0 || slot >= InventorySize || p.inv[slot].Amount <= 0 {
		return host.Item{}, false
	}
	return p.inv[slot].Clone(), true
}

func (p *Player) ItemAt(slot int) (host.Item, bool) {
	p.h.mu.RLock()
	defer p.h.mu.RUnlock()
	return p.itemAtLocked(slot)
}

func (p *Player) SetItemAt(slot int, it host.Item) {
	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	if slot >= 0 && slot < InventorySize {
		p.inv[slot] = it.Clone()
	}
}

func (p *Player) Helmet() (host.Item, bool) {
	p.h.mu.RLock()
	defer p.h.mu.RUnlock()
	if p.helmet.Amount <= 0 {
		return host.Item{}, false
	}
	return p.helmet.Clone(), true
}

func (p *Player) SetHelmet(it host.Item) {
	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	p.helmet = it.Clone()
}

// AddItem puts it in the first empty slot. Full inventories drop the item.
func (p *Player) AddItem(it host.Item) {
	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	for i := range p.inv {
		if p.inv[i].Amount <= 0 {
			p.inv[i] = it.Clone()
			return
		}
	}
}

func (p *Player) CountItems(kind host.ItemKind, model int) int {
	p.h.mu.RLock()
	defer p.h.mu.RUnlock()
	n := 0
	for _, it := range p.inv {
		if it.Amount > 0 && it.Kind == kind && it.Model == model {
			n += it.Amount
		}
	}
	return n
}

// RemoveItems removes n matching items, or nothing when fewer than n exist.
func (p *Player) RemoveItems(kind host.ItemKind, model int, n int) bool {
	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	have := 0
	for _, it := range p.inv {
		if it.Amount > 0 && it.Kind == kind && it.Model == model {
			have += it.Amount
		}
	}
	if have < n {
		return false
	}
	for i := range p.inv {
		if n == 0 {
			break
		}
		it := &p.inv[i]
		if it.Amount <= 0 || it.Kind != kind || it.Model != model {
			continue
		}
		take := min(n, it.Amount)
		it.Amount -= take
		n -= take
		if it.Amount == 0 {
			*it = host.Item{}
		}
	}
	return true
}

func (p *Player) Health() float64 {
	p.h.mu.RLock()
	defer p.h.mu.RUnlock()
	if en := p.ent(); en != nil {
		return en.health
	}
	return 0
}

func (p *Player) SetHealth(v float64) {
	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	if en := p.ent(); en != nil {
		en.health = v
	}
}

// Armor is the base armor plus the worn hat's armor tag.
func (p *Player) Armor() float64 {
	p.h.mu.RLock()
	defer p.h.mu.RUnlock()
	a := p.armor
	if p.helmet.Amount > 0 {
		a += float64(p.helmet.Int(host.TagArmor, 0))
	}
	return a
}

func (p *Player) SetArmor(v float64) {
	p.h.mu.Lock()
	p.armor = v
	p.h.mu.Unlock()
}

func (p *Player) BlastProtection() float64 {
	p.h.mu.RLock()
	defer p.h.mu.RUnlock()
	return p.blast
}

func (p *Player) SetBlastProtection(v float64) {
	p.h.mu.Lock()
	p.blast = v
	p.h.mu.Unlock()
}

func (p *Player) AimDownSights() bool {
	p.h.mu.RLock()
	defer p.h.mu.RUnlock()
	return p.ads
}

func (p *Player) SetAimDownSights(v bool) {
	p.h.mu.Lock()
	p.ads = v
	p.h.mu.Unlock()
}

// Move teleports the player and updates look angles.
func (p *Player) Move(loc host.Location) {
	p.h.Teleport(p.id, loc)
}

var _ host.Player = (*Player)(nil)
