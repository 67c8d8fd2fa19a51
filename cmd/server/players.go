package main

import (
	"sync"

	"xcombat.dev/internal/sim/catalogs"
	"xcombat.dev/internal/sim/host"
	"xcombat.dev/internal/sim/host/memhost"
)

// lobby places input clients into the in-memory host. A first-time player
// spawns with a starter kit; a returning player is brought back online.
type lobby struct {
	host  *memhost.Host
	cats  *catalogs.Catalogs
	spawn host.Location

	mu   sync.Mutex
	seen int
}

func (l *lobby) join(id host.EntityID) {
	if p, ok := l.host.Player(id); ok {
		if mp, ok := p.(*memhost.Player); ok {
			mp.SetOnline(true)
		}
		return
	}
	l.mu.Lock()
	spawn := l.spawn.Add(float64(l.seen%8)*2, 0, float64(l.seen/8)*2)
	l.seen++
	l.mu.Unlock()

	p := l.host.AddPlayerWithID(id, "player-"+id.String()[:8], spawn)
	for slot, it := range starterKit(l.cats) {
		p.SetItemAt(slot, it)
	}
}

func (l *lobby) leave(id host.EntityID) {
	if p, ok := l.host.Player(id); ok {
		if mp, ok := p.(*memhost.Player); ok {
			mp.SetOnline(false)
		}
	}
}

// starterKit is the lowest-id gun (loaded) with two stacks of its ammo,
// then the lowest-id throwable and hat.
func starterKit(c *catalogs.Catalogs) []host.Item {
	var kit []host.Item
	for _, g := range c.Guns {
		if g == nil {
			continue
		}
		kit = append(kit, host.Item{
			Kind:   host.ItemGun,
			Model:  g.ID,
			Amount: 1,
			Tags:   map[string]int64{catalogs.TagAmmo: int64(g.AmmoMax), catalogs.TagModel: int64(g.ModelDefault)},
		})
		if !g.AmmoIgnore {
			a := host.Item{Kind: host.ItemAmmo, Model: g.AmmoID, Amount: 64}
			kit = append(kit, a, a)
		}
		break
	}
	for _, t := range c.Throwables {
		if t != nil {
			kit = append(kit, host.Item{Kind: host.ItemThrowable, Model: t.ID, Amount: 4})
			break
		}
	}
	for _, h := range c.Hats {
		if h != nil {
			kit = append(kit, host.Item{Kind: host.ItemHat, Model: h.ID, Amount: 1})
			break
		}
	}
	return kit
}
