package engine

import (
	"time"

	"xcombat.dev/internal/sim/catalogs"
	"xcombat.dev/internal/sim/host"
	"xcombat.dev/internal/sim/queue"
	"xcombat.dev/internal/sim/tasks"
)

// Crawling is a player held in the prone pose. Refresh checks run every
// other tick; TickID picks which of the two phases the player belongs to.
type Crawling struct {
	TickID  int
	Player  host.EntityID
	Initial host.Location
	Prev    host.Location
}

type crawlTask struct {
	handle  *tasks.Handle
	started int64
	crawlID int64
}

func (e *Engine) heldCrawlGun(p host.Player) (host.Item, *catalogs.Gun, bool) {
	it, g, ok := e.heldGun(p)
	if !ok || !g.CrawlRequired {
		return host.Item{}, nil, false
	}
	return it, g, true
}

func (e *Engine) crawlStartSystem() {
	for _, id := range queue.Swap(&e.req.crawlStart) {
		e.guard("crawl start", id, func() {
			if _, ok := e.crawling[id]; ok {
				return
			}
			p, ok := e.player(id)
			if !ok {
				return
			}
			if p.Vehicle() != host.Nil {
				p.LeaveVehicle()
			}
			p.SetCrawlPose(true)
			loc := p.Location()
			e.crawling[id] = &Crawling{TickID: e.nextCrawlTick, Player: id, Initial: loc, Prev: loc}
			e.nextCrawlTick = 1 - e.nextCrawlTick
		})
	}
}

func (e *Engine) crawlStopSystem() {
	for _, id := range queue.Swap(&e.req.crawlStop) {
		e.guard("crawl stop", id, func() { e.stopCrawl(id) })
	}
}

func (e *Engine) stopCrawl(id host.EntityID) {
	if p, ok := e.host.Player(id); ok {
		p.SetCrawlPose(false)
	}
	delete(e.crawling, id)
	if t, ok := e.crawlTasks[id]; ok {
		t.handle.Cancel()
		delete(e.crawlTasks, id)
		e.status(id, "")
	}
	delete(e.crawlReady, id)
}

// crawlRefreshSystem ends crawling for players who moved too far, swapped
// to a weapon that does not need it, or went offline.
func (e *Engine) crawlRefreshSystem() {
	phase := e.crawlRefresh
	e.crawlRefresh = 1 - e.crawlRefresh
	for _, id := range sortedIDs(e.crawling) {
		c := e.crawling[id]
		e.guard("crawl refresh", id, func() {
			p, ok := e.player(id)
			if !ok {
				e.stopCrawl(id)
				return
			}
			if c.TickID == phase {
				loc := p.Location()
				if loc != c.Prev {
					if c.Initial.Distance(loc) > e.tun.CrawlMaxMoveDistance {
						e.stopCrawl(id)
						return
					}
					c.Prev = loc
				}
			}
			if e.tun.CrawlOnlyOnCrawlWeapons {
				if _, _, ok := e.heldCrawlGun(p); !ok {
					e.stopCrawl(id)
				}
			}
		})
	}
}

// crawlRequestSystem starts getting a player prone for a crawl-only gun.
// The pose is applied next tick; the gun becomes usable when the task
// finishes.
func (e *Engine) crawlRequestSystem() {
	for _, id := range queue.Swap(&e.req.crawlToShoot) {
		e.guard("crawl request", id, func() {
			if t, ok := e.crawlTasks[id]; ok && e.nowMs < t.started+e.tun.CrawlRequestDebounceMs {
				return
			}
			if e.crawlReady[id] {
				return
			}
			p, ok := e.player(id)
			if !ok {
				return
			}
			it, g, ok := e.heldCrawlGun(p)
			if !ok {
				return
			}
			e.req.crawlStart = append(e.req.crawlStart, id)

			e.nextCrawlID++
			p.SetItemAt(p.HeldSlot(), it.With(catalogs.TagCrawlID, e.nextCrawlID))
			if t, ok := e.crawlTasks[id]; ok {
				t.handle.Cancel()
			}
			h := e.runner.Start(&tasks.CrawlToShootTask{
				Player:    p,
				CrawlID:   e.nextCrawlID,
				Started:   e.now(),
				Duration:  time.Duration(g.CrawlTimeMillis) * time.Millisecond,
				Finished:  &e.crawlFinished,
				Cancelled: &e.crawlCancelled,
				Status:    e.status,
			})
			e.crawlTasks[id] = &crawlTask{handle: h, started: e.nowMs, crawlID: e.nextCrawlID}
		})
	}
}

func (e *Engine) crawlCompletionSystem() {
	for _, f := range e.crawlFinished.GetAndEmpty() {
		e.guard("crawl finish", f.Player, func() {
			if !e.currentCrawl(f.Player, f.CrawlID) {
				return
			}
			e.finishCrawl(f.Player)
		})
	}
	for _, c := range e.crawlCancelled.GetAndEmpty() {
		e.guard("crawl cancel", c.Player, func() {
			if !e.currentCrawl(c.Player, c.CrawlID) {
				return
			}
			delete(e.crawlTasks, c.Player)
			if _, ok := e.crawling[c.Player]; ok {
				e.stopCrawl(c.Player)
			}
			e.status(c.Player, "")
		})
	}
}

// currentCrawl reports whether a completion record belongs to the task the
// engine is tracking for the player. Records from replaced tasks are stale.
func (e *Engine) currentCrawl(id host.EntityID, crawlID int64) bool {
	t, ok := e.crawlTasks[id]
	return ok && t.crawlID == crawlID
}

func (e *Engine) finishCrawl(id host.EntityID) {
	delete(e.crawlTasks, id)
	if _, ok := e.crawling[id]; !ok {
		return
	}
	p, ok := e.player(id)
	if !ok {
		e.stopCrawl(id)
		return
	}
	it, g, ok := e.heldCrawlGun(p)
	if !ok {
		e.stopCrawl(id)
		return
	}
	e.ammoInfo(id, ammoOf(it), g)
	if useADS(p) && g.ModelADS > 0 && ammoOf(it) > 0 {
		p.SetItemAt(p.HeldSlot(), it.With(catalogs.TagModel, int64(g.ModelADS)))
	}
	e.crawlReady[id] = true
}
