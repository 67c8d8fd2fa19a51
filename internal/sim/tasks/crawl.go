package tasks

import (
	"time"

	"xcombat.dev/internal/sim/catalogs"
	"xcombat.dev/internal/sim/host"
	"xcombat.dev/internal/sim/queue"
)

// CrawlFinish and CrawlCancel carry the crawl id of the task that posted
// them, so a record from a replaced task can be told apart.
type CrawlFinish struct {
	Player  host.EntityID
	CrawlID int64
}

type CrawlCancel struct {
	Player  host.EntityID
	CrawlID int64
}

// CrawlToShootTask waits while a player gets into a prone firing position.
type CrawlToShootTask struct {
	Player   host.Player
	CrawlID  int64
	Started  time.Time
	Duration time.Duration

	Finished  *queue.Concurrent[CrawlFinish]
	Cancelled *queue.Concurrent[CrawlCancel]
	Status    StatusFunc
}

func (t *CrawlToShootTask) cancel() Outcome {
	t.Cancelled.Push(CrawlCancel{Player: t.Player.ID(), CrawlID: t.CrawlID})
	return Done
}

func (t *CrawlToShootTask) Abort() { t.cancel() }

func (t *CrawlToShootTask) Step(now time.Time) Outcome {
	if !t.Player.Online() || t.Player.Dead() {
		return t.cancel()
	}
	held, ok := t.Player.HeldItem()
	if !ok || held.Kind != host.ItemGun || held.Int(catalogs.TagCrawlID, -1) != t.CrawlID {
		return t.cancel()
	}
	elapsed := now.Sub(t.Started)
	if elapsed > t.Duration || t.Duration <= 0 {
		t.Finished.Push(CrawlFinish{Player: t.Player.ID(), CrawlID: t.CrawlID})
		return Done
	}
	if t.Status != nil {
		t.Status(t.Player.ID(), ProgressBar(float64(elapsed)/float64(t.Duration)))
	}
	return Continue
}
