package tasks

import (
	"fmt"
	"math"
	"strings"
	"time"

	"xcombat.dev/internal/sim/catalogs"
	"xcombat.dev/internal/sim/host"
	"xcombat.dev/internal/sim/queue"
)

// StatusFunc shows a transient status line to a player. It is called from
// task goroutines.
type StatusFunc func(player host.EntityID, text string)

type ReloadFinish struct {
	Player   host.EntityID
	GunID    int
	ReloadID int64
	Slot     int
}

type ReloadCancel struct {
	Player     host.EntityID
	GunID      int
	ReloadID   int64
	Slot       int
	PlayerDied bool
}

// ReloadTask waits for a gun reload to complete. It cancels when the player
// leaves, dies, or swaps away from the item carrying ReloadID.
type ReloadTask struct {
	Player   host.Player
	GunID    int
	ReloadID int64
	Slot     int
	Started  time.Time
	Duration time.Duration

	Finished  *queue.Concurrent[ReloadFinish]
	Cancelled *queue.Concurrent[ReloadCancel]
	Status    StatusFunc
}

func (t *ReloadTask) cancel(died bool) Outcome {
	t.Cancelled.Push(ReloadCancel{Player: t.Player.ID(), GunID: t.GunID, ReloadID: t.ReloadID, Slot: t.Slot, PlayerDied: died})
	return Done
}

func (t *ReloadTask) Abort() { t.cancel(false) }

func (t *ReloadTask) Step(now time.Time) Outcome {
	if !t.Player.Online() || t.Player.Dead() {
		return t.cancel(true)
	}
	held, ok := t.Player.HeldItem()
	if !ok || held.Kind != host.ItemGun {
		return t.cancel(false)
	}
	if held.Int(catalogs.TagReloadID, -1) != t.ReloadID {
		return t.cancel(false)
	}
	elapsed := now.Sub(t.Started)
	if elapsed > t.Duration || t.Duration <= 0 {
		t.Finished.Push(ReloadFinish{Player: t.Player.ID(), GunID: t.GunID, ReloadID: t.ReloadID, Slot: t.Slot})
		return Done
	}
	if t.Status != nil {
		progress := float64(elapsed) / float64(t.Duration)
		t.Status(t.Player.ID(), fmt.Sprintf("Reloading %s %s", ProgressBar(progress), RemainingTime(t.Duration-elapsed)))
	}
	return Continue
}

// ProgressBar renders progress in [0, 1] as ten cells.
func ProgressBar(progress float64) string {
	n := int(math.Round(progress * 10))
	if n < 0 || n > 10 {
		return ""
	}
	return "┃" + strings.Repeat("█", n) + strings.Repeat("▒", 10-n) + "┃"
}

// RemainingTime formats d as seconds with one truncated decimal, e.g. "1.5s".
func RemainingTime(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%d.%ds", ms/1000, (ms%1000)/100)
}
