package engine

import (
	"bytes"
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"time"

	"xcombat.dev/internal/sim/chunk"
	"xcombat.dev/internal/sim/host"
)

// Run steps the engine at the configured tick rate until ctx is done. A
// host with its own Step (memhost) is stepped just before each tick.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(e.tun.TickRateHz))
	defer ticker.Stop()
	stepper, _ := e.host.(interface{ Step() })
	e.logger.Printf("engine started: world=%s tick_rate=%dHz", e.cfg.WorldID, e.tun.TickRateHz)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if stepper != nil {
				stepper.Step()
			}
			e.Step()
		}
	}
}

// Step runs one tick and returns its number. A panic anywhere in the tick
// counts as a tick error; after too many consecutive errors the engine
// resets to a clean slate.
func (e *Engine) Step() uint64 {
	start := time.Now()
	tick := e.tick.Load()

	if err := e.runTick(tick); err != nil {
		e.errorCount++
		e.inst.errors.Add(bgCtx, 1, e.inst.world)
		e.logger.Printf("SEVERE engine: tick %d failed (%d consecutive): %v", tick, e.errorCount, err)
		if e.errorCount > e.tun.MaxConsecutiveTickErrors {
			e.logger.Printf("SEVERE engine: %d consecutive tick errors, resetting", e.errorCount)
			e.Reset()
		}
	} else {
		e.errorCount = 0
	}

	e.tick.Add(1)
	stepMS := float64(time.Since(start).Microseconds()) / 1000
	e.inst.duration.Record(bgCtx, stepMS, e.inst.world)
	e.publishMetrics(stepMS)
	return tick
}

func (e *Engine) runTick(tick uint64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	if e.beforeTick != nil {
		e.beforeTick(tick)
	}
	e.nowMs = e.now().UnixMilli()
	e.explosions.ResetIDs()
	e.drainInputs()

	e.combatLogSystem()
	e.wearHatSystem()

	e.crawlStartSystem()
	e.crawlStopSystem()
	e.crawlRefreshSystem()
	e.crawlCompletionSystem()

	e.adsSystem()
	e.playerCleanupSystem()
	e.itemCleanupSystem()
	e.selectSystem()
	e.reloadSystem()
	e.autoFireRequestSystem()
	e.shootSystem()
	e.burstFireSystem()
	e.autoFireSystem()
	e.recoilRecoverySystem()
	e.vehicleSpawnSystem()
	e.vehicleMountSystem()
	e.vehicleShootSystem()
	e.crawlRequestSystem()

	e.throwReadySystem()
	e.throwSystem()
	e.droppedThrowableSystem()
	e.readyThrowableSystem()

	e.landmineFinishUseSystem()
	e.landmineActivationSystem()

	e.reloadCompletionSystem()

	if e.vehicles != nil {
		e.vehicles.SyncTransforms()
	}
	for _, name := range e.worldOrder {
		e.worldPhase(e.worlds[name])
	}
	e.vehicleDeathSystem()

	e.flushEmissions(tick)
	e.stepSave(tick)
	e.stepDeaths()
	return nil
}

// worldPhase advances projectiles and runs every hit handler that needs the
// tick's hitbox index.
func (e *Engine) worldPhase(ws *WorldState) {
	visited := chunk.NewSet(64)
	for _, t := range ws.Thrown {
		visited.AddAround(t.Loc.Chunk(), 1)
	}
	for _, l := range ws.LandmineExplosions {
		c := chunk.FromBlock(l.X, l.Z)
		for dx := -1; dx <= 1; dx++ {
			for dz := -1; dz <= 1; dz++ {
				if ws.Blocks.IsChunkLoaded(c.X+dx, c.Z+dz) {
					visited.Add(chunk.Coord{X: c.X + dx, Z: c.Z + dz})
				}
			}
		}
	}
	e.addVehicleChunks(ws.Name, visited)

	index, blockHits, entityHits := ws.Projectiles.Update(visited)
	ws.Hitboxes = index

	for _, h := range blockHits {
		e.guard("gun block hit", h.Shooter, func() { e.gunBlockHit(ws, h) })
	}
	for _, h := range entityHits {
		e.guard("gun entity hit", h.Shooter, func() { e.gunEntityHit(ws, h) })
	}

	expired := ws.Expired
	ws.Expired = nil
	for _, x := range expired {
		e.guard("throwable timer", x.Source, func() { e.throwableTimerExpired(ws, x) })
	}
	e.thrownSystem(ws)
	e.landmineExplosionSystem(ws)
}

// guard runs fn and turns a panic into a logged system failure, so one bad
// entity cannot fail the whole tick.
func (e *Engine) guard(system string, id host.EntityID, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Printf("SEVERE engine: %s failed for %s: %v", system, id, r)
		}
	}()
	fn()
}

// sortedIDs returns the keys of m in byte order, for deterministic
// iteration over per-player state.
func sortedIDs[V any](m map[host.EntityID]V) []host.EntityID {
	ids := make([]host.EntityID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b host.EntityID) int { return bytes.Compare(a[:], b[:]) })
	return ids
}
