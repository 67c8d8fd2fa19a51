package engine

import (
	"xcombat.dev/internal/sim/block"
	"xcombat.dev/internal/sim/catalogs"
	"xcombat.dev/internal/sim/explosion"
	"xcombat.dev/internal/sim/host"
	"xcombat.dev/internal/sim/queue"
)

type LandmineActivation struct {
	World    string
	X, Y, Z  int
	Landmine *catalogs.Landmine
	Player   host.EntityID
}

type LandmineExplosion struct {
	World    string
	X, Y, Z  int
	Landmine *catalogs.Landmine
}

// LandmineFinishUse removes a detonated landmine block one tick after its
// explosion.
type LandmineFinishUse struct {
	World   string
	X, Y, Z int
}

func sameBlock(w1 string, x1, y1, z1 int, w2 string, x2, y2, z2 int) bool {
	return w1 == w2 && x1 == x2 && y1 == y2 && z1 == z2
}

// activateLandmine queues a stepped-on landmine. Each block triggers at
// most once until it has been removed.
func (e *Engine) activateLandmine(in Input) {
	ws, ok := e.worlds[in.World]
	if !ok {
		return
	}
	x, y, z := in.Block[0], in.Block[1], in.Block[2]
	lm := e.cat.Landmine(ws.Blocks.BlockAt(x, y, z).Material)
	if lm == nil {
		return
	}
	for _, a := range e.req.landmineActivation {
		if sameBlock(a.World, a.X, a.Y, a.Z, in.World, x, y, z) {
			return
		}
	}
	for _, f := range e.req.landmineFinishUse {
		if sameBlock(f.World, f.X, f.Y, f.Z, in.World, x, y, z) {
			return
		}
	}
	e.req.landmineActivation = append(e.req.landmineActivation, LandmineActivation{
		World: in.World, X: x, Y: y, Z: z, Landmine: lm, Player: in.Player,
	})
}

func (e *Engine) landmineActivationSystem() {
	for _, a := range queue.Swap(&e.req.landmineActivation) {
		ws, ok := e.worlds[a.World]
		if !ok {
			continue
		}
		ws.LandmineExplosions = append(ws.LandmineExplosions, LandmineExplosion{
			World: a.World, X: a.X, Y: a.Y, Z: a.Z, Landmine: a.Landmine,
		})
		e.req.landmineFinishUse = append(e.req.landmineFinishUse, LandmineFinishUse{World: a.World, X: a.X, Y: a.Y, Z: a.Z})
	}
}

func (e *Engine) landmineFinishUseSystem() {
	for _, f := range queue.Swap(&e.req.landmineFinishUse) {
		ws, ok := e.worlds[f.World]
		if !ok {
			continue
		}
		if e.cat.Landmine(ws.Blocks.BlockAt(f.X, f.Y, f.Z).Material) != nil {
			ws.Blocks.SetBlock(f.X, f.Y, f.Z, block.Of(block.Air))
		}
	}
}

// landmineExplosionSystem detonates this tick's landmines at the top center
// of their block. Landmine explosions have no source entity.
func (e *Engine) landmineExplosionSystem(ws *WorldState) {
	for _, l := range queue.Swap(&ws.LandmineExplosions) {
		e.guard("landmine", host.Nil, func() {
			x, y, z := float64(l.X)+0.5, float64(l.Y), float64(l.Z)+0.5
			e.sound(host.Location{World: ws.Name, X: x, Y: y, Z: z}, l.Landmine.SoundExplosion)
			e.explode(ws, x, y, z, host.Nil, explosion.FromDef(l.Landmine.Explosion, host.ItemLandmine, 0))
		})
	}
}
