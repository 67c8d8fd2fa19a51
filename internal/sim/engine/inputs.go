package engine

import (
	"xcombat.dev/internal/sim/host"
)

// Action names a player input. The string values are the wire names.
type Action string

const (
	ActShoot        Action = "shoot"
	ActAutoFire     Action = "auto_fire"
	ActReload       Action = "reload"
	ActADS          Action = "ads"
	ActSelect       Action = "select"
	ActCleanup      Action = "cleanup"
	ActDropItem     Action = "drop_item"
	ActThrowReady   Action = "throw_ready"
	ActThrow        Action = "throw"
	ActCrawl        Action = "crawl"
	ActCrawlStop    Action = "crawl_stop"
	ActWearHat      Action = "wear_hat"
	ActLandmine     Action = "landmine"
	ActQuit         Action = "quit"
	ActVehicleSpawn Action = "vehicle_spawn"
	ActVehicleMount Action = "vehicle_mount"
	ActVehicleShoot Action = "vehicle_shoot"
)

// Input is one player action. Fields other than Player and Action are
// action specific: Entity is the dropped item entity or the vehicle seat
// marker, Block the stepped-on landmine, Name the vehicle prototype.
type Input struct {
	Player host.EntityID
	Action Action
	Entity host.EntityID
	World  string
	Block  [3]int
	Name   string
}

// Submit queues an input for the next tick. Safe from any goroutine.
func (e *Engine) Submit(in Input) { e.inputs.Push(in) }

type itemCleanup struct {
	Entity host.EntityID
	Player host.EntityID
}

type droppedThrowable struct {
	Player host.EntityID
	Entity host.EntityID
}

type vehicleSpawn struct {
	Player host.EntityID
	Name   string
}

type vehicleMount struct {
	Player host.EntityID
	Seat   host.EntityID
}

// requests holds the single-tick request queues. Each system swaps its
// queue out before running so requests raised during the tick land in the
// next tick.
type requests struct {
	ads          []host.EntityID
	cleanup      []host.EntityID
	itemCleanup  []itemCleanup
	selects      []host.EntityID
	reload       []host.EntityID
	shoot        []host.EntityID
	autoFire     []host.EntityID
	crawlToShoot []host.EntityID
	crawlStart   []host.EntityID
	crawlStop    []host.EntityID

	throwReady []host.EntityID
	throw      []host.EntityID
	dropped    []droppedThrowable

	wearHat []host.EntityID
	quits   []host.EntityID

	landmineActivation []LandmineActivation
	landmineFinishUse  []LandmineFinishUse

	vehicleSpawn []vehicleSpawn
	vehicleMount []vehicleMount
	vehicleShoot []host.EntityID
}

func (r *requests) depth() int {
	return len(r.ads) + len(r.cleanup) + len(r.itemCleanup) + len(r.selects) +
		len(r.reload) + len(r.shoot) + len(r.autoFire) + len(r.crawlToShoot) +
		len(r.crawlStart) + len(r.crawlStop) + len(r.throwReady) + len(r.throw) +
		len(r.dropped) + len(r.wearHat) + len(r.quits) + len(r.landmineActivation) +
		len(r.vehicleSpawn) + len(r.vehicleMount) + len(r.vehicleShoot)
}

// drainInputs moves submitted inputs into the typed queues. A shoot input
// with an automatic gun in hand becomes an auto fire request.
func (e *Engine) drainInputs() {
	for _, in := range e.inputs.GetAndEmpty() {
		switch in.Action {
		case ActShoot:
			if p, ok := e.player(in.Player); ok {
				if it, ok := p.HeldItem(); ok {
					if g := e.cat.GunOf(it); g != nil && g.AutoFire {
						e.req.autoFire = append(e.req.autoFire, in.Player)
						continue
					}
				}
			}
			e.req.shoot = append(e.req.shoot, in.Player)
		case ActAutoFire:
			e.req.autoFire = append(e.req.autoFire, in.Player)
		case ActReload:
			e.req.reload = append(e.req.reload, in.Player)
		case ActADS:
			e.req.ads = append(e.req.ads, in.Player)
		case ActSelect:
			e.req.selects = append(e.req.selects, in.Player)
		case ActCleanup:
			e.req.cleanup = append(e.req.cleanup, in.Player)
		case ActDropItem:
			e.req.itemCleanup = append(e.req.itemCleanup, itemCleanup{Entity: in.Entity, Player: in.Player})
			e.req.dropped = append(e.req.dropped, droppedThrowable{Player: in.Player, Entity: in.Entity})
		case ActThrowReady:
			e.req.throwReady = append(e.req.throwReady, in.Player)
		case ActThrow:
			e.req.throw = append(e.req.throw, in.Player)
		case ActCrawl:
			e.req.crawlToShoot = append(e.req.crawlToShoot, in.Player)
		case ActCrawlStop:
			e.req.crawlStop = append(e.req.crawlStop, in.Player)
		case ActWearHat:
			e.req.wearHat = append(e.req.wearHat, in.Player)
		case ActLandmine:
			e.activateLandmine(in)
		case ActQuit:
			e.req.quits = append(e.req.quits, in.Player)
		case ActVehicleSpawn:
			e.req.vehicleSpawn = append(e.req.vehicleSpawn, vehicleSpawn{Player: in.Player, Name: in.Name})
		case ActVehicleMount:
			e.req.vehicleMount = append(e.req.vehicleMount, vehicleMount{Player: in.Player, Seat: in.Entity})
		case ActVehicleShoot:
			e.req.vehicleShoot = append(e.req.vehicleShoot, in.Player)
		default:
			e.logger.Printf("WARN engine: unknown action %q from %s", in.Action, in.Player)
		}
	}
}
