// Package engine is the single-threaded combat tick scheduler. Every system
// (guns, crawling, throwables, landmines, projectiles, explosions, vehicles)
// runs in a fixed order once per tick on one goroutine; other goroutines talk
// to it only through Submit and the task completion queues.
package engine

import (
	"log"
	"math/rand"
	"sync/atomic"
	"time"

	"xcombat.dev/internal/sim/block"
	"xcombat.dev/internal/sim/catalogs"
	"xcombat.dev/internal/sim/explosion"
	"xcombat.dev/internal/sim/hitbox"
	"xcombat.dev/internal/sim/host"
	"xcombat.dev/internal/sim/projectile"
	"xcombat.dev/internal/sim/queue"
	"xcombat.dev/internal/sim/tasks"
	"xcombat.dev/internal/sim/tuning"
	"xcombat.dev/internal/sim/vehicle"
)

// Host is everything the engine needs from the game server.
type Host interface {
	host.EntityOracle
	host.PlayerDirectory
	host.Protection

	ItemOf(id host.EntityID) (host.Item, bool)
	SetItemOf(id host.EntityID, it host.Item)
	// Mount seats passenger on a vehicle seat marker.
	Mount(passenger, vehicle host.EntityID)
}

type Config struct {
	WorldID  string
	Tuning   tuning.Tuning
	Catalogs *catalogs.Catalogs
	Host     Host
	Runner   *tasks.Runner
	Vehicles *vehicle.Manager
	Hitboxes *hitbox.Registry

	Sink      Sink
	DeathSink DeathSink
	// SaveSink receives finished vehicle saves. Sends never block; a save
	// is dropped when the sink is backed up.
	SaveSink chan<- SaveRequest

	Now    func() time.Time
	Seed   int64
	Logger *log.Logger
}

// WorldState is the per-world simulation state.
type WorldState struct {
	Name        string
	Blocks      block.Mutable
	Projectiles *projectile.System

	Thrown             []*ThrownThrowable
	Expired            []ExpiredThrowable
	LandmineExplosions []LandmineExplosion

	// Hitboxes is the index built by this tick's projectile update.
	Hitboxes hitbox.Index
}

type Engine struct {
	cfg      Config
	tun      tuning.Tuning
	cat      *catalogs.Catalogs
	host     Host
	runner   *tasks.Runner
	vehicles *vehicle.Manager
	logger   *log.Logger
	now      func() time.Time
	rng      *rand.Rand

	resolver    *block.Resolver
	passthrough *block.Resolver
	hitboxes    *hitbox.Registry
	explosions  *explosion.Engine

	worlds     map[string]*WorldState
	worldOrder []string

	tick   atomic.Uint64
	nowMs  int64
	inputs queue.Concurrent[Input]

	shootDelay  map[host.EntityID]ShootDelay
	burstFiring map[host.EntityID]*BurstFire
	autoFiring  map[host.EntityID]*AutoFire
	recoil      map[host.EntityID]*recoilState
	reloadTasks map[host.EntityID]*tasks.Handle

	crawling      map[host.EntityID]*Crawling
	crawlReady    map[host.EntityID]bool
	crawlTasks    map[host.EntityID]*crawlTask
	crawlRefresh  int
	nextCrawlTick int

	readyThrowables map[int64]*ReadyThrowable
	combatLog       map[host.EntityID]*combatTag

	req requests

	reloadFinished  queue.Concurrent[tasks.ReloadFinish]
	reloadCancelled queue.Concurrent[tasks.ReloadCancel]
	crawlFinished   queue.Concurrent[tasks.CrawlFinish]
	crawlCancelled  queue.Concurrent[tasks.CrawlCancel]
	statusLines     queue.Concurrent[Message]

	out     *Batch
	emitter *emitter

	nextReloadID int64
	nextBurstID  int64
	nextAutoID   int64
	nextCrawlID  int64
	nextThrowID  int64

	errorCount int
	resetTotal uint64

	deaths     []DeathRecord
	deathTimer int

	save saveState

	metrics atomic.Value
	inst    *instruments

	// beforeTick runs inside the tick guard. Tests use it to inject faults.
	beforeTick func(tick uint64)
}

func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[engine] ", log.LstdFlags|log.Lmicroseconds)
	}
	if cfg.Catalogs == nil {
		cfg.Catalogs = catalogs.Empty()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Tuning.TickRateHz <= 0 {
		cfg.Tuning = tuning.Defaults()
	}
	if cfg.Hitboxes == nil {
		cfg.Hitboxes = hitbox.NewRegistry(cfg.Tuning.Sizes(cfg.Logger))
	}
	if cfg.Runner == nil {
		cfg.Runner = tasks.NewRunner(time.Second/time.Duration(cfg.Tuning.TickRateHz), cfg.Logger)
	}

	e := &Engine{
		cfg:      cfg,
		tun:      cfg.Tuning,
		cat:      cfg.Catalogs,
		host:     cfg.Host,
		runner:   cfg.Runner,
		vehicles: cfg.Vehicles,
		logger:   cfg.Logger,
		now:      cfg.Now,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		hitboxes: cfg.Hitboxes,
		worlds:   map[string]*WorldState{},
	}
	e.resolver = cfg.Tuning.Resolver(cfg.Logger)
	e.passthrough = e.resolver.PassthroughDoors()
	e.explosions = &explosion.Engine{
		Entities:           cfg.Host,
		Players:            cfg.Host,
		Protection:         cfg.Host,
		BlockDamageEnabled: false,
		OnParticles: func(b explosion.Burst) {
			e.out.Explosions = append(e.out.Explosions, b)
		},
	}
	if e.vehicles != nil {
		e.explosions.PassengerArmor = e.vehicles.PassengerArmor
	}
	e.emitter = newEmitter(cfg.Sink, cfg.Tuning.AsyncEmission, cfg.Logger)
	e.inst = newInstruments(e, cfg.Logger)
	e.clearState()
	e.deathTimer = cfg.Tuning.DeathRecordSavePeriodTicks
	e.save.reset(cfg.Tuning)
	e.publishMetrics(0)
	return e
}

// AddWorld registers a world. Inputs for unknown worlds are ignored.
func (e *Engine) AddWorld(name string, blocks block.Mutable) *WorldState {
	if ws, ok := e.worlds[name]; ok {
		return ws
	}
	ws := &WorldState{
		Name:   name,
		Blocks: blocks,
		Projectiles: projectile.NewSystem(projectile.Config{
			World:       name,
			Blocks:      blocks,
			Entities:    e.host,
			Resolver:    e.resolver,
			Passthrough: e.passthrough,
			Hitboxes:    e.hitboxes,
		}),
	}
	e.worlds[name] = ws
	e.worldOrder = append(e.worldOrder, name)
	return ws
}

func (e *Engine) World(name string) (*WorldState, bool) {
	ws, ok := e.worlds[name]
	return ws, ok
}

func (e *Engine) Tick() uint64 { return e.tick.Load() }

func (e *Engine) Catalogs() *catalogs.Catalogs { return e.cat }

func (e *Engine) Vehicles() *vehicle.Manager { return e.vehicles }

// clearState empties every system map and queue. Worlds and their block
// stores are kept.
func (e *Engine) clearState() {
	e.shootDelay = map[host.EntityID]ShootDelay{}
	e.burstFiring = map[host.EntityID]*BurstFire{}
	e.autoFiring = map[host.EntityID]*AutoFire{}
	e.recoil = map[host.EntityID]*recoilState{}
	for _, h := range e.reloadTasks {
		h.Cancel()
	}
	e.reloadTasks = map[host.EntityID]*tasks.Handle{}
	e.crawling = map[host.EntityID]*Crawling{}
	e.crawlReady = map[host.EntityID]bool{}
	for _, t := range e.crawlTasks {
		t.handle.Cancel()
	}
	e.crawlTasks = map[host.EntityID]*crawlTask{}
	e.readyThrowables = map[int64]*ReadyThrowable{}
	e.combatLog = map[host.EntityID]*combatTag{}
	e.req = requests{}

	e.reloadFinished.Clear()
	e.reloadCancelled.Clear()
	e.crawlFinished.Clear()
	e.crawlCancelled.Clear()
	e.statusLines.Clear()
	e.out = &Batch{}

	for _, name := range e.worldOrder {
		ws := e.worlds[name]
		ws.Projectiles.Clear()
		ws.Thrown = nil
		ws.Expired = nil
		ws.LandmineExplosions = nil
		ws.Hitboxes = nil
	}
}

// Reset is the clean slate: every system map and queue is emptied and the
// error counter cleared. Vehicles and pending death records survive.
func (e *Engine) Reset() {
	e.clearState()
	e.errorCount = 0
	e.resetTotal++
	e.save.abort()
	e.inst.resets.Add(bgCtx, 1, e.inst.world)
}

// Close stops background tasks, flushes pending death records and stops the
// emission worker.
func (e *Engine) Close() {
	e.runner.Stop()
	e.flushDeaths()
	e.emitter.close()
}

func (e *Engine) player(id host.EntityID) (host.Player, bool) {
	if e.host == nil {
		return nil, false
	}
	p, ok := e.host.Player(id)
	if !ok || !p.Online() {
		return nil, false
	}
	return p, true
}

func (e *Engine) worldOf(p host.Player) (*WorldState, host.Location, bool) {
	loc := p.Location()
	ws, ok := e.worlds[loc.World]
	return ws, loc, ok
}

func (e *Engine) status(player host.EntityID, text string) {
	e.statusLines.Push(Message{Player: player, Text: text})
}

func (e *Engine) sound(loc host.Location, s catalogs.Sound) {
	if s.Name == "" {
		return
	}
	e.out.Sounds = append(e.out.Sounds, Sound{World: loc.World, X: loc.X, Y: loc.Y, Z: loc.Z, Name: s.Name, Volume: s.Volume, Pitch: s.Pitch})
}
