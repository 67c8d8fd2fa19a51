// Package enginetest drives an engine against the in-memory host through
// its exported API only. Tasks run on a manual runner and the clock is
// advanced explicitly, so every test is deterministic.
package enginetest

import (
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"xcombat.dev/internal/sim/catalogs"
	"xcombat.dev/internal/sim/engine"
	"xcombat.dev/internal/sim/hitbox"
	"xcombat.dev/internal/sim/host"
	"xcombat.dev/internal/sim/host/memhost"
	"xcombat.dev/internal/sim/tasks"
	"xcombat.dev/internal/sim/tuning"
	"xcombat.dev/internal/sim/vehicle"
	"xcombat.dev/internal/sim/voxel"
)

const (
	World   = "world"
	GroundY = 64
)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock { return &Clock{now: time.Unix(1_700_000_000, 0)} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Recorder is a synchronous emission sink keeping every batch.
type Recorder struct {
	mu      sync.Mutex
	batches []*engine.Batch
}

func (r *Recorder) Emit(b *engine.Batch) {
	r.mu.Lock()
	r.batches = append(r.batches, b)
	r.mu.Unlock()
}

// Take returns and clears the recorded batches.
func (r *Recorder) Take() []*engine.Batch {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.batches
	r.batches = nil
	return out
}

// DeathLog collects flushed death records.
type DeathLog struct {
	mu      sync.Mutex
	records []engine.DeathRecord
}

func (d *DeathLog) WriteDeaths(rs []engine.DeathRecord) {
	d.mu.Lock()
	d.records = append(d.records, rs...)
	d.mu.Unlock()
}

func (d *DeathLog) Records() []engine.DeathRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]engine.DeathRecord(nil), d.records...)
}

type Options struct {
	Tuning     *tuning.Tuning
	Catalogs   *catalogs.Catalogs
	Prototypes map[string]*vehicle.Prototype
	SaveSink   chan engine.SaveRequest
}

type Harness struct {
	T        *testing.T
	Host     *memhost.Host
	Blocks   *voxel.Store
	Clock    *Clock
	Runner   *tasks.Runner
	Engine   *engine.Engine
	Cats     *catalogs.Catalogs
	Out      *Recorder
	Deaths   *DeathLog
	Vehicles *vehicle.Manager
}

// New builds an engine over a flat world with ground at GroundY. Emission
// is synchronous and death records flush every tick.
func New(t *testing.T, opts Options) *Harness {
	t.Helper()
	tun := tuning.Defaults()
	if opts.Tuning != nil {
		tun = *opts.Tuning
	}
	tun.AsyncEmission = false
	tun.DeathRecordSavePeriodTicks = 0
	cats := opts.Catalogs
	if cats == nil {
		cats = catalogs.Empty()
	}

	logger := log.New(io.Discard, "", 0)
	if testing.Verbose() {
		logger = log.New(testWriter{t}, "[engine] ", 0)
	}

	h := &Harness{
		T:      t,
		Host:   memhost.New(),
		Blocks: voxel.NewFlat(voxel.Gen{GroundY: GroundY, RadiusChunks: 4}),
		Clock:  NewClock(),
		Cats:   cats,
		Out:    &Recorder{},
		Deaths: &DeathLog{},
	}
	h.Host.AttachWorld(World, h.Blocks)
	h.Runner = tasks.NewManualRunner(h.Clock.Now, logger)
	reg := hitbox.NewRegistry(tun.Sizes(logger))
	if opts.Prototypes != nil {
		h.Vehicles = vehicle.NewManager(tun.MaxVehicles, tun.MaxVehicleElements, vehicle.NewEnv(h.Host, reg), opts.Prototypes, logger)
	}

	cfg := engine.Config{
		WorldID:   "test",
		Tuning:    tun,
		Catalogs:  cats,
		Host:      h.Host,
		Runner:    h.Runner,
		Vehicles:  h.Vehicles,
		Hitboxes:  reg,
		Sink:      h.Out,
		DeathSink: h.Deaths,
		Now:       h.Clock.Now,
		Seed:      1,
		Logger:    logger,
	}
	if opts.SaveSink != nil {
		cfg.SaveSink = opts.SaveSink
	}
	h.Engine = engine.New(cfg)
	h.Engine.AddWorld(World, h.Blocks)
	t.Cleanup(h.Engine.Close)
	return h
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// Step polls background tasks, runs one tick and advances the clock by one
// tick period.
func (h *Harness) Step() {
	h.Runner.StepAll()
	h.Engine.Step()
	h.Clock.Advance(50 * time.Millisecond)
}

func (h *Harness) StepN(n int) {
	for range n {
		h.Step()
	}
}

// AddPlayer places a player standing on the ground at (x, z).
func (h *Harness) AddPlayer(name string, x, z float64) *memhost.Player {
	return h.Host.AddPlayer(name, host.Location{World: World, X: x, Y: GroundY, Z: z})
}

func (h *Harness) Submit(p host.Player, act engine.Action) {
	h.Engine.Submit(engine.Input{Player: p.ID(), Action: act})
}

// GunItem is a gun stack loaded with ammo rounds.
func GunItem(g catalogs.Gun, ammo int) host.Item {
	return host.Item{
		Kind:   host.ItemGun,
		Model:  g.ID,
		Amount: 1,
		Tags:   map[string]int64{catalogs.TagAmmo: int64(ammo), catalogs.TagModel: int64(g.ModelDefault)},
	}
}

func AmmoItem(id, n int) host.Item {
	return host.Item{Kind: host.ItemAmmo, Model: id, Amount: n}
}

// Held returns the player's held item, failing the test when empty.
func (h *Harness) Held(p host.Player) host.Item {
	h.T.Helper()
	it, ok := p.HeldItem()
	if !ok {
		h.T.Fatalf("player %s holds nothing", p.Name())
	}
	return it
}

// Sounds returns the names of every sound in batches.
func Sounds(batches []*engine.Batch) []string {
	var out []string
	for _, b := range batches {
		for _, s := range b.Sounds {
			out = append(out, s.Name)
		}
	}
	return out
}

// Messages returns the status lines sent to player.
func Messages(batches []*engine.Batch, player host.EntityID) []string {
	var out []string
	for _, b := range batches {
		for _, m := range b.Messages {
			if m.Player == player {
				out = append(out, m.Text)
			}
		}
	}
	return out
}
