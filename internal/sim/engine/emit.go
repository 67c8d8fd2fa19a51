package engine

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"xcombat.dev/internal/sim/explosion"
	"xcombat.dev/internal/sim/host"
	"xcombat.dev/internal/sim/projectile"
)

type Sound struct {
	World   string
	X, Y, Z float64
	Name    string
	Volume  float32
	Pitch   float32
}

type AmmoInfo struct {
	Player host.EntityID
	Ammo   int
	Max    int
}

// Text is the status line shown for the ammo count.
func (a AmmoInfo) Text() string {
	if a.Ammo > 0 {
		return fmt.Sprintf("Ammo [%d/%d]", a.Ammo, a.Max)
	}
	return "[OUT OF AMMO]"
}

// Recoil kicks a player's view. Multiplier grows with sustained fire.
type Recoil struct {
	Player     host.EntityID
	Vertical   float64
	Horizontal float64
	Multiplier float64
}

type BlockCrack struct {
	World   string
	X, Y, Z int
}

type Message struct {
	Player host.EntityID
	Text   string
}

// Batch is everything one tick emits to clients.
type Batch struct {
	Tick        uint64
	Trails      []projectile.Trail
	Impacts     []projectile.Impact
	Explosions  []explosion.Burst
	AmmoInfo    []AmmoInfo
	Sounds      []Sound
	Recoil      []Recoil
	BlockCracks []BlockCrack
	Messages    []Message
}

func (b *Batch) Empty() bool {
	return len(b.Trails) == 0 && len(b.Impacts) == 0 && len(b.Explosions) == 0 &&
		len(b.AmmoInfo) == 0 && len(b.Sounds) == 0 && len(b.Recoil) == 0 &&
		len(b.BlockCracks) == 0 && len(b.Messages) == 0
}

// Sink receives emission batches. With async emission Emit runs on a
// worker goroutine, never concurrently with itself.
type Sink interface {
	Emit(b *Batch)
}

type SinkFunc func(b *Batch)

func (f SinkFunc) Emit(b *Batch) { f(b) }

// Sinks fans a batch out to several sinks in order.
type Sinks []Sink

func (s Sinks) Emit(b *Batch) {
	for _, x := range s {
		x.Emit(b)
	}
}

const emitBuffer = 64

type emitter struct {
	sink   Sink
	async  bool
	logger *log.Logger

	ch      chan *Batch
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
}

func newEmitter(sink Sink, async bool, logger *log.Logger) *emitter {
	em := &emitter{sink: sink, async: async && sink != nil, logger: logger}
	if em.async {
		em.ch = make(chan *Batch, emitBuffer)
		em.wg.Add(1)
		go em.loop()
	}
	return em
}

func (em *emitter) loop() {
	defer em.wg.Done()
	for b := range em.ch {
		em.deliver(b)
	}
}

func (em *emitter) deliver(b *Batch) {
	defer func() {
		if r := recover(); r != nil {
			em.logger.Printf("SEVERE engine: emission sink panic: %v", r)
		}
	}()
	em.sink.Emit(b)
}

func (em *emitter) emit(b *Batch) {
	if em.sink == nil || b.Empty() {
		return
	}
	if !em.async {
		em.deliver(b)
		return
	}
	select {
	case em.ch <- b:
	default:
		em.dropped.Add(1)
	}
}

func (em *emitter) close() {
	em.once.Do(func() {
		if em.async {
			close(em.ch)
			em.wg.Wait()
		}
	})
}

// flushEmissions hands this tick's batch to the sink and starts a new one.
// Block impacts also become crack animations.
func (e *Engine) flushEmissions(tick uint64) {
	for _, name := range e.worldOrder {
		ws := e.worlds[name]
		e.out.Trails = append(e.out.Trails, ws.Projectiles.Trails()...)
		for _, im := range ws.Projectiles.Impacts() {
			e.out.Impacts = append(e.out.Impacts, im)
			if im.Block {
				e.out.BlockCracks = append(e.out.BlockCracks, BlockCrack{World: im.World, X: im.BX, Y: im.BY, Z: im.BZ})
			}
		}
	}
	e.out.Messages = append(e.out.Messages, e.statusLines.GetAndEmpty()...)
	b := e.out
	b.Tick = tick
	e.out = &Batch{}
	e.emitter.emit(b)
}
