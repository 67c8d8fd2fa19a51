package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"xcombat.dev/internal/protocol"
	"xcombat.dev/internal/sim/engine"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		players  = flag.Int("players", 4, "input bots to connect")
		rate     = flag.Duration("every", 250*time.Millisecond, "delay between inputs per bot")
		magazine = flag.Int("magazine", 10, "shots before a bot reloads")
		render   = flag.Bool("render", true, "also connect a render client and report EMIT stats")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var wg sync.WaitGroup
	var sent atomic.Uint64
	for i := 0; i < *players; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			b := &bot{id: uuid.New(), plan: newPlan(rand.New(rand.NewSource(seed)), *magazine)}
			if err := b.run(ctx, *url, *rate, &sent); err != nil {
				logger.Printf("bot %s: %v", b.id, err)
			}
		}(time.Now().UnixNano() + int64(i))
	}
	if *render {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watch(ctx, *url, logger); err != nil {
				logger.Printf("render: %v", err)
			}
		}()
	}

	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			logger.Printf("inputs sent=%d", sent.Load())
		}
	}
}

func dial(url string, hello protocol.HelloMsg) (*websocket.Conn, protocol.WelcomeMsg, error) {
	var w protocol.WelcomeMsg
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, w, err
	}
	if err := conn.WriteJSON(hello); err != nil {
		conn.Close()
		return nil, w, err
	}
	if err := conn.ReadJSON(&w); err != nil {
		conn.Close()
		return nil, w, err
	}
	return conn, w, nil
}

type bot struct {
	id   uuid.UUID
	plan *plan
}

func (b *bot) run(ctx context.Context, url string, every time.Duration, sent *atomic.Uint64) error {
	conn, _, err := dial(url, protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Role:            protocol.RoleInput,
		PlayerID:        b.id.String(),
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	// ERROR frames only; drained so the server never blocks on us.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteJSON(b.input(engine.ActQuit))
			return nil
		case <-t.C:
			if err := conn.WriteJSON(b.input(b.plan.next())); err != nil {
				return err
			}
			sent.Add(1)
		}
	}
}

func (b *bot) input(a engine.Action) protocol.InputMsg {
	return protocol.InputMsg{
		Type:            protocol.TypeInput,
		ProtocolVersion: protocol.Version,
		PlayerID:        b.id.String(),
		Action:          string(a),
	}
}

// plan fires a magazine with the odd ADS toggle, then reloads.
type plan struct {
	r        *rand.Rand
	magazine int
	shots    int
}

func newPlan(r *rand.Rand, magazine int) *plan {
	return &plan{r: r, magazine: max(magazine, 1)}
}

func (p *plan) next() engine.Action {
	if p.shots >= p.magazine {
		p.shots = 0
		return engine.ActReload
	}
	if p.r.Intn(8) == 0 {
		return engine.ActADS
	}
	p.shots++
	return engine.ActShoot
}

func watch(ctx context.Context, url string, logger *log.Logger) error {
	conn, w, err := dial(url, protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Role:            protocol.RoleRender,
	})
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Printf("WELCOME world=%s tick=%d tick_rate=%d", w.WorldID, w.Tick, w.TickRateHz)

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	var frames, trails, impacts, explosions int
	last := time.Now()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		var m protocol.EmitMsg
		if err := json.Unmarshal(msg, &m); err != nil || m.Type != protocol.TypeEmit {
			continue
		}
		frames++
		trails += len(m.Trails)
		impacts += len(m.Impacts)
		explosions += len(m.Explosions)
		if time.Since(last) >= 5*time.Second {
			logger.Printf("EMIT tick=%d frames=%d trails=%d impacts=%d explosions=%d", m.Tick, frames, trails, impacts, explosions)
			last = time.Now()
		}
	}
}
