package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"xcombat.dev/internal/observerproto"
	"xcombat.dev/internal/sim/catalogs"
	"xcombat.dev/internal/sim/engine"
)

const (
	defaultInterval = time.Second
	minInterval     = 100 * time.Millisecond
	maxInterval     = 10 * time.Second
)

// Source is the engine view the observer reads. Metrics must be safe to
// call off the tick goroutine.
type Source interface {
	Metrics() engine.EngineMetrics
}

type Config struct {
	WorldID    string
	TickRateHz int
	Catalogs   *catalogs.Catalogs
	// Hub and Index are optional.
	Hub    func() observerproto.HubStats
	Index  func() observerproto.IndexStats
	Logger *log.Logger
}

// Server exposes engine health to loopback clients: a bootstrap document
// and a websocket that pushes STATUS frames.
type Server struct {
	src Source
	cfg Config
	log *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(src Source, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[observer] ", log.LstdFlags)
	}
	return &Server{
		src: src,
		cfg: cfg,
		log: cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			WorldID:         s.cfg.WorldID,
			Tick:            s.src.Metrics().Tick,
			TickRateHz:      s.cfg.TickRateHz,
			Catalogs:        countCatalogs(s.cfg.Catalogs),
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

// Status is the frame pushed to subscribers.
func (s *Server) Status() observerproto.StatusMsg {
	m := observerproto.StatusMsg{
		Type:            observerproto.TypeStatus,
		ProtocolVersion: observerproto.Version,
		Engine:          s.src.Metrics(),
	}
	if s.cfg.Hub != nil {
		h := s.cfg.Hub()
		m.Hub = &h
	}
	if s.cfg.Index != nil {
		i := s.cfg.Index()
		m.Index = &i
	}
	return m
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := parseSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		s.log.Printf("INFO observer: session %s subscribed every %s", sid, interval(sub))

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		updates := make(chan time.Duration, 1)

		// Writer goroutine.
		writeDone := make(chan struct{})
		go func() {
			defer close(writeDone)
			t := time.NewTicker(interval(sub))
			defer t.Stop()
			if !s.push(conn) {
				cancel()
				return
			}
			for {
				select {
				case <-ctx.Done():
					return
				case d := <-updates:
					t.Reset(d)
				case <-t.C:
					if !s.push(conn) {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for ctx.Err() == nil {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			sub, ok := parseSubscribe(msg)
			if !ok {
				continue
			}
			select {
			case updates <- interval(sub):
			default:
				// Drop updates under load; the client may resend.
			}
		}

		cancel()
		<-writeDone
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	}
}

func (s *Server) push(conn *websocket.Conn) bool {
	b, err := json.Marshal(s.Status())
	if err != nil {
		s.log.Printf("WARN observer: encode status: %v", err)
		return false
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b) == nil
}

func parseSubscribe(msg []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	return sub, sub.Type == observerproto.TypeSubscribe && sub.ProtocolVersion == observerproto.Version
}

func interval(sub observerproto.SubscribeMsg) time.Duration {
	if sub.IntervalMS <= 0 {
		return defaultInterval
	}
	d := time.Duration(sub.IntervalMS) * time.Millisecond
	return min(max(d, minInterval), maxInterval)
}

func countCatalogs(c *catalogs.Catalogs) observerproto.CatalogCounts {
	if c == nil {
		return observerproto.CatalogCounts{}
	}
	return observerproto.CatalogCounts{
		Digest:     c.Digest,
		Ammo:       countSet(c.Ammo[:]),
		Guns:       countSet(c.Guns[:]),
		Melee:      countSet(c.Melee[:]),
		Throwables: countSet(c.Throwables[:]),
		Hats:       countSet(c.Hats[:]),
		Landmines:  len(c.Landmines),
		Warnings:   c.Warnings,
	}
}

func countSet[T any](s []*T) int {
	n := 0
	for _, v := range s {
		if v != nil {
			n++
		}
	}
	return n
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
