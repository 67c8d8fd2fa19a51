package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"xcombat.dev/internal/protocol"
	"xcombat.dev/internal/sim/engine"
)

const (
	defaultQueue = 32
	maxQueue     = 256
	writeWait    = 5 * time.Second
	readWait     = 60 * time.Second
)

// Engine is the part of the engine the hub drives.
type Engine interface {
	Submit(in engine.Input)
	Tick() uint64
}

type Config struct {
	WorldID    string
	TickRateHz int
	// Join and Leave, when set, run as an input client binds to and
	// releases its player.
	Join   func(player uuid.UUID)
	Leave  func(player uuid.UUID)
	Logger *log.Logger
}

// Server accepts render and input clients. It implements engine.Sink: every
// batch is fanned out to render clients, dropping the newest frame for a
// client whose queue is full.
type Server struct {
	eng Engine
	cfg Config
	log *log.Logger

	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}

	dropped atomic.Uint64
	inputs  atomic.Uint64
}

type client struct {
	session string
	role    string
	player  string
	out     chan []byte
}

func NewServer(e Engine, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[ws] ", log.LstdFlags)
	}
	return &Server{
		eng: e,
		cfg: cfg,
		log: cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		clients: map[*client]struct{}{},
	}
}

// Clients is the number of connected clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Dropped counts frames discarded because a client fell behind.
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

// Inputs counts accepted INPUT frames.
func (s *Server) Inputs() uint64 { return s.inputs.Load() }

// Emit sends b to every render client. Each distinct player filter is
// encoded once per batch.
func (s *Server) Emit(b *engine.Batch) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.clients) == 0 {
		return
	}
	msg := protocol.EmitFromBatch(b)
	encoded := map[string][]byte{}
	for c := range s.clients {
		if c.role != protocol.RoleRender {
			continue
		}
		raw, ok := encoded[c.player]
		if !ok {
			var err error
			raw, err = json.Marshal(msg.ForPlayer(c.player))
			if err != nil {
				s.log.Printf("SEVERE ws: encode tick %d: %v", b.Tick, err)
				return
			}
			encoded[c.player] = raw
		}
		select {
		case c.out <- raw:
		default:
			s.dropped.Add(1)
		}
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		c := s.handshake(conn)
		if c == nil {
			return
		}
		defer s.leave(c)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-c.out:
					_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readWait))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			if c.role != protocol.RoleInput {
				continue
			}
			s.handleInput(c, msg)
		}
	}
}

func (s *Server) handleInput(c *client, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeInput {
		s.reply(c, protocol.NewError(protocol.ErrProtoBadRequest, "expected INPUT"))
		return
	}
	if base.ProtocolVersion != protocol.Version {
		s.reply(c, protocol.NewError(protocol.ErrProtoVersion, "bad protocol_version"))
		return
	}
	var im protocol.InputMsg
	if err := json.Unmarshal(msg, &im); err != nil {
		s.reply(c, protocol.NewError(protocol.ErrProtoBadRequest, err.Error()))
		return
	}
	if im.PlayerID == "" {
		im.PlayerID = c.player
	}
	if im.PlayerID != c.player {
		s.reply(c, protocol.NewError(protocol.ErrWrongPlayer, "session is bound to "+c.player))
		return
	}
	in, err := im.ToInput()
	if err != nil {
		code := protocol.ErrBadRequest
		var ie *protocol.InputError
		if errors.As(err, &ie) {
			code = ie.Code
		}
		s.reply(c, protocol.NewError(code, err.Error()))
		return
	}
	s.eng.Submit(in)
	s.inputs.Add(1)
}

func (s *Server) reply(c *client, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.out <- b:
	default:
		s.dropped.Add(1)
	}
}

func (s *Server) handshake(conn *websocket.Conn) *client {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil
	}
	switch hello.Role {
	case protocol.RoleRender:
	case protocol.RoleInput:
		id, err := uuid.Parse(hello.PlayerID)
		if err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad player_id"), time.Now().Add(time.Second))
			return nil
		}
		hello.PlayerID = id.String()
	default:
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad role"), time.Now().Add(time.Second))
		return nil
	}

	q := hello.MaxQueue
	if q <= 0 {
		q = defaultQueue
	}
	q = min(q, maxQueue)
	c := &client{
		session: uuid.NewString(),
		role:    hello.Role,
		player:  hello.PlayerID,
		out:     make(chan []byte, q),
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       c.session,
		WorldID:         s.cfg.WorldID,
		TickRateHz:      s.cfg.TickRateHz,
		Tick:            s.eng.Tick(),
	}
	// Registered before WELCOME so the client never misses a batch after it.
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	if err := writeJSON(conn, welcome); err != nil {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		return nil
	}
	if c.role == protocol.RoleInput && s.cfg.Join != nil {
		s.cfg.Join(uuid.MustParse(c.player))
	}
	s.log.Printf("INFO ws: %s client %s joined (player %q)", c.role, c.session, c.player)
	return c
}

// leave unregisters c. An input client going away counts as its player
// quitting.
func (s *Server) leave(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	if c.role == protocol.RoleInput {
		if id, err := uuid.Parse(c.player); err == nil {
			s.eng.Submit(engine.Input{Player: id, Action: engine.ActQuit})
			if s.cfg.Leave != nil {
				s.cfg.Leave(id)
			}
		}
	}
	s.log.Printf("INFO ws: client %s left", c.session)
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}
