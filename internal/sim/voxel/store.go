// Package voxel is an in-memory chunked block world. It backs the demo
// server and tests through the block.Mutable interface.
package voxel

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
	"sync"

	"xcombat.dev/internal/sim/block"
	"xcombat.dev/internal/sim/chunk"
	"xcombat.dev/internal/sim/mathx"
)

// Gen describes deterministic flat terrain.
type Gen struct {
	Seed    int64
	GroundY int // top solid layer is GroundY-1
	// RadiusChunks bounds generation; chunks outside are never loaded.
	RadiusChunks int
	// ObstacleChance places 2-high walls, stairs and doors on the surface.
	ObstacleChance float64
}

type Chunk struct {
	CX, CZ int
	// edits overrides generated blocks. Key packs local x, z and y.
	edits map[uint32]block.State

	dirty bool
	hash  [32]byte
}

func key(lx, y, lz int) uint32 {
	return uint32(lx&15) | uint32(lz&15)<<4 | uint32(uint16(int16(y)))<<8
}

// Digest hashes the chunk edits deterministically.
func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		keys := make([]uint32, 0, len(c.edits))
		for k := range c.edits {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		h := sha256.New()
		var tmp [8]byte
		for _, k := range keys {
			s := c.edits[k]
			binary.LittleEndian.PutUint32(tmp[:4], k)
			binary.LittleEndian.PutUint16(tmp[4:6], uint16(s.Material))
			tmp[6] = byte(s.Facing) | byte(s.Half)<<2 | byte(s.Slab)<<3 | byte(s.Hinge)<<5
			tmp[7] = byte(s.Stairs)
			if s.Open {
				tmp[7] |= 0x80
			}
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

// Store is safe for concurrent use. The engine reads it during a tick while
// the host may edit it between ticks.
type Store struct {
	gen Gen

	mu     sync.RWMutex
	chunks map[chunk.Coord]*Chunk
}

func NewStore(gen Gen) *Store {
	return &Store{gen: gen, chunks: map[chunk.Coord]*Chunk{}}
}

// NewFlat generates and loads every chunk within the radius.
func NewFlat(gen Gen) *Store {
	s := NewStore(gen)
	r := gen.RadiusChunks
	for cx := -r; cx < r; cx++ {
		for cz := -r; cz < r; cz++ {
			s.Load(cx, cz)
		}
	}
	return s
}

func (s *Store) inRange(cx, cz int) bool {
	r := s.gen.RadiusChunks
	if r <= 0 {
		return true
	}
	return cx >= -r && cx < r && cz >= -r && cz < r
}

// Load generates (or keeps) the chunk column and marks it loaded.
func (s *Store) Load(cx, cz int) bool {
	if !s.inRange(cx, cz) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := chunk.Coord{X: cx, Z: cz}
	if _, ok := s.chunks[k]; ok {
		return true
	}
	ch := &Chunk{CX: cx, CZ: cz, edits: map[uint32]block.State{}, dirty: true}
	s.decorate(ch)
	s.chunks[k] = ch
	return true
}

func (s *Store) Unload(cx, cz int) {
	s.mu.Lock()
	delete(s.chunks, chunk.Coord{X: cx, Z: cz})
	s.mu.Unlock()
}

func (s *Store) IsChunkLoaded(cx, cz int) bool {
	s.mu.RLock()
	_, ok := s.chunks[chunk.Coord{X: cx, Z: cz}]
	s.mu.RUnlock()
	return ok
}

func (s *Store) LoadedChunks() []chunk.Coord {
	s.mu.RLock()
	keys := make([]chunk.Coord, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].X != keys[j].X {
			return keys[i].X < keys[j].X
		}
		return keys[i].Z < keys[j].Z
	})
	return keys
}

func (s *Store) generated(y int) block.State {
	switch {
	case y < s.gen.GroundY-3:
		return block.Of(block.Stone)
	case y < s.gen.GroundY-1:
		return block.Of(block.Dirt)
	case y == s.gen.GroundY-1:
		return block.Of(block.Grass)
	}
	return block.Of(block.Air)
}

// BlockAt returns air for unloaded chunks.
func (s *Store) BlockAt(x, y, z int) block.State {
	k := chunk.FromBlock(x, z)
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.chunks[k]
	if !ok {
		return block.Of(block.Air)
	}
	if st, ok := ch.edits[key(mathx.Mod(x, 16), y, mathx.Mod(z, 16))]; ok {
		return st
	}
	return s.generated(y)
}

// SetBlock edits a loaded chunk; writes to unloaded chunks are dropped.
func (s *Store) SetBlock(x, y, z int, st block.State) {
	k := chunk.FromBlock(x, z)
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.chunks[k]
	if !ok {
		return
	}
	ch.edits[key(mathx.Mod(x, 16), y, mathx.Mod(z, 16))] = st
	ch.dirty = true
}

func (s *Store) ChunkDigest(cx, cz int) ([32]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.chunks[chunk.Coord{X: cx, Z: cz}]
	if !ok {
		return [32]byte{}, false
	}
	return ch.Digest(), true
}

func (s *Store) decorate(ch *Chunk) {
	if s.gen.ObstacleChance <= 0 {
		return
	}
	y := s.gen.GroundY
	for lx := 1; lx < 15; lx += 3 {
		for lz := 1; lz < 15; lz += 3 {
			wx, wz := ch.CX*16+lx, ch.CZ*16+lz
			if !mathx.Chance(s.gen.Seed, wx, wz, s.gen.ObstacleChance) {
				continue
			}
			h := mathx.Hash2(s.gen.Seed+1, wx, wz)
			var st block.State
			switch h % 5 {
			case 0:
				st = block.State{Material: block.Wall, Walls: [4]block.WallHeight{block.WallTall, block.WallNone, block.WallTall, block.WallNone}}
			case 1:
				st = block.State{Material: block.Stairs, Facing: block.Facing(h >> 8 % 4)}
			case 2:
				st = block.State{Material: block.Door, Facing: block.Facing(h >> 8 % 4)}
			case 3:
				st = block.State{Material: block.Slab, Slab: block.SlabBottom}
			default:
				st = block.Of(block.Bricks)
			}
			ch.edits[key(lx, y, lz)] = st
			if st.Material == block.Bricks || st.Material == block.Wall {
				ch.edits[key(lx, y+1, lz)] = st
			}
		}
	}
}

var _ block.Mutable = (*Store)(nil)
