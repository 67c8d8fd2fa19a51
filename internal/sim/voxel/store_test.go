package voxel

import (
	"testing"

	"xcombat.dev/internal/sim/block"
)

func TestFlatTerrain(t *testing.T) {
	s := NewFlat(Gen{Seed: 1, GroundY: 64, RadiusChunks: 2})
	if got := s.BlockAt(5, 63, -7).Material; got != block.Grass {
		t.Fatalf("surface=%s want grass", got)
	}
	if got := s.BlockAt(5, 10, -7).Material; got != block.Stone {
		t.Fatalf("deep=%s want stone", got)
	}
	if got := s.BlockAt(5, 70, -7).Material; got != block.Air {
		t.Fatalf("sky=%s want air", got)
	}
	if !s.IsChunkLoaded(-2, 1) || s.IsChunkLoaded(2, 0) {
		t.Fatalf("loaded range wrong")
	}
	if n := len(s.LoadedChunks()); n != 16 {
		t.Fatalf("loaded=%d want 16", n)
	}
}

func TestSetBlockAndDigest(t *testing.T) {
	s := NewFlat(Gen{Seed: 1, GroundY: 64, RadiusChunks: 1})
	before, _ := s.ChunkDigest(-1, -1)
	s.SetBlock(-3, 64, -3, block.State{Material: block.Door, Facing: block.East})
	if got := s.BlockAt(-3, 64, -3); got.Material != block.Door || got.Facing != block.East {
		t.Fatalf("edit=%+v", got)
	}
	after, _ := s.ChunkDigest(-1, -1)
	if before == after {
		t.Fatalf("digest unchanged after edit")
	}

	s.SetBlock(100, 64, 100, block.Of(block.Stone))
	if s.BlockAt(100, 64, 100).Material != block.Air {
		t.Fatalf("write to unloaded chunk should be dropped")
	}
}

func TestDecorateDeterministic(t *testing.T) {
	a := NewFlat(Gen{Seed: 9, GroundY: 64, RadiusChunks: 2, ObstacleChance: 0.5})
	b := NewFlat(Gen{Seed: 9, GroundY: 64, RadiusChunks: 2, ObstacleChance: 0.5})
	for _, c := range a.LoadedChunks() {
		da, _ := a.ChunkDigest(c.X, c.Z)
		db, _ := b.ChunkDigest(c.X, c.Z)
		if da != db {
			t.Fatalf("chunk %+v differs between identical seeds", c)
		}
	}
}
