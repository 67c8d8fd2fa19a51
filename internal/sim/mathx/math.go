package mathx

import "math"

// ChunkShift converts block coordinates into 16-wide chunk coordinates.
const ChunkShift = 4

// BlockToChunk is an arithmetic shift, so negative blocks land in negative chunks.
func BlockToChunk(b int) int { return b >> ChunkShift }

// FloorDiv divides rounding toward negative infinity. b > 0.
func FloorDiv(a, b int) int {
	q := a / b
	if a%b < 0 {
		q--
	}
	return q
}

// Mod is the non-negative remainder. b > 0.
func Mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// FloorInt floors a float coordinate into its containing block.
func FloorInt(v float64) int { return int(math.Floor(v)) }

func CeilInt(v float64) int { return int(math.Ceil(v)) }

func Length3(x, y, z float32) float32 {
	return float32(math.Sqrt(float64(x*x + y*y + z*z)))
}

// Normalize3 returns the unit vector along (x, y, z). A zero vector maps to +X.
func Normalize3(x, y, z float32) (float32, float32, float32) {
	l := Length3(x, y, z)
	if l == 0 {
		return 1, 0, 0
	}
	return x / l, y / l, z / l
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Hash2 is a stateless per-column hash used for deterministic world decoration.
func Hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	return mix64(uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9))
}

// Chance reports whether the hash of (x, z) falls below p in [0, 1).
func Chance(seed int64, x, z int, p float64) bool {
	return float64(Hash2(seed, x, z)>>11)/float64(1<<53) < p
}
