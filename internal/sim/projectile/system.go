package projectile

import (
	"math"

	"xcombat.dev/internal/sim/block"
	"xcombat.dev/internal/sim/catalogs"
	"xcombat.dev/internal/sim/chunk"
	"xcombat.dev/internal/sim/hitbox"
	"xcombat.dev/internal/sim/host"
	"xcombat.dev/internal/sim/queue"
)

// hitboxMargin widens each projectile's chunk search so boxes up to 16
// blocks wide that straddle a chunk border are gathered.
const hitboxMargin = 8

type BlockHit struct {
	World      string
	BX, BY, BZ int
	Block      block.State
	X, Y, Z    float64
	Shooter    host.EntityID
	Gun        *catalogs.Gun
}

type EntityHit struct {
	World   string
	Target  host.EntityID
	Kind    host.EntityKind
	X, Y, Z float64
	Shooter host.EntityID
	Gun     *catalogs.Gun
	// Distance is the total path length flown, used for damage drop-off.
	Distance float64
}

// Trail is one tick of a bullet's visible path.
type Trail struct {
	World            string
	X, Y, Z          float64
	DirX, DirY, DirZ float64
	Length           float64
	NetDistance      float64
	Gun              *catalogs.Gun
}

// Impact marks where a projectile struck, for particles and the block crack
// animation.
type Impact struct {
	World      string
	X, Y, Z    float64
	Block      bool
	BX, BY, BZ int
	State      block.State
}

type Config struct {
	World       string
	Blocks      block.Oracle
	Entities    host.EntityOracle
	Resolver    *block.Resolver
	Passthrough *block.Resolver
	Hitboxes    *hitbox.Registry
}

// System owns every in-flight projectile of one world. Update runs on the
// tick goroutine; AddProjectile may be called from anywhere.
type System struct {
	cfg Config

	projectiles []*Projectile
	staging     []*Projectile
	pending     queue.Concurrent[*Projectile]

	trails  []Trail
	impacts []Impact
	nextID  uint64
}

func NewSystem(cfg Config) *System {
	if cfg.Resolver == nil {
		cfg.Resolver = block.Default()
	}
	if cfg.Passthrough == nil {
		cfg.Passthrough = cfg.Resolver.PassthroughDoors()
	}
	if cfg.Hitboxes == nil {
		cfg.Hitboxes = hitbox.NewRegistry(hitbox.DefaultSizes())
	}
	return &System{
		cfg:         cfg,
		projectiles: make([]*Projectile, 0, 256),
		staging:     make([]*Projectile, 0, 256),
	}
}

func (s *System) World() string { return s.cfg.World }

// AddProjectile queues p to be ticked starting with the next Update.
func (s *System) AddProjectile(p *Projectile) { s.pending.Push(p) }

func (s *System) AddProjectiles(ps []*Projectile) { s.pending.Push(ps...) }

// Len counts live and queued projectiles.
func (s *System) Len() int { return len(s.projectiles) + s.pending.Len() }

func (s *System) Clear() {
	s.projectiles = s.projectiles[:0]
	s.staging = s.staging[:0]
	s.pending.Clear()
	s.trails = nil
	s.impacts = nil
}

// Trails returns and clears the trails produced by previous updates.
func (s *System) Trails() []Trail { return queue.Swap(&s.trails) }

// Impacts returns and clears the impacts produced by previous updates.
func (s *System) Impacts() []Impact { return queue.Swap(&s.impacts) }

// Update advances every projectile one tick. visited forces hitbox gathering
// in extra chunks for systems that run their own collision tests; it is
// extended with every loaded chunk within reach of a projectile path.
//
// The returned index holds hitboxes for every visited chunk and stays valid
// for the rest of the tick.
func (s *System) Update(visited *chunk.Set) (hitbox.Index, []BlockHit, []EntityHit) {
	for _, p := range s.pending.GetAndEmpty() {
		s.nextID++
		p.ID = s.nextID
		s.projectiles = append(s.projectiles, p)
	}

	all := chunk.NewSet(visited.Len() + 16*len(s.projectiles))
	all.Union(visited)
	for _, p := range s.projectiles {
		p.integrate()
		s.addPathChunks(all, p)
	}
	if visited != nil {
		visited.Union(all)
	}

	index := s.gatherHitboxes(all)

	var blockHits []BlockHit
	var entityHits []EntityHit
	for _, p := range s.projectiles {
		r := s.raytrace(p, index)

		switch {
		case r.block:
			blockHits = append(blockHits, BlockHit{
				World: s.cfg.World, BX: r.bx, BY: r.by, BZ: r.bz, Block: r.state,
				X: r.x, Y: r.y, Z: r.z, Shooter: p.Shooter, Gun: p.Gun,
			})
			s.impacts = append(s.impacts, Impact{
				World: s.cfg.World, X: r.x, Y: r.y, Z: r.z,
				Block: true, BX: r.bx, BY: r.by, BZ: r.bz, State: r.state,
			})
		case r.entity != nil:
			entityHits = append(entityHits, EntityHit{
				World: s.cfg.World, Target: r.entity.Entity, Kind: r.entity.Kind,
				X: r.x, Y: r.y, Z: r.z, Shooter: p.Shooter, Gun: p.Gun,
				Distance: float64(p.Distance + r.distance),
			})
			s.impacts = append(s.impacts, Impact{World: s.cfg.World, X: r.x, Y: r.y, Z: r.z})
		}

		s.trails = append(s.trails, Trail{
			World: s.cfg.World,
			X:     float64(p.X), Y: float64(p.Y), Z: float64(p.Z),
			DirX: float64(p.DirX), DirY: float64(p.DirY), DirZ: float64(p.DirZ),
			Length:      float64(min(p.distToNext, r.distance)),
			NetDistance: float64(p.Distance),
			Gun:         p.Gun,
		})

		p.Lifetime++
		p.Distance += p.distToNext
		if r.block || r.entity != nil || r.outOfBounds || !p.alive() {
			continue
		}
		p.X, p.Y, p.Z = p.xNext, p.yNext, p.zNext
		s.staging = append(s.staging, p)
	}

	clear(s.projectiles)
	s.projectiles, s.staging = s.staging, s.projectiles[:0]
	return index, blockHits, entityHits
}

// addPathChunks adds the loaded chunks under the projectile's 2D path AABB,
// padded by hitboxMargin.
func (s *System) addPathChunks(set *chunk.Set, p *Projectile) {
	xmin := int(math.Floor(float64(min(p.X, p.xNext)-hitboxMargin))) >> 4
	zmin := int(math.Floor(float64(min(p.Z, p.zNext)-hitboxMargin))) >> 4
	xmax := int(math.Ceil(float64(max(p.X, p.xNext)+hitboxMargin))) >> 4
	zmax := int(math.Ceil(float64(max(p.Z, p.zNext)+hitboxMargin))) >> 4
	for cx := xmin; cx <= xmax; cx++ {
		for cz := zmin; cz <= zmax; cz++ {
			if s.cfg.Blocks.IsChunkLoaded(cx, cz) {
				set.Add(chunk.Coord{X: cx, Z: cz})
			}
		}
	}
}

func (s *System) gatherHitboxes(chunks *chunk.Set) hitbox.Index {
	index := hitbox.Index{}
	if s.cfg.Entities == nil {
		return index
	}
	chunks.Each(func(c chunk.Coord) {
		for _, e := range s.cfg.Entities.EntitiesInChunk(s.cfg.World, c) {
			if size, ok := s.cfg.Hitboxes.SizeFor(e); ok {
				index.Add(hitbox.FromEntity(e, size))
			}
		}
	})
	return index
}

type traceResult struct {
	outOfBounds bool
	distance    float32

	block      bool
	bx, by, bz int
	state      block.State

	entity *hitbox.Hitbox

	x, y, z float64
}

// raytrace walks the voxels on the projectile's segment (Amanatides & Woo)
// and defers each non-air cell to the material collision handler, then ray
// tests hitboxes in the 3D chunks the walk passed through. The nearer of
// the block and entity hits wins.
func (s *System) raytrace(p *Projectile, index hitbox.Index) traceResult {
	x0, y0, z0 := p.X, p.Y, p.Z
	dirX, dirY, dirZ := p.DirX, p.DirY, p.DirZ
	invX, invY, invZ := hitbox.InvDir(dirX, dirY, dirZ)

	stepX, stepY, stepZ := 1, 1, 1
	if dirX < 0 {
		stepX = -1
	}
	if dirY < 0 {
		stepY = -1
	}
	if dirZ < 0 {
		stepZ = -1
	}

	blx := int(math.Floor(float64(x0)))
	bly := int(math.Floor(float64(y0)))
	blz := int(math.Floor(float64(z0)))
	bl := s.cfg.Blocks.BlockAt(blx, bly, blz)

	cx, cy, cz := blx>>4, bly>>4, blz>>4
	visited := make([]chunk.Coord3D, 1, 4)
	visited[0] = chunk.Coord3D{X: cx, Y: cy, Z: cz}

	resolver := s.cfg.Resolver
	if p.PassthroughDoors {
		resolver = s.cfg.Passthrough
	}

	// The extra margin keeps consecutive ticks' walks overlapping so a
	// bullet cannot slip through a diagonal gap.
	rayMax := p.distToNext + 2
	maxDist := p.MaxDistance + 1
	total := p.Distance
	loaded := s.cfg.Blocks.IsChunkLoaded(cx, cz)

	var r traceResult
	blockDist := block.NoHit

	boundary := func(b, step int) float32 {
		if step > 0 {
			return float32(b + step)
		}
		return float32(b)
	}
	tMaxX := (boundary(blx, stepX) - x0) * invX
	tMaxY := (boundary(bly, stepY) - y0) * invY
	tMaxZ := (boundary(blz, stepZ) - z0) * invZ
	tDeltaX := float32(stepX) * invX
	tDeltaY := float32(stepY) * invY
	tDeltaZ := float32(stepZ) * invZ

	var t float32
	for {
		cbx, cby, cbz := blx, bly, blz
		var tNext float32
		if tMaxX < tMaxY {
			if tMaxX < tMaxZ {
				blx += stepX
				tNext = tMaxX
				tMaxX += tDeltaX
			} else {
				blz += stepZ
				tNext = tMaxZ
				tMaxZ += tDeltaZ
			}
		} else {
			if tMaxY < tMaxZ {
				bly += stepY
				tNext = tMaxY
				tMaxY += tDeltaY
			} else {
				blz += stepZ
				tNext = tMaxZ
				tMaxZ += tDeltaZ
			}
		}
		seg := tNext - t

		if bl.Material != block.Air {
			xs, ys, zs := x0+t*dirX, y0+t*dirY, z0+t*dirZ
			d := resolver.Resolve(bl, cbx, cby, cbz, xs, ys, zs, dirX, dirY, dirZ, seg)
			if d != block.NoHit {
				r.block = true
				r.bx, r.by, r.bz = cbx, cby, cbz
				r.state = bl
				r.x = float64(xs + d*dirX)
				r.y = float64(ys + d*dirY)
				r.z = float64(zs + d*dirZ)
				blockDist = t
				break
			}
		}

		bl = s.cfg.Blocks.BlockAt(blx, bly, blz)
		if ncx, ncy, ncz := blx>>4, bly>>4, blz>>4; ncx != cx || ncy != cy || ncz != cz {
			cx, cy, cz = ncx, ncy, ncz
			if s.cfg.Blocks.IsChunkLoaded(cx, cz) {
				visited = append(visited, chunk.Coord3D{X: cx, Y: cy, Z: cz})
			} else {
				loaded = false
			}
		}
		t = tNext
		total += seg
		if !loaded || t >= rayMax || total >= maxDist {
			break
		}
	}
	r.outOfBounds = !loaded

	hb, entityDist := s.nearestHitbox(p, index, visited, x0, y0, z0, invX, invY, invZ)
	switch {
	case hb != nil && entityDist <= blockDist:
		r.block = false
		r.entity = hb
		r.distance = entityDist
		r.x = float64(x0 + entityDist*dirX)
		r.y = float64(y0 + entityDist*dirY)
		r.z = float64(z0 + entityDist*dirZ)
	case r.block:
		r.distance = blockDist
	default:
		r.distance = t
	}
	return r
}

// nearestHitbox tests hitboxes in the walked chunks, in walk order, and stops
// at the first chunk with a hit. Hits must lie within this tick's segment.
func (s *System) nearestHitbox(p *Projectile, index hitbox.Index, chunks []chunk.Coord3D, x0, y0, z0, invX, invY, invZ float32) (*hitbox.Hitbox, float32) {
	excluded := s.exclusions(p.Source, p.Exclude)
	maxEntity := p.distToNext
	var best *hitbox.Hitbox
	bestDist := block.NoHit

	for _, c := range chunks {
		for _, hb := range index.Query(c) {
			var d float32
			if p.Proximity <= 0 {
				var ok bool
				d, ok = hb.IntersectRay(x0, y0, z0, invX, invY, invZ)
				if !ok {
					continue
				}
			} else {
				line, along := hb.DistanceToLine(x0, y0, z0, p.DirX, p.DirY, p.DirZ)
				if line-hb.RadiusMin >= p.Proximity {
					continue
				}
				d = float32(math.Abs(float64(along)))
			}
			if d >= bestDist || d >= maxEntity || excluded(hb.Entity) {
				continue
			}
			best, bestDist = hb, d
		}
		if best != nil {
			break
		}
	}
	return best, bestDist
}

// exclusions returns a predicate matching the source, its vehicle and its
// passengers.
func (s *System) exclusions(source host.EntityID, extra func(host.EntityID) bool) func(host.EntityID) bool {
	var src host.Entity
	found := false
	if s.cfg.Entities != nil && source != host.Nil {
		src, found = s.cfg.Entities.Entity(source)
	}
	return func(id host.EntityID) bool {
		if id == source || (extra != nil && extra(id)) {
			return true
		}
		if !found {
			return false
		}
		return (src.Vehicle != host.Nil && id == src.Vehicle) || src.HasPassenger(id)
	}
}
