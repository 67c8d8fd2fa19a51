// Package block holds block materials, shape state, and the per-material
// collision handler tables used by projectile and throwable raymarching.
package block

// Material is a closed set of block materials known to the engine.
type Material uint16

const (
	Air Material = iota
	Stone
	Dirt
	Grass
	Sand
	Gravel
	Planks
	Log
	Bricks
	Concrete
	IronBlock
	Obsidian
	Anvil
	Barrier
	Snow
	Scaffolding
	TallGrass
	Flower
	Leaves
	Glass
	GlassPane
	Carpet
	Sign
	Torch
	Water
	Lava
	Fire
	Chest
	Slab
	Bed
	DaylightDetector
	Door
	IronDoor
	Trapdoor
	Stairs
	Wall
	Fence
	Landmine
	NumMaterials
)

// Family is the collision shape category of a material.
type Family uint8

const (
	// FamilyOpen materials never stop projectiles.
	FamilyOpen Family = iota
	FamilySolid
	FamilySlab
	FamilyHalf
	FamilyDoor
	FamilyTrapdoor
	FamilyStairs
	FamilyWall
	FamilyFence
	// FamilyOther falls back to the occluding flag.
	FamilyOther
	NumFamilies
)

type materialInfo struct {
	name      string
	family    Family
	occluding bool
	solid     bool
}

var materials = [NumMaterials]materialInfo{
	Air:              {"air", FamilyOpen, false, false},
	Stone:            {"stone", FamilyOther, true, true},
	Dirt:             {"dirt", FamilyOther, true, true},
	Grass:            {"grass_block", FamilyOther, true, true},
	Sand:             {"sand", FamilyOther, true, true},
	Gravel:           {"gravel", FamilyOther, true, true},
	Planks:           {"planks", FamilyOther, true, true},
	Log:              {"log", FamilyOther, true, true},
	Bricks:           {"bricks", FamilyOther, true, true},
	Concrete:         {"concrete", FamilyOther, true, true},
	IronBlock:        {"iron_block", FamilyOther, true, true},
	Obsidian:         {"obsidian", FamilyOther, true, true},
	Anvil:            {"anvil", FamilySolid, false, true},
	Barrier:          {"barrier", FamilyOther, false, true},
	Snow:             {"snow", FamilyOpen, false, false},
	Scaffolding:      {"scaffolding", FamilyOpen, false, false},
	TallGrass:        {"tall_grass", FamilyOpen, false, false},
	Flower:           {"flower", FamilyOther, false, false},
	Leaves:           {"leaves", FamilyOpen, false, true},
	Glass:            {"glass", FamilyOpen, false, true},
	GlassPane:        {"glass_pane", FamilyOpen, false, true},
	Carpet:           {"carpet", FamilyOpen, false, true},
	Sign:             {"sign", FamilyOpen, false, true},
	Torch:            {"torch", FamilyOther, false, false},
	Water:            {"water", FamilyOpen, false, false},
	Lava:             {"lava", FamilyOther, false, false},
	Fire:             {"fire", FamilyOther, false, false},
	Chest:            {"chest", FamilyOther, false, true},
	Slab:             {"slab", FamilySlab, false, true},
	Bed:              {"bed", FamilyHalf, false, true},
	DaylightDetector: {"daylight_detector", FamilyHalf, false, true},
	Door:             {"door", FamilyDoor, false, true},
	IronDoor:         {"iron_door", FamilyDoor, false, true},
	Trapdoor:         {"trapdoor", FamilyTrapdoor, false, true},
	Stairs:           {"stairs", FamilyStairs, false, true},
	Wall:             {"wall", FamilyWall, false, true},
	Fence:            {"fence", FamilyFence, false, true},
	Landmine:         {"landmine", FamilyOther, false, false},
}

func (m Material) String() string {
	if m < NumMaterials {
		return materials[m].name
	}
	return "unknown"
}

func (m Material) Family() Family {
	if m < NumMaterials {
		return materials[m].family
	}
	return FamilyOther
}

// Occluding reports whether the material is a full opaque cube.
func (m Material) Occluding() bool { return m < NumMaterials && materials[m].occluding }

// Solid reports whether entities can stand on the material.
func (m Material) Solid() bool { return m < NumMaterials && materials[m].solid }

func MaterialByName(name string) (Material, bool) {
	for i := range materials {
		if materials[i].name == name {
			return Material(i), true
		}
	}
	return Air, false
}

// Facing is a horizontal block face in clockwise order.
type Facing uint8

const (
	North Facing = iota // -Z
	East                // +X
	South               // +Z
	West                // -X
)

func (f Facing) Clockwise() Facing        { return (f + 1) % 4 }
func (f Facing) Opposite() Facing         { return (f + 2) % 4 }
func (f Facing) CounterClockwise() Facing { return (f + 3) % 4 }

type Half uint8

const (
	Bottom Half = iota
	Top
)

type SlabType uint8

const (
	SlabBottom SlabType = iota
	SlabTop
	SlabDouble
)

type StairShape uint8

const (
	StairStraight StairShape = iota
	StairInnerLeft
	StairInnerRight
	StairOuterLeft
	StairOuterRight
)

type Hinge uint8

const (
	HingeLeft Hinge = iota
	HingeRight
)

type WallHeight uint8

const (
	WallNone WallHeight = iota
	WallLow
	WallTall
)

// State is a block's material plus the shape data collision handlers read.
type State struct {
	Material Material      `json:"m"`
	Facing   Facing        `json:"f,omitempty"`
	Half     Half          `json:"h,omitempty"`
	Slab     SlabType      `json:"s,omitempty"`
	Stairs   StairShape    `json:"st,omitempty"`
	Hinge    Hinge         `json:"hi,omitempty"`
	Open     bool          `json:"o,omitempty"`
	Walls    [4]WallHeight `json:"w,omitempty"`
}

func Of(m Material) State { return State{Material: m} }

// Oracle reads world blocks. It must return a consistent view for the
// duration of a tick.
type Oracle interface {
	BlockAt(x, y, z int) State
	IsChunkLoaded(cx, cz int) bool
}

// Mutable is an Oracle that can also change blocks (fire, landmine removal).
type Mutable interface {
	Oracle
	SetBlock(x, y, z int, s State)
}
