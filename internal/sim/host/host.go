// Package host describes the collaborators the combat engine consumes:
// players and their held items, world entities, and region protection.
// The engine never owns these objects; it reaches them by id.
package host

import (
	"math"

	"github.com/google/uuid"

	"xcombat.dev/internal/sim/chunk"
)

// EntityID is an opaque stable identifier. Used only for equality and hashing.
type EntityID = uuid.UUID

// Nil is the zero EntityID ("no entity").
var Nil = uuid.Nil

func NewEntityID() EntityID { return uuid.New() }

func ParseEntityID(s string) (EntityID, error) { return uuid.Parse(s) }

type EntityKind uint8

const (
	KindUnknown EntityKind = iota
	KindPlayer
	KindArmorStand
	KindItem
	KindMarker
	KindZombie
	KindSkeleton
	KindVillager
	KindPig
	KindCow
	KindHorse
	NumEntityKinds
)

var kindNames = [NumEntityKinds]string{
	"unknown", "player", "armor_stand", "item", "marker", "zombie",
	"skeleton", "villager", "pig", "cow", "horse",
}

func (k EntityKind) String() string {
	if k < NumEntityKinds {
		return kindNames[k]
	}
	return "unknown"
}

func KindByName(s string) (EntityKind, bool) {
	for i, n := range kindNames {
		if n == s {
			return EntityKind(i), true
		}
	}
	return KindUnknown, false
}

// Location is a world position with a look direction in degrees.
type Location struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Yaw   float32 `json:"yaw"`
	Pitch float32 `json:"pitch"`
}

// Direction returns the unit look vector (yaw 0 faces +Z, pitch 90 faces down).
func (l Location) Direction() (float64, float64, float64) {
	yaw := float64(l.Yaw) * math.Pi / 180
	pitch := float64(l.Pitch) * math.Pi / 180
	xz := math.Cos(pitch)
	return -xz * math.Sin(yaw), -math.Sin(pitch), xz * math.Cos(yaw)
}

func (l Location) Add(dx, dy, dz float64) Location {
	l.X += dx
	l.Y += dy
	l.Z += dz
	return l
}

func (l Location) Distance(o Location) float64 {
	dx, dy, dz := l.X-o.X, l.Y-o.Y, l.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (l Location) BlockX() int { return int(math.Floor(l.X)) }
func (l Location) BlockY() int { return int(math.Floor(l.Y)) }
func (l Location) BlockZ() int { return int(math.Floor(l.Z)) }

func (l Location) Chunk() chunk.Coord { return chunk.FromPosition(l.X, l.Z) }

// Entity is a read-only view of a world entity at the time it was queried.
type Entity struct {
	ID         EntityID
	Kind       EntityKind
	Loc        Location
	Vel        [3]float64
	Living     bool
	Sneaking   bool
	Swimming   bool
	Vehicle    EntityID
	Passengers []EntityID
}

func (e Entity) HasPassenger(id EntityID) bool {
	for _, p := range e.Passengers {
		if p == id {
			return true
		}
	}
	return false
}

// Player is a connected player. Implementations must be safe for use from
// background tasks for the read-only methods (Online, Dead, Location,
// HeldItem).
type Player interface {
	ID() EntityID
	Name() string
	Online() bool
	Dead() bool
	Location() Location
	EyeLocation() Location
	Sneaking() bool
	Vehicle() EntityID
	LeaveVehicle()
	SetCrawlPose(on bool)

	HeldSlot() int
	HeldItem() (Item, bool)
	ItemAt(slot int) (Item, bool)
	SetItemAt(slot int, it Item)
	Helmet() (Item, bool)
	SetHelmet(it Item)
	AddItem(it Item)
	CountItems(kind ItemKind, model int) int
	RemoveItems(kind ItemKind, model int, n int) bool

	Health() float64
	Armor() float64
	BlastProtection() float64
	// AimDownSights reports whether the player opted into ADS models.
	AimDownSights() bool
}

// EntityOracle is the world entity collaborator.
type EntityOracle interface {
	EntitiesInChunk(world string, c chunk.Coord) []Entity
	Entity(id EntityID) (Entity, bool)
	Damage(id EntityID, amount float64, source EntityID)
	SetFireTicks(id EntityID, ticks int)
	Kill(id EntityID)

	SpawnMarker(kind EntityKind, loc Location) EntityID
	SpawnItem(loc Location, it Item, vel [3]float64) EntityID
	Teleport(id EntityID, loc Location)
	Remove(id EntityID)
}

// Protection is a region permission oracle.
type Protection interface {
	CanPvpAt(loc Location) bool
	CanExplodeAt(loc Location) bool
	CanCreateFireAt(loc Location) bool
}

// PlayerDirectory resolves players by id.
type PlayerDirectory interface {
	Player(id EntityID) (Player, bool)
	OnlinePlayers() []Player
}

// AllowAll permits everything.
type AllowAll struct{}

func (AllowAll) CanPvpAt(Location) bool        { return true }
func (AllowAll) CanExplodeAt(Location) bool    { return true }
func (AllowAll) CanCreateFireAt(Location) bool { return true }
