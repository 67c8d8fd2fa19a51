package vehicle

// Column names one typed column of an archetype.
type Column[T any] struct {
	typ ComponentType
	get func(*Archetype) []T
}

func (c Column[T]) Type() ComponentType { return c.typ }

var (
	AmmoCol      = Column[AmmoComponent]{TypeAmmo, func(a *Archetype) []AmmoComponent { return a.ammo }}
	FuelCol      = Column[FuelComponent]{TypeFuel, func(a *Archetype) []FuelComponent { return a.fuel }}
	GunBarrelCol = Column[GunBarrelComponent]{TypeGunBarrel, func(a *Archetype) []GunBarrelComponent { return a.gunBarrel }}
	HealthCol    = Column[HealthComponent]{TypeHealth, func(a *Archetype) []HealthComponent { return a.health }}
	ModelCol     = Column[ModelComponent]{TypeModel, func(a *Archetype) []ModelComponent { return a.model }}
	SeatsCol     = Column[SeatsComponent]{TypeSeats, func(a *Archetype) []SeatsComponent { return a.seats }}
	TransformCol = Column[TransformComponent]{TypeTransform, func(a *Archetype) []TransformComponent { return a.transform }}
)

// The fn callbacks must not create or free elements.

func Query1[A any](s *ComponentStorage, ca Column[A], fn func(ElementID, *A)) {
	for _, arch := range s.MatchingArchetypes(LayoutOf(ca.typ)) {
		as := ca.get(arch)
		for i, id := range arch.elements {
			fn(id, &as[i])
		}
	}
}

func Query2[A, B any](s *ComponentStorage, ca Column[A], cb Column[B], fn func(ElementID, *A, *B)) {
	for _, arch := range s.MatchingArchetypes(LayoutOf(ca.typ, cb.typ)) {
		as, bs := ca.get(arch), cb.get(arch)
		for i, id := range arch.elements {
			fn(id, &as[i], &bs[i])
		}
	}
}

func Query3[A, B, C any](s *ComponentStorage, ca Column[A], cb Column[B], cc Column[C], fn func(ElementID, *A, *B, *C)) {
	for _, arch := range s.MatchingArchetypes(LayoutOf(ca.typ, cb.typ, cc.typ)) {
		as, bs, cs := ca.get(arch), cb.get(arch), cc.get(arch)
		for i, id := range arch.elements {
			fn(id, &as[i], &bs[i], &cs[i])
		}
	}
}

// GetComponent returns id's component in column c.
func GetComponent[T any](s *ComponentStorage, c Column[T], id ElementID) (*T, bool) {
	a, ok := s.Archetype(id)
	if !ok || !a.layout.Has(c.typ) {
		return nil, false
	}
	return &c.get(a)[a.Dense(id)], true
}
