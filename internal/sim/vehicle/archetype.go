package vehicle

import "fmt"

type ElementID int

const InvalidElement ElementID = -1

// Archetype is struct-of-arrays storage for every element sharing one
// layout. Columns for types outside the layout stay nil.
type Archetype struct {
	layout Layout

	// sparse element id -> dense index, and dense index -> element id
	lookup   []int
	elements []ElementID

	ammo      []AmmoComponent
	fuel      []FuelComponent
	gunBarrel []GunBarrelComponent
	health    []HealthComponent
	model     []ModelComponent
	seats     []SeatsComponent
	transform []TransformComponent
}

func newArchetype(layout Layout, maxElements int) *Archetype {
	a := &Archetype{layout: layout, lookup: make([]int, maxElements)}
	for i := range a.lookup {
		a.lookup[i] = -1
	}
	if layout.Has(TypeAmmo) {
		a.ammo = []AmmoComponent{}
	}
	if layout.Has(TypeFuel) {
		a.fuel = []FuelComponent{}
	}
	if layout.Has(TypeGunBarrel) {
		a.gunBarrel = []GunBarrelComponent{}
	}
	if layout.Has(TypeHealth) {
		a.health = []HealthComponent{}
	}
	if layout.Has(TypeModel) {
		a.model = []ModelComponent{}
	}
	if layout.Has(TypeSeats) {
		a.seats = []SeatsComponent{}
	}
	if layout.Has(TypeTransform) {
		a.transform = []TransformComponent{}
	}
	return a
}

func (a *Archetype) Layout() Layout { return a.layout }

func (a *Archetype) Len() int { return len(a.elements) }

// Elements lists element ids in dense order. The slice is owned by the
// archetype.
func (a *Archetype) Elements() []ElementID { return a.elements }

// Dense returns id's column index, or -1.
func (a *Archetype) Dense(id ElementID) int {
	if id < 0 || int(id) >= len(a.lookup) {
		return -1
	}
	return a.lookup[id]
}

func (a *Archetype) insert(id ElementID, b *Bundle) error {
	if b.Layout() != a.layout {
		return fmt.Errorf("archetype %s: bundle layout %s", a.layout, b.Layout())
	}
	if id < 0 || int(id) >= len(a.lookup) {
		return fmt.Errorf("archetype %s: element %d out of range", a.layout, id)
	}
	if a.lookup[id] != -1 {
		return fmt.Errorf("archetype %s: element %d already present", a.layout, id)
	}
	a.lookup[id] = len(a.elements)
	a.elements = append(a.elements, id)
	if b.Ammo != nil {
		a.ammo = append(a.ammo, *b.Ammo)
	}
	if b.Fuel != nil {
		a.fuel = append(a.fuel, *b.Fuel)
	}
	if b.GunBarrel != nil {
		a.gunBarrel = append(a.gunBarrel, *b.GunBarrel)
	}
	if b.Health != nil {
		a.health = append(a.health, *b.Health)
	}
	if b.Model != nil {
		a.model = append(a.model, *b.Model)
	}
	if b.Seats != nil {
		a.seats = append(a.seats, *b.Seats)
	}
	if b.Transform != nil {
		a.transform = append(a.transform, *b.Transform)
	}
	return nil
}

func swapRemove[T any](s []T, i int) []T {
	last := len(s) - 1
	s[i] = s[last]
	var zero T
	s[last] = zero
	return s[:last]
}

// remove swaps the last element into id's slot. The moved element's lookup
// entry is rewritten before id's is invalidated so removing the last
// element is also correct.
func (a *Archetype) remove(id ElementID) error {
	d := a.Dense(id)
	if d < 0 || a.elements[d] != id {
		return fmt.Errorf("archetype %s: element %d not present", a.layout, id)
	}
	last := len(a.elements) - 1
	moved := a.elements[last]
	a.elements[d] = moved
	a.lookup[moved] = d
	a.lookup[id] = -1
	a.elements = a.elements[:last]

	if a.ammo != nil {
		a.ammo = swapRemove(a.ammo, d)
	}
	if a.fuel != nil {
		a.fuel = swapRemove(a.fuel, d)
	}
	if a.gunBarrel != nil {
		a.gunBarrel = swapRemove(a.gunBarrel, d)
	}
	if a.health != nil {
		a.health = swapRemove(a.health, d)
	}
	if a.model != nil {
		a.model = swapRemove(a.model, d)
	}
	if a.seats != nil {
		a.seats = swapRemove(a.seats, d)
	}
	if a.transform != nil {
		a.transform = swapRemove(a.transform, d)
	}
	return nil
}

// bundle returns pointers into the columns at dense index d. The pointers are
// invalidated by the next insert or remove on this archetype.
func (a *Archetype) bundle(d int) Bundle {
	var b Bundle
	if a.ammo != nil {
		b.Ammo = &a.ammo[d]
	}
	if a.fuel != nil {
		b.Fuel = &a.fuel[d]
	}
	if a.gunBarrel != nil {
		b.GunBarrel = &a.gunBarrel[d]
	}
	if a.health != nil {
		b.Health = &a.health[d]
	}
	if a.model != nil {
		b.Model = &a.model[d]
	}
	if a.seats != nil {
		b.Seats = &a.seats[d]
	}
	if a.transform != nil {
		b.Transform = &a.transform[d]
	}
	return b
}

func (a *Archetype) clear() {
	for _, id := range a.elements {
		a.lookup[id] = -1
	}
	a.elements = a.elements[:0]
	if a.ammo != nil {
		a.ammo = a.ammo[:0]
	}
	if a.fuel != nil {
		a.fuel = a.fuel[:0]
	}
	if a.gunBarrel != nil {
		a.gunBarrel = a.gunBarrel[:0]
	}
	if a.health != nil {
		a.health = a.health[:0]
	}
	if a.model != nil {
		a.model = a.model[:0]
	}
	if a.seats != nil {
		a.seats = a.seats[:0]
	}
	if a.transform != nil {
		a.transform = a.transform[:0]
	}
}

// columnLen returns the length of column t, or -1 when absent.
func (a *Archetype) columnLen(t ComponentType) int {
	var n int
	var present bool
	switch t {
	case TypeAmmo:
		n, present = len(a.ammo), a.ammo != nil
	case TypeFuel:
		n, present = len(a.fuel), a.fuel != nil
	case TypeGunBarrel:
		n, present = len(a.gunBarrel), a.gunBarrel != nil
	case TypeHealth:
		n, present = len(a.health), a.health != nil
	case TypeModel:
		n, present = len(a.model), a.model != nil
	case TypeSeats:
		n, present = len(a.seats), a.seats != nil
	case TypeTransform:
		n, present = len(a.transform), a.transform != nil
	}
	if !present {
		return -1
	}
	return n
}
