package vehicle

import "github.com/google/uuid"

type VehicleID int

const InvalidVehicle VehicleID = -1

// Element is one part of a vehicle (hull, turret, ...). Its components live
// in the ComponentStorage under ID.
type Element struct {
	ID       ElementID
	Name     string
	UUID     uuid.UUID
	Layout   Layout
	Parent   ElementID
	Children []ElementID
}

type Vehicle struct {
	ID        VehicleID
	UUID      uuid.UUID
	Prototype string
	World     string
	// Elements in prototype order.
	Elements []*Element
}

// Element returns the element named name.
func (v *Vehicle) Element(name string) (*Element, bool) {
	for _, el := range v.Elements {
		if el.Name == name {
			return el, true
		}
	}
	return nil, false
}

func (v *Vehicle) Roots() []*Element {
	var out []*Element
	for _, el := range v.Elements {
		if el.Parent == InvalidElement {
			out = append(out, el)
		}
	}
	return out
}

// VehicleStorage maps vehicle ids to vehicles and element ids back to their
// owning vehicle. Ids are recycled lowest first.
type VehicleStorage struct {
	max      int
	vehicles []*Vehicle
	free     []VehicleID
	owner    map[ElementID]VehicleID
	byUUID   map[uuid.UUID]VehicleID
}

func NewVehicleStorage(maxVehicles int) *VehicleStorage {
	s := &VehicleStorage{max: maxVehicles}
	s.Clear()
	return s
}

func (s *VehicleStorage) Clear() {
	s.vehicles = make([]*Vehicle, s.max)
	s.free = make([]VehicleID, 0, s.max)
	for i := s.max - 1; i >= 0; i-- {
		s.free = append(s.free, VehicleID(i))
	}
	s.owner = map[ElementID]VehicleID{}
	s.byUUID = map[uuid.UUID]VehicleID{}
}

func (s *VehicleStorage) Len() int { return s.max - len(s.free) }

// Insert assigns v an id and indexes its elements.
func (s *VehicleStorage) Insert(v *Vehicle) (VehicleID, error) {
	if len(s.free) == 0 {
		return InvalidVehicle, ErrFull
	}
	id := s.free[len(s.free)-1]
	s.free = s.free[:len(s.free)-1]
	v.ID = id
	s.vehicles[id] = v
	for _, el := range v.Elements {
		s.owner[el.ID] = id
	}
	s.byUUID[v.UUID] = id
	return id, nil
}

// Free releases id and its element mappings.
func (s *VehicleStorage) Free(id VehicleID) (*Vehicle, bool) {
	v, ok := s.Get(id)
	if !ok {
		return nil, false
	}
	for _, el := range v.Elements {
		delete(s.owner, el.ID)
	}
	delete(s.byUUID, v.UUID)
	s.vehicles[id] = nil
	s.free = append(s.free, id)
	return v, true
}

func (s *VehicleStorage) Get(id VehicleID) (*Vehicle, bool) {
	if id < 0 || int(id) >= s.max || s.vehicles[id] == nil {
		return nil, false
	}
	return s.vehicles[id], true
}

func (s *VehicleStorage) ByUUID(u uuid.UUID) (*Vehicle, bool) {
	id, ok := s.byUUID[u]
	if !ok {
		return nil, false
	}
	return s.Get(id)
}

// OwnerOf returns the vehicle owning element el.
func (s *VehicleStorage) OwnerOf(el ElementID) (*Vehicle, bool) {
	id, ok := s.owner[el]
	if !ok {
		return nil, false
	}
	return s.Get(id)
}

// Each visits vehicles in id order.
func (s *VehicleStorage) Each(fn func(*Vehicle)) {
	for _, v := range s.vehicles {
		if v != nil {
			fn(v)
		}
	}
}

// IDs returns the live vehicle ids sorted ascending.
func (s *VehicleStorage) IDs() []VehicleID {
	out := make([]VehicleID, 0, s.Len())
	for i, v := range s.vehicles {
		if v != nil {
			out = append(out, VehicleID(i))
		}
	}
	return out
}
