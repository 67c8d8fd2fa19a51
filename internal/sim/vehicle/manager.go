package vehicle

import (
	"fmt"
	"log"

	"github.com/google/uuid"

	"xcombat.dev/internal/persistence/snapshot"
	"xcombat.dev/internal/sim/host"
)

// Manager spawns, destroys and persists whole vehicles. It is owned by the
// tick goroutine.
type Manager struct {
	Components *ComponentStorage
	Vehicles   *VehicleStorage
	Env        *Env
	Prototypes map[string]*Prototype
	Logger     *log.Logger
}

func NewManager(maxVehicles, maxElements int, env *Env, prototypes map[string]*Prototype, logger *log.Logger) *Manager {
	if prototypes == nil {
		prototypes = map[string]*Prototype{}
	}
	return &Manager{
		Components: NewComponentStorage(maxElements),
		Vehicles:   NewVehicleStorage(maxVehicles),
		Env:        env,
		Prototypes: prototypes,
		Logger:     logger,
	}
}

func (m *Manager) Len() int { return m.Vehicles.Len() }

// Spawn creates a vehicle from prototype name at loc. player may be nil.
func (m *Manager) Spawn(name string, loc host.Location, player host.Player) (*Vehicle, error) {
	return m.spawn(name, uuid.New(), loc, player)
}

func (m *Manager) spawn(name string, id uuid.UUID, loc host.Location, player host.Player) (*Vehicle, error) {
	proto, ok := m.Prototypes[name]
	if !ok {
		return nil, fmt.Errorf("vehicle: unknown prototype %q", name)
	}
	if m.Vehicles.Len() >= m.Vehicles.max {
		return nil, ErrFull
	}
	if m.Components.Cap()-m.Components.Len() < len(proto.Elements) {
		return nil, ErrFull
	}

	v := &Vehicle{UUID: id, Prototype: name, World: loc.World}
	byName := map[string]ElementID{}
	for i := range proto.Elements {
		ep := &proto.Elements[i]
		b := ep.Bundle.Clone()
		b.Each(func(c Component) {
			if h, ok := c.(SpawnInjector); ok {
				h.InjectSpawnProperties(m.Env, loc, player)
			}
		})
		eid, err := m.Components.Create(b)
		if err != nil {
			m.releaseBundle(v, &b)
			m.rollback(v)
			return nil, fmt.Errorf("vehicle %s element %s: %w", name, ep.Name, err)
		}
		parent := InvalidElement
		if ep.Parent != "" {
			parent = byName[ep.Parent]
		}
		el := &Element{ID: eid, Name: ep.Name, UUID: uuid.New(), Layout: b.Layout(), Parent: parent}
		v.Elements = append(v.Elements, el)
		byName[ep.Name] = eid
		if parent != InvalidElement {
			for _, p := range v.Elements {
				if p.ID == parent {
					p.Children = append(p.Children, eid)
				}
			}
		}
	}
	if _, err := m.Vehicles.Insert(v); err != nil {
		m.rollback(v)
		return nil, err
	}
	for _, el := range v.Elements {
		b, _ := m.Components.Get(el.ID)
		b.Each(func(c Component) {
			if h, ok := c.(AfterCreator); ok {
				h.AfterCreated(m.Env, v, el)
			}
		})
	}
	return v, nil
}

func (m *Manager) releaseBundle(v *Vehicle, b *Bundle) {
	b.Each(func(c Component) {
		if h, ok := c.(Deleter); ok {
			h.Delete(m.Env, v, nil, true)
		}
	})
}

// rollback undoes a partially built vehicle that was never inserted.
func (m *Manager) rollback(v *Vehicle) {
	for _, el := range v.Elements {
		if b, ok := m.Components.Get(el.ID); ok {
			m.releaseBundle(v, &b)
		}
		if err := m.Components.Free(el.ID); err != nil && m.Logger != nil {
			m.Logger.Printf("SEVERE vehicle rollback %s: %v", v.Prototype, err)
		}
	}
}

// Destroy deletes every element of vehicle id. despawn also removes the
// world-side entities; false only unloads.
func (m *Manager) Destroy(id VehicleID, despawn bool) bool {
	v, ok := m.Vehicles.Get(id)
	if !ok {
		return false
	}
	for _, el := range v.Elements {
		b, ok := m.Components.Get(el.ID)
		if !ok {
			continue
		}
		b.Each(func(c Component) {
			if h, ok := c.(Deleter); ok {
				h.Delete(m.Env, v, el, despawn)
			}
		})
		if err := m.Components.Free(el.ID); err != nil && m.Logger != nil {
			m.Logger.Printf("SEVERE vehicle destroy %s: %v", v.UUID, err)
		}
	}
	m.Vehicles.Free(id)
	return true
}

// Clear unloads every vehicle without despawning its entities.
func (m *Manager) Clear() {
	for _, id := range m.Vehicles.IDs() {
		m.Destroy(id, false)
	}
	m.Components.Clear()
	m.Vehicles.Clear()
	clear(m.Env.Links)
}

// Persist captures the mutable state of v.
func (m *Manager) Persist(v *Vehicle) snapshot.VehicleV1 {
	out := snapshot.VehicleV1{UUID: v.UUID.String(), Prototype: v.Prototype, World: v.World}
	for _, el := range v.Elements {
		pe := snapshot.ElementV1{Name: el.Name, UUID: el.UUID.String()}
		if b, ok := m.Components.Get(el.ID); ok {
			b.Each(func(c Component) {
				if p, ok := c.(Persister); ok {
					if pe.Components == nil {
						pe.Components = map[string]map[string]float64{}
					}
					pe.Components[c.Type().String()] = p.ToPersisted()
				}
			})
		}
		out.Elements = append(out.Elements, pe)
	}
	return out
}

// Restore respawns a persisted vehicle at its saved pose and reapplies the
// persisted component state. Elements no longer in the prototype are
// dropped.
func (m *Manager) Restore(pv snapshot.VehicleV1) (*Vehicle, error) {
	id, err := uuid.Parse(pv.UUID)
	if err != nil {
		return nil, fmt.Errorf("vehicle %q: %w", pv.UUID, err)
	}
	if _, dup := m.Vehicles.ByUUID(id); dup {
		return nil, fmt.Errorf("vehicle %s already loaded", id)
	}
	proto, ok := m.Prototypes[pv.Prototype]
	if !ok {
		return nil, fmt.Errorf("vehicle %s: unknown prototype %q", id, pv.Prototype)
	}
	loc := host.Location{World: pv.World}
	for _, pe := range pv.Elements {
		t := pe.Components[TypeTransform.String()]
		if t == nil {
			continue
		}
		var ox, oy, oz float64
		for _, ep := range proto.Elements {
			if ep.Name == pe.Name && ep.Transform != nil {
				ox, oy, oz = ep.Transform.OffsetX, ep.Transform.OffsetY, ep.Transform.OffsetZ
			}
		}
		loc.X, loc.Y, loc.Z = t["x"]-ox, t["y"]-oy, t["z"]-oz
		loc.Yaw, loc.Pitch = float32(t["yaw"]), float32(t["pitch"])
		break
	}
	v, err := m.spawn(pv.Prototype, id, loc, nil)
	if err != nil {
		return nil, err
	}
	for _, pe := range pv.Elements {
		el, ok := v.Element(pe.Name)
		if !ok {
			continue
		}
		if u, err := uuid.Parse(pe.UUID); err == nil {
			el.UUID = u
		}
		b, _ := m.Components.Get(el.ID)
		b.Each(func(c Component) {
			p, ok := c.(Persister)
			if !ok {
				return
			}
			if data, ok := pe.Components[c.Type().String()]; ok {
				p.FromPersisted(data)
			}
		})
	}
	return v, nil
}

// LinkOf resolves a marker entity to its element.
func (m *Manager) LinkOf(entity host.EntityID) (EntityLink, bool) {
	l, ok := m.Env.Links[entity]
	return l, ok
}

// PassengerArmor is the seat armor of the vehicle element a rider sits on,
// or 0 when carrier is not a vehicle seat.
func (m *Manager) PassengerArmor(carrier host.EntityID) float64 {
	l, ok := m.Env.Links[carrier]
	if !ok || l.Component != TypeSeats {
		return 0
	}
	if s, ok := GetComponent(m.Components, SeatsCol, l.Element); ok {
		return s.Armor
	}
	return 0
}

// Damage applies amount to the health of the element linked to entity, or
// of its nearest ancestor carrying health. It reports the owning vehicle
// when this call destroyed it.
func (m *Manager) Damage(entity host.EntityID, amount float64, rec KillRecord) (*Vehicle, bool) {
	l, ok := m.Env.Links[entity]
	if !ok {
		return nil, false
	}
	v, ok := m.Vehicles.Get(l.Vehicle)
	if !ok {
		return nil, false
	}
	h := m.healthOf(v, l.Element)
	if h == nil || !h.Damage(amount, rec) {
		return nil, false
	}
	return v, true
}

func (m *Manager) healthOf(v *Vehicle, id ElementID) *HealthComponent {
	for id != InvalidElement {
		if h, ok := GetComponent(m.Components, HealthCol, id); ok {
			return h
		}
		parent := InvalidElement
		for _, el := range v.Elements {
			if el.ID == id {
				parent = el.Parent
			}
		}
		id = parent
	}
	return nil
}

// Health returns the health component of the element linked to entity or
// its nearest ancestor.
func (m *Manager) Health(entity host.EntityID) (*HealthComponent, bool) {
	l, ok := m.Env.Links[entity]
	if !ok {
		return nil, false
	}
	v, ok := m.Vehicles.Get(l.Vehicle)
	if !ok {
		return nil, false
	}
	h := m.healthOf(v, l.Element)
	return h, h != nil
}
