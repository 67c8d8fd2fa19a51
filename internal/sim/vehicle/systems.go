package vehicle

import "xcombat.dev/internal/sim/host"

// SyncTransforms moves the marker entities of every element whose transform
// changed since the last sync.
func (m *Manager) SyncTransforms() int {
	n := 0
	Query2(m.Components, TransformCol, ModelCol, func(_ ElementID, t *TransformComponent, md *ModelComponent) {
		if t.Dirty && md.Stand != host.Nil {
			m.Env.Entities.Teleport(md.Stand, t.Location().Add(md.OffsetX, md.OffsetY, md.OffsetZ))
		}
	})
	Query2(m.Components, TransformCol, SeatsCol, func(_ ElementID, t *TransformComponent, s *SeatsComponent) {
		if !t.Dirty {
			return
		}
		for i, mk := range s.Markers {
			if mk != host.Nil {
				m.Env.Entities.Teleport(mk, s.SeatLocation(i, t))
			}
		}
	})
	Query1(m.Components, TransformCol, func(_ ElementID, t *TransformComponent) {
		if t.Dirty {
			t.Dirty = false
			n++
		}
	})
	return n
}

// Move places every element of v at loc plus its own offset.
func (m *Manager) Move(v *Vehicle, loc host.Location) {
	for _, el := range v.Elements {
		t, ok := GetComponent(m.Components, TransformCol, el.ID)
		if !ok {
			continue
		}
		t.World = loc.World
		t.X, t.Y, t.Z = loc.X+t.OffsetX, loc.Y+t.OffsetY, loc.Z+t.OffsetZ
		t.Pitch = float64(loc.Pitch)
		t.SetYaw(float64(loc.Yaw))
	}
	v.World = loc.World
}

// ElementsWithAmmo counts loaded gun barrels, the turrets able to fire.
func (m *Manager) ElementsWithAmmo() int {
	n := 0
	Query2(m.Components, GunBarrelCol, AmmoCol, func(_ ElementID, _ *GunBarrelComponent, a *AmmoComponent) {
		if a.Current > 0 {
			n++
		}
	})
	return n
}
