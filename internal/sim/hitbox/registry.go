package hitbox

import "xcombat.dev/internal/sim/host"

// Registry maps marker entities (vehicle parts) to custom hitbox sizes.
// Entities without a custom size fall back to the per-kind table.
type Registry struct {
	kinds  [host.NumEntityKinds]Size
	custom map[host.EntityID]Size
}

func NewRegistry(kinds [host.NumEntityKinds]Size) *Registry {
	return &Registry{kinds: kinds, custom: map[host.EntityID]Size{}}
}

func (r *Registry) SetCustom(id host.EntityID, s Size) { r.custom[id] = s }

func (r *Registry) DeleteCustom(id host.EntityID) { delete(r.custom, id) }

func (r *Registry) Custom(id host.EntityID) (Size, bool) {
	s, ok := r.custom[id]
	return s, ok
}

func (r *Registry) CustomLen() int { return len(r.custom) }

// SizeFor resolves the hitbox of e. ok is false when e is not targetable.
func (r *Registry) SizeFor(e host.Entity) (Size, bool) {
	if e.Kind == host.KindArmorStand {
		s, ok := r.custom[e.ID]
		return s, ok
	}
	if e.Kind >= host.NumEntityKinds {
		return Size{}, false
	}
	s := r.kinds[e.Kind]
	return s, !s.IsZero()
}

// Clear drops every custom size.
func (r *Registry) Clear() { r.custom = map[host.EntityID]Size{} }
