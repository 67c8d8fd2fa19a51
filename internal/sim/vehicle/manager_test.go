package vehicle

import (
	"os"
	"path/filepath"
	"testing"

	"xcombat.dev/internal/sim/damage"
	"xcombat.dev/internal/sim/hitbox"
	"xcombat.dev/internal/sim/host"
	"xcombat.dev/internal/sim/host/memhost"
)

const tankYAML = `
name: tank
elements:
  - name: hull
    transform: {}
    health:
      current: 100
      max: 100
      damage_multiplier: {bullet: 0.1}
    model:
      model_id: 7
      hitbox: {x_half: 1.5, z_half: 2.5, y_height: 1.6}
    seats:
      count: 2
      offsets: [0, 1, 0, 0, 1, -1]
      armor: 3
  - name: turret
    parent: hull
    transform: {offset_y: 1.5}
    ammo: {current: 10, max: 10}
    gun_barrel: {gun_id: 4, pitch_min: -10, pitch_max: 30}
    model:
      model_id: 8
      hitbox: {x_half: 1, z_half: 1, y_height: 0.8}
`

func loadTank(t *testing.T) map[string]*Prototype {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tank.yaml"), []byte(tankYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	protos, err := LoadPrototypes(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	return protos
}

func newTestManager(t *testing.T) (*Manager, *memhost.Host, *hitbox.Registry) {
	t.Helper()
	h := memhost.New()
	reg := hitbox.NewRegistry([host.NumEntityKinds]hitbox.Size{})
	return NewManager(4, 16, NewEnv(h, reg), loadTank(t), nil), h, reg
}

func TestLoadPrototypesSkipsInvalid(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.yaml":   tankYAML,
		"b.yaml":   "name: orphan\nelements:\n  - name: gun\n    parent: body\n    ammo: {current: 1, max: 1}\n",
		"c.yaml":   "name: empty\nelements:\n  - name: nothing\n",
		"d.yml":    "name: [broken\n",
		"note.txt": "ignored",
	}
	for n, body := range files {
		if err := os.WriteFile(filepath.Join(dir, n), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	protos, err := LoadPrototypes(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(protos) != 1 || protos["tank"] == nil {
		t.Fatalf("prototypes=%v want only tank", protos)
	}
	hull := protos["tank"].Elements[0]
	if hull.Health == nil || hull.Health.Multiplier(damage.Bullet) != 0.1 || hull.Health.Multiplier(damage.Explosive) != 1 {
		t.Fatalf("hull health=%+v", hull.Health)
	}
	if got := protos["tank"].Elements[1].Layout(); got != LayoutOf(TypeTransform, TypeAmmo, TypeGunBarrel, TypeModel) {
		t.Fatalf("turret layout=%s", got)
	}
}

func TestSpawnRunsHooksAndDestroyReleases(t *testing.T) {
	m, h, reg := newTestManager(t)
	loc := host.Location{World: "w", X: 10, Y: 5, Z: 10, Yaw: 90}
	v, err := m.Spawn("tank", loc, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Elements) != 2 || v.Elements[1].Parent != v.Elements[0].ID {
		t.Fatalf("elements=%+v", v.Elements)
	}
	if len(v.Elements[0].Children) != 1 {
		t.Fatalf("hull children=%v", v.Elements[0].Children)
	}
	// hull stand + 2 seats + turret stand + barrel
	if got := len(m.Env.Links); got != 5 {
		t.Fatalf("links=%d want 5", got)
	}
	if got := reg.CustomLen(); got != 2 {
		t.Fatalf("custom hitboxes=%d want 2", got)
	}
	tr, _ := GetComponent(m.Components, TransformCol, v.Elements[1].ID)
	if tr.Y != 6.5 || tr.YawSin != 1 {
		t.Fatalf("turret transform=%+v", tr)
	}
	seats, _ := GetComponent(m.Components, SeatsCol, v.Elements[0].ID)
	if got := m.PassengerArmor(seats.Markers[1]); got != 3 {
		t.Fatalf("PassengerArmor=%v want 3", got)
	}
	if got := m.PassengerArmor(host.NewEntityID()); got != 0 {
		t.Fatalf("PassengerArmor(unknown)=%v want 0", got)
	}

	stand, _ := GetComponent(m.Components, ModelCol, v.Elements[0].ID)
	standID := stand.Stand
	if !m.Destroy(v.ID, true) {
		t.Fatalf("Destroy failed")
	}
	if len(m.Env.Links) != 0 || reg.CustomLen() != 0 {
		t.Fatalf("links=%d custom=%d after destroy", len(m.Env.Links), reg.CustomLen())
	}
	if _, ok := h.Entity(standID); ok {
		t.Fatalf("stand not despawned")
	}
	if m.Components.Len() != 0 || m.Len() != 0 {
		t.Fatalf("components=%d vehicles=%d", m.Components.Len(), m.Len())
	}
	if err := m.Components.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestSpawnFailsWhenElementsRunOut(t *testing.T) {
	h := memhost.New()
	reg := hitbox.NewRegistry([host.NumEntityKinds]hitbox.Size{})
	m := NewManager(4, 3, NewEnv(h, reg), loadTank(t), nil)
	if _, err := m.Spawn("tank", host.Location{World: "w"}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Spawn("tank", host.Location{World: "w"}, nil); err == nil {
		t.Fatalf("second spawn succeeded with 1 free element")
	}
	if _, err := m.Spawn("boat", host.Location{World: "w"}, nil); err == nil {
		t.Fatalf("unknown prototype spawned")
	}
	if m.Len() != 1 || m.Components.Len() != 2 {
		t.Fatalf("vehicles=%d elements=%d", m.Len(), m.Components.Len())
	}
}

func TestDamageReachesAncestorHealth(t *testing.T) {
	m, _, _ := newTestManager(t)
	v, _ := m.Spawn("tank", host.Location{World: "w"}, nil)
	turret, _ := GetComponent(m.Components, ModelCol, v.Elements[1].ID)
	killer := host.NewEntityID()

	if _, destroyed := m.Damage(turret.Stand, 100, KillRecord{Killer: killer, DamageType: damage.Bullet}); destroyed {
		t.Fatalf("bullet multiplier ignored")
	}
	hp, _ := m.Health(turret.Stand)
	if hp.Current != 90 {
		t.Fatalf("hull hp=%v want 90", hp.Current)
	}
	got, destroyed := m.Damage(turret.Stand, 500, KillRecord{Killer: killer, DamageType: damage.Explosive})
	if !destroyed || got != v {
		t.Fatalf("destroyed=%v vehicle=%v", destroyed, got)
	}
	if hp.Current != 0 || hp.Death == nil || hp.Death.Killer != killer {
		t.Fatalf("hp=%+v death=%+v", hp.Current, hp.Death)
	}
	// a dead hull reports its destruction once
	if _, destroyed := m.Damage(turret.Stand, 5, KillRecord{}); destroyed {
		t.Fatalf("destroyed twice")
	}
}

func TestPersistRestore(t *testing.T) {
	m, _, _ := newTestManager(t)
	v, _ := m.Spawn("tank", host.Location{World: "w"}, nil)
	m.Move(v, host.Location{World: "w", X: 3, Y: 4, Z: 5, Yaw: 180})
	hull, turret := v.Elements[0], v.Elements[1]
	hp, _ := GetComponent(m.Components, HealthCol, hull.ID)
	hp.Current = 42
	ammo, _ := GetComponent(m.Components, AmmoCol, turret.ID)
	ammo.Current = 3
	barrel, _ := GetComponent(m.Components, GunBarrelCol, turret.ID)
	barrel.Aim(45, 60)

	saved := m.Persist(v)
	if saved.Elements[0].Components["health"]["current"] != 42 {
		t.Fatalf("persisted=%+v", saved.Elements[0])
	}
	m.Clear()
	if m.Len() != 0 {
		t.Fatalf("Len after Clear=%d", m.Len())
	}

	r, err := m.Restore(saved)
	if err != nil {
		t.Fatal(err)
	}
	if r.UUID != v.UUID || r.Elements[0].UUID != hull.UUID {
		t.Fatalf("uuids not restored")
	}
	if _, err := m.Restore(saved); err == nil {
		t.Fatalf("restored the same vehicle twice")
	}
	hp, _ = GetComponent(m.Components, HealthCol, r.Elements[0].ID)
	ammo, _ = GetComponent(m.Components, AmmoCol, r.Elements[1].ID)
	barrel, _ = GetComponent(m.Components, GunBarrelCol, r.Elements[1].ID)
	tr, _ := GetComponent(m.Components, TransformCol, r.Elements[1].ID)
	if hp.Current != 42 || ammo.Current != 3 {
		t.Fatalf("hp=%v ammo=%v", hp.Current, ammo.Current)
	}
	if barrel.Yaw != 45 || barrel.Pitch != 30 {
		t.Fatalf("barrel yaw=%v pitch=%v want 45 30", barrel.Yaw, barrel.Pitch)
	}
	if tr.X != 3 || tr.Y != 5.5 || tr.Yaw != 180 {
		t.Fatalf("turret transform=%+v", tr)
	}
}

func TestSyncTransformsMovesMarkers(t *testing.T) {
	m, h, _ := newTestManager(t)
	v, _ := m.Spawn("tank", host.Location{World: "w"}, nil)
	m.SyncTransforms()
	m.Move(v, host.Location{World: "w", X: 20, Y: 4, Z: 0})
	if n := m.SyncTransforms(); n != 2 {
		t.Fatalf("synced=%d want 2", n)
	}
	md, _ := GetComponent(m.Components, ModelCol, v.Elements[0].ID)
	e, _ := h.Entity(md.Stand)
	if e.Loc.X != 20 || e.Loc.Y != 4 {
		t.Fatalf("stand at %+v", e.Loc)
	}
	seats, _ := GetComponent(m.Components, SeatsCol, v.Elements[0].ID)
	e, _ = h.Entity(seats.Markers[1])
	if e.Loc.X != 20 || e.Loc.Y != 5 || e.Loc.Z != -1 {
		t.Fatalf("seat 1 at %+v", e.Loc)
	}
	if n := m.SyncTransforms(); n != 0 {
		t.Fatalf("second sync=%d want 0", n)
	}
	if got := m.ElementsWithAmmo(); got != 1 {
		t.Fatalf("ElementsWithAmmo=%d want 1", got)
	}
}
