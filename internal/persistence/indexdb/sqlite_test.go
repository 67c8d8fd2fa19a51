package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"xcombat.dev/internal/persistence/snapshot"
	"xcombat.dev/internal/sim/catalogs"
	"xcombat.dev/internal/sim/damage"
	"xcombat.dev/internal/sim/engine"
	"xcombat.dev/internal/sim/host"
	"xcombat.dev/internal/sim/tuning"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqDeath}

	s.WriteDeaths([]engine.DeathRecord{{Tick: 1}, {Tick: 2}})
	s.RecordSave("/tmp/1.xcsave.zst", snapshot.SaveV1{}, false)

	st := s.Stats()
	if st.DropDeathTotal != 2 {
		t.Fatalf("DropDeathTotal=%d want=2", st.DropDeathTotal)
	}
	if st.DropSaveTotal != 1 {
		t.Fatalf("DropSaveTotal=%d want=1", st.DropSaveTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_DeathsByKiller(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	idx.WriteDeaths([]engine.DeathRecord{
		{Tick: 10, Victim: bob, Killer: alice, WeaponKind: host.ItemGun, WeaponID: 3, DamageType: damage.Bullet, World: "world", X: 1, Y: 64, Z: 2},
		{Tick: 20, Victim: carol, Killer: alice, WeaponKind: host.ItemThrowable, DamageType: damage.Explosive, World: "world"},
		{Tick: 30, Victim: alice, Killer: bob, DamageType: damage.Unknown, World: "world"},
	})
	if err := idx.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got, err := idx.DeathsByKiller(context.Background(), alice, 10)
	if err != nil {
		t.Fatalf("DeathsByKiller: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("records=%d want 2", len(got))
	}
	if got[0].Tick != 20 || got[0].Victim != carol || got[0].DamageType != damage.Explosive || got[0].WeaponKind != host.ItemThrowable {
		t.Fatalf("newest=%+v", got[0])
	}
	want := engine.DeathRecord{Tick: 10, Victim: bob, Killer: alice, WeaponKind: host.ItemGun, WeaponID: 3, DamageType: damage.Bullet, World: "world", X: 1, Y: 64, Z: 2}
	if got[1] != want {
		t.Fatalf("oldest=%+v want %+v", got[1], want)
	}

	got, err = idx.DeathsByKiller(context.Background(), alice, 1)
	if err != nil || len(got) != 1 {
		t.Fatalf("limited=%d err=%v", len(got), err)
	}
}

func TestSQLiteIndex_RecordSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	save := snapshot.SaveV1{
		Header:   snapshot.Header{WorldID: "w1", Tick: 123, SaveID: "s1"},
		Vehicles: []snapshot.VehicleV1{{UUID: "v1"}, {UUID: "v2"}},
	}
	idx.RecordSave("/data/000000000123.xcsave.zst", save, false)
	idx.RecordSave("/data/backup/000000000123.xcsave.zst", save, true)
	if err := idx.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	for _, backup := range []bool{false, true} {
		n, err := idx.SaveCount(context.Background(), backup)
		if err != nil || n != 1 {
			t.Fatalf("SaveCount(%v)=%d err=%v want 1", backup, n, err)
		}
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	var (
		tick     int64
		saveID   string
		vehicles int
	)
	row := db.QueryRow(`SELECT tick,save_id,vehicles FROM saves WHERE backup=0`)
	if err := row.Scan(&tick, &saveID, &vehicles); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if tick != 123 || saveID != "s1" || vehicles != 2 {
		t.Fatalf("row mismatch: tick=%d save=%q vehicles=%d", tick, saveID, vehicles)
	}
}

func TestSQLiteIndex_UpsertMeta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	cats := catalogs.Empty()
	if err := idx.UpsertMeta("w1", cats, tuning.Defaults()); err != nil {
		t.Fatalf("UpsertMeta: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	for key, want := range map[string]string{"world_id": "w1", "catalogs_digest": cats.Digest} {
		var got string
		if err := db.QueryRow(`SELECT value FROM meta WHERE key=?`, key).Scan(&got); err != nil {
			t.Fatalf("meta %s: %v", key, err)
		}
		if got != want {
			t.Fatalf("meta %s=%q want %q", key, got, want)
		}
	}
}

func TestSQLiteIndex_TopKillers(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	idx.WriteDeaths([]engine.DeathRecord{
		{Tick: 1, Victim: bob, Killer: alice, DamageType: damage.Bullet},
		{Tick: 2, Victim: carol, Killer: alice, DamageType: damage.Bullet},
		{Tick: 3, Victim: alice, Killer: bob, DamageType: damage.Melee},
		{Tick: 4, Victim: bob, Killer: bob, DamageType: damage.Explosive},
		{Tick: 5, Victim: carol, Killer: uuid.Nil, DamageType: damage.Explosive},
	})
	if err := idx.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got, err := idx.TopKillers(context.Background(), 10)
	if err != nil {
		t.Fatalf("TopKillers: %v", err)
	}
	want := []KillCount{{Killer: alice, Kills: 2}, {Killer: bob, Kills: 1}}
	if len(got) != len(want) {
		t.Fatalf("got=%+v want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d]=%+v want %+v", i, got[i], want[i])
		}
	}
	if one, _ := idx.TopKillers(context.Background(), 1); len(one) != 1 || one[0].Killer != alice {
		t.Fatalf("limit 1=%+v", one)
	}
}

func TestSQLiteIndex_RecentSaves(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	for _, tick := range []uint64{100, 200, 300} {
		save := snapshot.SaveV1{Header: snapshot.Header{WorldID: "w1", Tick: tick, SaveID: "s"}}
		idx.RecordSave(snapshot.FileName(tick), save, false)
	}
	idx.RecordSave("backup/"+snapshot.FileName(300), snapshot.SaveV1{Header: snapshot.Header{Tick: 300}}, true)
	if err := idx.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got, err := idx.RecentSaves(context.Background(), 3)
	if err != nil {
		t.Fatalf("RecentSaves: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d rows want 3", len(got))
	}
	if got[0].Tick != 300 || got[0].Backup || got[1].Tick != 300 || !got[1].Backup || got[2].Tick != 200 {
		t.Fatalf("order=%+v", got)
	}
	if got[0].RecordedAt == "" {
		t.Fatalf("recorded_at empty")
	}
}
