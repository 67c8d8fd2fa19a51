package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func sampleSave(tick uint64) SaveV1 {
	return SaveV1{
		Header: Header{WorldID: "world", Tick: tick, SaveID: "s1"},
		Vehicles: []VehicleV1{{
			UUID:      "9a1f0c3e-0000-4000-8000-000000000001",
			Prototype: "tank",
			World:     "world",
			Elements: []ElementV1{
				{Name: "hull", UUID: "e1", Components: map[string]map[string]float64{
					"health":    {"current": 120},
					"transform": {"x": 1, "y": 2, "z": 3, "yaw": 90},
				}},
				{Name: "turret", UUID: "e2"},
			},
		}},
	}
}

func TestWriteReadSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName(40))
	if err := WriteSave(path, sampleSave(40)); err != nil {
		t.Fatalf("WriteSave: %v", err)
	}
	got, err := ReadSave(path)
	if err != nil {
		t.Fatalf("ReadSave: %v", err)
	}
	if got.Header.Version != Version || got.Header.Tick != 40 || got.Header.Vehicles != 1 {
		t.Fatalf("header=%+v", got.Header)
	}
	el := got.Vehicles[0].Elements[0]
	if el.Components["health"]["current"] != 120 || el.Components["transform"]["yaw"] != 90 {
		t.Fatalf("element=%+v", el)
	}
	h, err := ReadHeader(path)
	if err != nil || h.SaveID != "s1" {
		t.Fatalf("ReadHeader=%+v err=%v", h, err)
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestLatestSaveAndPrune(t *testing.T) {
	dir := t.TempDir()
	if _, err := LatestSave(dir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("empty dir err=%v want ErrNotExist", err)
	}
	for _, tick := range []uint64{100, 7, 3000} {
		if err := WriteSave(filepath.Join(dir, FileName(tick)), sampleSave(tick)); err != nil {
			t.Fatal(err)
		}
	}
	p, err := LatestSave(dir)
	if err != nil || filepath.Base(p) != FileName(3000) {
		t.Fatalf("LatestSave=%q err=%v", p, err)
	}
	if err := Prune(dir, 1); err != nil {
		t.Fatal(err)
	}
	ents, _ := os.ReadDir(dir)
	if len(ents) != 1 {
		t.Fatalf("files after prune=%d want 1", len(ents))
	}
}

func TestWriteBackupKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	for tick := uint64(1); tick <= 4; tick++ {
		if _, err := WriteBackup(dir, sampleSave(tick), 2); err != nil {
			t.Fatal(err)
		}
	}
	ents, _ := os.ReadDir(filepath.Join(dir, "backup"))
	if len(ents) != 2 || ents[0].Name() != FileName(3) || ents[1].Name() != FileName(4) {
		t.Fatalf("backups=%v", ents)
	}
}

func TestReadSaveRejectsVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad"+saveExt)
	s := sampleSave(1)
	if err := writeFile(path, s); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadSave(path); err == nil {
		t.Fatalf("version 0 accepted")
	}
}

func TestTickOf(t *testing.T) {
	cases := []struct {
		path string
		tick uint64
		ok   bool
	}{
		{FileName(42), 42, true},
		{filepath.Join("a", "backup", FileName(7)), 7, true},
		{"000000000042.snap.zst", 0, false},
		{"latest.xcsave.zst", 0, false},
	}
	for _, tc := range cases {
		tick, ok := TickOf(tc.path)
		if tick != tc.tick || ok != tc.ok {
			t.Fatalf("TickOf(%q)=%d,%v want %d,%v", tc.path, tick, ok, tc.tick, tc.ok)
		}
	}
}
