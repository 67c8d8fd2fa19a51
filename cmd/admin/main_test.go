package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"xcombat.dev/internal/persistence/snapshot"
)

func writeSaves(t *testing.T, dir string, ticks ...uint64) {
	t.Helper()
	for _, tick := range ticks {
		s := snapshot.SaveV1{Header: snapshot.Header{WorldID: "w1", Tick: tick, SaveID: "s"}}
		if err := snapshot.WriteSave(filepath.Join(dir, snapshot.FileName(tick)), s); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRollbackMovesNewerSaves(t *testing.T) {
	dir := t.TempDir()
	writeSaves(t, dir, 100, 200, 300)

	res, err := rollbackSaves(dir, 250, false)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if len(res.Moved) != 1 || res.Restored != "" {
		t.Fatalf("res=%+v", res)
	}
	latest, err := snapshot.LatestSave(dir)
	if err != nil || latest != res.Next || filepath.Base(latest) != snapshot.FileName(200) {
		t.Fatalf("latest=%q next=%q err=%v", latest, res.Next, err)
	}
	if _, err := os.Stat(filepath.Join(dir, rolledBackDir, snapshot.FileName(300))); err != nil {
		t.Fatalf("moved save missing: %v", err)
	}
}

func TestRollbackRestoresBackup(t *testing.T) {
	dir := t.TempDir()
	writeSaves(t, dir, 200, 300)
	writeSaves(t, filepath.Join(dir, "backup"), 100, 150, 400)

	dry, err := rollbackSaves(dir, 160, true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if saves, _ := snapshot.List(dir); len(saves) != 2 {
		t.Fatalf("dry run moved files: %v", saves)
	}

	res, err := rollbackSaves(dir, 160, false)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if dry.Next != res.Next || filepath.Base(res.Restored) != snapshot.FileName(150) {
		t.Fatalf("dry=%+v res=%+v", dry, res)
	}
	h, err := snapshot.ReadHeader(res.Next)
	if err != nil || h.Tick != 150 {
		t.Fatalf("restored header=%+v err=%v", h, err)
	}
	if latest, _ := snapshot.LatestSave(dir); latest != res.Next {
		t.Fatalf("latest=%q want %q", latest, res.Next)
	}
}

func TestRollbackNothingOldEnough(t *testing.T) {
	dir := t.TempDir()
	writeSaves(t, dir, 200)
	if _, err := rollbackSaves(dir, 50, false); err == nil {
		t.Fatalf("expected error")
	}
	if saves, _ := snapshot.List(dir); len(saves) != 1 {
		t.Fatalf("failed rollback moved files: %v", saves)
	}
}

func TestPrintSaves(t *testing.T) {
	dir := t.TempDir()
	writeSaves(t, dir, 5)
	writeSaves(t, filepath.Join(dir, "backup"), 4)
	var buf bytes.Buffer
	if err := printSaves(&buf, dir); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "save\ttick=5") || !strings.HasPrefix(lines[1], "backup\ttick=4") {
		t.Fatalf("out=%q", buf.String())
	}
}
