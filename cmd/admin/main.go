package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"xcombat.dev/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "rollback":
			rollbackCmd(os.Args[2:])
			return
		case "saves":
			savesCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "kills":
			killsCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(filepath.Join(*dataDir, "worlds"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if e.IsDir() {
			fmt.Println(e.Name())
		}
	}
}

func savesCmd(args []string) {
	fs := flag.NewFlagSet("saves", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	_ = fs.Parse(args)
	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	dir := filepath.Join(*dataDir, "worlds", *worldID, "saves")
	if err := printSaves(os.Stdout, dir); err != nil {
		fmt.Fprintln(os.Stderr, "saves:", err)
		os.Exit(1)
	}
}

func printSaves(w io.Writer, dir string) error {
	for _, sub := range []string{"", "backup"} {
		files, err := snapshot.List(filepath.Join(dir, sub))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		for _, f := range files {
			h, err := snapshot.ReadHeader(f)
			if err != nil {
				fmt.Fprintf(w, "%s\tunreadable: %v\n", f, err)
				continue
			}
			kind := "save"
			if sub != "" {
				kind = "backup"
			}
			fmt.Fprintf(w, "%s\ttick=%d\tvehicles=%d\tid=%s\t%s\n", kind, h.Tick, h.Vehicles, h.SaveID, f)
		}
	}
	return nil
}

func rollbackCmd(args []string) {
	fs := flag.NewFlagSet("rollback", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	toTick := fs.Uint64("to_tick", 0, "newest tick the server may load after the rollback (required)")
	dryRun := fs.Bool("dry_run", false, "print the plan without moving files")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	if *toTick == 0 {
		fmt.Fprintln(os.Stderr, "missing -to_tick")
		os.Exit(2)
	}

	dir := filepath.Join(*dataDir, "worlds", *worldID, "saves")
	res, err := rollbackSaves(dir, *toTick, *dryRun)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rollback:", err)
		os.Exit(1)
	}
	for _, m := range res.Moved {
		fmt.Printf("moved %s -> %s\n", filepath.Base(m), rolledBackDir)
	}
	if res.Restored != "" {
		fmt.Printf("restored backup %s\n", filepath.Base(res.Restored))
	}
	fmt.Printf("rollback ok: to_tick=%d next=%s dry_run=%v (restart the server to load it)\n", *toTick, filepath.Base(res.Next), *dryRun)
}

const rolledBackDir = "rolled-back"

type rollbackResult struct {
	Moved    []string
	Restored string
	Next     string
}

// rollbackSaves moves saves newer than toTick into rolled-back/ so the next
// start loads an older one. If none is left, the newest backup at or before
// toTick is copied in.
func rollbackSaves(dir string, toTick uint64, dryRun bool) (rollbackResult, error) {
	var res rollbackResult
	saves, err := snapshot.List(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return res, err
	}
	var kept []string
	for _, p := range saves {
		tick, ok := snapshot.TickOf(p)
		if !ok {
			continue
		}
		if tick > toTick {
			res.Moved = append(res.Moved, p)
		} else {
			kept = append(kept, p)
		}
	}

	if len(kept) > 0 {
		res.Next = kept[len(kept)-1]
	} else {
		backups, err := snapshot.List(filepath.Join(dir, "backup"))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return res, err
		}
		for _, p := range backups {
			if tick, ok := snapshot.TickOf(p); ok && tick <= toTick {
				res.Restored = p
			}
		}
		if res.Restored == "" {
			return res, fmt.Errorf("no save or backup at or before tick %d", toTick)
		}
		res.Next = filepath.Join(dir, filepath.Base(res.Restored))
	}
	if dryRun {
		return res, nil
	}

	if len(res.Moved) > 0 {
		if err := os.MkdirAll(filepath.Join(dir, rolledBackDir), 0o755); err != nil {
			return res, err
		}
	}
	for _, p := range res.Moved {
		if err := os.Rename(p, filepath.Join(dir, rolledBackDir, filepath.Base(p))); err != nil {
			return res, err
		}
	}
	if res.Restored != "" {
		if err := copyFile(res.Restored, res.Next); err != nil {
			return res, err
		}
	}
	return res, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
