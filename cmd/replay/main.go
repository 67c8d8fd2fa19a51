package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	persistlog "xcombat.dev/internal/persistence/log"
	"xcombat.dev/internal/persistence/snapshot"
	"xcombat.dev/internal/sim/engine"
)

func main() {
	var (
		savePath = flag.String("save", "", "path to .xcsave.zst (optional)")
		worldDir = flag.String("world_dir", "", "world data dir containing events/ and deaths/ (optional)")
		fromTick = flag.Uint64("from_tick", 0, "first tick to include (inclusive, optional)")
		toTick   = flag.Uint64("to_tick", 0, "last tick to include (inclusive, optional)")
		top      = flag.Int("top", 10, "killers to list")
	)
	flag.Parse()

	if *savePath == "" && *worldDir == "" {
		fmt.Fprintln(os.Stderr, "missing -save or -world_dir")
		os.Exit(2)
	}
	if *savePath != "" {
		if err := printSave(os.Stdout, *savePath); err != nil {
			fmt.Fprintln(os.Stderr, "read save:", err)
			os.Exit(1)
		}
	}
	if *worldDir == "" {
		return
	}

	r := tickRange{from: *fromTick, to: *toTick}
	ts, err := readTicks(filepath.Join(*worldDir, "events"), r)
	if err != nil {
		fmt.Fprintln(os.Stderr, "events:", err)
		os.Exit(1)
	}
	ds, err := readDeaths(filepath.Join(*worldDir, "deaths"), r)
	if err != nil {
		fmt.Fprintln(os.Stderr, "deaths:", err)
		os.Exit(1)
	}
	ts.print(os.Stdout)
	ds.print(os.Stdout, *top)
}

type tickRange struct{ from, to uint64 }

func (r tickRange) has(t uint64) bool { return t >= r.from && (r.to == 0 || t <= r.to) }

func printSave(w io.Writer, path string) error {
	s, err := snapshot.ReadSave(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "save v%d world=%s tick=%d id=%s vehicles=%d\n",
		s.Header.Version, s.Header.WorldID, s.Header.Tick, s.Header.SaveID, s.Header.Vehicles)
	byProto := map[string]int{}
	for _, v := range s.Vehicles {
		byProto[v.Prototype]++
	}
	for _, name := range sortedKeys(byProto) {
		fmt.Fprintf(w, "  %-20s %d\n", name, byProto[name])
	}
	return nil
}

type tickSummary struct {
	entries      int
	first, last  uint64
	trails       int
	impacts      int
	explosions   int
	maxStepMS    float64
	errorEntries int
}

func readTicks(dir string, r tickRange) (tickSummary, error) {
	var s tickSummary
	files, err := persistlog.ListFiles(dir, "events")
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, err
	}
	for _, path := range files {
		err := persistlog.ReadFile(path, func(line []byte) error {
			var e persistlog.TickEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("unmarshal: %w", err)
			}
			if !r.has(e.Tick) {
				return nil
			}
			if s.entries == 0 || e.Tick < s.first {
				s.first = e.Tick
			}
			s.last = max(s.last, e.Tick)
			s.entries++
			s.trails += e.Trails
			s.impacts += e.Impacts
			s.explosions += e.Explosions
			s.maxStepMS = max(s.maxStepMS, e.StepMS)
			if e.ErrorCount > 0 {
				s.errorEntries++
			}
			return nil
		})
		if err != nil {
			return s, err
		}
	}
	return s, nil
}

func (s tickSummary) print(w io.Writer) {
	if s.entries == 0 {
		fmt.Fprintln(w, "events: none")
		return
	}
	fmt.Fprintf(w, "events: %d batches ticks=%d..%d trails=%d impacts=%d explosions=%d max_step_ms=%.3f failing_ticks=%d\n",
		s.entries, s.first, s.last, s.trails, s.impacts, s.explosions, s.maxStepMS, s.errorEntries)
}

type deathSummary struct {
	total    int
	vehicles int
	byType   map[string]int
	byKiller map[string]int
}

func readDeaths(dir string, r tickRange) (deathSummary, error) {
	s := deathSummary{byType: map[string]int{}, byKiller: map[string]int{}}
	files, err := persistlog.ListFiles(dir, "deaths")
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, err
	}
	for _, path := range files {
		err := persistlog.ReadFile(path, func(line []byte) error {
			var d engine.DeathRecord
			if err := json.Unmarshal(line, &d); err != nil {
				return fmt.Errorf("unmarshal: %w", err)
			}
			if !r.has(d.Tick) {
				return nil
			}
			s.total++
			if d.Vehicle != "" {
				s.vehicles++
			}
			s.byType[d.DamageType.String()]++
			s.byKiller[d.Killer.String()]++
			return nil
		})
		if err != nil {
			return s, err
		}
	}
	return s, nil
}

func (s deathSummary) print(w io.Writer, top int) {
	fmt.Fprintf(w, "deaths: %d (vehicles %d)\n", s.total, s.vehicles)
	for _, t := range sortedKeys(s.byType) {
		fmt.Fprintf(w, "  %-22s %d\n", t, s.byType[t])
	}
	killers := sortedKeys(s.byKiller)
	sort.SliceStable(killers, func(i, j int) bool { return s.byKiller[killers[i]] > s.byKiller[killers[j]] })
	if len(killers) > top {
		killers = killers[:top]
	}
	for _, k := range killers {
		fmt.Fprintf(w, "  killer %s %d\n", k, s.byKiller[k])
	}
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
