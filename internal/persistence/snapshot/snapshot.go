// Package snapshot reads and writes vehicle save files: a zstd stream holding
// a JSON header line followed by a gob body.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version  int    `json:"version"`
	WorldID  string `json:"world_id"`
	Tick     uint64 `json:"tick"`
	SaveID   string `json:"save_id"`
	Vehicles int    `json:"vehicles"`
}

type SaveV1 struct {
	Header   Header      `json:"header"`
	Vehicles []VehicleV1 `json:"vehicles"`
}

type VehicleV1 struct {
	UUID      string      `json:"uuid"`
	Prototype string      `json:"prototype"`
	World     string      `json:"world"`
	Elements  []ElementV1 `json:"elements"`
}

// ElementV1 holds each component's persisted fields keyed by component name.
type ElementV1 struct {
	Name       string                        `json:"name"`
	UUID       string                        `json:"uuid"`
	Components map[string]map[string]float64 `json:"components,omitempty"`
}

const (
	saveExt   = ".xcsave.zst"
	backupDir = "backup"
)

// FileName is the save file name for tick; names sort by tick.
func FileName(tick uint64) string { return fmt.Sprintf("%012d%s", tick, saveExt) }

func WriteSave(path string, s SaveV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	s.Header.Version = Version
	s.Header.Vehicles = len(s.Vehicles)

	// Write to a temp file so a crash never leaves a truncated latest save.
	tmp := path + ".tmp"
	if err := writeFile(tmp, s); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeFile(path string, s SaveV1) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 256*1024)
	hb, _ := json.Marshal(s.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&s); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func ReadSave(path string) (SaveV1, error) {
	var s SaveV1
	f, err := os.Open(path)
	if err != nil {
		return s, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return s, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return s, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return s, fmt.Errorf("header: %w", err)
	}
	if h.Version != Version {
		return s, fmt.Errorf("unsupported save version %d", h.Version)
	}
	if err := gob.NewDecoder(br).Decode(&s); err != nil {
		return s, fmt.Errorf("gob decode: %w", err)
	}
	return s, nil
}

// ReadHeader decodes only the header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}

// List returns the save files in dir, oldest first.
func List(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if !e.IsDir() && strings.HasSuffix(e.Name(), saveExt) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// TickOf parses the tick out of a save file name.
func TickOf(path string) (uint64, bool) {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, saveExt) {
		return 0, false
	}
	t, err := strconv.ParseUint(strings.TrimSuffix(name, saveExt), 10, 64)
	return t, err == nil
}

// LatestSave returns the newest save file in dir, or os.ErrNotExist.
func LatestSave(dir string) (string, error) {
	saves, err := List(dir)
	if err != nil {
		return "", err
	}
	if len(saves) == 0 {
		return "", fmt.Errorf("no save in %s: %w", dir, os.ErrNotExist)
	}
	return saves[len(saves)-1], nil
}

// WriteBackup copies the save into dir/backup and keeps the newest keep
// backups. keep <= 0 keeps all.
func WriteBackup(dir string, s SaveV1, keep int) (string, error) {
	bdir := filepath.Join(dir, backupDir)
	path := filepath.Join(bdir, FileName(s.Header.Tick))
	if err := WriteSave(path, s); err != nil {
		return "", err
	}
	if keep <= 0 {
		return path, nil
	}
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return path, err
	}
	var names []string
	for _, e := range ents {
		if strings.HasSuffix(e.Name(), saveExt) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	var errs []error
	for len(names) > keep {
		errs = append(errs, os.Remove(filepath.Join(bdir, names[0])))
		names = names[1:]
	}
	return path, errors.Join(errs...)
}

// Prune removes all but the newest keep saves in dir.
func Prune(dir string, keep int) error {
	saves, err := List(dir)
	if err != nil {
		return err
	}
	var errs []error
	for keep > 0 && len(saves) > keep {
		errs = append(errs, os.Remove(saves[0]))
		saves = saves[1:]
	}
	return errors.Join(errs...)
}
