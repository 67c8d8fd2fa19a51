package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"

	"xcombat.dev/internal/sim/engine"
)

// JSONLZstdWriter appends JSON lines to hourly zstd files named
// prefix-YYYY-MM-DD-HH.jsonl.zst.

type JSONLZstdWriter struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	dir := filepath.Dir(w.pathForHour(hour))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// TickEntry summarizes one emitted tick.
type TickEntry struct {
	Tick        uint64  `json:"tick"`
	Trails      int     `json:"trails,omitempty"`
	Impacts     int     `json:"impacts,omitempty"`
	Explosions  int     `json:"explosions,omitempty"`
	Sounds      int     `json:"sounds,omitempty"`
	Messages    int     `json:"messages,omitempty"`
	StepMS      float64 `json:"step_ms,omitempty"`
	Projectiles int     `json:"projectiles,omitempty"`
	Vehicles    int     `json:"vehicles,omitempty"`
	ErrorCount  int     `json:"error_count,omitempty"`
}

// TickLogger writes one JSONL entry per emitted batch (compressed). It is an
// engine.Sink; stats, when set, adds the engine's published metrics.
type TickLogger struct {
	w      *JSONLZstdWriter
	stats  func() engine.EngineMetrics
	failed atomic.Uint64
}

func NewTickLogger(worldDir string, stats func() engine.EngineMetrics) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "events"), "events"), stats: stats}
}

func (l *TickLogger) Emit(b *engine.Batch) {
	e := TickEntry{
		Tick:       b.Tick,
		Trails:     len(b.Trails),
		Impacts:    len(b.Impacts),
		Explosions: len(b.Explosions),
		Sounds:     len(b.Sounds),
		Messages:   len(b.Messages),
	}
	if l.stats != nil {
		m := l.stats()
		e.StepMS = m.StepMS
		e.Projectiles = m.Projectiles
		e.Vehicles = m.Vehicles
		e.ErrorCount = m.ErrorCount
	}
	if err := l.WriteTick(e); err != nil {
		l.failed.Add(1)
	}
}

func (l *TickLogger) WriteTick(e TickEntry) error { return l.w.Write(e) }

// Failed counts entries lost to write errors.
func (l *TickLogger) Failed() uint64 { return l.failed.Load() }
func (l *TickLogger) Close() error   { return l.w.Close() }

// DeathLogger appends death records as JSONL (compressed). It is an
// engine.DeathSink.
type DeathLogger struct {
	w      *JSONLZstdWriter
	failed atomic.Uint64
}

func NewDeathLogger(worldDir string) *DeathLogger {
	return &DeathLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "deaths"), "deaths")}
}

func (l *DeathLogger) WriteDeaths(records []engine.DeathRecord) {
	for _, r := range records {
		if err := l.w.Write(r); err != nil {
			l.failed.Add(1)
		}
	}
}

func (l *DeathLogger) Failed() uint64 { return l.failed.Load() }
func (l *DeathLogger) Close() error   { return l.w.Close() }

// ListFiles returns prefix-*.jsonl.zst files under dir, oldest first.
func ListFiles(dir, prefix string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix+"-") || !strings.HasSuffix(name, ".jsonl.zst") {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

// ReadFile calls fn with each JSONL line of a compressed log file.
func ReadFile(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		if err := fn(sc.Bytes()); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return sc.Err()
}
