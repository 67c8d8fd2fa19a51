package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"xcombat.dev/internal/persistence/snapshot"
	"xcombat.dev/internal/sim/catalogs"
	"xcombat.dev/internal/sim/damage"
	"xcombat.dev/internal/sim/engine"
	"xcombat.dev/internal/sim/host"
	"xcombat.dev/internal/sim/tuning"
)

const (
	queueCapacity = 65536
	commitEvery   = 2000
	commitMaxWait = 2 * time.Second
)

// SQLiteIndex is a queryable copy of death records and save history. Writes
// are queued and applied by one goroutine; the JSONL logs and save files
// remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropDeath  atomic.Uint64
	dropSave   atomic.Uint64
	writeError atomic.Uint64
}

type reqKind int

const (
	reqDeath reqKind = iota + 1
	reqSave
	reqFlush
)

type req struct {
	kind reqKind

	death engine.DeathRecord
	save  saveRow
	done  chan struct{}
}

type saveRow struct {
	Tick       uint64
	SaveID     string
	Path       string
	Vehicles   int
	Backup     bool
	RecordedAt string
}

type Stats struct {
	QueueDepth      int    `json:"queue_depth"`
	QueueCapacity   int    `json:"queue_capacity"`
	DropDeathTotal  uint64 `json:"drop_death_total"`
	DropSaveTotal   uint64 `json:"drop_save_total"`
	WriteErrorTotal uint64 `json:"write_error_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{db: db, ch: make(chan req, queueCapacity)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS deaths (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			victim TEXT NOT NULL,
			killer TEXT NOT NULL,
			weapon_kind INTEGER NOT NULL,
			weapon_id INTEGER NOT NULL,
			damage_type TEXT NOT NULL,
			world TEXT NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL,
			vehicle TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_deaths_killer_tick ON deaths(killer, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_deaths_victim_tick ON deaths(victim, tick);`,
		`CREATE TABLE IF NOT EXISTS saves (
			tick INTEGER NOT NULL,
			save_id TEXT NOT NULL,
			path TEXT NOT NULL,
			vehicles INTEGER NOT NULL,
			backup INTEGER NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (tick, backup)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:      len(s.ch),
		QueueCapacity:   cap(s.ch),
		DropDeathTotal:  s.dropDeath.Load(),
		DropSaveTotal:   s.dropSave.Load(),
		WriteErrorTotal: s.writeError.Load(),
	}
}

// WriteDeath queues one record. It never blocks; a full queue drops it.
func (s *SQLiteIndex) WriteDeath(r engine.DeathRecord) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqDeath, death: r}:
	default:
		s.dropDeath.Add(1)
	}
}

// WriteDeaths implements engine.DeathSink.
func (s *SQLiteIndex) WriteDeaths(records []engine.DeathRecord) {
	for _, r := range records {
		s.WriteDeath(r)
	}
}

func (s *SQLiteIndex) RecordSave(path string, save snapshot.SaveV1, backup bool) {
	if s == nil || s.closed.Load() {
		return
	}
	r := saveRow{
		Tick:       save.Header.Tick,
		SaveID:     save.Header.SaveID,
		Path:       path,
		Vehicles:   len(save.Vehicles),
		Backup:     backup,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqSave, save: r}:
	default:
		s.dropSave.Add(1)
	}
}

// Flush blocks until every queued write before it is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpsertMeta records the catalog digest and the applied tuning so rows can
// be matched to the configuration that produced them.
func (s *SQLiteIndex) UpsertMeta(worldID string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	rows := map[string]string{
		"schema_version": "1",
		"world_id":       worldID,
		"tuning":         string(b),
		"tuning_digest":  hex.EncodeToString(sum[:]),
		"updated_at":     time.Now().UTC().Format(time.RFC3339Nano),
	}
	if cats != nil {
		rows["catalogs_digest"] = cats.Digest
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for k, v := range rows {
		if _, err := stmt.Exec(k, v); err != nil {
			return fmt.Errorf("meta %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// DeathsByKiller returns the newest records credited to killer, newest
// first. Rows still queued are not visible until the next commit.
func (s *SQLiteIndex) DeathsByKiller(ctx context.Context, killer host.EntityID, limit int) ([]engine.DeathRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT tick,victim,killer,weapon_kind,weapon_id,damage_type,world,x,y,z,vehicle
		FROM deaths WHERE killer=? ORDER BY tick DESC, id DESC LIMIT ?`, killer.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.DeathRecord
	for rows.Next() {
		var (
			r                  engine.DeathRecord
			tick               int64
			victimID, killerID string
			kind               int
			dt                 string
		)
		if err := rows.Scan(&tick, &victimID, &killerID, &kind, &r.WeaponID, &dt, &r.World, &r.X, &r.Y, &r.Z, &r.Vehicle); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		r.WeaponKind = host.ItemKind(kind)
		r.DamageType, _ = damage.Match(dt)
		if r.Victim, err = uuid.Parse(victimID); err != nil {
			return nil, fmt.Errorf("victim %q: %w", victimID, err)
		}
		if r.Killer, err = uuid.Parse(killerID); err != nil {
			return nil, fmt.Errorf("killer %q: %w", killerID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveCount returns how many saves (or backups) are indexed.
func (s *SQLiteIndex) SaveCount(ctx context.Context, backup bool) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM saves WHERE backup=?`, boolInt(backup)).Scan(&n)
	return n, err
}

type KillCount struct {
	Killer host.EntityID `json:"killer"`
	Kills  int           `json:"kills"`
}

// TopKillers ranks players by kills. Environmental deaths and self kills
// do not count.
func (s *SQLiteIndex) TopKillers(ctx context.Context, limit int) ([]KillCount, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `SELECT killer, COUNT(*) AS kills FROM deaths
		WHERE killer != ? AND killer != victim
		GROUP BY killer ORDER BY kills DESC, killer LIMIT ?`, uuid.Nil.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []KillCount
	for rows.Next() {
		var (
			id string
			kc KillCount
		)
		if err := rows.Scan(&id, &kc.Kills); err != nil {
			return nil, err
		}
		if kc.Killer, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("killer %q: %w", id, err)
		}
		out = append(out, kc)
	}
	return out, rows.Err()
}

type SaveRow struct {
	Tick       uint64 `json:"tick"`
	SaveID     string `json:"save_id"`
	Path       string `json:"path"`
	Vehicles   int    `json:"vehicles"`
	Backup     bool   `json:"backup"`
	RecordedAt string `json:"recorded_at"`
}

// RecentSaves lists indexed saves and backups, newest first.
func (s *SQLiteIndex) RecentSaves(ctx context.Context, limit int) ([]SaveRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT tick,save_id,path,vehicles,backup,recorded_at
		FROM saves ORDER BY tick DESC, backup LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SaveRow
	for rows.Next() {
		var (
			r      SaveRow
			tick   int64
			backup int
		)
		if err := rows.Scan(&tick, &r.SaveID, &r.Path, &r.Vehicles, &backup, &r.RecordedAt); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		r.Backup = backup != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertDeath, _ := s.db.Prepare(`INSERT INTO deaths(tick,victim,killer,weapon_kind,weapon_id,damage_type,world,x,y,z,vehicle) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	insertSave, _ := s.db.Prepare(`INSERT OR REPLACE INTO saves(tick,save_id,path,vehicles,backup,recorded_at) VALUES(?,?,?,?,?,?)`)
	defer func() {
		if insertDeath != nil {
			_ = insertDeath.Close()
		}
		if insertSave != nil {
			_ = insertSave.Close()
		}
	}()

	var (
		tx         *sql.Tx
		opCount    int
		lastCommit = time.Now()
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.writeError.Add(1)
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeError.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.writeError.Add(1)
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	// An idle queue still commits, so readers sharing the single
	// connection are not starved by an open transaction.
	ticker := time.NewTicker(commitMaxWait)
	defer ticker.Stop()

	for {
		var r req
		select {
		case rr, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			r = rr
		case <-ticker.C:
			commit()
			continue
		}

		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}

		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqDeath:
			d := r.death
			if insertDeath == nil {
				continue
			}
			if _, err := tx.Stmt(insertDeath).Exec(
				int64(d.Tick),
				d.Victim.String(),
				d.Killer.String(),
				int(d.WeaponKind),
				d.WeaponID,
				d.DamageType.String(),
				d.World,
				d.X, d.Y, d.Z,
				d.Vehicle,
			); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqSave:
			sv := r.save
			if insertSave == nil {
				continue
			}
			if _, err := tx.Stmt(insertSave).Exec(
				int64(sv.Tick),
				sv.SaveID,
				sv.Path,
				sv.Vehicles,
				boolInt(sv.Backup),
				sv.RecordedAt,
			); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
}
