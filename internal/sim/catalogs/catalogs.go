package catalogs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"xcombat.dev/internal/sim/block"
	"xcombat.dev/internal/sim/host"
)

// Storage sizes. Item ids index fixed arrays, so 0 <= id < Max*.
const (
	MaxAmmo       = 512
	MaxGuns       = 1024
	MaxMelee      = 1024
	MaxThrowables = 1024
	MaxHats       = 1024
)

// Item tags written by the engine onto held items.
const (
	TagAmmo          = "xc_ammo"
	TagModel         = "xc_model"
	TagReloading     = "xc_reloading"
	TagReloadID      = "xc_reload_id"
	TagReloadStarted = "xc_reload_ts"
	TagBurstFireID   = "xc_burst_id"
	TagAutoFireID    = "xc_auto_id"
	TagCrawlID       = "xc_crawl_id"
	TagThrowID       = "xc_throw_id"
	TagThrowReady    = "xc_throw_ready"
)

type Catalogs struct {
	Ammo       [MaxAmmo]*Ammo
	Guns       [MaxGuns]*Gun
	Melee      [MaxMelee]*Melee
	Throwables [MaxThrowables]*Throwable
	Hats       [MaxHats]*Hat
	Landmines  map[block.Material]*Landmine

	// Digest covers every loaded file in load order.
	Digest string
	// Warnings lists every non-fatal problem found while loading.
	Warnings []string
}

// Empty returns a catalog with no definitions.
func Empty() *Catalogs {
	return &Catalogs{Landmines: map[block.Material]*Landmine{}, Digest: sha256Hex(nil)}
}

func (c *Catalogs) Gun(id int) *Gun {
	if id < 0 || id >= MaxGuns {
		return nil
	}
	return c.Guns[id]
}

// GunOf returns the gun definition for a held item, or nil.
func (c *Catalogs) GunOf(it host.Item) *Gun {
	if it.Kind != host.ItemGun {
		return nil
	}
	return c.Gun(it.Model)
}

func (c *Catalogs) ThrowableOf(it host.Item) *Throwable {
	if it.Kind != host.ItemThrowable || it.Model < 0 || it.Model >= MaxThrowables {
		return nil
	}
	return c.Throwables[it.Model]
}

func (c *Catalogs) MeleeOf(it host.Item) *Melee {
	if it.Kind != host.ItemMelee || it.Model < 0 || it.Model >= MaxMelee {
		return nil
	}
	return c.Melee[it.Model]
}

func (c *Catalogs) HatOf(it host.Item) *Hat {
	if it.Kind != host.ItemHat || it.Model < 0 || it.Model >= MaxHats {
		return nil
	}
	return c.Hats[it.Model]
}

func (c *Catalogs) Landmine(m block.Material) *Landmine { return c.Landmines[m] }

// Put registers definitions directly, used by tests and embedders. Out of
// range ids are ignored.
func (c *Catalogs) PutGun(g Gun) {
	if g.ID >= 0 && g.ID < MaxGuns {
		c.Guns[g.ID] = &g
	}
}

func (c *Catalogs) PutThrowable(t Throwable) {
	if t.ID >= 0 && t.ID < MaxThrowables {
		c.Throwables[t.ID] = &t
	}
}

func (c *Catalogs) PutHat(h Hat) {
	if h.ID >= 0 && h.ID < MaxHats {
		c.Hats[h.ID] = &h
	}
}

func (c *Catalogs) PutLandmine(l Landmine) bool {
	m, ok := block.MaterialByName(l.Material)
	if !ok {
		return false
	}
	c.Landmines[m] = &l
	return true
}

// Load reads <configDir>/{ammo,guns,melee,throwables,hats,landmines}. Each
// file is checked against <schemaDir>/<kind>.schema.json when that schema
// exists. Bad files and bad definitions are logged and skipped; only an
// unreadable directory is an error. Files load in lexical order, so a later
// file wins on a duplicate id.
func Load(configDir, schemaDir string, logger *log.Logger) (*Catalogs, error) {
	c := Empty()
	l := &loader{c: c, logger: logger, schemaDir: schemaDir}

	var digest bytes.Buffer
	for _, kind := range []string{"ammo", "guns", "melee", "throwables", "hats", "landmines"} {
		files, err := listYAML(filepath.Join(configDir, kind))
		if err != nil {
			return nil, fmt.Errorf("catalogs %s: %w", kind, err)
		}
		schema := l.schema(kind)
		for _, p := range files {
			raw, err := os.ReadFile(p)
			if err != nil {
				return nil, fmt.Errorf("catalogs %s: %w", filepath.Base(p), err)
			}
			digest.Write(raw)
			digest.WriteByte('\n')
			l.file(kind, p, raw, schema)
		}
	}
	c.Digest = sha256Hex(digest.Bytes())
	return c, nil
}

type loader struct {
	c         *Catalogs
	logger    *log.Logger
	schemaDir string
}

func (l *loader) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.c.Warnings = append(l.c.Warnings, msg)
	if l.logger != nil {
		l.logger.Printf("WARN catalogs: %s", msg)
	}
}

var schemaNames = map[string]string{
	"ammo":       "ammo.schema.json",
	"guns":       "gun.schema.json",
	"melee":      "melee.schema.json",
	"throwables": "throwable.schema.json",
	"hats":       "hat.schema.json",
	"landmines":  "landmine.schema.json",
}

func (l *loader) schema(kind string) *jsonschema.Schema {
	if l.schemaDir == "" {
		return nil
	}
	p := filepath.Join(l.schemaDir, schemaNames[kind])
	if _, err := os.Stat(p); err != nil {
		return nil
	}
	s, err := jsonschema.Compile(p)
	if err != nil {
		l.warnf("%s: %v", schemaNames[kind], err)
		return nil
	}
	return s
}

// validate round-trips the yaml document through JSON so the validator sees
// plain JSON values.
func validate(s *jsonschema.Schema, raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return s.Validate(v)
}

func (l *loader) file(kind, path string, raw []byte, schema *jsonschema.Schema) {
	name := filepath.Base(path)
	if schema != nil {
		if err := validate(schema, raw); err != nil {
			l.warnf("%s: schema: %v", name, err)
			return
		}
	}
	var err error
	switch kind {
	case "ammo":
		err = l.ammo(name, raw)
	case "guns":
		err = l.gun(name, raw)
	case "melee":
		err = l.melee(name, raw)
	case "throwables":
		err = l.throwable(name, raw)
	case "hats":
		err = l.hats(name, raw)
	case "landmines":
		err = l.landmine(name, raw)
	}
	if err != nil {
		l.warnf("%s: %v", name, err)
	}
}

func (l *loader) checkID(name, kind string, id, max int) bool {
	if id < 0 || id >= max {
		l.warnf("%s: %s id %d out of range [0, %d)", name, kind, id, max)
		return false
	}
	return true
}

func (l *loader) handler(name, slot string, h *string, allowed []string) {
	v := strings.ToLower(strings.TrimSpace(*h))
	for _, a := range allowed {
		if a == v {
			*h = v
			return
		}
	}
	l.warnf("%s: unknown %s handler %q, using none", name, slot, *h)
	*h = "none"
}

func (l *loader) ammo(name string, raw []byte) error {
	var doc struct {
		Ammo []Ammo `yaml:"ammo"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	for i := range doc.Ammo {
		a := doc.Ammo[i]
		if !l.checkID(name, "ammo", a.ID, MaxAmmo) {
			continue
		}
		if l.c.Ammo[a.ID] != nil {
			l.warnf("%s: duplicate ammo id %d, overwriting", name, a.ID)
		}
		l.c.Ammo[a.ID] = &a
	}
	return nil
}

func (l *loader) gun(name string, raw []byte) error {
	g := DefaultGun()
	g.ID = -1
	if err := yaml.Unmarshal(raw, &g); err != nil {
		return err
	}
	if !l.checkID(name, "gun", g.ID, MaxGuns) {
		return nil
	}
	if g.AmmoID < 0 || g.AmmoID >= MaxAmmo {
		l.warnf("%s: gun ammo_id %d out of range", name, g.AmmoID)
		g.AmmoID = 0
	}
	switch g.SingleFireMode {
	case FireSingle, FireBurst, FireNone:
	default:
		l.warnf("%s: unknown single_fire_mode %q, using single", name, g.SingleFireMode)
		g.SingleFireMode = FireSingle
	}
	g.ProjectileCount = max(1, g.ProjectileCount)
	l.handler(name, "hit_block", &g.HitBlockHandler, GunBlockHandlers)
	l.handler(name, "hit_entity", &g.HitEntityHandler, GunEntityHandlers)
	if l.c.Guns[g.ID] != nil {
		l.warnf("%s: duplicate gun id %d, overwriting", name, g.ID)
	}
	l.c.Guns[g.ID] = &g
	return nil
}

func (l *loader) melee(name string, raw []byte) error {
	m := DefaultMelee()
	m.ID = -1
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return err
	}
	if !l.checkID(name, "melee", m.ID, MaxMelee) {
		return nil
	}
	if l.c.Melee[m.ID] != nil {
		l.warnf("%s: duplicate melee id %d, overwriting", name, m.ID)
	}
	l.c.Melee[m.ID] = &m
	return nil
}

func (l *loader) throwable(name string, raw []byte) error {
	t := DefaultThrowable()
	t.ID = -1
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return err
	}
	if !l.checkID(name, "throwable", t.ID, MaxThrowables) {
		return nil
	}
	l.handler(name, "on_timer_expired", &t.OnTimerExpired, ThrowableTimerHandlers)
	l.handler(name, "on_block_hit", &t.OnBlockHit, ThrowableBlockHandlers)
	l.handler(name, "on_entity_hit", &t.OnEntityHit, ThrowableEntityHandlers)
	if l.c.Throwables[t.ID] != nil {
		l.warnf("%s: duplicate throwable id %d, overwriting", name, t.ID)
	}
	l.c.Throwables[t.ID] = &t
	return nil
}

// hats files hold a list since hat definitions are small.
func (l *loader) hats(name string, raw []byte) error {
	var doc struct {
		Hat []yaml.Node `yaml:"hat"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	for i := range doc.Hat {
		h := DefaultHat()
		if err := doc.Hat[i].Decode(&h); err != nil {
			l.warnf("%s: hat[%d]: %v", name, i, err)
			continue
		}
		if !l.checkID(name, "hat", h.ID, MaxHats) {
			continue
		}
		if l.c.Hats[h.ID] != nil {
			l.warnf("%s: duplicate hat id %d, overwriting", name, h.ID)
		}
		l.c.Hats[h.ID] = &h
	}
	return nil
}

func (l *loader) landmine(name string, raw []byte) error {
	lm := DefaultLandmine()
	if err := yaml.Unmarshal(raw, &lm); err != nil {
		return err
	}
	m, ok := block.MaterialByName(lm.Material)
	if !ok {
		return fmt.Errorf("unknown landmine material %q", lm.Material)
	}
	if l.c.Landmines[m] != nil {
		l.warnf("%s: duplicate landmine material %s, overwriting", name, lm.Material)
	}
	l.c.Landmines[m] = &lm
	return nil
}

// listYAML returns the sorted yaml files under dir. A missing directory is
// an empty list.
func listYAML(dir string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), ".yaml") || strings.HasSuffix(d.Name(), ".yml") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
