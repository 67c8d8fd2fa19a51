package catalogs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"xcombat.dev/internal/sim/block"
	"xcombat.dev/internal/sim/damage"
	"xcombat.dev/internal/sim/host"
)

func writeFile(t *testing.T, dir, rel, body string) {
	t.Helper()
	p := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func hasWarning(c *Catalogs, sub string) bool {
	for _, w := range c.Warnings {
		if strings.Contains(w, sub) {
			return true
		}
	}
	return false
}

func TestLoadRepoConfigs(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "..", "configs"), filepath.Join("..", "..", "..", "schemas"), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Warnings) != 0 {
		t.Fatalf("warnings=%v want none", c.Warnings)
	}
	rifle := c.Gun(0)
	if rifle == nil || rifle.Name != "Rifle" {
		t.Fatalf("rifle=%+v", rifle)
	}
	if rifle.ProjectileLifetime != 400 || rifle.ProjectileMaxDistance != 128 {
		t.Fatalf("defaults not applied: lifetime=%d maxDist=%v", rifle.ProjectileLifetime, rifle.ProjectileMaxDistance)
	}
	launcher := c.Gun(3)
	if launcher == nil || launcher.Explosion.DamageType != damage.ExplosiveShell || launcher.Explosion.Damage != 16 {
		t.Fatalf("launcher=%+v", launcher)
	}
	if launcher.Explosion.ArmorReduction != 0.5 {
		t.Fatalf("nested default lost: armor_reduction=%v", launcher.Explosion.ArmorReduction)
	}
	if c.Hats[1] == nil || c.Hats[1].Armor != 2 {
		t.Fatalf("hat 1=%+v", c.Hats[1])
	}
	if c.Landmine(block.Landmine) == nil {
		t.Fatalf("landmine not registered")
	}
	if c.Digest == sha256Hex(nil) {
		t.Fatalf("digest not computed")
	}
}

func TestDuplicateIDLastWriteWins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "guns/a.yaml", "id: 5\nname: first\n")
	writeFile(t, dir, "guns/b.yaml", "id: 5\nname: second\n")

	c, err := Load(dir, "", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if g := c.Gun(5); g == nil || g.Name != "second" {
		t.Fatalf("gun 5=%+v want name second", g)
	}
	if !hasWarning(c, "duplicate gun id 5") {
		t.Fatalf("warnings=%v want duplicate", c.Warnings)
	}
}

func TestBadDefinitionsSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "guns/big.yaml", "id: 4096\n")
	writeFile(t, dir, "guns/neg.yaml", "id: -1\n")
	writeFile(t, dir, "guns/broken.yaml", "id: [\n")
	writeFile(t, dir, "guns/ok.yaml", "id: 1\nhit_block_handler: teleport\nsingle_fire_mode: spray\n")
	writeFile(t, dir, "landmines/x.yaml", "material: cheese\n")

	c, err := Load(dir, "", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for id := 0; id < MaxGuns; id++ {
		if id != 1 && c.Guns[id] != nil {
			t.Fatalf("unexpected gun %d", id)
		}
	}
	g := c.Gun(1)
	if g == nil {
		t.Fatalf("gun 1 missing")
	}
	if g.HitBlockHandler != "none" || g.SingleFireMode != FireSingle {
		t.Fatalf("fallbacks: handler=%q mode=%q", g.HitBlockHandler, g.SingleFireMode)
	}
	for _, w := range []string{"out of range", "unknown hit_block handler", "broken.yaml", "cheese"} {
		if !hasWarning(c, w) {
			t.Fatalf("warnings=%v want %q", c.Warnings, w)
		}
	}
	if len(c.Landmines) != 0 {
		t.Fatalf("landmines=%d want 0", len(c.Landmines))
	}
}

func TestSchemaRejectsFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "guns/a.yaml", "id: 2\nprojectile_velocity: -3\n")
	c, err := Load(dir, filepath.Join("..", "..", "..", "schemas"), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Gun(2) != nil {
		t.Fatalf("schema-invalid gun loaded")
	}
	if !hasWarning(c, "schema") {
		t.Fatalf("warnings=%v want schema", c.Warnings)
	}
}

func TestMissingDirIsEmpty(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope"), "", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Gun(0) != nil || c.Digest != sha256Hex(nil) {
		t.Fatalf("expected empty catalog")
	}
}

func TestItemLookups(t *testing.T) {
	c := Empty()
	g := DefaultGun()
	g.ID = 7
	c.PutGun(g)
	if c.GunOf(host.Item{Kind: host.ItemGun, Model: 7}) == nil {
		t.Fatalf("GunOf missed")
	}
	if c.GunOf(host.Item{Kind: host.ItemAmmo, Model: 7}) != nil {
		t.Fatalf("GunOf matched ammo")
	}
	if c.GunOf(host.Item{Kind: host.ItemGun, Model: MaxGuns}) != nil {
		t.Fatalf("GunOf out of range")
	}
}
