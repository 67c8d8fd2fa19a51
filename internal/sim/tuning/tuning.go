package tuning

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"xcombat.dev/internal/sim/block"
	"xcombat.dev/internal/sim/hitbox"
	"xcombat.dev/internal/sim/host"
)

type Tuning struct {
	TickRateHz               int  `yaml:"tick_rate_hz"`
	MaxConsecutiveTickErrors int  `yaml:"max_consecutive_tick_errors"`
	AsyncEmission            bool `yaml:"async_emission"`

	SavePeriodTicks   int `yaml:"save_period_ticks"`
	SavePipelineTicks int `yaml:"save_pipeline_ticks"`
	SaveMinPerTick    int `yaml:"save_min_per_tick"`
	SaveBackupPeriod  int `yaml:"save_backup_period"`

	AutoFireMaxTicksSinceRequest int     `yaml:"auto_fire_max_ticks_since_request"`
	CrawlRequestDebounceMs       int64   `yaml:"crawl_request_debounce_ms"`
	CrawlMaxMoveDistance         float64 `yaml:"crawl_max_move_distance"`
	CrawlOnlyOnCrawlWeapons      bool    `yaml:"crawl_only_on_crawl_weapons"`

	DeathRecordSavePeriodTicks int `yaml:"death_record_save_period_ticks"`
	CombatLogTicks             int `yaml:"combat_log_ticks"`

	// HitboxSizes overrides per entity kind, keyed by kind name.
	HitboxSizes map[string]hitbox.Size `yaml:"hitbox_sizes"`
	// BlockCollision maps material names to collision handler names.
	BlockCollision map[string]string `yaml:"block_collision"`

	MaxVehicles        int `yaml:"max_vehicles"`
	MaxVehicleElements int `yaml:"max_vehicle_elements"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:                   20,
		MaxConsecutiveTickErrors:     100,
		AsyncEmission:                true,
		SavePeriodTicks:              6000,
		SavePipelineTicks:            100,
		SaveMinPerTick:               10,
		SaveBackupPeriod:             12,
		AutoFireMaxTicksSinceRequest: 4,
		CrawlRequestDebounceMs:       2000,
		CrawlMaxMoveDistance:         1.5,
		DeathRecordSavePeriodTicks:   600,
		CombatLogTicks:               400,
		MaxVehicles:                  10000,
		MaxVehicleElements:           10000,
	}
}

// Load overlays path on Defaults. A missing file yields the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if t.TickRateHz <= 0 {
		return t, fmt.Errorf("tuning.yaml: tick_rate_hz must be > 0")
	}
	if t.MaxConsecutiveTickErrors <= 0 {
		t.MaxConsecutiveTickErrors = 100
	}
	t.SavePipelineTicks = max(1, t.SavePipelineTicks)
	return t, nil
}

// Sizes applies HitboxSizes on top of the default per-kind table. Unknown
// kind names are logged and ignored.
func (t Tuning) Sizes(logger *log.Logger) [host.NumEntityKinds]hitbox.Size {
	sizes := hitbox.DefaultSizes()
	for name, s := range t.HitboxSizes {
		k, ok := host.KindByName(name)
		if !ok {
			if logger != nil {
				logger.Printf("WARN tuning: unknown hitbox kind %q", name)
			}
			continue
		}
		sizes[k] = s
	}
	return sizes
}

// Resolver builds the block collision table with the configured overrides.
func (t Tuning) Resolver(logger *log.Logger) *block.Resolver {
	return block.NewResolver(t.BlockCollision, logger)
}
