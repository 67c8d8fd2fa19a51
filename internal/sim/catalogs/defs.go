package catalogs

import (
	"xcombat.dev/internal/sim/damage"
)

// Sound is a named sound effect played at a location.
type Sound struct {
	Name   string  `yaml:"name" json:"name"`
	Volume float32 `yaml:"volume" json:"volume"`
	Pitch  float32 `yaml:"pitch" json:"pitch"`
}

// Particles describes a particle burst.
type Particles struct {
	Type    string  `yaml:"type" json:"type"`
	Count   int     `yaml:"count" json:"count"`
	RandomX float64 `yaml:"random_x" json:"random_x"`
	RandomY float64 `yaml:"random_y" json:"random_y"`
	RandomZ float64 `yaml:"random_z" json:"random_z"`
	Force   bool    `yaml:"force" json:"force"`
}

func defaultExplosionParticles() Particles {
	return Particles{Type: "explosion_large", Count: 1, Force: true}
}

// Explosion holds the explosion parameters shared by guns, throwables and
// landmines.
type Explosion struct {
	Damage             float64     `yaml:"damage" json:"damage"`
	MaxDistance        float64     `yaml:"max_distance" json:"max_distance"`
	Radius             float64     `yaml:"radius" json:"radius"`
	Falloff            float64     `yaml:"falloff" json:"falloff"`
	ArmorReduction     float64     `yaml:"armor_reduction" json:"armor_reduction"`
	BlastProtReduction float64     `yaml:"blast_prot_reduction" json:"blast_prot_reduction"`
	DamageType         damage.Type `yaml:"damage_type" json:"damage_type"`
	BlockDamagePower   float64     `yaml:"block_damage_power" json:"block_damage_power"`
	FireTicks          int         `yaml:"fire_ticks" json:"fire_ticks"`
	Particles          Particles   `yaml:"particles" json:"particles"`
}

func defaultExplosion(radius float64) Explosion {
	return Explosion{
		Damage:             8,
		MaxDistance:        8,
		Radius:             radius,
		Falloff:            2,
		ArmorReduction:     0.5,
		BlastProtReduction: 1,
		DamageType:         damage.Explosive,
		Particles:          defaultExplosionParticles(),
	}
}

type FireMode string

const (
	FireSingle FireMode = "single"
	FireBurst  FireMode = "burst"
	FireNone   FireMode = "none"
)

// Ammo is an ammunition item consumed by gun reloads.
type Ammo struct {
	ID    int      `yaml:"id" json:"id"`
	Name  string   `yaml:"name" json:"name"`
	Model int      `yaml:"model" json:"model"`
	Lore  []string `yaml:"lore" json:"lore,omitempty"`
}

// Gun is an immutable gun definition. Item.Model of a gun item is the gun id;
// the visual model lives in the item's TagModel tag.
type Gun struct {
	ID   int      `yaml:"id" json:"id"`
	Name string   `yaml:"name" json:"name"`
	Lore []string `yaml:"lore" json:"lore,omitempty"`

	ModelDefault int `yaml:"model_default" json:"model_default"`
	ModelEmpty   int `yaml:"model_empty" json:"model_empty"`
	ModelReload  int `yaml:"model_reload" json:"model_reload"`
	ModelADS     int `yaml:"model_ads" json:"model_ads"`

	AmmoID     int  `yaml:"ammo_id" json:"ammo_id"`
	AmmoMax    int  `yaml:"ammo_max" json:"ammo_max"`
	AmmoIgnore bool `yaml:"ammo_ignore" json:"ammo_ignore"`

	ReloadTimeMillis int64 `yaml:"reload_time_millis" json:"reload_time_millis"`
	ShootDelayMillis int64 `yaml:"shoot_delay_millis" json:"shoot_delay_millis"`
	EquipDelayMillis int64 `yaml:"equip_delay_millis" json:"equip_delay_millis"`

	SingleFireMode      FireMode `yaml:"single_fire_mode" json:"single_fire_mode"`
	BurstFireCount      int      `yaml:"burst_fire_count" json:"burst_fire_count"`
	BurstFireDelayTicks int      `yaml:"burst_fire_delay_ticks" json:"burst_fire_delay_ticks"`
	AutoFire            bool     `yaml:"auto_fire" json:"auto_fire"`
	AutoFireDelayTicks  int      `yaml:"auto_fire_delay_ticks" json:"auto_fire_delay_ticks"`

	ProjectileCount            int         `yaml:"projectile_count" json:"projectile_count"`
	ProjectileSpread           float32     `yaml:"projectile_spread" json:"projectile_spread"`
	ProjectileVelocity         float32     `yaml:"projectile_velocity" json:"projectile_velocity"`
	ProjectileGravity          float32     `yaml:"projectile_gravity" json:"projectile_gravity"`
	ProjectileLifetime         int         `yaml:"projectile_lifetime" json:"projectile_lifetime"`
	ProjectileMaxDistance      float32     `yaml:"projectile_max_distance" json:"projectile_max_distance"`
	ProjectileProximity        float32     `yaml:"projectile_proximity" json:"projectile_proximity"`
	ProjectilePassthroughDoors bool        `yaml:"projectile_passthrough_doors" json:"projectile_passthrough_doors"`
	ProjectileDamage           float64     `yaml:"projectile_damage" json:"projectile_damage"`
	ProjectileArmorReduction   float64     `yaml:"projectile_armor_reduction" json:"projectile_armor_reduction"`
	ProjectileResistReduction  float64     `yaml:"projectile_resistance_reduction" json:"projectile_resistance_reduction"`
	ProjectileDamageDropStart  float64     `yaml:"projectile_damage_drop_distance" json:"projectile_damage_drop_distance"`
	ProjectileDamageDropRate   float64     `yaml:"projectile_damage_drop_rate" json:"projectile_damage_drop_rate"`
	ProjectileDamageMin        float64     `yaml:"projectile_damage_min" json:"projectile_damage_min"`
	ProjectileDamageType       damage.Type `yaml:"projectile_damage_type" json:"projectile_damage_type"`
	ProjectileTrail            Particles   `yaml:"projectile_trail" json:"projectile_trail"`
	ProjectileTrailSpacing     float32     `yaml:"projectile_trail_spacing" json:"projectile_trail_spacing"`

	HitFireTicks            int     `yaml:"hit_fire_ticks" json:"hit_fire_ticks"`
	HitBlockFireProbability float64 `yaml:"hit_block_fire_probability" json:"hit_block_fire_probability"`
	HitBlockHandler         string  `yaml:"hit_block_handler" json:"hit_block_handler"`
	HitEntityHandler        string  `yaml:"hit_entity_handler" json:"hit_entity_handler"`

	Explosion Explosion `yaml:"explosion" json:"explosion"`

	CrawlRequired   bool  `yaml:"crawl_required" json:"crawl_required"`
	CrawlTimeMillis int64 `yaml:"crawl_time_millis" json:"crawl_time_millis"`

	RecoilVertical      float64 `yaml:"recoil_vertical" json:"recoil_vertical"`
	RecoilHorizontal    float64 `yaml:"recoil_horizontal" json:"recoil_horizontal"`
	RecoilAutoFireRamp  float64 `yaml:"recoil_auto_fire_ramp" json:"recoil_auto_fire_ramp"`
	RecoilMaxMultiplier float64 `yaml:"recoil_max_multiplier" json:"recoil_max_multiplier"`
	RecoilRecoveryRate  float64 `yaml:"recoil_recovery_rate" json:"recoil_recovery_rate"`

	SoundShoot        Sound `yaml:"sound_shoot" json:"sound_shoot"`
	SoundEmpty        Sound `yaml:"sound_empty" json:"sound_empty"`
	SoundReloadStart  Sound `yaml:"sound_reload_start" json:"sound_reload_start"`
	SoundReloadFinish Sound `yaml:"sound_reload_finish" json:"sound_reload_finish"`
	SoundExplosion    Sound `yaml:"sound_explosion" json:"sound_explosion"`
}

func DefaultGun() Gun {
	return Gun{
		Name:             "gun",
		ModelEmpty:       -1,
		ModelReload:      -1,
		ModelADS:         -1,
		AmmoID:           0,
		AmmoMax:          10,
		ReloadTimeMillis: 1500,
		ShootDelayMillis: 500,
		EquipDelayMillis: 0,

		SingleFireMode:      FireSingle,
		BurstFireCount:      3,
		BurstFireDelayTicks: 2,
		AutoFireDelayTicks:  2,

		ProjectileCount:           1,
		ProjectileVelocity:        16,
		ProjectileGravity:         0.025,
		ProjectileLifetime:        400,
		ProjectileMaxDistance:     128,
		ProjectileDamage:          4,
		ProjectileArmorReduction:  0.5,
		ProjectileResistReduction: 0.5,
		ProjectileDamageType:      damage.Bullet,
		ProjectileTrail:           Particles{Type: "dust", Count: 1},
		ProjectileTrailSpacing:    1.2,

		HitBlockFireProbability: 0.04,
		HitBlockHandler:         "none",
		HitEntityHandler:        "damage",

		Explosion: defaultExplosion(2),

		CrawlTimeMillis: 1000,

		RecoilAutoFireRamp:  0.1,
		RecoilMaxMultiplier: 2,
		RecoilRecoveryRate:  0.1,

		SoundShoot:        Sound{"minecraft:entity.generic.explode", 6, 2},
		SoundEmpty:        Sound{"minecraft:block.stone_button.click_off", 1, 1.5},
		SoundReloadStart:  Sound{"minecraft:block.piston.contract", 1, 2},
		SoundReloadFinish: Sound{"minecraft:block.piston.extend", 1, 2},
		SoundExplosion:    Sound{"minecraft:entity.generic.explode", 6, 1},
	}
}

// Melee is a melee weapon.
type Melee struct {
	ID                  int         `yaml:"id" json:"id"`
	Name                string      `yaml:"name" json:"name"`
	Lore                []string    `yaml:"lore" json:"lore,omitempty"`
	ModelDefault        int         `yaml:"model_default" json:"model_default"`
	Damage              float64     `yaml:"damage" json:"damage"`
	ArmorReduction      float64     `yaml:"armor_reduction" json:"armor_reduction"`
	ResistanceReduction float64     `yaml:"resistance_reduction" json:"resistance_reduction"`
	DamageType          damage.Type `yaml:"damage_type" json:"damage_type"`
}

func DefaultMelee() Melee {
	return Melee{
		Name:                "melee",
		Damage:              8,
		ArmorReduction:      0.5,
		ResistanceReduction: 1,
		DamageType:          damage.Melee,
	}
}

// Throwable is a grenade style item: readied, thrown, then detonated on a
// timer or on impact.
type Throwable struct {
	ID           int      `yaml:"id" json:"id"`
	Name         string   `yaml:"name" json:"name"`
	Lore         []string `yaml:"lore" json:"lore,omitempty"`
	ModelDefault int      `yaml:"model_default" json:"model_default"`
	ModelReady   int      `yaml:"model_ready" json:"model_ready"`

	ThrowCooldownMillis        int64   `yaml:"throw_cooldown_millis" json:"throw_cooldown_millis"`
	ThrowSpeed                 float64 `yaml:"throw_speed" json:"throw_speed"`
	TimeToExplode              int     `yaml:"time_to_explode" json:"time_to_explode"`
	DamageHolderOnTimerExpired float64 `yaml:"damage_holder_on_timer_expired" json:"damage_holder_on_timer_expired"`

	ThrowDamage                    float64     `yaml:"throw_damage" json:"throw_damage"`
	ThrowDamageArmorReduction      float64     `yaml:"throw_damage_armor_reduction" json:"throw_damage_armor_reduction"`
	ThrowDamageResistanceReduction float64     `yaml:"throw_damage_resistance_reduction" json:"throw_damage_resistance_reduction"`
	ThrowDamageType                damage.Type `yaml:"throw_damage_type" json:"throw_damage_type"`
	ThrowFireTicks                 int         `yaml:"throw_fire_ticks" json:"throw_fire_ticks"`

	Explosion Explosion `yaml:"explosion" json:"explosion"`

	OnTimerExpired string `yaml:"on_timer_expired" json:"on_timer_expired"`
	OnBlockHit     string `yaml:"on_block_hit" json:"on_block_hit"`
	OnEntityHit    string `yaml:"on_entity_hit" json:"on_entity_hit"`

	SoundReady     Sound `yaml:"sound_ready" json:"sound_ready"`
	SoundThrow     Sound `yaml:"sound_throw" json:"sound_throw"`
	SoundImpact    Sound `yaml:"sound_impact" json:"sound_impact"`
	SoundExplosion Sound `yaml:"sound_explosion" json:"sound_explosion"`
}

func DefaultThrowable() Throwable {
	return Throwable{
		Name:                           "throwable",
		ModelReady:                     -1,
		ThrowCooldownMillis:            1000,
		ThrowSpeed:                     1,
		TimeToExplode:                  100,
		DamageHolderOnTimerExpired:     20,
		ThrowDamageArmorReduction:      0.25,
		ThrowDamageResistanceReduction: 0.25,
		ThrowDamageType:                damage.Explosive,
		Explosion:                      defaultExplosion(1),
		OnTimerExpired:                 "none",
		OnBlockHit:                     "none",
		OnEntityHit:                    "none",
		SoundReady:                     Sound{"minecraft:block.lever.click", 1, 1},
		SoundThrow:                     Sound{"minecraft:entity.arrow.shoot", 1, 1},
		SoundImpact:                    Sound{"minecraft:block.glass.break", 6, 1},
		SoundExplosion:                 Sound{"minecraft:entity.generic.explode", 6, 1},
	}
}

// HasBlockHitHandler reports whether thrown items must test block impacts.
func (t *Throwable) HasBlockHitHandler() bool { return t.OnBlockHit != "none" }

func (t *Throwable) HasEntityHitHandler() bool { return t.OnEntityHit != "none" }

// Hat is a helmet item.
type Hat struct {
	ID    int      `yaml:"id" json:"id"`
	Name  string   `yaml:"name" json:"name"`
	Model int      `yaml:"model" json:"model"`
	Lore  []string `yaml:"lore" json:"lore,omitempty"`
	Armor float64  `yaml:"armor" json:"armor"`
}

func DefaultHat() Hat { return Hat{ID: -1, Name: "helmet", Armor: 4} }

// Landmine is a pressure block that explodes when stepped on. Landmines are
// keyed by block material rather than id.
type Landmine struct {
	Material       string    `yaml:"material" json:"material"`
	Name           string    `yaml:"name" json:"name"`
	Explosion      Explosion `yaml:"explosion" json:"explosion"`
	SoundExplosion Sound     `yaml:"sound_explosion" json:"sound_explosion"`
}

func DefaultLandmine() Landmine {
	return Landmine{
		Material:       "landmine",
		Name:           "landmine",
		Explosion:      defaultExplosion(1),
		SoundExplosion: Sound{"minecraft:entity.generic.explode", 6, 1},
	}
}

// Handler names accepted per slot. "none" is always valid.
var (
	GunBlockHandlers        = []string{"none", "explosion", "fire"}
	GunEntityHandlers       = []string{"none", "damage", "explosion"}
	ThrowableTimerHandlers  = []string{"none", "explosion"}
	ThrowableBlockHandlers  = []string{"none", "explosion"}
	ThrowableEntityHandlers = []string{"none", "damage", "explosion"}
)
