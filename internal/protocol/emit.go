package protocol

import (
	"xcombat.dev/internal/sim/engine"
)

// EMIT (server -> render client): everything one tick produced.
type EmitMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Trails      []TrailObs      `json:"trails,omitempty"`
	Impacts     []ImpactObs     `json:"impacts,omitempty"`
	Explosions  []ExplosionObs  `json:"explosions,omitempty"`
	AmmoInfo    []AmmoObs       `json:"ammo_info,omitempty"`
	Sounds      []SoundObs      `json:"sounds,omitempty"`
	Recoil      []RecoilObs     `json:"recoil,omitempty"`
	BlockCracks []BlockCrackObs `json:"block_cracks,omitempty"`
	Messages    []MessageObs    `json:"messages,omitempty"`
}

type TrailObs struct {
	World    string     `json:"world"`
	From     [3]float64 `json:"from"`
	Dir      [3]float64 `json:"dir"`
	Length   float64    `json:"length"`
	Particle string     `json:"particle"`
	Count    int        `json:"count"`
	Spacing  float32    `json:"spacing"`
}

type ImpactObs struct {
	World    string     `json:"world"`
	Pos      [3]float64 `json:"pos"`
	Block    bool       `json:"block"`
	Material string     `json:"material,omitempty"`
}

type ExplosionObs struct {
	World    string     `json:"world"`
	Pos      [3]float64 `json:"pos"`
	Particle string     `json:"particle"`
	Count    int        `json:"count"`
	Force    bool       `json:"force,omitempty"`
}

type AmmoObs struct {
	Player string `json:"player"`
	Ammo   int    `json:"ammo"`
	Max    int    `json:"max"`
	Text   string `json:"text"`
}

type SoundObs struct {
	World  string     `json:"world"`
	Pos    [3]float64 `json:"pos"`
	Name   string     `json:"name"`
	Volume float32    `json:"volume"`
	Pitch  float32    `json:"pitch"`
}

type RecoilObs struct {
	Player     string  `json:"player"`
	Vertical   float64 `json:"vertical"`
	Horizontal float64 `json:"horizontal"`
	Multiplier float64 `json:"multiplier"`
}

type BlockCrackObs struct {
	World string `json:"world"`
	Pos   [3]int `json:"pos"`
}

type MessageObs struct {
	Player string `json:"player"`
	Text   string `json:"text"`
}

// EmitFromBatch converts an engine batch to its wire form.
func EmitFromBatch(b *engine.Batch) EmitMsg {
	m := EmitMsg{Type: TypeEmit, ProtocolVersion: Version, Tick: b.Tick}
	for _, t := range b.Trails {
		o := TrailObs{
			World:  t.World,
			From:   [3]float64{t.X, t.Y, t.Z},
			Dir:    [3]float64{t.DirX, t.DirY, t.DirZ},
			Length: t.Length,
		}
		if t.Gun != nil {
			o.Particle = t.Gun.ProjectileTrail.Type
			o.Count = t.Gun.ProjectileTrail.Count
			o.Spacing = t.Gun.ProjectileTrailSpacing
		}
		m.Trails = append(m.Trails, o)
	}
	for _, im := range b.Impacts {
		o := ImpactObs{World: im.World, Pos: [3]float64{im.X, im.Y, im.Z}, Block: im.Block}
		if im.Block {
			o.Material = im.State.Material.String()
		}
		m.Impacts = append(m.Impacts, o)
	}
	for _, x := range b.Explosions {
		m.Explosions = append(m.Explosions, ExplosionObs{
			World:    x.World,
			Pos:      [3]float64{x.X, x.Y, x.Z},
			Particle: x.Particles.Type,
			Count:    x.Particles.Count,
			Force:    x.Particles.Force,
		})
	}
	for _, a := range b.AmmoInfo {
		m.AmmoInfo = append(m.AmmoInfo, AmmoObs{Player: a.Player.String(), Ammo: a.Ammo, Max: a.Max, Text: a.Text()})
	}
	for _, s := range b.Sounds {
		m.Sounds = append(m.Sounds, SoundObs{
			World: s.World, Pos: [3]float64{s.X, s.Y, s.Z}, Name: s.Name, Volume: s.Volume, Pitch: s.Pitch,
		})
	}
	for _, r := range b.Recoil {
		m.Recoil = append(m.Recoil, RecoilObs{
			Player: r.Player.String(), Vertical: r.Vertical, Horizontal: r.Horizontal, Multiplier: r.Multiplier,
		})
	}
	for _, c := range b.BlockCracks {
		m.BlockCracks = append(m.BlockCracks, BlockCrackObs{World: c.World, Pos: [3]int{c.X, c.Y, c.Z}})
	}
	for _, msg := range b.Messages {
		m.Messages = append(m.Messages, MessageObs{Player: msg.Player.String(), Text: msg.Text})
	}
	return m
}

// ForPlayer drops ammo, recoil and status lines addressed to other players.
// Render clients bound to no player get the full batch.
func (m EmitMsg) ForPlayer(player string) EmitMsg {
	if player == "" {
		return m
	}
	out := m
	out.AmmoInfo = nil
	for _, a := range m.AmmoInfo {
		if a.Player == player {
			out.AmmoInfo = append(out.AmmoInfo, a)
		}
	}
	out.Recoil = nil
	for _, r := range m.Recoil {
		if r.Player == player {
			out.Recoil = append(out.Recoil, r)
		}
	}
	out.Messages = nil
	for _, msg := range m.Messages {
		if msg.Player == player {
			out.Messages = append(out.Messages, msg)
		}
	}
	return out
}
