package protocol

import (
	"fmt"

	"github.com/google/uuid"

	"xcombat.dev/internal/sim/engine"
)

// INPUT (client -> server)
type InputMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerID        string `json:"player_id"`
	Action          string `json:"action"`
	Entity          string `json:"entity,omitempty"`
	World           string `json:"world,omitempty"`
	Block           [3]int `json:"block,omitempty"`
	Name            string `json:"name,omitempty"`
}

var actions = map[engine.Action]struct{}{
	engine.ActShoot:        {},
	engine.ActAutoFire:     {},
	engine.ActReload:       {},
	engine.ActADS:          {},
	engine.ActSelect:       {},
	engine.ActCleanup:      {},
	engine.ActDropItem:     {},
	engine.ActThrowReady:   {},
	engine.ActThrow:        {},
	engine.ActCrawl:        {},
	engine.ActCrawlStop:    {},
	engine.ActWearHat:      {},
	engine.ActLandmine:     {},
	engine.ActQuit:         {},
	engine.ActVehicleSpawn: {},
	engine.ActVehicleMount: {},
	engine.ActVehicleShoot: {},
}

// InputError carries the protocol error code for a rejected frame.
type InputError struct {
	Code string
	Msg  string
}

func (e *InputError) Error() string { return e.Code + ": " + e.Msg }

// ToInput validates m and converts it to an engine input.
func (m InputMsg) ToInput() (engine.Input, error) {
	act := engine.Action(m.Action)
	if _, ok := actions[act]; !ok {
		return engine.Input{}, &InputError{ErrUnknownAction, fmt.Sprintf("unknown action %q", m.Action)}
	}
	player, err := uuid.Parse(m.PlayerID)
	if err != nil {
		return engine.Input{}, &InputError{ErrBadRequest, "bad player_id"}
	}
	in := engine.Input{Player: player, Action: act, World: m.World, Block: m.Block, Name: m.Name}
	switch act {
	case engine.ActDropItem, engine.ActVehicleMount:
		ent, err := uuid.Parse(m.Entity)
		if err != nil {
			return engine.Input{}, &InputError{ErrBadRequest, "bad entity"}
		}
		in.Entity = ent
	case engine.ActLandmine:
		if m.World == "" {
			return engine.Input{}, &InputError{ErrBadRequest, "landmine needs world"}
		}
	case engine.ActVehicleSpawn:
		if m.Name == "" {
			return engine.Input{}, &InputError{ErrBadRequest, "vehicle_spawn needs name"}
		}
	}
	return in, nil
}
