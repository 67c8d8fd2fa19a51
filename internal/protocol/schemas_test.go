package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"xcombat.dev/internal/protocol"
	"xcombat.dev/internal/sim/catalogs"
	"xcombat.dev/internal/sim/engine"
	"xcombat.dev/internal/sim/explosion"
	"xcombat.dev/internal/sim/projectile"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// roundTrip turns a message into the generic form the validator expects.
func roundTrip(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestSchemas_ValidateSamples(t *testing.T) {
	player := uuid.New()
	g := catalogs.DefaultGun()

	cases := []struct {
		schema string
		msg    any
	}{
		{"hello.schema.json", protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, Role: protocol.RoleRender}},
		{"hello.schema.json", protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, Role: protocol.RoleInput, PlayerID: player.String(), MaxQueue: 16}},
		{"welcome.schema.json", protocol.WelcomeMsg{Type: protocol.TypeWelcome, ProtocolVersion: protocol.Version, SessionID: "S1", WorldID: "world", TickRateHz: 20, Tick: 42}},
		{"input.schema.json", protocol.InputMsg{Type: protocol.TypeInput, ProtocolVersion: protocol.Version, PlayerID: player.String(), Action: "landmine", World: "world", Block: [3]int{1, 64, -3}}},
		{"error.schema.json", protocol.NewError(protocol.ErrUnknownAction, "unknown action \"fly\"")},
		{"emit.schema.json", protocol.EmitFromBatch(&engine.Batch{
			Tick:        7,
			Trails:      []projectile.Trail{{World: "world", X: 1, Y: 65, Z: 2, DirZ: 1, Length: 16, Gun: &g}},
			Impacts:     []projectile.Impact{{World: "world", X: 1, Y: 64, Z: 9, Block: true, BX: 1, BY: 64, BZ: 9}},
			Explosions:  []explosion.Burst{{World: "world", X: 1, Y: 64, Z: 9, Particles: catalogs.Particles{Type: "explosion_large", Count: 1, Force: true}}},
			AmmoInfo:    []engine.AmmoInfo{{Player: player, Ammo: 3, Max: 10}},
			Sounds:      []engine.Sound{{World: "world", X: 1, Y: 65, Z: 2, Name: "minecraft:entity.generic.explode", Volume: 6, Pitch: 2}},
			Recoil:      []engine.Recoil{{Player: player, Vertical: 1, Multiplier: 1.2}},
			BlockCracks: []engine.BlockCrack{{World: "world", X: 1, Y: 64, Z: 9}},
			Messages:    []engine.Message{{Player: player, Text: "Ammo [3/10]"}},
		})},
	}
	for _, c := range cases {
		if err := compile(t, c.schema).Validate(roundTrip(t, c.msg)); err != nil {
			t.Fatalf("%s: %v", c.schema, err)
		}
	}
}

func TestSchemas_RejectBadInput(t *testing.T) {
	s := compile(t, "input.schema.json")
	var bad any
	_ = json.Unmarshal([]byte(`{"type":"INPUT","protocol_version":"1.0","player_id":"p1","action":"fly"}`), &bad)
	if err := s.Validate(bad); err == nil {
		t.Fatalf("unknown action accepted")
	}
	var noRole any
	_ = json.Unmarshal([]byte(`{"type":"HELLO","protocol_version":"1.0"}`), &noRole)
	if err := compile(t, "hello.schema.json").Validate(noRole); err == nil {
		t.Fatalf("HELLO without role accepted")
	}
}
