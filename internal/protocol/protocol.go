package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeEmit    = "EMIT"
	TypeInput   = "INPUT"
	TypeError   = "ERROR"
)

// Client roles. Render clients receive EMIT batches; input clients send
// INPUT frames for one player.
const (
	RoleRender = "render"
	RoleInput  = "input"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
