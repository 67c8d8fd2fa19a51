package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Role            string `json:"role"`
	// PlayerID binds an input client to one player. Render clients leave
	// it empty.
	PlayerID string `json:"player_id,omitempty"`
	// MaxQueue bounds the server-side send queue for this client.
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	WorldID         string `json:"world_id"`
	TickRateHz      int    `json:"tick_rate_hz"`
	Tick            uint64 `json:"tick"`
}
