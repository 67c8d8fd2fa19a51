package observerproto

import "xcombat.dev/internal/sim/engine"

// Version is the observer protocol version (separate from the client WS protocol).
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeStatus    = "STATUS"
)

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to change the push interval.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	IntervalMS      int    `json:"interval_ms"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string        `json:"protocol_version"`
	WorldID         string        `json:"world_id"`
	Tick            uint64        `json:"tick"`
	TickRateHz      int           `json:"tick_rate_hz"`
	Catalogs        CatalogCounts `json:"catalogs"`
}

type CatalogCounts struct {
	Digest     string   `json:"digest"`
	Ammo       int      `json:"ammo"`
	Guns       int      `json:"guns"`
	Melee      int      `json:"melee"`
	Throwables int      `json:"throwables"`
	Hats       int      `json:"hats"`
	Landmines  int      `json:"landmines"`
	Warnings   []string `json:"warnings,omitempty"`
}

type HubStats struct {
	Clients int    `json:"clients"`
	Dropped uint64 `json:"dropped"`
	Inputs  uint64 `json:"inputs"`
}

type IndexStats struct {
	QueueDepth int    `json:"queue_depth"`
	Dropped    uint64 `json:"dropped"`
	Errors     uint64 `json:"errors"`
}

// Server -> Client. Sent every subscribed interval.
type StatusMsg struct {
	Type            string               `json:"type"`
	ProtocolVersion string               `json:"protocol_version"`
	Engine          engine.EngineMetrics `json:"engine"`
	Hub             *HubStats            `json:"hub,omitempty"`
	Index           *IndexStats          `json:"index,omitempty"`
}
