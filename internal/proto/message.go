package proto

import "encoding/json"

// Inbound is the envelope for messages coming from a client, over either
// channel. Data holds the kind-specific payload.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeConnectionRequest = "connection_request"
	InboundTypeSpawnRequest      = "object_spawn_request"
	InboundTypeTransform         = "object_transform"
	InboundTypeDatagramHello     = "udp_hello"

	OutboundTypeConnectionResponse = "connection_response"
	OutboundTypeInstantiate        = "object_instantiate"
	OutboundTypeTransform          = "object_transform"
	OutboundTypeDestroy            = "object_destroy"
	OutboundTypeError              = "error"
)

// Connection request modes.
const (
	ModeLogin    = "login"
	ModeRegister = "register"
)

// Vec2 is a 2D vector on the wire.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ConnectionRequestData asks the server to authenticate or register.
type ConnectionRequestData struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Mode     string `json:"mode"`
}

// SpawnRequestData asks the server to create an object in the scene.
type SpawnRequestData struct {
	Position Vec2  `json:"position"`
	PrefabID int32 `json:"prefab_id"`
}

// TransformData carries a full object pose. Rotation is in degrees.
type TransformData struct {
	ID       int64   `json:"id"`
	Position Vec2    `json:"position"`
	Scale    Vec2    `json:"scale"`
	Rotation float64 `json:"rotation"`
	FlipX    bool    `json:"flip_x"`
	FlipY    bool    `json:"flip_y"`
}

// DatagramHelloData registers the sender's UDP address for the connection
// named by the token. Sent as the first datagram after a successful
// connection response.
type DatagramHelloData struct {
	Token string `json:"token"`
}

// Outbound is the envelope for messages sent to clients.
type Outbound struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// ConnectionResponseData answers a ConnectionRequest. On success the
// client keeps ConnectionID to recognize its own objects and presents
// DatagramToken in a udp_hello to open the unreliable channel.
type ConnectionResponseData struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	Mode          string `json:"mode"`
	ConnectionID  string `json:"connection_id,omitempty"`
	DatagramToken string `json:"datagram_token,omitempty"`
}

// InstantiateData announces a server-confirmed object, both for fresh
// spawns (broadcast) and scene snapshots on join (unicast).
type InstantiateData struct {
	ID       int64  `json:"id"`
	OwnerID  string `json:"owner_id"`
	Position Vec2   `json:"position"`
	PrefabID int32  `json:"prefab_id"`
}

// DestroyData announces that an object left the scene.
type DestroyData struct {
	ID int64 `json:"id"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
