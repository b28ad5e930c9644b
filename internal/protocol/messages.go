package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name"`
	// Role requested by the client: "company", "spectator" or "deity".
	// The server decides what is actually granted.
	Role string `json:"role,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	ClientID        uint32      `json:"client_id"`
	Company         uint8       `json:"company"`
	ServerTick      uint64      `json:"server_tick"`
	WorldParams     WorldParams `json:"world_params"`
	// Map is the RLE-encoded tile grid at join time; joined clients replay
	// the BATCH stream on top of it.
	Map string `json:"map,omitempty"`
}

type WorldParams struct {
	TickRateHz int    `json:"tick_rate_hz"`
	MapWidth   int    `json:"map_width"`
	MapHeight  int    `json:"map_height"`
	Seed       int64  `json:"seed"`
	MaxLoan    int64  `json:"max_loan"`
	LoanStep   int64  `json:"loan_step"`
	PauseLevel uint8  `json:"pause_level"`
	NetMode    string `json:"net_mode"`
}

// COMMAND (client -> server): one invocation of the command pipeline.
type CommandMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tile            uint32 `json:"tile"`
	P1              uint32 `json:"p1"`
	P2              uint32 `json:"p2"`
	P3              uint64 `json:"p3,omitempty"`
	Cmd             uint32 `json:"cmd"`
	Text            string `json:"text,omitempty"`
	Callback        uint8  `json:"callback,omitempty"`
	Estimate        bool   `json:"estimate,omitempty"`
	AuxKind         uint8  `json:"aux_kind,omitempty"`
	// AuxData is the payload's serialised form, base64 in JSON.
	AuxData []byte `json:"aux_data,omitempty"`
}

// RESULT (server -> issuing client)
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Cmd             uint32 `json:"cmd"`
	Tile            uint32 `json:"tile"`
	P1              uint32 `json:"p1"`
	P2              uint32 `json:"p2"`
	P3              uint64 `json:"p3,omitempty"`
	OK              bool   `json:"ok"`
	Cost            int64  `json:"cost"`
	Code            string `json:"code,omitempty"`
	ExtraCode       string `json:"extra_code,omitempty"`
	Estimate        bool   `json:"estimate,omitempty"`
	Callback        uint8  `json:"callback,omitempty"`
	// ResultTile/ResultData mirror the optional payload of the Cost value.
	ResultTile uint32 `json:"result_tile,omitempty"`
	ResultData uint32 `json:"result_data,omitempty"`
}

// BATCH (server -> all clients): the executed commands of one tick, in
// execution order. Replaying every batch from the same starting state must
// reproduce the server state bit for bit.
type BatchMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Tick            uint64         `json:"tick"`
	Commands        []BatchCommand `json:"commands"`
}

type BatchCommand struct {
	Company uint8  `json:"company"`
	Client  uint32 `json:"client,omitempty"`
	Tile    uint32 `json:"tile"`
	P1      uint32 `json:"p1"`
	P2      uint32 `json:"p2"`
	P3      uint64 `json:"p3,omitempty"`
	Cmd     uint32 `json:"cmd"`
	Text    string `json:"text,omitempty"`
	AuxKind uint8  `json:"aux_kind,omitempty"`
	AuxData []byte `json:"aux_data,omitempty"`
}

// DIGEST (server -> all clients): periodic state checksum for desync
// detection. A client whose own digest differs must resynchronize; there is
// no in-protocol repair.
type DigestMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Digest          string `json:"digest"`
}
