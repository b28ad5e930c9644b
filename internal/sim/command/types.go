package command

// TileIndex addresses a map tile. The map is a dense row-major grid owned by
// the world; this package treats tiles as opaque identifiers.
type TileIndex uint32

const InvalidTile TileIndex = 0xFFFFFFFF

// CompanyID identifies the acting party of a command. The two high sentinel
// values mirror the on-wire encoding: deity acts with no balance, spectators
// cannot act at all (outside the commands flagged for them).
type CompanyID uint8

const (
	CompanyFirst     CompanyID = 0
	MaxCompanies               = 15
	CompanyDeity     CompanyID = 0xFE
	CompanySpectator CompanyID = 0xFF
)

func (c CompanyID) IsValid() bool { return c < MaxCompanies }

// ClientID identifies a connected session. 0 means "no client" (the server
// itself, or single-player).
type ClientID uint32

const InvalidClient ClientID = 0

// NetMode describes how this process participates in a session.
type NetMode uint8

const (
	// NetSingle: no remote participants, the queue is a direct pass-through.
	NetSingle NetMode = iota
	// NetServer: this process owns arrival order and broadcasts it.
	NetServer
)

func (m NetMode) String() string {
	if m == NetServer {
		return "server"
	}
	return "single"
}

// PauseLevel gates which command categories may run while paused.
type PauseLevel uint8

const (
	PauseNoActions PauseLevel = iota
	PauseNoConstruction
	PauseNoLandscaping
	PauseAllActions
)

// Callback names a completion callback in the static callback table, so an
// invocation can reference it over the wire by index.
type Callback uint8

const CallbackNone Callback = 0
