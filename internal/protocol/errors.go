package protocol

// Transport/session-level error codes. Command results carry their own
// codes from the command layer; these cover everything before a COMMAND
// message reaches the queue.
const (
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoBadVersion = "E_PROTO_BAD_VERSION"
	ErrProtoBadAux     = "E_PROTO_BAD_AUX"
	ErrProtoTextLimit  = "E_PROTO_TEXT_LIMIT"
	ErrSessionFull     = "E_SESSION_FULL"
	ErrRateLimit       = "E_RATE_LIMIT"
	ErrInternal        = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoBadVersion: {},
	ErrProtoBadAux:     {},
	ErrProtoTextLimit:  {},
	ErrSessionFull:     {},
	ErrRateLimit:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
