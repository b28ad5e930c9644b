package command

// Wire-word layout: the low byte of Cmd is the command ID, the high bits are
// transport/behaviour flags. Mask before any table lookup.
const (
	IDMask    uint32 = 0x00FF
	FlagsMask uint32 = 0xFF00

	// FlagNetworkCmd marks an invocation that arrived from the queue and
	// must not be re-sent to the network.
	FlagNetworkCmd uint32 = 0x0100
	// FlagNoShiftEstimate suppresses the caller-side estimate toggle.
	FlagNoShiftEstimate uint32 = 0x0200
)

// Packet is one queued command invocation.
type Packet struct {
	Company CompanyID
	Tile    TileIndex
	P1      uint32
	P2      uint32
	P3      uint64
	Cmd     uint32 // ID in the low byte, transport flags above
	Text    string
	Aux     Auxiliary
	Client  ClientID

	Callback Callback
	// Frame is the tick this packet is scheduled for; zero until the server
	// stamps it during distribution.
	Frame uint64
	// MyCmd marks the packet as issued by this participant, so only its own
	// callback fires.
	MyCmd bool
}

func (p *Packet) ID() ID { return ID(p.Cmd & IDMask) }

// Clone value-copies the packet, duplicating the auxiliary payload.
func (p *Packet) Clone() Packet {
	cp := *p
	if p.Aux != nil {
		cp.Aux = p.Aux.CloneAux()
	}
	return cp
}

// Queue is an ordered queue of pending invocations. Append order is
// authoritative; the only permitted skip is pause filtering, which leaves
// relative order intact. Single-goroutine use only.
type Queue struct {
	items []Packet
}

func (q *Queue) Len() int { return len(q.items) }

// Append adds a deep copy of the packet to the tail.
func (q *Queue) Append(p *Packet) {
	q.items = append(q.items, p.Clone())
}

// Peek returns the first packet without removing it, skipping entries not
// allowed at the given pause level when filtering is on. Nil when empty.
func (q *Queue) Peek(paused bool, level PauseLevel) *Packet {
	i := q.peekIndex(paused, level)
	if i < 0 {
		return nil
	}
	return &q.items[i]
}

// Pop removes and returns the first (pause-eligible) packet, or nil.
func (q *Queue) Pop(paused bool, level PauseLevel) *Packet {
	i := q.peekIndex(paused, level)
	if i < 0 {
		return nil
	}
	p := q.items[i]
	q.items = append(q.items[:i], q.items[i+1:]...)
	return &p
}

func (q *Queue) peekIndex(paused bool, level PauseLevel) int {
	for i := range q.items {
		if paused && !AllowedWhilePaused(q.items[i].ID(), level) {
			continue
		}
		return i
	}
	return -1
}

// Items exposes the queued packets in order, for draining loops that must
// not reorder. The slice aliases the queue.
func (q *Queue) Items() []Packet { return q.items }

func (q *Queue) Clear() { q.items = q.items[:0] }
