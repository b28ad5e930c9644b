package command

import (
	"fmt"
	"strings"
)

// LogEntry snapshots one completed execute pass, for desync post-mortems.
// Entries are diagnostic only and never replayed.
type LogEntry struct {
	Tick    uint64
	Company CompanyID
	Client  ClientID
	Cmd     uint32
	Tile    TileIndex
	P1      uint32
	P2      uint32
	P3      uint64
	Text    string

	OK   bool
	Cost Money
	Code string
	// CostMismatch flags a test/execute cost divergence, which is a
	// determinism defect in the handler.
	CostMismatch bool
}

// Log is a fixed-capacity ring of recent command executions.
type Log struct {
	entries []LogEntry
	next    int
	count   int
}

func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = 1
	}
	return &Log{entries: make([]LogEntry, capacity)}
}

// Append records an entry, evicting the oldest once the ring is full.
func (l *Log) Append(e LogEntry) {
	l.entries[l.next] = e
	l.next = (l.next + 1) % len(l.entries)
	if l.count < len(l.entries) {
		l.count++
	}
}

func (l *Log) Len() int { return l.count }

func (l *Log) Clear() {
	l.next = 0
	l.count = 0
}

// Entries returns the retained entries in chronological order.
func (l *Log) Entries() []LogEntry {
	out := make([]LogEntry, 0, l.count)
	start := l.next - l.count
	if start < 0 {
		start += len(l.entries)
	}
	for i := 0; i < l.count; i++ {
		out = append(out, l.entries[(start+i)%len(l.entries)])
	}
	return out
}

// Dump renders the log chronologically into at most limit bytes. It
// truncates rather than erroring when the budget runs out.
func (l *Log) Dump(limit int) string {
	var b strings.Builder
	for i, e := range l.Entries() {
		line := fmt.Sprintf("%6d | t%08d | c%3d | %-20s | tile %d p1 0x%08X p2 0x%08X p3 0x%016X | %s | %s\n",
			i, e.Tick, e.Company, GetName(ID(e.Cmd&IDMask)), e.Tile, e.P1, e.P2, e.P3, dumpOutcome(e), e.Text)
		if b.Len()+len(line) > limit {
			const ellipsis = "...\n"
			if b.Len()+len(ellipsis) <= limit {
				b.WriteString(ellipsis)
			}
			break
		}
		b.WriteString(line)
	}
	return b.String()
}

func dumpOutcome(e LogEntry) string {
	if !e.OK {
		return "fail " + e.Code
	}
	if e.CostMismatch {
		return fmt.Sprintf("ok %d COST-MISMATCH", e.Cost)
	}
	return fmt.Sprintf("ok %d", e.Cost)
}
