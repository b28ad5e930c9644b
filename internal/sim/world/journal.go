package world

import "railtycoon.ai/internal/sim/command"

// JournalEntry is one record of the append-only command journal. Command
// records carry enough to re-execute the invocation; digest records anchor
// replays so divergence can be localised to a tick range.
type JournalEntry struct {
	Kind    string `json:"kind"` // "command" or "digest"
	Tick    uint64 `json:"tick"`
	Company uint8  `json:"company,omitempty"`
	Client  uint32 `json:"client,omitempty"`
	Cmd     uint32 `json:"cmd,omitempty"`
	Tile    uint32 `json:"tile,omitempty"`
	P1      uint32 `json:"p1,omitempty"`
	P2      uint32 `json:"p2,omitempty"`
	P3      uint64 `json:"p3,omitempty"`
	Text    string `json:"text,omitempty"`
	AuxKind uint8  `json:"aux_kind,omitempty"`
	AuxData []byte `json:"aux_data,omitempty"`
	OK      bool   `json:"ok,omitempty"`
	Cost    int64  `json:"cost,omitempty"`
	Code    string `json:"code,omitempty"`
	Digest  string `json:"digest,omitempty"`
}

const (
	JournalKindCommand = "command"
	JournalKindDigest  = "digest"
)

// JournalSink receives journal records in execution order. Implementations
// must not block the world goroutine.
type JournalSink interface {
	Append(JournalEntry)
}

func (w *World) journalCommand(p *command.Packet, res *command.Cost) {
	if w.journal == nil {
		return
	}
	e := JournalEntry{
		Kind:    JournalKindCommand,
		Tick:    w.tick.Load(),
		Company: uint8(p.Company),
		Client:  uint32(p.Client),
		Cmd:     uint32(p.ID()),
		Tile:    uint32(p.Tile),
		P1:      p.P1,
		P2:      p.P2,
		P3:      p.P3,
		Text:    p.Text,
		OK:      res.Succeeded(),
		Cost:    int64(res.GetCost()),
		Code:    res.ErrorCode(),
	}
	if p.Aux != nil {
		e.AuxKind = uint8(p.Aux.Kind())
		e.AuxData = p.Aux.Serialise()
	}
	w.journal.Append(e)
}

func (w *World) journalDigest(tick uint64, digest string) {
	if w.journal == nil {
		return
	}
	w.journal.Append(JournalEntry{Kind: JournalKindDigest, Tick: tick, Digest: digest})
}

// ReplayEntry re-executes one journal command record against this world.
// Used by the replay tool; the world must be stepped to the recorded tick
// ordering by the caller.
func (w *World) ReplayEntry(e JournalEntry) (command.Cost, error) {
	p := &command.Packet{
		Company: command.CompanyID(e.Company),
		Tile:    command.TileIndex(e.Tile),
		P1:      e.P1,
		P2:      e.P2,
		P3:      e.P3,
		Cmd:     e.Cmd | command.FlagNetworkCmd,
		Text:    e.Text,
		Client:  command.ClientID(e.Client),
	}
	if e.AuxKind != uint8(command.AuxKindNone) {
		aux, err := command.DeserialiseAux(command.AuxKind(e.AuxKind), e.AuxData)
		if err != nil {
			return command.Cost{}, err
		}
		p.Aux = aux
	}
	return w.executePacket(p), nil
}
