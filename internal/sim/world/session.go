package world

import (
	"encoding/json"

	"railtycoon.ai/internal/protocol"
	"railtycoon.ai/internal/sim/command"
)

// session is one connected client as seen from inside the world goroutine.
// The transport owns the socket; the world owns everything else.
type session struct {
	id      command.ClientID
	name    string
	company command.CompanyID

	// Commands received from this client that have not been distributed
	// into the execution queue yet.
	incoming command.Queue

	out chan []byte
}

type JoinRequest struct {
	Name string
	// Role is "company", "spectator" or "deity". Company players get their
	// company created through the regular command pipeline.
	Role string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
	Err     string
}

// CommandEnvelope is a COMMAND message tagged with the session it came from.
type CommandEnvelope struct {
	Client command.ClientID
	Msg    protocol.CommandMsg
}

// EstimateRequest prices a command without running it. Answered out of band
// so callers do not have to wait for a tick boundary.
type EstimateRequest struct {
	Client command.ClientID
	Msg    protocol.CommandMsg
	Resp   chan protocol.ResultMsg
}

type Diagnostics struct {
	Tick           uint64
	Clients        int
	Companies      int
	PauseLevel     command.PauseLevel
	CostMismatches uint64
	Digest         string
	LogDump        string
	LogDumpAux     string
}

type diagnosticReq struct {
	Resp chan Diagnostics
}

func (w *World) Join() chan<- JoinRequest { return w.join }

func (w *World) Leave() chan<- command.ClientID { return w.leave }

func (w *World) Inbox() chan<- CommandEnvelope { return w.inbox }

func (w *World) Estimate() chan<- EstimateRequest { return w.estimate }

// Diagnose snapshots loop-internal state for the admin endpoint.
func (w *World) Diagnose() Diagnostics {
	resp := make(chan Diagnostics, 1)
	w.diagnostic <- diagnosticReq{Resp: resp}
	return <-resp
}

func (w *World) handleJoin(req JoinRequest) {
	w.nextID++
	id := command.ClientID(w.nextID)
	name := req.Name
	if name == "" {
		name = "player"
	}

	s := &session{
		id:      id,
		name:    name,
		company: command.CompanySpectator,
		out:     req.Out,
	}
	w.sessions[id] = s

	switch req.Role {
	case "deity":
		s.company = command.CompanyDeity
	case "spectator":
		// Stays a spectator.
	default:
		// Companies are created through the pipeline like everything
		// else, so the creation shows up in the log and the journal.
		pkt := &command.Packet{
			Company:  command.CompanySpectator,
			Cmd:      uint32(command.CmdCompanyCtrl),
			P2:       uint32(id),
			Client:   id,
			Callback: callbackNewCompany,
			MyCmd:    true,
		}
		w.enqueueServer(pkt)
	}

	req.Resp <- JoinResponse{Welcome: w.buildWelcome(s)}
}

func (w *World) buildWelcome(s *session) protocol.WelcomeMsg {
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		ClientID:        uint32(s.id),
		Company:         uint8(s.company),
		ServerTick:      w.tick.Load(),
		WorldParams: protocol.WorldParams{
			TickRateHz: w.cfg.TickRateHz,
			MapWidth:   w.cfg.MapWidth,
			MapHeight:  w.cfg.MapHeight,
			Seed:       w.cfg.Seed,
			MaxLoan:    int64(w.cfg.Economy.MaxLoan),
			LoanStep:   int64(w.cfg.Economy.LoanStep),
			PauseLevel: uint8(w.pauseLevel),
			NetMode:    w.mode.String(),
		},
		Map: w.encodeMap(),
	}
}

func (w *World) handleLeave(id command.ClientID) {
	s := w.sessions[id]
	if s == nil {
		return
	}
	delete(w.sessions, id)
	// The company outlives the connection; a reconnect may claim it later
	// and bankruptcy handles abandonment. Pending commands do not.
	s.incoming.Clear()
}

// bindSessionCompany is called by the company-control handler once the new
// company exists.
func (w *World) bindSessionCompany(id command.ClientID, company command.CompanyID) {
	if s := w.sessions[id]; s != nil {
		s.company = company
	}
}

func (w *World) sessionCompany(id command.ClientID) command.CompanyID {
	if s := w.sessions[id]; s != nil {
		return s.company
	}
	return command.CompanySpectator
}

// send marshals and queues one message for a session, dropping it if the
// client's write buffer is full. Slow readers lose updates, not the server.
func (w *World) send(s *session, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case s.out <- b:
	default:
		w.logger.Printf("drop client=%d slow consumer", s.id)
	}
}

func (w *World) broadcast(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	for _, s := range w.sessions {
		select {
		case s.out <- b:
		default:
		}
	}
}
