package world

import (
	"railtycoon.ai/internal/protocol"
	"railtycoon.ai/internal/sim/command"
)

// executePacket runs one invocation through the two-pass pipeline. The
// caller has already decided the packet runs now; admission checks happen at
// issue time in handleCommand.
//
// The contract: the test pass must not mutate, the two passes must price
// identically, and a failed test pass leaves the world untouched. Divergence
// between the passes is counted and flagged in the log, not repaired.
func (w *World) executePacket(p *command.Packet) command.Cost {
	id := p.ID()
	if !command.IsValid(uint32(id)) || id >= command.CmdEnd {
		return command.ErrorCost(command.ErrUnknownCommand)
	}
	flags := command.GetFlags(id)
	proc := cmdDispatch[id]

	if flags&command.FlagClientID != 0 {
		// Never trust a client-supplied ID in this slot.
		p.P2 = uint32(p.Client)
	}

	w.currentCompany = p.Company
	w.currentClient = p.Client
	defer func() {
		w.currentCompany = command.CompanySpectator
		w.currentClient = command.InvalidClient
	}()

	var testRes command.Cost
	twoPass := flags&command.FlagNoTest == 0
	if twoPass {
		testRes = proc(w, p.Tile, command.ExecNone, p.P1, p.P2, p.P3, p.Text, p.Aux)
		if testRes.Failed() {
			w.logCommand(p, &testRes, false)
			return testRes
		}
		if !w.checkCompanyHasMoney(&testRes) {
			w.logCommand(p, &testRes, false)
			return testRes
		}
	}

	res := proc(w, p.Tile, command.Exec, p.P1, p.P2, p.P3, p.Text, p.Aux)

	mismatch := false
	if twoPass && res.GetCost() != testRes.GetCost() {
		mismatch = true
		w.costMismatches++
		w.logger.Printf("cost mismatch cmd=%s test=%d exec=%d tick=%d",
			command.GetName(id), testRes.GetCost(), res.GetCost(), w.tick.Load())
	}
	if twoPass && res.Failed() != testRes.Failed() {
		mismatch = true
		w.costMismatches++
		w.logger.Printf("outcome mismatch cmd=%s tick=%d", command.GetName(id), w.tick.Load())
	}

	if res.Succeeded() {
		w.subtractMoney(&res)
	}
	w.logCommand(p, &res, mismatch)
	w.journalCommand(p, &res)
	return res
}

// estimatePacket prices a command without committing it: test pass only, no
// funds check, no log entry, no journal record.
func (w *World) estimatePacket(p *command.Packet) command.Cost {
	id := p.ID()
	if !command.IsValid(uint32(id)) {
		return command.ErrorCost(command.ErrUnknownCommand)
	}
	flags := command.GetFlags(id)
	if flags&command.FlagNoEstimate != 0 {
		return command.CmdError()
	}

	if flags&command.FlagClientID != 0 {
		p.P2 = uint32(p.Client)
	}

	w.currentCompany = p.Company
	w.currentClient = p.Client
	defer func() {
		w.currentCompany = command.CompanySpectator
		w.currentClient = command.InvalidClient
	}()

	return cmdDispatch[id](w, p.Tile, command.ExecNone, p.P1, p.P2, p.P3, p.Text, p.Aux)
}

// testPacket is the admission test pass: like an estimate, but it does not
// honour FlagNoEstimate (commands excluded from estimation still get
// admission-tested) and trivially passes commands flagged NoTest.
func (w *World) testPacket(p *command.Packet) command.Cost {
	id := p.ID()
	flags := command.GetFlags(id)
	if flags&command.FlagNoTest != 0 {
		return command.NewCost()
	}
	if flags&command.FlagClientID != 0 {
		p.P2 = uint32(p.Client)
	}

	w.currentCompany = p.Company
	w.currentClient = p.Client
	defer func() {
		w.currentCompany = command.CompanySpectator
		w.currentClient = command.InvalidClient
	}()

	return cmdDispatch[id](w, p.Tile, command.ExecNone, p.P1, p.P2, p.P3, p.Text, p.Aux)
}

// doCommand runs a handler directly, outside the packet pipeline, for nested
// invocations made from within another command's execution. Bankrupt waives
// the funds check so that liquidation cannot be blocked by an empty balance.
// The caller is responsible for w.currentCompany.
func (w *World) doCommand(id command.ID, tile command.TileIndex, flags command.ExecFlag, p1, p2 uint32, p3 uint64, text string) command.Cost {
	test := cmdDispatch[id](w, tile, flags&^command.Exec, p1, p2, p3, text, nil)
	if test.Failed() {
		return test
	}
	if flags&command.Bankrupt == 0 && !w.checkCompanyHasMoney(&test) {
		return test
	}
	if flags&command.Exec == 0 {
		return test
	}
	res := cmdDispatch[id](w, tile, flags, p1, p2, p3, text, nil)
	if res.Succeeded() {
		w.subtractMoney(&res)
	}
	return res
}

func (w *World) logCommand(p *command.Packet, res *command.Cost, mismatch bool) {
	entry := command.LogEntry{
		Tick:         w.tick.Load(),
		Company:      p.Company,
		Client:       p.Client,
		Cmd:          uint32(p.ID()),
		Tile:         p.Tile,
		P1:           p.P1,
		P2:           p.P2,
		P3:           p.P3,
		Text:         p.Text,
		OK:           res.Succeeded(),
		Cost:         res.GetCost(),
		Code:         res.ErrorCode(),
		CostMismatch: mismatch,
	}
	if command.GetFlags(p.ID())&command.FlagLogAux != 0 {
		w.cmdLogAux.Append(entry)
		return
	}
	w.cmdLog.Append(entry)
}

// handleCommand is the admission path for a COMMAND message: capability
// gate, payload validation and a test pass, all before anything is queued.
// A rejected command leaves no trace in the log or the journal.
func (w *World) handleCommand(env CommandEnvelope) {
	s := w.sessions[env.Client]
	if s == nil {
		return
	}
	p, code := w.packetFromMsg(env.Client, s.company, &env.Msg)
	if code != "" {
		w.sendResult(s, p, failedCost(code), env.Msg.Estimate)
		return
	}

	if code := command.Allowed(p.ID(), s.company, w.mode, false, w.pauseLevel); code != "" {
		w.sendResult(s, p, failedCost(code), env.Msg.Estimate)
		return
	}

	// Clients may only request company creation; removal is a server
	// action, so any other company-control action is refused at the door.
	if p.ID() == command.CmdCompanyCtrl && p.P1&0xFF != 0 {
		w.sendResult(s, p, failedCost(command.ErrServerOnly), env.Msg.Estimate)
		return
	}

	if env.Msg.Estimate {
		res := w.estimatePacket(p)
		w.sendResult(s, p, res, true)
		return
	}

	if w.mode == command.NetSingle {
		res := w.executePacket(p)
		w.sendResult(s, p, res, false)
		w.runCallback(p, &res)
		return
	}

	// Networked: admission test now, execution at the next distribution
	// boundary. Only a clean test pass may occupy queue space, and each
	// session's backlog is capped so a flooding client cannot grow it
	// faster than the per-tick budget drains it.
	if s.incoming.Len() >= w.cfg.CommandsQueuedMax {
		w.sendResult(s, p, failedCost(protocol.ErrRateLimit), false)
		return
	}
	res := w.testPacket(p)
	if res.Failed() {
		w.sendResult(s, p, res, false)
		return
	}
	if !w.checkMoneyFor(s.company, &res) {
		w.sendResult(s, p, res, false)
		return
	}
	p.MyCmd = true
	s.incoming.Append(p)
}

// enqueueServer queues a command initiated by the server itself. In single
// mode there is no distribution boundary, it runs immediately.
func (w *World) enqueueServer(p *command.Packet) {
	if w.mode == command.NetSingle {
		res := w.executePacket(p)
		w.runCallback(p, &res)
		return
	}
	w.waitQueue.Append(p)
}

func (w *World) packetFromMsg(client command.ClientID, company command.CompanyID, msg *protocol.CommandMsg) (*command.Packet, string) {
	p := &command.Packet{
		Company:  company,
		Tile:     command.TileIndex(msg.Tile),
		P1:       msg.P1,
		P2:       msg.P2,
		P3:       msg.P3,
		Cmd:      msg.Cmd,
		Text:     msg.Text,
		Client:   client,
		Callback: command.Callback(msg.Callback),
	}
	if !command.IsValid(msg.Cmd & command.IDMask) {
		return p, command.ErrUnknownCommand
	}
	if len(msg.Text) > w.cfg.MaxCmdTextLen {
		return p, command.ErrBadParameter
	}
	if msg.AuxKind != uint8(command.AuxKindNone) {
		aux, err := command.DeserialiseAux(command.AuxKind(msg.AuxKind), msg.AuxData)
		if err != nil {
			return p, command.ErrBadAuxData
		}
		p.Aux = aux
	}
	if command.Callback(msg.Callback) >= callbackEnd {
		return p, command.ErrBadParameter
	}
	return p, ""
}

// checkMoneyFor is the admission-time funds check, run against a specific
// company rather than the acting context.
func (w *World) checkMoneyFor(company command.CompanyID, res *command.Cost) bool {
	prev := w.currentCompany
	w.currentCompany = company
	ok := w.checkCompanyHasMoney(res)
	w.currentCompany = prev
	return ok
}

func failedCost(code string) command.Cost {
	return command.ErrorCost(code)
}

func (w *World) sendResult(s *session, p *command.Packet, res command.Cost, estimate bool) {
	if s == nil {
		return
	}
	w.send(s, resultMsg(w.tick.Load(), p, &res, estimate))
}

func resultMsg(tick uint64, p *command.Packet, res *command.Cost, estimate bool) protocol.ResultMsg {
	m := protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		Cmd:             uint32(p.ID()),
		Tile:            uint32(p.Tile),
		P1:              p.P1,
		P2:              p.P2,
		P3:              p.P3,
		OK:              res.Succeeded(),
		Cost:            int64(res.GetCost()),
		Code:            res.ErrorCode(),
		ExtraCode:       res.ExtraErrorCode(),
		Estimate:        estimate,
		Callback:        uint8(p.Callback),
	}
	if t := res.Tile(); t != command.InvalidTile {
		m.ResultTile = uint32(t)
	}
	m.ResultData = res.ResultData()
	return m
}
