package world

import (
	"context"
	"time"

	"railtycoon.ai/internal/protocol"
	"railtycoon.ai/internal/sim/command"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingJoins []JoinRequest
	var pendingLeaves []command.ClientID

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-w.inbox:
			w.handleCommand(env)
		case req := <-w.estimate:
			w.handleEstimate(req)
		case req := <-w.diagnostic:
			w.handleDiagnostic(req)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// step advances the world by one tick: membership changes, then execution
// of everything due this tick, then distribution of what arrived since the
// last boundary.
func (w *World) step(joins []JoinRequest, leaves []command.ClientID) {
	for _, id := range leaves {
		w.handleLeave(id)
	}
	for _, req := range joins {
		w.handleJoin(req)
	}

	tick := w.tick.Add(1)
	w.drainCommands()
	w.distributeCommands()

	if w.cfg.DigestEveryTicks > 0 && tick%uint64(w.cfg.DigestEveryTicks) == 0 {
		digest := w.StateDigest()
		w.broadcast(protocol.DigestMsg{
			Type:            protocol.TypeDigest,
			ProtocolVersion: protocol.Version,
			Tick:            tick,
			Digest:          digest,
		})
		w.journalDigest(tick, digest)
	}
}

// StepOnce advances the world by a single tick with the same ordering
// semantics as Run. For deterministic replays and tests.
func (w *World) StepOnce() (tick uint64, digest string) {
	w.step(nil, nil)
	return w.tick.Load(), w.StateDigest()
}

func (w *World) handleEstimate(req EstimateRequest) {
	company := w.sessionCompany(req.Client)
	p, code := w.packetFromMsg(req.Client, company, &req.Msg)
	var res command.Cost
	if code != "" {
		res = failedCost(code)
	} else if code := command.Allowed(p.ID(), company, w.mode, false, w.pauseLevel); code != "" {
		res = failedCost(code)
	} else {
		res = w.estimatePacket(p)
	}
	req.Resp <- resultMsg(w.tick.Load(), p, &res, true)
}

// dumpBytesPerEntry sizes the diagnostic dump buffer: ring capacities count
// entries, Dump's limit counts bytes. One formatted line fits comfortably.
const dumpBytesPerEntry = 192

func (w *World) handleDiagnostic(req diagnosticReq) {
	companies := 0
	for _, c := range w.companies {
		if c != nil {
			companies++
		}
	}
	req.Resp <- Diagnostics{
		Tick:           w.tick.Load(),
		Clients:        len(w.sessions),
		Companies:      companies,
		PauseLevel:     w.pauseLevel,
		CostMismatches: w.costMismatches,
		Digest:         w.StateDigest(),
		LogDump:        w.cmdLog.Dump(w.cfg.CmdLogCapacity * dumpBytesPerEntry),
		LogDumpAux:     w.cmdLogAux.Dump(w.cfg.CmdLogAuxCapacity * dumpBytesPerEntry),
	}
}
