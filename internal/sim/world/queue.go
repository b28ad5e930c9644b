package world

import (
	"sort"

	"railtycoon.ai/internal/protocol"
	"railtycoon.ai/internal/sim/command"
)

// distributeCommands moves pending invocations into the execution queue,
// stamped for the next tick so every participant executes them at the same
// point in time. The server's own commands go first, then each session's in
// ascending client order, bounded per tick so one client cannot starve the
// rest.
func (w *World) distributeCommands() {
	frame := w.tick.Load() + 1

	for n := 0; n < w.cfg.CommandsPerTickServer; n++ {
		p := w.waitQueue.Pop(false, w.pauseLevel)
		if p == nil {
			break
		}
		w.scheduleExec(p, frame)
	}

	ids := make([]command.ClientID, 0, len(w.sessions))
	for id := range w.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		s := w.sessions[id]
		for n := 0; n < w.cfg.CommandsPerTick; n++ {
			p := s.incoming.Pop(false, w.pauseLevel)
			if p == nil {
				break
			}
			w.scheduleExec(p, frame)
		}
	}
}

func (w *World) scheduleExec(p *command.Packet, frame uint64) {
	p.Frame = frame
	p.Cmd |= command.FlagNetworkCmd
	w.execQueue.Append(p)
}

// drainCommands executes every due invocation in arrival order. Pause
// filtering may hold entries back, it never reorders the survivors.
func (w *World) drainCommands() {
	tick := w.tick.Load()
	var batch []protocol.BatchCommand
	for {
		// Recomputed each round: a pause command mid-drain changes what
		// the rest of the queue is allowed to do.
		paused := w.pauseLevel < command.PauseAllActions
		head := w.execQueue.Peek(paused, w.pauseLevel)
		if head == nil || head.Frame > tick {
			break
		}
		p := w.execQueue.Pop(paused, w.pauseLevel)

		res := w.executePacket(p)
		if p.MyCmd {
			if s := w.sessions[p.Client]; s != nil {
				w.sendResult(s, p, res, false)
			}
		}
		// Callbacks see the final result exactly once per completed
		// command, failures included.
		w.runCallback(p, &res)
		if res.Succeeded() {
			batch = append(batch, batchCommand(p))
		}
	}

	if len(batch) > 0 {
		w.broadcast(protocol.BatchMsg{
			Type:            protocol.TypeBatch,
			ProtocolVersion: protocol.Version,
			Tick:            tick,
			Commands:        batch,
		})
	}
}

func batchCommand(p *command.Packet) protocol.BatchCommand {
	bc := protocol.BatchCommand{
		Company: uint8(p.Company),
		Client:  uint32(p.Client),
		Tile:    uint32(p.Tile),
		P1:      p.P1,
		P2:      p.P2,
		P3:      p.P3,
		Cmd:     uint32(p.ID()),
		Text:    p.Text,
	}
	if p.Aux != nil {
		bc.AuxKind = uint8(p.Aux.Kind())
		bc.AuxData = p.Aux.Serialise()
	}
	return bc
}
