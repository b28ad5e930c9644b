package world

import "railtycoon.ai/internal/sim/command"

// Completion callbacks, referenced over the wire by index so an invocation
// can name its follow-up in one byte. The table is static and dense; slot
// zero is "none". Entries without a server-side effect stay nil, the index
// still travels in RESULT so the client can run its own half.
const (
	callbackNone command.Callback = iota
	callbackNewCompany
	callbackNewStation
	callbackNewSign
	callbackEnd
)

type callbackProc func(w *World, p *command.Packet, res *command.Cost)

var callbackTable = [callbackEnd]callbackProc{
	callbackNewCompany: ccNewCompany,
}

func (w *World) runCallback(p *command.Packet, res *command.Cost) {
	cb := p.Callback
	if cb == callbackNone || cb >= callbackEnd {
		return
	}
	if proc := callbackTable[cb]; proc != nil {
		proc(w, p, res)
	}
}

// ccNewCompany binds the freshly created company to the session that asked
// for it.
func ccNewCompany(w *World, p *command.Packet, res *command.Cost) {
	if res.Failed() {
		return
	}
	w.bindSessionCompany(p.Client, command.CompanyID(res.ResultData()))
}
