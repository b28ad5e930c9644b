package world

import (
	"fmt"
	"unicode/utf8"

	"railtycoon.ai/internal/sim/command"
)

// cmdProc is one command handler. It is called with Exec clear to validate
// and price, and again with Exec set to mutate. Handlers must not touch
// persistent state in the test pass and must price both passes identically;
// the executor surfaces divergence but cannot repair it.
type cmdProc func(w *World, tile command.TileIndex, flags command.ExecFlag, p1, p2 uint32, p3 uint64, text string, aux command.Auxiliary) command.Cost

// Populated in init; a literal would form an initialization cycle through
// handlers that issue nested commands.
var cmdDispatch map[command.ID]cmdProc

func init() {
	cmdDispatch = map[command.ID]cmdProc{
		command.CmdBuildDepot:        cmdBuildDepot,
		command.CmdBuildStation:      cmdBuildStation,
		command.CmdDemolish:          cmdDemolish,
		command.CmdRenameCompany:     cmdRenameCompany,
		command.CmdRenameStation:     cmdRenameStation,
		command.CmdPlaceSign:         cmdPlaceSign,
		command.CmdRenameSign:        cmdRenameSign,
		command.CmdIncreaseLoan:      cmdIncreaseLoan,
		command.CmdDecreaseLoan:      cmdDecreaseLoan,
		command.CmdGiveMoney:         cmdGiveMoney,
		command.CmdChangeBankBalance: cmdChangeBankBalance,
		command.CmdPause:             cmdPause,
		command.CmdCompanyCtrl:       cmdCompanyCtrl,
		command.CmdMoneyCheat:        cmdMoneyCheat,
		command.CmdDesyncCheck:       cmdDesyncCheck,
	}
}

// validateCmdDispatch keeps the dispatch map in lockstep with the command
// table: every registered ID has exactly one handler.
func validateCmdDispatch() error {
	names := command.Names()
	if len(cmdDispatch) != len(names) {
		return fmt.Errorf("cmdDispatch size mismatch: got=%d want=%d", len(cmdDispatch), len(names))
	}
	for id := command.ID(0); id < command.CmdEnd; id++ {
		if cmdDispatch[id] == nil {
			return fmt.Errorf("cmdDispatch missing handler for %s", command.GetName(id))
		}
	}
	return nil
}

func (w *World) checkName(text string) command.Cost {
	if utf8.RuneCountInString(text) >= w.cfg.MaxNameChars {
		return command.ErrorCost(command.ErrNameTooLong)
	}
	return command.NewCost()
}

func cmdBuildDepot(w *World, tile command.TileIndex, flags command.ExecFlag, p1, p2 uint32, p3 uint64, text string, aux command.Auxiliary) command.Cost {
	if !w.tileValid(tile) {
		return command.ErrorCost(command.ErrBadTile)
	}
	if w.tiles[tile] != TileClear {
		return command.ErrorCost(command.ErrTileOccupied)
	}
	cost := command.NewCostWith(command.ExpenseConstruction, w.cfg.Economy.CostDepot)
	if flags&command.Exec != 0 {
		w.tiles[tile] = TileDepot
		w.tileOwner[tile] = w.currentCompany
	}
	cost.SetTile(tile)
	return cost
}

func cmdBuildStation(w *World, tile command.TileIndex, flags command.ExecFlag, p1, p2 uint32, p3 uint64, text string, aux command.Auxiliary) command.Cost {
	layout := &command.StationLayout{Offsets: []int32{0}}
	if aux != nil {
		var ok bool
		layout, ok = aux.(*command.StationLayout)
		if !ok {
			return command.ErrorCost(command.ErrBadAuxData)
		}
		if len(layout.Offsets) == 0 {
			return command.ErrorCost(command.ErrBadAuxData)
		}
	}

	cost := command.NewCostWith(command.ExpenseConstruction, 0)
	tiles := make([]command.TileIndex, 0, len(layout.Offsets))
	for _, off := range layout.Offsets {
		t := command.TileIndex(int64(tile) + int64(off))
		if !w.tileValid(t) {
			return command.ErrorCost(command.ErrBadTile)
		}
		if w.tiles[t] != TileClear {
			ec := command.DualErrorCost(command.ErrTileOccupied, command.ErrBadTile)
			ec.SetTile(t)
			return ec
		}
		tiles = append(tiles, t)
		cost.AddCost(w.cfg.Economy.CostStationTile)
	}

	if flags&command.Exec != 0 {
		w.nextStation++
		id := w.nextStation
		st := &Station{
			ID:    id,
			Name:  fmt.Sprintf("Station %d", id),
			Owner: w.currentCompany,
			Tiles: tiles,
		}
		w.stations[id] = st
		for _, t := range tiles {
			w.tiles[t] = TileStation
			w.tileOwner[t] = w.currentCompany
			w.tileStn[t] = id
		}
		cost.SetResultData(uint32(id))
	}
	cost.SetTile(tile)
	return cost
}

func cmdDemolish(w *World, tile command.TileIndex, flags command.ExecFlag, p1, p2 uint32, p3 uint64, text string, aux command.Auxiliary) command.Cost {
	if !w.tileValid(tile) {
		return command.ErrorCost(command.ErrBadTile)
	}
	if w.tiles[tile] == TileClear {
		return command.ErrorCost(command.ErrTileEmpty)
	}
	if owner := w.tileOwner[tile]; owner != w.currentCompany && w.currentCompany != command.CompanyDeity {
		return command.ErrorCost(command.ErrNotOwner)
	}
	cost := command.NewCostWith(command.ExpenseConstruction, w.cfg.Economy.CostDemolish)
	if flags&command.Exec != 0 {
		w.clearTile(tile)
	}
	return cost
}

func (w *World) clearTile(tile command.TileIndex) {
	switch w.tiles[tile] {
	case TileStation:
		id := w.tileStn[tile]
		if st := w.stations[id]; st != nil {
			remaining := st.Tiles[:0]
			for _, t := range st.Tiles {
				if t != tile {
					remaining = append(remaining, t)
				}
			}
			st.Tiles = remaining
			if len(st.Tiles) == 0 {
				delete(w.stations, id)
			}
		}
	case TileSign:
		for id, s := range w.signs {
			if s.Tile == tile {
				delete(w.signs, id)
			}
		}
	}
	w.tiles[tile] = TileClear
	w.tileOwner[tile] = command.CompanySpectator
	w.tileStn[tile] = 0
}

func cmdRenameCompany(w *World, tile command.TileIndex, flags command.ExecFlag, p1, p2 uint32, p3 uint64, text string, aux command.Auxiliary) command.Cost {
	c := w.Company(w.currentCompany)
	if c == nil {
		return command.ErrorCost(command.ErrBadCompany)
	}
	if res := w.checkName(text); res.Failed() {
		return res
	}
	for _, other := range w.companies {
		if other != nil && other.ID != c.ID && other.Name == text {
			return command.ErrorCost(command.ErrNameInUse)
		}
	}
	if flags&command.Exec != 0 {
		c.Name = text
	}
	return command.NewCost()
}

func cmdRenameStation(w *World, tile command.TileIndex, flags command.ExecFlag, p1, p2 uint32, p3 uint64, text string, aux command.Auxiliary) command.Cost {
	st := w.stations[uint16(p1)]
	if st == nil {
		return command.ErrorCost(command.ErrBadParameter)
	}
	if st.Owner != w.currentCompany && w.currentCompany != command.CompanyDeity {
		return command.ErrorCost(command.ErrNotOwner)
	}
	if res := w.checkName(text); res.Failed() {
		return res
	}
	if flags&command.Exec != 0 {
		st.Name = text
	}
	return command.NewCost()
}

func cmdPlaceSign(w *World, tile command.TileIndex, flags command.ExecFlag, p1, p2 uint32, p3 uint64, text string, aux command.Auxiliary) command.Cost {
	if !w.tileValid(tile) {
		return command.ErrorCost(command.ErrBadTile)
	}
	if res := w.checkName(text); res.Failed() {
		return res
	}
	cost := command.NewCostWith(command.ExpenseOther, w.cfg.Economy.CostSign)
	if flags&command.Exec != 0 {
		w.nextSign++
		id := w.nextSign
		w.signs[id] = &Sign{ID: id, Tile: tile, Text: text, Owner: w.currentCompany}
		cost.SetResultData(uint32(id))
	}
	return cost
}

func cmdRenameSign(w *World, tile command.TileIndex, flags command.ExecFlag, p1, p2 uint32, p3 uint64, text string, aux command.Auxiliary) command.Cost {
	s := w.signs[uint16(p1)]
	if s == nil {
		return command.ErrorCost(command.ErrBadParameter)
	}
	if s.Owner != w.currentCompany && w.currentCompany != command.CompanyDeity {
		return command.ErrorCost(command.ErrNotOwner)
	}
	if res := w.checkName(text); res.Failed() {
		return res
	}
	if flags&command.Exec != 0 {
		if text == "" {
			// An empty rename deletes the sign.
			delete(w.signs, s.ID)
		} else {
			s.Text = text
		}
	}
	return command.NewCost()
}

// Loan increase: p2 = 0 borrows one step, p2 = 1 borrows up to the limit.
// The cost is negative, i.e. income.
func cmdIncreaseLoan(w *World, tile command.TileIndex, flags command.ExecFlag, p1, p2 uint32, p3 uint64, text string, aux command.Auxiliary) command.Cost {
	c := w.Company(w.currentCompany)
	if c == nil {
		return command.ErrorCost(command.ErrBadCompany)
	}
	var amount command.Money
	switch p2 {
	case 0:
		amount = w.cfg.Economy.LoanStep
	case 1:
		amount = w.cfg.Economy.MaxLoan - c.Loan
	default:
		return command.ErrorCost(command.ErrBadParameter)
	}
	if amount <= 0 || c.Loan+amount > w.cfg.Economy.MaxLoan {
		ec := command.ErrorCost(command.ErrLoanLimit)
		ec.UseTextRef("economy", []uint32{moneyReg(w.cfg.Economy.MaxLoan)})
		return ec
	}
	if flags&command.Exec != 0 {
		c.Loan += amount
	}
	return command.NewCostWith(command.ExpenseOther, -amount)
}

// Loan repayment: p2 = 0 repays one step, p2 = 1 repays as much as cash
// allows. The repayment must be covered by cash on hand, which is its own
// error, not the generic funds failure.
func cmdDecreaseLoan(w *World, tile command.TileIndex, flags command.ExecFlag, p1, p2 uint32, p3 uint64, text string, aux command.Auxiliary) command.Cost {
	c := w.Company(w.currentCompany)
	if c == nil {
		return command.ErrorCost(command.ErrBadCompany)
	}
	if c.Loan == 0 {
		return command.ErrorCost(command.ErrNoLoan)
	}
	var amount command.Money
	switch p2 {
	case 0:
		amount = w.cfg.Economy.LoanStep
		if amount > c.Loan {
			amount = c.Loan
		}
	case 1:
		amount = c.Loan
		if amount > c.Money {
			amount = c.Money
		}
		amount -= amount % w.cfg.Economy.LoanStep
		if amount == 0 {
			amount = w.cfg.Economy.LoanStep
		}
		if amount > c.Loan {
			amount = c.Loan
		}
	default:
		return command.ErrorCost(command.ErrBadParameter)
	}
	if amount > c.Money {
		ec := command.ErrorCost(command.ErrLoanRepay)
		ec.UseTextRef("economy", []uint32{moneyReg(amount)})
		return ec
	}
	if flags&command.Exec != 0 {
		c.Loan -= amount
	}
	return command.NewCostWith(command.ExpenseOther, amount)
}

// Give money to another company: p1 = amount, p2 = destination company.
func cmdGiveMoney(w *World, tile command.TileIndex, flags command.ExecFlag, p1, p2 uint32, p3 uint64, text string, aux command.Auxiliary) command.Cost {
	if w.Company(w.currentCompany) == nil {
		return command.ErrorCost(command.ErrBadCompany)
	}
	dest := w.Company(command.CompanyID(p2))
	if dest == nil || dest.ID == w.currentCompany {
		return command.ErrorCost(command.ErrBadCompany)
	}
	amount := command.Money(p1)
	if amount <= 0 {
		return command.ErrorCost(command.ErrBadParameter)
	}
	if flags&command.Exec != 0 {
		dest.Money += amount
	}
	return command.NewCostWith(command.ExpenseOther, amount)
}

// Deity-only balance adjustment: p1 = signed delta, p2 = target company.
// Applied directly, bypassing the acting company's funds. The deity flag in
// the registry only grants the deity access; the handler must still reject
// every other actor.
func cmdChangeBankBalance(w *World, tile command.TileIndex, flags command.ExecFlag, p1, p2 uint32, p3 uint64, text string, aux command.Auxiliary) command.Cost {
	if w.currentCompany != command.CompanyDeity {
		return command.ErrorCost(command.ErrDeityOnly)
	}
	target := w.Company(command.CompanyID(p2))
	if target == nil {
		return command.ErrorCost(command.ErrBadCompany)
	}
	if flags&command.Exec != 0 {
		target.Money += command.Money(int32(p1))
	}
	return command.NewCost()
}

// Pause level change: p1 = the new level.
func cmdPause(w *World, tile command.TileIndex, flags command.ExecFlag, p1, p2 uint32, p3 uint64, text string, aux command.Auxiliary) command.Cost {
	if p1 > uint32(command.PauseAllActions) {
		return command.ErrorCost(command.ErrBadParameter)
	}
	if flags&command.Exec != 0 {
		w.pauseLevel = command.PauseLevel(p1)
	}
	return command.NewCost()
}

// Company control. The low byte of p1 is the action: 0 creates a company
// for the issuing client, 1 removes the company in bits 16-23 of p1. p2 is
// always the issuing client's ID, substituted server-side.
func cmdCompanyCtrl(w *World, tile command.TileIndex, flags command.ExecFlag, p1, p2 uint32, p3 uint64, text string, aux command.Auxiliary) command.Cost {
	switch p1 & 0xFF {
	case 0:
		free := false
		for _, c := range w.companies {
			if c == nil {
				free = true
				break
			}
		}
		if !free {
			return command.ErrorCost(command.ErrBadCompany)
		}
		if flags&command.Exec != 0 {
			c, _ := w.spawnCompany("", command.ClientID(p2))
			c.Name = fmt.Sprintf("Company %d", c.ID+1)
			res := command.NewCost()
			res.SetResultData(uint32(c.ID))
			return res
		}
		return command.NewCost()
	case 1:
		target := w.Company(command.CompanyID(p1 >> 16))
		if target == nil {
			return command.ErrorCost(command.ErrBadCompany)
		}
		if flags&command.Exec != 0 {
			w.removeCompany(target.ID)
		}
		return command.NewCost()
	default:
		return command.ErrorCost(command.ErrBadParameter)
	}
}

// removeCompany liquidates a company: its property is demolished through the
// normal handler, impersonating the company with the funds check waived, and
// the slot is freed.
func (w *World) removeCompany(id command.CompanyID) {
	prev := w.currentCompany
	w.currentCompany = id
	for i := range w.tiles {
		if w.tileOwner[i] == id {
			w.doCommand(command.CmdDemolish, command.TileIndex(i), command.Exec|command.Bankrupt, 0, 0, 0, "")
		}
	}
	w.currentCompany = prev
	w.companies[id] = nil
}

// Single-player money cheat: p1 = amount added to the balance.
func cmdMoneyCheat(w *World, tile command.TileIndex, flags command.ExecFlag, p1, p2 uint32, p3 uint64, text string, aux command.Auxiliary) command.Cost {
	if w.Company(w.currentCompany) == nil {
		return command.ErrorCost(command.ErrBadCompany)
	}
	return command.NewCostWith(command.ExpenseOther, -command.Money(p1))
}

// Desync check: flagged NoTest, the single pass records the current digest
// in the auxiliary log so post-mortem diffs have a reference point.
func cmdDesyncCheck(w *World, tile command.TileIndex, flags command.ExecFlag, p1, p2 uint32, p3 uint64, text string, aux command.Auxiliary) command.Cost {
	if flags&command.Exec != 0 {
		w.cmdLogAux.Append(command.LogEntry{
			Tick: w.tick.Load(),
			Cmd:  uint32(command.CmdDesyncCheck),
			OK:   true,
			Text: w.StateDigest(),
		})
	}
	return command.NewCost()
}
