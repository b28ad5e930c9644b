package world

import (
	"io"
	"log"
	"math"
	"strings"
	"testing"

	"railtycoon.ai/internal/sim/command"
	"railtycoon.ai/internal/sim/tuning"
)

func newTestWorld(t *testing.T, mode command.NetMode) *World {
	t.Helper()
	cfg := tuning.Defaults()
	cfg.MapWidth = 16
	cfg.MapHeight = 16
	cfg.DigestEveryTicks = 4
	w, err := New(cfg, mode, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

// joinCompany runs the join path and steps until the company exists.
func joinCompany(t *testing.T, w *World, name string) command.ClientID {
	t.Helper()
	out := make(chan []byte, 256)
	resp := make(chan JoinResponse, 1)
	w.handleJoin(JoinRequest{Name: name, Role: "company", Out: out, Resp: resp})
	r := <-resp
	id := command.ClientID(r.Welcome.ClientID)
	w.StepOnce()
	w.StepOnce()
	if w.sessionCompany(id) == command.CompanySpectator {
		t.Fatalf("join %s: no company bound after two ticks", name)
	}
	return id
}

func joinSpectator(t *testing.T, w *World, name string) command.ClientID {
	t.Helper()
	out := make(chan []byte, 256)
	resp := make(chan JoinResponse, 1)
	w.handleJoin(JoinRequest{Name: name, Role: "spectator", Out: out, Resp: resp})
	r := <-resp
	return command.ClientID(r.Welcome.ClientID)
}

// run executes one packet directly through the pipeline, as the given
// company.
func run(w *World, company command.CompanyID, id command.ID, tile command.TileIndex, p1, p2 uint32, text string) command.Cost {
	p := &command.Packet{
		Company: company,
		Tile:    tile,
		P1:      p1,
		P2:      p2,
		Cmd:     uint32(id) | command.FlagNetworkCmd,
		Text:    text,
	}
	return w.executePacket(p)
}

func TestDispatchMapCoversTable(t *testing.T) {
	if err := validateCmdDispatch(); err != nil {
		t.Fatalf("validateCmdDispatch: %v", err)
	}
}

func TestJoinCreatesCompanyThroughPipeline(t *testing.T) {
	w := newTestWorld(t, command.NetServer)
	id := joinCompany(t, w, "alice")

	comp := w.sessionCompany(id)
	c := w.Company(comp)
	if c == nil {
		t.Fatalf("company %d not found", comp)
	}
	if c.Money != w.cfg.Economy.StartingMoney {
		t.Fatalf("starting money = %d, want %d", c.Money, w.cfg.Economy.StartingMoney)
	}
	// The creation must be visible in the command log.
	found := false
	for _, e := range w.cmdLog.Entries() {
		if e.Cmd == uint32(command.CmdCompanyCtrl) && e.OK {
			found = true
		}
	}
	if !found {
		t.Fatalf("company creation not logged")
	}
}

func TestBuildDepotChargesAndOccupies(t *testing.T) {
	w := newTestWorld(t, command.NetServer)
	id := joinCompany(t, w, "alice")
	comp := w.sessionCompany(id)
	before := w.Company(comp).Money

	res := run(w, comp, command.CmdBuildDepot, 5, 0, 0, "")
	if res.Failed() {
		t.Fatalf("build depot: %s", res.Summary())
	}
	if w.tiles[5] != TileDepot {
		t.Fatalf("tile 5 = %d, want depot", w.tiles[5])
	}
	if w.tileOwner[5] != comp {
		t.Fatalf("tile 5 owner = %d, want %d", w.tileOwner[5], comp)
	}
	if got := w.Company(comp).Money; got != before-w.cfg.Economy.CostDepot {
		t.Fatalf("money = %d, want %d", got, before-w.cfg.Economy.CostDepot)
	}
	if w.Company(comp).Expenses[command.ExpenseConstruction] != w.cfg.Economy.CostDepot {
		t.Fatalf("construction expenses not updated")
	}

	res = run(w, comp, command.CmdBuildDepot, 5, 0, 0, "")
	if res.ErrorCode() != command.ErrTileOccupied {
		t.Fatalf("rebuild on occupied tile: code = %q, want %q", res.ErrorCode(), command.ErrTileOccupied)
	}
}

func TestBuildStationMultiTile(t *testing.T) {
	w := newTestWorld(t, command.NetServer)
	id := joinCompany(t, w, "alice")
	comp := w.sessionCompany(id)

	p := &command.Packet{
		Company: comp,
		Tile:    10,
		Cmd:     uint32(command.CmdBuildStation) | command.FlagNetworkCmd,
		Aux:     &command.StationLayout{Offsets: []int32{0, 1, 2}},
	}
	res := w.executePacket(p)
	if res.Failed() {
		t.Fatalf("build station: %s", res.Summary())
	}
	if want := 3 * w.cfg.Economy.CostStationTile; res.GetCost() != want {
		t.Fatalf("cost = %d, want %d", res.GetCost(), want)
	}
	st := w.stations[uint16(res.ResultData())]
	if st == nil || len(st.Tiles) != 3 {
		t.Fatalf("station not created with 3 tiles")
	}
	for _, tl := range []command.TileIndex{10, 11, 12} {
		if w.tiles[tl] != TileStation {
			t.Fatalf("tile %d not a station tile", tl)
		}
	}
}

func TestBuildStationBlockedTileReportsDual(t *testing.T) {
	w := newTestWorld(t, command.NetServer)
	id := joinCompany(t, w, "alice")
	comp := w.sessionCompany(id)

	if res := run(w, comp, command.CmdBuildDepot, 11, 0, 0, ""); res.Failed() {
		t.Fatalf("setup depot: %s", res.Summary())
	}
	p := &command.Packet{
		Company: comp,
		Tile:    10,
		Cmd:     uint32(command.CmdBuildStation) | command.FlagNetworkCmd,
		Aux:     &command.StationLayout{Offsets: []int32{0, 1}},
	}
	res := w.executePacket(p)
	if res.ErrorCode() != command.ErrTileOccupied {
		t.Fatalf("code = %q, want %q", res.ErrorCode(), command.ErrTileOccupied)
	}
	if res.ExtraErrorCode() != command.ErrBadTile {
		t.Fatalf("extra code = %q, want %q", res.ExtraErrorCode(), command.ErrBadTile)
	}
	// A failed test pass must leave the world untouched.
	if w.tiles[10] != TileClear {
		t.Fatalf("tile 10 mutated by failed command")
	}
}

func TestDemolishOwnership(t *testing.T) {
	w := newTestWorld(t, command.NetServer)
	alice := w.sessionCompany(joinCompany(t, w, "alice"))
	bob := w.sessionCompany(joinCompany(t, w, "bob"))

	if res := run(w, alice, command.CmdBuildDepot, 7, 0, 0, ""); res.Failed() {
		t.Fatalf("setup: %s", res.Summary())
	}
	if res := run(w, bob, command.CmdDemolish, 7, 0, 0, ""); res.ErrorCode() != command.ErrNotOwner {
		t.Fatalf("foreign demolish: code = %q, want %q", res.ErrorCode(), command.ErrNotOwner)
	}
	if res := run(w, command.CompanyDeity, command.CmdDemolish, 7, 0, 0, ""); res.Failed() {
		t.Fatalf("deity demolish: %s", res.Summary())
	}
	if w.tiles[7] != TileClear {
		t.Fatalf("tile 7 not cleared")
	}
	if res := run(w, alice, command.CmdDemolish, 7, 0, 0, ""); res.ErrorCode() != command.ErrTileEmpty {
		t.Fatalf("demolish empty: code = %q, want %q", res.ErrorCode(), command.ErrTileEmpty)
	}
}

func TestRenameCompanyCollision(t *testing.T) {
	w := newTestWorld(t, command.NetServer)
	alice := w.sessionCompany(joinCompany(t, w, "alice"))
	bob := w.sessionCompany(joinCompany(t, w, "bob"))

	if res := run(w, alice, command.CmdRenameCompany, 0, 0, 0, "Northern Rail"); res.Failed() {
		t.Fatalf("rename: %s", res.Summary())
	}
	if res := run(w, bob, command.CmdRenameCompany, 0, 0, 0, "Northern Rail"); res.ErrorCode() != command.ErrNameInUse {
		t.Fatalf("duplicate name: code = %q, want %q", res.ErrorCode(), command.ErrNameInUse)
	}
	long := make([]byte, w.cfg.MaxNameChars+1)
	for i := range long {
		long[i] = 'x'
	}
	if res := run(w, bob, command.CmdRenameCompany, 0, 0, 0, string(long)); res.ErrorCode() != command.ErrNameTooLong {
		t.Fatalf("long name: code = %q, want %q", res.ErrorCode(), command.ErrNameTooLong)
	}
}

func TestSignLifecycle(t *testing.T) {
	w := newTestWorld(t, command.NetServer)
	alice := w.sessionCompany(joinCompany(t, w, "alice"))

	res := run(w, alice, command.CmdPlaceSign, 3, 0, 0, "depot here")
	if res.Failed() {
		t.Fatalf("place sign: %s", res.Summary())
	}
	signID := uint16(res.ResultData())
	if w.signs[signID] == nil {
		t.Fatalf("sign %d missing", signID)
	}

	if res := run(w, alice, command.CmdRenameSign, 0, uint32(signID), 0, "moved"); res.Failed() {
		t.Fatalf("rename sign: %s", res.Summary())
	}
	if w.signs[signID].Text != "moved" {
		t.Fatalf("sign text = %q", w.signs[signID].Text)
	}

	// Empty rename deletes.
	if res := run(w, alice, command.CmdRenameSign, 0, uint32(signID), 0, ""); res.Failed() {
		t.Fatalf("delete sign: %s", res.Summary())
	}
	if w.signs[signID] != nil {
		t.Fatalf("sign %d survived empty rename", signID)
	}
}

func TestLoanLimitAndRepayment(t *testing.T) {
	w := newTestWorld(t, command.NetServer)
	alice := w.sessionCompany(joinCompany(t, w, "alice"))
	c := w.Company(alice)

	// Borrow to the limit in one go.
	res := run(w, alice, command.CmdIncreaseLoan, 0, 0, 1, "")
	if res.Failed() {
		t.Fatalf("max loan: %s", res.Summary())
	}
	if c.Loan != w.cfg.Economy.MaxLoan {
		t.Fatalf("loan = %d, want %d", c.Loan, w.cfg.Economy.MaxLoan)
	}
	if c.Money != w.cfg.Economy.StartingMoney+w.cfg.Economy.MaxLoan {
		t.Fatalf("money = %d after max loan", c.Money)
	}

	// Another step over the limit fails and reports the limit.
	res = run(w, alice, command.CmdIncreaseLoan, 0, 0, 0, "")
	if res.ErrorCode() != command.ErrLoanLimit {
		t.Fatalf("over limit: code = %q, want %q", res.ErrorCode(), command.ErrLoanLimit)
	}
	if refs := res.TextRef(); len(refs) != 1 || refs[0] != uint32(w.cfg.Economy.MaxLoan) {
		t.Fatalf("limit not reported in text refs: %v", refs)
	}

	// Repay one step.
	res = run(w, alice, command.CmdDecreaseLoan, 0, 0, 0, "")
	if res.Failed() {
		t.Fatalf("repay: %s", res.Summary())
	}
	if c.Loan != w.cfg.Economy.MaxLoan-w.cfg.Economy.LoanStep {
		t.Fatalf("loan after repay = %d", c.Loan)
	}

	// Repayment must be covered by cash on hand.
	c.Money = w.cfg.Economy.LoanStep - 1
	res = run(w, alice, command.CmdDecreaseLoan, 0, 0, 0, "")
	if res.ErrorCode() != command.ErrLoanRepay {
		t.Fatalf("broke repay: code = %q, want %q", res.ErrorCode(), command.ErrLoanRepay)
	}
}

func TestGiveMoneyMovesFunds(t *testing.T) {
	w := newTestWorld(t, command.NetServer)
	alice := w.sessionCompany(joinCompany(t, w, "alice"))
	bob := w.sessionCompany(joinCompany(t, w, "bob"))

	res := run(w, alice, command.CmdGiveMoney, 0, 5000, uint32(bob), "")
	if res.Failed() {
		t.Fatalf("give money: %s", res.Summary())
	}
	if got := w.Company(bob).Money; got != w.cfg.Economy.StartingMoney+5000 {
		t.Fatalf("bob money = %d", got)
	}
	if got := w.Company(alice).Money; got != w.cfg.Economy.StartingMoney-5000 {
		t.Fatalf("alice money = %d", got)
	}

	if res := run(w, alice, command.CmdGiveMoney, 0, 5000, uint32(alice), ""); res.ErrorCode() != command.ErrBadCompany {
		t.Fatalf("self transfer: code = %q, want %q", res.ErrorCode(), command.ErrBadCompany)
	}
}

func TestChangeBankBalanceBypassesFunds(t *testing.T) {
	w := newTestWorld(t, command.NetServer)
	alice := w.sessionCompany(joinCompany(t, w, "alice"))
	c := w.Company(alice)
	c.Money = 0

	res := run(w, command.CompanyDeity, command.CmdChangeBankBalance, 0, 2500, uint32(alice), "")
	if res.Failed() {
		t.Fatalf("change balance: %s", res.Summary())
	}
	if c.Money != 2500 {
		t.Fatalf("money = %d, want 2500", c.Money)
	}
}

func TestCompanyRemovalClearsTiles(t *testing.T) {
	w := newTestWorld(t, command.NetServer)
	alice := w.sessionCompany(joinCompany(t, w, "alice"))
	if res := run(w, alice, command.CmdBuildDepot, 9, 0, 0, ""); res.Failed() {
		t.Fatalf("setup: %s", res.Summary())
	}

	res := run(w, command.CompanySpectator, command.CmdCompanyCtrl, 0, 1|uint32(alice)<<16, 0, "")
	if res.Failed() {
		t.Fatalf("remove company: %s", res.Summary())
	}
	if w.Company(alice) != nil {
		t.Fatalf("company %d survived removal", alice)
	}
	if w.tiles[9] != TileClear {
		t.Fatalf("tile 9 not reclaimed")
	}
}

func TestCompanyRemovalLiquidatesWithoutFunds(t *testing.T) {
	w := newTestWorld(t, command.NetServer)
	alice := w.sessionCompany(joinCompany(t, w, "alice"))
	if res := run(w, alice, command.CmdBuildDepot, 9, 0, 0, ""); res.Failed() {
		t.Fatalf("setup: %s", res.Summary())
	}
	// Drain the balance so demolition during liquidation could not be paid
	// for. Removal must still reclaim the tile.
	w.Company(alice).Money = 0

	res := run(w, command.CompanySpectator, command.CmdCompanyCtrl, 0, 1|uint32(alice)<<16, 0, "")
	if res.Failed() {
		t.Fatalf("remove company: %s", res.Summary())
	}
	if w.tiles[9] != TileClear {
		t.Fatalf("liquidation skipped the unaffordable demolition")
	}
	if w.Company(alice) != nil {
		t.Fatalf("company %d survived removal", alice)
	}
}

func TestChangeBankBalanceRejectsNonDeity(t *testing.T) {
	w := newTestWorld(t, command.NetServer)
	alice := w.sessionCompany(joinCompany(t, w, "alice"))
	before := w.Company(alice).Money

	res := run(w, alice, command.CmdChangeBankBalance, 0, 1000000, uint32(alice), "")
	if res.Succeeded() {
		t.Fatalf("company actor adjusted a bank balance")
	}
	if got := res.ErrorCode(); got != command.ErrDeityOnly {
		t.Fatalf("code = %q, want %q", got, command.ErrDeityOnly)
	}
	if got := w.Company(alice).Money; got != before {
		t.Fatalf("balance moved on a rejected command: %d", got)
	}
}

func TestLoanIncreaseSucceedsWithEmptyCash(t *testing.T) {
	w := newTestWorld(t, command.NetServer)
	alice := w.sessionCompany(joinCompany(t, w, "alice"))
	c := w.Company(alice)
	c.Money = 0

	// Borrowing is income; the funds check only applies to positive costs,
	// so an empty balance must not block it.
	res := run(w, alice, command.CmdIncreaseLoan, 0, 0, 0, "")
	if res.Failed() {
		t.Fatalf("loan increase with no cash: %s", res.Summary())
	}
	if c.Loan != w.cfg.Economy.LoanStep {
		t.Fatalf("loan = %d, want %d", c.Loan, w.cfg.Economy.LoanStep)
	}
	if c.Money != w.cfg.Economy.LoanStep {
		t.Fatalf("money = %d, want the borrowed %d", c.Money, w.cfg.Economy.LoanStep)
	}
}

func TestMoneyRegisterSaturates(t *testing.T) {
	if got := moneyReg(2500); got != 2500 {
		t.Fatalf("moneyReg(2500) = %d", got)
	}
	if got := moneyReg(-5); got != 0 {
		t.Fatalf("negative amount must clamp to zero, got %d", got)
	}
	if got := moneyReg(1 << 40); got != math.MaxUint32 {
		t.Fatalf("oversized amount must saturate, got %d", got)
	}
}

func TestDiagnosticDumpCoversWholeRing(t *testing.T) {
	w := newTestWorld(t, command.NetServer)
	alice := w.sessionCompany(joinCompany(t, w, "alice"))
	for tile := command.TileIndex(1); tile <= 11; tile++ {
		if res := run(w, alice, command.CmdBuildDepot, tile, 0, 0, ""); res.Failed() {
			t.Fatalf("setup tile %d: %s", tile, res.Summary())
		}
	}

	resp := make(chan Diagnostics, 1)
	w.handleDiagnostic(diagnosticReq{Resp: resp})
	d := <-resp
	if lines := strings.Count(d.LogDump, "\n"); lines != w.cmdLog.Len() {
		t.Fatalf("dump has %d lines, ring holds %d entries", lines, w.cmdLog.Len())
	}
}
