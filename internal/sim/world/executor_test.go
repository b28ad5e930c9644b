package world

import (
	"testing"

	"railtycoon.ai/internal/sim/command"
)

func TestFailedTestPassLeavesNoTrace(t *testing.T) {
	w := newTestWorld(t, command.NetServer)
	alice := w.sessionCompany(joinCompany(t, w, "alice"))
	logLen := w.cmdLog.Len()

	res := run(w, alice, command.CmdBuildDepot, command.TileIndex(len(w.tiles)), 0, 0, "")
	if res.ErrorCode() != command.ErrBadTile {
		t.Fatalf("code = %q, want %q", res.ErrorCode(), command.ErrBadTile)
	}
	// The failure is logged, the world is not mutated.
	if w.cmdLog.Len() != logLen+1 {
		t.Fatalf("log len = %d, want %d", w.cmdLog.Len(), logLen+1)
	}
	if got := w.Company(alice).Money; got != w.cfg.Economy.StartingMoney {
		t.Fatalf("money changed on failed command: %d", got)
	}
}

func TestFundsCheckConvertsSuccessToError(t *testing.T) {
	w := newTestWorld(t, command.NetServer)
	alice := w.sessionCompany(joinCompany(t, w, "alice"))
	w.Company(alice).Money = w.cfg.Economy.CostDepot - 1

	res := run(w, alice, command.CmdBuildDepot, 4, 0, 0, "")
	if res.ErrorCode() != command.ErrNotEnoughCash {
		t.Fatalf("code = %q, want %q", res.ErrorCode(), command.ErrNotEnoughCash)
	}
	// The priced amount survives the conversion for display.
	if refs := res.TextRef(); len(refs) != 1 || refs[0] != uint32(w.cfg.Economy.CostDepot) {
		t.Fatalf("cost not preserved in text refs: %v", refs)
	}
	if w.tiles[4] != TileClear {
		t.Fatalf("tile mutated despite failed funds check")
	}
}

func TestDeityIsNotFundsChecked(t *testing.T) {
	w := newTestWorld(t, command.NetServer)

	res := run(w, command.CompanyDeity, command.CmdPlaceSign, 2, 0, 0, "marker")
	if res.Failed() {
		t.Fatalf("deity sign: %s", res.Summary())
	}
}

func TestEstimateDoesNotCommit(t *testing.T) {
	w := newTestWorld(t, command.NetServer)
	alice := w.sessionCompany(joinCompany(t, w, "alice"))
	logLen := w.cmdLog.Len()

	p := &command.Packet{
		Company: alice,
		Tile:    6,
		Cmd:     uint32(command.CmdBuildDepot),
	}
	res := w.estimatePacket(p)
	if res.Failed() {
		t.Fatalf("estimate: %s", res.Summary())
	}
	if res.GetCost() != w.cfg.Economy.CostDepot {
		t.Fatalf("estimate cost = %d, want %d", res.GetCost(), w.cfg.Economy.CostDepot)
	}
	if w.tiles[6] != TileClear {
		t.Fatalf("estimate mutated the world")
	}
	if got := w.Company(alice).Money; got != w.cfg.Economy.StartingMoney {
		t.Fatalf("estimate charged money: %d", got)
	}
	if w.cmdLog.Len() != logLen {
		t.Fatalf("estimate appeared in the command log")
	}
}

func TestEstimateRefusedForNoEstimateCommands(t *testing.T) {
	w := newTestWorld(t, command.NetServer)

	p := &command.Packet{
		Company: command.CompanySpectator,
		Cmd:     uint32(command.CmdCompanyCtrl),
	}
	res := w.estimatePacket(p)
	if res.ErrorCode() != command.ErrFailed {
		t.Fatalf("code = %q, want %q", res.ErrorCode(), command.ErrFailed)
	}
}

func TestNoTestCommandRunsSinglePass(t *testing.T) {
	w := newTestWorld(t, command.NetServer)

	auxLen := w.cmdLogAux.Len()
	res := run(w, command.CompanySpectator, command.CmdDesyncCheck, 0, 0, 0, "")
	if res.Failed() {
		t.Fatalf("desync check: %s", res.Summary())
	}
	// One digest record from the handler plus the pipeline's own aux log
	// entry. A second handler invocation would have written two digests.
	if got := w.cmdLogAux.Len(); got != auxLen+2 {
		t.Fatalf("aux log len = %d, want %d", got, auxLen+2)
	}
	if w.cmdLog.Len() != 0 {
		t.Fatalf("aux-flagged command leaked into the primary log")
	}
}

func TestExecuteCostMatchesTestCost(t *testing.T) {
	w := newTestWorld(t, command.NetServer)
	alice := w.sessionCompany(joinCompany(t, w, "alice"))

	cases := []struct {
		name string
		p    command.Packet
	}{
		{"depot", command.Packet{Cmd: uint32(command.CmdBuildDepot), Tile: 20}},
		{"station", command.Packet{Cmd: uint32(command.CmdBuildStation), Tile: 40, Aux: &command.StationLayout{Offsets: []int32{0, 1}}}},
		{"sign", command.Packet{Cmd: uint32(command.CmdPlaceSign), Tile: 60, Text: "s"}},
		{"loan", command.Packet{Cmd: uint32(command.CmdIncreaseLoan), P2: 0}},
	}
	for _, tc := range cases {
		p := tc.p
		p.Company = alice
		cp := p.Clone()
		est := w.estimatePacket(&cp)
		exec := w.executePacket(&p)
		if est.Failed() || exec.Failed() {
			t.Fatalf("%s: est=%s exec=%s", tc.name, est.Summary(), exec.Summary())
		}
		if est.GetCost() != exec.GetCost() {
			t.Fatalf("%s: estimate cost %d != executed cost %d", tc.name, est.GetCost(), exec.GetCost())
		}
	}
	if w.costMismatches != 0 {
		t.Fatalf("pipeline counted %d cost mismatches", w.costMismatches)
	}
}

func TestLogRingEvictsThroughPipeline(t *testing.T) {
	w := newTestWorld(t, command.NetServer)
	w.cmdLog = command.NewLog(4)
	alice := w.sessionCompany(joinCompany(t, w, "alice"))

	for i := 0; i < 10; i++ {
		run(w, alice, command.CmdPlaceSign, command.TileIndex(i), 0, 0, "s")
	}
	entries := w.cmdLog.Entries()
	if len(entries) != 4 {
		t.Fatalf("log len = %d, want 4", len(entries))
	}
	// Most recent four survive, oldest first.
	for i, e := range entries {
		if want := command.TileIndex(6 + i); e.Tile != want {
			t.Fatalf("entry %d tile = %d, want %d", i, e.Tile, want)
		}
	}
}
