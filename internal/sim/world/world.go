package world

import (
	"fmt"
	"log"
	"math"
	"os"
	"sync/atomic"

	"railtycoon.ai/internal/sim/command"
	"railtycoon.ai/internal/sim/encoding"
	"railtycoon.ai/internal/sim/tuning"
)

// Tile kinds stored in the map grid.
const (
	TileClear uint16 = iota
	TileDepot
	TileStation
	TileSign
)

type Station struct {
	ID    uint16
	Name  string
	Owner command.CompanyID
	Tiles []command.TileIndex
}

type Sign struct {
	ID    uint16
	Tile  command.TileIndex
	Text  string
	Owner command.CompanyID
}

type Company struct {
	ID     command.CompanyID
	Name   string
	Colour uint8
	Money  command.Money
	Loan   command.Money
	// Expense breakdown by category, for the finance view.
	Expenses [4]command.Money
	Client   command.ClientID
}

// World is the single shared mutable resource. All mutation goes through the
// command executor, and the executor only ever runs inside the world
// goroutine; "concurrency" is temporal ordering across participants, never
// parallel execution.
type World struct {
	cfg    tuning.Tuning
	mode   command.NetMode
	logger *log.Logger

	tick atomic.Uint64

	tiles     []uint16
	tileOwner []command.CompanyID
	tileStn   []uint16

	companies [command.MaxCompanies]*Company
	stations  map[uint16]*Station
	signs     map[uint16]*Sign

	nextStation uint16
	nextSign    uint16

	pauseLevel command.PauseLevel
	rng        uint64

	// Acting context of the command currently being executed.
	currentCompany command.CompanyID
	currentClient  command.ClientID

	cmdLog    *command.Log
	cmdLogAux *command.Log

	// waitQueue holds the server's own pending commands; remote commands
	// wait in their session's incoming queue until distribution.
	waitQueue command.Queue
	execQueue command.Queue

	sessions map[command.ClientID]*session
	nextID   uint32

	costMismatches uint64

	journal JournalSink

	// Loop channels.
	stop       chan struct{}
	join       chan JoinRequest
	leave      chan command.ClientID
	inbox      chan CommandEnvelope
	estimate   chan EstimateRequest
	diagnostic chan diagnosticReq
}

func New(cfg tuning.Tuning, mode command.NetMode, logger *log.Logger) (*World, error) {
	if cfg.MapWidth <= 0 || cfg.MapHeight <= 0 {
		return nil, fmt.Errorf("world: bad map size %dx%d", cfg.MapWidth, cfg.MapHeight)
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds)
	}
	n := cfg.MapWidth * cfg.MapHeight
	w := &World{
		cfg:    cfg,
		mode:   mode,
		logger: logger,

		tiles:     make([]uint16, n),
		tileOwner: make([]command.CompanyID, n),
		tileStn:   make([]uint16, n),

		stations: make(map[uint16]*Station),
		signs:    make(map[uint16]*Sign),

		pauseLevel: command.PauseAllActions,
		rng:        uint64(cfg.Seed)*2654435761 + 1,

		cmdLog:    command.NewLog(cfg.CmdLogCapacity),
		cmdLogAux: command.NewLog(cfg.CmdLogAuxCapacity),

		sessions: make(map[command.ClientID]*session),

		stop:       make(chan struct{}),
		join:       make(chan JoinRequest, 16),
		leave:      make(chan command.ClientID, 16),
		inbox:      make(chan CommandEnvelope, 256),
		estimate:   make(chan EstimateRequest, 64),
		diagnostic: make(chan diagnosticReq, 4),
	}
	for i := range w.tileOwner {
		w.tileOwner[i] = command.CompanySpectator
	}
	w.currentCompany = command.CompanySpectator
	if err := validateCmdDispatch(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *World) Tick() uint64 { return w.tick.Load() }

func (w *World) PauseLevel() command.PauseLevel { return w.pauseLevel }

// SetJournal attaches the persistence sink. Must be called before Run.
func (w *World) SetJournal(j JournalSink) { w.journal = j }

func (w *World) encodeMap() string {
	return encoding.EncodeRLE(w.tiles)
}

func (w *World) tileIndex(x, y int) command.TileIndex {
	return command.TileIndex(y*w.cfg.MapWidth + x)
}

func (w *World) tileValid(t command.TileIndex) bool {
	return int(t) < len(w.tiles)
}

// nextRand is the deterministic sim PRNG (xorshift64). Never seed it from
// the wall clock: it is part of the replicated state.
func (w *World) nextRand() uint64 {
	x := w.rng
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	w.rng = x
	return x
}

// spawnCompany allocates the first free company slot.
func (w *World) spawnCompany(name string, client command.ClientID) (*Company, bool) {
	for i := range w.companies {
		if w.companies[i] != nil {
			continue
		}
		c := &Company{
			ID:     command.CompanyID(i),
			Name:   name,
			Colour: uint8(w.nextRand() % 16),
			Money:  w.cfg.Economy.StartingMoney,
			Loan:   0,
			Client: client,
		}
		w.companies[i] = c
		return c, true
	}
	return nil, false
}

// Company returns the company for a valid ID, or nil.
func (w *World) Company(id command.CompanyID) *Company {
	if !id.IsValid() {
		return nil
	}
	return w.companies[id]
}

// availableMoney returns what the acting company may spend. Deity and the
// server act without a balance.
func (w *World) availableMoney() (command.Money, bool) {
	c := w.Company(w.currentCompany)
	if c == nil {
		return 0, false
	}
	return c.Money, true
}

// moneyReg fits a money amount into a 32-bit text-ref register. Registers
// are display-only, so amounts beyond the register range saturate instead
// of wrapping.
func moneyReg(m command.Money) uint32 {
	if m < 0 {
		return 0
	}
	if m > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(m)
}

// checkCompanyHasMoney converts a successful priced result into a
// not-enough-cash failure when the acting company cannot cover it. The
// computed cost is preserved for display, on the text-ref register.
func (w *World) checkCompanyHasMoney(cost *command.Cost) bool {
	if cost.GetCost() <= 0 {
		return true
	}
	money, ok := w.availableMoney()
	if !ok {
		return true
	}
	if cost.GetCost() > money {
		cost.UseTextRef("economy", []uint32{moneyReg(cost.GetCost())})
		cost.MakeError(command.ErrNotEnoughCash)
		return false
	}
	return true
}

// subtractMoney applies a priced result to the acting company's balance and
// expense breakdown. Negative costs are income (loans, cheats).
func (w *World) subtractMoney(cost *command.Cost) {
	c := w.Company(w.currentCompany)
	if c == nil || cost.GetCost() == 0 {
		return
	}
	c.Money -= cost.GetCost()
	if et := cost.ExpensesType(); et != command.ExpenseInvalid {
		c.Expenses[et] += cost.GetCost()
	}
}
