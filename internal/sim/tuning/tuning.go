package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz int   `yaml:"tick_rate_hz"`
	MapWidth   int   `yaml:"map_width"`
	MapHeight  int   `yaml:"map_height"`
	Seed       int64 `yaml:"seed"`

	Economy Economy `yaml:"economy"`

	MaxNameChars  int `yaml:"max_name_chars"`
	MaxCmdTextLen int `yaml:"max_cmd_text_len"`

	CommandsPerTick       int `yaml:"commands_per_tick"`
	CommandsPerTickServer int `yaml:"commands_per_tick_server"`
	CommandsQueuedMax     int `yaml:"commands_queued_max"`

	CmdLogCapacity    int `yaml:"cmd_log_capacity"`
	CmdLogAuxCapacity int `yaml:"cmd_log_aux_capacity"`

	DigestEveryTicks int `yaml:"digest_every_ticks"`
}

type Economy struct {
	StartingMoney int64 `yaml:"starting_money"`
	MaxLoan       int64 `yaml:"max_loan"`
	LoanStep      int64 `yaml:"loan_step"`

	CostDepot       int64 `yaml:"cost_depot"`
	CostStationTile int64 `yaml:"cost_station_tile"`
	CostDemolish    int64 `yaml:"cost_demolish"`
	CostSign        int64 `yaml:"cost_sign"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.fillDefaults()
	return t, nil
}

func Defaults() Tuning {
	var t Tuning
	t.fillDefaults()
	return t
}

func (t *Tuning) fillDefaults() {
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = "1.0"
	}
	if t.TickRateHz <= 0 {
		t.TickRateHz = 10
	}
	if t.MapWidth <= 0 {
		t.MapWidth = 64
	}
	if t.MapHeight <= 0 {
		t.MapHeight = 64
	}
	if t.Seed == 0 {
		t.Seed = 1337
	}
	if t.Economy.StartingMoney == 0 {
		t.Economy.StartingMoney = 100000
	}
	if t.Economy.MaxLoan == 0 {
		t.Economy.MaxLoan = 300000
	}
	if t.Economy.LoanStep == 0 {
		t.Economy.LoanStep = 10000
	}
	if t.Economy.CostDepot == 0 {
		t.Economy.CostDepot = 1500
	}
	if t.Economy.CostStationTile == 0 {
		t.Economy.CostStationTile = 800
	}
	if t.Economy.CostDemolish == 0 {
		t.Economy.CostDemolish = 200
	}
	if t.Economy.CostSign == 0 {
		t.Economy.CostSign = 50
	}
	if t.MaxNameChars <= 0 {
		t.MaxNameChars = 31
	}
	if t.MaxCmdTextLen <= 0 {
		t.MaxCmdTextLen = 512
	}
	if t.CommandsPerTick <= 0 {
		t.CommandsPerTick = 8
	}
	if t.CommandsPerTickServer <= 0 {
		t.CommandsPerTickServer = 16
	}
	if t.CommandsQueuedMax <= 0 {
		t.CommandsQueuedMax = 64
	}
	if t.CmdLogCapacity <= 0 {
		t.CmdLogCapacity = 128
	}
	if t.CmdLogAuxCapacity <= 0 {
		t.CmdLogAuxCapacity = 32
	}
	if t.DigestEveryTicks <= 0 {
		t.DigestEveryTicks = 16
	}
}
