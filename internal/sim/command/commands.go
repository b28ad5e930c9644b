package command

// ID indexes the command table. The space is dense from 0 and bounded by
// CmdEnd, which must fit the low byte of the wire word.
type ID uint8

const (
	CmdBuildDepot ID = iota
	CmdBuildStation
	CmdDemolish
	CmdRenameCompany
	CmdRenameStation
	CmdPlaceSign
	CmdRenameSign
	CmdIncreaseLoan
	CmdDecreaseLoan
	CmdGiveMoney
	CmdChangeBankBalance
	CmdPause
	CmdCompanyCtrl
	CmdMoneyCheat
	CmdDesyncCheck

	CmdEnd
)

// Exec flags passed to a handler. Exec set means "mutate"; without it the
// handler must price and validate only.
type ExecFlag uint16

const (
	ExecNone ExecFlag = 0
	Exec     ExecFlag = 0x01
	// Bankrupt skips the funds check: administrative money movement must go
	// through even when the balance cannot cover it.
	Bankrupt ExecFlag = 0x02
)

// Flags describe who may issue a command and how the pipeline treats it.
type Flags uint16

const (
	// FlagServer: only the server may initiate.
	FlagServer Flags = 1 << iota
	// FlagSpectator: spectators may initiate.
	FlagSpectator
	// FlagOffline: single-player only, rejected in a networked session.
	FlagOffline
	// FlagDeity: the deity actor may initiate.
	FlagDeity
	// FlagClientID: P2 is replaced server-side with the sending client's ID.
	FlagClientID
	// FlagNoTest: test and execute are defined to be identical; the pipeline
	// runs the execute pass only, to avoid double side effects.
	FlagNoTest
	// FlagNoEstimate: the command is never run in estimate-only mode.
	FlagNoEstimate
	// FlagStrCtrl: the text payload may contain control sequences.
	FlagStrCtrl
	// FlagLogAux: record in the auxiliary command log instead of the main one.
	FlagLogAux
	// FlagServerNS: server only, and not while spectating.
	FlagServerNS
)

// Type is the coarse category used for pause-state gating.
type Type uint8

const (
	TypeLandscapeConstruction Type = iota
	TypeVehicleConstruction
	TypeMoneyManagement
	TypeVehicleManagement
	TypeRouteManagement
	TypeOtherManagement
	TypeCompanySetting
	TypeServerSetting
	TypeCheat

	TypeEnd
)

// Desc is one command table entry: declarative metadata only. The handler
// lives in the dispatch map of the simulation package, which is validated
// against this table at startup.
type Desc struct {
	Name  string
	Flags Flags
	Type  Type
}

// The command table. Indexed by ID, immutable after process start.
var table = [CmdEnd]Desc{
	CmdBuildDepot:        {"CmdBuildDepot", 0, TypeLandscapeConstruction},
	CmdBuildStation:      {"CmdBuildStation", 0, TypeLandscapeConstruction},
	CmdDemolish:          {"CmdDemolish", 0, TypeLandscapeConstruction},
	CmdRenameCompany:     {"CmdRenameCompany", 0, TypeOtherManagement},
	CmdRenameStation:     {"CmdRenameStation", 0, TypeOtherManagement},
	CmdPlaceSign:         {"CmdPlaceSign", FlagDeity, TypeOtherManagement},
	CmdRenameSign:        {"CmdRenameSign", FlagDeity, TypeOtherManagement},
	CmdIncreaseLoan:      {"CmdIncreaseLoan", 0, TypeMoneyManagement},
	CmdDecreaseLoan:      {"CmdDecreaseLoan", 0, TypeMoneyManagement},
	CmdGiveMoney:         {"CmdGiveMoney", 0, TypeMoneyManagement},
	CmdChangeBankBalance: {"CmdChangeBankBalance", FlagDeity | FlagNoEstimate, TypeMoneyManagement},
	CmdPause:             {"CmdPause", FlagServer | FlagNoEstimate, TypeServerSetting},
	CmdCompanyCtrl:       {"CmdCompanyCtrl", FlagSpectator | FlagClientID | FlagNoEstimate, TypeServerSetting},
	CmdMoneyCheat:        {"CmdMoneyCheat", FlagOffline, TypeCheat},
	CmdDesyncCheck:       {"CmdDesyncCheck", FlagServerNS | FlagNoTest | FlagLogAux, TypeServerSetting},
}

// IsValid reports whether cmd (already masked to its ID byte) is registered.
func IsValid(cmd uint32) bool {
	return cmd < uint32(CmdEnd)
}

func GetFlags(id ID) Flags {
	return table[id].Flags
}

func GetName(id ID) string {
	if id >= CmdEnd {
		return "(invalid)"
	}
	return table[id].Name
}

func GetType(id ID) Type {
	return table[id].Type
}

// Names returns the registered command names, indexed by ID. Used to keep
// the dispatch map of the executing package in lockstep with this table.
func Names() []string {
	names := make([]string, CmdEnd)
	for i := range table {
		names[i] = table[i].Name
	}
	return names
}

// Minimum pause level at which each command type may still run. Server
// settings always run; money management runs unless all actions are blocked.
var typePauseLevel = [TypeEnd]PauseLevel{
	TypeLandscapeConstruction: PauseAllActions,
	TypeVehicleConstruction:   PauseNoLandscaping,
	TypeMoneyManagement:       PauseNoConstruction,
	TypeVehicleManagement:     PauseNoLandscaping,
	TypeRouteManagement:       PauseNoLandscaping,
	TypeOtherManagement:       PauseNoLandscaping,
	TypeCompanySetting:        PauseNoLandscaping,
	TypeServerSetting:         PauseNoActions,
	TypeCheat:                 PauseNoLandscaping,
}

// AllowedWhilePaused reports whether the command may run at the given pause
// level.
func AllowedWhilePaused(id ID, level PauseLevel) bool {
	return typePauseLevel[table[id].Type] <= level
}

// Allowed is the pure capability check: may a command be initiated locally
// by the given actor under the given session conditions. It returns "" when
// permitted, or the specific rejection code otherwise, so UI affordances can
// be greyed out speculatively with the right message.
func Allowed(id ID, company CompanyID, mode NetMode, isServer bool, level PauseLevel) string {
	if id >= CmdEnd {
		return ErrUnknownCommand
	}
	flags := table[id].Flags

	if flags&FlagOffline != 0 && mode != NetSingle {
		return ErrOfflineOnly
	}
	if flags&(FlagServer|FlagServerNS) != 0 && mode == NetServer && !isServer {
		return ErrServerOnly
	}
	if company == CompanySpectator {
		allowed := flags&FlagSpectator != 0
		if flags&FlagServerNS != 0 {
			allowed = false
		}
		if !allowed {
			return ErrNoSpectator
		}
	}
	if company == CompanyDeity && flags&FlagDeity == 0 {
		return ErrNoDeity
	}
	if !AllowedWhilePaused(id, level) {
		return ErrPaused
	}
	return ""
}
