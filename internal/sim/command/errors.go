package command

// Stable result codes carried by failed Cost values. Dispatch-level
// rejections get their own codes so callers can tell them apart for UI
// messaging; handler validation codes follow.
const (
	// Rejection before dispatch.
	ErrUnknownCommand = "E_CMD_UNKNOWN"
	ErrServerOnly     = "E_CMD_SERVER_ONLY"
	ErrNoSpectator    = "E_CMD_NO_SPECTATOR"
	ErrPaused         = "E_CMD_PAUSED"
	ErrOfflineOnly    = "E_CMD_OFFLINE_ONLY"
	ErrNoDeity        = "E_CMD_NO_DEITY"
	ErrDeityOnly      = "E_CMD_DEITY_ONLY"

	// Funding, distinguished from generic validation so a UI can offer a
	// loan-raise affordance.
	ErrNotEnoughCash = "E_NOT_ENOUGH_CASH"

	// Handler validation.
	ErrFailed        = "E_CMD_FAILED"
	ErrNameTooLong   = "E_NAME_TOO_LONG"
	ErrNameInUse     = "E_NAME_IN_USE"
	ErrBadTile       = "E_BAD_TILE"
	ErrTileOccupied  = "E_TILE_OCCUPIED"
	ErrTileEmpty     = "E_TILE_EMPTY"
	ErrNotOwner      = "E_NOT_OWNER"
	ErrBadCompany    = "E_BAD_COMPANY"
	ErrLoanLimit     = "E_LOAN_LIMIT"
	ErrNoLoan        = "E_NO_LOAN"
	ErrLoanRepay     = "E_LOAN_REPAY_CASH"
	ErrBadParameter  = "E_BAD_PARAMETER"
	ErrBadAuxData    = "E_BAD_AUX_DATA"
)

var knownCodes = map[string]struct{}{
	ErrUnknownCommand: {},
	ErrServerOnly:     {},
	ErrNoSpectator:    {},
	ErrPaused:         {},
	ErrOfflineOnly:    {},
	ErrNoDeity:        {},
	ErrDeityOnly:      {},
	ErrNotEnoughCash:  {},
	ErrFailed:         {},
	ErrNameTooLong:    {},
	ErrNameInUse:      {},
	ErrBadTile:        {},
	ErrTileOccupied:   {},
	ErrTileEmpty:      {},
	ErrNotOwner:       {},
	ErrBadCompany:     {},
	ErrLoanLimit:      {},
	ErrNoLoan:         {},
	ErrLoanRepay:      {},
	ErrBadParameter:   {},
	ErrBadAuxData:     {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
