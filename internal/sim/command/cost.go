package command

import (
	"fmt"
	"strings"
)

// Money is a signed amount in the smallest currency unit.
type Money = int64

// ExpenseType tags a cost for the company finance breakdown.
type ExpenseType uint8

const (
	ExpenseConstruction ExpenseType = iota
	ExpenseProperty
	ExpenseLoanInterest
	ExpenseOther
	ExpenseInvalid ExpenseType = 0xFF
)

const textRefRegisters = 16

type costFlags uint8

const (
	costSuccess costFlags = 1 << iota
	costInlineExtraCode
	costInlineTile
	costInlineResult
)

// costAux holds the rarely-used fields of a Cost. It is boxed so the common
// path (plain success or plain error) stays a small value.
type costAux struct {
	textRef     [textRefRegisters]uint32
	textRefSrc  string
	textRefSize int
	extraCode   string
	tile        TileIndex
	result      uint32
}

// Cost is the outcome of an attempted command: either a priced success or a
// failure carrying an error code. A value is exactly one of the two.
//
// One of the inline slots (result, extra code, tile) can be stored without
// allocating; setting a second distinct slot spills everything into the aux
// box. Copies made with Clone are deep.
type Cost struct {
	cost    Money
	expense ExpenseType
	flags   costFlags
	code    string

	inlExtraCode string
	inlTile      TileIndex
	inlResult    uint32

	aux *costAux
}

// NewCost returns a zero-cost success with no expense category.
func NewCost() Cost {
	return Cost{expense: ExpenseInvalid, flags: costSuccess}
}

// NewCostWith returns a success with the given expense category and initial cost.
func NewCostWith(expense ExpenseType, cost Money) Cost {
	return Cost{cost: cost, expense: expense, flags: costSuccess}
}

// ErrorCost returns a failed value carrying the given error code.
func ErrorCost(code string) Cost {
	if code == "" {
		panic("command: ErrorCost with empty code")
	}
	return Cost{expense: ExpenseInvalid, code: code}
}

// DualErrorCost returns a failed value with a primary and a secondary code.
func DualErrorCost(code, extra string) Cost {
	c := ErrorCost(code)
	c.flags |= costInlineExtraCode
	c.inlExtraCode = extra
	return c
}

// CmdError is the generic failure for handlers that have nothing more
// specific to report.
func CmdError() Cost {
	return ErrorCost(ErrFailed)
}

func (c *Cost) Succeeded() bool { return c.flags&costSuccess != 0 }
func (c *Cost) Failed() bool    { return c.flags&costSuccess == 0 }

// GetCost returns the accumulated cost. Meaningless on a failed value except
// for display purposes.
func (c *Cost) GetCost() Money { return c.cost }

func (c *Cost) ExpensesType() ExpenseType { return c.expense }

// AddCost adds to the running cost. Calling it on a failed value is a no-op
// on the failure state: the value stays failed.
func (c *Cost) AddCost(m Money) {
	c.cost += m
}

// Add folds another result into this one. Costs sum; if other failed and
// this had not already failed, this takes other's error (first failure
// wins). The expense category stays with the accumulator.
func (c *Cost) Add(other Cost) {
	c.cost += other.cost
	if other.Failed() && c.Succeeded() {
		c.flags &^= costSuccess | costInlineExtraCode
		c.code = other.code
		c.inlExtraCode = ""
		if ec := other.ExtraErrorCode(); ec != "" {
			c.flags |= costInlineExtraCode
			c.inlExtraCode = ec
		}
	}
}

// MultiplyCost scales the cost by an integer factor.
func (c *Cost) MultiplyCost(factor int) {
	c.cost *= Money(factor)
}

// MakeError forces the value into the failed state. The code must be
// non-empty; an empty code is a programming error.
func (c *Cost) MakeError(code string) {
	if code == "" {
		panic("command: MakeError with empty code")
	}
	c.flags &^= costSuccess | costInlineExtraCode
	c.code = code
	c.inlExtraCode = ""
	if c.aux != nil {
		c.aux.extraCode = ""
	}
}

// ErrorCode returns the primary error code, or "" when the value succeeded.
func (c *Cost) ErrorCode() string {
	if c.Succeeded() {
		return ""
	}
	return c.code
}

// ExtraErrorCode returns the secondary error code, or "" when absent or the
// value succeeded.
func (c *Cost) ExtraErrorCode() string {
	if c.Succeeded() {
		return ""
	}
	if c.flags&costInlineExtraCode != 0 {
		return c.inlExtraCode
	}
	if c.aux != nil {
		return c.aux.extraCode
	}
	return ""
}

// UseTextRef stores numeric substitution registers for the error message,
// together with a provenance tag naming who supplied them.
func (c *Cost) UseTextRef(src string, regs []uint32) {
	c.allocAux()
	n := len(regs)
	if n > textRefRegisters {
		n = textRefRegisters
	}
	copy(c.aux.textRef[:], regs[:n])
	c.aux.textRefSize = n
	c.aux.textRefSrc = src
}

func (c *Cost) TextRefSource() string {
	if c.aux == nil {
		return ""
	}
	return c.aux.textRefSrc
}

func (c *Cost) TextRef() []uint32 {
	if c.aux == nil {
		return nil
	}
	return c.aux.textRef[:c.aux.textRefSize]
}

// IsSuccessWithMessage reports whether the value succeeded but still carries
// an informational code.
func (c *Cost) IsSuccessWithMessage() bool {
	return c.Succeeded() && c.code != ""
}

// MakeSuccessWithMessage marks a failed value as succeeded while keeping its
// code as an informational message. The code must already be set.
func (c *Cost) MakeSuccessWithMessage() {
	if c.code == "" {
		panic("command: MakeSuccessWithMessage without a code")
	}
	c.flags |= costSuccess
}

// UnwrapSuccessWithMessage converts the substate back into its failed form
// so code expecting a plain pass/fail can inspect the message. Calling it on
// a value not in the substate is a programming error.
func (c *Cost) UnwrapSuccessWithMessage() Cost {
	if !c.IsSuccessWithMessage() {
		panic("command: UnwrapSuccessWithMessage on a plain value")
	}
	res := c.Clone()
	res.flags &^= costSuccess
	return res
}

// Message returns the informational code of a success-with-message value.
func (c *Cost) Message() string {
	if !c.IsSuccessWithMessage() {
		return ""
	}
	return c.code
}

func (c *Cost) Tile() TileIndex {
	if c.flags&costInlineTile != 0 {
		return c.inlTile
	}
	if c.aux != nil {
		return c.aux.tile
	}
	return InvalidTile
}

func (c *Cost) SetTile(tile TileIndex) {
	if tile == InvalidTile {
		return
	}
	if c.addInline(costInlineTile) {
		c.inlTile = tile
		return
	}
	c.allocAux()
	c.aux.tile = tile
}

func (c *Cost) ResultData() uint32 {
	if c.flags&costInlineResult != 0 {
		return c.inlResult
	}
	if c.aux != nil {
		return c.aux.result
	}
	return 0
}

func (c *Cost) SetResultData(result uint32) {
	if c.addInline(costInlineResult) {
		c.inlResult = result
		return
	}
	c.allocAux()
	c.aux.result = result
}

// addInline reports whether the given inline slot may be used: either it is
// already active, or no other inline slot is and no aux box exists yet.
func (c *Cost) addInline(flag costFlags) bool {
	if c.aux != nil {
		return false
	}
	if c.flags&flag != 0 {
		return true
	}
	if c.flags&(costInlineExtraCode|costInlineTile|costInlineResult) != 0 {
		return false
	}
	c.flags |= flag
	return true
}

// allocAux spills the inline slots into a freshly allocated aux box.
func (c *Cost) allocAux() {
	if c.aux != nil {
		return
	}
	aux := &costAux{tile: InvalidTile}
	if c.flags&costInlineExtraCode != 0 {
		aux.extraCode = c.inlExtraCode
	}
	if c.flags&costInlineTile != 0 {
		aux.tile = c.inlTile
	}
	if c.flags&costInlineResult != 0 {
		aux.result = c.inlResult
	}
	c.flags &^= costInlineExtraCode | costInlineTile | costInlineResult
	c.inlExtraCode = ""
	c.inlTile = 0
	c.inlResult = 0
	c.aux = aux
}

// Clone returns a deep copy; the aux box, when present, is duplicated.
func (c *Cost) Clone() Cost {
	res := *c
	if c.aux != nil {
		aux := *c.aux
		res.aux = &aux
	}
	return res
}

// Summary renders the result for diagnostics. Read-only.
func (c *Cost) Summary() string {
	if c.Succeeded() {
		if c.IsSuccessWithMessage() {
			return fmt.Sprintf("success (%s), cost %d", c.code, c.cost)
		}
		return fmt.Sprintf("success, cost %d", c.cost)
	}
	var b strings.Builder
	b.WriteString("failed: ")
	b.WriteString(c.code)
	if ec := c.ExtraErrorCode(); ec != "" {
		fmt.Fprintf(&b, " (%s)", ec)
	}
	if refs := c.TextRef(); len(refs) > 0 {
		b.WriteString(" [")
		for i, r := range refs {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%d", r)
		}
		b.WriteByte(']')
	}
	return b.String()
}
