package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidOrder        = errors.New("invalid order")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSideConflict        = errors.New("bid and ask at the same price")
	ErrNotFound            = errors.New("no order rests at price")
	ErrInsufficientAmount  = errors.New("resting amount too small")
	ErrInsufficientCount   = errors.New("resting count too small")
	ErrCountMismatch       = errors.New("amount consumed but count left over")
)

var violations = []error{
	ErrInvalidOrder,
	ErrInsufficientBalance,
	ErrSideConflict,
	ErrNotFound,
	ErrInsufficientAmount,
	ErrInsufficientCount,
	ErrCountMismatch,
}

// IsViolation reports whether err comes from a broken ledger invariant. Such errors mean the
// caller's bookkeeping is wrong, not that the market misbehaved.
func IsViolation(err error) bool {
	for _, target := range violations {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

type InsufficientBalanceError struct {
	Asset string
	Need  decimal.Decimal
	Have  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("not enough %s balance: need %s, have %s", e.Asset, e.Need, e.Have)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}
