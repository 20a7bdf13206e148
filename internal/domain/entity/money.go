package entity

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor currency units (cents).
type Money int64

const minorUnitExp = 2

var (
	ErrInvalidMoney  = errors.New("invalid money amount")
	ErrTooPrecise    = errors.New("amount has more than two decimal places")
	basisPointsScale = decimal.NewFromInt(10_000)
	maxMinorUnits    = decimal.NewFromInt(1 << 53)
)

func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidMoney
	}
	return MoneyFromDecimal(d)
}

func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	shifted := d.Shift(minorUnitExp)
	if !shifted.IsInteger() {
		return 0, ErrTooPrecise
	}
	if shifted.Abs().GreaterThan(maxMinorUnits) {
		return 0, ErrInvalidMoney
	}
	return Money(shifted.IntPart()), nil
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -minorUnitExp)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(minorUnitExp)
}

func (m Money) IsPositive() bool {
	return m > 0
}

// Fee returns the platform share of m for a rate in basis points, rounded
// half-to-even to the nearest cent.
func (m Money) Fee(bps int64) Money {
	if bps <= 0 {
		return 0
	}
	fee := decimal.NewFromInt(int64(m)).Mul(decimal.NewFromInt(bps)).Div(basisPointsScale).RoundBank(0)
	return Money(fee.IntPart())
}
