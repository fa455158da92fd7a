package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Direction tells whether money entered or left the account.
type Direction string

const (
	// DirectionReceivable is money in.
	DirectionReceivable Direction = "receivable"
	// DirectionPayable is money out.
	DirectionPayable Direction = "payable"
)

// IsValid reports whether d is one of the known directions.
func (d Direction) IsValid() bool {
	return d == DirectionReceivable || d == DirectionPayable
}

// String implements fmt.Stringer.
func (d Direction) String() string {
	return string(d)
}

// ParseDirection parses a stored direction value.
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", fmt.Errorf("unknown direction %q", s)
	}
	return d, nil
}

// DirectionFromSign maps a signed amount to a direction. Zero counts as receivable.
func DirectionFromSign(amount decimal.Decimal) Direction {
	if amount.IsNegative() {
		return DirectionPayable
	}
	return DirectionReceivable
}

// Signed returns amount with the sign implied by d.
func (d Direction) Signed(amount decimal.Decimal) decimal.Decimal {
	if d == DirectionPayable {
		return amount.Abs().Neg()
	}
	return amount.Abs()
}
