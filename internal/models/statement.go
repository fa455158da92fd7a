package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PlaceholderDescription is used when a source row carries no description.
const PlaceholderDescription = "Sem descrição"

// StatementTransaction is the normalized output of every statement parser.
// Amount is a magnitude: the sign of the movement lives in Direction.
type StatementTransaction struct {
	Date        string           `json:"date"`
	Description string           `json:"description"`
	Amount      decimal.Decimal  `json:"amount"`
	Direction   Direction        `json:"direction"`
	Balance     *decimal.Decimal `json:"balance,omitempty"`
	DocNo       string           `json:"docNo,omitempty"`
	Category    string           `json:"category,omitempty"`
}

// NewStatementTransaction builds a transaction from a signed amount, taking the
// direction from its sign.
func NewStatementTransaction(date, description string, signed decimal.Decimal) StatementTransaction {
	return StatementTransaction{
		Date:        date,
		Description: CleanDescription(description),
		Amount:      signed.Abs(),
		Direction:   DirectionFromSign(signed),
	}
}

// Validate checks the invariants every parser must uphold.
func (t StatementTransaction) Validate() error {
	if t.Date == "" {
		return errors.New("date is empty")
	}
	if t.Amount.IsNegative() {
		return fmt.Errorf("amount %s is negative", t.Amount)
	}
	if !t.Direction.IsValid() {
		return fmt.Errorf("invalid direction %q", t.Direction)
	}
	return nil
}

// CleanDescription collapses runs of whitespace and substitutes the placeholder for
// empty text.
func CleanDescription(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return PlaceholderDescription
	}
	return s
}
