package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNewStatementTransaction(t *testing.T) {
	tx := NewStatementTransaction("2024-03-10", "  PIX   recebido \t João ", decimal.RequireFromString("-45.00"))

	assert.Equal(t, "2024-03-10", tx.Date)
	assert.Equal(t, "PIX recebido João", tx.Description)
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(45)))
	assert.Equal(t, DirectionPayable, tx.Direction)
	assert.NoError(t, tx.Validate())
}

func TestStatementTransactionValidate(t *testing.T) {
	valid := StatementTransaction{
		Date:        "2024-03-10",
		Description: "x",
		Amount:      decimal.NewFromInt(1),
		Direction:   DirectionReceivable,
	}

	tests := []struct {
		name   string
		mutate func(*StatementTransaction)
	}{
		{name: "missing date", mutate: func(tx *StatementTransaction) { tx.Date = "" }},
		{name: "negative amount", mutate: func(tx *StatementTransaction) { tx.Amount = decimal.NewFromInt(-1) }},
		{name: "bad direction", mutate: func(tx *StatementTransaction) { tx.Direction = "sideways" }},
	}

	assert.NoError(t, valid.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := valid
			tt.mutate(&tx)
			assert.Error(t, tx.Validate())
		})
	}
}

func TestCleanDescription(t *testing.T) {
	assert.Equal(t, PlaceholderDescription, CleanDescription("   "))
	assert.Equal(t, "a b", CleanDescription("a\n\tb"))
}
