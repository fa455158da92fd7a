package parser

import (
	"errors"
	"strings"
	"testing"

	"erpfin/bank-sync/internal/logging"
	"erpfin/bank-sync/internal/models"
	"erpfin/bank-sync/internal/parsererror"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestNewBaseParser_DefaultLogger(t *testing.T) {
	b := NewBaseParser("csv", nil)
	assert.NotNil(t, b.GetLogger())
	assert.Equal(t, "csv", b.Format())
}

func TestBaseParser_SetLogger(t *testing.T) {
	b := NewBaseParser("ofx", nil)
	mock := logging.NewMockLogger()

	b.SetLogger(mock)
	b.SkipRow(3, "missing TRNAMT", nil)

	entries := mock.GetEntriesByLevel("WARN")
	require.Len(t, entries, 1)
	assert.Equal(t, "Skipping row: missing TRNAMT", entries[0].Message)
	parserName, _ := entries[0].Field(logging.FieldParser)
	assert.Equal(t, "ofx", parserName)
	line, _ := entries[0].Field(logging.FieldLine)
	assert.Equal(t, 3, line)

	b.SetLogger(nil)
	assert.NotNil(t, b.GetLogger())
}

func TestBaseParser_ReadText(t *testing.T) {
	b := NewBaseParser("qif", logging.NewMockLogger())

	text, err := b.ReadText(strings.NewReader("\xEF\xBB\xBF!Type:Bank"))
	require.NoError(t, err)
	assert.Equal(t, "!Type:Bank", text)

	_, err = b.ReadText(failingReader{})
	assert.ErrorContains(t, err, "disk gone")

	_, err = b.ReadText(nil)
	assert.Error(t, err)
}

func TestBaseParser_Finish(t *testing.T) {
	b := NewBaseParser("csv", logging.NewMockLogger())

	_, err := b.Finish(nil)
	var emptyErr *parsererror.EmptyResultError
	require.ErrorAs(t, err, &emptyErr)
	assert.Equal(t, "csv", emptyErr.Format)

	txs := []models.StatementTransaction{models.NewStatementTransaction("2024-03-10", "x", decimal.NewFromInt(1))}
	got, err := b.Finish(txs)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestBaseParser_FinishDropsInvalidTransactions(t *testing.T) {
	mock := logging.NewMockLogger()
	b := NewBaseParser("qif", mock)

	good := models.NewStatementTransaction("2024-03-10", "Pix recebido", decimal.NewFromInt(10))
	negative := models.NewStatementTransaction("2024-03-11", "Estorno", decimal.NewFromInt(5))
	negative.Amount = decimal.NewFromInt(-5)
	undated := models.NewStatementTransaction("", "Sem data", decimal.NewFromInt(3))
	sideways := models.NewStatementTransaction("2024-03-12", "Ajuste", decimal.NewFromInt(2))
	sideways.Direction = models.Direction("sideways")

	got, err := b.Finish([]models.StatementTransaction{good, negative, undated, sideways})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Pix recebido", got[0].Description)
	assert.Len(t, mock.GetEntriesByLevel("WARN"), 3)

	_, err = b.Finish([]models.StatementTransaction{negative})
	var emptyErr *parsererror.EmptyResultError
	assert.ErrorAs(t, err, &emptyErr)
}
