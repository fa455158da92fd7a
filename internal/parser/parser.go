package parser

import (
	"io"

	"erpfin/bank-sync/internal/logging"
	"erpfin/bank-sync/internal/models"
)

// Parser turns a raw bank statement into normalized transactions.
type Parser interface {
	// Parse reads the whole statement from r. Implementations return a
	// parsererror.FormatError when the input is not in their format and a
	// parsererror.EmptyResultError when it is but holds no usable transaction.
	// Individual bad rows are logged and skipped.
	Parse(r io.Reader) ([]models.StatementTransaction, error)
}

// LoggerConfigurable is implemented by parsers whose logger can be swapped after
// construction.
type LoggerConfigurable interface {
	SetLogger(logger logging.Logger)
}
