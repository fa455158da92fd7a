// Package parser provides the base parser functionality and common interfaces.
package parser

import (
	"fmt"
	"io"

	"erpfin/bank-sync/internal/logging"
	"erpfin/bank-sync/internal/models"
	"erpfin/bank-sync/internal/parsererror"
	"erpfin/bank-sync/internal/textutils"
)

// BaseParser carries what every format parser shares: the logger, the format name
// used in errors and log fields, and the read/decode/finish steps.
//
// Parsers embed it:
//
//	type MyParser struct {
//		parser.BaseParser
//	}
type BaseParser struct {
	logger logging.Logger
	format string
}

// NewBaseParser creates a BaseParser for format. A nil logger falls back to the
// default logrus adapter.
func NewBaseParser(format string, logger logging.Logger) BaseParser {
	return BaseParser{
		logger: logging.OrDefault(logger).WithField(logging.FieldParser, format),
		format: format,
	}
}

// SetLogger implements LoggerConfigurable.
func (b *BaseParser) SetLogger(logger logging.Logger) {
	if logger != nil {
		b.logger = logger.WithField(logging.FieldParser, b.format)
	}
}

// GetLogger returns the current logger instance.
func (b *BaseParser) GetLogger() logging.Logger {
	return logging.OrDefault(b.logger)
}

// Format returns the format name.
func (b *BaseParser) Format() string {
	return b.format
}

// ReadText reads r fully and decodes it to a UTF-8 string.
func (b *BaseParser) ReadText(r io.Reader) (string, error) {
	if r == nil {
		return "", fmt.Errorf("%s: nil reader", b.format)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%s: failed to read statement: %w", b.format, err)
	}
	return textutils.DecodeText(content), nil
}

// Finish drops transactions that break the statement invariants (non-negative
// amount, known direction, date present) and returns an EmptyResultError when nothing
// is left.
func (b *BaseParser) Finish(transactions []models.StatementTransaction) ([]models.StatementTransaction, error) {
	valid := transactions[:0:0]
	for i, tx := range transactions {
		if err := tx.Validate(); err != nil {
			b.GetLogger().WithError(err).Warn("Dropping invalid transaction",
				logging.Field{Key: "index", Value: i},
				logging.Field{Key: logging.FieldDocNo, Value: tx.DocNo})
			continue
		}
		valid = append(valid, tx)
	}
	transactions = valid
	if len(transactions) == 0 {
		return nil, &parsererror.EmptyResultError{Format: b.format}
	}
	b.GetLogger().Debug("Parsed statement",
		logging.Field{Key: logging.FieldCount, Value: len(transactions)})
	return transactions, nil
}

// SkipRow logs a row that could not be used.
func (b *BaseParser) SkipRow(line int, reason string, err error) {
	entry := b.GetLogger().WithFields(
		logging.Field{Key: logging.FieldLine, Value: line},
	)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Warn("Skipping row: " + reason)
}
