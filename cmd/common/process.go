// Package common contains shared functionality for command handlers
package common

import (
	"errors"
	"fmt"
	"io"
	"os"

	"erpfin/bank-sync/internal/common"
	"erpfin/bank-sync/internal/factory"
	"erpfin/bank-sync/internal/logging"
	"erpfin/bank-sync/internal/models"
	"erpfin/bank-sync/internal/parsererror"
)

// ErrMissingInput is returned when no input file was given.
var ErrMissingInput = errors.New("an input file is required (-i)")

// StatementParser parses raw statement bytes.
type StatementParser interface {
	ParseStatementFile(content []byte, declared factory.Format) ([]models.StatementTransaction, error)
}

// ProcessOptions describes one parse-and-write run.
type ProcessOptions struct {
	InputFile  string
	OutputFile string
	Format     factory.Format
	Delimiter  rune
}

// ProcessFileWithError parses opts.InputFile and writes the normalized CSV to
// opts.OutputFile, or to stdout when no output file is given.
func ProcessFileWithError(p StatementParser, opts ProcessOptions, stdout io.Writer, log logging.Logger) (int, error) {
	log = logging.OrDefault(log)
	if opts.InputFile == "" {
		return 0, ErrMissingInput
	}
	content, err := os.ReadFile(opts.InputFile) // #nosec G304 -- input path chosen by the user
	if err != nil {
		return 0, fmt.Errorf("error reading input file: %w", err)
	}

	transactions, err := p.ParseStatementFile(content, opts.Format)
	if err != nil {
		var formatErr *parsererror.FormatError
		if errors.As(err, &formatErr) {
			log.Error("Unrecognized statement layout",
				logging.Field{Key: logging.FieldInputFile, Value: opts.InputFile},
				logging.Field{Key: "expected", Value: formatErr.ExpectedSummary()})
		}
		return 0, fmt.Errorf("error parsing %s: %w", opts.InputFile, err)
	}

	delimiter := opts.Delimiter
	if delimiter == 0 {
		delimiter = ','
	}
	if opts.OutputFile == "" {
		err = common.WriteStatementCSV(stdout, transactions, delimiter)
	} else {
		err = common.WriteStatementCSVFile(opts.OutputFile, transactions, delimiter, log)
	}
	if err != nil {
		return 0, fmt.Errorf("error writing CSV: %w", err)
	}

	log.Info("Conversion completed successfully",
		logging.Field{Key: logging.FieldInputFile, Value: opts.InputFile},
		logging.Field{Key: logging.FieldCount, Value: len(transactions)})
	return len(transactions), nil
}
