// Package common provides output helpers shared by the commands.
package common

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"erpfin/bank-sync/internal/logging"
	"erpfin/bank-sync/internal/models"

	"github.com/gocarina/gocsv"
)

// StatementRow is the CSV layout of a normalized statement transaction.
type StatementRow struct {
	Date        string `csv:"date"`
	Description string `csv:"description"`
	Amount      string `csv:"amount"`
	Direction   string `csv:"direction"`
	Balance     string `csv:"balance"`
	DocNo       string `csv:"doc_no"`
	Category    string `csv:"category"`
}

// NewStatementRow formats tx for CSV output with two-decimal amounts.
func NewStatementRow(tx models.StatementTransaction) StatementRow {
	row := StatementRow{
		Date:        tx.Date,
		Description: tx.Description,
		Amount:      tx.Amount.StringFixed(2),
		Direction:   tx.Direction.String(),
		DocNo:       tx.DocNo,
		Category:    tx.Category,
	}
	if tx.Balance != nil {
		row.Balance = tx.Balance.StringFixed(2)
	}
	return row
}

// WriteStatementCSV writes transactions with a header line to w.
func WriteStatementCSV(w io.Writer, transactions []models.StatementTransaction, delimiter rune) error {
	if transactions == nil {
		return errors.New("cannot write nil transactions to CSV")
	}
	rows := make([]StatementRow, 0, len(transactions))
	for _, tx := range transactions {
		rows = append(rows, NewStatementRow(tx))
	}

	csvWriter := csv.NewWriter(w)
	csvWriter.Comma = delimiter
	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(csvWriter)); err != nil {
		return fmt.Errorf("error writing CSV data: %w", err)
	}
	return nil
}

// WriteStatementCSVFile writes transactions to csvFile, creating its directory.
func WriteStatementCSVFile(csvFile string, transactions []models.StatementTransaction, delimiter rune, logger logging.Logger) error {
	logger = logging.OrDefault(logger)
	logger.Info("Writing transactions to CSV file",
		logging.Field{Key: logging.FieldOutputFile, Value: csvFile},
		logging.Field{Key: logging.FieldCount, Value: len(transactions)})

	if err := os.MkdirAll(filepath.Dir(csvFile), 0750); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}
	file, err := os.Create(csvFile) // #nosec G304 -- output path chosen by the user
	if err != nil {
		return fmt.Errorf("error creating CSV file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close file")
		}
	}()

	return WriteStatementCSV(file, transactions, delimiter)
}
