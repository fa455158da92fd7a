// Package qifparser parses Quicken Interchange Format statements.
package qifparser

import (
	"io"
	"regexp"
	"strings"

	"erpfin/bank-sync/internal/currencyutils"
	"erpfin/bank-sync/internal/dateutils"
	"erpfin/bank-sync/internal/logging"
	"erpfin/bank-sync/internal/models"
	"erpfin/bank-sync/internal/parser"
	"erpfin/bank-sync/internal/textutils"

	"github.com/shopspring/decimal"
)

// FormatName identifies this parser in errors and logs.
const FormatName = "qif"

// apostropheYear matches the Quicken short-year form, e.g. 15/01'24 or 1/ 5' 4.
var apostropheYear = regexp.MustCompile(`^(\d{1,2})/\s*(\d{1,2})'\s*(\d{1,4})$`)

// record accumulates the fields of one transaction until the ^ terminator.
type record struct {
	line      int
	date      string
	dateOK    bool
	amount    decimal.Decimal
	amountSet bool
	payee     string
	memo      string
	docNo     string
	category  string
}

func (r *record) empty() bool {
	return r.line == 0
}

func (r *record) complete() bool {
	return r.dateOK && r.amountSet
}

func (r *record) transaction() models.StatementTransaction {
	description := r.payee
	if r.memo != "" {
		if description != "" {
			description += " - "
		}
		description += r.memo
	}
	tx := models.NewStatementTransaction(r.date, description, r.amount)
	tx.DocNo = r.docNo
	tx.Category = r.category
	return tx
}

// Parser parses QIF statements.
type Parser struct {
	parser.BaseParser
}

// NewParser returns a QIF parser.
func NewParser(logger logging.Logger) *Parser {
	return &Parser{BaseParser: parser.NewBaseParser(FormatName, logger)}
}

// Parse implements parser.Parser.
func (p *Parser) Parse(r io.Reader) ([]models.StatementTransaction, error) {
	text, err := p.ReadText(r)
	if err != nil {
		return nil, err
	}

	var (
		transactions []models.StatementTransaction
		pending      record
		inAccount    bool
	)
	commit := func() {
		if pending.empty() {
			return
		}
		if pending.complete() {
			transactions = append(transactions, pending.transaction())
		} else {
			p.SkipRow(pending.line, "QIF record without valid date or amount", nil)
		}
		pending = record{}
	}

	for i, raw := range textutils.SplitLines(text) {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if line == "^" {
			if inAccount {
				inAccount = false
				continue
			}
			commit()
			continue
		}
		if strings.HasPrefix(line, "!") {
			inAccount = strings.HasPrefix(strings.ToLower(line), "!account")
			continue
		}
		if inAccount {
			continue
		}

		if pending.empty() {
			pending.line = i + 1
		}
		code, value := line[0], strings.TrimSpace(line[1:])
		switch code {
		case 'D':
			pending.date, pending.dateOK = NormalizeQIFDate(value)
		case 'T', 'U':
			if !pending.amountSet {
				pending.amount, pending.amountSet = currencyutils.ParseValue(value)
			}
		case 'P':
			pending.payee = value
		case 'M':
			if pending.memo != "" {
				pending.memo += " "
			}
			pending.memo += value
		case 'N':
			pending.docNo = value
		case 'L':
			pending.category = strings.Trim(value, "[]")
		}
	}
	commit()

	return p.Finish(transactions)
}

// NormalizeQIFDate expands the apostrophe short year before the generic date rules.
func NormalizeQIFDate(value string) (string, bool) {
	if m := apostropheYear.FindStringSubmatch(value); m != nil {
		year := m[3]
		if len(year) < 3 {
			year = strings.Repeat("0", 2-len(year)) + year
			year = "20" + year
		}
		value = m[1] + "/" + m[2] + "/" + year
	}
	return dateutils.NormalizeDate(value)
}
