// Package camtparser parses ISO 20022 CAMT.053 bank-to-customer statements.
package camtparser

import (
	"errors"
	"io"
	"strings"

	"erpfin/bank-sync/internal/currencyutils"
	"erpfin/bank-sync/internal/dateutils"
	"erpfin/bank-sync/internal/logging"
	"erpfin/bank-sync/internal/models"
	"erpfin/bank-sync/internal/parser"
	"erpfin/bank-sync/internal/parsererror"
	"erpfin/bank-sync/internal/xmlutils"

	"gopkg.in/xmlpath.v2"
)

// FormatName identifies this parser in errors and logs.
const FormatName = "camt"

// Marker is the root element that identifies a CAMT.053 document.
const Marker = "BkToCstmrStmt"

var (
	errNotANumber  = errors.New("not a number")
	errIndicator   = errors.New("expected CRDT or DBIT")
	errInvalidDate = errors.New("invalid date")
)

// Parser parses CAMT.053 XML statements.
type Parser struct {
	parser.BaseParser
	paths xmlutils.CAMT053
}

// NewParser returns a CAMT.053 parser.
func NewParser(logger logging.Logger) *Parser {
	return &Parser{
		BaseParser: parser.NewBaseParser(FormatName, logger),
		paths:      xmlutils.DefaultCamt053XPaths(),
	}
}

// Parse implements parser.Parser.
func (p *Parser) Parse(r io.Reader) ([]models.StatementTransaction, error) {
	text, err := p.ReadText(r)
	if err != nil {
		return nil, err
	}

	root, err := xmlutils.ParseXML(strings.NewReader(stripDeclaredEncoding(text)))
	if err != nil {
		return nil, &parsererror.FormatError{Format: FormatName, Reason: err.Error()}
	}
	if !xmlutils.Exists(root, p.paths.Statement) {
		return nil, &parsererror.FormatError{Format: FormatName, Reason: "no BkToCstmrStmt/Stmt element"}
	}

	entries, err := xmlutils.Nodes(root, p.paths.Entries)
	if err != nil {
		return nil, err
	}

	transactions := make([]models.StatementTransaction, 0, len(entries))
	for i, entry := range entries {
		tx, err := p.convertEntry(entry)
		if err != nil {
			p.SkipRow(i+1, "unusable Ntry", err)
			continue
		}
		transactions = append(transactions, tx)
	}
	return p.Finish(transactions)
}

func (p *Parser) convertEntry(entry *xmlpath.Node) (models.StatementTransaction, error) {
	e := p.paths.Entry

	rawAmount := xmlutils.FirstValue(entry, e.Amount)
	amount, ok := currencyutils.ParseValue(rawAmount)
	if !ok {
		return models.StatementTransaction{}, &parsererror.ParseError{
			Parser: FormatName, Field: "Amt", Value: rawAmount, Err: errNotANumber,
		}
	}

	var direction models.Direction
	switch indicator := strings.ToUpper(xmlutils.FirstValue(entry, e.CreditDebitInd)); indicator {
	case "CRDT":
		direction = models.DirectionReceivable
	case "DBIT":
		direction = models.DirectionPayable
	default:
		return models.StatementTransaction{}, &parsererror.ParseError{
			Parser: FormatName, Field: "CdtDbtInd", Value: indicator, Err: errIndicator,
		}
	}

	rawDate := xmlutils.FirstValue(entry, e.BookingDate, e.BookingDateTime, e.ValueDate)
	date, ok := dateutils.NormalizeDate(rawDate)
	if !ok {
		return models.StatementTransaction{}, &parsererror.ParseError{
			Parser: FormatName, Field: "BookgDt", Value: rawDate, Err: errInvalidDate,
		}
	}

	description := xmlutils.FirstValue(entry,
		p.paths.Remittance.UnstructuredInfo,
		e.AddEntryInfo,
		p.paths.Remittance.AdditionalTxInfo,
	)
	if description == "" {
		if direction == models.DirectionPayable {
			description = xmlutils.FirstValue(entry, p.paths.Party.CreditorName)
		} else {
			description = xmlutils.FirstValue(entry, p.paths.Party.DebtorName)
		}
	}

	return models.StatementTransaction{
		Date:        date,
		Description: models.CleanDescription(description),
		Amount:      amount.Abs(),
		Direction:   direction,
		DocNo:       xmlutils.FirstValue(entry, e.AccountSvcRef, e.EntryRef),
	}, nil
}

// stripDeclaredEncoding drops the XML declaration. The text is already UTF-8, and
// encoding/xml refuses declarations naming other charsets.
func stripDeclaredEncoding(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "<?xml") {
		if end := strings.Index(trimmed, "?>"); end >= 0 {
			return trimmed[end+2:]
		}
	}
	return trimmed
}
