// Package ofxparser extracts transactions from OFX statements (SGML 1.x and XML 2.x).
// Each <STMTTRN> block is scanned on its own with tag regexes instead of building a
// document tree, which keeps the parser tolerant of the unclosed tags common in SGML
// exports.
package ofxparser

import (
	"errors"
	"io"
	"regexp"
	"strings"
	"time"

	"erpfin/bank-sync/internal/currencyutils"
	"erpfin/bank-sync/internal/dateutils"
	"erpfin/bank-sync/internal/logging"
	"erpfin/bank-sync/internal/models"
	"erpfin/bank-sync/internal/parser"
	"erpfin/bank-sync/internal/parsererror"
	"erpfin/bank-sync/internal/textutils"
)

// FormatName identifies this parser in errors and logs.
const FormatName = "ofx"

var (
	errMissingFields = errors.New("missing DTPOSTED or TRNAMT")
	errNotANumber    = errors.New("not a number")

	blockStart  = regexp.MustCompile(`(?i)<STMTTRN>`)
	blockEnd    = regexp.MustCompile(`(?i)</STMTTRN>|<STMTTRN>|</BANKTRANLIST>`)
	datePrefix  = regexp.MustCompile(`^(\d{8})\d{0,6}`)
	markers     = []string{"<OFX>", "OFXHEADER", "FINANCIALINSTMSGSRSV1"}
	tagPatterns = map[string]*regexp.Regexp{}
	fieldsInUse = []string{"DTPOSTED", "TRNAMT", "MEMO", "NAME", "FITID", "BALAMT"}
)

func init() {
	for _, tag := range fieldsInUse {
		tagPatterns[tag] = regexp.MustCompile(`(?i)<` + tag + `>([^<\r\n]*)`)
	}
}

// IsOFX reports whether text carries one of the OFX markers.
func IsOFX(text string) bool {
	upper := strings.ToUpper(text)
	for _, m := range markers {
		if strings.Contains(upper, m) {
			return true
		}
	}
	return false
}

// Parser parses OFX statements.
type Parser struct {
	parser.BaseParser
}

// NewParser returns an OFX parser.
func NewParser(logger logging.Logger) *Parser {
	return &Parser{BaseParser: parser.NewBaseParser(FormatName, logger)}
}

// Parse implements parser.Parser.
func (p *Parser) Parse(r io.Reader) ([]models.StatementTransaction, error) {
	text, err := p.ReadText(r)
	if err != nil {
		return nil, err
	}
	blocks := ExtractBlocks(text)
	if len(blocks) == 0 && !IsOFX(text) {
		return nil, &parsererror.FormatError{Format: FormatName, Reason: "no OFX markers found"}
	}

	var transactions []models.StatementTransaction
	for i, block := range blocks {
		tx, err := convertBlock(block)
		if err != nil {
			p.SkipRow(i+1, "unusable STMTTRN block", err)
			continue
		}
		transactions = append(transactions, tx)
	}
	return p.Finish(transactions)
}

// ExtractBlocks returns the body of every <STMTTRN> block. A block without its closing
// tag ends at the next <STMTTRN>, at </BANKTRANLIST> or at the end of the text.
func ExtractBlocks(text string) []string {
	starts := blockStart.FindAllStringIndex(text, -1)
	blocks := make([]string, 0, len(starts))
	for _, loc := range starts {
		body := text[loc[1]:]
		if end := blockEnd.FindStringIndex(body); end != nil {
			body = body[:end[0]]
		}
		blocks = append(blocks, body)
	}
	return blocks
}

// Field returns the trimmed, entity-decoded value of tag inside block.
func Field(block, tag string) string {
	re, ok := tagPatterns[tag]
	if !ok {
		re = regexp.MustCompile(`(?i)<` + regexp.QuoteMeta(tag) + `>([^<\r\n]*)`)
	}
	m := re.FindStringSubmatch(block)
	if m == nil {
		return ""
	}
	return textutils.UnescapeEntities(strings.TrimSpace(m[1]))
}

func convertBlock(block string) (models.StatementTransaction, error) {
	rawDate := Field(block, "DTPOSTED")
	rawAmount := Field(block, "TRNAMT")
	if rawDate == "" || rawAmount == "" {
		return models.StatementTransaction{}, errMissingFields
	}

	date, err := parseOFXDate(rawDate)
	if err != nil {
		return models.StatementTransaction{}, &parsererror.ParseError{
			Parser: FormatName, Field: "DTPOSTED", Value: rawDate, Err: err,
		}
	}
	amount, ok := currencyutils.ParseValue(rawAmount)
	if !ok {
		return models.StatementTransaction{}, &parsererror.ParseError{
			Parser: FormatName, Field: "TRNAMT", Value: rawAmount, Err: errNotANumber,
		}
	}

	description := Field(block, "MEMO")
	if description == "" {
		description = Field(block, "NAME")
	}

	tx := models.NewStatementTransaction(date, description, amount)
	tx.DocNo = Field(block, "FITID")
	if raw := Field(block, "BALAMT"); raw != "" {
		if balance, ok := currencyutils.ParseValue(raw); ok {
			tx.Balance = &balance
		}
	}
	return tx, nil
}

// parseOFXDate reads the YYYYMMDD prefix of an OFX datetime such as
// 20240310120000[-3:BRT].
func parseOFXDate(raw string) (string, error) {
	m := datePrefix.FindStringSubmatch(raw)
	if m == nil {
		return "", errors.New("expected YYYYMMDD prefix")
	}
	t, err := time.Parse(dateutils.DateLayoutCompact, m[1])
	if err != nil {
		return "", err
	}
	return dateutils.ToISODate(t), nil
}
