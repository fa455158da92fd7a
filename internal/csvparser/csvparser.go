// Package csvparser parses CSV bank statements with free-form headers. Columns are
// recognized through alias tables, the separator is detected from the header line and
// preamble lines before the header are ignored.
package csvparser

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"erpfin/bank-sync/internal/currencyutils"
	"erpfin/bank-sync/internal/dateutils"
	"erpfin/bank-sync/internal/logging"
	"erpfin/bank-sync/internal/models"
	"erpfin/bank-sync/internal/parser"
	"erpfin/bank-sync/internal/parsererror"
	"erpfin/bank-sync/internal/textutils"

	"github.com/shopspring/decimal"
)

// FormatName identifies this parser in errors and logs.
const FormatName = "csv"

// headerSearchLines is how many non-blank lines are inspected for the header.
const headerSearchLines = 10

var (
	errInvalidDate   = errors.New("invalid date")
	errInvalidAmount = errors.New("invalid amount")
	errNoAmount      = errors.New("no debit, credit or amount value")
)

// typeVocabulary maps normalized type-column values to a direction.
var typeVocabulary = map[string]models.Direction{
	"c":          models.DirectionReceivable,
	"cr":         models.DirectionReceivable,
	"credito":    models.DirectionReceivable,
	"credit":     models.DirectionReceivable,
	"entrada":    models.DirectionReceivable,
	"receita":    models.DirectionReceivable,
	"deposito":   models.DirectionReceivable,
	"deposit":    models.DirectionReceivable,
	"+":          models.DirectionReceivable,
	"d":          models.DirectionPayable,
	"db":         models.DirectionPayable,
	"dr":         models.DirectionPayable,
	"debito":     models.DirectionPayable,
	"debit":      models.DirectionPayable,
	"saida":      models.DirectionPayable,
	"despesa":    models.DirectionPayable,
	"pagamento":  models.DirectionPayable,
	"withdrawal": models.DirectionPayable,
	"-":          models.DirectionPayable,
}

// Parser parses delimited statements.
type Parser struct {
	parser.BaseParser
	aliases AliasTable
}

// NewParser returns a CSV parser using aliases, or the default table when aliases is nil.
func NewParser(logger logging.Logger, aliases AliasTable) *Parser {
	if aliases == nil {
		aliases = DefaultAliases()
	}
	return &Parser{
		BaseParser: parser.NewBaseParser(FormatName, logger),
		aliases:    aliases.normalized(),
	}
}

// Parse implements parser.Parser.
func (p *Parser) Parse(r io.Reader) ([]models.StatementTransaction, error) {
	text, err := p.ReadText(r)
	if err != nil {
		return nil, err
	}
	lines := JoinQuotedLines(textutils.SplitLines(text))

	headerIdx, sep, header, ok := p.findHeader(lines)
	if !ok {
		return nil, &parsererror.FormatError{
			Format: FormatName,
			Reason: "header must contain date, description and amount (or debit and credit) columns",
			Expected: p.aliases.Expected(
				ColumnDate, ColumnDescription, ColumnAmount, ColumnDebit, ColumnCredit),
		}
	}
	p.GetLogger().Debug("Detected CSV header",
		logging.Field{Key: logging.FieldLine, Value: headerIdx + 1},
		logging.Field{Key: logging.FieldDelimiter, Value: string(sep)})

	var transactions []models.StatementTransaction
	for i := headerIdx + 1; i < len(lines); i++ {
		line := lines[i]
		if isBlank(line) || isSummaryLine(line) {
			continue
		}
		cells := SplitLine(line, sep)
		if allEmpty(cells) {
			continue
		}
		tx, err := p.convertRow(header, cells)
		if err != nil {
			p.SkipRow(i+1, "unusable CSV row", &parsererror.ParseError{
				Parser: FormatName,
				Line:   i + 1,
				Field:  "row",
				Value:  textutils.Snippet(line, 80),
				Err:    err,
			})
			continue
		}
		transactions = append(transactions, tx)
	}
	return p.Finish(transactions)
}

// findHeader returns the index of the first line, among the first non-blank lines,
// whose cells satisfy the required columns.
func (p *Parser) findHeader(lines []string) (int, rune, headerMap, bool) {
	inspected := 0
	for i, line := range lines {
		if isBlank(line) {
			continue
		}
		if inspected == headerSearchLines {
			break
		}
		inspected++

		sep := DetectSeparator(line)
		header := matchHeader(SplitLine(line, sep), p.aliases)
		if header.complete() {
			return i, sep, header, true
		}
	}
	return 0, 0, nil, false
}

func (p *Parser) convertRow(header headerMap, cells []string) (models.StatementTransaction, error) {
	rawDate := header.value(cells, ColumnDate)
	date, ok := dateutils.NormalizeDate(rawDate)
	if !ok {
		return models.StatementTransaction{}, fmt.Errorf("%w %q", errInvalidDate, rawDate)
	}

	amount, direction, err := resolveAmount(header, cells)
	if err != nil {
		return models.StatementTransaction{}, err
	}

	tx := models.StatementTransaction{
		Date:        date,
		Description: models.CleanDescription(header.value(cells, ColumnDescription)),
		Amount:      amount,
		Direction:   direction,
		DocNo:       header.value(cells, ColumnDocNo),
	}
	if raw := header.value(cells, ColumnBalance); raw != "" {
		if balance, ok := currencyutils.ParseValue(raw); ok {
			tx.Balance = &balance
		}
	}
	return tx, nil
}

// resolveAmount applies the column precedence: a non-zero debit, then a non-zero
// credit, then the amount column with its type indicator or sign.
func resolveAmount(header headerMap, cells []string) (decimal.Decimal, models.Direction, error) {
	if v, ok := nonZero(header.value(cells, ColumnDebit)); ok {
		return v.Abs(), models.DirectionPayable, nil
	}
	if v, ok := nonZero(header.value(cells, ColumnCredit)); ok {
		return v.Abs(), models.DirectionReceivable, nil
	}

	raw := header.value(cells, ColumnAmount)
	if raw == "" {
		return decimal.Zero, "", errNoAmount
	}
	raw, marker := splitTypeMarker(raw)
	value, ok := currencyutils.ParseValue(raw)
	if !ok {
		return decimal.Zero, "", fmt.Errorf("%w %q", errInvalidAmount, raw)
	}

	typeValue := header.value(cells, ColumnType)
	if typeValue == "" {
		typeValue = marker
	}
	if direction, ok := lookupType(typeValue); ok {
		return value.Abs(), direction, nil
	}
	return value.Abs(), models.DirectionFromSign(value), nil
}

// splitTypeMarker detects amounts such as "150,00 D" or "150,00 C".
func splitTypeMarker(raw string) (string, string) {
	upper := strings.ToUpper(raw)
	for _, marker := range []string{" D", " C"} {
		if strings.HasSuffix(upper, marker) {
			return strings.TrimSpace(raw[:len(raw)-len(marker)]), strings.TrimSpace(marker)
		}
	}
	return raw, ""
}

func lookupType(value string) (models.Direction, bool) {
	if value == "" {
		return "", false
	}
	direction, ok := typeVocabulary[textutils.NormalizeKey(value)]
	return direction, ok
}

func nonZero(raw string) (decimal.Decimal, bool) {
	if raw == "" {
		return decimal.Zero, false
	}
	v, ok := currencyutils.ParseValue(raw)
	if !ok || v.IsZero() {
		return decimal.Zero, false
	}
	return v, true
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// isSummaryLine matches the "Total ..." and "Saldo ..." lines banks append to exports.
func isSummaryLine(line string) bool {
	trimmed := strings.ToLower(strings.TrimLeft(strings.TrimSpace(line), `"`))
	return strings.HasPrefix(trimmed, "total") || strings.HasPrefix(trimmed, "saldo")
}

func allEmpty(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
