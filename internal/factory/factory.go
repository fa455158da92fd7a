// Package factory selects the statement parser for a file, either from a declared
// format or by sniffing the content.
package factory

import (
	"bytes"
	"fmt"
	"strings"

	"erpfin/bank-sync/internal/camtparser"
	"erpfin/bank-sync/internal/csvparser"
	"erpfin/bank-sync/internal/logging"
	"erpfin/bank-sync/internal/models"
	"erpfin/bank-sync/internal/ofxparser"
	"erpfin/bank-sync/internal/parser"
	"erpfin/bank-sync/internal/parsererror"
	"erpfin/bank-sync/internal/qifparser"
	"erpfin/bank-sync/internal/textutils"
)

// Format is a statement file format.
type Format string

const (
	CSV  Format = "csv"
	OFX  Format = "ofx"
	QIF  Format = "qif"
	CAMT Format = "camt"
)

// Formats lists every supported format.
var Formats = []Format{CSV, OFX, QIF, CAMT}

var qifHeaders = []string{"!type:", "!account", "!option"}

// ParseFormat validates a user-supplied format name. An empty name is allowed and
// means "detect".
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return "", nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", unknownFormat(s)
}

// DetectFormat sniffs content: OFX markers, then the CAMT.053 root element, then a QIF
// header on the first non-blank line. Anything else is treated as CSV.
func DetectFormat(content []byte) Format {
	text := textutils.DecodeText(content)
	if ofxparser.IsOFX(text) {
		return OFX
	}
	if strings.Contains(text, camtparser.Marker) {
		return CAMT
	}
	for _, line := range textutils.SplitLines(text) {
		line = strings.ToLower(strings.TrimSpace(line))
		if line == "" {
			continue
		}
		for _, h := range qifHeaders {
			if strings.HasPrefix(line, h) {
				return QIF
			}
		}
		break
	}
	return CSV
}

// Factory builds parsers sharing one logger and CSV alias table.
type Factory struct {
	logger  logging.Logger
	aliases csvparser.AliasTable
}

// New returns a Factory. Nil arguments select the defaults.
func New(logger logging.Logger, aliases csvparser.AliasTable) *Factory {
	return &Factory{logger: logging.OrDefault(logger), aliases: aliases}
}

// GetParser returns a new parser for format.
func (f *Factory) GetParser(format Format) (parser.Parser, error) {
	switch format {
	case CSV:
		return csvparser.NewParser(f.logger, f.aliases), nil
	case OFX:
		return ofxparser.NewParser(f.logger), nil
	case QIF:
		return qifparser.NewParser(f.logger), nil
	case CAMT:
		return camtparser.NewParser(f.logger), nil
	default:
		return nil, unknownFormat(string(format))
	}
}

// ParseStatementFile parses content with the declared format, or with the detected one
// when declared is empty.
func (f *Factory) ParseStatementFile(content []byte, declared Format) ([]models.StatementTransaction, error) {
	format := declared
	if format == "" {
		format = DetectFormat(content)
	}
	p, err := f.GetParser(format)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("Parsing statement",
		logging.Field{Key: logging.FieldFormat, Value: string(format)},
		logging.Field{Key: "declared", Value: declared != ""})
	return p.Parse(bytes.NewReader(content))
}

// GetParserWithLogger returns a parser for format using logger and the default aliases.
func GetParserWithLogger(format Format, logger logging.Logger) (parser.Parser, error) {
	return New(logger, nil).GetParser(format)
}

// ParseStatementFile parses content with default settings.
func ParseStatementFile(content []byte, declared Format) ([]models.StatementTransaction, error) {
	return New(nil, nil).ParseStatementFile(content, declared)
}

func unknownFormat(name string) error {
	return &parsererror.FormatError{
		Format: name,
		Reason: fmt.Sprintf("unsupported format, expected one of %s", joinFormats()),
	}
}

func joinFormats() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
