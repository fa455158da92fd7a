package parsererror

import (
	"fmt"
	"sort"
	"strings"
)

// UnrecognizedFormatMsg is the user-facing message of a FormatError.
const UnrecognizedFormatMsg = "formato não reconhecido"

// ParseError represents an error while parsing a single field of a row.
// Parsers log it and skip the row.
type ParseError struct {
	Parser string
	Line   int
	Field  string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: failed to parse %s='%s': %v",
			e.Parser, e.Line, e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("%s: failed to parse %s='%s': %v",
		e.Parser, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// FormatError means the input could not be recognized as the expected format,
// for example a CSV file whose header lacks the required columns.
type FormatError struct {
	Format   string
	Reason   string
	Expected map[string][]string // logical column -> accepted header aliases
}

func (e *FormatError) Error() string {
	var b strings.Builder
	b.WriteString(UnrecognizedFormatMsg)
	if e.Format != "" {
		fmt.Fprintf(&b, " (%s)", e.Format)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if len(e.Expected) > 0 {
		b.WriteString(". Expected columns: ")
		b.WriteString(e.ExpectedSummary())
	}
	return b.String()
}

// ExpectedSummary renders the expected aliases in a stable order.
func (e *FormatError) ExpectedSummary() string {
	parts := make([]string, 0, len(e.Expected))
	for _, key := range sortedKeys(e.Expected) {
		parts = append(parts, fmt.Sprintf("%s=[%s]", key, strings.Join(e.Expected[key], ", ")))
	}
	return strings.Join(parts, "; ")
}

// EmptyResultError means the input was recognized but yielded no transaction.
type EmptyResultError struct {
	Format string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("no transactions found in %s statement", e.Format)
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
