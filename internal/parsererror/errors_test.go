package parsererror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseError(t *testing.T) {
	tests := []struct {
		name     string
		err      *ParseError
		expected string
	}{
		{
			name: "without line",
			err: &ParseError{
				Parser: "OFX",
				Field:  "TRNAMT",
				Value:  "abc",
				Err:    errors.New("invalid value"),
			},
			expected: "OFX: failed to parse TRNAMT='abc': invalid value",
		},
		{
			name: "with line",
			err: &ParseError{
				Parser: "CSV",
				Line:   4,
				Field:  "date",
				Value:  "31/02/2024",
				Err:    errors.New("invalid date"),
			},
			expected: "CSV: line 4: failed to parse date='31/02/2024': invalid date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestParseError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	parseErr := &ParseError{Parser: "QIF", Field: "T", Value: "x", Err: originalErr}

	assert.True(t, errors.Is(parseErr, originalErr))
}

func TestFormatError(t *testing.T) {
	err := &FormatError{
		Format: "csv",
		Reason: "missing required columns",
		Expected: map[string][]string{
			"description": {"descrição", "histórico"},
			"date":        {"data", "date"},
		},
	}

	assert.Equal(t,
		"formato não reconhecido (csv): missing required columns. Expected columns: date=[data, date]; description=[descrição, histórico]",
		err.Error())

	bare := &FormatError{}
	assert.Equal(t, UnrecognizedFormatMsg, bare.Error())
}

func TestErrorsAs(t *testing.T) {
	wrapped := fmt.Errorf("parse statement: %w", &EmptyResultError{Format: "ofx"})

	var emptyErr *EmptyResultError
	assert.True(t, errors.As(wrapped, &emptyErr))
	assert.Equal(t, "ofx", emptyErr.Format)
	assert.Equal(t, "no transactions found in ofx statement", emptyErr.Error())

	var formatErr *FormatError
	assert.False(t, errors.As(wrapped, &formatErr))
}
