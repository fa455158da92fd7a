// Package currencyutils parses the localized numeric formats found in bank exports.
package currencyutils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseValue parses a localized amount such as "R$ 1.234,56", "1,234.56", "-45,00",
// "45,00-" or "(45,00)" into a signed decimal. It reports false when no number can be
// read.
func ParseValue(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	parenthesized := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")

	var b strings.Builder
	negative := false
	signSeen := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			b.WriteRune(r)
		case r == '-' || r == '+':
			if !signSeen {
				negative = r == '-'
				signSeen = true
			}
		}
	}

	normalized, ok := normalizeSeparators(b.String())
	if !ok {
		return decimal.Zero, false
	}
	value, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, false
	}
	if negative || parenthesized {
		value = value.Neg()
	}
	return value, true
}

// normalizeSeparators rewrites digits with "." and "," separators to a dot-decimal
// number without thousands separators.
func normalizeSeparators(s string) (string, bool) {
	if strings.IndexAny(s, "0123456789") < 0 {
		return "", false
	}

	dot := strings.IndexByte(s, '.')
	comma := strings.IndexByte(s, ',')
	switch {
	case dot >= 0 && comma >= 0:
		thousands, dec := ".", ","
		if comma < dot {
			thousands, dec = ",", "."
		}
		s = strings.ReplaceAll(s, thousands, "")
		s = strings.Replace(s, dec, ".", 1)
	case comma >= 0:
		last := strings.LastIndexByte(s, ',')
		if len(s)-last-1 <= 2 {
			s = strings.ReplaceAll(s[:last], ",", "") + "." + s[last+1:]
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	s = strings.TrimSuffix(s, ".")
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	return s, true
}
