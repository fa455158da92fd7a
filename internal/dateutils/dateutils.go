// Package dateutils normalizes the date dialects found in bank exports and provider
// payloads into ISO calendar dates.
package dateutils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Common date layouts.
const (
	DateLayoutISO      = "2006-01-02"
	DateLayoutEuropean = "02.01.2006"
	DateLayoutCompact  = "20060102"
	DateLayoutFull     = "2006-01-02 15:04:05"
)

// FallbackFormats are tried, in order, once none of the bank dialects matched.
var FallbackFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	DateLayoutFull,
	DateLayoutEuropean,
	"2.1.2006",
	"2006/01/02",
	"02-01-2006",
	"2/1/2006",
	"02/01/06",
	"2-Jan-2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

var (
	isoPattern           = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})(?:[T ].*)?$`)
	slashFullPattern     = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	slashShortPattern    = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)
	compactPattern       = regexp.MustCompile(`^\d{8}$`)
	slashWithTimePattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})[ T]\d{1,2}:\d{2}(?::\d{2})?$`)
	whitespacePattern    = regexp.MustCompile(`\s+`)
)

// NormalizeDate converts s into an ISO date (YYYY-MM-DD). Day-month dates without a
// year take the current year. It reports false when s is not a valid calendar date.
func NormalizeDate(s string) (string, bool) {
	return NormalizeDateAt(s, time.Now())
}

// NormalizeDateAt is NormalizeDate with an explicit reference time for year-less dates.
func NormalizeDateAt(s string, now time.Time) (string, bool) {
	s = CleanDateString(s)
	if s == "" {
		return "", false
	}

	if m := isoPattern.FindStringSubmatch(s); m != nil {
		return buildDate(m[1], m[2], m[3])
	}
	if m := slashFullPattern.FindStringSubmatch(s); m != nil {
		return buildDate(m[3], m[2], m[1])
	}
	if m := slashShortPattern.FindStringSubmatch(s); m != nil {
		return buildDate(strconv.Itoa(now.Year()), m[2], m[1])
	}
	if compactPattern.MatchString(s) {
		// DDMMYYYY first, then YYYYMMDD
		if plausibleYear(s[4:8]) {
			if iso, ok := buildDate(s[4:8], s[2:4], s[0:2]); ok {
				return iso, true
			}
		}
		return buildDate(s[0:4], s[4:6], s[6:8])
	}
	if m := slashWithTimePattern.FindStringSubmatch(s); m != nil {
		return buildDate(m[3], m[2], m[1])
	}

	for _, layout := range FallbackFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return ToISODate(t), true
		}
	}
	return "", false
}

// ParseISODate parses a YYYY-MM-DD date in UTC.
func ParseISODate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayoutISO, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ISO date %q: %w", s, err)
	}
	return t, nil
}

// NormalizeDateIn is NormalizeDate for provider timestamps. A timestamp carrying a
// time of day and a zone is converted to loc before its date is taken, so
// "2024-01-15T02:00:00Z" is the 14th in America/Sao_Paulo. Midnight timestamps are
// calendar dates and keep their date. A nil loc behaves like NormalizeDate.
func NormalizeDateIn(s string, loc *time.Location) (string, bool) {
	if loc != nil {
		if t, err := time.Parse(time.RFC3339Nano, CleanDateString(s)); err == nil && !isMidnight(t) {
			return ToISODate(t.In(loc)), true
		}
	}
	return NormalizeDate(s)
}

func isMidnight(t time.Time) bool {
	h, m, sec := t.Clock()
	return h == 0 && m == 0 && sec == 0 && t.Nanosecond() == 0
}

// ToISODate formats a time.Time value as an ISO date (YYYY-MM-DD)
func ToISODate(date time.Time) string {
	return date.Format(DateLayoutISO)
}

// CleanDateString trims the string and collapses inner whitespace.
func CleanDateString(dateStr string) string {
	return whitespacePattern.ReplaceAllString(strings.TrimSpace(dateStr), " ")
}

// buildDate validates the calendar date and formats it. time.Date normalizes overflow
// (31/02 becomes 02/03), so the components are compared after construction.
func buildDate(year, month, day string) (string, bool) {
	y, err := strconv.Atoi(year)
	if err != nil || y < 1000 {
		return "", false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return "", false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return "", false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return "", false
	}
	return ToISODate(t), true
}

func plausibleYear(s string) bool {
	return strings.HasPrefix(s, "19") || strings.HasPrefix(s, "20")
}
