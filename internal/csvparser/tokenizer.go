package csvparser

import "strings"

// separators in tie-break order.
var separators = []rune{';', ',', '\t'}

// DetectSeparator picks the candidate separator occurring most often outside quotes
// in line. Ties go to the earlier candidate; no candidate at all means comma.
func DetectSeparator(line string) rune {
	counts := make(map[rune]int, len(separators))
	inQuotes := false
	for _, r := range line {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}

	best, bestCount := ',', 0
	for _, sep := range separators {
		if counts[sep] > bestCount {
			best, bestCount = sep, counts[sep]
		}
	}
	return best
}

// SplitLine splits one CSV line on sep. Quotes toggle quoting, a doubled quote inside
// a quoted section is a literal quote and sep inside quotes is plain text.
func SplitLine(line string, sep rune) []string {
	var (
		fields   []string
		field    strings.Builder
		inQuotes bool
	)
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				field.WriteRune('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case r == sep && !inQuotes:
			fields = append(fields, field.String())
			field.Reset()
		default:
			field.WriteRune(r)
		}
	}
	return append(fields, field.String())
}

// maxContinuationLines bounds how far a quoted cell may span, so one stray quote
// cannot swallow the rest of the file.
const maxContinuationLines = 10

// JoinQuotedLines merges lines whose quoted cell continues on the next lines. The
// merged record stays at the index of its first line and the consumed lines become
// empty, so indexes still match the line numbers of the file.
func JoinQuotedLines(lines []string) []string {
	out := make([]string, len(lines))
	copy(out, lines)
	for i := 0; i < len(out); i++ {
		if !quoteOpen(out[i]) {
			continue
		}
		end := -1
		for j := i + 1; j < len(out) && j <= i+maxContinuationLines; j++ {
			if quoteOpen(strings.Join(out[i:j+1], "\n")) {
				continue
			}
			end = j
			break
		}
		if end < 0 {
			continue
		}
		out[i] = strings.Join(out[i:end+1], "\n")
		for j := i + 1; j <= end; j++ {
			out[j] = ""
		}
		i = end
	}
	return out
}

func quoteOpen(s string) bool {
	return strings.Count(s, `"`)%2 == 1
}
