package csvparser

import (
	"strings"
	"unicode/utf8"

	"erpfin/bank-sync/internal/textutils"
)

// minSubstringAlias is the shortest alias allowed to match inside a longer header.
const minSubstringAlias = 4

// headerMap holds the physical column indexes of each logical column, in file order.
type headerMap map[Column][]int

func (h headerMap) has(col Column) bool {
	return len(h[col]) > 0
}

// complete reports whether the header carries date, description and an amount, either
// as one amount column or as a debit and a credit column.
func (h headerMap) complete() bool {
	if !h.has(ColumnDate) || !h.has(ColumnDescription) {
		return false
	}
	return h.has(ColumnAmount) || (h.has(ColumnDebit) && h.has(ColumnCredit))
}

// value returns the first non-empty cell of col.
func (h headerMap) value(cells []string, col Column) string {
	for _, idx := range h[col] {
		if idx < len(cells) {
			if v := textutils.CollapseWhitespace(cells[idx]); v != "" {
				return v
			}
		}
	}
	return ""
}

// matchHeader assigns header cells to logical columns: exact alias matches first, then
// the longest contained alias for cells still unassigned. aliases must be normalized.
func matchHeader(cells []string, aliases AliasTable) headerMap {
	keys := make([]string, len(cells))
	for i, cell := range cells {
		keys[i] = textutils.NormalizeKey(cell)
	}

	assigned := make([]bool, len(cells))
	result := make(headerMap)

	for i, key := range keys {
		if key == "" {
			continue
		}
		for _, col := range matchPriority {
			if containsExact(aliases[col], key) {
				result[col] = append(result[col], i)
				assigned[i] = true
				break
			}
		}
	}

	for i, key := range keys {
		if assigned[i] || key == "" {
			continue
		}
		if col, ok := longestSubstring(aliases, key); ok {
			result[col] = append(result[col], i)
			assigned[i] = true
		}
	}
	return result
}

func containsExact(aliases []string, key string) bool {
	for _, alias := range aliases {
		if alias == key {
			return true
		}
	}
	return false
}

// longestSubstring returns the column owning the longest alias contained in key, so
// "valor do lancamento" is an amount rather than a description. Equal lengths go to
// the column earlier in matchPriority.
func longestSubstring(aliases AliasTable, key string) (Column, bool) {
	var (
		best    Column
		bestLen int
	)
	for _, col := range matchPriority {
		for _, alias := range aliases[col] {
			n := utf8.RuneCountInString(alias)
			if n < minSubstringAlias || n <= bestLen || !strings.Contains(key, alias) {
				continue
			}
			best, bestLen = col, n
		}
	}
	return best, bestLen > 0
}
