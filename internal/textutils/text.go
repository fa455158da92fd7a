// Package textutils provides text decoding and normalization helpers shared by the
// statement parsers.
package textutils

import (
	"bytes"
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeText turns raw statement bytes into a string. A UTF-8 byte order mark is
// dropped; input that is not valid UTF-8 is decoded as Windows-1252, the legacy
// encoding of most Brazilian bank exports.
func DecodeText(content []byte) string {
	content = bytes.TrimPrefix(content, utf8BOM)
	if utf8.Valid(content) {
		return string(content)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(content)
	if err != nil {
		return strings.ToValidUTF8(string(content), "�")
	}
	return string(decoded)
}

// CollapseWhitespace trims s and replaces every whitespace run with one space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FoldAccents removes diacritics, so "Descrição" becomes "Descricao".
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// NormalizeKey lowercases, trims and accent-folds s for case-insensitive lookups.
func NormalizeKey(s string) string {
	return strings.ToLower(FoldAccents(CollapseWhitespace(s)))
}

// UnescapeEntities decodes HTML/SGML entities such as &amp; and &#231;.
func UnescapeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return html.UnescapeString(s)
}

// SplitLines splits text on LF, CRLF or CR line endings.
func SplitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Split(s, "\n")
}

// Snippet returns at most n runes of s for log messages.
func Snippet(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
