package textutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"plain utf-8", []byte("Descrição"), "Descrição"},
		{"utf-8 with BOM", append([]byte{0xEF, 0xBB, 0xBF}, []byte("Data;Valor")...), "Data;Valor"},
		{"windows-1252", []byte{'D', 'e', 's', 'c', 'r', 'i', 0xE7, 0xE3, 'o'}, "Descrição"},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DecodeText(tt.input))
		})
	}
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "PIX recebido", CollapseWhitespace("  PIX \t\n recebido "))
	assert.Equal(t, "", CollapseWhitespace(" \t "))
}

func TestFoldAccents(t *testing.T) {
	assert.Equal(t, "Descricao Historico Credito", FoldAccents("Descrição Histórico Crédito"))
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "data do lancamento", NormalizeKey("  Data  do Lançamento "))
}

func TestUnescapeEntities(t *testing.T) {
	assert.Equal(t, "Padaria & Cia", UnescapeEntities("Padaria &amp; Cia"))
	assert.Equal(t, "Padaria", UnescapeEntities("Padaria"))
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c", ""}, SplitLines("a\r\nb\rc\n"))
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "abc", Snippet("abc", 5))
	assert.Equal(t, "ção...", Snippet("çãoXYZ", 3))
}
