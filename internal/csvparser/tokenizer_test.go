package csvparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectSeparator(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected rune
	}{
		{"semicolon", "Data;Descrição;Valor", ';'},
		{"comma", "Data,Descrição,Valor", ','},
		{"tab", "Data\tDescrição\tValor", '\t'},
		{"tie prefers semicolon", "a;b,c", ';'},
		{"tie comma over tab", "a,b\tc", ','},
		{"quoted separators ignored", "\"a;b;c\",d,e", ','},
		{"none defaults to comma", "Data", ','},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectSeparator(tt.line))
		})
	}
}

func TestSplitLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		sep      rune
		expected []string
	}{
		{"simple", "a;b;c", ';', []string{"a", "b", "c"}},
		{"quoted separator", `10/03/2024,"Pagamento, ref. 123",100.00`, ',', []string{"10/03/2024", "Pagamento, ref. 123", "100.00"}},
		{"escaped quote", `"Loja ""Central""";1`, ';', []string{`Loja "Central"`, "1"}},
		{"empty fields", ";;", ';', []string{"", "", ""}},
		{"single field", "abc", ',', []string{"abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitLine(tt.line, tt.sep))
		})
	}
}

func TestMatchHeader(t *testing.T) {
	aliases := DefaultAliases().normalized()

	h := matchHeader([]string{"Data", "Histórico", "Valor Débito (R$)", "Valor Crédito (R$)", "Saldo Final"}, aliases)

	assert.Equal(t, []int{0}, h[ColumnDate])
	assert.Equal(t, []int{1}, h[ColumnDescription])
	assert.Equal(t, []int{2}, h[ColumnDebit])
	assert.Equal(t, []int{3}, h[ColumnCredit])
	assert.Equal(t, []int{4}, h[ColumnBalance])
	assert.True(t, h.complete())
}

func TestMatchHeader_SeveralPhysicalColumns(t *testing.T) {
	aliases := DefaultAliases().normalized()
	h := matchHeader([]string{"Data", "Descrição", "Detalhes", "Valor"}, aliases)

	assert.Equal(t, []int{1, 2}, h[ColumnDescription])
	assert.Equal(t, "extra", h.value([]string{"10/03/2024", " ", "extra", "1"}, ColumnDescription))
}

func TestJoinQuotedLines(t *testing.T) {
	tests := []struct {
		name     string
		lines    []string
		expected []string
	}{
		{"no quotes", []string{"a;b", "c;d"}, []string{"a;b", "c;d"}},
		{"balanced quotes", []string{`a;"b;c"`, "d"}, []string{`a;"b;c"`, "d"}},
		{
			"cell spanning two lines",
			[]string{"10/03/2024;\"Pix recebido", "ref. 123\";100,00", "11/03/2024;Tarifa;-2,00"},
			[]string{"10/03/2024;\"Pix recebido\nref. 123\";100,00", "", "11/03/2024;Tarifa;-2,00"},
		},
		{"stray quote left alone", []string{`a;"b`, "c", "d"}, []string{`a;"b`, "c", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, JoinQuotedLines(tt.lines))
		})
	}
}
