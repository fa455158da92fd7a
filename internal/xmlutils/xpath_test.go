package xmlutils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `<?xml version="1.0"?>
<Document xmlns="urn:iso:std:iso:20022:tech:xsd:camt.053.001.02">
  <BkToCstmrStmt><Stmt>
    <Ntry><Amt Ccy="BRL">10.00</Amt><AddtlNtryInf>  primeira
      linha </AddtlNtryInf></Ntry>
    <Ntry><Amt Ccy="BRL">20.00</Amt></Ntry>
  </Stmt></BkToCstmrStmt>
</Document>`

func TestExtractFromXML(t *testing.T) {
	root, err := ParseXML(strings.NewReader(sample))
	require.NoError(t, err)

	values, err := ExtractFromXML(root, "//Ntry/Amt")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.00", "20.00"}, values)

	_, err = ExtractFromXML(root, "//[")
	assert.Error(t, err)
}

func TestNodesAndFirstValue(t *testing.T) {
	root, err := ParseXML(strings.NewReader(sample))
	require.NoError(t, err)

	paths := DefaultCamt053XPaths()
	entries, err := Nodes(root, paths.Entries)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "primeira linha", FirstValue(entries[0], paths.Remittance.UnstructuredInfo, paths.Entry.AddEntryInfo))
	assert.Equal(t, "", FirstValue(entries[1], paths.Entry.AddEntryInfo))
	assert.Equal(t, "BRL", FirstValue(entries[1], paths.Entry.Currency))
	assert.True(t, Exists(root, paths.Statement))
	assert.False(t, Exists(root, "//Nope"))
}

func TestParseXML_Malformed(t *testing.T) {
	_, err := ParseXML(strings.NewReader("<Document><Unclosed></Document>"))
	assert.Error(t, err)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a b c", CleanText("\n a \t b\n\nc "))
}
