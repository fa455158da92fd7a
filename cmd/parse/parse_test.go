package parse

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"erpfin/bank-sync/cmd/root"
	"erpfin/bank-sync/internal/config"
	"erpfin/bank-sync/internal/parsererror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "extrato.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	t.Cleanup(func() {
		input, output, format, inputDir, outputDir = "", "", "", "", ""
		root.AppConfig = nil
	})
	input = path
	return path
}

func TestParseCommand_Flags(t *testing.T) {
	for _, name := range []string{"input", "output", "format", "input-dir", "output-dir"} {
		assert.NotNil(t, Cmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "i", Cmd.Flags().Lookup("input").Shorthand)
}

func TestParseCommand_CSVToStdout(t *testing.T) {
	setup(t, "Data;Descrição;Valor\n10/03/2024;PADARIA   CENTRAL;-12,50\n11/03/2024;Salário;1.000,00\n")

	var out bytes.Buffer
	Cmd.SetOut(&out)
	t.Cleanup(func() { Cmd.SetOut(nil) })
	require.NoError(t, run(Cmd, nil))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "2024-03-10,PADARIA CENTRAL,12.50,payable"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "2024-03-11,Salário,1000.00,receivable"), lines[2])
}

func TestParseCommand_ConfiguredDelimiter(t *testing.T) {
	setup(t, "Data;Descrição;Valor\n10/03/2024;Padaria;-12,50\n")
	cfg := &config.Config{}
	cfg.CSV.OutputDelimiter = ";"
	root.AppConfig = cfg
	output = filepath.Join(t.TempDir(), "out.csv")

	require.NoError(t, run(Cmd, nil))
	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "2024-03-10;Padaria;12.50;payable")
}

func TestParseCommand_UnknownFormat(t *testing.T) {
	setup(t, "irrelevant")
	format = "xls"
	err := run(Cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xls")
}

func TestParseCommand_UnrecognizedLayout(t *testing.T) {
	setup(t, "foo;bar\n1;2\n")
	format = "csv"
	err := run(Cmd, nil)
	var formatErr *parsererror.FormatError
	assert.ErrorAs(t, err, &formatErr)
}

func TestParseCommand_Directory(t *testing.T) {
	path := setup(t, "Data;Descrição;Valor\n10/03/2024;Padaria;-12,50\n")
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "vazio.csv"), []byte("Data;Descrição;Valor\n"), 0600))
	input = ""
	inputDir = filepath.Dir(path)
	outputDir = filepath.Join(t.TempDir(), "csv")

	var out bytes.Buffer
	Cmd.SetOut(&out)
	t.Cleanup(func() { Cmd.SetOut(nil) })
	err := run(Cmd, nil)
	require.Error(t, err)
	assert.Contains(t, out.String(), "1 file(s) converted, 1 failed")

	data, err := os.ReadFile(filepath.Join(outputDir, "extrato.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "2024-03-10,Padaria,12.50,payable")
}
