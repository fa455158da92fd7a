// Package parse provides the statement conversion command.
package parse

import (
	"fmt"

	"erpfin/bank-sync/cmd/common"
	"erpfin/bank-sync/cmd/root"
	"erpfin/bank-sync/internal/container"
	"erpfin/bank-sync/internal/csvparser"
	"erpfin/bank-sync/internal/factory"
	"erpfin/bank-sync/internal/logging"

	"github.com/spf13/cobra"
)

var (
	input     string
	output    string
	format    string
	inputDir  string
	outputDir string
)

// Cmd represents the parse command
var Cmd = &cobra.Command{
	Use:   "parse",
	Short: "Convert a bank statement (CSV, OFX, QIF or CAMT.053) to normalized CSV",
	Long: `Convert a bank statement into the normalized transaction CSV.
The format is detected from the content unless --format is given.

With --input-dir every statement file of the directory is converted into a CSV
of the same name in --output-dir.

Example:
  bank-sync parse -i extrato.ofx -o extrato.csv
  bank-sync parse --input-dir statements/ --output-dir csv/`,
	RunE: run,
}

func init() {
	Cmd.Flags().StringVarP(&input, "input", "i", "", "statement file to parse")
	Cmd.Flags().StringVarP(&output, "output", "o", "", "output CSV file (default stdout)")
	Cmd.Flags().StringVarP(&format, "format", "f", "", "statement format: csv, ofx, qif or camt (default auto)")
	Cmd.Flags().StringVar(&inputDir, "input-dir", "", "directory of statements to convert")
	Cmd.Flags().StringVar(&outputDir, "output-dir", "", "directory for the converted CSV files")
	Cmd.MarkFlagsOneRequired("input", "input-dir")
	Cmd.MarkFlagsMutuallyExclusive("input", "input-dir")
	Cmd.MarkFlagsRequiredTogether("input-dir", "output-dir")
}

func run(cmd *cobra.Command, args []string) error {
	declared, err := factory.ParseFormat(format)
	if err != nil {
		return err
	}

	delimiter := ','
	aliases := csvparser.DefaultAliases()
	if root.AppConfig != nil {
		delimiter = root.AppConfig.OutputDelimiter()
		if aliases, err = container.LoadAliases(root.AppConfig, root.Log); err != nil {
			return err
		}
	}

	p := factory.New(root.Log, aliases)
	if inputDir != "" {
		root.Log.Info("Batch parse called", logging.Field{Key: logging.FieldFile, Value: inputDir})
		result, err := common.ProcessDirectory(p, inputDir, outputDir, declared, delimiter, root.Log)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d file(s) converted, %d failed\n", result.Converted, len(result.Failed))
		if len(result.Failed) > 0 {
			return fmt.Errorf("%d file(s) could not be converted", len(result.Failed))
		}
		return nil
	}

	root.Log.Info("Parse command called", logging.Field{Key: logging.FieldInputFile, Value: input})
	_, err = common.ProcessFileWithError(p, common.ProcessOptions{
		InputFile:  input,
		OutputFile: output,
		Format:     declared,
		Delimiter:  delimiter,
	}, cmd.OutOrStdout(), root.Log)
	return err
}
