package common

import (
	"fmt"

	"erpfin/bank-sync/internal/factory"
	"erpfin/bank-sync/internal/fileutils"
	"erpfin/bank-sync/internal/logging"
)

// BatchResult summarizes a directory conversion.
type BatchResult struct {
	Converted int
	Failed    []string
}

// ProcessDirectory converts every statement file in inputDir into a CSV of the same
// base name in outputDir. A file that fails to parse is logged and skipped.
func ProcessDirectory(p StatementParser, inputDir, outputDir string, format factory.Format, delimiter rune, log logging.Logger) (BatchResult, error) {
	log = logging.OrDefault(log)
	var result BatchResult

	files, err := fileutils.ListStatementFiles(inputDir)
	if err != nil {
		return result, err
	}
	if len(files) == 0 {
		log.Warn("No supported files found in input directory", logging.Field{Key: logging.FieldFile, Value: inputDir})
		return result, nil
	}
	if err := fileutils.EnsureDirectoryExists(outputDir); err != nil {
		return result, err
	}
	log.Info("Found files for processing", logging.Field{Key: logging.FieldCount, Value: len(files)})

	for _, file := range files {
		_, err := ProcessFileWithError(p, ProcessOptions{
			InputFile:  file,
			OutputFile: fileutils.OutputPath(file, outputDir),
			Format:     format,
			Delimiter:  delimiter,
		}, nil, log)
		if err != nil {
			log.WithError(err).Warn("Skipping file", logging.Field{Key: logging.FieldInputFile, Value: file})
			result.Failed = append(result.Failed, file)
			continue
		}
		result.Converted++
	}

	log.Info(fmt.Sprintf("Batch processing completed. %d files converted.", result.Converted),
		logging.Field{Key: "failed", Value: len(result.Failed)})
	return result, nil
}
