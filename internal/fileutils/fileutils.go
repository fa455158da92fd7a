// Package fileutils provides the file operations used by batch conversion.
package fileutils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// StatementExtensions are the file extensions picked up by ListStatementFiles.
var StatementExtensions = []string{".csv", ".txt", ".ofx", ".qfx", ".qif", ".xml", ".053"}

// FileExists checks if a file exists and is not a directory
func FileExists(filePath string) bool {
	info, err := os.Stat(filePath)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirectoryExists checks if a directory exists
func DirectoryExists(dirPath string) bool {
	info, err := os.Stat(dirPath)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// EnsureDirectoryExists creates a directory if it doesn't exist
func EnsureDirectoryExists(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// ListStatementFiles returns the statement files directly inside dirPath, sorted by
// name. Hidden files and subdirectories are skipped.
func ListStatementFiles(dirPath string) ([]string, error) {
	if !DirectoryExists(dirPath) {
		return nil, fmt.Errorf("directory does not exist: %s", dirPath)
	}
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !isStatementExtension(name) {
			continue
		}
		files = append(files, filepath.Join(dirPath, name))
	}
	sort.Strings(files)
	return files, nil
}

// OutputPath returns the CSV path for inputFile inside outputDir.
func OutputPath(inputFile, outputDir string) string {
	base := filepath.Base(inputFile)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, base+".csv")
}

func isStatementExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, known := range StatementExtensions {
		if ext == known {
			return true
		}
	}
	return false
}
