package config

import (
	"os"
	"path/filepath"

	"erpfin/bank-sync/internal/logging"

	"github.com/joho/godotenv"
)

// LoadEnv loads environment variables from a .env file in the working directory or its
// parent, if one exists. Variables already set in the environment win. It returns the
// file that was loaded, or "".
func LoadEnv(logger logging.Logger) string {
	logger = logging.OrDefault(logger)
	for _, envFile := range []string{".env", filepath.Join("..", ".env")} {
		if _, err := os.Stat(envFile); err != nil {
			continue
		}
		if err := godotenv.Load(envFile); err != nil {
			logger.WithError(err).Warn("Error loading .env file")
			return ""
		}
		logger.Debug("Loaded environment variables", logging.Field{Key: logging.FieldFile, Value: envFile})
		return envFile
	}
	return ""
}

// ConfigureLoggingFromConfig builds the application logger from the log section.
func ConfigureLoggingFromConfig(config *Config) logging.Logger {
	return logging.NewLogrusAdapter(config.Log.Level, config.Log.Format)
}
