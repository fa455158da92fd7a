// Package config provides Viper-based hierarchical configuration management
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // zone database for hosts without one

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// DefaultTimezone dates provider timestamps in Brazilian local time.
const DefaultTimezone = "America/Sao_Paulo"

// EnvPrefix prefixes every environment override, e.g. BANKSYNC_SYNC_CONCURRENCY.
const EnvPrefix = "BANKSYNC"

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// MinCredentialTTL is the shortest lifetime a cached provider credential may have.
const MinCredentialTTL = 60 * time.Second

// Config represents the complete application configuration
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	CSV struct {
		OutputDelimiter string `mapstructure:"output_delimiter" yaml:"output_delimiter"`
		AliasesFile     string `mapstructure:"aliases_file" yaml:"aliases_file"`
	} `mapstructure:"csv" yaml:"csv"`

	HTTP struct {
		TimeoutSeconds    int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
		RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
		Burst             int     `mapstructure:"burst" yaml:"burst"`
	} `mapstructure:"http" yaml:"http"`

	Auth struct {
		DefaultTTLSeconds int `mapstructure:"default_ttl_seconds" yaml:"default_ttl_seconds"`
	} `mapstructure:"auth" yaml:"auth"`

	Pluggy struct {
		BaseURL      string `mapstructure:"base_url" yaml:"base_url"`
		ClientID     string `mapstructure:"client_id" yaml:"-"`
		ClientSecret string `mapstructure:"client_secret" yaml:"-"` // Never serialize secrets
		PageSize     int    `mapstructure:"page_size" yaml:"page_size"`
	} `mapstructure:"pluggy" yaml:"pluggy"`

	Belvo struct {
		BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
		SecretID       string `mapstructure:"secret_id" yaml:"-"`
		SecretPassword string `mapstructure:"secret_password" yaml:"-"`
		PageSize       int    `mapstructure:"page_size" yaml:"page_size"`
	} `mapstructure:"belvo" yaml:"belvo"`

	Sync struct {
		LookbackDays       int    `mapstructure:"lookback_days" yaml:"lookback_days"`
		ExistenceChunkSize int    `mapstructure:"existence_chunk_size" yaml:"existence_chunk_size"`
		InsertBatchSize    int    `mapstructure:"insert_batch_size" yaml:"insert_batch_size"`
		Concurrency        int    `mapstructure:"concurrency" yaml:"concurrency"`
		Reconcile          bool   `mapstructure:"reconcile" yaml:"reconcile"`
		Timezone           string `mapstructure:"timezone" yaml:"timezone"`
	} `mapstructure:"sync" yaml:"sync"`

	Storage struct {
		Driver        string `mapstructure:"driver" yaml:"driver"`
		SQLitePath    string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
		MongoURI      string `mapstructure:"mongo_uri" yaml:"mongo_uri"`
		MongoDatabase string `mapstructure:"mongo_database" yaml:"mongo_database"`
	} `mapstructure:"storage" yaml:"storage"`
}

// InitializeConfig initializes Viper configuration with hierarchical loading
func InitializeConfig() (*Config, error) {
	return LoadConfig("")
}

// LoadConfig loads configuration from configFile, or from the standard locations
// when configFile is empty. An explicit file that cannot be read is an error.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Config file locations
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.bank-sync")
		v.AddConfigPath(".bank-sync")
		v.AddConfigPath(".")
	}

	// 3. Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 4. Read config file (optional unless explicit)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 5. Provider secrets also come from their conventional unprefixed variables
	if err := bindSecrets(v); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 6. Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func bindSecrets(v *viper.Viper) error {
	bindings := map[string]string{
		"pluggy.client_id":      "PLUGGY_CLIENT_ID",
		"pluggy.client_secret":  "PLUGGY_CLIENT_SECRET",
		"belvo.secret_id":       "BELVO_SECRET_ID",
		"belvo.secret_password": "BELVO_SECRET_PASSWORD",
		"storage.mongo_uri":     "MONGO_URI",
	}
	for key, env := range bindings {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return fmt.Errorf("failed to bind %s environment variable: %w", env, err)
		}
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// CSV defaults
	v.SetDefault("csv.output_delimiter", ",")
	v.SetDefault("csv.aliases_file", "")

	// HTTP defaults
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.requests_per_second", 5.0)
	v.SetDefault("http.burst", 5)

	v.SetDefault("auth.default_ttl_seconds", 3600)

	// Provider defaults
	v.SetDefault("pluggy.base_url", "https://api.pluggy.ai")
	v.SetDefault("pluggy.client_id", "")
	v.SetDefault("pluggy.client_secret", "")
	v.SetDefault("pluggy.page_size", 500)
	v.SetDefault("belvo.base_url", "https://sandbox.belvo.com")
	v.SetDefault("belvo.secret_id", "")
	v.SetDefault("belvo.secret_password", "")
	v.SetDefault("belvo.page_size", 1000)

	// Sync defaults
	v.SetDefault("sync.lookback_days", 90)
	v.SetDefault("sync.existence_chunk_size", 500)
	v.SetDefault("sync.insert_batch_size", 100)
	v.SetDefault("sync.concurrency", 1)
	v.SetDefault("sync.reconcile", true)
	v.SetDefault("sync.timezone", DefaultTimezone)

	// Storage defaults
	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.sqlite_path", "bank-sync.db")
	v.SetDefault("storage.mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("storage.mongo_database", "bank_sync")
}

// validateConfig validates the configuration values
func validateConfig(config *Config) error {
	// Validate log level
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	// Validate log format
	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	// Validate CSV delimiter
	if len([]rune(config.CSV.OutputDelimiter)) != 1 {
		return fmt.Errorf("CSV delimiter must be a single character, got: %s", config.CSV.OutputDelimiter)
	}

	positives := []struct {
		key   string
		value int
	}{
		{"http.timeout_seconds", config.HTTP.TimeoutSeconds},
		{"http.burst", config.HTTP.Burst},
		{"auth.default_ttl_seconds", config.Auth.DefaultTTLSeconds},
		{"pluggy.page_size", config.Pluggy.PageSize},
		{"belvo.page_size", config.Belvo.PageSize},
		{"sync.lookback_days", config.Sync.LookbackDays},
		{"sync.existence_chunk_size", config.Sync.ExistenceChunkSize},
		{"sync.insert_batch_size", config.Sync.InsertBatchSize},
		{"sync.concurrency", config.Sync.Concurrency},
	}
	for _, p := range positives {
		if p.value < 1 {
			return fmt.Errorf("%s must be positive, got: %d", p.key, p.value)
		}
	}
	if config.HTTP.RequestsPerSecond <= 0 {
		return fmt.Errorf("http.requests_per_second must be positive, got: %f", config.HTTP.RequestsPerSecond)
	}

	if _, err := time.LoadLocation(config.Sync.Timezone); err != nil {
		return fmt.Errorf("invalid sync.timezone: %s", config.Sync.Timezone)
	}

	switch config.Storage.Driver {
	case DriverSQLite, DriverMongo, DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver: %s (must be one of sqlite, mongo, memory)", config.Storage.Driver)
	}

	return nil
}

// HTTPTimeout returns the per-request timeout for provider calls.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// DefaultCredentialTTL returns the credential lifetime used when a provider does not
// report one, never below MinCredentialTTL.
func (c *Config) DefaultCredentialTTL() time.Duration {
	ttl := time.Duration(c.Auth.DefaultTTLSeconds) * time.Second
	if ttl < MinCredentialTTL {
		return MinCredentialTTL
	}
	return ttl
}

// Location returns the zone provider timestamps are dated in, UTC when unset.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Sync.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// OutputDelimiter returns the CSV output delimiter as a rune.
func (c *Config) OutputDelimiter() rune {
	r := []rune(c.CSV.OutputDelimiter)
	if len(r) == 0 {
		return ','
	}
	return r[0]
}
