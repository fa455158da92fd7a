// Package container provides dependency injection for the bank-sync application.
// It centralizes the creation and wiring of all application dependencies,
// making them explicit and testable.
package container

import (
	"context"
	"fmt"
	"net/http"

	"erpfin/bank-sync/internal/belvo"
	"erpfin/bank-sync/internal/config"
	"erpfin/bank-sync/internal/csvparser"
	"erpfin/bank-sync/internal/factory"
	"erpfin/bank-sync/internal/logging"
	"erpfin/bank-sync/internal/openbanking"
	"erpfin/bank-sync/internal/pluggy"
	"erpfin/bank-sync/internal/store"
	"erpfin/bank-sync/internal/syncengine"

	"golang.org/x/time/rate"
)

// Container holds all application dependencies and provides methods to access them.
//
// Container is immutable after creation - all fields are private and can only
// be accessed through getter methods.
type Container struct {
	logger    logging.Logger
	config    *config.Config
	store     store.Store
	factory   *factory.Factory
	providers *openbanking.Registry
	engine    *syncengine.Engine
}

// NewContainer creates and wires all application dependencies.
//
// Providers whose credentials are not configured are left out of the registry;
// syncing one of their connections then fails with a ConfigError.
func NewContainer(cfg *config.Config) (*Container, error) {
	return NewContainerWithLogger(cfg, nil)
}

// NewContainerWithLogger is NewContainer with an explicit logger, used by tests.
func NewContainerWithLogger(cfg *config.Config, logger logging.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	// Create logger first as it's needed by other components
	if logger == nil {
		logger = logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)
	}

	aliases, err := LoadAliases(cfg, logger)
	if err != nil {
		return nil, err
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	providers := newProviders(cfg, logger)

	engine := syncengine.New(st, providers, syncengine.Options{
		LookbackDays:       cfg.Sync.LookbackDays,
		ExistenceChunkSize: cfg.Sync.ExistenceChunkSize,
		InsertBatchSize:    cfg.Sync.InsertBatchSize,
		Concurrency:        cfg.Sync.Concurrency,
		Reconcile:          cfg.Sync.Reconcile,
		Location:           cfg.Location(),
	}, logger)

	logger.Info("Container initialized successfully",
		logging.Field{Key: logging.FieldStorage, Value: cfg.Storage.Driver},
		logging.Field{Key: "providers", Value: providers.Names()})

	return &Container{
		logger:    logger,
		config:    cfg,
		store:     st,
		factory:   factory.New(logger, aliases),
		providers: providers,
		engine:    engine,
	}, nil
}

// LoadAliases returns the CSV header aliases, extended by the configured aliases file.
func LoadAliases(cfg *config.Config, logger logging.Logger) (csvparser.AliasTable, error) {
	if cfg.CSV.AliasesFile == "" {
		return csvparser.DefaultAliases(), nil
	}
	aliases, err := csvparser.LoadAliasFile(cfg.CSV.AliasesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load CSV aliases: %w", err)
	}
	logging.OrDefault(logger).Info("Loaded extra CSV header aliases", logging.Field{Key: logging.FieldFile, Value: cfg.CSV.AliasesFile})
	return aliases, nil
}

func openStore(cfg *config.Config, logger logging.Logger) (store.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return store.NewMemoryStore(), nil
	case config.DriverMongo:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout())
		defer cancel()
		return store.OpenMongo(ctx, cfg.Storage.MongoURI, cfg.Storage.MongoDatabase, logger)
	case config.DriverSQLite, "":
		return store.OpenSQLite(cfg.Storage.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}
}

// newProviders builds one adapter per configured provider, each with its own
// credential cache and rate limiter.
func newProviders(cfg *config.Config, logger logging.Logger) *openbanking.Registry {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout()}
	clientOptions := func() openbanking.ClientOptions {
		return openbanking.ClientOptions{
			HTTPClient: httpClient,
			Limiter:    rate.NewLimiter(rate.Limit(cfg.HTTP.RequestsPerSecond), cfg.HTTP.Burst),
			Logger:     logger,
		}
	}

	registry := openbanking.NewRegistry()

	pluggyAdapter, err := pluggy.New(pluggy.Config{
		BaseURL:      cfg.Pluggy.BaseURL,
		ClientID:     cfg.Pluggy.ClientID,
		ClientSecret: cfg.Pluggy.ClientSecret,
		PageSize:     cfg.Pluggy.PageSize,
	}, openbanking.NewCredentialCache(cfg.DefaultCredentialTTL()), clientOptions())
	if err != nil {
		logger.Info("Pluggy disabled", logging.Field{Key: logging.FieldError, Value: err.Error()})
	} else {
		registry.Register(pluggyAdapter)
	}

	belvoAdapter, err := belvo.New(belvo.Config{
		BaseURL:        cfg.Belvo.BaseURL,
		SecretID:       cfg.Belvo.SecretID,
		SecretPassword: cfg.Belvo.SecretPassword,
		PageSize:       cfg.Belvo.PageSize,
	}, openbanking.NewCredentialCache(cfg.DefaultCredentialTTL()), clientOptions())
	if err != nil {
		logger.Info("Belvo disabled", logging.Field{Key: logging.FieldError, Value: err.Error()})
	} else {
		registry.Register(belvoAdapter)
	}

	return registry
}

// GetLogger returns the container's logger instance.
func (c *Container) GetLogger() logging.Logger {
	return c.logger
}

// GetConfig returns the container's configuration instance.
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetStore returns the configured store.
func (c *Container) GetStore() store.Store {
	return c.store
}

// GetFactory returns the statement parser factory.
func (c *Container) GetFactory() *factory.Factory {
	return c.factory
}

// GetProviders returns the registry of configured open-banking providers.
func (c *Container) GetProviders() *openbanking.Registry {
	return c.providers
}

// GetEngine returns the sync engine.
func (c *Container) GetEngine() *syncengine.Engine {
	return c.engine
}

// Close releases the store.
func (c *Container) Close() error {
	if err := c.store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	c.logger.Info("Container closed")
	return nil
}
