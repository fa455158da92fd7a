package container

import (
	"os"
	"path/filepath"
	"testing"

	"erpfin/bank-sync/internal/config"
	"erpfin/bank-sync/internal/factory"
	"erpfin/bank-sync/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.CSV.OutputDelimiter = ","
	cfg.HTTP.TimeoutSeconds = 5
	cfg.HTTP.RequestsPerSecond = 5
	cfg.HTTP.Burst = 5
	cfg.Auth.DefaultTTLSeconds = 3600
	cfg.Pluggy.BaseURL = "https://api.pluggy.ai"
	cfg.Pluggy.PageSize = 500
	cfg.Belvo.BaseURL = "https://sandbox.belvo.com"
	cfg.Belvo.PageSize = 1000
	cfg.Sync.LookbackDays = 90
	cfg.Sync.ExistenceChunkSize = 500
	cfg.Sync.InsertBatchSize = 100
	cfg.Sync.Concurrency = 1
	cfg.Sync.Reconcile = true
	cfg.Storage.Driver = config.DriverMemory
	return cfg
}

func TestNewContainerNilConfig(t *testing.T) {
	_, err := NewContainer(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration cannot be nil")
}

func TestNewContainerWithoutCredentials(t *testing.T) {
	logger := logging.NewMockLogger()
	c, err := NewContainerWithLogger(testConfig(t), logger)
	require.NoError(t, err)
	defer c.Close()

	assert.Empty(t, c.GetProviders().Names())
	assert.True(t, logger.HasEntry("INFO", "Pluggy disabled"))
	assert.True(t, logger.HasEntry("INFO", "Belvo disabled"))
	assert.NotNil(t, c.GetEngine())
	assert.NotNil(t, c.GetStore())
	assert.Equal(t, logger, c.GetLogger())
}

func TestNewContainerRegistersConfiguredProviders(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pluggy.ClientID = "id"
	cfg.Pluggy.ClientSecret = "secret"
	cfg.Belvo.SecretID = "sid"
	cfg.Belvo.SecretPassword = "spw"

	c, err := NewContainerWithLogger(cfg, logging.NewMockLogger())
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, []string{"belvo", "pluggy"}, c.GetProviders().Names())
}

func TestNewContainerSQLiteAndAliases(t *testing.T) {
	dir := t.TempDir()
	aliasFile := filepath.Join(dir, "aliases.yaml")
	require.NoError(t, os.WriteFile(aliasFile, []byte("description:\n  - narrativa\n"), 0600))

	cfg := testConfig(t)
	cfg.Storage.Driver = config.DriverSQLite
	cfg.Storage.SQLitePath = filepath.Join(dir, "bank-sync.db")
	cfg.CSV.AliasesFile = aliasFile

	c, err := NewContainerWithLogger(cfg, logging.NewMockLogger())
	require.NoError(t, err)

	txs, err := c.GetFactory().ParseStatementFile([]byte("Data;Narrativa;Valor\n10/03/2024;Padaria;-12,50\n"), factory.Format(""))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "Padaria", txs[0].Description)

	require.NoError(t, c.Close())
}

func TestNewContainerBadAliasFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.CSV.AliasesFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := NewContainerWithLogger(cfg, logging.NewMockLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load CSV aliases")
}
