package root_test

import (
	"os"
	"path/filepath"
	"testing"

	"erpfin/bank-sync/cmd/root"
	"erpfin/bank-sync/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	root.Init()
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "bank-sync", root.Cmd.Use)
	assert.Contains(t, root.Cmd.Long, "Pluggy and Belvo")
	assert.NotNil(t, root.Cmd.PersistentPreRunE)
	assert.NotNil(t, root.Cmd.PersistentPostRun)
}

func TestRootCommand_Flags(t *testing.T) {
	for _, name := range []string{"config", "log-level", "log-format"} {
		assert.NotNil(t, root.Cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestInitializeLoadsConfigAndOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("storage:\n  driver: memory\nsync:\n  concurrency: 3\n"), 0600))

	t.Cleanup(func() {
		root.Flags = root.GlobalFlags{}
		root.AppConfig = nil
		root.AppContainer = nil
	})
	root.Flags = root.GlobalFlags{ConfigFile: cfgFile, LogLevel: "debug", LogFormat: "json"}

	require.NoError(t, root.Cmd.PersistentPreRunE(root.Cmd, nil))
	require.NotNil(t, root.AppConfig)
	assert.Equal(t, config.DriverMemory, root.AppConfig.Storage.Driver)
	assert.Equal(t, 3, root.AppConfig.Sync.Concurrency)
	assert.Equal(t, "debug", root.AppConfig.Log.Level)
	assert.Equal(t, "json", root.AppConfig.Log.Format)

	c, err := root.GetContainer()
	require.NoError(t, err)
	again, err := root.GetContainer()
	require.NoError(t, err)
	assert.Same(t, c, again)

	root.Cmd.PersistentPostRun(root.Cmd, nil)
	assert.Nil(t, root.AppContainer)
}

func TestInitializeMissingConfigFile(t *testing.T) {
	t.Cleanup(func() { root.Flags = root.GlobalFlags{} })
	root.Flags = root.GlobalFlags{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml")}
	assert.Error(t, root.Cmd.PersistentPreRunE(root.Cmd, nil))
}

func TestGetContainerWithoutConfig(t *testing.T) {
	root.AppConfig = nil
	root.AppContainer = nil
	_, err := root.GetContainer()
	assert.Error(t, err)
}
