// Package root contains the root command for the application
package root

import (
	"fmt"
	"os"

	"erpfin/bank-sync/internal/config"
	"erpfin/bank-sync/internal/container"
	"erpfin/bank-sync/internal/logging"

	"github.com/spf13/cobra"
)

// GlobalFlags holds the persistent flags shared by every command.
type GlobalFlags struct {
	ConfigFile string
	LogLevel   string
	LogFormat  string
}

var (
	// Log is the shared logger instance for commands
	Log = logging.NewLogrusAdapter("info", "text")

	// AppConfig is loaded before any subcommand runs
	AppConfig *config.Config

	// AppContainer is built on first use by GetContainer
	AppContainer *container.Container

	// Flags holds the persistent flag values
	Flags = GlobalFlags{}

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "bank-sync",
		Short: "Bank statement ingestion and open-banking sync for the ERP ledger.",
		Long: `bank-sync parses bank statements (CSV, OFX, QIF, CAMT.053) into a normalized
transaction list and synchronizes Pluggy and Belvo open-banking transactions into
the ERP ledger, reconciling each imported entry with a financial document.`,
		SilenceUsage:      true,
		PersistentPreRunE: initialize,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if AppContainer == nil {
				return
			}
			if err := AppContainer.Close(); err != nil {
				Log.WithError(err).Warn("Failed to close container")
			}
			AppContainer = nil
		},
	}
)

// Init registers the persistent flags.
func Init() {
	Cmd.PersistentFlags().StringVar(&Flags.ConfigFile, "config", "", "config file (default searches $HOME/.bank-sync, .bank-sync and .)")
	Cmd.PersistentFlags().StringVar(&Flags.LogLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	Cmd.PersistentFlags().StringVar(&Flags.LogFormat, "log-format", "", "log format (text, json)")
}

func initialize(cmd *cobra.Command, args []string) error {
	config.LoadEnv(Log)

	cfg, err := config.LoadConfig(Flags.ConfigFile)
	if err != nil {
		return err
	}
	if Flags.LogLevel != "" {
		cfg.Log.Level = Flags.LogLevel
	}
	if Flags.LogFormat != "" {
		cfg.Log.Format = Flags.LogFormat
	}
	AppConfig = cfg

	Log = config.ConfigureLoggingFromConfig(cfg)
	if adapter, ok := Log.(*logging.LogrusAdapter); ok {
		// stdout carries command output
		adapter.SetOutput(os.Stderr)
	}
	return nil
}

// GetContainer returns the application container, building it on first use.
func GetContainer() (*container.Container, error) {
	if AppContainer != nil {
		return AppContainer, nil
	}
	if AppConfig == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	c, err := container.NewContainerWithLogger(AppConfig, Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	AppContainer = c
	return c, nil
}
