// Package connections provides commands to register and list provider connections.
package connections

import (
	"fmt"
	"strings"

	"erpfin/bank-sync/cmd/common"
	"erpfin/bank-sync/cmd/root"
	"erpfin/bank-sync/internal/belvo"
	"erpfin/bank-sync/internal/logging"
	"erpfin/bank-sync/internal/models"
	"erpfin/bank-sync/internal/openbanking"
	"erpfin/bank-sync/internal/pluggy"

	"github.com/spf13/cobra"
)

var (
	itemID        string
	provider      string
	connectorName string
	segmentID     string
)

// Cmd groups the connection subcommands
var Cmd = &cobra.Command{
	Use:   "connections",
	Short: "Manage open-banking connections",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered connections",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := root.GetContainer()
		if err != nil {
			return err
		}
		conns, err := c.GetStore().ListConnections(common.Context(cmd))
		if err != nil {
			return fmt.Errorf("failed to list connections: %w", err)
		}
		common.PrintConnections(cmd.OutOrStdout(), conns)
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Register or update a connection",
	RunE:  runAdd,
}

func init() {
	addCmd.Flags().StringVar(&itemID, "item", "", "provider item (Pluggy) or link (Belvo) id")
	addCmd.Flags().StringVar(&provider, "provider", "", "provider name: pluggy or belvo")
	addCmd.Flags().StringVar(&connectorName, "connector", "", "institution display name")
	addCmd.Flags().StringVar(&segmentID, "segment", "", "business segment of imported entries")
	_ = addCmd.MarkFlagRequired("item")
	_ = addCmd.MarkFlagRequired("provider")

	Cmd.AddCommand(listCmd, addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	if err := openbanking.ValidateItemID(itemID); err != nil {
		return err
	}
	name := strings.ToLower(strings.TrimSpace(provider))
	if name != pluggy.ProviderName && name != belvo.ProviderName {
		return &openbanking.ConfigError{Provider: provider, Field: "provider", Reason: "must be pluggy or belvo"}
	}

	c, err := root.GetContainer()
	if err != nil {
		return err
	}
	ctx := common.Context(cmd)
	st := c.GetStore()

	// keep the last sync time of an existing connection
	conn := models.Connection{ItemID: itemID}
	if existing, err := st.GetConnection(ctx, itemID); err == nil {
		conn = *existing
	}
	conn.Provider = name
	conn.ConnectorName = connectorName
	conn.SegmentID = segmentID

	if err := st.SaveConnection(ctx, conn); err != nil {
		return fmt.Errorf("failed to save connection: %w", err)
	}
	root.Log.Info("Connection saved",
		logging.Field{Key: logging.FieldItemID, Value: itemID},
		logging.Field{Key: logging.FieldProvider, Value: name})
	fmt.Fprintf(cmd.OutOrStdout(), "Connection %s saved (%s)\n", itemID, name)
	return nil
}
