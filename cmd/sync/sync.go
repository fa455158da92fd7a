// Package sync provides the open-banking synchronization command.
package sync

import (
	"errors"
	"fmt"

	"erpfin/bank-sync/cmd/common"
	"erpfin/bank-sync/cmd/root"
	"erpfin/bank-sync/internal/logging"
	"erpfin/bank-sync/internal/models"
	"erpfin/bank-sync/internal/openbanking"

	"github.com/spf13/cobra"
)

var (
	itemID   string
	dateFrom string
	dateTo   string
)

// Cmd represents the sync command
var Cmd = &cobra.Command{
	Use:   "sync",
	Short: "Import provider transactions into the ledger",
	Long: `Fetch transactions from Pluggy or Belvo and import the new ones into the
ledger. Without --item every stored connection is synchronized.
Dates are YYYY-MM-DD; without them the configured look-back window is used.`,
	RunE: run,
}

func init() {
	Cmd.Flags().StringVar(&itemID, "item", "", "connection item id (default all connections)")
	Cmd.Flags().StringVar(&dateFrom, "from", "", "first day to fetch (YYYY-MM-DD)")
	Cmd.Flags().StringVar(&dateTo, "to", "", "last day to fetch (YYYY-MM-DD)")
}

func run(cmd *cobra.Command, args []string) error {
	c, err := root.GetContainer()
	if err != nil {
		return err
	}
	engine := c.GetEngine()
	ctx := common.Context(cmd)

	var results []models.SyncResult
	if itemID != "" {
		result, err := engine.SyncConnection(ctx, itemID, dateFrom, dateTo)
		if isUsageError(err) {
			return err
		}
		// other failures are reported through the result
		results = []models.SyncResult{result}
	} else {
		results, err = engine.SyncAll(ctx, dateFrom, dateTo)
		if err != nil {
			return err
		}
	}

	if failed := common.PrintSyncResults(cmd.OutOrStdout(), results); failed > 0 {
		root.Log.Warn("Synchronization finished with failures", logging.Field{Key: "failed", Value: failed})
		return fmt.Errorf("%d of %d connection(s) failed to synchronize", failed, len(results))
	}
	return nil
}

// isUsageError reports errors caused by the invocation itself: a bad item id, an
// unconfigured provider or an invalid date range.
func isUsageError(err error) bool {
	var configErr *openbanking.ConfigError
	var rangeErr *openbanking.InvalidRangeError
	return errors.As(err, &configErr) || errors.As(err, &rangeErr)
}
