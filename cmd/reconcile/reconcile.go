// Package reconcile provides the command that links ledger entries to documents.
package reconcile

import (
	"fmt"

	"erpfin/bank-sync/cmd/common"
	"erpfin/bank-sync/cmd/root"

	"github.com/spf13/cobra"
)

var externalIDs []string

// Cmd represents the reconcile command
var Cmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Find or create the financial document of imported ledger entries",
	Long: `Reconcile ledger entries by external id. Each entry is linked to the active
document with the same number, or a new settled document is created for it.`,
	RunE: run,
}

func init() {
	Cmd.Flags().StringSliceVar(&externalIDs, "id", nil, "external id of a ledger entry (repeatable or comma separated)")
	_ = Cmd.MarkFlagRequired("id")
}

func run(cmd *cobra.Command, args []string) error {
	c, err := root.GetContainer()
	if err != nil {
		return err
	}
	outcomes := c.GetEngine().ReconcileExternalIDs(common.Context(cmd), externalIDs)
	if failed := common.PrintReconcileOutcomes(cmd.OutOrStdout(), outcomes); failed > 0 {
		return fmt.Errorf("%d of %d entries could not be reconciled", failed, len(outcomes))
	}
	return nil
}
