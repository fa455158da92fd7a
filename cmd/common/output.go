package common

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"erpfin/bank-sync/internal/models"
	"erpfin/bank-sync/internal/syncengine"

	"github.com/spf13/cobra"
)

// PrintSyncResults writes one line per connection and returns how many runs failed.
func PrintSyncResults(w io.Writer, results []models.SyncResult) int {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tIMPORTED\tALREADY SYNCED\tDUPLICATES\tERRORS\tRECONCILED\tSTATUS")
	failed := 0
	for _, r := range results {
		status := "ok"
		if r.Failed {
			failed++
			status = "failed: " + r.Error
		} else if r.ReconcileErrors > 0 {
			status = fmt.Sprintf("ok (%d reconcile errors)", r.ReconcileErrors)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.ItemID, r.Imported, r.AlreadySynced, r.Duplicates, r.Errors, r.Reconciled, status)
	}
	_ = tw.Flush()
	return failed
}

// PrintReconcileOutcomes writes one line per requested entry and returns how many failed.
func PrintReconcileOutcomes(w io.Writer, outcomes []syncengine.ReconcileOutcome) int {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EXTERNAL ID\tDOCUMENT\tRESULT")
	failed := 0
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			failed++
			fmt.Fprintf(tw, "%s\t-\terror: %v\n", o.ExternalID, o.Err)
		case o.Created:
			fmt.Fprintf(tw, "%s\t%s\tcreated\n", o.ExternalID, o.Document.ID)
		default:
			fmt.Fprintf(tw, "%s\t%s\texisting\n", o.ExternalID, o.Document.ID)
		}
	}
	_ = tw.Flush()
	return failed
}

// PrintConnections lists connections with their last sync time.
func PrintConnections(w io.Writer, conns []models.Connection) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tPROVIDER\tCONNECTOR\tSEGMENT\tLAST SYNC")
	for _, c := range conns {
		last := "never"
		if c.LastSyncAt != nil {
			last = c.LastSyncAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.ItemID, c.Provider, c.ConnectorName, c.SegmentID, last)
	}
	_ = tw.Flush()
}

// Context returns the command context, or a background context when the command
// was not started through Execute.
func Context(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
