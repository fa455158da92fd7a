package syncengine

import (
	"context"
	"errors"
	"testing"

	"erpfin/bank-sync/internal/models"
	"erpfin/bank-sync/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledgerEntry(externalID string) models.LedgerEntry {
	return models.LedgerEntry{
		ID:          "entry-" + externalID,
		ExternalID:  externalID,
		Provider:    "pluggy",
		ItemID:      "item-1",
		Date:        "2024-03-02",
		Description: "Conta de luz",
		Amount:      decimal.RequireFromString("80"),
		Direction:   models.DirectionPayable,
		Category:    "Bills",
		Institution: "Banco Teste",
		SegmentID:   "seg-1",
	}
}

func TestReconcileEntryFindOrCreate(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	doc, created, err := f.engine.ReconcileEntry(ctx, ledgerEntry("tx-1"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "tx-1", doc.DocNo)
	assert.Equal(t, "2024-03-02", doc.IssueDate)
	assert.Equal(t, "2024-03-02", doc.DueDate)
	assert.True(t, doc.Amount.Equal(doc.Balance))
	assert.Equal(t, models.DocumentStatusOpen, doc.Status)
	assert.Equal(t, models.DirectionPayable, doc.Direction)
	assert.Equal(t, "seg-1", doc.SegmentID)
	assert.Equal(t, "Importado via pluggy | Instituição: Banco Teste | Categoria: Bills", doc.Notes)

	again, created, err := f.engine.ReconcileEntry(ctx, ledgerEntry("tx-1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, doc.ID, again.ID)
	assert.Len(t, f.store.Documents(), 1)
}

func TestReconcileEntryConcurrentCreation(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	winner := models.ReconciledDocument{ID: "winner", DocNo: "tx-1", Status: models.DocumentStatusOpen}
	f.store.BeforeInsertDocument = func(models.ReconciledDocument) {
		f.store.BeforeInsertDocument = nil
		_, err := f.store.InsertDocument(ctx, winner)
		require.NoError(t, err)
	}

	doc, created, err := f.engine.ReconcileEntry(ctx, ledgerEntry("tx-1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "winner", doc.ID)
	assert.Len(t, f.store.Documents(), 1)
}

func TestReconcileExternalIDs(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	require.NoError(t, f.store.InsertLedgerEntries(ctx, []models.LedgerEntry{ledgerEntry("tx-1")}))

	outcomes := f.engine.ReconcileExternalIDs(ctx, []string{"tx-1", "missing", "tx-1"})
	require.Len(t, outcomes, 3)

	require.NoError(t, outcomes[0].Err)
	assert.True(t, outcomes[0].Created)
	assert.True(t, errors.Is(outcomes[1].Err, store.ErrNotFound))
	require.NoError(t, outcomes[2].Err)
	assert.False(t, outcomes[2].Created)
	assert.Equal(t, outcomes[0].Document.ID, outcomes[2].Document.ID)
}
