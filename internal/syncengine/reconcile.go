package syncengine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"erpfin/bank-sync/internal/logging"
	"erpfin/bank-sync/internal/models"
	"erpfin/bank-sync/internal/store"
)

// ReconcileOutcome is the result of reconciling one ledger entry.
type ReconcileOutcome struct {
	ExternalID string
	Document   *models.ReconciledDocument
	Created    bool
	Err        error
}

// Reconcile reconciles each entry, collecting per-entry outcomes.
func (e *Engine) Reconcile(ctx context.Context, entries []models.LedgerEntry) []ReconcileOutcome {
	outcomes := make([]ReconcileOutcome, 0, len(entries))
	for _, entry := range entries {
		doc, created, err := e.ReconcileEntry(ctx, entry)
		outcomes = append(outcomes, ReconcileOutcome{ExternalID: entry.ExternalID, Document: doc, Created: created, Err: err})
	}
	return outcomes
}

// ReconcileEntry returns the non-deleted document whose DocNo is the entry's external
// id, creating it when none exists. created reports whether this call inserted it.
func (e *Engine) ReconcileEntry(ctx context.Context, entry models.LedgerEntry) (doc *models.ReconciledDocument, created bool, err error) {
	logger := e.logger.WithField(logging.FieldExternalID, entry.ExternalID)

	existing, err := e.store.FindDocumentByDocNo(ctx, entry.ExternalID)
	if err != nil {
		logger.WithError(err).Error("Failed to look up document")
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	doc, err = e.store.InsertDocument(ctx, e.newDocument(entry))
	if errors.Is(err, store.ErrDuplicate) {
		// Created concurrently; return the stored one.
		winner, findErr := e.store.FindDocumentByDocNo(ctx, entry.ExternalID)
		if findErr != nil {
			return nil, false, findErr
		}
		if winner == nil {
			return nil, false, fmt.Errorf("document %s: %w but not found on re-read", entry.ExternalID, store.ErrDuplicate)
		}
		logger.Debug("Document created concurrently, using existing one")
		return winner, false, nil
	}
	if err != nil {
		logger.WithError(err).Error("Failed to create document")
		return nil, false, err
	}
	logger.Debug("Created document", logging.Field{Key: logging.FieldDocNo, Value: doc.DocNo})
	return doc, true, nil
}

// ReconcileExternalIDs reconciles the stored ledger entries with the given external ids.
func (e *Engine) ReconcileExternalIDs(ctx context.Context, externalIDs []string) []ReconcileOutcome {
	outcomes := make([]ReconcileOutcome, 0, len(externalIDs))
	for _, id := range externalIDs {
		entry, err := e.store.FindLedgerEntry(ctx, id)
		if err != nil {
			outcomes = append(outcomes, ReconcileOutcome{ExternalID: id, Err: err})
			continue
		}
		doc, created, err := e.ReconcileEntry(ctx, *entry)
		outcomes = append(outcomes, ReconcileOutcome{ExternalID: id, Document: doc, Created: created, Err: err})
	}
	return outcomes
}

func (e *Engine) newDocument(entry models.LedgerEntry) models.ReconciledDocument {
	return models.ReconciledDocument{
		ID:          e.opts.NewID(),
		DocNo:       entry.ExternalID,
		Direction:   entry.Direction,
		IssueDate:   entry.Date,
		DueDate:     entry.Date,
		Amount:      entry.Amount,
		Balance:     entry.Amount,
		Status:      models.DocumentStatusOpen,
		SegmentID:   entry.SegmentID,
		Description: entry.Description,
		Notes:       provenanceNotes(entry),
		CreatedAt:   e.opts.Now(),
	}
}

func provenanceNotes(entry models.LedgerEntry) string {
	parts := []string{"Importado via " + entry.Provider}
	if entry.Institution != "" {
		parts = append(parts, "Instituição: "+entry.Institution)
	}
	if entry.Category != "" {
		parts = append(parts, "Categoria: "+entry.Category)
	}
	return strings.Join(parts, " | ")
}
