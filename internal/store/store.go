// Package store persists ledger entries, reconciled documents and bank connections.
package store

import (
	"context"
	"errors"
	"time"

	"erpfin/bank-sync/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert clashes with a unique key.
	ErrDuplicate = errors.New("duplicate key")
)

// Store is the persistence contract of the sync engine.
type Store interface {
	// FindLedgerEntriesByExternalID returns the subset of ids already in the ledger.
	FindLedgerEntriesByExternalID(ctx context.Context, externalIDs []string) (map[string]struct{}, error)
	// InsertLedgerEntries inserts all rows or none.
	InsertLedgerEntries(ctx context.Context, rows []models.LedgerEntry) error
	// FindLedgerEntry returns ErrNotFound when no entry has externalID.
	FindLedgerEntry(ctx context.Context, externalID string) (*models.LedgerEntry, error)

	// FindDocumentByDocNo returns the non-deleted document with docNo, or nil.
	FindDocumentByDocNo(ctx context.Context, docNo string) (*models.ReconciledDocument, error)
	// InsertDocument returns ErrDuplicate when a non-deleted document has the same DocNo.
	InsertDocument(ctx context.Context, doc models.ReconciledDocument) (*models.ReconciledDocument, error)

	ListConnections(ctx context.Context) ([]models.Connection, error)
	// GetConnection returns ErrNotFound for an unknown item.
	GetConnection(ctx context.Context, itemID string) (*models.Connection, error)
	// SaveConnection creates or replaces a connection.
	SaveConnection(ctx context.Context, conn models.Connection) error
	UpdateConnectionLastSync(ctx context.Context, itemID string, at time.Time) error

	Close() error
}
