package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is a persisted financial transaction imported from a provider.
// ExternalID is unique across the ledger.
type LedgerEntry struct {
	ID          string
	ExternalID  string
	Provider    string
	ItemID      string
	AccountID   string
	Date        string
	Description string
	Amount      decimal.Decimal
	Direction   Direction
	Currency    string
	Category    string
	Status      string
	Institution string
	Balance     *decimal.Decimal
	SegmentID   string
	Raw         map[string]any
	CreatedAt   time.Time
}

// DocumentStatusOpen is the status of a document awaiting settlement.
const DocumentStatusOpen = "open"

// ReconciledDocument is the financial-document record a ledger entry reconciles to.
// At most one non-deleted document exists per DocNo.
type ReconciledDocument struct {
	ID          string
	DocNo       string
	Direction   Direction
	IssueDate   string
	DueDate     string
	Amount      decimal.Decimal
	Balance     decimal.Decimal
	Status      string
	SegmentID   string
	Description string
	Notes       string
	CreatedAt   time.Time
	DeletedAt   *time.Time
}
