package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a bank account exposed by an open-banking connection.
type Account struct {
	ID       string          `json:"id"`
	ItemID   string          `json:"itemId"`
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Number   string          `json:"number"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}

// ProviderTransaction is a provider transaction after typed extraction of the fields
// the mapper reads. Amount is signed as reported; Direction is resolved by the adapter
// from the provider's type vocabulary. Metadata keeps the raw payload.
type ProviderTransaction struct {
	ID          string
	AccountID   string
	ItemID      string
	Date        string
	Description string
	Amount      decimal.Decimal
	Type        string
	Direction   Direction
	Currency    string
	Category    string
	Status      string
	Balance     *decimal.Decimal
	Metadata    map[string]any
}

// Connection is a linked bank connection (a Pluggy item or a Belvo link).
type Connection struct {
	ItemID        string     `json:"itemId" bson:"itemId"`
	Provider      string     `json:"provider" bson:"provider"`
	ConnectorName string     `json:"connectorName" bson:"connectorName"`
	SegmentID     string     `json:"segmentId" bson:"segmentId"`
	LastSyncAt    *time.Time `json:"lastSyncAt,omitempty" bson:"lastSyncAt,omitempty"`
}
