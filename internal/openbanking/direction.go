package openbanking

import (
	"regexp"
	"strings"

	"erpfin/bank-sync/internal/models"

	"github.com/shopspring/decimal"
)

var itemIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidateItemID checks an open-banking item/link id before it is put in a URL.
func ValidateItemID(itemID string) error {
	if itemID == "" {
		return &ConfigError{Field: "item_id", Reason: "must not be empty"}
	}
	if !itemIDPattern.MatchString(itemID) {
		return &ConfigError{Field: "item_id", Reason: "must be 1-128 characters of letters, digits, '_' or '-'"}
	}
	return nil
}

// Vocabulary maps provider transaction types to directions. Keys are lower case.
type Vocabulary map[string]models.Direction

// NewVocabulary builds a Vocabulary from receivable and payable type names.
func NewVocabulary(receivable, payable []string) Vocabulary {
	v := make(Vocabulary, len(receivable)+len(payable))
	for _, t := range receivable {
		v[strings.ToLower(t)] = models.DirectionReceivable
	}
	for _, t := range payable {
		v[strings.ToLower(t)] = models.DirectionPayable
	}
	return v
}

// Lookup returns the direction for a type name, ignoring case and surrounding spaces.
func (v Vocabulary) Lookup(txType string) (models.Direction, bool) {
	d, ok := v[strings.ToLower(strings.TrimSpace(txType))]
	return d, ok
}

// ResolveDirection uses the provider type when the vocabulary knows it, else the sign
// of amount.
func ResolveDirection(vocab Vocabulary, txType string, amount decimal.Decimal) models.Direction {
	if d, ok := vocab.Lookup(txType); ok {
		return d
	}
	return models.DirectionFromSign(amount)
}
