package openbanking

import (
	"context"
	"sort"

	"erpfin/bank-sync/internal/models"
)

// Provider is an open-banking aggregator adapter.
type Provider interface {
	Name() string
	ListAccounts(ctx context.Context, itemID string) ([]models.Account, error)
	FetchTransactions(ctx context.Context, itemID, accountID string, window DateWindow) ([]models.ProviderTransaction, error)
}

// Registry resolves providers by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry returns a registry holding the given providers; nil entries are skipped.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a provider.
func (r *Registry) Register(p Provider) {
	if p == nil {
		return
	}
	r.providers[p.Name()] = p
}

// Get returns the named provider or a ConfigError when it is not configured.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, &ConfigError{Provider: name, Field: "provider", Reason: "provider is not configured"}
	}
	return p, nil
}

// Names lists the registered providers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
