// Package syncengine imports open-banking transactions into the ledger exactly once
// and reconciles each imported entry to a financial document.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"erpfin/bank-sync/internal/dateutils"
	"erpfin/bank-sync/internal/logging"
	"erpfin/bank-sync/internal/models"
	"erpfin/bank-sync/internal/openbanking"
	"erpfin/bank-sync/internal/store"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Defaults applied to non-positive Options values.
const (
	DefaultLookbackDays       = 90
	DefaultExistenceChunkSize = 500
	DefaultInsertBatchSize    = 100
)

// Options tunes the engine.
type Options struct {
	LookbackDays       int
	ExistenceChunkSize int
	InsertBatchSize    int
	Concurrency        int
	Reconcile          bool
	// Location dates provider timestamps; nil means UTC.
	Location *time.Location

	// Now and NewID are replaceable for tests.
	Now   func() time.Time
	NewID func() string
}

func (o Options) withDefaults() Options {
	if o.LookbackDays <= 0 {
		o.LookbackDays = DefaultLookbackDays
	}
	if o.ExistenceChunkSize <= 0 {
		o.ExistenceChunkSize = DefaultExistenceChunkSize
	}
	if o.InsertBatchSize <= 0 {
		o.InsertBatchSize = DefaultInsertBatchSize
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// Engine runs synchronizations against a store.
type Engine struct {
	store     store.Store
	providers *openbanking.Registry
	opts      Options
	logger    logging.Logger
}

// New returns an engine. providers may be empty; syncing a connection of an
// unregistered provider fails with a ConfigError.
func New(st store.Store, providers *openbanking.Registry, opts Options, logger logging.Logger) *Engine {
	if providers == nil {
		providers = openbanking.NewRegistry()
	}
	return &Engine{
		store:     st,
		providers: providers,
		opts:      opts.withDefaults(),
		logger:    logging.OrDefault(logger),
	}
}

// SyncConnection imports the transactions of one connection within [dateFrom, dateTo].
// Empty dates default to the look-back window ending today. The returned result is
// populated even when an error is returned.
func (e *Engine) SyncConnection(ctx context.Context, itemID, dateFrom, dateTo string) (models.SyncResult, error) {
	result := models.SyncResult{ItemID: itemID, StartedAt: e.opts.Now()}
	logger := e.logger.WithField(logging.FieldItemID, itemID)

	finish := func(err error) (models.SyncResult, error) {
		result.FinishedAt = e.opts.Now()
		if err != nil {
			result.Fail(err)
			logger.WithError(err).Error("Sync failed")
		}
		return result, err
	}

	if err := openbanking.ValidateItemID(itemID); err != nil {
		return finish(err)
	}
	window, err := openbanking.ResolveWindow(dateFrom, dateTo, e.opts.Now(), e.opts.LookbackDays)
	if err != nil {
		return finish(err)
	}
	conn, err := e.connection(ctx, itemID)
	if err != nil {
		return finish(err)
	}
	provider, err := e.providers.Get(conn.Provider)
	if err != nil {
		return finish(err)
	}
	logger = logger.WithField(logging.FieldProvider, conn.Provider)
	logger.Info("Starting sync", logging.Field{Key: "window", Value: window.String()})

	txs, err := e.fetch(ctx, provider, itemID, window)
	if err != nil {
		return finish(err)
	}

	unique := e.dedupe(txs, &result, logger)
	fresh, err := e.filterExisting(ctx, unique, &result)
	if err != nil {
		return finish(fmt.Errorf("existence check failed: %w", err))
	}

	entries := e.toEntries(fresh, conn, &result, logger)
	imported := e.insert(ctx, entries, &result, logger)

	if err := e.store.UpdateConnectionLastSync(ctx, itemID, e.opts.Now()); err != nil {
		logger.WithError(err).Warn("Failed to update last sync time")
	}

	if e.opts.Reconcile {
		for _, outcome := range e.Reconcile(ctx, imported) {
			if outcome.Err != nil {
				result.ReconcileErrors++
				continue
			}
			result.Reconciled++
		}
	}

	logger.Info("Sync completed",
		logging.Field{Key: logging.FieldDuration, Value: e.opts.Now().Sub(result.StartedAt).Milliseconds()},
		logging.Field{Key: "imported", Value: result.Imported},
		logging.Field{Key: "already_synced", Value: result.AlreadySynced},
		logging.Field{Key: "duplicates", Value: result.Duplicates},
		logging.Field{Key: "errors", Value: result.Errors},
		logging.Field{Key: "reconciled", Value: result.Reconciled})
	return finish(nil)
}

func (e *Engine) connection(ctx context.Context, itemID string) (*models.Connection, error) {
	conn, err := e.store.GetConnection(ctx, itemID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &openbanking.ConfigError{Field: "item_id", Reason: fmt.Sprintf("no connection registered for %q", itemID)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load connection: %w", err)
	}
	return conn, nil
}

func (e *Engine) fetch(ctx context.Context, provider openbanking.Provider, itemID string, window openbanking.DateWindow) ([]models.ProviderTransaction, error) {
	accounts, err := provider.ListAccounts(ctx, itemID)
	if err != nil {
		return nil, err
	}
	var txs []models.ProviderTransaction
	for _, account := range accounts {
		accountTxs, err := provider.FetchTransactions(ctx, itemID, account.ID, window)
		if err != nil {
			return nil, err
		}
		txs = append(txs, accountTxs...)
	}
	return txs, nil
}

// dedupe drops transactions without id and repeated ids, keeping the first occurrence.
func (e *Engine) dedupe(txs []models.ProviderTransaction, result *models.SyncResult, logger logging.Logger) []models.ProviderTransaction {
	seen := make(map[string]bool, len(txs))
	unique := make([]models.ProviderTransaction, 0, len(txs))
	for _, tx := range txs {
		tx.ID = strings.TrimSpace(tx.ID)
		if tx.ID == "" {
			result.Errors++
			logger.Warn("Skipping transaction without id", logging.Field{Key: logging.FieldAccountID, Value: tx.AccountID})
			continue
		}
		if seen[tx.ID] {
			result.Duplicates++
			continue
		}
		seen[tx.ID] = true
		unique = append(unique, tx)
	}
	return unique
}

func (e *Engine) filterExisting(ctx context.Context, txs []models.ProviderTransaction, result *models.SyncResult) ([]models.ProviderTransaction, error) {
	existing := make(map[string]struct{})
	for start := 0; start < len(txs); start += e.opts.ExistenceChunkSize {
		end := min(start+e.opts.ExistenceChunkSize, len(txs))
		ids := make([]string, 0, end-start)
		for _, tx := range txs[start:end] {
			ids = append(ids, tx.ID)
		}
		found, err := e.store.FindLedgerEntriesByExternalID(ctx, ids)
		if err != nil {
			return nil, err
		}
		for id := range found {
			existing[id] = struct{}{}
		}
	}

	fresh := make([]models.ProviderTransaction, 0, len(txs))
	for _, tx := range txs {
		if _, ok := existing[tx.ID]; ok {
			result.AlreadySynced++
			continue
		}
		fresh = append(fresh, tx)
	}
	return fresh, nil
}

func (e *Engine) toEntries(txs []models.ProviderTransaction, conn *models.Connection, result *models.SyncResult, logger logging.Logger) []models.LedgerEntry {
	entries := make([]models.LedgerEntry, 0, len(txs))
	for _, tx := range txs {
		entry, err := e.toEntry(tx, conn)
		if err != nil {
			result.Errors++
			logger.WithError(err).Warn("Skipping transaction",
				logging.Field{Key: logging.FieldExternalID, Value: tx.ID})
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

func (e *Engine) toEntry(tx models.ProviderTransaction, conn *models.Connection) (models.LedgerEntry, error) {
	date, ok := dateutils.NormalizeDateIn(tx.Date, e.opts.Location)
	if !ok {
		return models.LedgerEntry{}, fmt.Errorf("invalid date %q", tx.Date)
	}
	direction := tx.Direction
	if !direction.IsValid() {
		direction = models.DirectionFromSign(tx.Amount)
	}
	return models.LedgerEntry{
		ID:          e.opts.NewID(),
		ExternalID:  tx.ID,
		Provider:    conn.Provider,
		ItemID:      conn.ItemID,
		AccountID:   tx.AccountID,
		Date:        date,
		Description: models.CleanDescription(tx.Description),
		Amount:      tx.Amount.Abs(),
		Direction:   direction,
		Currency:    tx.Currency,
		Category:    tx.Category,
		Status:      tx.Status,
		Institution: conn.ConnectorName,
		Balance:     tx.Balance,
		SegmentID:   conn.SegmentID,
		Raw:         tx.Metadata,
		CreatedAt:   e.opts.Now(),
	}, nil
}

// insert writes entries in batches. A failed batch is logged and its rows counted
// as errors; later batches still run.
func (e *Engine) insert(ctx context.Context, entries []models.LedgerEntry, result *models.SyncResult, logger logging.Logger) []models.LedgerEntry {
	imported := make([]models.LedgerEntry, 0, len(entries))
	for start := 0; start < len(entries); start += e.opts.InsertBatchSize {
		end := min(start+e.opts.InsertBatchSize, len(entries))
		batch := entries[start:end]
		if err := e.store.InsertLedgerEntries(ctx, batch); err != nil {
			result.Errors += len(batch)
			logger.WithError(err).Error("Failed to insert ledger batch",
				logging.Field{Key: logging.FieldBatchStart, Value: start},
				logging.Field{Key: logging.FieldBatchSize, Value: len(batch)})
			continue
		}
		result.Imported += len(batch)
		imported = append(imported, batch...)
	}
	return imported
}

// SyncAll synchronizes every stored connection. A failing connection does not stop
// the others; its result carries the error. Invalid dates fail before any work.
func (e *Engine) SyncAll(ctx context.Context, dateFrom, dateTo string) ([]models.SyncResult, error) {
	if _, err := openbanking.ResolveWindow(dateFrom, dateTo, e.opts.Now(), e.opts.LookbackDays); err != nil {
		return nil, err
	}
	conns, err := e.store.ListConnections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}

	results := make([]models.SyncResult, len(conns))
	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)
	for i, conn := range conns {
		g.Go(func() error {
			results[i], _ = e.SyncConnection(ctx, conn.ItemID, dateFrom, dateTo)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Failed {
			failed++
		}
	}
	e.logger.Info("Synchronized all connections",
		logging.Field{Key: logging.FieldCount, Value: len(results)},
		logging.Field{Key: "failed", Value: failed})
	return results, nil
}
