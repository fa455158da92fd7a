package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"erpfin/bank-sync/internal/models"
)

// MemoryStore is an in-process Store. The error fields let tests inject failures.
type MemoryStore struct {
	mu          sync.Mutex
	ledger      map[string]models.LedgerEntry
	documents   []models.ReconciledDocument
	connections map[string]models.Connection

	// Error injection for tests
	FindLedgerEntriesError error
	InsertLedgerEntriesErr func(rows []models.LedgerEntry) error
	UpdateLastSyncError    error
	ListConnectionsError   error
	// BeforeInsertDocument runs before the duplicate check of InsertDocument.
	BeforeInsertDocument func(doc models.ReconciledDocument)

	// Call recording
	ExistenceChunks [][]string
	InsertBatches   [][]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ledger:      make(map[string]models.LedgerEntry),
		connections: make(map[string]models.Connection),
	}
}

// FindLedgerEntriesByExternalID implements Store.
func (s *MemoryStore) FindLedgerEntriesByExternalID(_ context.Context, externalIDs []string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ExistenceChunks = append(s.ExistenceChunks, append([]string(nil), externalIDs...))
	if s.FindLedgerEntriesError != nil {
		return nil, s.FindLedgerEntriesError
	}
	found := make(map[string]struct{})
	for _, id := range externalIDs {
		if _, ok := s.ledger[id]; ok {
			found[id] = struct{}{}
		}
	}
	return found, nil
}

// InsertLedgerEntries implements Store.
func (s *MemoryStore) InsertLedgerEntries(_ context.Context, rows []models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ExternalID)
	}
	s.InsertBatches = append(s.InsertBatches, ids)

	if s.InsertLedgerEntriesErr != nil {
		if err := s.InsertLedgerEntriesErr(rows); err != nil {
			return err
		}
	}
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		if _, ok := s.ledger[row.ExternalID]; ok || seen[row.ExternalID] {
			return fmt.Errorf("ledger entry %s: %w", row.ExternalID, ErrDuplicate)
		}
		seen[row.ExternalID] = true
	}
	for _, row := range rows {
		s.ledger[row.ExternalID] = row
	}
	return nil
}

// FindLedgerEntry implements Store.
func (s *MemoryStore) FindLedgerEntry(_ context.Context, externalID string) (*models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.ledger[externalID]
	if !ok {
		return nil, fmt.Errorf("ledger entry %s: %w", externalID, ErrNotFound)
	}
	return &entry, nil
}

// LedgerEntries returns all entries ordered by external id.
func (s *MemoryStore) LedgerEntries() []models.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]models.LedgerEntry, 0, len(s.ledger))
	for _, e := range s.ledger {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ExternalID < entries[j].ExternalID })
	return entries
}

// FindDocumentByDocNo implements Store.
func (s *MemoryStore) FindDocumentByDocNo(_ context.Context, docNo string) (*models.ReconciledDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc := s.activeDocument(docNo); doc != nil {
		found := *doc
		return &found, nil
	}
	return nil, nil
}

// InsertDocument implements Store.
func (s *MemoryStore) InsertDocument(_ context.Context, doc models.ReconciledDocument) (*models.ReconciledDocument, error) {
	if s.BeforeInsertDocument != nil {
		s.BeforeInsertDocument(doc)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.DeletedAt == nil && s.activeDocument(doc.DocNo) != nil {
		return nil, fmt.Errorf("document %s: %w", doc.DocNo, ErrDuplicate)
	}
	s.documents = append(s.documents, doc)
	return &doc, nil
}

// Documents returns every stored document, deleted ones included.
func (s *MemoryStore) Documents() []models.ReconciledDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ReconciledDocument(nil), s.documents...)
}

func (s *MemoryStore) activeDocument(docNo string) *models.ReconciledDocument {
	for i := range s.documents {
		if s.documents[i].DocNo == docNo && s.documents[i].DeletedAt == nil {
			return &s.documents[i]
		}
	}
	return nil
}

// ListConnections implements Store.
func (s *MemoryStore) ListConnections(_ context.Context) ([]models.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListConnectionsError != nil {
		return nil, s.ListConnectionsError
	}
	conns := make([]models.Connection, 0, len(s.connections))
	for _, c := range s.connections {
		conns = append(conns, c)
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].ItemID < conns[j].ItemID })
	return conns, nil
}

// GetConnection implements Store.
func (s *MemoryStore) GetConnection(_ context.Context, itemID string) (*models.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.connections[itemID]
	if !ok {
		return nil, fmt.Errorf("connection %s: %w", itemID, ErrNotFound)
	}
	return &conn, nil
}

// SaveConnection implements Store.
func (s *MemoryStore) SaveConnection(_ context.Context, conn models.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections[conn.ItemID] = conn
	return nil
}

// UpdateConnectionLastSync implements Store.
func (s *MemoryStore) UpdateConnectionLastSync(_ context.Context, itemID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpdateLastSyncError != nil {
		return s.UpdateLastSyncError
	}
	conn, ok := s.connections[itemID]
	if !ok {
		return fmt.Errorf("connection %s: %w", itemID, ErrNotFound)
	}
	at = at.UTC()
	conn.LastSyncAt = &at
	s.connections[itemID] = conn
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
