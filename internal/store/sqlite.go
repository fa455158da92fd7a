package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"erpfin/bank-sync/internal/logging"
	"erpfin/bank-sync/internal/models"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const timeLayout = time.RFC3339Nano

// SQLiteStore is a Store on a local SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
}

// OpenSQLite opens (creating when needed) the database at path and applies the
// embedded migrations.
func OpenSQLite(path string, logger logging.Logger) (*SQLiteStore, error) {
	logger = logging.OrDefault(logger)
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := runMigrations(db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("SQLite store ready", logging.Field{Key: logging.FieldStorage, Value: path})
	return &SQLiteStore{db: db, logger: logger}, nil
}

func runMigrations(db *sql.DB, logger logging.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migration instance creation failed: %w", err)
	}
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("No new database migrations to apply")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	logger.Info("Database migrations applied")
	return nil
}

// FindLedgerEntriesByExternalID implements Store.
func (s *SQLiteStore) FindLedgerEntriesByExternalID(ctx context.Context, externalIDs []string) (map[string]struct{}, error) {
	found := make(map[string]struct{})
	if len(externalIDs) == 0 {
		return found, nil
	}
	args := make([]any, len(externalIDs))
	for i, id := range externalIDs {
		args[i] = id
	}
	query := "SELECT external_id FROM ledger_entries WHERE external_id IN (" + placeholders(len(externalIDs)) + ")"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		found[id] = struct{}{}
	}
	return found, rows.Err()
}

// InsertLedgerEntries implements Store inside a single transaction.
func (s *SQLiteStore) InsertLedgerEntries(ctx context.Context, rows []models.LedgerEntry) (err error) {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO ledger_entries
		(id, external_id, provider, item_id, account_id, date, description, amount, direction,
		 currency, category, status, institution, balance, segment_id, raw, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		raw, err := encodeRaw(row.Raw)
		if err != nil {
			return fmt.Errorf("ledger entry %s: %w", row.ExternalID, err)
		}
		_, err = stmt.ExecContext(ctx,
			row.ID, row.ExternalID, row.Provider, row.ItemID, row.AccountID, row.Date,
			row.Description, row.Amount.String(), string(row.Direction), row.Currency,
			row.Category, row.Status, row.Institution, nullDecimal(row.Balance), row.SegmentID,
			raw, row.CreatedAt.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("ledger entry %s: %w", row.ExternalID, translateError(err))
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger entries: %w", err)
	}
	return nil
}

// FindLedgerEntry implements Store.
func (s *SQLiteStore) FindLedgerEntry(ctx context.Context, externalID string) (*models.LedgerEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, external_id, provider, item_id, account_id, date,
		description, amount, direction, currency, category, status, institution, balance,
		segment_id, raw, created_at
		FROM ledger_entries WHERE external_id = ?`, externalID)

	var (
		e         models.LedgerEntry
		direction string
		balance   decimal.NullDecimal
		raw       sql.NullString
		createdAt string
	)
	err := row.Scan(&e.ID, &e.ExternalID, &e.Provider, &e.ItemID, &e.AccountID, &e.Date,
		&e.Description, &e.Amount, &direction, &e.Currency, &e.Category, &e.Status,
		&e.Institution, &balance, &e.SegmentID, &raw, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ledger entry %s: %w", externalID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger entry %s: %w", externalID, err)
	}
	if e.Direction, err = models.ParseDirection(direction); err != nil {
		return nil, fmt.Errorf("ledger entry %s: %w", externalID, err)
	}
	if balance.Valid {
		e.Balance = &balance.Decimal
	}
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &e.Raw); err != nil {
			return nil, fmt.Errorf("ledger entry %s: invalid raw payload: %w", externalID, err)
		}
	}
	if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("ledger entry %s: invalid created_at: %w", externalID, err)
	}
	return &e, nil
}

// FindDocumentByDocNo implements Store.
func (s *SQLiteStore) FindDocumentByDocNo(ctx context.Context, docNo string) (*models.ReconciledDocument, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, doc_no, direction, issue_date, due_date, amount,
		balance, status, segment_id, description, notes, created_at, deleted_at
		FROM documents WHERE doc_no = ? AND deleted_at IS NULL`, docNo)

	var (
		d         models.ReconciledDocument
		direction string
		createdAt string
		deletedAt sql.NullString
	)
	err := row.Scan(&d.ID, &d.DocNo, &direction, &d.IssueDate, &d.DueDate, &d.Amount,
		&d.Balance, &d.Status, &d.SegmentID, &d.Description, &d.Notes, &createdAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", docNo, err)
	}
	if d.Direction, err = models.ParseDirection(direction); err != nil {
		return nil, fmt.Errorf("document %s: %w", docNo, err)
	}
	if d.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("document %s: invalid created_at: %w", docNo, err)
	}
	return &d, nil
}

// InsertDocument implements Store.
func (s *SQLiteStore) InsertDocument(ctx context.Context, doc models.ReconciledDocument) (*models.ReconciledDocument, error) {
	var deletedAt sql.NullString
	if doc.DeletedAt != nil {
		deletedAt = sql.NullString{String: doc.DeletedAt.UTC().Format(timeLayout), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO documents
		(id, doc_no, direction, issue_date, due_date, amount, balance, status, segment_id,
		 description, notes, created_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.DocNo, string(doc.Direction), doc.IssueDate, doc.DueDate, doc.Amount.String(),
		doc.Balance.String(), doc.Status, doc.SegmentID, doc.Description, doc.Notes,
		doc.CreatedAt.UTC().Format(timeLayout), deletedAt)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", doc.DocNo, translateError(err))
	}
	return &doc, nil
}

// ListConnections implements Store.
func (s *SQLiteStore) ListConnections(ctx context.Context) ([]models.Connection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT item_id, provider, connector_name, segment_id, last_sync_at
		FROM connections ORDER BY item_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	var conns []models.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, *conn)
	}
	return conns, rows.Err()
}

// GetConnection implements Store.
func (s *SQLiteStore) GetConnection(ctx context.Context, itemID string) (*models.Connection, error) {
	row := s.db.QueryRowContext(ctx, `SELECT item_id, provider, connector_name, segment_id, last_sync_at
		FROM connections WHERE item_id = ?`, itemID)
	conn, err := scanConnection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("connection %s: %w", itemID, ErrNotFound)
	}
	return conn, err
}

// SaveConnection implements Store.
func (s *SQLiteStore) SaveConnection(ctx context.Context, conn models.Connection) error {
	var lastSync sql.NullString
	if conn.LastSyncAt != nil {
		lastSync = sql.NullString{String: conn.LastSyncAt.UTC().Format(timeLayout), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO connections (item_id, provider, connector_name, segment_id, last_sync_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (item_id) DO UPDATE SET provider = excluded.provider,
			connector_name = excluded.connector_name, segment_id = excluded.segment_id,
			last_sync_at = excluded.last_sync_at`,
		conn.ItemID, conn.Provider, conn.ConnectorName, conn.SegmentID, lastSync)
	if err != nil {
		return fmt.Errorf("failed to save connection %s: %w", conn.ItemID, err)
	}
	return nil
}

// UpdateConnectionLastSync implements Store.
func (s *SQLiteStore) UpdateConnectionLastSync(ctx context.Context, itemID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE connections SET last_sync_at = ? WHERE item_id = ?`,
		at.UTC().Format(timeLayout), itemID)
	if err != nil {
		return fmt.Errorf("failed to update connection %s: %w", itemID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("connection %s: %w", itemID, ErrNotFound)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConnection(row scanner) (*models.Connection, error) {
	var (
		conn     models.Connection
		lastSync sql.NullString
	)
	if err := row.Scan(&conn.ItemID, &conn.Provider, &conn.ConnectorName, &conn.SegmentID, &lastSync); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read connection: %w", err)
	}
	if lastSync.Valid && lastSync.String != "" {
		t, err := time.Parse(timeLayout, lastSync.String)
		if err != nil {
			return nil, fmt.Errorf("connection %s: invalid last_sync_at: %w", conn.ItemID, err)
		}
		conn.LastSyncAt = &t
	}
	return &conn, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func encodeRaw(raw map[string]any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid raw payload: %w", err)
	}
	return string(b), nil
}

// translateError maps unique constraint violations to ErrDuplicate.
func translateError(err error) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
