package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"erpfin/bank-sync/internal/logging"
	"erpfin/bank-sync/internal/models"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	LedgerCollection     = "ledger_entries"
	DocumentsCollection  = "documents"
	ConnectionCollection = "connections"
)

// MongoStore is a Store on MongoDB. Amounts are stored as Decimal128.
type MongoStore struct {
	client      *mongo.Client
	ledger      *mongo.Collection
	documents   *mongo.Collection
	connections *mongo.Collection
	logger      logging.Logger
}

// OpenMongo connects to uri, pings the server and ensures the unique indexes.
func OpenMongo(ctx context.Context, uri, database string, logger logging.Logger) (*MongoStore, error) {
	logger = logging.OrDefault(logger)
	logger.Debug("Attempting to connect to MongoDB", logging.Field{Key: logging.FieldStorage, Value: database})

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:      client,
		ledger:      db.Collection(LedgerCollection),
		documents:   db.Collection(DocumentsCollection),
		connections: db.Collection(ConnectionCollection),
		logger:      logger,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	logger.Info("Successfully established connection to MongoDB")
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{s.ledger, mongo.IndexModel{
			Keys:    bson.D{{Key: "externalId", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{s.documents, mongo.IndexModel{
			Keys: bson.D{{Key: "docNo", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"deleted": false}),
		}},
		{s.connections, mongo.IndexModel{
			Keys:    bson.D{{Key: "itemId", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", idx.coll.Name(), err)
		}
	}
	return nil
}

type ledgerDoc struct {
	ID          string                `bson:"_id"`
	ExternalID  string                `bson:"externalId"`
	Provider    string                `bson:"provider"`
	ItemID      string                `bson:"itemId"`
	AccountID   string                `bson:"accountId"`
	Date        string                `bson:"date"`
	Description string                `bson:"description"`
	Amount      primitive.Decimal128  `bson:"amount"`
	Direction   string                `bson:"direction"`
	Currency    string                `bson:"currency"`
	Category    string                `bson:"category"`
	Status      string                `bson:"status"`
	Institution string                `bson:"institution"`
	Balance     *primitive.Decimal128 `bson:"balance,omitempty"`
	SegmentID   string                `bson:"segmentId"`
	Raw         bson.M                `bson:"raw,omitempty"`
	CreatedAt   time.Time             `bson:"createdAt"`
}

type documentDoc struct {
	ID          string               `bson:"_id"`
	DocNo       string               `bson:"docNo"`
	Direction   string               `bson:"direction"`
	IssueDate   string               `bson:"issueDate"`
	DueDate     string               `bson:"dueDate"`
	Amount      primitive.Decimal128 `bson:"amount"`
	Balance     primitive.Decimal128 `bson:"balance"`
	Status      string               `bson:"status"`
	SegmentID   string               `bson:"segmentId"`
	Description string               `bson:"description"`
	Notes       string               `bson:"notes"`
	CreatedAt   time.Time            `bson:"createdAt"`
	Deleted     bool                 `bson:"deleted"`
	DeletedAt   *time.Time           `bson:"deletedAt,omitempty"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("amount %s: %w", d.String(), err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %s: %w", v.String(), err)
	}
	return d, nil
}

func toLedgerDoc(e models.LedgerEntry) (ledgerDoc, error) {
	amount, err := toDecimal128(e.Amount)
	if err != nil {
		return ledgerDoc{}, err
	}
	doc := ledgerDoc{
		ID:          e.ID,
		ExternalID:  e.ExternalID,
		Provider:    e.Provider,
		ItemID:      e.ItemID,
		AccountID:   e.AccountID,
		Date:        e.Date,
		Description: e.Description,
		Amount:      amount,
		Direction:   string(e.Direction),
		Currency:    e.Currency,
		Category:    e.Category,
		Status:      e.Status,
		Institution: e.Institution,
		SegmentID:   e.SegmentID,
		Raw:         e.Raw,
		CreatedAt:   e.CreatedAt.UTC(),
	}
	if e.Balance != nil {
		balance, err := toDecimal128(*e.Balance)
		if err != nil {
			return ledgerDoc{}, err
		}
		doc.Balance = &balance
	}
	return doc, nil
}

func (d ledgerDoc) toModel() (*models.LedgerEntry, error) {
	amount, err := fromDecimal128(d.Amount)
	if err != nil {
		return nil, err
	}
	direction, err := models.ParseDirection(d.Direction)
	if err != nil {
		return nil, fmt.Errorf("ledger entry %s: %w", d.ExternalID, err)
	}
	e := &models.LedgerEntry{
		ID:          d.ID,
		ExternalID:  d.ExternalID,
		Provider:    d.Provider,
		ItemID:      d.ItemID,
		AccountID:   d.AccountID,
		Date:        d.Date,
		Description: d.Description,
		Amount:      amount,
		Direction:   direction,
		Currency:    d.Currency,
		Category:    d.Category,
		Status:      d.Status,
		Institution: d.Institution,
		SegmentID:   d.SegmentID,
		Raw:         d.Raw,
		CreatedAt:   d.CreatedAt,
	}
	if d.Balance != nil {
		balance, err := fromDecimal128(*d.Balance)
		if err != nil {
			return nil, err
		}
		e.Balance = &balance
	}
	return e, nil
}

func toDocumentDoc(d models.ReconciledDocument) (documentDoc, error) {
	amount, err := toDecimal128(d.Amount)
	if err != nil {
		return documentDoc{}, err
	}
	balance, err := toDecimal128(d.Balance)
	if err != nil {
		return documentDoc{}, err
	}
	return documentDoc{
		ID:          d.ID,
		DocNo:       d.DocNo,
		Direction:   string(d.Direction),
		IssueDate:   d.IssueDate,
		DueDate:     d.DueDate,
		Amount:      amount,
		Balance:     balance,
		Status:      d.Status,
		SegmentID:   d.SegmentID,
		Description: d.Description,
		Notes:       d.Notes,
		CreatedAt:   d.CreatedAt.UTC(),
		Deleted:     d.DeletedAt != nil,
		DeletedAt:   d.DeletedAt,
	}, nil
}

func (d documentDoc) toModel() (*models.ReconciledDocument, error) {
	amount, err := fromDecimal128(d.Amount)
	if err != nil {
		return nil, err
	}
	balance, err := fromDecimal128(d.Balance)
	if err != nil {
		return nil, err
	}
	direction, err := models.ParseDirection(d.Direction)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", d.DocNo, err)
	}
	return &models.ReconciledDocument{
		ID:          d.ID,
		DocNo:       d.DocNo,
		Direction:   direction,
		IssueDate:   d.IssueDate,
		DueDate:     d.DueDate,
		Amount:      amount,
		Balance:     balance,
		Status:      d.Status,
		SegmentID:   d.SegmentID,
		Description: d.Description,
		Notes:       d.Notes,
		CreatedAt:   d.CreatedAt,
		DeletedAt:   d.DeletedAt,
	}, nil
}

// FindLedgerEntriesByExternalID implements Store.
func (s *MongoStore) FindLedgerEntriesByExternalID(ctx context.Context, externalIDs []string) (map[string]struct{}, error) {
	found := make(map[string]struct{})
	if len(externalIDs) == 0 {
		return found, nil
	}
	cursor, err := s.ledger.Find(ctx, bson.M{"externalId": bson.M{"$in": externalIDs}},
		options.Find().SetProjection(bson.M{"externalId": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var row struct {
			ExternalID string `bson:"externalId"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode ledger entry: %w", err)
		}
		found[row.ExternalID] = struct{}{}
	}
	return found, cursor.Err()
}

// InsertLedgerEntries implements Store. A failed insert removes the rows of the same
// call that were already written.
func (s *MongoStore) InsertLedgerEntries(ctx context.Context, rows []models.LedgerEntry) error {
	if len(rows) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		doc, err := toLedgerDoc(row)
		if err != nil {
			return fmt.Errorf("ledger entry %s: %w", row.ExternalID, err)
		}
		docs = append(docs, doc)
		ids = append(ids, row.ID)
	}

	_, err := s.ledger.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err == nil {
		return nil
	}
	if _, delErr := s.ledger.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); delErr != nil {
		s.logger.WithError(delErr).Error("Failed to roll back partial ledger insert",
			logging.Field{Key: logging.FieldCount, Value: len(ids)})
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return fmt.Errorf("failed to insert ledger entries: %w", err)
}

// FindLedgerEntry implements Store.
func (s *MongoStore) FindLedgerEntry(ctx context.Context, externalID string) (*models.LedgerEntry, error) {
	var doc ledgerDoc
	err := s.ledger.FindOne(ctx, bson.M{"externalId": externalID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("ledger entry %s: %w", externalID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger entry %s: %w", externalID, err)
	}
	return doc.toModel()
}

// FindDocumentByDocNo implements Store.
func (s *MongoStore) FindDocumentByDocNo(ctx context.Context, docNo string) (*models.ReconciledDocument, error) {
	var doc documentDoc
	err := s.documents.FindOne(ctx, bson.M{"docNo": docNo, "deleted": false}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", docNo, err)
	}
	return doc.toModel()
}

// InsertDocument implements Store.
func (s *MongoStore) InsertDocument(ctx context.Context, doc models.ReconciledDocument) (*models.ReconciledDocument, error) {
	row, err := toDocumentDoc(doc)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", doc.DocNo, err)
	}
	if _, err := s.documents.InsertOne(ctx, row); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("document %s: %w: %v", doc.DocNo, ErrDuplicate, err)
		}
		return nil, fmt.Errorf("failed to insert document %s: %w", doc.DocNo, err)
	}
	return &doc, nil
}

// ListConnections implements Store.
func (s *MongoStore) ListConnections(ctx context.Context) ([]models.Connection, error) {
	cursor, err := s.connections.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "itemId", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	var conns []models.Connection
	if err := cursor.All(ctx, &conns); err != nil {
		return nil, fmt.Errorf("failed to decode connections: %w", err)
	}
	return conns, nil
}

// GetConnection implements Store.
func (s *MongoStore) GetConnection(ctx context.Context, itemID string) (*models.Connection, error) {
	var conn models.Connection
	err := s.connections.FindOne(ctx, bson.M{"itemId": itemID}).Decode(&conn)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("connection %s: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read connection %s: %w", itemID, err)
	}
	return &conn, nil
}

// SaveConnection implements Store.
func (s *MongoStore) SaveConnection(ctx context.Context, conn models.Connection) error {
	_, err := s.connections.ReplaceOne(ctx, bson.M{"itemId": conn.ItemID}, conn, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save connection %s: %w", conn.ItemID, err)
	}
	return nil
}

// UpdateConnectionLastSync implements Store.
func (s *MongoStore) UpdateConnectionLastSync(ctx context.Context, itemID string, at time.Time) error {
	res, err := s.connections.UpdateOne(ctx, bson.M{"itemId": itemID}, bson.M{"$set": bson.M{"lastSyncAt": at.UTC()}})
	if err != nil {
		return fmt.Errorf("failed to update connection %s: %w", itemID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("connection %s: %w", itemID, ErrNotFound)
	}
	return nil
}

// Close implements Store.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
