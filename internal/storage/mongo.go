package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"smart-store/internal/models"
)

const historyCollection = "order_status_log"

// MongoStore implements Store and HistoryStore with one MongoDB collection per record kind.
// Prices travel as decimal strings so totals stay exact.
type MongoStore struct {
	db *mongo.Database
}

// ConnectMongo opens the database and makes sure the indexes exist
func ConnectMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := &MongoStore{db: client.Database(database)}
	if err := s.ensureIndexes(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(string(models.CollectionCategories)).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create category index: %w", err)
	}
	_, err = s.db.Collection(historyCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "changed_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create history index: %w", err)
	}
	return nil
}

type productDoc struct {
	ID       string `bson:"_id"`
	Name     string `bson:"name"`
	Price    string `bson:"price"`
	Unit     string `bson:"unit"`
	Category string `bson:"category"`
	Image    string `bson:"image"`
	Spec     string `bson:"spec"`
}

type categoryDoc struct {
	ID   string `bson:"_id"`
	Name string `bson:"name"`
}

type orderItemDoc struct {
	ProductID string `bson:"product_id"`
	Name      string `bson:"name"`
	Quantity  int    `bson:"quantity"`
	Price     string `bson:"price"`
}

type orderDoc struct {
	ID          string         `bson:"_id"`
	ClientID    string         `bson:"client_id"`
	Status      string         `bson:"status"`
	Items       []orderItemDoc `bson:"items"`
	TotalAmount string         `bson:"total_amount"`
	CreatedAt   time.Time      `bson:"created_at"`
	UpdatedAt   time.Time      `bson:"updated_at"`
	Version     int            `bson:"version"`
}

type historyDoc struct {
	OrderID   string    `bson:"order_id"`
	Status    string    `bson:"status"`
	ChangedBy string    `bson:"changed_by"`
	ChangedAt time.Time `bson:"changed_at"`
	Notes     string    `bson:"notes"`
}

func (s *MongoStore) collection(c models.Collection) (*mongo.Collection, error) {
	if _, err := models.ParseCollection(string(c)); err != nil {
		return nil, err
	}
	return s.db.Collection(string(c)), nil
}

func (s *MongoStore) List(ctx context.Context, collection models.Collection) ([]models.Record, error) {
	coll, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "inserted_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	out := []models.Record{}
	for cursor.Next(ctx) {
		rec, err := decodeDoc(collection, cursor)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, cursor.Err()
}

func (s *MongoStore) Get(ctx context.Context, collection models.Collection, id string) (models.Record, error) {
	coll, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	res := coll.FindOne(ctx, bson.M{"_id": id})
	if errors.Is(res.Err(), mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if res.Err() != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, res.Err())
	}
	return decodeDoc(collection, res)
}

func (s *MongoStore) Put(ctx context.Context, record models.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	coll, err := s.collection(record.Collection())
	if err != nil {
		return err
	}

	filter := bson.M{"_id": record.RecordID()}
	var fields bson.M

	switch r := record.(type) {
	case models.Product:
		fields = bson.M{"name": r.Name, "price": r.Price.String(), "unit": r.Unit,
			"category": r.Category, "image": r.Image, "spec": r.Spec}
	case models.Category:
		fields = bson.M{"name": r.Name}
	case models.Order:
		doc := toOrderDoc(r)
		fields = bson.M{"client_id": doc.ClientID, "status": doc.Status, "items": doc.Items,
			"total_amount": doc.TotalAmount, "created_at": doc.CreatedAt,
			"updated_at": doc.UpdatedAt, "version": doc.Version}
		filter["version"] = bson.M{"$lt": r.Version}
	default:
		return fmt.Errorf("unsupported record type %T", record)
	}

	update := bson.M{
		"$set":         fields,
		"$setOnInsert": bson.M{"inserted_at": time.Now().UTC()},
	}
	_, err = coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		// An order whose version filter missed collides with its own _id on upsert.
		if _, ok := record.(models.Order); ok {
			return fmt.Errorf("%w: order %s", ErrStaleVersion, record.RecordID())
		}
		return fmt.Errorf("%w: %s/%s", ErrDuplicate, record.Collection(), record.RecordID())
	}
	if err != nil {
		return fmt.Errorf("failed to upsert %s/%s: %w", record.Collection(), record.RecordID(), err)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, collection models.Collection, id string) error {
	coll, err := s.collection(collection)
	if err != nil {
		return err
	}
	if _, err := coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	if collection == models.CollectionOrders {
		if _, err := s.db.Collection(historyCollection).DeleteMany(ctx, bson.M{"order_id": id}); err != nil {
			return fmt.Errorf("failed to delete history for %s: %w", id, err)
		}
	}
	return nil
}

func (s *MongoStore) AppendHistory(ctx context.Context, entry models.OrderStatusHistory) error {
	_, err := s.db.Collection(historyCollection).InsertOne(ctx, historyDoc{
		OrderID:   entry.OrderID,
		Status:    string(entry.Status),
		ChangedBy: string(entry.ChangedBy),
		ChangedAt: entry.ChangedAt,
		Notes:     entry.Notes,
	})
	return err
}

func (s *MongoStore) ListHistory(ctx context.Context, orderID string) ([]models.OrderStatusHistory, error) {
	if _, err := s.Get(ctx, models.CollectionOrders, orderID); err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "changed_at", Value: 1}})
	cursor, err := s.db.Collection(historyCollection).Find(ctx, bson.M{"order_id": orderID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query order history: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []historyDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode order history: %w", err)
	}

	history := make([]models.OrderStatusHistory, 0, len(docs))
	for _, d := range docs {
		history = append(history, models.OrderStatusHistory{
			OrderID:   d.OrderID,
			Status:    models.OrderStatus(d.Status),
			ChangedBy: models.Role(d.ChangedBy),
			ChangedAt: d.ChangedAt.UTC(),
			Notes:     d.Notes,
		})
	}
	return history, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.db.Client().Disconnect(ctx)
}

type decoder interface {
	Decode(v interface{}) error
}

func decodeDoc(collection models.Collection, d decoder) (models.Record, error) {
	switch collection {
	case models.CollectionProducts:
		var doc productDoc
		if err := d.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode product: %w", err)
		}
		price, err := decimal.NewFromString(doc.Price)
		if err != nil {
			return nil, fmt.Errorf("invalid price for product %s: %w", doc.ID, err)
		}
		return models.Product{ID: doc.ID, Name: doc.Name, Price: price, Unit: doc.Unit,
			Category: doc.Category, Image: doc.Image, Spec: doc.Spec}, nil
	case models.CollectionCategories:
		var doc categoryDoc
		if err := d.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode category: %w", err)
		}
		return models.Category{ID: doc.ID, Name: doc.Name}, nil
	case models.CollectionOrders:
		var doc orderDoc
		if err := d.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode order: %w", err)
		}
		return fromOrderDoc(doc)
	}
	return nil, fmt.Errorf("unknown collection: %q", collection)
}

func toOrderDoc(o models.Order) orderDoc {
	items := make([]orderItemDoc, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemDoc{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price.String(),
		})
	}
	return orderDoc{
		ID:          o.ID,
		ClientID:    o.ClientID,
		Status:      string(o.Status),
		Items:       items,
		TotalAmount: o.TotalAmount.String(),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		Version:     o.Version,
	}
}

func fromOrderDoc(doc orderDoc) (models.Order, error) {
	items := make([]models.OrderItem, 0, len(doc.Items))
	for _, it := range doc.Items {
		price, err := decimal.NewFromString(it.Price)
		if err != nil {
			return models.Order{}, fmt.Errorf("invalid item price in order %s: %w", doc.ID, err)
		}
		items = append(items, models.OrderItem{ProductID: it.ProductID, Name: it.Name, Quantity: it.Quantity, Price: price})
	}
	total, err := decimal.NewFromString(doc.TotalAmount)
	if err != nil {
		return models.Order{}, fmt.Errorf("invalid total in order %s: %w", doc.ID, err)
	}
	return models.Order{
		ID:          doc.ID,
		ClientID:    doc.ClientID,
		Status:      models.OrderStatus(doc.Status),
		Items:       items,
		TotalAmount: total,
		CreatedAt:   doc.CreatedAt.UTC(),
		UpdatedAt:   doc.UpdatedAt.UTC(),
		Version:     doc.Version,
	}, nil
}
