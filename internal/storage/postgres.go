package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"smart-store/internal/database"
	"smart-store/internal/models"
)

const pgUniqueViolation = "23505"

// PostgresStore implements Store and HistoryStore on top of the shared pool
type PostgresStore struct {
	db *database.DB
}

func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) List(ctx context.Context, collection models.Collection) ([]models.Record, error) {
	var (
		query string
		scan  func(pgx.Row) (models.Record, error)
	)
	switch collection {
	case models.CollectionProducts:
		query, scan = database.ListProductsSQL, scanProduct
	case models.CollectionOrders:
		query, scan = database.ListOrdersSQL, scanOrder
	case models.CollectionCategories:
		query, scan = database.ListCategoriesSQL, scanCategory
	default:
		return nil, fmt.Errorf("unknown collection: %q", collection)
	}

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer rows.Close()

	out := []models.Record{}
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", collection, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, collection models.Collection, id string) (models.Record, error) {
	var (
		query string
		scan  func(pgx.Row) (models.Record, error)
	)
	switch collection {
	case models.CollectionProducts:
		query, scan = database.GetProductSQL, scanProduct
	case models.CollectionOrders:
		query, scan = database.GetOrderSQL, scanOrder
	case models.CollectionCategories:
		query, scan = database.GetCategorySQL, scanCategory
	default:
		return nil, fmt.Errorf("unknown collection: %q", collection)
	}

	rec, err := scan(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return rec, nil
}

func (s *PostgresStore) Put(ctx context.Context, record models.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	var err error
	switch r := record.(type) {
	case models.Product:
		err = s.db.Exec(ctx, database.UpsertProductSQL,
			r.ID, r.Name, r.Price.String(), r.Unit, r.Category, r.Image, r.Spec)
	case models.Category:
		err = s.db.Exec(ctx, database.UpsertCategorySQL, r.ID, r.Name)
	case models.Order:
		err = s.putOrder(ctx, r)
	default:
		return fmt.Errorf("unsupported record type %T", record)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.Detail)
	}
	return err
}

func (s *PostgresStore) putOrder(ctx context.Context, o models.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("failed to encode order items: %w", err)
	}

	n, err := s.db.ExecRows(ctx, database.UpsertOrderSQL,
		o.ID, o.ClientID, string(o.Status), items, o.TotalAmount.String(),
		o.CreatedAt, o.UpdatedAt, o.Version)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: order %s, write carries %d", ErrStaleVersion, o.ID, o.Version)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection models.Collection, id string) error {
	var query string
	switch collection {
	case models.CollectionProducts:
		query = database.DeleteProductSQL
	case models.CollectionOrders:
		query = database.DeleteOrderSQL
	case models.CollectionCategories:
		query = database.DeleteCategorySQL
	default:
		return fmt.Errorf("unknown collection: %q", collection)
	}
	return s.db.Exec(ctx, query, id)
}

func (s *PostgresStore) AppendHistory(ctx context.Context, entry models.OrderStatusHistory) error {
	return s.db.Exec(ctx, database.InsertOrderStatusLogSQL,
		entry.OrderID, string(entry.Status), string(entry.ChangedBy), entry.ChangedAt, entry.Notes)
}

func (s *PostgresStore) ListHistory(ctx context.Context, orderID string) ([]models.OrderStatusHistory, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, database.OrderExistsSQL, orderID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check order: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: orders/%s", ErrNotFound, orderID)
	}

	rows, err := s.db.Query(ctx, database.GetOrderStatusHistorySQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order history: %w", err)
	}
	defer rows.Close()

	history := []models.OrderStatusHistory{}
	for rows.Next() {
		var (
			h         models.OrderStatusHistory
			status    string
			changedBy string
		)
		if err := rows.Scan(&h.OrderID, &status, &changedBy, &h.ChangedAt, &h.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		h.Status = models.OrderStatus(status)
		h.ChangedBy = models.Role(changedBy)
		h.ChangedAt = h.ChangedAt.UTC()
		history = append(history, h)
	}
	return history, rows.Err()
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func scanProduct(row pgx.Row) (models.Record, error) {
	var (
		p     models.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &p.Unit, &p.Category, &p.Image, &p.Spec); err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q: %w", price, err)
	}
	p.Price = amount
	return p, nil
}

func scanCategory(row pgx.Row) (models.Record, error) {
	var c models.Category
	if err := row.Scan(&c.ID, &c.Name); err != nil {
		return nil, err
	}
	return c, nil
}

func scanOrder(row pgx.Row) (models.Record, error) {
	var (
		o      models.Order
		status string
		items  []byte
		total  string
	)
	if err := row.Scan(&o.ID, &o.ClientID, &status, &items, &total, &o.CreatedAt, &o.UpdatedAt, &o.Version); err != nil {
		return nil, err
	}
	o.Status = models.OrderStatus(status)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("invalid items for order %s: %w", o.ID, err)
	}
	amount, err := decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("invalid total for order %s: %w", o.ID, err)
	}
	o.TotalAmount = amount
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return o, nil
}
