// Package storage persists the store's records. Every backend upserts by identifier,
// validates records before accepting them and rejects order writes that lose a version race.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"smart-store/internal/logger"
	"smart-store/internal/models"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicate    = errors.New("duplicate record")
	ErrStaleVersion = errors.New("stale order version")
)

// Store is the persistence capability the services depend on
type Store interface {
	List(ctx context.Context, collection models.Collection) ([]models.Record, error)
	Get(ctx context.Context, collection models.Collection, id string) (models.Record, error)
	Put(ctx context.Context, record models.Record) error
	Delete(ctx context.Context, collection models.Collection, id string) error
	Ping(ctx context.Context) error
	Close() error
}

// HistoryStore keeps the order status log
type HistoryStore interface {
	AppendHistory(ctx context.Context, entry models.OrderStatusHistory) error
	ListHistory(ctx context.Context, orderID string) ([]models.OrderStatusHistory, error)
}

// ImageStore keeps uploaded product images
type ImageStore interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
	Remove(path string) error
}

// ListProducts returns the products collection
func ListProducts(ctx context.Context, s Store) ([]models.Product, error) {
	records, err := s.List(ctx, models.CollectionProducts)
	if err != nil {
		return nil, err
	}
	return asType[models.Product](records)
}

// ListOrders returns the orders collection
func ListOrders(ctx context.Context, s Store) ([]models.Order, error) {
	records, err := s.List(ctx, models.CollectionOrders)
	if err != nil {
		return nil, err
	}
	return asType[models.Order](records)
}

// ListCategories returns the categories collection
func ListCategories(ctx context.Context, s Store) ([]models.Category, error) {
	records, err := s.List(ctx, models.CollectionCategories)
	if err != nil {
		return nil, err
	}
	return asType[models.Category](records)
}

// GetOrder loads one order
func GetOrder(ctx context.Context, s Store, id string) (models.Order, error) {
	rec, err := s.Get(ctx, models.CollectionOrders, id)
	if err != nil {
		return models.Order{}, err
	}
	order, ok := rec.(models.Order)
	if !ok {
		return models.Order{}, fmt.Errorf("unexpected record type %T in orders", rec)
	}
	return order, nil
}

// GetProduct loads one product
func GetProduct(ctx context.Context, s Store, id string) (models.Product, error) {
	rec, err := s.Get(ctx, models.CollectionProducts, id)
	if err != nil {
		return models.Product{}, err
	}
	product, ok := rec.(models.Product)
	if !ok {
		return models.Product{}, fmt.Errorf("unexpected record type %T in products", rec)
	}
	return product, nil
}

// OrdersOrEmpty is the degraded read used outside initialization: failures are logged
// and an empty collection is returned.
func OrdersOrEmpty(ctx context.Context, s Store, log *logger.Logger, requestID string) []models.Order {
	orders, err := ListOrders(ctx, s)
	if err != nil {
		log.Error("db_query_failed", "Failed to list orders, using empty collection", requestID, err, nil)
		return []models.Order{}
	}
	return orders
}

// ProductsOrEmpty is the products counterpart of OrdersOrEmpty
func ProductsOrEmpty(ctx context.Context, s Store, log *logger.Logger, requestID string) []models.Product {
	products, err := ListProducts(ctx, s)
	if err != nil {
		log.Error("db_query_failed", "Failed to list products, using empty collection", requestID, err, nil)
		return []models.Product{}
	}
	return products
}

func asType[T models.Record](records []models.Record) ([]T, error) {
	out := make([]T, 0, len(records))
	for _, rec := range records {
		v, ok := rec.(T)
		if !ok {
			return nil, fmt.Errorf("unexpected record type %T", rec)
		}
		out = append(out, v)
	}
	return out, nil
}

// checkVersion applies the optimistic version rule for orders: a write must carry a
// version newer than the stored one. Non-order records always pass.
func checkVersion(existing models.Record, incoming models.Record) error {
	next, ok := incoming.(models.Order)
	if !ok || existing == nil {
		return nil
	}
	current, ok := existing.(models.Order)
	if !ok {
		return nil
	}
	if next.Version <= current.Version {
		return fmt.Errorf("%w: order %s is at version %d, write carries %d", ErrStaleVersion, next.ID, current.Version, next.Version)
	}
	return nil
}
