// Package catalog manages products, categories and product images.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"golang.org/x/sync/singleflight"

	"smart-store/internal/broadcast"
	"smart-store/internal/logger"
	"smart-store/internal/models"
	"smart-store/internal/storage"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")
)

// Service runs catalog reads and the cashier's catalog edits
type Service struct {
	records storage.Store
	images  storage.ImageStore
	sync    *broadcast.Synchronizer
	logger  *logger.Logger

	loads singleflight.Group
}

func NewService(records storage.Store, images storage.ImageStore, synchronizer *broadcast.Synchronizer, log *logger.Logger) *Service {
	return &Service{
		records: records,
		images:  images,
		sync:    synchronizer,
		logger:  log,
	}
}

// Products returns the catalog. Concurrent callers share one store read.
func (s *Service) Products(ctx context.Context) ([]models.Product, error) {
	v, err, _ := s.loads.Do(string(models.CollectionProducts), func() (interface{}, error) {
		return storage.ListProducts(ctx, s.records)
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]models.Product)), nil
}

// Search returns the products matching a category and a name/category query.
// A failed read is logged and yields an empty list.
func (s *Service) Search(ctx context.Context, category, query, requestID string) []models.Product {
	products, err := s.Products(ctx)
	if err != nil {
		s.logger.Error("db_query_failed", "Failed to list products, using empty collection", requestID, err, nil)
		return []models.Product{}
	}

	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if p.Matches(category, query) {
			out = append(out, p)
		}
	}
	return out
}

// SaveProduct upserts a product and broadcasts the catalog
func (s *Service) SaveProduct(ctx context.Context, p models.Product, origin, requestID string) (models.Product, error) {
	if p.Image == "" {
		p.Image = models.DefaultProductImage
	}

	var previous string
	if existing, err := storage.GetProduct(ctx, s.records, p.ID); err == nil {
		previous = existing.Image
	}

	if err := s.records.Put(ctx, p); err != nil {
		return models.Product{}, fmt.Errorf("failed to save product: %w", err)
	}

	s.logger.Info("product_saved", "Product saved", requestID, map[string]interface{}{
		"product_id": p.ID,
		"price":      p.Price.String(),
	})

	if previous != "" && previous != p.Image {
		s.removeImage(previous, requestID)
	}

	s.sync.PublishProducts(ctx, s.records, origin, requestID)
	return p, nil
}

// DeleteProduct removes a product and the image uploaded for it
func (s *Service) DeleteProduct(ctx context.Context, id, origin, requestID string) error {
	p, err := storage.GetProduct(ctx, s.records, id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	if err != nil {
		return err
	}

	if err := s.records.Delete(ctx, models.CollectionProducts, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.logger.Info("product_deleted", "Product deleted", requestID, map[string]interface{}{"product_id": id})
	s.removeImage(p.Image, requestID)
	s.sync.PublishProducts(ctx, s.records, origin, requestID)
	return nil
}

func (s *Service) removeImage(path, requestID string) {
	if s.images == nil {
		return
	}
	if err := s.images.Remove(path); err != nil {
		s.logger.Error("image_remove_failed", "Failed to remove product image", requestID, err, map[string]interface{}{
			"path": path,
		})
	}
}

// Categories returns every category
func (s *Service) Categories(ctx context.Context) ([]models.Category, error) {
	return storage.ListCategories(ctx, s.records)
}

// SaveCategory upserts a category. Names are unique.
func (s *Service) SaveCategory(ctx context.Context, c models.Category, requestID string) (models.Category, error) {
	if err := s.records.Put(ctx, c); err != nil {
		return models.Category{}, fmt.Errorf("failed to save category: %w", err)
	}
	s.logger.Info("category_saved", "Category saved", requestID, map[string]interface{}{
		"category_id": c.ID,
		"name":        c.Name,
	})
	return c, nil
}

// DeleteCategory removes a category. Products keep their category name.
func (s *Service) DeleteCategory(ctx context.Context, id, requestID string) error {
	if _, err := s.records.Get(ctx, models.CollectionCategories, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrCategoryNotFound, id)
		}
		return err
	}
	if err := s.records.Delete(ctx, models.CollectionCategories, id); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	s.logger.Info("category_deleted", "Category deleted", requestID, map[string]interface{}{"category_id": id})
	return nil
}

// UploadImage stores an image and returns the path to put on a product
func (s *Service) UploadImage(ctx context.Context, filename string, r io.Reader, requestID string) (string, error) {
	if s.images == nil {
		return "", errors.New("image uploads are not configured")
	}
	path, err := s.images.Upload(ctx, filename, r)
	if err != nil {
		return "", err
	}
	s.logger.Info("image_uploaded", "Product image uploaded", requestID, map[string]interface{}{
		"filename": filename,
		"path":     path,
	})
	return path, nil
}

// Seed fills empty category and product collections with the defaults
func (s *Service) Seed(ctx context.Context, requestID string) error {
	categories, err := storage.ListCategories(ctx, s.records)
	if err != nil {
		return fmt.Errorf("failed to list categories: %w", err)
	}
	if len(categories) == 0 {
		for _, c := range models.DefaultCategories() {
			if err := s.records.Put(ctx, c); err != nil {
				return fmt.Errorf("failed to seed category %s: %w", c.Name, err)
			}
		}
		s.logger.Info("catalog_seeded", "Default categories created", requestID, nil)
	}

	products, err := storage.ListProducts(ctx, s.records)
	if err != nil {
		return fmt.Errorf("failed to list products: %w", err)
	}
	if len(products) == 0 {
		for _, p := range models.DefaultProducts() {
			if err := s.records.Put(ctx, p); err != nil {
				return fmt.Errorf("failed to seed product %s: %w", p.ID, err)
			}
		}
		s.logger.Info("catalog_seeded", "Default products created", requestID, nil)
	}
	return nil
}
