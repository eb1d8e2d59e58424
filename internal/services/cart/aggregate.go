package cart

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"smart-store/internal/models"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrProductNotFound = errors.New("product not found")
)

// MissingProductsError lists every cart entry whose product is no longer in the catalog
type MissingProductsError struct {
	ProductIDs []string
}

func (e *MissingProductsError) Error() string {
	return fmt.Sprintf("products no longer available: %s", strings.Join(e.ProductIDs, ", "))
}

func (e *MissingProductsError) Is(target error) bool {
	return target == ErrProductNotFound
}

// BuildOrder turns c into a PENDING order priced against catalog. Every entry is
// resolved before anything is built, so a single missing product fails the whole order.
func BuildOrder(c Cart, catalog []models.Product, clientID string, now time.Time) (models.Order, error) {
	if c.IsEmpty() {
		return models.Order{}, ErrEmptyCart
	}

	byID := make(map[string]models.Product, len(catalog))
	for _, p := range catalog {
		byID[p.ID] = p
	}

	var missing []string
	for _, l := range c.Lines {
		if _, ok := byID[l.ProductID]; !ok {
			missing = append(missing, l.ProductID)
		}
	}
	if len(missing) > 0 {
		return models.Order{}, &MissingProductsError{ProductIDs: missing}
	}

	items := make([]models.OrderItem, 0, len(c.Lines))
	for _, l := range c.Lines {
		p := byID[l.ProductID]
		items = append(items, models.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  l.Quantity,
			Price:     p.Price,
		})
	}

	now = models.StoredTime(now)
	return models.Order{
		ID:          models.NewOrderID(),
		ClientID:    clientID,
		Status:      models.StatusPending,
		Items:       items,
		TotalAmount: models.CalculateTotal(items),
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}, nil
}
