package cart

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"smart-store/internal/broadcast"
	"smart-store/internal/logger"
	"smart-store/internal/messaging"
	"smart-store/internal/models"
	"smart-store/internal/storage"
)

// Catalog provides the current product list
type Catalog interface {
	Products(ctx context.Context) ([]models.Product, error)
}

// Service runs the cart operations and order submission
type Service struct {
	carts    Store
	records  storage.Store
	history  storage.HistoryStore
	catalog  Catalog
	sync     *broadcast.Synchronizer
	notifier messaging.Notifier
	logger   *logger.Logger
	now      func() time.Time

	locks [lockStripes]sync.Mutex
}

// lockStripes bounds the per-client locks; clients sharing a stripe serialize
const lockStripes = 64

func NewService(carts Store, records storage.Store, history storage.HistoryStore, catalog Catalog,
	synchronizer *broadcast.Synchronizer, notifier messaging.Notifier, log *logger.Logger) *Service {
	if notifier == nil {
		notifier = messaging.NopNotifier{}
	}
	return &Service{
		carts:    carts,
		records:  records,
		history:  history,
		catalog:  catalog,
		sync:     synchronizer,
		notifier: notifier,
		logger:   log,
		now:      time.Now,
	}
}

// ViewLine is a cart entry joined with its catalog product
type ViewLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Available bool            `json:"available"`
}

// View is the cart as the customer tab renders it
type View struct {
	ClientID string          `json:"client_id"`
	Lines    []ViewLine      `json:"lines"`
	Count    int             `json:"count"`
	Total    decimal.Decimal `json:"total"`
}

func stripe(clientID string) int {
	h := fnv.New32a()
	h.Write([]byte(clientID))
	return int(h.Sum32() % lockStripes)
}

func (s *Service) lock(clientID string) func() {
	mu := &s.locks[stripe(clientID)]
	mu.Lock()
	return mu.Unlock
}

// Get returns the client's cart priced against the current catalog
func (s *Service) Get(ctx context.Context, clientID string) (View, error) {
	c, err := s.carts.Load(ctx, clientID)
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, clientID, c)
}

// Add puts one more unit of productID into the cart
func (s *Service) Add(ctx context.Context, clientID, productID string) (View, error) {
	products, err := s.catalog.Products(ctx)
	if err != nil {
		return View{}, err
	}
	if !containsProduct(products, productID) {
		return View{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}

	unlock := s.lock(clientID)
	defer unlock()

	c, err := s.carts.Load(ctx, clientID)
	if err != nil {
		return View{}, err
	}
	c.Add(productID)
	if err := s.carts.Save(ctx, clientID, c); err != nil {
		return View{}, err
	}
	return buildView(clientID, c, products), nil
}

// Remove takes one unit of productID out of the cart
func (s *Service) Remove(ctx context.Context, clientID, productID string) (View, error) {
	unlock := s.lock(clientID)
	defer unlock()

	c, err := s.carts.Load(ctx, clientID)
	if err != nil {
		return View{}, err
	}
	c.Remove(productID)
	if err := s.carts.Save(ctx, clientID, c); err != nil {
		return View{}, err
	}
	return s.view(ctx, clientID, c)
}

// Clear empties the cart
func (s *Service) Clear(ctx context.Context, clientID string) error {
	unlock := s.lock(clientID)
	defer unlock()
	return s.carts.Delete(ctx, clientID)
}

// Submit converts the cart into an order. Nothing is persisted and the cart is kept
// when any entry no longer resolves in the catalog.
func (s *Service) Submit(ctx context.Context, clientID, origin, requestID string) (models.Order, error) {
	unlock := s.lock(clientID)
	defer unlock()

	c, err := s.carts.Load(ctx, clientID)
	if err != nil {
		return models.Order{}, err
	}

	products, err := s.catalog.Products(ctx)
	if err != nil {
		return models.Order{}, err
	}

	order, err := BuildOrder(c, products, clientID, s.now())
	if err != nil {
		return models.Order{}, err
	}

	if err := s.records.Put(ctx, order); err != nil {
		return models.Order{}, fmt.Errorf("failed to save order: %w", err)
	}

	s.logger.Info("order_submitted", "Order submitted", requestID, map[string]interface{}{
		"order_id":     order.ID,
		"client_id":    clientID,
		"item_count":   order.ItemCount(),
		"total_amount": order.TotalAmount.String(),
	})

	if s.history != nil {
		entry := models.OrderStatusHistory{
			OrderID:   order.ID,
			Status:    order.Status,
			ChangedBy: models.RoleCustomer,
			ChangedAt: order.CreatedAt,
			Notes:     "order submitted",
		}
		if err := s.history.AppendHistory(ctx, entry); err != nil {
			s.logger.Error("history_write_failed", "Failed to record initial status", requestID, err, map[string]interface{}{
				"order_id": order.ID,
			})
		}
	}

	if err := s.carts.Delete(ctx, clientID); err != nil {
		s.logger.Error("cart_clear_failed", "Order saved but cart was not cleared", requestID, err, map[string]interface{}{
			"order_id":  order.ID,
			"client_id": clientID,
		})
	}

	s.sync.PublishOrders(ctx, s.records, origin, requestID)

	if err := s.notifier.PublishStatusUpdate(ctx, models.CreateStatusUpdateMessage(order, "", models.RoleCustomer)); err != nil {
		s.logger.Error("notification_failed", "Failed to announce new order", requestID, err, map[string]interface{}{
			"order_id": order.ID,
		})
	}

	return order, nil
}

func (s *Service) view(ctx context.Context, clientID string, c Cart) (View, error) {
	products, err := s.catalog.Products(ctx)
	if err != nil {
		return View{}, err
	}
	return buildView(clientID, c, products), nil
}

func buildView(clientID string, c Cart, products []models.Product) View {
	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	v := View{ClientID: clientID, Lines: []ViewLine{}, Total: decimal.Zero}
	for _, l := range c.Lines {
		line := ViewLine{ProductID: l.ProductID, Quantity: l.Quantity}
		if p, ok := byID[l.ProductID]; ok {
			line.Name = p.Name
			line.Unit = p.Unit
			line.Image = p.Image
			line.Price = p.Price
			line.Subtotal = p.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
			line.Available = true
			v.Total = v.Total.Add(line.Subtotal)
		}
		v.Count += l.Quantity
		v.Lines = append(v.Lines, line)
	}
	return v
}

func containsProduct(products []models.Product, id string) bool {
	for _, p := range products {
		if p.ID == id {
			return true
		}
	}
	return false
}
