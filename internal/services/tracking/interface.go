package tracking

import (
	"context"

	"smart-store/internal/models"
)

// HistoryRepo reads the order status log
type HistoryRepo interface {
	ListHistory(ctx context.Context, orderID string) ([]models.OrderStatusHistory, error)
}

// Check is one dependency probed by the health endpoint
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}
