// Package tracking serves order status history and the health of the store's dependencies.
package tracking

import (
	"context"
	"errors"
	"fmt"

	"smart-store/internal/logger"
	"smart-store/internal/models"
	"smart-store/internal/storage"
)

var ErrOrderNotFound = errors.New("order not found")

// Service provides tracking functionality
type Service struct {
	history HistoryRepo
	checks  []Check
	logger  *logger.Logger
}

func NewService(history HistoryRepo, log *logger.Logger, checks ...Check) *Service {
	return &Service{
		history: history,
		checks:  checks,
		logger:  log,
	}
}

// GetOrderHistory retrieves the complete status history of an order
func (s *Service) GetOrderHistory(ctx context.Context, orderID, requestID string) ([]models.OrderStatusHistory, error) {
	history, err := s.history.ListHistory(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if err != nil {
		s.logger.Error("db_query_failed", "Failed to query order history", requestID, err, map[string]interface{}{
			"order_id": orderID,
		})
		return nil, fmt.Errorf("database error: %w", err)
	}
	if history == nil {
		history = []models.OrderStatusHistory{}
	}
	return history, nil
}

// HealthCheck pings every dependency and reports each one as "ok" or its error
func (s *Service) HealthCheck(ctx context.Context) (map[string]string, bool) {
	results := make(map[string]string, len(s.checks))
	healthy := true
	for _, c := range s.checks {
		if err := c.Ping(ctx); err != nil {
			s.logger.Error("health_check_failed", fmt.Sprintf("%s ping failed", c.Name), "", err, nil)
			results[c.Name] = err.Error()
			healthy = false
			continue
		}
		results[c.Name] = "ok"
	}
	return results, healthy
}
