// Package order serves the role boards and applies status transitions to stored orders.
package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"smart-store/internal/broadcast"
	"smart-store/internal/logger"
	"smart-store/internal/messaging"
	"smart-store/internal/models"
	"smart-store/internal/storage"
)

var ErrOrderNotFound = errors.New("order not found")

// BoardEntry is an order together with the actions the viewer may take on it
type BoardEntry struct {
	models.Order
	Actions []Action `json:"actions"`
}

// Service applies status transitions and builds the role boards
type Service struct {
	records  storage.Store
	history  storage.HistoryStore
	sync     *broadcast.Synchronizer
	notifier messaging.Notifier
	logger   *logger.Logger
	now      func() time.Time
}

func NewService(records storage.Store, history storage.HistoryStore, synchronizer *broadcast.Synchronizer,
	notifier messaging.Notifier, log *logger.Logger) *Service {
	if notifier == nil {
		notifier = messaging.NopNotifier{}
	}
	return &Service{
		records:  records,
		history:  history,
		sync:     synchronizer,
		notifier: notifier,
		logger:   log,
		now:      time.Now,
	}
}

// StatusChange is a request to move an order to Status
type StatusChange struct {
	OrderID string
	Status  models.OrderStatus
	Role    models.Role
	// ExpectedVersion, when set, must match the stored version
	ExpectedVersion *int
	Origin          string
}

// UpdateOrderStatus loads the order, applies the transition, persists it and broadcasts
// the order collection. A vanished order is logged and reported as ErrOrderNotFound
// without writing or broadcasting anything.
func (s *Service) UpdateOrderStatus(ctx context.Context, change StatusChange, requestID string) (models.Order, error) {
	current, err := storage.GetOrder(ctx, s.records, change.OrderID)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("order_not_found", "Status change for missing order ignored", requestID, map[string]interface{}{
			"order_id": change.OrderID,
			"status":   string(change.Status),
		})
		return models.Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, change.OrderID)
	}
	if err != nil {
		return models.Order{}, err
	}

	if change.ExpectedVersion != nil && *change.ExpectedVersion != current.Version {
		return models.Order{}, fmt.Errorf("%w: order %s is at version %d, caller expected %d",
			storage.ErrStaleVersion, current.ID, current.Version, *change.ExpectedVersion)
	}

	updated, err := current.Apply(change.Role, change.Status, s.now().UTC())
	if err != nil {
		return models.Order{}, err
	}

	if err := s.records.Put(ctx, updated); err != nil {
		return models.Order{}, fmt.Errorf("failed to save order: %w", err)
	}

	s.logger.Info("order_status_changed", "Order status updated", requestID, map[string]interface{}{
		"order_id":   updated.ID,
		"old_status": string(current.Status),
		"new_status": string(updated.Status),
		"changed_by": string(change.Role),
		"version":    updated.Version,
	})

	s.recordHistory(ctx, current, updated, change.Role, requestID)
	s.sync.PublishOrders(ctx, s.records, change.Origin, requestID)

	if current.Status != updated.Status {
		msg := models.CreateStatusUpdateMessage(updated, current.Status, change.Role)
		if err := s.notifier.PublishStatusUpdate(ctx, msg); err != nil {
			s.logger.Error("notification_failed", "Failed to announce status change", requestID, err, map[string]interface{}{
				"order_id": updated.ID,
			})
		}
	}

	return updated, nil
}

func (s *Service) recordHistory(ctx context.Context, before, after models.Order, role models.Role, requestID string) {
	if s.history == nil {
		return
	}
	notes := fmt.Sprintf("%s -> %s", before.Status, after.Status)
	if before.Status == after.Status {
		notes = "status re-applied"
	}
	entry := models.OrderStatusHistory{
		OrderID:   after.ID,
		Status:    after.Status,
		ChangedBy: role,
		ChangedAt: after.UpdatedAt,
		Notes:     notes,
	}
	if err := s.history.AppendHistory(ctx, entry); err != nil {
		s.logger.Error("history_write_failed", "Failed to record status change", requestID, err, map[string]interface{}{
			"order_id": after.ID,
		})
	}
}

// Board returns the orders visible to role, most recently updated first
func (s *Service) Board(ctx context.Context, role models.Role, clientID, requestID string) []BoardEntry {
	orders := storage.OrdersOrEmpty(ctx, s.records, s.logger, requestID)

	entries := make([]BoardEntry, 0, len(orders))
	for _, o := range orders {
		if !Visible(o, role, clientID) {
			continue
		}
		entries = append(entries, BoardEntry{Order: o, Actions: AvailableActions(o, role)})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
	})
	return entries
}

// Delete removes an order and broadcasts the remaining collection
func (s *Service) Delete(ctx context.Context, orderID, origin, requestID string) error {
	if _, err := storage.GetOrder(ctx, s.records, orderID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return err
	}

	if err := s.records.Delete(ctx, models.CollectionOrders, orderID); err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}

	s.logger.Info("order_deleted", "Order deleted", requestID, map[string]interface{}{"order_id": orderID})
	s.sync.PublishOrders(ctx, s.records, origin, requestID)
	return nil
}
