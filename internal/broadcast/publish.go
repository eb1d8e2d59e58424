package broadcast

import (
	"context"

	"smart-store/internal/models"
	"smart-store/internal/storage"
)

// PublishOrders reloads the orders collection and broadcasts the snapshot. The read
// and the delivery happen under the send lock, so a later write is never overtaken
// by an older snapshot. A failed read broadcasts nothing.
func (s *Synchronizer) PublishOrders(ctx context.Context, store storage.Store, origin, requestID string) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	orders, err := storage.ListOrders(ctx, store)
	if err != nil {
		s.logger.Error("broadcast_skipped", "Failed to reload orders after write", requestID, err, map[string]interface{}{
			"origin": origin,
		})
		return
	}
	s.publishLocked(models.NewOrdersMessage(origin, orders), requestID)
}

// PublishProducts reloads the products collection and broadcasts the snapshot
func (s *Synchronizer) PublishProducts(ctx context.Context, store storage.Store, origin, requestID string) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	products, err := storage.ListProducts(ctx, store)
	if err != nil {
		s.logger.Error("broadcast_skipped", "Failed to reload products after write", requestID, err, map[string]interface{}{
			"origin": origin,
		})
		return
	}
	s.publishLocked(models.NewProductsMessage(origin, products), requestID)
}

// Paused runs fn while no broadcast can be delivered. Tabs use it to read and queue
// their initial snapshot without racing a concurrent publish.
func (s *Synchronizer) Paused(fn func()) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	fn()
}

func (s *Synchronizer) publishLocked(msg models.SyncMessage, requestID string) {
	if err := s.broadcastLocked(msg); err != nil {
		s.logger.Debug("broadcast_skipped", "Synchronizer is closed", requestID, map[string]interface{}{
			"type": string(msg.Topic),
		})
	}
}
