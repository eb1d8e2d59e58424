// Package notification turns order status notifications into staff alerts.
package notification

import (
	"context"
	"fmt"
	"io"

	"smart-store/internal/logger"
	"smart-store/internal/messaging"
	"smart-store/internal/models"
)

// Subscriber handles notification messages
type Subscriber struct {
	consumer *messaging.Consumer
	gate     *Gate
	logger   *logger.Logger
	out      io.Writer
}

// NewSubscriber creates a new notification subscriber writing alerts to out
func NewSubscriber(consumer *messaging.Consumer, gate *Gate, log *logger.Logger, out io.Writer) *Subscriber {
	return &Subscriber{
		consumer: consumer,
		gate:     gate,
		logger:   log,
		out:      out,
	}
}

// Start consumes notifications until ctx is done
func (s *Subscriber) Start(ctx context.Context) error {
	requestID := logger.GenerateRequestID()
	s.logger.Info("service_started", "Alert subscriber started", requestID, nil)

	err := s.consumer.StartConsuming(ctx, s.HandleNotification)
	if ctx.Err() != nil {
		s.logger.Info("graceful_shutdown", "Stopping alert subscriber", requestID, nil)
		s.consumer.Close()
		return nil
	}
	if err != nil {
		s.logger.Error("consumer_failed", "Notification consumer failed", requestID, err, nil)
	}
	return err
}

// HandleNotification processes one status update notification
func (s *Subscriber) HandleNotification(ctx context.Context, body []byte) error {
	requestID := logger.GenerateRequestID()

	var update models.StatusUpdateMessage
	if err := messaging.ParseMessage(body, &update); err != nil {
		s.logger.Error("message_parsing_failed", "Failed to parse notification message", requestID, err, nil)
		return fmt.Errorf("failed to parse notification: %w", err)
	}

	s.logger.Debug("notification_received", "Received status update notification", requestID, map[string]interface{}{
		"order_id":   update.OrderID,
		"new_status": update.NewStatus,
		"changed_by": update.ChangedBy,
	})

	alert := s.gate.Trigger(FormatNotification(&update))
	s.display(alert, &update, requestID)
	return nil
}

func (s *Subscriber) display(alert Alert, update *models.StatusUpdateMessage, requestID string) {
	line := alert.Message
	if alert.Audio {
		line = "🔔 " + line
	}
	fmt.Fprintln(s.out, line)

	s.logger.Info("alert_displayed", "Staff alert displayed", requestID, map[string]interface{}{
		"order_id":      update.OrderID,
		"old_status":    update.OldStatus,
		"new_status":    update.NewStatus,
		"changed_by":    update.ChangedBy,
		"audio":         alert.Audio,
		"visible_until": alert.VisibleUntil.Format("2006-01-02 15:04:05"),
	})
}

// FormatNotification creates a human-readable alert line
func FormatNotification(update *models.StatusUpdateMessage) string {
	timestamp := update.Timestamp.Format("2006-01-02 15:04:05")

	if update.IsNewOrder() {
		return fmt.Sprintf("🛒 [%s] New order %s: %d items, total %s. Please handle it promptly.",
			timestamp, update.OrderID, update.ItemCount, update.TotalAmount.StringFixed(2))
	}

	switch update.NewStatus {
	case models.StatusPickingDone:
		return fmt.Sprintf("📦 [%s] Order %s has been picked and is waiting for payment.",
			timestamp, update.OrderID)
	case models.StatusCompleted:
		return fmt.Sprintf("✅ [%s] Order %s is paid and completed.",
			timestamp, update.OrderID)
	default:
		return fmt.Sprintf("📋 [%s] Order %s status changed from '%s' to '%s' by %s.",
			timestamp, update.OrderID, update.OldStatus, update.NewStatus, update.ChangedBy)
	}
}
