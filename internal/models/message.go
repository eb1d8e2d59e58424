package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// SyncTopic tags a snapshot broadcast
type SyncTopic string

const (
	TopicOrdersUpdated   SyncTopic = "orders.updated"
	TopicProductsUpdated SyncTopic = "products.updated"
)

// SyncMessage carries an entire collection to the other tabs. Receivers replace, never merge.
type SyncMessage struct {
	Topic    SyncTopic
	Origin   string
	Orders   []Order
	Products []Product
}

// NewOrdersMessage snapshots orders; the message shares no memory with the argument
func NewOrdersMessage(origin string, orders []Order) SyncMessage {
	return SyncMessage{Topic: TopicOrdersUpdated, Origin: origin, Orders: CloneOrders(orders)}
}

// NewProductsMessage snapshots products; the message shares no memory with the argument
func NewProductsMessage(origin string, products []Product) SyncMessage {
	cloned := slices.Clone(products)
	if cloned == nil {
		cloned = []Product{}
	}
	return SyncMessage{Topic: TopicProductsUpdated, Origin: origin, Products: cloned}
}

type syncWire struct {
	Type    SyncTopic       `json:"type"`
	Origin  string          `json:"origin,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalJSON writes {"type", "origin", "payload"} with the collection matching the topic
func (m SyncMessage) MarshalJSON() ([]byte, error) {
	var payload interface{}
	switch m.Topic {
	case TopicOrdersUpdated:
		if m.Orders == nil {
			payload = []Order{}
		} else {
			payload = m.Orders
		}
	case TopicProductsUpdated:
		if m.Products == nil {
			payload = []Product{}
		} else {
			payload = m.Products
		}
	default:
		return nil, fmt.Errorf("unknown sync topic: %q", m.Topic)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(syncWire{Type: m.Topic, Origin: m.Origin, Payload: raw})
}

func (m *SyncMessage) UnmarshalJSON(data []byte) error {
	var wire syncWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*m = SyncMessage{Topic: wire.Type, Origin: wire.Origin}
	switch wire.Type {
	case TopicOrdersUpdated:
		return json.Unmarshal(wire.Payload, &m.Orders)
	case TopicProductsUpdated:
		return json.Unmarshal(wire.Payload, &m.Products)
	default:
		return fmt.Errorf("unknown sync topic: %q", wire.Type)
	}
}

// StatusUpdateMessage represents a status update notification
type StatusUpdateMessage struct {
	OrderID     string          `json:"order_id"`
	ClientID    string          `json:"client_id"`
	OldStatus   OrderStatus     `json:"old_status,omitempty"`
	NewStatus   OrderStatus     `json:"new_status"`
	ChangedBy   Role            `json:"changed_by"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
	Timestamp   time.Time       `json:"timestamp"`
}

// IsNewOrder reports whether the notification announces a freshly submitted order
func (m StatusUpdateMessage) IsNewOrder() bool {
	return m.OldStatus == "" && m.NewStatus == StatusPending
}

// CreateStatusUpdateMessage creates a StatusUpdateMessage for order status changes.
// oldStatus is empty for a newly submitted order.
func CreateStatusUpdateMessage(order Order, oldStatus OrderStatus, changedBy Role) *StatusUpdateMessage {
	return &StatusUpdateMessage{
		OrderID:     order.ID,
		ClientID:    order.ClientID,
		OldStatus:   oldStatus,
		NewStatus:   order.Status,
		ChangedBy:   changedBy,
		TotalAmount: order.TotalAmount,
		ItemCount:   order.ItemCount(),
		Timestamp:   time.Now().UTC(),
	}
}
