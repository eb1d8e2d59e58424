package models

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	StatusPending     OrderStatus = "PENDING"
	StatusPickingDone OrderStatus = "PICKING_DONE"
	StatusCompleted   OrderStatus = "COMPLETED"
)

var (
	ErrUnknownStatus     = errors.New("unknown order status")
	ErrIllegalTransition = errors.New("illegal order transition")
	ErrRoleNotPermitted  = errors.New("role not permitted for transition")
)

// Valid reports whether s is one of the lifecycle states
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPickingDone, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted
}

// Transition is one forward step of the order lifecycle and the roles allowed to take it
type Transition struct {
	From  OrderStatus `json:"from"`
	To    OrderStatus `json:"to"`
	Roles []Role      `json:"-"`
}

// Allows reports whether role may take the transition
func (t Transition) Allows(role Role) bool {
	return slices.Contains(t.Roles, role)
}

// The lifecycle is linear: each state has at most one successor.
var transitions = []Transition{
	{From: StatusPending, To: StatusPickingDone, Roles: []Role{RolePicker, RoleCashier}},
	{From: StatusPickingDone, To: StatusCompleted, Roles: []Role{RoleCashier}},
}

// Transitions returns a copy of the lifecycle rules
func Transitions() []Transition {
	out := make([]Transition, len(transitions))
	for i, t := range transitions {
		out[i] = Transition{From: t.From, To: t.To, Roles: slices.Clone(t.Roles)}
	}
	return out
}

// CanTransition reports whether role may move an order from one state to the next
func CanTransition(role Role, from, to OrderStatus) bool {
	for _, t := range transitions {
		if t.From == from && t.To == to {
			return t.Allows(role)
		}
	}
	return false
}

// canEnter reports whether role may move any order into status
func canEnter(role Role, status OrderStatus) bool {
	for _, t := range transitions {
		if t.To == status && t.Allows(role) {
			return true
		}
	}
	return false
}

// OrderItem is a snapshot of a product line taken when the order was built
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Subtotal returns price × quantity
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order represents a customer order
type Order struct {
	ID          string          `json:"id"`
	ClientID    string          `json:"client_id"`
	Status      OrderStatus     `json:"status"`
	Items       []OrderItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Version     int             `json:"version"`
}

func (o Order) Collection() Collection { return CollectionOrders }
func (o Order) RecordID() string       { return o.ID }

// ItemCount returns the total quantity across lines
func (o Order) ItemCount() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

// StoredTime normalizes t to UTC at millisecond precision, the finest every
// record store keeps (MongoDB dates are milliseconds, TIMESTAMPTZ microseconds).
func StoredTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// CalculateTotal sums price × quantity across items
func CalculateTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Apply returns the order moved to next by role at now.
// Re-applying the current status is a touch: only updated_at and version change.
func (o Order) Apply(role Role, next OrderStatus, now time.Time) (Order, error) {
	if !next.Valid() {
		return Order{}, fmt.Errorf("%w: %q", ErrUnknownStatus, next)
	}

	switch {
	case next == o.Status:
		if !canEnter(role, next) {
			return Order{}, fmt.Errorf("%w: %s may not set %s", ErrRoleNotPermitted, role, next)
		}
	case CanTransition(role, o.Status, next):
	case isRule(o.Status, next):
		return Order{}, fmt.Errorf("%w: %s may not move %s to %s", ErrRoleNotPermitted, role, o.Status, next)
	default:
		return Order{}, fmt.Errorf("%w: %s to %s", ErrIllegalTransition, o.Status, next)
	}

	updated := o.Clone()
	updated.Status = next
	updated.UpdatedAt = StoredTime(now)
	updated.Version = o.Version + 1
	return updated, nil
}

func isRule(from, to OrderStatus) bool {
	for _, t := range transitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with o
func (o Order) Clone() Order {
	o.Items = slices.Clone(o.Items)
	return o
}

// CloneOrders deep-copies a collection of orders
func CloneOrders(orders []Order) []Order {
	out := make([]Order, len(orders))
	for i, o := range orders {
		out[i] = o.Clone()
	}
	return out
}

// Validate checks an order before it is accepted by a store
func (o Order) Validate() error {
	if err := requireText("id", o.ID, 64); err != nil {
		return err
	}
	if err := requireText("client_id", o.ClientID, 64); err != nil {
		return err
	}
	if !o.Status.Valid() {
		return ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", o.Status)}
	}
	if len(o.Items) == 0 {
		return ValidationError{Field: "items", Message: "items cannot be empty"}
	}
	for i, item := range o.Items {
		if err := validateItem(item, i); err != nil {
			return err
		}
	}
	if !o.TotalAmount.Equal(CalculateTotal(o.Items)) {
		return ValidationError{Field: "total_amount", Message: "must equal the sum of item price × quantity"}
	}
	if o.CreatedAt.IsZero() || o.UpdatedAt.IsZero() {
		return ValidationError{Field: "created_at", Message: "timestamps are required"}
	}
	if o.UpdatedAt.Before(o.CreatedAt) {
		return ValidationError{Field: "updated_at", Message: "must not precede created_at"}
	}
	if o.Version < 1 {
		return ValidationError{Field: "version", Message: "must be at least 1"}
	}
	return nil
}

func validateItem(item OrderItem, index int) error {
	prefix := fmt.Sprintf("items[%d]", index)

	if item.ProductID == "" {
		return ValidationError{Field: prefix + ".product_id", Message: "is required"}
	}
	if item.Name == "" {
		return ValidationError{Field: prefix + ".name", Message: "is required"}
	}
	if item.Quantity <= 0 {
		return ValidationError{Field: prefix + ".quantity", Message: "must be greater than 0"}
	}
	if item.Price.IsNegative() {
		return ValidationError{Field: prefix + ".price", Message: "must not be negative"}
	}
	return nil
}

// NewOrderID returns a nine character upper-case order identifier
func NewOrderID() string {
	return shortToken(9)
}

// NewClientID returns a per-session client token such as C-3F9A1B
func NewClientID() string {
	return "C-" + shortToken(6)
}

// OrderStatusHistory represents an entry in the order status log
type OrderStatusHistory struct {
	OrderID   string      `json:"order_id"`
	Status    OrderStatus `json:"status"`
	ChangedBy Role        `json:"changed_by"`
	ChangedAt time.Time   `json:"timestamp"`
	Notes     string      `json:"notes,omitempty"`
}
