package order

import "smart-store/internal/models"

// Action is one status transition a role may take on an order
type Action struct {
	Status models.OrderStatus `json:"status"`
	Label  string             `json:"label"`
}

var actionLabels = map[models.OrderStatus]string{
	models.StatusPickingDone: "Mark picked",
	models.StatusCompleted:   "Confirm payment",
}

// AvailableActions returns the transitions role may take from the order's current
// status. It depends on nothing but its arguments.
func AvailableActions(order models.Order, role models.Role) []Action {
	actions := []Action{}
	for _, t := range models.Transitions() {
		if t.From == order.Status && t.Allows(role) {
			actions = append(actions, Action{Status: t.To, Label: actionLabels[t.To]})
		}
	}
	return actions
}

// Visible reports whether an order belongs on role's board.
// Customers only see their own open orders; pickers see every open order; cashiers see all.
func Visible(order models.Order, role models.Role, clientID string) bool {
	switch role {
	case models.RoleCashier:
		return true
	case models.RolePicker:
		return !order.Status.Terminal()
	case models.RoleCustomer:
		return clientID != "" && order.ClientID == clientID && !order.Status.Terminal()
	}
	return false
}
