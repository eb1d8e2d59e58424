package models

import (
	"fmt"
	"strings"
)

// Role determines which order transitions and catalog edits a caller is offered
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RolePicker   Role = "PICKER"
	RoleCashier  Role = "CASHIER"
)

// ParseRole accepts a role name in any case
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleCustomer:
		return RoleCustomer, nil
	case RolePicker:
		return RolePicker, nil
	case RoleCashier:
		return RoleCashier, nil
	default:
		return "", fmt.Errorf("unknown role: %q", s)
	}
}

// IsStaff reports whether the role sits behind the staff gate
func (r Role) IsStaff() bool {
	return r == RolePicker || r == RoleCashier
}

// CanEditCatalog reports whether the role may change products and categories
func (r Role) CanEditCatalog() bool {
	return r == RoleCashier
}
