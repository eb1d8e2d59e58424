package order

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"smart-store/internal/models"
)

func TestAvailableActions(t *testing.T) {
	tests := []struct {
		status models.OrderStatus
		role   models.Role
		want   []models.OrderStatus
	}{
		{models.StatusPending, models.RoleCustomer, nil},
		{models.StatusPending, models.RolePicker, []models.OrderStatus{models.StatusPickingDone}},
		{models.StatusPending, models.RoleCashier, []models.OrderStatus{models.StatusPickingDone}},
		{models.StatusPickingDone, models.RolePicker, nil},
		{models.StatusPickingDone, models.RoleCashier, []models.OrderStatus{models.StatusCompleted}},
		{models.StatusPickingDone, models.RoleCustomer, nil},
		{models.StatusCompleted, models.RoleCashier, nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.status)+"_"+string(tt.role), func(t *testing.T) {
			order := models.Order{ID: "O1", Status: tt.status}
			actions := AvailableActions(order, tt.role)

			var got []models.OrderStatus
			for _, a := range actions {
				got = append(got, a.Status)
				assert.NotEmpty(t, a.Label)
			}
			assert.Equal(t, tt.want, got)

			// same inputs, same answer
			assert.Equal(t, actions, AvailableActions(order, tt.role))
		})
	}
}

func TestVisible(t *testing.T) {
	open := models.Order{ClientID: "C-1", Status: models.StatusPickingDone}
	done := models.Order{ClientID: "C-1", Status: models.StatusCompleted}

	assert.True(t, Visible(open, models.RoleCustomer, "C-1"))
	assert.False(t, Visible(open, models.RoleCustomer, "C-2"))
	assert.False(t, Visible(open, models.RoleCustomer, ""))
	assert.False(t, Visible(done, models.RoleCustomer, "C-1"))

	assert.True(t, Visible(open, models.RolePicker, ""))
	assert.False(t, Visible(done, models.RolePicker, ""))

	assert.True(t, Visible(done, models.RoleCashier, ""))
}
