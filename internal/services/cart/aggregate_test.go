package cart

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-store/internal/models"
)

func TestBuildOrder_SingleLine(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	c := Cart{Lines: []Line{{ProductID: "p1", Quantity: 3}}}

	order, err := BuildOrder(c, models.DefaultProducts(), "C-123456", now)
	require.NoError(t, err)

	assert.Equal(t, "25.5", order.TotalAmount.String())
	require.Len(t, order.Items, 1)
	item := order.Items[0]
	assert.Equal(t, "p1", item.ProductID)
	assert.Equal(t, "Fuji Apples", item.Name)
	assert.Equal(t, 3, item.Quantity)
	assert.True(t, item.Price.Equal(decimal.RequireFromString("8.5")))

	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, "C-123456", order.ClientID)
	assert.Equal(t, now, order.CreatedAt)
	assert.Equal(t, now, order.UpdatedAt)
	assert.Equal(t, 1, order.Version)
	assert.NotEmpty(t, order.ID)
	assert.NoError(t, order.Validate())
}

func TestBuildOrder_SnapshotsPrices(t *testing.T) {
	catalog := models.DefaultProducts()
	c := Cart{Lines: []Line{{ProductID: "p2", Quantity: 3}, {ProductID: "p1", Quantity: 1}}}

	order, err := BuildOrder(c, catalog, "C-1", time.Now())
	require.NoError(t, err)

	catalog[0].Price = decimal.RequireFromString("100")
	catalog[0].Name = "Renamed"

	assert.Equal(t, "Fuji Apples", order.Items[1].Name)
	assert.Equal(t, "12.1", order.TotalAmount.String())
	assert.Equal(t, []string{"p2", "p1"}, []string{order.Items[0].ProductID, order.Items[1].ProductID})
}

func TestBuildOrder_AllOrNothing(t *testing.T) {
	c := Cart{Lines: []Line{{ProductID: "p1", Quantity: 1}, {ProductID: "gone", Quantity: 2}, {ProductID: "gone-too", Quantity: 1}}}

	order, err := BuildOrder(c, models.DefaultProducts(), "C-1", time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProductNotFound))

	var missing *MissingProductsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"gone", "gone-too"}, missing.ProductIDs)
	assert.Empty(t, order.ID)
}

func TestBuildOrder_EmptyCart(t *testing.T) {
	_, err := BuildOrder(Cart{}, models.DefaultProducts(), "C-1", time.Now())
	assert.True(t, errors.Is(err, ErrEmptyCart))
}

func TestBuildOrder_TimestampsAtStoredPrecision(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 987654321, time.UTC)
	c := Cart{Lines: []Line{{ProductID: "p4", Quantity: 1}}}

	order, err := BuildOrder(c, models.DefaultProducts(), "C-123456", now)
	require.NoError(t, err)

	want := time.Date(2026, 3, 1, 9, 30, 0, 987000000, time.UTC)
	assert.Equal(t, want, order.CreatedAt)
	assert.Equal(t, order.CreatedAt, order.UpdatedAt)
}
