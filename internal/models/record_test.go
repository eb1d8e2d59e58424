package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecord(t *testing.T) {
	tests := []struct {
		name       string
		collection Collection
		body       string
		wantErr    bool
	}{
		{
			name:       "valid product",
			collection: CollectionProducts,
			body:       `{"id":"p1","name":"Fuji Apples","price":8.5,"unit":"jin","category":"Fruit","image":"","spec":"Premium"}`,
		},
		{
			name:       "negative price",
			collection: CollectionProducts,
			body:       `{"id":"p1","name":"Fuji Apples","price":-1}`,
			wantErr:    true,
		},
		{
			name:       "unknown field",
			collection: CollectionProducts,
			body:       `{"id":"p1","name":"Fuji Apples","price":1,"stock":3}`,
			wantErr:    true,
		},
		{
			name:       "valid category",
			collection: CollectionCategories,
			body:       `{"id":"c1","name":"Fruit"}`,
		},
		{
			name:       "category without name",
			collection: CollectionCategories,
			body:       `{"id":"c1"}`,
			wantErr:    true,
		},
		{
			name:       "order with wrong total",
			collection: CollectionOrders,
			body:       `{"id":"O1","client_id":"C-1","status":"PENDING","items":[{"product_id":"p1","name":"A","quantity":2,"price":"1.5"}],"total_amount":"4","created_at":"2026-03-01T09:00:00Z","updated_at":"2026-03-01T09:00:00Z","version":1}`,
			wantErr:    true,
		},
		{
			name:       "unknown collection",
			collection: Collection("users"),
			body:       `{}`,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := DecodeRecord(tt.collection, []byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.collection, rec.Collection())
		})
	}
}

func TestDecodeRecord_OrderKeepsItemOrder(t *testing.T) {
	order := newTestOrder(StatusPending)
	order.Items = append(order.Items, OrderItem{ProductID: "p4", Name: "Spring Water", Quantity: 2, Price: decimal.RequireFromString("2")})
	order.TotalAmount = CalculateTotal(order.Items)

	body, err := json.Marshal(order)
	require.NoError(t, err)

	rec, err := DecodeRecord(CollectionOrders, body)
	require.NoError(t, err)

	decoded, ok := rec.(Order)
	require.True(t, ok)
	require.Len(t, decoded.Items, 2)
	assert.Equal(t, "p1", decoded.Items[0].ProductID)
	assert.Equal(t, "p4", decoded.Items[1].ProductID)
	assert.True(t, order.TotalAmount.Equal(decoded.TotalAmount))
}

func TestSyncMessage_WireFormat(t *testing.T) {
	msg := NewOrdersMessage("tab-1", []Order{newTestOrder(StatusPending)})

	body, err := json.Marshal(msg)
	require.NoError(t, err)

	var wire map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &wire))
	assert.JSONEq(t, `"orders.updated"`, string(wire["type"]))

	var decoded SyncMessage
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, TopicOrdersUpdated, decoded.Topic)
	require.Len(t, decoded.Orders, 1)
	assert.Equal(t, "ABC123XYZ", decoded.Orders[0].ID)
	assert.Nil(t, decoded.Products)
}

func TestSyncMessage_EmptyCollectionIsArray(t *testing.T) {
	body, err := json.Marshal(NewProductsMessage("", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"products.updated","payload":[]}`, string(body))
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("picker")
	require.NoError(t, err)
	assert.Equal(t, RolePicker, role)
	assert.True(t, role.IsStaff())
	assert.False(t, role.CanEditCatalog())

	_, err = ParseRole("manager")
	assert.Error(t, err)
}

func TestProductMatches(t *testing.T) {
	p := Product{Name: "Fuji Apples", Category: "Fruit"}
	assert.True(t, p.Matches("", ""))
	assert.True(t, p.Matches("Fruit", "Apple"))
	assert.True(t, p.Matches("", "Fru"))
	assert.False(t, p.Matches("Drinks", ""))
	assert.False(t, p.Matches("", "Water"))
}

func TestDecodeRecord_AssignsCatalogIDs(t *testing.T) {
	rec, err := DecodeRecord(CollectionProducts, []byte(`{"name":"Rice","price":"3.2","unit":"kg"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, rec.RecordID())

	rec, err = DecodeRecord(CollectionCategories, []byte(`{"name":"Snacks"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, rec.RecordID())

	_, err = DecodeRecord(CollectionOrders, []byte(`{"client_id":"C-1"}`))
	assert.Error(t, err)
}
