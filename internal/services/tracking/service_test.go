package tracking

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-store/internal/logger"
	"smart-store/internal/models"
	"smart-store/internal/storage"
)

func seededStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := storage.NewMemoryStore()
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	items := []models.OrderItem{{ProductID: "p4", Name: "Spring Water", Quantity: 2, Price: decimal.RequireFromString("2")}}
	require.NoError(t, s.Put(ctx, models.Order{
		ID: "O1", ClientID: "C-1", Status: models.StatusPickingDone, Items: items,
		TotalAmount: models.CalculateTotal(items), CreatedAt: created, UpdatedAt: created.Add(time.Minute), Version: 2,
	}))
	require.NoError(t, s.AppendHistory(ctx, models.OrderStatusHistory{OrderID: "O1", Status: models.StatusPending, ChangedBy: models.RoleCustomer, ChangedAt: created}))
	require.NoError(t, s.AppendHistory(ctx, models.OrderStatusHistory{OrderID: "O1", Status: models.StatusPickingDone, ChangedBy: models.RolePicker, ChangedAt: created.Add(time.Minute)}))
	return s
}

func TestGetOrderHistory(t *testing.T) {
	svc := NewService(seededStore(t), logger.Discard())

	history, err := svc.GetOrderHistory(context.Background(), "O1", "req-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.RolePicker, history[1].ChangedBy)

	_, err = svc.GetOrderHistory(context.Background(), "missing", "req-1")
	assert.True(t, errors.Is(err, ErrOrderNotFound))
}

func TestHealthCheck(t *testing.T) {
	svc := NewService(storage.NewMemoryStore(), logger.Discard(),
		Check{Name: "store", Ping: func(context.Context) error { return nil }},
		Check{Name: "redis", Ping: func(context.Context) error { return errors.New("connection refused") }},
	)

	checks, healthy := svc.HealthCheck(context.Background())
	assert.False(t, healthy)
	assert.Equal(t, "ok", checks["store"])
	assert.Equal(t, "connection refused", checks["redis"])

	rec := httptest.NewRecorder()
	NewHandler(svc, logger.Discard()).HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"unhealthy"`)
}

func TestHandler_GetOrderHistory(t *testing.T) {
	h := NewHandler(NewService(seededStore(t), logger.Discard()), logger.Discard())
	r := chi.NewRouter()
	r.Get("/api/orders/{id}/history", h.GetOrderHistory)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/O1/history", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"changed_by":"PICKER"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/O2/history", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
