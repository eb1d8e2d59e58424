package tracking

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"smart-store/internal/httputil"
	"smart-store/internal/logger"
)

// Handler handles HTTP requests for the tracking service
type Handler struct {
	service *Service
	logger  *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// GetOrderHistory handles GET /api/orders/{id}/history requests
func (h *Handler) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	requestID := httputil.RequestID(r.Context())
	orderID := chi.URLParam(r, "id")

	h.logger.Debug("request_received", "Get order history request", requestID, map[string]interface{}{
		"order_id": orderID,
		"endpoint": "history",
	})

	history, err := h.service.GetOrderHistory(r.Context(), orderID, requestID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "Order not found", requestID)
		} else {
			httputil.WriteError(w, http.StatusInternalServerError, "Internal server error", requestID)
		}
		return
	}

	if err := httputil.WriteJSON(w, http.StatusOK, history); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", requestID, err, nil)
	}
}

// HealthCheck handles GET /health requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks, healthy := h.service.HealthCheck(ctx)

	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "store-service",
		"checks":    checks,
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
		response["status"] = "unhealthy"
	}
	httputil.WriteJSON(w, code, response)
}
