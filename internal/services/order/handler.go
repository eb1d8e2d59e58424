package order

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"smart-store/internal/httputil"
	"smart-store/internal/logger"
	"smart-store/internal/models"
	"smart-store/internal/services/auth"
	"smart-store/internal/storage"
)

// Handler handles HTTP requests for orders
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

// Routes mounts the order endpoints
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.ListOrders)
	r.Post("/{id}/status", h.UpdateStatus)
	r.With(auth.RequireRole(models.RoleCashier)).Delete("/{id}", h.DeleteOrder)
}

// ListOrders handles GET /api/orders, returning the caller's role board
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	requestID := httputil.RequestID(r.Context())
	id := auth.FromContext(r.Context())

	board := h.service.Board(r.Context(), id.Role, id.ClientID, requestID)
	httputil.WriteJSON(w, http.StatusOK, board)
}

type statusRequest struct {
	Status          string `json:"status"`
	ExpectedVersion *int   `json:"expected_version,omitempty"`
}

// UpdateStatus handles POST /api/orders/{id}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	requestID := httputil.RequestID(r.Context())
	orderID := chi.URLParam(r, "id")

	var req statusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.logger.Error("validation_failed", "Failed to parse request body", requestID, err, nil)
		httputil.WriteError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	updated, err := h.service.UpdateOrderStatus(r.Context(), StatusChange{
		OrderID:         orderID,
		Status:          models.OrderStatus(req.Status),
		Role:            auth.FromContext(r.Context()).Role,
		ExpectedVersion: req.ExpectedVersion,
		Origin:          httputil.Origin(r),
	}, requestID)
	if err != nil {
		h.writeServiceError(w, err, requestID)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, updated)
}

// DeleteOrder handles DELETE /api/orders/{id}
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	requestID := httputil.RequestID(r.Context())
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), httputil.Origin(r), requestID); err != nil {
		h.writeServiceError(w, err, requestID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, requestID string) {
	switch {
	case errors.Is(err, ErrOrderNotFound):
		httputil.WriteError(w, http.StatusNotFound, err.Error(), requestID)
	case errors.Is(err, models.ErrUnknownStatus):
		httputil.WriteError(w, http.StatusBadRequest, err.Error(), requestID)
	case errors.Is(err, models.ErrRoleNotPermitted):
		httputil.WriteError(w, http.StatusForbidden, err.Error(), requestID)
	case errors.Is(err, models.ErrIllegalTransition), errors.Is(err, storage.ErrStaleVersion):
		httputil.WriteError(w, http.StatusConflict, err.Error(), requestID)
	default:
		h.logger.Error("order_request_failed", "Order operation failed", requestID, err, nil)
		httputil.WriteError(w, http.StatusInternalServerError, "Internal server error", requestID)
	}
}
