package cart

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"smart-store/internal/httputil"
	"smart-store/internal/logger"
	"smart-store/internal/services/auth"
)

// Handler handles HTTP requests for the cart
type Handler struct {
	service *Service
	logger  *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

// Routes mounts the cart endpoints. Every request must carry a client id.
func (h *Handler) Routes(r chi.Router) {
	r.Use(auth.RequireClient)
	r.Get("/", h.GetCart)
	r.Delete("/", h.ClearCart)
	r.Post("/items/{productID}", h.AddItem)
	r.Delete("/items/{productID}", h.RemoveItem)
	r.Post("/submit", h.Submit)
}

// GetCart handles GET /api/cart
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	requestID := httputil.RequestID(r.Context())
	view, err := h.service.Get(r.Context(), auth.FromContext(r.Context()).ClientID)
	if err != nil {
		h.writeServiceError(w, err, requestID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// AddItem handles POST /api/cart/items/{productID}
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	requestID := httputil.RequestID(r.Context())
	view, err := h.service.Add(r.Context(), auth.FromContext(r.Context()).ClientID, chi.URLParam(r, "productID"))
	if err != nil {
		h.writeServiceError(w, err, requestID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// RemoveItem handles DELETE /api/cart/items/{productID}
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	requestID := httputil.RequestID(r.Context())
	view, err := h.service.Remove(r.Context(), auth.FromContext(r.Context()).ClientID, chi.URLParam(r, "productID"))
	if err != nil {
		h.writeServiceError(w, err, requestID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// ClearCart handles DELETE /api/cart
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	requestID := httputil.RequestID(r.Context())
	if err := h.service.Clear(r.Context(), auth.FromContext(r.Context()).ClientID); err != nil {
		h.writeServiceError(w, err, requestID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Submit handles POST /api/cart/submit
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	requestID := httputil.RequestID(r.Context())
	clientID := auth.FromContext(r.Context()).ClientID

	order, err := h.service.Submit(r.Context(), clientID, httputil.Origin(r), requestID)
	if err != nil {
		var missing *MissingProductsError
		if errors.As(err, &missing) {
			h.logger.Warn("order_rejected", "Cart references removed products", requestID, map[string]interface{}{
				"client_id":   clientID,
				"product_ids": missing.ProductIDs,
			})
			httputil.WriteJSON(w, http.StatusConflict, map[string]interface{}{
				"error":       missing.Error(),
				"missing_ids": missing.ProductIDs,
				"request_id":  requestID,
			})
			return
		}
		h.writeServiceError(w, err, requestID)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, order)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, requestID string) {
	switch {
	case errors.Is(err, ErrEmptyCart):
		httputil.WriteError(w, http.StatusBadRequest, err.Error(), requestID)
	case errors.Is(err, ErrProductNotFound):
		httputil.WriteError(w, http.StatusNotFound, err.Error(), requestID)
	default:
		h.logger.Error("cart_request_failed", "Cart operation failed", requestID, err, nil)
		httputil.WriteError(w, http.StatusInternalServerError, "Internal server error", requestID)
	}
}
