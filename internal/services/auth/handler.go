package auth

import (
	"errors"
	"net/http"

	"smart-store/internal/httputil"
	"smart-store/internal/logger"
	"smart-store/internal/models"
)

// Handler serves session and client id requests
type Handler struct {
	service *Service
	logger  *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

type loginRequest struct {
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Login handles POST /api/session
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	requestID := httputil.RequestID(r.Context())

	var req loginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	session, err := h.service.Login(req.Password, role)
	switch {
	case errors.Is(err, ErrNotStaff):
		httputil.WriteError(w, http.StatusBadRequest, "Customers do not need a session", requestID)
		return
	case errors.Is(err, ErrInvalidCredentials):
		h.logger.Warn("login_failed", "Wrong staff password", requestID, map[string]interface{}{"role": string(role)})
		httputil.WriteError(w, http.StatusUnauthorized, "Wrong password", requestID)
		return
	case err != nil:
		h.logger.Error("login_failed", "Failed to issue session", requestID, err, nil)
		httputil.WriteError(w, http.StatusInternalServerError, "Internal server error", requestID)
		return
	}

	h.logger.Info("staff_login", "Staff session issued", requestID, map[string]interface{}{"role": string(role)})
	httputil.WriteJSON(w, http.StatusOK, session)
}

// NewClient handles POST /api/clients
func (h *Handler) NewClient(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"client_id": models.NewClientID()})
}
