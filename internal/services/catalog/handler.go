package catalog

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

const maxUploadBytes = 10 << 20

// Handler handles HTTP requests for products, categories and image uploads
type Handler struct {
	service *Service
	logger  *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

// Routes mounts the catalog endpoints under /api. Reads are open, edits need a cashier.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/products", h.ListProducts)
	r.Get("/categories", h.ListCategories)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireCatalogEditor)
		r.Post("/products", h.SaveProduct)
		r.Delete("/products/{id}", h.DeleteProduct)
		r.Post("/categories", h.SaveCategory)
		r.Delete("/categories/{id}", h.DeleteCategory)
		r.Post("/upload", h.UploadImage)
	})
}

// ListProducts handles GET /api/products?category=&q=
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	requestID := httputil.RequestID(r.Context())
	q := r.URL.Query()
	httputil.WriteJSON(w, http.StatusOK, h.service.Search(r.Context(), q.Get("category"), q.Get("q"), requestID))
}

// SaveProduct handles POST /api/products
func (h *Handler) SaveProduct(w http.ResponseWriter, r *http.Request) {
	requestID := httputil.RequestID(r.Context())

	body, err := httputil.ReadBody(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}
	rec, err := models.DecodeRecord(models.CollectionProducts, body)
	if err != nil {
		h.writeServiceError(w, err, requestID)
		return
	}

	product, err := h.service.SaveProduct(r.Context(), rec.(models.Product), httputil.Origin(r), requestID)
	if err != nil {
		h.writeServiceError(w, err, requestID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/products/{id}
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	requestID := httputil.RequestID(r.Context())
	if err := h.service.DeleteProduct(r.Context(), chi.URLParam(r, "id"), httputil.Origin(r), requestID); err != nil {
		h.writeServiceError(w, err, requestID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCategories handles GET /api/categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	requestID := httputil.RequestID(r.Context())
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		h.logger.Error("db_query_failed", "Failed to list categories, using empty collection", requestID, err, nil)
		categories = []models.Category{}
	}
	httputil.WriteJSON(w, http.StatusOK, categories)
}

// SaveCategory handles POST /api/categories
func (h *Handler) SaveCategory(w http.ResponseWriter, r *http.Request) {
	requestID := httputil.RequestID(r.Context())

	body, err := httputil.ReadBody(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}
	rec, err := models.DecodeRecord(models.CollectionCategories, body)
	if err != nil {
		h.writeServiceError(w, err, requestID)
		return
	}

	category, err := h.service.SaveCategory(r.Context(), rec.(models.Category), requestID)
	if err != nil {
		h.writeServiceError(w, err, requestID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, category)
}

// DeleteCategory handles DELETE /api/categories/{id}
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	requestID := httputil.RequestID(r.Context())
	if err := h.service.DeleteCategory(r.Context(), chi.URLParam(r, "id"), requestID); err != nil {
		h.writeServiceError(w, err, requestID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage handles POST /api/upload with a multipart "file" field
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	requestID := httputil.RequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "No file uploaded", requestID)
		return
	}
	defer file.Close()

	path, err := h.service.UploadImage(r.Context(), header.Filename, file, requestID)
	if err != nil {
		h.logger.Error("image_upload_failed", "Failed to store uploaded image", requestID, err, map[string]interface{}{
			"filename": header.Filename,
		})
		httputil.WriteError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]string{
		"filename": header.Filename,
		"path":     path,
	})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, requestID string) {
	var verr models.ValidationError
	switch {
	case errors.As(err, &verr):
		httputil.WriteError(w, http.StatusBadRequest, verr.Error(), requestID)
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrCategoryNotFound):
		httputil.WriteError(w, http.StatusNotFound, err.Error(), requestID)
	case errors.Is(err, storage.ErrDuplicate):
		httputil.WriteError(w, http.StatusConflict, err.Error(), requestID)
	default:
		h.logger.Error("catalog_request_failed", "Catalog operation failed", requestID, err, nil)
		httputil.WriteError(w, http.StatusInternalServerError, "Internal server error", requestID)
	}
}
