// Package server assembles the store service HTTP surface.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"smart-store/internal/httputil"
	"smart-store/internal/logger"
	"smart-store/internal/services/auth"
	"smart-store/internal/services/cart"
	"smart-store/internal/services/catalog"
	"smart-store/internal/services/order"
	"smart-store/internal/services/tabsync"
	"smart-store/internal/services/tracking"
	"smart-store/internal/storage"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Auth     *auth.Handler
	Catalog  *catalog.Handler
	Cart     *cart.Handler
	Order    *order.Handler
	Tracking *tracking.Handler
	TabSync  *tabsync.Handler

	// UploadDir is served under /uploads/ when set
	UploadDir string
}

// NewRouter builds the routed, instrumented handler for the store service
func NewRouter(h Handlers, authService *auth.Service, log *logger.Logger, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httputil.WithLogging(log))
	r.Use(auth.Middleware(authService, log))

	r.Get("/health", h.Tracking.HealthCheck)

	if h.UploadDir != "" {
		fs := http.StripPrefix(storage.UploadsURLPrefix, http.FileServer(http.Dir(h.UploadDir)))
		r.Handle(storage.UploadsURLPrefix+"*", fs)
	}

	r.Route("/api", func(r chi.Router) {
		// long-lived tab sessions stay outside the request timeout
		r.Get("/sync", h.TabSync.ServeHTTP)

		r.Group(func(r chi.Router) {
			if requestTimeout > 0 {
				r.Use(middleware.Timeout(requestTimeout))
			}

			r.Post("/clients", h.Auth.NewClient)
			r.Post("/session", h.Auth.Login)

			h.Catalog.Routes(r)
			r.Route("/cart", h.Cart.Routes)
			r.Route("/orders", func(r chi.Router) {
				h.Order.Routes(r)
				r.Get("/{id}/history", h.Tracking.GetOrderHistory)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusNotFound, "Not found", httputil.RequestID(r.Context()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed", httputil.RequestID(r.Context()))
	})

	return otelhttp.NewHandler(r, "store-service",
		otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/health" }),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
