package auth

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"smart-store/internal/httputil"
	"smart-store/internal/logger"
	"smart-store/internal/models"
)

// ClientHeader carries the customer's per-session client id
const ClientHeader = "X-Client-ID"

// Identity is who a request acts as
type Identity struct {
	Role     models.Role
	ClientID string
}

type ctxKey struct{}

// WithIdentity stores id in ctx
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the caller identity; anonymous callers are customers
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(ctxKey{}).(Identity); ok {
		return id
	}
	return Identity{Role: models.RoleCustomer}
}

// Middleware resolves the caller identity from the bearer token and client header.
// Requests without a token act as customers; a bad token is rejected.
func Middleware(svc *Service, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := Identity{
				Role:     models.RoleCustomer,
				ClientID: strings.TrimSpace(r.Header.Get(ClientHeader)),
			}

			if header := r.Header.Get("Authorization"); header != "" {
				token, ok := strings.CutPrefix(header, "Bearer ")
				if !ok {
					httputil.WriteError(w, http.StatusUnauthorized, "Authorization header must use Bearer scheme", httputil.RequestID(r.Context()))
					return
				}
				role, err := svc.Verify(strings.TrimSpace(token))
				if err != nil {
					log.Warn("auth_failed", "Rejected session token", httputil.RequestID(r.Context()), map[string]interface{}{
						"path": r.URL.Path,
					})
					httputil.WriteError(w, http.StatusUnauthorized, "Invalid or expired session", httputil.RequestID(r.Context()))
					return
				}
				id.Role = role
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole rejects callers whose role is not listed
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return requireRole(func(role models.Role) bool { return slices.Contains(roles, role) })
}

// RequireCatalogEditor rejects callers whose role may not change the catalog
func RequireCatalogEditor(next http.Handler) http.Handler {
	return requireRole(models.Role.CanEditCatalog)(next)
}

func requireRole(allowed func(models.Role) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allowed(FromContext(r.Context()).Role) {
				httputil.WriteError(w, http.StatusForbidden, "Role not permitted", httputil.RequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireClient rejects requests that carry no client id
func RequireClient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()).ClientID == "" {
			httputil.WriteError(w, http.StatusBadRequest, ClientHeader+" header is required", httputil.RequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}
