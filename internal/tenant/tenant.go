// Package tenant carries the caller's tenant id through request contexts.
// The id is set by the upstream authentication layer in the X-Tenant-ID
// header; it is never inferred from the payload.
package tenant

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/logger"
)

// Header is the request header holding the authenticated tenant.
const Header = "X-Tenant-ID"

type contextKey struct{}

var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]{0,63}$`)

// WithTenant returns a context carrying id.
func WithTenant(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the tenant id stored by WithTenant.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

// Valid reports whether id is an acceptable tenant id.
func Valid(id string) bool {
	return validID.MatchString(id)
}

// Middleware rejects requests without a valid tenant header with 401 and
// stores the tenant for handlers and log lines. Health and metrics paths are
// exempt.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		id := strings.TrimSpace(r.Header.Get(Header))
		if id == "" {
			writeError(w, apperrors.NewApp(apperrors.ErrUnauthorized, http.StatusUnauthorized, "missing tenant"))
			return
		}
		if !Valid(id) {
			writeError(w, apperrors.NewAppf(apperrors.ErrUnauthorized, http.StatusUnauthorized, "invalid tenant %q", id))
			return
		}
		ctx := WithTenant(r.Context(), id)
		ctx = logger.WithTenantID(ctx, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeError(w http.ResponseWriter, err *apperrors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperrors.HTTPStatusCode(err))
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Message})
}
