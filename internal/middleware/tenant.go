package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// TenantResolver resolves an opaque bearer token to a tenant id.
type TenantResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

type contextKey string

const tenantKey contextKey = "tenant_id"

// ResolveTenant resolves the caller's tenant scope from the Authorization
// bearer token and injects it into the request context. Resolution is
// deliberately lenient: a missing, unknown, or unresolvable token falls back
// to the configured default tenant instead of rejecting the request, so demo
// traffic without credentials still lands in a scoped sandbox.
func ResolveTenant(tokens TenantResolver, defaultTenant string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant := defaultTenant

			if raw := r.Header.Get("Authorization"); raw != "" {
				if token, ok := strings.CutPrefix(raw, "Bearer "); ok && token != "" {
					resolved, err := tokens.Resolve(r.Context(), token)
					switch {
					case err != nil:
						log.Warn().Err(err).Msg("tenant resolution failed, using default tenant")
					case resolved == "":
						log.Warn().Msg("unknown bearer token, using default tenant")
					default:
						tenant = resolved
					}
				}
			}

			ctx := context.WithValue(r.Context(), tenantKey, tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TenantID returns the tenant scope stored by ResolveTenant, or "" when the
// middleware did not run.
func TenantID(ctx context.Context) string {
	v, _ := ctx.Value(tenantKey).(string)
	return v
}
