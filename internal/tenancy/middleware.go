package tenancy

import (
	"context"
	"net/http"

	"github.com/GestIAdev/Dentiagest-sub007/pkg/errors"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/httputil"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/tenant"
)

// DefaultClinicHeader carries the clinic an owner wants to work in.
const DefaultClinicHeader = "X-Clinic-ID"

type identityKey struct{}

// WithIdentity stores the authenticated identity in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by WithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Middleware resolves the request's clinic scope and stores it for handlers.
// It must run after authentication and applies to every request it wraps;
// mount health and metrics outside it. header defaults to DefaultClinicHeader.
func Middleware(res *Resolver, header string) func(http.Handler) http.Handler {
	if header == "" {
		header = DefaultClinicHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				httputil.Error(w, errors.Unauthorized("authentication required"))
				return
			}

			scope, err := res.Resolve(r.Context(), id, r.Header.Get(header))
			if err != nil {
				httputil.Error(w, err)
				return
			}

			ctx := tenant.WithScope(r.Context(), scope)
			ctx = httputil.WithClinicID(ctx, scope.SelectedClinicID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
