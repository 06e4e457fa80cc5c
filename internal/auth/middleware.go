// Package auth authenticates API requests with bearer tokens.
package auth

import (
	"net/http"
	"strings"

	"github.com/GestIAdev/Dentiagest-sub007/internal/auth/jwt"
	"github.com/GestIAdev/Dentiagest-sub007/internal/tenancy"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/errors"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/httputil"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/logger"
)

// Middleware validates the bearer token and stores the caller's identity.
type Middleware struct {
	tokens *jwt.Manager
	log    *logger.Logger
}

func NewMiddleware(tokens *jwt.Manager, log *logger.Logger) *Middleware {
	return &Middleware{tokens: tokens, log: log.WithComponent("auth")}
}

// Authenticate rejects requests without a valid token with 401.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.Error(w, errors.Unauthorized("missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			httputil.Error(w, errors.Unauthorized("invalid authorization header format"))
			return
		}

		claims, err := m.tokens.Validate(parts[1])
		if err != nil {
			m.log.Debug().Err(err).Msg("token validation failed")
			httputil.Error(w, err)
			return
		}

		role, ok := claims.ParsedRole()
		if !ok {
			m.log.Warn().Str("user_id", claims.UserID).Str("role", claims.Role).Msg("token carries unknown role")
			httputil.Error(w, errors.TokenInvalid())
			return
		}

		id := tenancy.Identity{
			UserID:   claims.UserID,
			Email:    claims.Email,
			Role:     role,
			ClinicID: claims.ClinicID,
		}
		ctx := httputil.WithUserContext(r.Context(), id.UserID, id.Email, string(id.Role))
		ctx = tenancy.WithIdentity(ctx, id)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
