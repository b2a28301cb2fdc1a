package middleware

import (
	"context"
	"net/http"

	"github.com/wanderlyst/tripmatch/internal/models"
	"github.com/wanderlyst/tripmatch/internal/services"
)

const SessionCookieName = "tripmatch_session"

type contextKey string

const userContextKey contextKey = "user"

// SetUserInContext attaches the authenticated user to the request context.
func SetUserInContext(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// GetUserFromContext returns the authenticated user, or nil.
func GetUserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}

type AuthMiddleware struct {
	auth  *services.AuthService
	users *services.UserService
}

func NewAuthMiddleware(auth *services.AuthService, users *services.UserService) *AuthMiddleware {
	return &AuthMiddleware{auth: auth, users: users}
}

// WithSession resolves the session cookie when present and attaches the
// user. Requests without a valid session pass through unauthenticated.
func (m *AuthMiddleware) WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := m.auth.ResolveSession(r.Context(), cookie.Value)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.users.GetByID(r.Context(), userID)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(SetUserInContext(r.Context(), user)))
	})
}

// RequireSession rejects requests that did not authenticate. Apply after
// WithSession.
func (m *AuthMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
