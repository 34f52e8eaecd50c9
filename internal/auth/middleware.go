package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/redmonkez12/go-notes-api/internal/httputil"
	"github.com/redmonkez12/go-notes-api/internal/logging"
	"github.com/redmonkez12/go-notes-api/internal/user"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const (
	UserContextKey ContextKey = "user"
)

// CurrentUserResolver maps a bearer token to its user. *Service implements it.
type CurrentUserResolver interface {
	ResolveCurrentUser(ctx context.Context, token string) (*user.User, error)
}

// Middleware handles authentication for protected routes
type Middleware struct {
	resolver CurrentUserResolver
}

func NewMiddleware(resolver CurrentUserResolver) *Middleware {
	return &Middleware{resolver: resolver}
}

// RequireAuth resolves the bearer token and stores the user in the request
// context. Missing, malformed, expired and forged tokens all get the same 401.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			respondUnauthenticated(w)
			return
		}

		u, err := m.resolver.ResolveCurrentUser(r.Context(), token)
		if err != nil {
			if errors.Is(err, ErrUnauthenticated) {
				respondUnauthenticated(w)
				return
			}
			respondInternal(w, logging.GetLoggerFromContext(r.Context()), "failed to resolve current user", err)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}

func respondUnauthenticated(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	httputil.RespondErrorWithCode(w, ErrUnauthenticated.Error(), httputil.CodeUnauthenticated, http.StatusUnauthorized)
}

// GetUserFromContext returns the user stored by RequireAuth
func GetUserFromContext(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(UserContextKey).(*user.User)
	return u, ok && u != nil
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	u, ok := GetUserFromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return u.ID, true
}
