package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/artisanhub/artisanhub-api/app/observability/metrics"
	"github.com/artisanhub/artisanhub-api/internal/api"
	"github.com/artisanhub/artisanhub-api/internal/types"
)

type contextKey string

const UserIDKey contextKey = "userID"
const UserKey contextKey = "user"

// Authenticate guards protected routes: it extracts and verifies the bearer
// token, reloads the identity from the store (a token for a deleted account
// is worthless) and attaches it to the request context.
func Authenticate(logger *slog.Logger, tokens *TokenIssuer, svc AuthService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				l.WarnContext(ctx, "Missing Authorization header")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authorization header required")
				return
			}

			headerParts := strings.Split(authHeader, " ")
			if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
				l.WarnContext(ctx, "Invalid Authorization header format")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
				return
			}

			claims, err := tokens.Verify(headerParts[1])
			if err != nil {
				metrics.Get().TokenVerifyFailuresTotal.Add(ctx, 1)
				l.WarnContext(ctx, "Token verification failed", slog.Any("error", err))
				api.ErrorResponse(w, r, http.StatusUnauthorized, api.MessageForError(err))
				return
			}

			user, err := svc.GetUserByID(ctx, claims.UserID)
			if err != nil {
				metrics.Get().TokenVerifyFailuresTotal.Add(ctx, 1)
				l.WarnContext(ctx, "Token subject no longer exists", slog.String("user_id", claims.UserID))
				api.ErrorResponse(w, r, http.StatusUnauthorized, types.ErrUnauthenticated.Error())
				return
			}

			ctx = context.WithValue(ctx, UserIDKey, user.ID.String())
			ctx = context.WithValue(ctx, UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserIDFromContext returns the authenticated identity's ID.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetUserFromContext returns the authenticated identity.
func GetUserFromContext(ctx context.Context) (*types.User, bool) {
	user, ok := ctx.Value(UserKey).(*types.User)
	return user, ok
}
