package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/inventio/inventory-api/internal/httputil"
	"github.com/inventio/inventory-api/internal/user"
)

// UserLookup resolves an authenticated user id to its account record
type UserLookup interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*user.User, error)
}

// Middleware guards routes that require an authenticated user
type Middleware struct {
	tokenService TokenService
	users        UserLookup
}

func NewMiddleware(tokenService TokenService, users UserLookup) *Middleware {
	return &Middleware{
		tokenService: tokenService,
		users:        users,
	}
}

// RequireAuth verifies the session token, loads the account it names and
// attaches it to the request context. The cookie wins over the
// Authorization header when both are present.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractToken(r)
		if err != nil {
			httputil.RespondErrorWithCode(w, "Not authorized, please login", httputil.CodeMissingAuth, http.StatusUnauthorized)
			return
		}

		claims, err := m.tokenService.VerifyToken(token)
		if err != nil {
			if errors.Is(err, ErrExpiredToken) {
				httputil.RespondErrorWithCode(w, "Session expired, please login again", httputil.CodeTokenExpired, http.StatusUnauthorized)
				return
			}
			httputil.RespondErrorWithCode(w, "Not authorized, please login", httputil.CodeInvalidToken, http.StatusUnauthorized)
			return
		}

		userID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			httputil.RespondErrorWithCode(w, "Not authorized, please login", httputil.CodeInvalidToken, http.StatusUnauthorized)
			return
		}

		// A valid token for a deleted account must not pass the gate
		u, err := m.users.GetByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				httputil.RespondErrorWithCode(w, "User no longer exists", httputil.CodeUserGone, http.StatusUnauthorized)
				return
			}
			httputil.RespondErrorWithCode(w, "Internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(w, r.WithContext(user.NewContext(r.Context(), u)))
	})
}

// extractToken pulls the session token from the cookie, falling back to
// a Bearer Authorization header
func extractToken(r *http.Request) (string, error) {
	if token, err := GetTokenFromCookie(r); err == nil && token != "" {
		return token, nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("no authentication provided")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errors.New("invalid authorization header")
	}

	return parts[1], nil
}
