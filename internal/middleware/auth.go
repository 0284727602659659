package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/rs/zerolog"

	"github.com/signalix/licensing/internal/auth"
	"github.com/signalix/licensing/internal/model"
	"github.com/signalix/licensing/internal/repo"
)

type contextKey string

const userKey contextKey = "user"

// AuthMiddleware validates JWT tokens, loads the operator from DB, and attaches it to context
func AuthMiddleware(jwtService *auth.JWTService, userRepo repo.UserRepo, logger zerolog.Logger) func(http.Handler) http.Handler {
	log := logger.With().Str("component", "auth").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondWithError(w, r, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				respondWithError(w, r, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				respondWithError(w, r, http.StatusUnauthorized, "missing token")
				return
			}

			claims, err := jwtService.VerifyToken(tokenString)
			if err != nil {
				log.Debug().Err(err).Msg("rejected bearer token")
				respondWithError(w, r, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			// Role comes from the database, not the token.
			user, err := userRepo.GetByID(r.Context(), claims.UserID)
			if err != nil {
				log.Warn().Err(err).Str("user_id", claims.UserID.String()).Msg("token subject not loadable")
				respondWithError(w, r, http.StatusUnauthorized, "user not found")
				return
			}

			ctx := WithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects operators without the admin role. Must run after AuthMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUser(r.Context())
		if !ok {
			respondWithError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !user.IsAdmin() {
			respondWithError(w, r, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithUser attaches an operator to ctx.
func WithUser(ctx context.Context, user model.User) context.Context {
	return context.WithValue(ctx, userKey, &user)
}

// GetUser returns the user attached to the request context (set by AuthMiddleware)
func GetUser(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

// errorResponse matches the envelope the handlers write for failures.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	render.Status(r, statusCode)
	render.JSON(w, r, errorResponse{Error: message})
}
