package middleware

import (
	"context"
	"net/http"
	"strings"

	"ventas-sync/pkg/jwt"
	"ventas-sync/pkg/response"
)

type contextKey string

const UserIDKey contextKey = "userID"

// AuthMiddleware guards the ledger routes behind the PIN-unlock session
// token.
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				response.Unauthorized(w, "Missing or malformed authorization header")
				return
			}

			claims, err := jwt.ValidateToken(token, jwtSecret)
			if err != nil {
				response.Unauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserID(r *http.Request) string {
	userID, ok := r.Context().Value(UserIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}
