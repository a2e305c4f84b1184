package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// UserIDHeader identifies the caller. There is no authentication; whatever
// sits in front of the service is trusted to set it.
const UserIDHeader = "X-User-ID"

type contextKey string

const userIDKey contextKey = "user_id"

// maxUserIDLen matches the width of the user_id columns.
const maxUserIDLen = 255

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID returns the user ID set by RequireUser, or "" outside it.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// RequireUser rejects requests without a usable X-User-ID header and puts
// the user ID in the request context.
func RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Missing "+UserIDHeader+" header")
			return
		}
		if len(userID) > maxUserIDLen {
			writeError(w, http.StatusBadRequest, "bad_request", "User ID too long")
			return
		}
		next(w, r.WithContext(WithUserID(r.Context(), userID)))
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
