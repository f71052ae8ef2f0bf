package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type deviceIDKey struct{}

const deviceCookieName = "device_id"

// DeviceID assigns a stable identifier per browser via a cookie. The
// identifier scopes the active-session pointer used when a checkpoint
// return carries no explicit token.
func DeviceID(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if cookie, err := r.Cookie(deviceCookieName); err == nil {
				if _, parseErr := uuid.Parse(cookie.Value); parseErr == nil {
					id = cookie.Value
				}
			}
			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     deviceCookieName,
					Value:    id,
					Path:     "/",
					MaxAge:   int((365 * 24 * time.Hour).Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx := context.WithValue(r.Context(), deviceIDKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func DeviceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(deviceIDKey{}).(string)
	return id
}
