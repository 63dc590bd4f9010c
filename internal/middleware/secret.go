// Package middleware provides HTTP middleware for the bot's HTTP surface.
package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SecretHeader is sent by Telegram when the webhook was registered with a
// secret token.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// RequireSecret rejects requests whose {secret} path parameter or secret
// header does not match secret. An empty secret rejects everything.
func RequireSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" || !(matches(chi.URLParam(r, "secret"), secret) || matches(r.Header.Get(SecretHeader), secret)) {
				slog.Warn("Rejected webhook request", "remote_addr", r.RemoteAddr)
				http.NotFound(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func matches(got, want string) bool {
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
