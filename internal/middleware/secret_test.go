package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func router(secret string) http.Handler {
	r := chi.NewRouter()
	r.With(RequireSecret(secret)).Post("/telegram/{secret}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func TestRequireSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		path   string
		header string
		want   int
	}{
		{"path match", "s3cret", "/telegram/s3cret", "", http.StatusNoContent},
		{"header match", "s3cret", "/telegram/other", "s3cret", http.StatusNoContent},
		{"mismatch", "s3cret", "/telegram/guess", "", http.StatusNotFound},
		{"empty secret", "", "/telegram/x", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(SecretHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			router(tt.secret).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
