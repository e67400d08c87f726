package middleware

import (
	"net/http"

	"github.com/rs/zerolog"
)

// Recover captura panics del handler y responde 500.
func Recover(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error().
						Interface("panic", rec).
						Str("path", r.URL.Path).
						Msg("panic recuperado")
					writeDetail(w, http.StatusInternalServerError, "error interno del servidor")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
