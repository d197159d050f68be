package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS limits browser access to the configured planning-dashboard origins.
// The API surface is GET reads plus POST pipeline triggers, so only those
// methods are offered.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           600,
	})

	return c.Handler
}
