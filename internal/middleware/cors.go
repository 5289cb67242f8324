package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS allows the configured browser origins to call the API with cookies.
func CORS(origins []string) func(http.Handler) http.Handler {
	handler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		MaxAge:           3600,
		AllowCredentials: true,
	})

	return handler.Handler
}
