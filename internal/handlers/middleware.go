package handlers

import (
	"net/http"
	"strings"

	"github.com/mtzgroup/tcpb-go/internal/core/ports/primary"
	"github.com/mtzgroup/tcpb-go/internal/handlers/response"
)

type MiddlewareProvider struct {
	tokens primary.JWTService
	method string
	logger primary.Logger
}

func New(tokens primary.JWTService, method string, logger primary.Logger) *MiddlewareProvider {
	return &MiddlewareProvider{
		tokens: tokens,
		method: method,
		logger: logger,
	}
}

func (m *MiddlewareProvider) JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.Error(w, "Authorization header missing", http.StatusUnauthorized)
			return
		}

		// Extract token from "Bearer <token>"
		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			response.Error(w, "Authorization header must be a bearer token", http.StatusUnauthorized)
			return
		}
		valid, err := m.tokens.VerifyTokenHMAC(r.Context(), tokenString, m.method)
		if err != nil || !valid {
			m.logger.Debug("Rejected monitor request", "path", r.URL.Path, "error", err)
			response.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
