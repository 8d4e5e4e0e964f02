package http

import (
	"context"
	"net/http"
	"strings"

	"stakelend-backend/internal/security"
)

type contextKey string

const claimsKey contextKey = "claims"

// authMiddleware validates the bearer token and stores the claims on the
// request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
			return
		}

		claims, err := s.tokens.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid or expired token"})
			return
		}
		if claims.Type != security.TokenTypeAccess {
			respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "access token required"})
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// callerID extracts the authenticated account id. The auth middleware
// guarantees the claims are present on protected routes.
func callerID(r *http.Request) int64 {
	claims, _ := r.Context().Value(claimsKey).(*security.AccountClaims)
	if claims == nil {
		return 0
	}
	return claims.AccountID
}
