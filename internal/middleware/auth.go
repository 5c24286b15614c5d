package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/palchat/backend/internal/auth"
	"github.com/palchat/backend/internal/logging"
	"github.com/palchat/backend/internal/models"
)

// IdentityVerifier validates bearer credentials.
type IdentityVerifier interface {
	Verify(token string) (models.Identity, error)
}

// RequireIdentity rejects requests without a valid bearer token and stores the
// verified identity on the request context.
func RequireIdentity(verifier IdentityVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			identity, err := verifier.Verify(r.Header.Get("Authorization"))
			if err != nil {
				logging.FromContext(ctx).Warn("rejecting unauthenticated request", "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
				return
			}

			logger := logging.FromContext(ctx).With(slog.String("username", identity.Username))
			ctx = logging.WithLogger(auth.WithIdentity(ctx, identity), logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
