package server

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/raterudder/esoimport/pkg/importer"
	"github.com/raterudder/esoimport/pkg/log"
)

// importAuthMiddleware requires a Google ID token for importEmail when a
// verifier is configured.
func (s *Server) importAuthMiddleware(next http.Handler) http.Handler {
	if s.importVerifier == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			log.Ctx(ctx).WarnContext(ctx, "missing authorization header for import")
			writeJSONError(w, "missing authorization header", http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			log.Ctx(ctx).ErrorContext(ctx, "invalid auth header")
			writeJSONError(w, "invalid auth header", http.StatusBadRequest)
			return
		}

		idToken, err := s.importVerifier(ctx, strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "import token validation failed", slog.Any("error", err))
			writeJSONError(w, "invalid id token", http.StatusUnauthorized)
			return
		}
		var claims struct {
			Email string `json:"email"`
		}
		if err := idToken.Claims(&claims); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "invalid import token claims", slog.Any("error", err))
			writeJSONError(w, "invalid token claims", http.StatusForbidden)
			return
		}
		if subtle.ConstantTimeCompare([]byte(claims.Email), []byte(s.importEmail)) != 1 {
			log.Ctx(ctx).WarnContext(ctx, "import email mismatch", slog.String("got", claims.Email), slog.String("want", s.importEmail))
			writeJSONError(w, "forbidden", http.StatusForbidden)
			return
		}
		log.Ctx(ctx).DebugContext(ctx, "import: authorized", slog.String("email", claims.Email))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := s.importer.RunCycle(ctx)
	if err != nil {
		if errors.Is(err, importer.ErrCycleRunning) {
			writeJSONError(w, "import already running", http.StatusConflict)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "import cycle failed", slog.Any("error", err))
		writeJSONError(w, "import failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, summary, http.StatusOK)
}
