package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/levenlabs/go-lflag"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raterudder/esoimport/pkg/importer"
	"github.com/raterudder/esoimport/pkg/log"
)

// tokenVerifier is a function that validates a Google ID Token.
type tokenVerifier func(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)

// importRunner runs a single import cycle.
type importRunner interface {
	RunCycle(ctx context.Context) (importer.Summary, error)
}

// Server exposes health, metrics and an endpoint to trigger an import cycle.
type Server struct {
	importer importRunner
	gatherer prometheus.Gatherer

	listenAddr string
	httpServer *http.Server

	importEmail    string
	importVerifier tokenVerifier
	serverName     string
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(imp importRunner, gatherer prometheus.Gatherer) *Server {
	srv := &Server{
		importer:   imp,
		gatherer:   gatherer,
		serverName: "esoimport",
	}
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	importAudience := lflag.String("import-audience", "", "Audience to validate Google ID tokens against for /api/import")
	importEmail := lflag.String("import-email", "", "Email allowed to trigger /api/import, required with import-audience")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.importEmail = *importEmail
		if *importAudience != "" {
			if srv.importEmail == "" {
				log.Ctx(context.Background()).Error("import-email is required when import-audience is set")
				os.Exit(1)
			}
			provider, err := oidc.NewProvider(context.Background(), "https://accounts.google.com")
			if err != nil {
				log.Ctx(context.Background()).Error("failed to initialize Google OIDC provider", slog.Any("error", err))
				os.Exit(1)
			}
			srv.importVerifier = provider.Verifier(&oidc.Config{ClientID: *importAudience}).Verify
		} else {
			log.Ctx(context.Background()).Warn("import-audience not set, /api/import is unauthenticated")
		}
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /api/import", s.importAuthMiddleware(http.HandlerFunc(s.handleImport)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.revisionMiddleware(gziphandler.GzipHandler(s.securityHeadersMiddleware(mux)))
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:        s.listenAddr,
		Handler:     s.setupHandler(),
		ReadTimeout: 15 * time.Second,
		// an import cycle runs within the request
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, v any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, struct {
		Error string `json:"error"`
	}{Error: msg}, code)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}
