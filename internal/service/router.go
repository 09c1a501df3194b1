package service

import (
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/hogar/internal/auth"
	"github.com/mmynk/hogar/internal/middleware"
	"github.com/mmynk/hogar/pkg/api/apiconnect"
)

// NewRouter mounts the Connect services and /metrics. Ledger procedures require a valid
// token; auth procedures accept anonymous callers.
func NewRouter(authSvc *AuthService, ledgerSvc *LedgerService, jwtManager *auth.JWTManager, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logging := middleware.LoggingInterceptor(logger)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger(logger))
	router.Use(corsMiddleware)

	authPath, authHandler := apiconnect.NewAuthServiceHandler(authSvc,
		connect.WithInterceptors(middleware.OptionalAuth(jwtManager), logging))
	router.Mount(authPath, authHandler)

	ledgerPath, ledgerHandler := apiconnect.NewLedgerServiceHandler(ledgerSvc,
		connect.WithInterceptors(middleware.RequireAuth(jwtManager), logging))
	router.Mount(ledgerPath, ledgerHandler)

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return router
}

// requestLogger logs all incoming requests
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug("Request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"request_id", chimiddleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
