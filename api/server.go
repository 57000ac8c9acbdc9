/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, carried into logs
  2. RealIP:     Client address behind a proxy
  3. Logger:     One zerolog line per request
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. BodyLimit:  Caps POST/PUT bodies
  6. CORS:       Cross-origin requests for the planning front-end

ROUTE GROUPS:
  /api/bloc/*           Supervision validation
  /api/rules/*          Rule catalog and conflicts
  /api/leaves/*         Quota transfers, balances, carry-over
  /api/scenarios/*      Demo data
  /healthz              Store probe
  /metrics              Prometheus (when enabled)

SECURITY NOTE:
  No authentication middleware. The X-User-ID header is trusted.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	AllowedOrigins []string
	MaxBodyBytes   int64
	EnableMetrics  bool
	Logger         zerolog.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(bodyLimit(opts.MaxBodyBytes))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-User-ID"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)
	if opts.EnableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		// Supervision routes
		r.Route("/bloc", func(r chi.Router) {
			r.Post("/plannings/validate", h.ValidatePlanning)
			r.Post("/supervisors/load-check", h.LoadCheck)
		})

		// Rule routes
		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.ListRules)
			r.Post("/", h.SaveRule)

			r.Route("/conflicts", func(r chi.Router) {
				r.Get("/", h.ListConflicts)
				r.Post("/", h.ConflictAction)
				r.Get("/resolutions", h.ListResolutions)
			})

			r.Get("/{id}", h.GetRule)
			r.Delete("/{id}", h.DeleteRule)
			r.Post("/{id}/activate", h.ActivateRule)
			r.Post("/{id}/deactivate", h.DeactivateRule)
		})

		// Leave quota routes
		r.Route("/leaves", func(r chi.Router) {
			r.Route("/quota-transfers", func(r chi.Router) {
				r.Get("/", h.ListTransfers)
				r.Post("/", h.CommitTransfer)
				r.Post("/simulate", h.SimulateTransfer)
				r.Get("/{id}", h.GetTransfer)
				r.Post("/{id}/approve", h.ApproveTransfer)
				r.Post("/{id}/reject", h.RejectTransfer)
			})

			r.Get("/quota-balances/{userId}", h.ListBalances)
			r.Put("/quota-balances", h.PutBalance)
			r.Get("/quota-transactions/{userId}", h.ListTransactions)

			r.Get("/quota-transfer-rules", h.ListTransferRules)
			r.Post("/quota-transfer-rules", h.SaveTransferRule)
			r.Post("/quota-carryover-rules", h.SaveCarryOverRule)
			r.Post("/quota-carryovers/simulate", h.SimulateCarryOver)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// requestLogger writes one structured line per request. 5xx responses
// log at error level.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)

			event := logger.Info()
			if recorder.status >= http.StatusInternalServerError {
				event = logger.Error()
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", recorder.status).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}

func bodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 && (r.Method == http.MethodPost || r.Method == http.MethodPut) {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
