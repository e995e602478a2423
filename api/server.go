/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging (logrus)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the timesheet frontend

ROUTE GROUPS:
  /api/owners          Configured owners
  /api/timesheets/*    Per-owner cycles, hours, evidence, submission
  /api/reminders       Reminder log
  /api/admin/*         Admin operations
  /health              Liveness probe

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

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
	"github.com/sirupsen/logrus"
)

// NewRouter creates a new router with all routes configured. An empty
// origins list allows any origin.
func NewRouter(h *Handler, origins []string) *chi.Mux {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/owners", h.ListOwners)

		r.Route("/timesheets/{owner}", func(r chi.Router) {
			r.Get("/", h.GetTimesheet)
			r.Put("/settings", h.PutSettings)
			r.Get("/reminders", h.GetOwnerReminders)

			r.Route("/cycles/{cycleID}", func(r chi.Router) {
				r.Get("/", h.GetCycle)
				r.Put("/hours/{date}", h.RecordHours)
				r.Post("/evidence", h.AttachEvidence)
				r.Delete("/evidence/{index}", h.RemoveEvidence)
				r.Post("/submit", h.SubmitCycle)
			})
		})

		r.Get("/reminders", h.ListReminders)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/due-check", h.RunDueCheck)
		})
	})

	return r
}

// requestLogger logs one line per request through logrus.
func requestLogger(log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Debug("HTTP request")
		})
	}
}
