package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"activity-engine/internal/config"
	"activity-engine/internal/infra/metrics"
)

// Deps are the collaborators the router mounts.
type Deps struct {
	Handlers  *Handlers
	Auth      *Authenticator
	Limiter   Limiter      // nil disables rate limiting
	Presence  http.Handler // nil leaves /ws unmounted
	Health    func(ctx context.Context) error
	HTTP      config.HTTPConfig
	RateLimit config.RateLimitConfig
	Logger    *zerolog.Logger
}

func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(d.Logger), Recover(d.Logger))

	r.Get("/health", healthHandler(d.Health))
	r.Handle("/metrics", metrics.Handler())
	if d.Presence != nil {
		// long-lived, so outside the request timeout
		r.Handle("/ws", d.Presence)
	}

	// group middleware runs after routing, so routePattern is complete there
	h := d.Handlers
	r.Group(func(r chi.Router) {
		r.Use(Timeout(d.HTTP.RequestTimeout), MaxBody(d.HTTP.MaxBodyBytes))

		r.Get("/payments/return", h.PaymentReturn)

		r.Group(func(r chi.Router) {
			r.Use(d.Auth.RequireAuth(), ActivityScope(), RateLimit(d.Limiter, d.RateLimit, d.Logger))

			r.Get("/me", h.Me)

			r.Get("/activities", h.ListActivities)
			r.Post("/activities", h.CreateActivity)
			r.Get("/activities/{id}", h.GetActivity)
			r.Put("/activities/{id}", h.UpdateActivity)
			r.Get("/activities/{id}/participants", h.ListParticipants)
			r.Post("/activities/{id}/join", h.JoinActivity)
			r.Post("/activities/{id}/leave", h.LeaveActivity)
			r.Post("/activities/{id}/pay", h.CreatePayment)
			r.Post("/activities/{id}/pay/verify", h.VerifyPayment)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorStatus(w, http.StatusNotFound, errNoRoute)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorStatus(w, http.StatusMethodNotAllowed, errMethod)
	})
	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, envelope{Success: false, Message: err.Error()})
				return
			}
		}
		writeData(w, http.StatusOK, map[string]string{"status": "ok"}, "")
	}
}
