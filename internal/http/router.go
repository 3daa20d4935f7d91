package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterConfig wires handlers into the router. Nil handlers leave their
// routes unregistered.
type RouterConfig struct {
	Verifier  TokenVerifier
	Logger    *slog.Logger
	Schedule  *ScheduleHandler
	Proposals *ProposalHandler
	Bookings  *BookingHandler
	Events    *EventHandler
	Activity  *ActivityHandler
	// Live upgrades /ws to the notification stream.
	Live       http.Handler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		newResponder(cfg.Logger).writeJSON(r.Context(), w, http.StatusNotFound, errorResponse{Message: localizedStatusMessage(http.StatusNotFound)})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		newResponder(cfg.Logger).writeJSON(r.Context(), w, http.StatusMethodNotAllowed, errorResponse{Message: localizedStatusMessage(http.StatusMethodNotAllowed)})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		newResponder(cfg.Logger).writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if cfg.Verifier != nil {
			r.Use(RequireActor(cfg.Verifier, cfg.Logger))
		}

		if h := cfg.Schedule; h != nil {
			r.Get("/catalog", h.Catalog)
			r.Get("/availability", h.Availability)
			r.Get("/schedule/day", h.Day)
		}

		if h := cfg.Proposals; h != nil {
			r.Route("/proposals", func(r chi.Router) {
				r.Post("/", h.Submit)
				r.Post("/check", h.Check)
			})
		}

		if h := cfg.Bookings; h != nil {
			r.Route("/bookings", func(r chi.Router) {
				r.Get("/", h.List)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.Get)
					r.Put("/", h.Update)
					r.Delete("/", h.Delete)
					r.Post("/approve", h.Approve)
					r.Post("/reject", h.Reject)
				})
			})
		}

		if h := cfg.Events; h != nil {
			r.Route("/events", func(r chi.Router) {
				r.Get("/", h.List)
				r.Post("/", h.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.Get)
					r.Put("/", h.Update)
					r.Delete("/", h.Delete)
				})
			})
		}

		if h := cfg.Activity; h != nil {
			r.Get("/activity", h.List)
		}

		if cfg.Live != nil {
			r.Handle("/ws", cfg.Live)
		}
	})

	return r
}
