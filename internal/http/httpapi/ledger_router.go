package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"faceswap/internal/http/handlers"
	"faceswap/internal/infra"
	"faceswap/internal/middleware"
)

// LedgerOptions configures the ledger router.
type LedgerOptions struct {
	ServiceKey      string
	Logger          infra.Logger
	RateLimitPerMin int
}

func NewLedgerRouter(app *handlers.LedgerApp, opts LedgerOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.RateLimit(opts.RateLimitPerMin, time.Minute),
	)

	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.ServiceKey(opts.ServiceKey))
		r.Post("/v1/auth/token", app.IssueToken)
		r.Post("/v1/auth/refresh", app.RefreshToken)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(app.Signer))
		r.Get("/v1/users/{user_id}", app.GetUser)
		r.Put("/v1/users/{user_id}/credits", app.UpdateCredits)
		r.Get("/v1/users/{user_id}/generations", app.ListGenerations)
		r.Delete("/v1/users/{user_id}/generations/expired", app.DeleteExpired)
		r.Post("/v1/credit-history", app.AppendEntry)
		r.Post("/v1/generations", app.SaveGeneration)
	})

	return r
}
