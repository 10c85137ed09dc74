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

// Options configures the generation API router.
type Options struct {
	Verifier        middleware.TokenVerifier
	Logger          infra.Logger
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
	AllowedOrigins  []string
	RateLimitPerMin int
	// StaticDir, when set, is served under /static for the filesystem
	// artifact store.
	StaticDir string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	// Health
	r.Get("/v1/healthz", app.Health)

	if opts.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(opts.Verifier))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
			r.Post("/v1/jobs/{provider}", app.CreateJob)
			r.Post("/v1/pipelines/faceswap", app.CreatePipeline)
			r.Post("/v1/videos", app.CreateVideo)
		})

		r.Get("/v1/jobs/{task_id}", app.JobStatus)
		r.Get("/v1/videos/operations/*", app.VideoOperation)
		r.Get("/v1/videos/{task_id}", app.VideoStatus)

		r.Get("/v1/credits", app.Credits)
		r.Get("/v1/history", app.History)
		r.Delete("/v1/history/expired", app.CleanupHistory)
	})

	return r
}
