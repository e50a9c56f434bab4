package bff

import (
	"net/http"
	"time"

	"github.com/Sternrassler/pokedex-client/pkg/metrics"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// RouterOptions configures the router.
type RouterOptions struct {
	Logger      zerolog.Logger
	CORSOrigins []string
	// Timeout is the per-request deadline. Zero disables it.
	Timeout time.Duration
}

// NewRouter assembles the chi router with middleware and routes.
func NewRouter(h *Handlers, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	// Outer to inner.
	r.Use(
		chimw.RealIP,
		RequestID(),
		AccessLog(opts.Logger),
		Recover(),
		cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", HeaderRequestID},
			ExposedHeaders: []string{HeaderRequestID},
			MaxAge:         300,
		}),
	)

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(api chi.Router) {
		if opts.Timeout > 0 {
			api.Use(chimw.Timeout(opts.Timeout))
		}
		api.Get("/api/v2/pokemon", h.ListPokemon)
	})

	return r
}
