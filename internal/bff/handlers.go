// Package bff is the backend-for-frontend HTTP surface. It serves the Pokémon list
// in the upstream wire shape through the page repository, so clients see the same
// error taxonomy the pager does.
package bff

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Sternrassler/pokedex-client/pkg/pokemon"
	"github.com/Sternrassler/pokedex-client/pkg/repository"
	"github.com/rs/zerolog"
)

// ReadyCheck reports whether a dependency is usable.
type ReadyCheck func(ctx context.Context) error

// Handlers holds the handler dependencies.
type Handlers struct {
	repo repository.PageRepository

	// resourceBase is the collection URL item references point at.
	resourceBase string

	// publicURL is the externally visible BFF root. Empty derives it per request.
	publicURL string

	ready   []ReadyCheck
	timeout time.Duration
}

// Options configures Handlers.
type Options struct {
	ResourceBase string
	PublicURL    string
	ReadyChecks  []ReadyCheck
	// ReadyTimeout bounds every ready check.
	ReadyTimeout time.Duration
}

// NewHandlers returns handlers serving from repo. A zero ReadyTimeout defaults to 2s.
func NewHandlers(repo repository.PageRepository, opts Options) *Handlers {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 2 * time.Second
	}
	return &Handlers{
		repo:         repo,
		resourceBase: strings.TrimRight(opts.ResourceBase, "/"),
		publicURL:    strings.TrimRight(opts.PublicURL, "/"),
		ready:        opts.ReadyChecks,
		timeout:      opts.ReadyTimeout,
	}
}

// ListPokemon serves GET /api/v2/pokemon?offset&limit.
func (h *Handlers) ListPokemon(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.repo.FetchPage(r.Context(), q.Offset, q.Limit)
	if err != nil {
		logger := zerolog.Ctx(r.Context())
		if errors.Is(r.Context().Err(), context.DeadlineExceeded) {
			// The router's timeout middleware answers 504.
			logger.Warn().Err(err).Msg("List request timed out")
			return
		}

		var repoErr repository.RepoError
		if !errors.As(err, &repoErr) {
			// Client went away; nobody reads the response.
			logger.Debug().Err(err).Msg("List request cancelled")
			return
		}

		status := statusForRepoError(repoErr)
		logger.Warn().
			Err(err).
			Str("kind", string(repoErr.Kind())).
			Int("status", status).
			Msg("List request failed")
		writeError(w, status, repoErr.UserMessage())
		return
	}

	listURL := h.baseURL(r) + "/api/v2/pokemon"
	resourceBase := h.resourceBase
	if resourceBase == "" {
		resourceBase = listURL
	}

	writeJSON(w, http.StatusOK, pokemon.FromPage(page, q.Offset, q.Limit, resourceBase, listURL))
}

// Health is the liveness probe.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready runs every ready check.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	for _, check := range h.ready {
		if err := check(ctx); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Ready check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handlers) baseURL(r *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// statusForRepoError maps a RepoError to the BFF response status.
func statusForRepoError(err repository.RepoError) int {
	switch e := err.(type) {
	case *repository.NetworkError:
		return http.StatusBadGateway
	case *repository.HTTPError:
		if e.Code >= 400 && e.Code < 500 {
			return e.Code
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
