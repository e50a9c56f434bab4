// Package repository is the page fetch boundary between the pagination engine and
// the PokeAPI transport. It performs one remote call per FetchPage, maps every
// failure to a RepoError, and lets only cancellation through unclassified.
package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Sternrassler/pokedex-client/pkg/client"
	"github.com/Sternrassler/pokedex-client/pkg/pokemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ListPath is the collection path fetched relative to the client's base URL.
const ListPath = "/pokemon"

// ErrInvalidPageRequest is wrapped in an UnknownError when offset or limit is out of range.
var ErrInvalidPageRequest = errors.New("invalid page request")

var fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pokedex_repository_fetches_total",
	Help: "Total page fetches by result (ok, network, http, unknown, canceled)",
}, []string{"result"})

// PageRepository fetches one page of the list.
//
// FetchPage returns either a Page or an error that is a RepoError, except when ctx
// is cancelled, in which case the cancellation error is returned as is.
type PageRepository interface {
	FetchPage(ctx context.Context, offset, limit int) (pokemon.Page, error)
}

// JSONGetter is the part of client.Client the repository needs.
type JSONGetter interface {
	GetJSON(ctx context.Context, path string, query url.Values, v any) error
}

var _ JSONGetter = (*client.Client)(nil)

// HTTPRepository implements PageRepository over the PokeAPI list endpoint.
type HTTPRepository struct {
	client JSONGetter
	logger zerolog.Logger
}

// NewHTTPRepository creates a repository. The client must not be configured with
// retries if retry policy is meant to stay with the caller.
func NewHTTPRepository(c JSONGetter) *HTTPRepository {
	return &HTTPRepository{
		client: c,
		logger: log.With().Str("component", "page-repository").Logger(),
	}
}

// FetchPage implements PageRepository.
func (r *HTTPRepository) FetchPage(ctx context.Context, offset, limit int) (page pokemon.Page, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().Interface("panic", p).Int("offset", offset).Msg("Recovered panic in page fetch")
			page = pokemon.Page{}
			err = &UnknownError{Cause: fmt.Errorf("panic: %v", p)}
		}
		fetchesTotal.WithLabelValues(resultLabel(err)).Inc()
	}()

	if offset < 0 || limit <= 0 {
		return pokemon.Page{}, &UnknownError{
			Cause: fmt.Errorf("%w: offset=%d limit=%d", ErrInvalidPageRequest, offset, limit),
		}
	}

	query := url.Values{}
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))

	var resp pokemon.ListResponse
	if err := r.client.GetJSON(ctx, ListPath, query, &resp); err != nil {
		return pokemon.Page{}, r.mapError(err, offset)
	}

	page, err = resp.ToPage()
	if err != nil {
		return pokemon.Page{}, r.mapError(err, offset)
	}

	r.logger.Debug().
		Int("offset", offset).
		Int("limit", limit).
		Int("items", page.Len()).
		Bool("has_more", page.HasMore).
		Msg("Fetched page")

	return page, nil
}

func (r *HTTPRepository) mapError(err error, offset int) error {
	repoErr, ok := ToRepoError(err)
	if !ok {
		r.logger.Debug().Int("offset", offset).Msg("Page fetch cancelled")
		return err
	}

	r.logger.Warn().
		Err(err).
		Int("offset", offset).
		Str("kind", string(repoErr.Kind())).
		Msg("Page fetch failed")
	return repoErr
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var repoErr RepoError
	if errors.As(err, &repoErr) {
		return string(repoErr.Kind())
	}
	return "canceled"
}
