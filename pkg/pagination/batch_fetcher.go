package pagination

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Sternrassler/pokedex-client/pkg/pokemon"
	"github.com/Sternrassler/pokedex-client/pkg/repository"
	"github.com/rs/zerolog/log"
)

// BatchConfig holds batch fetcher configuration
type BatchConfig struct {
	// MaxConcurrency is the maximum number of parallel requests
	MaxConcurrency int
	// Timeout per page fetch
	Timeout time.Duration
	// PageSize is the limit sent with every request
	PageSize int
}

// DefaultBatchConfig returns safe default configuration for PokeAPI
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
		PageSize:       100,
	}
}

// PageResult represents the result of fetching a single page
type PageResult struct {
	Offset int
	Page   pokemon.Page
	Error  error
}

// BatchFetcher handles parallel fetching of the whole list
type BatchFetcher struct {
	repo   repository.PageRepository
	config BatchConfig
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(repo repository.PageRepository, config BatchConfig) *BatchFetcher {
	defaults := DefaultBatchConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.PageSize <= 0 {
		config.PageSize = defaults.PageSize
	}

	return &BatchFetcher{
		repo:   repo,
		config: config,
	}
}

// FetchAll fetches every item of the list. The first page reports the total count,
// the remaining offsets are spread across a worker pool. Without a total the list
// is walked sequentially.
//
// Items are returned in server order. When a page fails, the items before the first
// gap are returned together with the error.
func (bf *BatchFetcher) FetchAll(ctx context.Context) ([]pokemon.Item, error) {
	start := time.Now()

	first, err := bf.fetch(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}

	if !first.HasMore || first.Len() == 0 {
		log.Info().
			Int("items", first.Len()).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete (single page)")
		return first.Items, nil
	}

	if first.Total <= first.Len() {
		return bf.fetchSequential(ctx, first, start)
	}

	log.Info().
		Int("total", first.Total).
		Int("page_size", bf.config.PageSize).
		Msg("Starting parallel page fetch")

	offsets := make(chan int)
	pageResults := make(chan PageResult)

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Later offsets are fetched by the pool; the first page is already here.
	go func() {
		defer close(offsets)
		for offset := first.Len(); offset < first.Total; offset += bf.config.PageSize {
			select {
			case offsets <- offset:
			case <-workerCtx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < bf.config.MaxConcurrency; i++ {
		wg.Add(1)
		go bf.worker(workerCtx, offsets, pageResults, &wg, i)
	}

	go func() {
		wg.Wait()
		close(pageResults)
	}()

	pages := map[int]pokemon.Page{0: first}
	var firstErr error
	for result := range pageResults {
		if result.Error != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("page at offset %d: %w", result.Offset, result.Error)
				cancel()
			}
			continue
		}

		pages[result.Offset] = result.Page

		// Progress logging every 10 pages
		if len(pages)%10 == 0 {
			log.Info().
				Int("fetched_pages", len(pages)).
				Int("total", first.Total).
				Msg("Fetch progress")
		}
	}

	items := assemble(pages, first.Len(), bf.config.PageSize)

	if firstErr != nil {
		log.Warn().
			Err(firstErr).
			Int("items", len(items)).
			Int("total", first.Total).
			Msg("Worker error - returning partial results")
		return items, fmt.Errorf("partial data (%d/%d items): %w", len(items), first.Total, firstErr)
	}

	log.Info().
		Int("items", len(items)).
		Int("pages", len(pages)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return items, nil
}

func (bf *BatchFetcher) fetchSequential(ctx context.Context, first pokemon.Page, start time.Time) ([]pokemon.Item, error) {
	items := first.Items
	page := first
	offset := first.Len()

	for page.HasMore && page.Len() > 0 {
		var err error
		page, err = bf.fetch(ctx, offset)
		if err != nil {
			return items, fmt.Errorf("page at offset %d: %w", offset, err)
		}
		items = append(items, page.Items...)
		offset += page.Len()
	}

	log.Info().
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete (sequential)")

	return items, nil
}

func (bf *BatchFetcher) fetch(ctx context.Context, offset int) (pokemon.Page, error) {
	pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	defer cancel()

	page, err := bf.repo.FetchPage(pageCtx, offset, bf.config.PageSize)
	if err != nil {
		batchPagesTotal.WithLabelValues("error").Inc()
		return pokemon.Page{}, err
	}
	batchPagesTotal.WithLabelValues("ok").Inc()
	return page, nil
}

// worker processes offsets from the queue
func (bf *BatchFetcher) worker(ctx context.Context, offsets <-chan int, results chan<- PageResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	pagesProcessed := 0

	for offset := range offsets {
		if ctx.Err() != nil {
			log.Debug().
				Int("worker_id", workerID).
				Int("pages_processed", pagesProcessed).
				Msg("Worker stopping (context cancelled)")
			return
		}

		page, err := bf.fetch(ctx, offset)
		if err != nil {
			log.Warn().
				Err(err).
				Int("worker_id", workerID).
				Int("offset", offset).
				Msg("Page fetch failed")
		}

		results <- PageResult{Offset: offset, Page: page, Error: err}
		if err != nil {
			return
		}
		pagesProcessed++
	}

	if pagesProcessed > 0 {
		log.Debug().
			Int("worker_id", workerID).
			Int("pages_processed", pagesProcessed).
			Msg("Worker completed")
	}
}

// assemble concatenates pages in offset order, stopping at the first missing offset.
func assemble(pages map[int]pokemon.Page, firstLen, pageSize int) []pokemon.Item {
	offsets := make([]int, 0, len(pages))
	for offset := range pages {
		offsets = append(offsets, offset)
	}
	sort.Ints(offsets)

	var items []pokemon.Item
	expected := 0
	for i, offset := range offsets {
		if offset != expected {
			break
		}
		items = append(items, pages[offset].Items...)
		if i == 0 {
			expected = firstLen
		} else {
			expected += pageSize
		}
	}
	return items
}
