package pagination

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Sternrassler/pokedex-client/pkg/pokemon"
	"github.com/Sternrassler/pokedex-client/pkg/position"
	"github.com/Sternrassler/pokedex-client/pkg/repository"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const interruptedMessage = "Loading was interrupted. Please try again."

// Config holds pager configuration.
type Config struct {
	// PageSize is the limit sent with every request.
	PageSize int

	// DedupeByID drops fetched items whose id is already in the list.
	DedupeByID bool

	// EventBuffer is the capacity of the Events channel. Events beyond it are dropped.
	EventBuffer int
}

// DefaultConfig returns the configuration used by the list screen.
func DefaultConfig() Config {
	return Config{
		PageSize:    20,
		DedupeByID:  true,
		EventBuffer: 8,
	}
}

// PositionTracker is the pager's view of the position adapter.
type PositionTracker interface {
	Restore() position.PersistedPosition
	CaptureScroll(index, offset int)
	CaptureSelection(id int)
}

// Pager is the list state machine. All methods are safe for concurrent use and
// never block on I/O; fetches run in the background and are bound to the context
// given to NewPager.
type Pager struct {
	repo     repository.PageRepository
	tracker  PositionTracker
	restored position.PersistedPosition
	config   Config
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	state       UiState
	cursor      cursor
	items       []pokemon.Item
	seen        map[int]struct{}
	initStarted bool
	generation  uint64
	closed      bool
	subs        map[int]chan UiState
	nextSubID   int
	events      chan Event
}

// NewPager creates a pager in the Loading state. tracker may be nil, in which case
// an in-memory position.Adapter is used. The restored position is read once here.
func NewPager(ctx context.Context, repo repository.PageRepository, tracker PositionTracker, cfg Config) (*Pager, error) {
	if repo == nil {
		return nil, fmt.Errorf("page repository is required")
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", cfg.PageSize)
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultConfig().EventBuffer
	}
	if tracker == nil {
		tracker = position.New()
	}

	pagerCtx, cancel := context.WithCancel(ctx)

	p := &Pager{
		repo:     repo,
		tracker:  tracker,
		restored: tracker.Restore(),
		config:   cfg,
		logger:   log.With().Str("component", "pager").Logger(),
		ctx:      pagerCtx,
		cancel:   cancel,
		state:    Loading{},
		cursor:   newCursor(cfg.PageSize),
		seen:     make(map[int]struct{}),
		subs:     make(map[int]chan UiState),
		events:   make(chan Event, cfg.EventBuffer),
	}

	return p, nil
}

// State returns the current state.
func (p *Pager) State() UiState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Subscribe returns a channel that immediately holds the current state and then
// always holds the latest one. Intermediate states may be skipped by slow readers.
// The channel is closed by the returned func or by Close.
func (p *Pager) Subscribe() (<-chan UiState, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan UiState, 1)
	if p.closed {
		close(ch)
		return ch, func() {}
	}

	id := p.nextSubID
	p.nextSubID++
	p.subs[id] = ch
	ch <- p.state

	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if c, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(c)
		}
	}
}

// Events returns the one-shot event channel. It is closed by Close.
func (p *Pager) Events() <-chan Event {
	return p.events
}

// RestoredPosition returns the position read at construction.
func (p *Pager) RestoredPosition() position.PersistedPosition {
	return p.restored
}

// LoadInitialPage fetches the first page. Only the first call per pager has an effect.
func (p *Pager) LoadInitialPage() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initStarted || !p.activeLocked() {
		return
	}
	p.initStarted = true

	p.logger.Debug().Int("page_size", p.config.PageSize).Msg("Loading initial page")
	p.fetchLocked(0, true)
}

// LoadNextPage fetches the page after the accumulated items. It is a no-op unless
// the state is Content with HasMore set and no fetch in flight.
func (p *Pager) LoadNextPage() {
	p.mu.Lock()
	defer p.mu.Unlock()

	content, ok := p.state.(Content)
	if !ok || !content.HasMore || content.IsLoadingMore || !p.activeLocked() {
		return
	}

	content.IsLoadingMore = true
	p.setStateLocked(content)

	p.logger.Debug().Int("offset", p.cursor.offset).Msg("Loading next page")
	p.fetchLocked(p.cursor.offset, false)
}

// Retry restarts from the first page. It only has an effect in the Error state.
func (p *Pager) Retry() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.state.(Error); !ok || !p.activeLocked() {
		return
	}

	p.generation++
	p.cursor.reset()
	p.items = nil
	clear(p.seen)
	p.setStateLocked(Loading{})

	p.logger.Debug().Msg("Retrying initial page")
	p.fetchLocked(0, true)
}

// OnPositionChanged records the first visible item and its offset.
func (p *Pager) OnPositionChanged(index, offset int) {
	p.tracker.CaptureScroll(index, offset)
}

// OnItemSelected records the selected item id.
func (p *Pager) OnItemSelected(id int) {
	p.tracker.CaptureSelection(id)
}

// Close cancels any in-flight fetch, waits for it to return, and closes the
// subscriber and event channels. No state is published after Close.
func (p *Pager) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	for id, ch := range p.subs {
		delete(p.subs, id)
		close(ch)
	}
	close(p.events)
}

// activeLocked reports whether new fetches may start.
func (p *Pager) activeLocked() bool {
	return !p.closed && p.ctx.Err() == nil
}

// fetchLocked starts the background fetch. The caller has already moved the state
// to its in-flight form, so the guard is in place before the goroutine runs.
func (p *Pager) fetchLocked(offset int, first bool) {
	gen := p.generation
	limit := p.cursor.limit

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		page, err := p.repo.FetchPage(p.ctx, offset, limit)
		p.complete(gen, offset, first, page, err)
	}()
}

func (p *Pager) complete(gen uint64, offset int, first bool, page pokemon.Page, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	kind := pageKind(first)

	if p.closed || p.ctx.Err() != nil || gen != p.generation {
		pagerFetchesTotal.WithLabelValues(kind, "discarded").Inc()
		return
	}

	if err != nil {
		p.failLocked(offset, first, err)
		return
	}

	pagerFetchesTotal.WithLabelValues(kind, "ok").Inc()

	added := p.appendLocked(page.Items)
	hasMore := page.HasMore && page.Len() > 0
	p.cursor.advance(page.Len(), hasMore)

	p.logger.Debug().
		Int("offset", offset).
		Int("fetched", page.Len()).
		Int("added", added).
		Int("total", len(p.items)).
		Bool("has_more", hasMore).
		Msg("Page loaded")

	p.setStateLocked(Content{
		Items:         slices.Clip(p.items),
		HasMore:       hasMore,
		IsLoadingMore: false,
	})
}

func (p *Pager) failLocked(offset int, first bool, err error) {
	message := interruptedMessage
	result := "canceled"
	if repoErr, ok := repository.ToRepoError(err); ok {
		message = repoErr.UserMessage()
		err = repoErr
		result = "error"
	}
	pagerFetchesTotal.WithLabelValues(pageKind(first), result).Inc()

	p.logger.Warn().
		Err(err).
		Int("offset", offset).
		Bool("first_page", first).
		Msg("Page fetch failed")

	if first {
		p.setStateLocked(Error{Message: message, Err: err})
		return
	}

	content, _ := p.state.(Content)
	content.IsLoadingMore = false
	p.setStateLocked(content)

	p.emitLocked(Event{
		Kind:    EventLoadMoreFailed,
		Message: message,
		Err:     err,
		Offset:  offset,
	})
}

func (p *Pager) appendLocked(items []pokemon.Item) int {
	added := 0
	for _, item := range items {
		if p.config.DedupeByID {
			if _, dup := p.seen[item.ID]; dup {
				pagerDuplicatesDropped.Inc()
				continue
			}
			p.seen[item.ID] = struct{}{}
		}
		p.items = append(p.items, item)
		added++
	}
	pagerItemsLoaded.Add(float64(added))
	return added
}

// setStateLocked stores s and replaces whatever each subscriber has not read yet.
// Only this method sends on subscriber channels, always under p.mu, so the send
// after the drain cannot block.
func (p *Pager) setStateLocked(s UiState) {
	p.state = s
	for _, ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

func (p *Pager) emitLocked(e Event) {
	select {
	case p.events <- e:
	default:
		pagerEventsDropped.Inc()
		p.logger.Warn().Str("kind", string(e.Kind)).Msg("Event buffer full - dropping event")
	}
}

func pageKind(first bool) string {
	if first {
		return "first"
	}
	return "next"
}
