package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/pokedex-client/pkg/pokemon"
	"github.com/Sternrassler/pokedex-client/pkg/position"
	"github.com/Sternrassler/pokedex-client/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fetchResult struct {
	page pokemon.Page
	err  error
}

// fakeRepo answers queued results in order and generated full pages afterwards.
// With gated set, every fetch blocks until the test sends on release.
type fakeRepo struct {
	mu          sync.Mutex
	offsets     []int
	limits      []int
	results     []fetchResult
	inFlight    int
	maxInFlight int

	gated   bool
	release chan struct{}
}

func newFakeRepo(results ...fetchResult) *fakeRepo {
	return &fakeRepo{results: results, release: make(chan struct{})}
}

func (r *fakeRepo) FetchPage(ctx context.Context, offset, limit int) (pokemon.Page, error) {
	r.mu.Lock()
	r.offsets = append(r.offsets, offset)
	r.limits = append(r.limits, limit)
	r.inFlight++
	r.maxInFlight = max(r.maxInFlight, r.inFlight)
	result := fetchResult{page: pageOf(offset, limit, true)}
	if len(r.results) > 0 {
		result = r.results[0]
		r.results = r.results[1:]
	}
	gated := r.gated
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.inFlight--
		r.mu.Unlock()
	}()

	if gated {
		select {
		case <-r.release:
		case <-ctx.Done():
			return pokemon.Page{}, ctx.Err()
		}
	}
	return result.page, result.err
}

func (r *fakeRepo) calls() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.offsets...)
}

func (r *fakeRepo) peak() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxInFlight
}

func pageOf(offset, n int, hasMore bool) pokemon.Page {
	items := make([]pokemon.Item, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, pokemon.NewItem(offset+i, fmt.Sprintf("pokemon-%d", offset+i)))
	}
	return pokemon.Page{Items: items, HasMore: hasMore}
}

func okPage(page pokemon.Page) fetchResult { return fetchResult{page: page} }
func failWith(err error) fetchResult       { return fetchResult{err: err} }

func newTestPager(t *testing.T, repo repository.PageRepository, cfg Config) *Pager {
	t.Helper()
	p, err := NewPager(context.Background(), repo, nil, cfg)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PageSize = 20
	return cfg
}

func waitContent(t *testing.T, p *Pager, cond func(Content) bool) Content {
	t.Helper()
	var got Content
	require.Eventually(t, func() bool {
		c, ok := p.State().(Content)
		if ok && cond(c) {
			got = c
			return true
		}
		return false
	}, waitFor, tick, "state = %#v", p.State())
	return got
}

func waitError(t *testing.T, p *Pager) Error {
	t.Helper()
	var got Error
	require.Eventually(t, func() bool {
		e, ok := p.State().(Error)
		got = e
		return ok
	}, waitFor, tick, "state = %#v", p.State())
	return got
}

func settled(c Content) bool { return !c.IsLoadingMore }

func TestNewPager_Validation(t *testing.T) {
	_, err := NewPager(context.Background(), nil, nil, DefaultConfig())
	assert.Error(t, err)

	_, err = NewPager(context.Background(), newFakeRepo(), nil, Config{PageSize: 0})
	assert.Error(t, err)

	p, err := NewPager(context.Background(), newFakeRepo(), nil, Config{PageSize: 5})
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, DefaultConfig().EventBuffer, cap(p.events))
	assert.IsType(t, Loading{}, p.State())
}

func TestPager_FirstPage(t *testing.T) {
	repo := newFakeRepo(okPage(pageOf(0, 20, true)))
	p := newTestPager(t, repo, testConfig())

	p.LoadInitialPage()

	c := waitContent(t, p, settled)
	assert.Len(t, c.Items, 20)
	assert.True(t, c.HasMore)
	assert.False(t, c.IsLoadingMore)
	assert.Equal(t, []int{0}, repo.calls())
	assert.Equal(t, 20, repo.limits[0])
}

func TestPager_LastPageStopsLoading(t *testing.T) {
	repo := newFakeRepo(okPage(pageOf(0, 20, true)), okPage(pageOf(20, 20, false)))
	p := newTestPager(t, repo, testConfig())

	p.LoadInitialPage()
	waitContent(t, p, settled)

	p.LoadNextPage()
	c := waitContent(t, p, func(c Content) bool { return settled(c) && len(c.Items) == 40 })
	assert.False(t, c.HasMore)
	assert.Equal(t, 1, c.Items[0].ID)
	assert.Equal(t, 40, c.Items[39].ID)

	p.LoadNextPage()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []int{0, 20}, repo.calls(), "no fetch after the last page")
}

func TestPager_RetryAfterNetworkError(t *testing.T) {
	repo := newFakeRepo(
		failWith(&repository.NetworkError{Cause: errors.New("connection refused")}),
		okPage(pageOf(0, 20, true)),
		okPage(pageOf(20, 20, true)),
	)
	p := newTestPager(t, repo, testConfig())

	p.LoadInitialPage()
	e := waitError(t, p)
	assert.Equal(t, (&repository.NetworkError{}).UserMessage(), e.Message)
	var netErr *repository.NetworkError
	assert.ErrorAs(t, e.Err, &netErr)

	p.Retry()
	c := waitContent(t, p, settled)
	assert.Len(t, c.Items, 20)
	assert.Equal(t, 1, c.Items[0].ID)

	// Cursor reflects only the successful fetch.
	p.LoadNextPage()
	waitContent(t, p, func(c Content) bool { return settled(c) && len(c.Items) == 40 })
	assert.Equal(t, []int{0, 0, 20}, repo.calls())
}

func TestPager_HTTPErrorMessage(t *testing.T) {
	repo := newFakeRepo(failWith(&repository.HTTPError{Code: 404, Message: "Not Found"}))
	p := newTestPager(t, repo, testConfig())

	p.LoadInitialPage()
	e := waitError(t, p)

	assert.Contains(t, e.Message, "404")
	assert.NotEqual(t, (&repository.NetworkError{}).UserMessage(), e.Message)
	var httpErr *repository.HTTPError
	require.ErrorAs(t, e.Err, &httpErr)
	assert.Equal(t, 404, httpErr.Code)
}

func TestPager_LoadInitialPageIdempotent(t *testing.T) {
	repo := newFakeRepo()
	repo.gated = true
	p := newTestPager(t, repo, testConfig())

	p.LoadInitialPage()
	p.LoadInitialPage()
	repo.release <- struct{}{}
	waitContent(t, p, settled)

	p.LoadInitialPage()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []int{0}, repo.calls())
}

func TestPager_SingleFlight(t *testing.T) {
	repo := newFakeRepo()
	repo.gated = true
	p := newTestPager(t, repo, testConfig())

	p.LoadInitialPage()
	repo.release <- struct{}{}
	waitContent(t, p, settled)

	p.LoadNextPage()
	c, isContent := p.State().(Content)
	require.True(t, isContent)
	assert.True(t, c.IsLoadingMore, "loading flag must be set before the fetch completes")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.LoadNextPage()
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return len(repo.calls()) == 2 }, waitFor, tick)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, repo.calls(), 2)
	assert.Equal(t, 1, repo.peak())

	repo.release <- struct{}{}
	waitContent(t, p, func(c Content) bool { return settled(c) && len(c.Items) == 40 })
	assert.Equal(t, 1, repo.peak())
}

func TestPager_NextPageFailureKeepsContent(t *testing.T) {
	repo := newFakeRepo(
		okPage(pageOf(0, 20, true)),
		failWith(&repository.HTTPError{Code: 503, Message: "Service Unavailable"}),
		okPage(pageOf(20, 20, true)),
	)
	p := newTestPager(t, repo, testConfig())

	p.LoadInitialPage()
	before := waitContent(t, p, settled)

	p.LoadNextPage()

	select {
	case ev := <-p.Events():
		assert.Equal(t, EventLoadMoreFailed, ev.Kind)
		assert.Equal(t, 20, ev.Offset)
		assert.Contains(t, ev.Message, "503")
	case <-time.After(waitFor):
		t.Fatal("no load-more failure event")
	}

	after := waitContent(t, p, settled)
	assert.Equal(t, before.Items, after.Items)
	assert.True(t, after.HasMore, "a failed next page keeps HasMore")

	// The same offset can be requested again.
	p.LoadNextPage()
	waitContent(t, p, func(c Content) bool { return settled(c) && len(c.Items) == 40 })
	assert.Equal(t, []int{0, 20, 20}, repo.calls())
}

func TestPager_CursorMonotonic(t *testing.T) {
	repo := newFakeRepo()
	cfg := testConfig()
	cfg.PageSize = 10
	p := newTestPager(t, repo, cfg)

	p.LoadInitialPage()
	waitContent(t, p, settled)

	for n := 1; n <= 5; n++ {
		p.LoadNextPage()
		want := 10 * (n + 1)
		waitContent(t, p, func(c Content) bool { return settled(c) && len(c.Items) == want })
	}

	assert.Equal(t, []int{0, 10, 20, 30, 40, 50}, repo.calls())
}

func TestPager_EmptyFirstPage(t *testing.T) {
	repo := newFakeRepo(okPage(pokemon.Page{HasMore: true}))
	p := newTestPager(t, repo, testConfig())

	p.LoadInitialPage()

	c := waitContent(t, p, settled)
	assert.Empty(t, c.Items)
	assert.False(t, c.HasMore, "an empty page ends the list")

	p.LoadNextPage()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []int{0}, repo.calls())
}

func TestPager_ShortPageAdvancesByCount(t *testing.T) {
	repo := newFakeRepo(okPage(pageOf(0, 15, true)))
	p := newTestPager(t, repo, testConfig())

	p.LoadInitialPage()
	waitContent(t, p, settled)
	p.LoadNextPage()
	waitContent(t, p, func(c Content) bool { return settled(c) && len(c.Items) == 35 })

	assert.Equal(t, []int{0, 15}, repo.calls())
}

func TestPager_DedupeByID(t *testing.T) {
	overlap := pageOf(15, 20, false) // ids 16..35 overlap 16..20
	tests := []struct {
		name      string
		dedupe    bool
		wantItems int
	}{
		{name: "dedupe", dedupe: true, wantItems: 35},
		{name: "keep duplicates", dedupe: false, wantItems: 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo(okPage(pageOf(0, 20, true)), okPage(overlap))
			cfg := testConfig()
			cfg.DedupeByID = tt.dedupe
			p := newTestPager(t, repo, cfg)

			p.LoadInitialPage()
			waitContent(t, p, settled)
			p.LoadNextPage()
			c := waitContent(t, p, func(c Content) bool { return settled(c) && !c.HasMore })

			assert.Len(t, c.Items, tt.wantItems)
			seen := map[int]int{}
			for _, item := range c.Items {
				seen[item.ID]++
			}
			if tt.dedupe {
				for id, n := range seen {
					assert.Equal(t, 1, n, "id %d", id)
				}
			}
		})
	}
}

func TestPager_RetryOnlyFromError(t *testing.T) {
	repo := newFakeRepo()
	p := newTestPager(t, repo, testConfig())

	p.Retry()
	assert.IsType(t, Loading{}, p.State())
	assert.Empty(t, repo.calls())

	p.LoadInitialPage()
	waitContent(t, p, settled)
	p.Retry()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []int{0}, repo.calls())
}

func TestPager_TransportCancellationIsRetryable(t *testing.T) {
	repo := newFakeRepo(failWith(context.Canceled), okPage(pageOf(0, 20, true)))
	p := newTestPager(t, repo, testConfig())

	p.LoadInitialPage()
	e := waitError(t, p)
	assert.ErrorIs(t, e.Err, context.Canceled)
	var repoErr repository.RepoError
	assert.False(t, errors.As(e.Err, &repoErr), "cancellation must stay unclassified")

	p.Retry()
	waitContent(t, p, settled)
}

func TestPager_CloseCancelsInFlight(t *testing.T) {
	repo := newFakeRepo()
	repo.gated = true
	p, err := NewPager(context.Background(), repo, nil, testConfig())
	require.NoError(t, err)

	states, _ := p.Subscribe()
	p.LoadInitialPage()
	require.Eventually(t, func() bool { return len(repo.calls()) == 1 }, waitFor, tick)

	done := make(chan struct{})
	go func() {
		p.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("Close did not return")
	}

	assert.IsType(t, Loading{}, p.State(), "no state published after Close")

	for range states {
	}
	_, open := <-p.Events()
	assert.False(t, open, "events channel closed")

	p.LoadInitialPage()
	p.LoadNextPage()
	p.Retry()
	p.Close()
	assert.Len(t, repo.calls(), 1)

	late, _ := p.Subscribe()
	_, open = <-late
	assert.False(t, open, "subscribing after Close yields a closed channel")
}

func TestPager_ParentContextCancelled(t *testing.T) {
	repo := newFakeRepo()
	repo.gated = true
	ctx, cancel := context.WithCancel(context.Background())
	p, err := NewPager(ctx, repo, nil, testConfig())
	require.NoError(t, err)
	defer p.Close()

	p.LoadInitialPage()
	require.Eventually(t, func() bool { return len(repo.calls()) == 1 }, waitFor, tick)
	cancel()

	time.Sleep(20 * time.Millisecond)
	assert.IsType(t, Loading{}, p.State())
}

func TestPager_SubscribeReplaysLatest(t *testing.T) {
	repo := newFakeRepo(okPage(pageOf(0, 20, true)), okPage(pageOf(20, 5, false)))
	p := newTestPager(t, repo, testConfig())

	early, unsubscribe := p.Subscribe()
	assert.IsType(t, Loading{}, <-early)

	p.LoadInitialPage()
	waitContent(t, p, settled)
	p.LoadNextPage()
	waitContent(t, p, func(c Content) bool { return !c.HasMore })

	// A slow reader sees only the latest state.
	latest := <-early
	c, isContent := latest.(Content)
	require.True(t, isContent)
	assert.Len(t, c.Items, 25)

	late, unsubscribeLate := p.Subscribe()
	defer unsubscribeLate()
	assert.Equal(t, latest, <-late)

	unsubscribe()
	_, open := <-early
	assert.False(t, open)
}

func TestPager_PublishedItemsDoNotAlias(t *testing.T) {
	repo := newFakeRepo(okPage(pageOf(0, 3, true)), okPage(pageOf(3, 3, true)))
	p := newTestPager(t, repo, testConfig())

	p.LoadInitialPage()
	first := waitContent(t, p, settled)
	_ = append(first.Items, pokemon.NewItem(999, "intruder"))

	p.LoadNextPage()
	c := waitContent(t, p, func(c Content) bool { return settled(c) && len(c.Items) == 6 })
	assert.Equal(t, 4, c.Items[3].ID)
}

func TestPager_Position(t *testing.T) {
	tracker := position.New()
	tracker.CaptureScroll(30, 4)
	tracker.CaptureSelection(31)

	p, err := NewPager(context.Background(), newFakeRepo(), tracker, testConfig())
	require.NoError(t, err)
	defer p.Close()

	restored := p.RestoredPosition()
	assert.Equal(t, 30, restored.FirstVisibleIndex)
	id, selected := restored.Selected()
	assert.True(t, selected)
	assert.Equal(t, 31, id)

	p.OnPositionChanged(42, 9)
	p.OnItemSelected(44)

	now := tracker.Restore()
	assert.Equal(t, 42, now.FirstVisibleIndex)
	assert.Equal(t, 9, now.FirstVisibleOffset)
	id, _ = now.Selected()
	assert.Equal(t, 44, id)

	// The construction-time snapshot does not move.
	assert.Equal(t, 30, p.RestoredPosition().FirstVisibleIndex)
}

func TestShouldLoadMore(t *testing.T) {
	tests := []struct {
		lastVisible, count, threshold int
		want                          bool
	}{
		{lastVisible: 0, count: 0, threshold: 5, want: false},
		{lastVisible: 10, count: 20, threshold: 5, want: false},
		{lastVisible: 15, count: 20, threshold: 5, want: true},
		{lastVisible: 19, count: 20, threshold: 5, want: true},
		{lastVisible: 18, count: 20, threshold: 0, want: false},
		{lastVisible: 19, count: 20, threshold: 0, want: true},
		{lastVisible: -1, count: 20, threshold: 5, want: false},
	}

	for _, tt := range tests {
		got := ShouldLoadMore(tt.lastVisible, tt.count, tt.threshold)
		assert.Equal(t, tt.want, got, "ShouldLoadMore(%d, %d, %d)", tt.lastVisible, tt.count, tt.threshold)
	}
}
