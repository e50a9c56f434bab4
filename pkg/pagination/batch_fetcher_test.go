package pagination

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/pokedex-client/pkg/pokemon"
	"github.com/Sternrassler/pokedex-client/pkg/repository"
)

// rosterRepo serves a roster of total items, like the list endpoint.
type rosterRepo struct {
	total       int
	reportTotal bool
	failAt      map[int]error
	delay       time.Duration

	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	requests    int
}

func (r *rosterRepo) FetchPage(ctx context.Context, offset, limit int) (pokemon.Page, error) {
	r.mu.Lock()
	r.requests++
	r.inFlight++
	r.maxInFlight = max(r.maxInFlight, r.inFlight)
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.inFlight--
		r.mu.Unlock()
	}()

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return pokemon.Page{}, ctx.Err()
		}
	}

	if err, ok := r.failAt[offset]; ok {
		return pokemon.Page{}, err
	}

	n := max(0, min(limit, r.total-offset))
	page := pageOf(offset, n, offset+n < r.total)
	if r.reportTotal {
		page.Total = r.total
	}
	return page, nil
}

func assertSequentialIDs(t *testing.T, items []pokemon.Item, want int) {
	t.Helper()
	if len(items) != want {
		t.Fatalf("items = %d, want %d", len(items), want)
	}
	for i, item := range items {
		if item.ID != i+1 {
			t.Fatalf("items[%d].ID = %d, want %d", i, item.ID, i+1)
		}
	}
}

func TestNewBatchFetcher_Defaults(t *testing.T) {
	bf := NewBatchFetcher(&rosterRepo{}, BatchConfig{})

	want := DefaultBatchConfig()
	if bf.config != want {
		t.Errorf("config = %+v, want %+v", bf.config, want)
	}
}

func TestBatchFetcher_Parallel(t *testing.T) {
	repo := &rosterRepo{total: 250, reportTotal: true, delay: 5 * time.Millisecond}
	bf := NewBatchFetcher(repo, BatchConfig{MaxConcurrency: 3, PageSize: 20})

	items, err := bf.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}

	assertSequentialIDs(t, items, 250)
	if repo.requests != 13 {
		t.Errorf("requests = %d, want 13", repo.requests)
	}
	if repo.maxInFlight > 3 {
		t.Errorf("max in flight = %d, want <= 3", repo.maxInFlight)
	}
}

func TestBatchFetcher_SinglePage(t *testing.T) {
	repo := &rosterRepo{total: 7, reportTotal: true}
	bf := NewBatchFetcher(repo, BatchConfig{PageSize: 20})

	items, err := bf.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	assertSequentialIDs(t, items, 7)
	if repo.requests != 1 {
		t.Errorf("requests = %d, want 1", repo.requests)
	}
}

func TestBatchFetcher_SequentialWithoutTotal(t *testing.T) {
	repo := &rosterRepo{total: 55}
	bf := NewBatchFetcher(repo, BatchConfig{MaxConcurrency: 4, PageSize: 10})

	items, err := bf.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	assertSequentialIDs(t, items, 55)
	if repo.maxInFlight != 1 {
		t.Errorf("max in flight = %d, want 1", repo.maxInFlight)
	}
}

func TestBatchFetcher_PartialOnFailure(t *testing.T) {
	boom := &repository.HTTPError{Code: 500, Message: "Internal Server Error"}
	repo := &rosterRepo{
		total:       100,
		reportTotal: true,
		failAt:      map[int]error{60: boom},
	}
	bf := NewBatchFetcher(repo, BatchConfig{MaxConcurrency: 1, PageSize: 20})

	items, err := bf.FetchAll(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	assertSequentialIDs(t, items, 60)
}

func TestBatchFetcher_FirstPageFailure(t *testing.T) {
	boom := &repository.NetworkError{Cause: errors.New("dial tcp")}
	repo := &rosterRepo{total: 100, failAt: map[int]error{0: boom}}
	bf := NewBatchFetcher(repo, DefaultBatchConfig())

	items, err := bf.FetchAll(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if items != nil {
		t.Errorf("items = %v, want nil", items)
	}
}

func TestBatchFetcher_Cancelled(t *testing.T) {
	repo := &rosterRepo{total: 1000, reportTotal: true, delay: 50 * time.Millisecond}
	bf := NewBatchFetcher(repo, BatchConfig{MaxConcurrency: 2, PageSize: 10})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(120 * time.Millisecond)
		cancel()
	}()

	done := make(chan error, 1)
	go func() {
		_, err := bf.FetchAll(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("FetchAll did not stop after cancellation")
	}
}

func TestAssemble_StopsAtGap(t *testing.T) {
	pages := map[int]pokemon.Page{
		0:  pageOf(0, 10, true),
		10: pageOf(10, 10, true),
		30: pageOf(30, 10, false),
	}

	items := assemble(pages, 10, 10)
	assertSequentialIDs(t, items, 20)
}
