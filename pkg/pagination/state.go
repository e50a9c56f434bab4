package pagination

import "github.com/Sternrassler/pokedex-client/pkg/pokemon"

// UiState is the list screen projection. The variants are Loading, Content and Error.
type UiState interface {
	uiState()
}

// Loading means no items have been fetched yet.
type Loading struct{}

// Content holds the items accumulated so far.
type Content struct {
	Items []pokemon.Item

	// HasMore is false once the server reported the last page.
	HasMore bool

	// IsLoadingMore is true while a next-page fetch is in flight.
	IsLoadingMore bool
}

// Error is the first-page failure state. Retry leaves it.
type Error struct {
	Message string

	// Err is the underlying failure, a repository.RepoError unless the fetch was cancelled.
	Err error
}

func (Loading) uiState() {}
func (Content) uiState() {}
func (Error) uiState()   {}

// EventKind identifies a one-shot event.
type EventKind string

// EventLoadMoreFailed is emitted when a next-page fetch fails. Content stays as it was.
const EventLoadMoreFailed EventKind = "load_more_failed"

// Event is delivered once on Pager.Events.
type Event struct {
	Kind    EventKind
	Message string
	Err     error

	// Offset is the cursor position the failed fetch requested.
	Offset int
}

// ShouldLoadMore reports whether a renderer showing lastVisible (0-based) out of
// count items is within threshold items of the end.
func ShouldLoadMore(lastVisible, count, threshold int) bool {
	if count <= 0 || lastVisible < 0 {
		return false
	}
	threshold = max(threshold, 1)
	return lastVisible >= count-threshold
}
