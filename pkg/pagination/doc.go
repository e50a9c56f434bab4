// Package pagination loads the Pokémon list page by page.
//
// Pager is the list-screen state machine. It starts in Loading, moves to Content
// or Error after the first page, and appends further pages on LoadNextPage. Only
// one fetch is ever in flight. A failed first page yields Error; a failed later
// page keeps the accumulated Content and reports an Event instead.
//
// Example usage:
//
//	pager, err := pagination.NewPager(ctx, repo, position.New(), pagination.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer pager.Close()
//
//	states, unsubscribe := pager.Subscribe()
//	defer unsubscribe()
//	pager.LoadInitialPage()
//
//	for state := range states {
//		switch s := state.(type) {
//		case pagination.Loading:
//		case pagination.Content:
//			render(s.Items)
//		case pagination.Error:
//			showError(s.Message)
//		}
//	}
//
// BatchFetcher walks the whole list with a worker pool. It fetches the first page
// to learn the total count, then spreads the remaining offsets across workers.
package pagination
