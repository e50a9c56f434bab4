package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagerFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokedex_pager_fetches_total",
		Help: "Total pager page fetches by page kind (first, next) and result (ok, error, canceled, discarded)",
	}, []string{"page", "result"})

	pagerItemsLoaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pokedex_pager_items_loaded_total",
		Help: "Total items appended to pager content",
	})

	pagerDuplicatesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pokedex_pager_duplicates_dropped_total",
		Help: "Total fetched items dropped because their id was already loaded",
	})

	pagerEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pokedex_pager_events_dropped_total",
		Help: "Total one-shot events dropped because the events buffer was full",
	})

	batchPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokedex_batch_pages_total",
		Help: "Total pages fetched by the batch fetcher by result",
	}, []string{"result"})
)
