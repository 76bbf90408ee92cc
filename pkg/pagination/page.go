package pagination

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "falcon_pages_fetched_total",
		Help: "Total pages (or chunks) fetched by the pagination engine",
	}, []string{"operation"})

	pageItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "falcon_page_items_total",
		Help: "Total items accumulated by the pagination engine",
	}, []string{"operation"})
)

// Page is one parsed page of a list endpoint.
//
// Cursor and Total are pointers: an absent value is distinct from "" or 0.
type Page[T any] struct {
	Items  []T
	Cursor *string
	Total  *int
}

// FetchFunc issues the request for one page. key is the cursor (string) or
// the offset (int).
type FetchFunc[K any, R any] func(ctx context.Context, key K) (R, error)

// ParseFunc turns a raw page response into a Page.
type ParseFunc[R any, T any] func(ctx context.Context, raw R) (Page[T], error)

func observePage(operation string, items int) {
	pagesFetchedTotal.WithLabelValues(operation).Inc()
	pageItemsTotal.WithLabelValues(operation).Add(float64(items))
}
