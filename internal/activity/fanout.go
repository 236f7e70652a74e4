package activity

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wardline/wallet-backend/internal/store"
)

// fanOut issues one read per ownership predicate concurrently against a
// single table and unions the results, deduplicating by the kind's natural
// key and keeping the first-seen occurrence. A failed sub-query degrades to
// an empty partial result with a warning; the feed tolerates a transiently
// incomplete union.
func (s *Service) fanOut(ctx context.Context, table string, queries []store.Query, key func(store.Row) string) []store.Row {
	results := make([][]store.Row, len(queries))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			rows, err := s.store.Select(gctx, table, q)
			if err != nil {
				s.log.Warn().Err(err).Str("table", table).Msg("activity fan-out sub-query failed, degrading to empty result")
				return nil
			}
			mu.Lock()
			results[i] = rows
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	seen := map[string]bool{}
	var union []store.Row
	for _, rows := range results {
		for _, r := range rows {
			k := key(r)
			if k != "" && seen[k] {
				continue
			}
			if k != "" {
				seen[k] = true
			}
			union = append(union, r)
		}
	}
	return union
}

// stringKey extracts a string column for dedup.
func stringKey(field string) func(store.Row) string {
	return func(r store.Row) string {
		v, _ := r[field].(string)
		return v
	}
}
