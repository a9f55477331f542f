package ai

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"agentloop/internal/logger"
	"agentloop/internal/metrics"
)

// BatchResult is the outcome of one query, at the same index as its input.
type BatchResult struct {
	Query    string
	Response string
	Err      error
}

// MapQueries applies fn to every query using at most workers goroutines.
// Results keep input order. A failing query records its error without
// stopping the others; once ctx is done, queries not yet started fail with
// the context error.
func MapQueries(ctx context.Context, queries []string, workers int, fn func(ctx context.Context, query string) (string, error)) []BatchResult {
	if workers <= 0 {
		workers = 1
	}
	results := make([]BatchResult, len(queries))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, query := range queries {
		results[i].Query = query
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			metrics.BatchQueriesInFlight.Inc()
			defer metrics.BatchQueriesInFlight.Dec()

			results[i].Response, results[i].Err = fn(ctx, query)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// RunBatch answers each query in its own throwaway session.
func (a *Agent) RunBatch(ctx context.Context, queries []string, workers int) []BatchResult {
	logger.Infof("Running batch of %d queries with %d workers", len(queries), workers)
	return MapQueries(ctx, queries, workers, func(ctx context.Context, query string) (string, error) {
		sessionID := "batch-" + uuid.NewString()
		defer a.ResetSession(context.WithoutCancel(ctx), sessionID)

		resp, err := a.Run(ctx, sessionID, query)
		if err != nil {
			return resp, fmt.Errorf("query %q: %w", query, err)
		}
		return resp, nil
	})
}
