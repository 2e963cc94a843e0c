package worker

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/gyeh/billcheck/internal/progress"
)

// Pool checks many documents concurrently.
type Pool struct {
	Workers  int
	Pipeline *Pipeline
	Progress progress.Manager
}

// Run processes all sources and returns results in input order.
func (p *Pool) Run(ctx context.Context, sources []string) []Result {
	results := make([]Result, len(sources))
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var done, flagged int
	var items int64

	for i, src := range sources {
		wg.Add(1)
		go func(idx int, s string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				r := Result{Source: s}
				results[idx] = *r.fail(ctx.Err())
				return
			}
			defer func() { <-sem }()

			tracker := p.Progress.NewTracker(idx, len(sources), displayName(s))
			result := p.Pipeline.Run(ctx, s, tracker)
			results[idx] = *result
			tracker.Done()

			mu.Lock()
			done++
			if result.Flagged() {
				flagged++
			}
			if result.Extraction != nil {
				items += int64(len(result.Extraction.Items))
			}
			p.Progress.SetOverallStats(done, flagged, items)
			mu.Unlock()
		}(i, src)
	}

	wg.Wait()
	return results
}

func displayName(source string) string {
	if IsURL(source) {
		return FileNameFromURL(source)
	}
	return filepath.Base(source)
}
