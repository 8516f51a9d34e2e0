package batch

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kznrluk/pagerace/internal/fetcher"
)

// ProgressCallback is called every time a result becomes available, with
// the index of the URL it belongs to. In concurrent mode it is called from
// multiple goroutines, in completion order.
type ProgressCallback func(index int, result Result)

// Runner downloads a list of URLs through a Fetcher.
type Runner struct {
	fetcher fetcher.Fetcher
}

// NewRunner creates a new Runner instance.
func NewRunner(f fetcher.Fetcher) *Runner {
	return &Runner{fetcher: f}
}

// Run executes the batch in the given mode and measures its wall-clock time.
func (r *Runner) Run(ctx context.Context, mode Mode, urls []string, progress ProgressCallback) *Batch {
	start := time.Now()
	var results []Result
	if mode == Concurrent {
		results = r.RunConcurrentWithProgress(ctx, urls, progress)
	} else {
		results = r.RunSequentialWithProgress(ctx, urls, progress)
	}
	b := &Batch{
		Mode:    mode,
		Results: results,
		Elapsed: time.Since(start),
	}
	zerolog.Ctx(ctx).Info().
		Stringer("mode", mode).
		Int("urls", len(urls)).
		Int("failed", b.Failed()).
		Dur("elapsed", b.Elapsed).
		Msg("Batch finished")
	return b
}

// RunSequential fetches urls one after another.
func (r *Runner) RunSequential(ctx context.Context, urls []string) []Result {
	return r.RunSequentialWithProgress(ctx, urls, nil)
}

// RunSequentialWithProgress fetches urls one after another, reporting each
// result before starting the next fetch. Once ctx is done, the remaining
// URLs get a result carrying the context error without being fetched.
func (r *Runner) RunSequentialWithProgress(ctx context.Context, urls []string, progress ProgressCallback) []Result {
	results := make([]Result, 0, len(urls))
	for i, url := range urls {
		var result Result
		if err := ctx.Err(); err != nil {
			result = Result{URL: url, Err: err}
		} else {
			result = r.fetch(ctx, url)
		}
		results = append(results, result)
		if progress != nil {
			progress(i, result)
		}
	}
	return results
}

// RunConcurrent fetches all urls at once and waits for every fetch.
func (r *Runner) RunConcurrent(ctx context.Context, urls []string) []Result {
	return r.RunConcurrentWithProgress(ctx, urls, nil)
}

// RunConcurrentWithProgress starts one fetch per URL and waits for all of
// them. A failing fetch does not affect the others. Results are stored by
// index, so they come back in input order regardless of completion order.
func (r *Runner) RunConcurrentWithProgress(ctx context.Context, urls []string, progress ProgressCallback) []Result {
	results := make([]Result, len(urls))
	var group errgroup.Group
	for i, url := range urls {
		group.Go(func() error {
			results[i] = r.fetch(ctx, url)
			if progress != nil {
				progress(i, results[i])
			}
			return nil
		})
	}
	// Members never return an error, so Wait is only the join point.
	_ = group.Wait()
	return results
}

func (r *Runner) fetch(ctx context.Context, url string) Result {
	start := time.Now()
	body, err := r.fetcher.Fetch(ctx, url)
	result := Result{
		URL:      url,
		Body:     body,
		Err:      err,
		Duration: time.Since(start),
	}
	if err != nil {
		result.Body = ""
		zerolog.Ctx(ctx).Warn().Err(err).Str("url", url).Msg("Fetch failed")
	}
	return result
}
