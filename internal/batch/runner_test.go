package batch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// MockFetcher is a mock implementation of the Fetcher interface.
type MockFetcher struct {
	FetchFunc func(ctx context.Context, url string) (string, error)
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, url)
	}
	return "", errors.New("FetchFunc not implemented")
}

// pageFetcher serves fixed bodies after fixed delays.
func pageFetcher(bodies map[string]string, delays map[string]time.Duration) *MockFetcher {
	return &MockFetcher{
		FetchFunc: func(ctx context.Context, url string) (string, error) {
			if d := delays[url]; d > 0 {
				select {
				case <-time.After(d):
				case <-ctx.Done():
					return "", ctx.Err()
				}
			}
			body, ok := bodies[url]
			if !ok {
				return "", errors.New("unexpected URL " + url)
			}
			return body, nil
		},
	}
}

var abc = []string{"http://a.example", "http://b.example", "http://c.example"}

var abcBodies = map[string]string{
	"http://a.example": strings.Repeat("a", 10),
	"http://b.example": "",
	"http://c.example": strings.Repeat("c", 25),
}

func lengths(results []Result) []int {
	out := make([]int, 0, len(results))
	for _, r := range results {
		out = append(out, r.Length())
	}
	return out
}

func urlsOf(results []Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.URL)
	}
	return out
}

func TestRunner_Lengths(t *testing.T) {
	runner := NewRunner(pageFetcher(abcBodies, nil))
	ctx := context.Background()

	seq := runner.RunSequential(ctx, abc)
	require.Equal(t, abc, urlsOf(seq))
	require.Equal(t, []int{10, 0, 25}, lengths(seq))

	conc := runner.RunConcurrent(ctx, abc)
	require.Equal(t, abc, urlsOf(conc))
	require.Equal(t, []int{10, 0, 25}, lengths(conc))
}

func TestRunner_ConcurrentKeepsInputOrder(t *testing.T) {
	// The first URL finishes last.
	delays := map[string]time.Duration{
		"http://a.example": 60 * time.Millisecond,
		"http://b.example": 30 * time.Millisecond,
		"http://c.example": 0,
	}
	runner := NewRunner(pageFetcher(abcBodies, delays))

	var mu sync.Mutex
	var completion []int
	results := runner.RunConcurrentWithProgress(context.Background(), abc, func(index int, r Result) {
		mu.Lock()
		defer mu.Unlock()
		completion = append(completion, index)
	})

	require.Equal(t, abc, urlsOf(results))
	require.Equal(t, []int{10, 0, 25}, lengths(results))
	require.ElementsMatch(t, []int{0, 1, 2}, completion)
}

func TestRunner_ConcurrentIsBoundedBySlowest(t *testing.T) {
	delays := map[string]time.Duration{
		"http://a.example": 200 * time.Millisecond,
		"http://b.example": 100 * time.Millisecond,
		"http://c.example": 50 * time.Millisecond,
	}
	runner := NewRunner(pageFetcher(abcBodies, delays))
	ctx := context.Background()

	conc := runner.Run(ctx, Concurrent, abc, nil)
	require.GreaterOrEqual(t, conc.Elapsed, 200*time.Millisecond)
	require.Less(t, conc.Elapsed, 320*time.Millisecond)

	seq := runner.Run(ctx, Sequential, abc, nil)
	require.GreaterOrEqual(t, seq.Elapsed, 350*time.Millisecond)
}

func TestRunner_Idempotent(t *testing.T) {
	runner := NewRunner(pageFetcher(abcBodies, nil))
	ctx := context.Background()

	for _, mode := range []Mode{Sequential, Concurrent} {
		first := runner.Run(ctx, mode, abc, nil)
		second := runner.Run(ctx, mode, abc, nil)
		require.Equal(t, urlsOf(first.Results), urlsOf(second.Results), mode.String())
		require.Equal(t, lengths(first.Results), lengths(second.Results), mode.String())
	}
}

func TestRunner_FailureIsolation(t *testing.T) {
	fetchErr := errors.New("fetch failed")
	mockFetcher := &MockFetcher{
		FetchFunc: func(ctx context.Context, url string) (string, error) {
			if url == "http://b.example" {
				return "partial", fetchErr
			}
			return abcBodies[url], nil
		},
	}
	runner := NewRunner(mockFetcher)

	for _, mode := range []Mode{Sequential, Concurrent} {
		b := runner.Run(context.Background(), mode, abc, nil)
		require.Len(t, b.Results, 3)
		require.Equal(t, 1, b.Failed())
		require.True(t, b.Results[0].OK())
		require.Equal(t, 10, b.Results[0].Length())
		require.ErrorIs(t, b.Results[1].Err, fetchErr)
		require.Empty(t, b.Results[1].Body)
		require.True(t, b.Results[2].OK())
		require.Equal(t, 25, b.Results[2].Length())
	}
}

func TestRunner_EmptyInput(t *testing.T) {
	runner := NewRunner(&MockFetcher{})

	for _, mode := range []Mode{Sequential, Concurrent} {
		b := runner.Run(context.Background(), mode, nil, nil)
		require.Empty(t, b.Results)
		require.Less(t, b.Elapsed, 50*time.Millisecond)
	}
}

func TestRunner_SequentialStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	mockFetcher := &MockFetcher{
		FetchFunc: func(ctx context.Context, url string) (string, error) {
			calls++
			cancel()
			return "first", nil
		},
	}

	results := NewRunner(mockFetcher).RunSequential(ctx, abc)
	require.Equal(t, 1, calls)
	require.Len(t, results, 3)
	require.True(t, results[0].OK())
	require.ErrorIs(t, results[1].Err, context.Canceled)
	require.ErrorIs(t, results[2].Err, context.Canceled)
	require.Equal(t, abc, urlsOf(results))
}

func TestRunner_ConcurrentCancel(t *testing.T) {
	delays := map[string]time.Duration{
		"http://a.example": time.Minute,
		"http://b.example": time.Minute,
		"http://c.example": time.Minute,
	}
	runner := NewRunner(pageFetcher(abcBodies, delays))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	results := runner.RunConcurrent(ctx, abc)
	require.Len(t, results, 3)
	for _, r := range results {
		require.ErrorIs(t, r.Err, context.DeadlineExceeded)
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"sync":       Sequential,
		"Sequential": Sequential,
		"async":      Concurrent,
		" parallel ": Concurrent,
		"concurrent": Concurrent,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := ParseMode("both")
	require.Error(t, err)
}
