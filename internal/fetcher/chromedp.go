package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

const cleanupScript = `document.querySelectorAll('script, style, noscript, nav, footer, aside, [role="navigation"], [aria-hidden="true"]').forEach(el => el.remove());`

// ChromeDPFetcher implements the Fetcher interface by rendering pages in a
// headless Chrome and reading the text of the rendered body.
type ChromeDPFetcher struct {
	// Timeout bounds a single fetch. Zero disables the timeout.
	Timeout time.Duration

	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
}

// NewChromeDPFetcher starts a headless browser instance. Every fetch is
// limited to timeout, or unbounded when timeout is zero.
func NewChromeDPFetcher(timeout time.Duration) (*ChromeDPFetcher, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &ChromeDPFetcher{
		Timeout:         timeout,
		allocatorCancel: allocCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
	}, nil
}

// Fetch navigates a new tab to url and returns the body's innerText.
// Tabs are independent, so concurrent calls are allowed.
func (f *ChromeDPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	log := zerolog.Ctx(ctx).With().Str("url", url).Logger()

	tabCtx, cancel := chromedp.NewContext(f.browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	runCtx := tabCtx
	if f.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(tabCtx, f.Timeout)
		defer cancelTimeout()
	}

	var content string
	var statusCode int64
	start := time.Now()
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.Evaluate(`window.performance.getEntriesByType('navigation')[0]?.responseStatus ?? 0`, &statusCode),
		chromedp.Evaluate(cleanupScript, nil),
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &content),
	)
	log.Debug().Dur("took", time.Since(start)).Msg("chromedp run finished")

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", &NetworkError{URL: url, Err: ctxErr}
		}
		if runErr := runCtx.Err(); runErr != nil {
			return "", &NetworkError{URL: url, Err: runErr}
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", &NetworkError{URL: url, Err: err}
		}
		return "", fmt.Errorf("failed to fetch content from %s: %w", url, err)
	}

	if statusCode != 0 && (statusCode < 200 || statusCode >= 300) {
		return "", &StatusError{URL: url, StatusCode: int(statusCode)}
	}

	return strings.Join(strings.Fields(content), " "), nil
}

// Close terminates the browser instance and releases resources.
func (f *ChromeDPFetcher) Close() {
	f.browserCancel()
	f.allocatorCancel()
}
