package fetcher

import (
	"fmt"
	"io"
	"time"
)

// Options select and configure a Fetcher stack.
type Options struct {
	// Renderer is "http" or "chrome".
	Renderer string
	// TextOnly reduces HTML pages to their visible text.
	TextOnly bool
	// Metrics wraps the stack with Prometheus instrumentation.
	Metrics bool
	// Timeout bounds a single fetch for every renderer. When zero, the
	// HTTP renderer keeps the timeout of its Config and the chrome
	// renderer has none.
	Timeout time.Duration
	// HTTP configures the "http" renderer. Nil selects DefaultConfig.
	HTTP *Config
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type chromeCloser struct{ f *ChromeDPFetcher }

func (c chromeCloser) Close() error {
	c.f.Close()
	return nil
}

// New builds the Fetcher described by opts. The returned Closer releases
// browser resources and must be closed when the Fetcher is no longer used.
func New(opts Options) (Fetcher, io.Closer, error) {
	var f Fetcher
	var closer io.Closer = nopCloser{}
	switch opts.Renderer {
	case "", "http":
		cfg := DefaultConfig()
		if opts.HTTP != nil {
			c := *opts.HTTP
			cfg = &c
		}
		if opts.Timeout > 0 {
			cfg.Timeout = opts.Timeout
		}
		f = NewHTTPFetcher(cfg)
	case "chrome":
		c, err := NewChromeDPFetcher(opts.Timeout)
		if err != nil {
			return nil, nil, err
		}
		f, closer = c, chromeCloser{f: c}
	default:
		return nil, nil, fmt.Errorf("unknown renderer %q", opts.Renderer)
	}

	// The browser already returns rendered text.
	if opts.TextOnly && opts.Renderer != "chrome" {
		f = NewTextFetcher(f)
	}
	if opts.Metrics {
		f = Instrumented(f)
	}
	return f, closer, nil
}
