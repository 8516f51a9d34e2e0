package fetcher

import (
	"context"
	"errors"
	"fmt"
)

// ErrBlockedAddress is wrapped by errors for connections refused because
// the destination is on a private network.
var ErrBlockedAddress = errors.New("destination address is not allowed")

// Fetcher defines the interface for retrieving content from a URL.
type Fetcher interface {
	// Fetch retrieves the textual content of the given URL. It blocks until
	// the whole payload has been received or the context is done.
	Fetch(ctx context.Context, url string) (content string, err error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) (string, error)

// Fetch calls f(ctx, url).
func (f FetcherFunc) Fetch(ctx context.Context, url string) (string, error) {
	return f(ctx, url)
}

// NetworkError is returned when a request could not complete: connection
// refused, DNS failure, TLS failure, timeout or a broken body stream.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// StatusError is returned when the server answered with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("received non-2xx status code %d for %s", e.StatusCode, e.URL)
}

// BodyTooLargeError is returned when a response body exceeds the
// configured maximum size.
type BodyTooLargeError struct {
	URL   string
	Limit int64
}

func (e *BodyTooLargeError) Error() string {
	return fmt.Sprintf("response body of %s exceeds %d bytes", e.URL, e.Limit)
}
