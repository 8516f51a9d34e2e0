package fetcher

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config contains the configuration for HTTPFetcher.
type Config struct {
	// Timeout bounds a single fetch, including reading the body.
	// Zero disables the timeout.
	Timeout time.Duration
	// UserAgent sent with every request.
	UserAgent string
	// MaxBodyBytes is the largest response body accepted. Larger bodies
	// fail with *BodyTooLargeError. Zero or negative means no cap.
	MaxBodyBytes int64
	// ExtraHeaders to add to the HTTP requests.
	ExtraHeaders map[string]string
	// BlockPrivateNetworks refuses to connect to loopback, private and
	// link-local addresses. It is checked on the resolved address at dial
	// time, and has no effect when Transport is set.
	BlockPrivateNetworks bool
	// Transport overrides the default tuned transport when set.
	Transport http.RoundTripper
}

// DefaultConfig returns the configuration used by NewHTTPFetcher when given nil.
func DefaultConfig() *Config {
	return &Config{
		Timeout:      30 * time.Second,
		UserAgent:    defaultUserAgent,
		MaxBodyBytes: 16 << 20,
	}
}

// HTTPFetcher implements the Fetcher interface with a plain HTTP GET.
type HTTPFetcher struct {
	client  *http.Client
	config  Config
	headers http.Header
}

// NewHTTPFetcher creates an HTTPFetcher. A nil config selects DefaultConfig.
func NewHTTPFetcher(cfg *Config) *HTTPFetcher {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	transport := cfg.Transport
	if transport == nil {
		dialer := &net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}
		if cfg.BlockPrivateNetworks {
			dialer.Control = denyPrivateAddress
		}
		transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
	}

	headers := http.Header{}
	headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	headers.Set("Accept-Language", "en-US,en;q=0.9")
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	headers.Set("User-Agent", ua)
	for k, v := range cfg.ExtraHeaders {
		headers.Set(k, v)
	}

	return &HTTPFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		config:  *cfg,
		headers: headers,
	}
}

// Fetch performs a single GET and returns the whole response body as text.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	log := zerolog.Ctx(ctx).With().Str("url", url).Logger()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("setting up HTTP request: %w", err)
	}
	req.Header = f.headers.Clone()

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return "", &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	limit := f.config.MaxBodyBytes
	var body io.Reader = resp.Body
	if limit > 0 {
		// One byte over the limit tells a body of exactly limit bytes
		// apart from a larger one.
		body = io.LimitReader(resp.Body, limit+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", &NetworkError{URL: url, Err: fmt.Errorf("reading response body: %w", err)}
	}
	if limit > 0 && int64(len(data)) > limit {
		return "", &BodyTooLargeError{URL: url, Limit: limit}
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Int("bytes", len(data)).
		Dur("took", time.Since(start)).
		Msg("Fetched page")
	return string(data), nil
}

// denyPrivateAddress is a net.Dialer Control function rejecting addresses
// that IsPrivateIP reports.
func denyPrivateAddress(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || IsPrivateIP(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	return nil
}

// IsPrivateIP reports whether ip is a loopback, private, link-local or
// unspecified address.
func IsPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsUnspecified()
}
