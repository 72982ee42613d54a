// Package feed downloads and parses the public ISS ephemeris feed.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/iss-tracker/internal/observability"
	"github.com/signalsfoundry/iss-tracker/model"
)

const (
	// DefaultURL is NASA's public ISS OEM ephemeris in J2000 (XML).
	DefaultURL = "https://nasa-public-data.s3.amazonaws.com/iss-coords/current/ISS_OEM/ISS.OEM_J2K_EPH.xml"

	// DefaultTimeout bounds each HTTP attempt.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies the service to the feed host.
	DefaultUserAgent = "iss-tracker/1.0"

	// maxFeedBytes caps the response body; the real feed is a few MB.
	maxFeedBytes = 64 << 20
)

// FetchObserver receives one observation per Fetch call.
type FetchObserver interface {
	ObserveFeedFetch(d time.Duration, err error)
}

// Fetcher handles HTTP fetching of the ephemeris feed.
type Fetcher struct {
	client    *http.Client
	url       string
	userAgent string
	timeout   time.Duration
	retries   uint64
	backoff   func() backoff.BackOff
	observer  FetchObserver
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithURL sets a custom URL for the feed.
func WithURL(url string) FetcherOption {
	return func(f *Fetcher) {
		f.url = url
	}
}

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithRetries sets how many times a transient failure (network error or
// 5xx) is retried with exponential backoff. Zero disables retries.
func WithRetries(n uint64) FetcherOption {
	return func(f *Fetcher) {
		f.retries = n
	}
}

// WithBackOff overrides the backoff policy between retries.
func WithBackOff(newBackOff func() backoff.BackOff) FetcherOption {
	return func(f *Fetcher) {
		if newBackOff != nil {
			f.backoff = newBackOff
		}
	}
}

// WithObserver attaches a metrics observer.
func WithObserver(o FetchObserver) FetcherOption {
	return func(f *Fetcher) {
		f.observer = o
	}
}

// NewFetcher creates a new feed fetcher.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		url:       DefaultURL,
		userAgent: DefaultUserAgent,
		timeout:   DefaultTimeout,
		retries:   2,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.client == nil {
		f.client = &http.Client{
			Timeout:   f.timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	return f
}

// URL returns the configured feed URL.
func (f *Fetcher) URL() string {
	return f.url
}

// Fetch downloads and parses the feed. Parse errors and 4xx responses are
// not retried.
func (f *Fetcher) Fetch(ctx context.Context) (ds *model.Dataset, err error) {
	ctx, span := observability.StartSpan(ctx, "feed.fetch", attribute.String("feed.url", f.url))
	start := time.Now()
	defer func() {
		if f.observer != nil {
			f.observer.ObserveFeedFetch(time.Since(start), err)
		}
		observability.EndSpan(span, err)
	}()

	attempt := func() error {
		raw, err := f.fetchRaw(ctx)
		if err != nil {
			return err
		}
		parsed, err := Parse(raw)
		if err != nil {
			return backoff.Permanent(err)
		}
		ds = parsed
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(f.backoff(), f.retries), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		return nil, err
	}
	return ds, nil
}

// StatusError reports a non-200 response from the feed host.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

func (f *Fetcher) fetchRaw(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/xml, text/xml")

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, backoff.Permanent(fmt.Errorf("fetch feed: %w", err))
		}
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		serr := &StatusError{Code: resp.StatusCode}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(serr)
		}
		return nil, serr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return body, nil
}
