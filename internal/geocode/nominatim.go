// Package geocode implements reverse geocoding against a Nominatim server.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/signalsfoundry/iss-tracker/internal/observability"
)

const (
	// DefaultBaseURL is the public OpenStreetMap Nominatim instance.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// DefaultUserAgent identifies the service; Nominatim rejects anonymous clients.
	DefaultUserAgent = "iss_tracker"

	// DefaultZoom requests building-level detail, the provider maximum.
	DefaultZoom = 18

	// DefaultLanguage is sent as accept-language.
	DefaultLanguage = "en"

	// DefaultRate is the public usage policy limit (requests per second).
	DefaultRate = 1.0

	// DefaultCacheSize and DefaultCacheTTL bound the result cache.
	DefaultCacheSize = 1024
	DefaultCacheTTL  = time.Hour

	// DefaultTimeout bounds a single provider call.
	DefaultTimeout = 10 * time.Second

	maxZoom          = 18
	maxResponseBytes = 1 << 20
	noMatchMessage   = "Unable to geocode"
)

// Observer receives provider and cache outcomes.
type Observer interface {
	ObserveGeocode(result string)
	ObserveGeocodeCache(hit bool)
}

type result struct {
	place string
	found bool
}

// Client is a rate-limited, cached Nominatim reverse geocoder. It satisfies
// core.Geocoder.
type Client struct {
	baseURL   string
	userAgent string
	language  string
	zoom      int
	timeout   time.Duration

	http     *http.Client
	limiter  *rate.Limiter
	cache    *expirable.LRU[string, result]
	group    singleflight.Group
	observer Observer

	cacheSize int
	cacheTTL  time.Duration
	perSecond float64
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another Nominatim deployment.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithLanguage sets the accept-language parameter.
func WithLanguage(lang string) Option {
	return func(c *Client) {
		if lang != "" {
			c.language = lang
		}
	}
}

// WithZoom sets the detail level, clamped to [0, 18].
func WithZoom(z int) Option {
	return func(c *Client) {
		c.zoom = min(max(z, 0), maxZoom)
	}
}

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRate limits provider calls to perSecond. Zero or negative disables
// the limit.
func WithRate(perSecond float64) Option {
	return func(c *Client) {
		c.perSecond = perSecond
	}
}

// WithCache sets the result cache size and TTL. A size of zero disables caching.
func WithCache(size int, ttl time.Duration) Option {
	return func(c *Client) {
		c.cacheSize = size
		c.cacheTTL = ttl
	}
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// New builds a Client with the provided options.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		language:  DefaultLanguage,
		zoom:      DefaultZoom,
		timeout:   DefaultTimeout,
		cacheSize: DefaultCacheSize,
		cacheTTL:  DefaultCacheTTL,
		perSecond: DefaultRate,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.http == nil {
		c.http = &http.Client{
			Timeout:   c.timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	limit := rate.Inf
	if c.perSecond > 0 {
		limit = rate.Limit(c.perSecond)
	}
	c.limiter = rate.NewLimiter(limit, 1)
	if c.cacheSize > 0 {
		c.cache = expirable.NewLRU[string, result](c.cacheSize, nil, c.cacheTTL)
	}
	return c
}

// Reverse looks up (lat, lon) rounded to four decimals. found is false when
// the provider has no match. Concurrent lookups for the same rounded
// coordinates share one provider call.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (string, bool, error) {
	lat, lon = roundCoord(lat), roundCoord(lon)
	key := cacheKey(lat, lon)
	if c.cache != nil {
		r, ok := c.cache.Get(key)
		c.observeCache(ok)
		if ok {
			return r.place, r.found, nil
		}
	}

	ch := c.group.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.lookup(lctx, key, lat, lon)
	})
	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", false, res.Err
		}
		r := res.Val.(result)
		return r.place, r.found, nil
	}
}

func (c *Client) lookup(ctx context.Context, key string, lat, lon float64) (result, error) {
	ctx, span := observability.StartSpan(ctx, "geocode.reverse",
		attribute.Float64("geo.lat", lat),
		attribute.Float64("geo.lon", lon),
	)
	r, err := c.do(ctx, lat, lon)
	observability.EndSpan(span, err)

	switch {
	case err != nil:
		c.observe(observability.GeocodeError)
		return result{}, err
	case r.found:
		c.observe(observability.GeocodeFound)
	default:
		c.observe(observability.GeocodeOcean)
	}
	if c.cache != nil {
		c.cache.Add(key, r)
	}
	return r, nil
}

func (c *Client) do(ctx context.Context, lat, lon float64) (result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return result{}, fmt.Errorf("rate limit wait: %w", err)
	}

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("zoom", strconv.Itoa(c.zoom))
	q.Set("accept-language", c.language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return result{}, fmt.Errorf("reverse geocode: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return result{}, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return result{}, fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}
	return decode(body)
}

func decode(body []byte) (result, error) {
	if !gjson.ValidBytes(body) {
		return result{}, errors.New("nominatim returned invalid JSON")
	}
	if e := gjson.GetBytes(body, "error"); e.Exists() {
		msg := e.String()
		if e.IsObject() {
			msg = e.Get("message").String()
		}
		if strings.EqualFold(msg, noMatchMessage) {
			return result{}, nil
		}
		return result{}, fmt.Errorf("nominatim: %s", msg)
	}
	name := strings.TrimSpace(gjson.GetBytes(body, "display_name").String())
	if name == "" {
		return result{}, nil
	}
	return result{place: name, found: true}, nil
}

// roundCoord rounds to four decimals (about 11 m at the equator).
func roundCoord(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lon)
}

func (c *Client) observe(res string) {
	if c.observer != nil {
		c.observer.ObserveGeocode(res)
	}
}

func (c *Client) observeCache(hit bool) {
	if c.observer != nil {
		c.observer.ObserveGeocodeCache(hit)
	}
}
