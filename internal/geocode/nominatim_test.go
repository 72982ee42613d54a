package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

type countingObserver struct {
	mu      sync.Mutex
	results map[string]int
	hits    int
	misses  int
}

func (o *countingObserver) ObserveGeocode(result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.results == nil {
		o.results = map[string]int{}
	}
	o.results[result]++
}

func (o *countingObserver) ObserveGeocodeCache(hit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

func newServer(t *testing.T, calls *atomic.Int32, body string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/reverse" {
			t.Errorf("path = %q, want /reverse", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestReverseFound(t *testing.T) {
	defer goleak.VerifyNone(t)

	var query atomic.Value
	var ua atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query.Store(r.URL.Query())
		ua.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"place_id":1,"display_name":"Houston, Harris County, Texas, United States"}`))
	}))
	defer srv.Close()

	obs := &countingObserver{}
	c := New(WithBaseURL(srv.URL+"/"), WithUserAgent("tracker-test"), WithCache(0, 0), WithRate(0), WithObserver(obs))
	place, found, err := c.Reverse(context.Background(), 29.76, -95.37)
	if err != nil {
		t.Fatalf("Reverse error: %v", err)
	}
	if !found || place != "Houston, Harris County, Texas, United States" {
		t.Fatalf("Reverse = (%q, %v), want Houston match", place, found)
	}

	q, _ := query.Load().(url.Values)
	want := map[string]string{
		"format":          "jsonv2",
		"lat":             "29.76",
		"lon":             "-95.37",
		"zoom":            "18",
		"accept-language": "en",
	}
	for k, v := range want {
		if got := q[k]; len(got) != 1 || got[0] != v {
			t.Fatalf("query[%s] = %v, want %s", k, got, v)
		}
	}
	if got, _ := ua.Load().(string); got != "tracker-test" {
		t.Fatalf("User-Agent = %q, want tracker-test", got)
	}
	if obs.results["found"] != 1 {
		t.Fatalf("observer results = %v, want one found", obs.results)
	}
}

func TestReverseSendsRoundedCoordinates(t *testing.T) {
	defer goleak.VerifyNone(t)

	var query atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query.Store(r.URL.Query())
		_, _ = w.Write([]byte(`{"display_name":"Houston"}`))
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL+"/"), WithCache(0, 0), WithRate(0))
	if _, _, err := c.Reverse(context.Background(), 29.760049, -95.370049); err != nil {
		t.Fatalf("Reverse error: %v", err)
	}
	q, _ := query.Load().(url.Values)
	if got := q.Get("lat"); got != "29.76" {
		t.Fatalf("lat = %q, want 29.76", got)
	}
	if got := q.Get("lon"); got != "-95.37" {
		t.Fatalf("lon = %q, want -95.37", got)
	}
}

func TestReverseNoMatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	srv := newServer(t, &calls, `{"error":"Unable to geocode"}`, http.StatusOK)
	defer srv.Close()

	obs := &countingObserver{}
	c := New(WithBaseURL(srv.URL), WithCache(0, 0), WithRate(0), WithObserver(obs))
	place, found, err := c.Reverse(context.Background(), 0, -140)
	if err != nil {
		t.Fatalf("Reverse error: %v", err)
	}
	if found || place != "" {
		t.Fatalf("Reverse = (%q, %v), want no match", place, found)
	}
	if obs.results["ocean"] != 1 {
		t.Fatalf("observer results = %v, want one ocean", obs.results)
	}
}

func TestReverseProviderErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"server error", `{}`, http.StatusInternalServerError},
		{"rate limited", `{"error":"too many requests"}`, http.StatusTooManyRequests},
		{"invalid json", `<html>`, http.StatusOK},
		{"error message", `{"error":{"code":400,"message":"Parameter 'lat' must be a number."}}`, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := newServer(t, &calls, tc.body, tc.status)
			defer srv.Close()

			obs := &countingObserver{}
			c := New(WithBaseURL(srv.URL), WithCache(0, 0), WithRate(0), WithObserver(obs))
			if _, _, err := c.Reverse(context.Background(), 1, 2); err == nil {
				t.Fatalf("expected error")
			}
			if obs.results["error"] != 1 {
				t.Fatalf("observer results = %v, want one error", obs.results)
			}
		})
	}
}

func TestReverseCachesResults(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, &calls, `{"display_name":"Somewhere"}`, http.StatusOK)
	defer srv.Close()

	obs := &countingObserver{}
	c := New(WithBaseURL(srv.URL), WithCache(16, time.Minute), WithRate(0), WithObserver(obs))
	for i := 0; i < 3; i++ {
		place, found, err := c.Reverse(context.Background(), 10.00001, 20.00001)
		if err != nil || !found || place != "Somewhere" {
			t.Fatalf("Reverse #%d = (%q, %v, %v)", i, place, found, err)
		}
	}
	// Rounds to the same key.
	if _, _, err := c.Reverse(context.Background(), 10.00002, 20.00002); err != nil {
		t.Fatalf("Reverse error: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("provider calls = %d, want 1", got)
	}
	if obs.hits != 3 || obs.misses != 1 {
		t.Fatalf("cache hits/misses = %d/%d, want 3/1", obs.hits, obs.misses)
	}
}

func TestReverseDoesNotCacheErrors(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, &calls, `{}`, http.StatusBadGateway)
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithCache(16, time.Minute), WithRate(0))
	for i := 0; i < 2; i++ {
		if _, _, err := c.Reverse(context.Background(), 1, 1); err == nil {
			t.Fatalf("expected error")
		}
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("provider calls = %d, want 2", got)
	}
}

func TestReverseRespectsRateLimit(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	srv := newServer(t, &calls, `{"display_name":"Somewhere"}`, http.StatusOK)
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithCache(0, 0), WithRate(20))
	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, _, err := c.Reverse(context.Background(), float64(i), 0); err != nil {
			t.Fatalf("Reverse error: %v", err)
		}
	}
	// Burst of one: the second and third calls wait 50ms each.
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Fatalf("elapsed = %v, want >= 90ms", elapsed)
	}
}

func TestWithZoomClamps(t *testing.T) {
	if c := New(WithZoom(25), WithCache(0, 0)); c.zoom != 18 {
		t.Fatalf("zoom = %d, want 18", c.zoom)
	}
	if c := New(WithZoom(-3), WithCache(0, 0)); c.zoom != 0 {
		t.Fatalf("zoom = %d, want 0", c.zoom)
	}
}

func TestDecode(t *testing.T) {
	cases := []struct {
		body  string
		place string
		found bool
		err   bool
	}{
		{`{"display_name":" Pacific "}`, "Pacific", true, false},
		{`{"display_name":""}`, "", false, false},
		{`{"error":"unable to geocode"}`, "", false, false},
		{`{"error":"boom"}`, "", false, true},
		{`not json`, "", false, true},
	}
	for _, tc := range cases {
		r, err := decode([]byte(tc.body))
		if (err != nil) != tc.err {
			t.Fatalf("decode(%s) err = %v, want err %v", tc.body, err, tc.err)
		}
		if r.place != tc.place || r.found != tc.found {
			t.Fatalf("decode(%s) = %+v, want (%q, %v)", tc.body, r, tc.place, tc.found)
		}
	}
}
