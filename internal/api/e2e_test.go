package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/signalsfoundry/iss-tracker/internal/feed"
	"github.com/signalsfoundry/iss-tracker/internal/geocode"
	"github.com/signalsfoundry/iss-tracker/internal/logging"
	"github.com/signalsfoundry/iss-tracker/internal/tracker"
	"github.com/signalsfoundry/iss-tracker/kb"
	"github.com/signalsfoundry/iss-tracker/model"
	"github.com/signalsfoundry/iss-tracker/timectrl"
)

type e2eEnv struct {
	api        *httptest.Server
	feedHits   *atomic.Int32
	geocodeHit *atomic.Int32
}

func newE2EEnv(t *testing.T) *e2eEnv {
	t.Helper()

	doc, err := os.ReadFile("testdata/iss_oem_sample.xml")
	if err != nil {
		t.Fatalf("read sample feed: %v", err)
	}

	env := &e2eEnv{feedHits: &atomic.Int32{}, geocodeHit: &atomic.Int32{}}
	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.feedHits.Add(1)
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write(doc)
	}))
	t.Cleanup(feedSrv.Close)

	geoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.geocodeHit.Add(1)
		_, _ = io.WriteString(w, `{"error":"Unable to geocode"}`)
	}))
	t.Cleanup(geoSrv.Close)

	fetcher := feed.NewFetcher(
		feed.WithURL(feedSrv.URL),
		feed.WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	)
	geocoder := geocode.New(
		geocode.WithBaseURL(geoSrv.URL),
		geocode.WithRate(0),
		geocode.WithCache(0, 0),
	)
	clock := timectrl.NewManualClock(time.Date(2023, 3, 4, 12, 7, 0, 0, time.UTC))

	engine := tracker.NewEngine(kb.NewStore(), tracker.WithGeocoder(geocoder), tracker.WithClock(clock))
	refresher := tracker.NewRefresher(fetcher, engine, logging.Noop())
	if _, err := refresher.Refresh(context.Background()); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}

	env.api = httptest.NewServer(NewServer(engine, refresher).Handler())
	t.Cleanup(env.api.Close)
	return env
}

func (e *e2eEnv) get(t *testing.T, method, path string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, e.api.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := e.api.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func TestEndToEndFeedToLocation(t *testing.T) {
	env := newE2EEnv(t)

	var epochs []string
	if code := env.get(t, http.MethodGet, "/epochs", &epochs); code != http.StatusOK || len(epochs) != 3 {
		t.Fatalf("GET /epochs = %d %v", code, epochs)
	}

	var meta map[string]string
	if code := env.get(t, http.MethodGet, "/metadata", &meta); code != http.StatusOK || meta["CENTER_NAME"] != "EARTH" {
		t.Fatalf("GET /metadata = %d %v", code, meta)
	}

	var now model.Location
	if code := env.get(t, http.MethodGet, "/now", &now); code != http.StatusOK {
		t.Fatalf("GET /now status = %d", code)
	}
	if now.Position.Epoch != "2023-063T12:08:00.000Z" || now.Place != "ocean" {
		t.Fatalf("GET /now = %+v", now)
	}
	if now.Position.AltitudeKm < 200 || now.Position.AltitudeKm > 800 {
		t.Fatalf("altitude = %v km, want a low Earth orbit", now.Position.AltitudeKm)
	}
	if env.geocodeHit.Load() != 1 {
		t.Fatalf("geocoder hits = %d, want 1", env.geocodeHit.Load())
	}

	if code := env.get(t, http.MethodDelete, "/delete-data", nil); code != http.StatusOK {
		t.Fatalf("DELETE /delete-data status = %d", code)
	}
	if code := env.get(t, http.MethodGet, "/now", nil); code != http.StatusNotFound {
		t.Fatalf("GET /now after delete status = %d, want 404", code)
	}
	if code := env.get(t, http.MethodPost, "/post-data", nil); code != http.StatusOK {
		t.Fatalf("POST /post-data status = %d", code)
	}
	if got := env.feedHits.Load(); got != 2 {
		t.Fatalf("feed hits = %d, want 2", got)
	}

	var sp model.Speed
	if code := env.get(t, http.MethodGet, "/epochs/0/speed", &sp); code != http.StatusOK || sp.Value < 6 || sp.Value > 9 {
		t.Fatalf("GET /epochs/0/speed = %d %+v", code, sp)
	}
}
