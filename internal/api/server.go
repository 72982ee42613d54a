// Package api exposes the tracker engine over HTTP.
package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/signalsfoundry/iss-tracker/core"
	"github.com/signalsfoundry/iss-tracker/internal/logging"
	"github.com/signalsfoundry/iss-tracker/internal/observability"
	"github.com/signalsfoundry/iss-tracker/internal/tracker"
)

// Server routes HTTP requests to a tracker.Engine.
type Server struct {
	engine    *tracker.Engine
	refresher *tracker.Refresher
	log       logging.Logger
	metrics   *observability.TrackerCollector
}

// Option customises Server construction.
type Option func(*Server)

// WithLogger sets the base logger; request loggers derive from it.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records per-route request metrics on c.
func WithMetrics(c *observability.TrackerCollector) Option {
	return func(s *Server) {
		s.metrics = c
	}
}

// NewServer builds a Server. refresher may be nil, in which case
// POST /post-data reports the feed as unavailable.
func NewServer(engine *tracker.Engine, refresher *tracker.Refresher, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		refresher: refresher,
		log:       logging.Noop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler returns the complete HTTP handler, instrumented with OpenTelemetry.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.HandleMethodNotAllowed = true
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, s.log, fmt.Errorf("%w: %s", ErrRouteNotFound, r.URL.Path))
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, s.log, fmt.Errorf("%w: %s %s", ErrMethodNotAllowed, r.Method, r.URL.Path))
	})
	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		writeError(w, r, s.log, fmt.Errorf("panic: %v", v))
	}

	s.route(router, http.MethodGet, "/", s.listAll)
	s.route(router, http.MethodGet, "/epochs", s.listEpochs)
	s.route(router, http.MethodGet, "/epochs/:epoch", s.epochAt)
	s.route(router, http.MethodGet, "/epochs/:epoch/speed", s.speed)
	s.route(router, http.MethodGet, "/epochs/:epoch/location", s.location)
	s.route(router, http.MethodGet, "/now", s.now)
	s.route(router, http.MethodGet, "/comment", s.comments)
	s.route(router, http.MethodGet, "/header", s.header)
	s.route(router, http.MethodGet, "/metadata", s.metadata)
	s.route(router, http.MethodDelete, "/delete-data", s.deleteData)
	s.route(router, http.MethodPost, "/post-data", s.postData)
	s.route(router, http.MethodGet, "/help", s.help)
	s.route(router, http.MethodGet, "/healthz", s.healthz)

	return otelhttp.NewHandler(withRequestID(s.log, router), "iss-tracker")
}

func (s *Server) route(router *httprouter.Router, method, path string, h http.HandlerFunc) {
	router.Handler(method, path, s.metrics.Middleware(path, withRouteSpan(path, h)))
}

// indexParam reads the :epoch path parameter as a sample index.
func indexParam(r *http.Request) (int, error) {
	raw := httprouter.ParamsFromContext(r.Context()).ByName("epoch")
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: epoch index must be an integer, got %q", core.ErrInvalidArgument, raw)
	}
	return n, nil
}

// frameParam reads ?frame=, defaulting to the engine's configured frame.
func (s *Server) frameParam(r *http.Request) (core.Frame, error) {
	raw := r.URL.Query().Get("frame")
	if raw == "" {
		return s.engine.Frame(), nil
	}
	return core.ParseFrame(raw)
}
