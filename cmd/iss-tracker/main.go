package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/iss-tracker/internal/api"
	"github.com/signalsfoundry/iss-tracker/internal/config"
	"github.com/signalsfoundry/iss-tracker/internal/feed"
	"github.com/signalsfoundry/iss-tracker/internal/geocode"
	"github.com/signalsfoundry/iss-tracker/internal/logging"
	"github.com/signalsfoundry/iss-tracker/internal/observability"
	"github.com/signalsfoundry/iss-tracker/internal/tracker"
	"github.com/signalsfoundry/iss-tracker/kb"
)

func main() {
	configPath := flag.String("config", "", "Path to a TOML configuration file")
	listenAddr := flag.String("listen-addr", "", "HTTP address for the API (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "Separate HTTP address for Prometheus /metrics (overrides config)")
	feedURL := flag.String("feed-url", "", "Ephemeris feed URL (overrides config)")
	nearest := flag.String("nearest", "", "Nearest-epoch strategy: absolute or legacy (overrides config)")
	frame := flag.String("frame", "", "Default geodetic frame: empirical or sidereal (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	noInitialLoad := flag.Bool("no-initial-load", false, "Start without fetching the feed")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.NewFromEnv().Error(context.Background(), "failed to load configuration", logging.Err(err))
		os.Exit(2)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen-addr":
			cfg.Server.ListenAddr = *listenAddr
		case "metrics-addr":
			cfg.Server.MetricsAddr = *metricsAddr
		case "feed-url":
			cfg.Feed.URL = *feedURL
		case "nearest":
			cfg.Query.Nearest = *nearest
		case "frame":
			cfg.Query.Frame = *frame
		case "log-level":
			cfg.Log.Level = *logLevel
		case "no-initial-load":
			cfg.Server.LoadOnStart = !*noInitialLoad
		}
	})

	log := logging.New(cfg.Log.Logging())
	ctx := context.Background()

	if err := cfg.Validate(); err != nil {
		log.Error(ctx, "invalid configuration", logging.Err(err))
		os.Exit(2)
	}

	lis, err := net.Listen("tcp", cfg.Server.ListenAddr)
	if err != nil {
		log.Error(ctx, "failed to listen", logging.String("addr", cfg.Server.ListenAddr), logging.Err(err))
		os.Exit(1)
	}

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(stopCtx, cfg, log, lis); err != nil {
		log.Error(ctx, "iss-tracker exited with error", logging.Err(err))
		os.Exit(1)
	}
}

// run wires every component and serves until ctx is cancelled.
func run(ctx context.Context, cfg config.Config, log logging.Logger, lis net.Listener) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	trackerMetrics, err := observability.NewTrackerCollector(reg)
	if err != nil {
		return fmt.Errorf("init tracker metrics: %w", err)
	}
	upstreamMetrics, err := observability.NewUpstreamCollector(reg)
	if err != nil {
		return fmt.Errorf("init upstream metrics: %w", err)
	}

	strategy, frame, err := cfg.QuerySettings()
	if err != nil {
		return err
	}

	store := kb.NewStore(kb.WithMetricsRecorder(trackerMetrics))
	unsubscribe := store.Subscribe(func(ev kb.Event) {
		log.Info(ctx, "dataset changed",
			logging.String("event", ev.Type.String()),
			logging.Int("state_vectors", ev.StateVectors),
			logging.Int("comments", ev.Comments),
		)
	})
	defer unsubscribe()

	fetcher := feed.NewFetcher(
		feed.WithURL(cfg.Feed.URL),
		feed.WithUserAgent(cfg.Feed.UserAgent),
		feed.WithTimeout(cfg.Feed.Timeout.Std()),
		feed.WithRetries(cfg.Feed.Retries),
		feed.WithObserver(upstreamMetrics),
	)
	geocoder := geocode.New(
		geocode.WithBaseURL(cfg.Geocoder.URL),
		geocode.WithUserAgent(cfg.Geocoder.UserAgent),
		geocode.WithLanguage(cfg.Geocoder.Language),
		geocode.WithZoom(cfg.Geocoder.Zoom),
		geocode.WithRate(cfg.Geocoder.Rate),
		geocode.WithCache(cfg.Geocoder.CacheSize, cfg.Geocoder.CacheTTL.Std()),
		geocode.WithTimeout(cfg.Geocoder.Timeout.Std()),
		geocode.WithObserver(upstreamMetrics),
	)

	engine := tracker.NewEngine(store,
		tracker.WithGeocoder(geocoder),
		tracker.WithNearestStrategy(strategy),
		tracker.WithFrame(frame),
	)
	refresher := tracker.NewRefresher(fetcher, engine, log)

	if cfg.Server.LoadOnStart {
		if _, err := refresher.Refresh(ctx); err != nil {
			log.Warn(ctx, "initial dataset load failed; serving without data until POST /post-data",
				logging.String("feed_url", fetcher.URL()),
				logging.Err(err),
			)
		}
	}

	apiServer := api.NewServer(engine, refresher, api.WithLogger(log), api.WithMetrics(trackerMetrics))
	mux := http.NewServeMux()
	mux.Handle("/", apiServer.Handler())
	if cfg.Server.MetricsAddr == "" {
		mux.Handle("/metrics", trackerMetrics.Handler())
	}
	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(ctx, "starting HTTP API",
			logging.String("addr", lis.Addr().String()),
			logging.String("nearest", strategy.String()),
			logging.String("frame", frame.String()),
		)
		if err := httpSrv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	var metricsSrv *http.Server
	if cfg.Server.MetricsAddr != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", trackerMetrics.Handler())
		metricsSrv = &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			log.Info(ctx, "serving Prometheus metrics", logging.String("addr", cfg.Server.MetricsAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down iss-tracker")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
		defer cancel()
		err := httpSrv.Shutdown(shutdownCtx)
		if metricsSrv != nil {
			err = errors.Join(err, metricsSrv.Shutdown(shutdownCtx))
		}
		return err
	})

	return g.Wait()
}
