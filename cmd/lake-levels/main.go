package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/i474232898/lake-levels/internal/api/http"
	"github.com/i474232898/lake-levels/internal/catalog"
	"github.com/i474232898/lake-levels/internal/config"
	"github.com/i474232898/lake-levels/internal/levels"
	"github.com/i474232898/lake-levels/internal/levels/usgs"
	"github.com/i474232898/lake-levels/internal/metrics"
	"github.com/i474232898/lake-levels/internal/scheduler"
	"github.com/i474232898/lake-levels/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lgr := newLogger(cfg.LogFormat)
	slog.SetDefault(lgr)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	// Snapshot cache backing the offline fallback.
	cache, err := store.NewDiskStore(cfg.CacheDir,
		store.WithMaxAge(cfg.CacheMaxAge),
		store.WithLogger(lgr),
		store.WithMetrics(m),
	)
	if err != nil {
		log.Fatalf("failed to open cache: %v", err)
	}

	// Shared HTTP client for outbound upstream calls.
	transport := usgs.NewHTTPTransport(usgs.TransportConfig{
		Client:       &http.Client{Timeout: cfg.ResourceTimeout},
		MaxBodyBytes: cfg.MaxResponseBytes,
	})

	parser := usgs.NewParser()
	parser.MinValue = cfg.LevelMin
	parser.MaxValue = cfg.LevelMax

	fetcher := usgs.NewFetcher(transport,
		usgs.WithEndpoints(usgs.Endpoints{Instantaneous: cfg.InstantaneousURL, Daily: cfg.DailyURL}),
		usgs.WithParser(parser),
		usgs.WithRequestTimeout(cfg.RequestTimeout),
		usgs.WithLogger(lgr),
		usgs.WithMetrics(m),
	)

	newService := func(p levels.Period) *levels.Service {
		return levels.NewService(fetcher, cache,
			levels.WithPeriod(p),
			levels.WithStaleAfter(cfg.StaleAfter),
			levels.WithLogger(lgr),
		)
	}

	lakes := catalog.Default()
	if cfg.GeocoderAPIKey != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		n := lakes.Locate(ctx, catalog.NewGoogleGeocoder(cfg.GeocoderAPIKey), lgr)
		cancel()
		lgr.Info("geocoded catalog entries", "count", n)
	}

	// Scheduler that periodically keeps the cache warm.
	var warm []levels.Lake
	for _, id := range cfg.WarmLakes {
		lake, ok := lakes.Lookup(id)
		if !ok {
			lgr.Warn("ignoring unknown warm-up lake", "lake", id)
			continue
		}
		warm = append(warm, lake)
	}
	sched := scheduler.New(warm, cfg.WarmPeriods, cfg.FetchInterval, newService, lgr)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "lake-levels",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// Upstream fallthrough can take several request timeouts.
		WriteTimeout: 2 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "lake-levels",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	httpapi.RegisterRoutes(app, lakes, cache, newService)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("fiber server stopped", "error", err)
		}
	}()
	slog.Info("listening", "port", cfg.Port, "cache_dir", cfg.CacheDir)

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("error during shutdown", "error", err)
	}
}

func newLogger(format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
