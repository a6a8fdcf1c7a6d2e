package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"yard-anpr-service/internal/cache"
	"yard-anpr-service/internal/config"
	"yard-anpr-service/internal/db"
	"yard-anpr-service/internal/events"
	"yard-anpr-service/internal/feed"
	httphandler "yard-anpr-service/internal/http"
	"yard-anpr-service/internal/logger"
	"yard-anpr-service/internal/poller"
	"yard-anpr-service/internal/repository"
	"yard-anpr-service/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", true)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("service stopped with error")
	}
	log.Info().Msg("shutdown complete")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close database")
		}
	}()

	invalidator, closeCache := newInvalidator(ctx, cfg.Redis, log)
	defer closeCache()

	hub := events.NewHub(log)
	repo := repository.NewYardRepository(database.DB, log)

	journeys := service.NewJourneyService(
		repo,
		invalidator,
		hub,
		cfg.ANPR.TenantID,
		service.Sites{Home: cfg.ANPR.HomeSiteID, Destination: cfg.ANPR.DestinationSiteID},
		log,
	)

	var source feed.Source
	switch cfg.ANPR.Mode {
	case config.ModeLive:
		source = feed.NewHTTPSource(cfg.ANPR.FeedURL, cfg.ANPR.FetchTimeout, log)
	default:
		source = feed.NewMockSource(cfg.ANPR.BatchSize)
		log.Warn().Msg("ANPR running in mock mode, only injected detections are processed")
	}

	poll := poller.New(source, journeys, repo, poller.Config{
		TenantID:    cfg.ANPR.TenantID,
		Interval:    cfg.ANPR.PollInterval,
		BatchSize:   cfg.ANPR.BatchSize,
		Capacity:    cfg.ANPR.ProcessedCapacity,
		MaxAttempts: cfg.ANPR.MaxAttempts,
		StaleAfter:  cfg.ANPR.StaleAfter,
	}, log)

	if !cfg.Log.Pretty {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httphandler.NewRouter(cfg.HTTP.AllowedOrigins, log)
	handler := httphandler.NewHandler(poll, journeys, hub, log)
	handler.Register(router, httphandler.AuthMiddleware(cfg.Auth.JWTSecret))

	server := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		poll.Start(gctx)
		<-gctx.Done()
		poll.Stop()
		return nil
	})

	g.Go(func() error {
		log.Info().
			Str("port", cfg.HTTP.Port).
			Str("mode", cfg.ANPR.Mode).
			Str("tenant_id", cfg.ANPR.TenantID.String()).
			Msg("yard ANPR service starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newInvalidator(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (cache.Invalidator, func()) {
	if !cfg.Enabled() {
		log.Info().Msg("redis not configured, cache invalidation disabled")
		return cache.Noop{}, func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		// Invalidation is best effort; keep the client so it recovers once redis is back.
		log.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unreachable at startup")
	}

	closeFn := func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	return cache.NewRedisInvalidator(rdb), closeFn
}
