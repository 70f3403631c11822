package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"supmap-navigation/internal/api"
	"supmap-navigation/internal/cache"
	"supmap-navigation/internal/config"
	"supmap-navigation/internal/events"
	"supmap-navigation/internal/gis/routing"
	"supmap-navigation/internal/ws"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Missing .env is fine, the environment wins anyway.
	_ = godotenv.Load()

	conf, err := config.New()
	if err != nil {
		return err
	}

	var loggerOpts slog.HandlerOptions
	if conf.Env == config.EnvDev {
		loggerOpts = slog.HandlerOptions{Level: slog.LevelDebug}
	}

	jsonHandler := slog.NewJSONHandler(os.Stdout, &loggerOpts)
	logger := slog.New(jsonHandler)

	var redisClient *redis.Client
	if conf.RedisEnabled() {
		redisClient = redis.NewClient(&redis.Options{Addr: net.JoinHostPort(conf.RedisHost, conf.RedisPort)})
		defer redisClient.Close()
	}

	routeCache, closeCache := openRouteCache(ctx, conf, redisClient, logger)
	defer closeCache()

	var publisher events.Publisher = events.Nop{}
	if redisClient != nil {
		publisher = events.NewRedisPublisher(logger, redisClient, conf.RedisEventsChannel)
	}

	client := routing.NewClient(conf.DirectionsBaseURL, routing.ClientOptions{
		Timeout:     conf.DirectionsTimeout,
		AccessToken: conf.DirectionsAccessToken,
	})
	provider := routing.NewProvider(client, routeCache, logger)

	wsManager := ws.NewManager(ctx, logger, provider, conf.Engine(), publisher)
	go wsManager.Start()
	defer wsManager.Shutdown()

	server := api.NewServer(conf, wsManager, routeCache, logger)
	if err := server.Start(ctx); err != nil {
		return err
	}

	return nil
}

// openRouteCache opens the configured route cache. A local store that cannot
// be opened is logged and yields a nil cache, leaving routing network-only.
func openRouteCache(ctx context.Context, conf *config.Config, redisClient *redis.Client, logger *slog.Logger) (routing.RouteCache, func()) {
	if conf.CacheBackend == config.CacheRedis {
		logger.Info("route cache opened", "backend", "redis", "retention", conf.CacheRetention.String())
		return cache.NewRedisRouteCache(redisClient, cache.WithRetention(conf.CacheRetention)), func() {}
	}

	sqliteCache, err := cache.OpenSQLite(ctx, conf.CacheSQLitePath, logger, cache.WithRetention(conf.CacheRetention))
	if err != nil {
		logger.Warn("route cache disabled, routing network-only",
			"path", conf.CacheSQLitePath,
			"error", fmt.Errorf("%w: %w", routing.ErrCacheUnavailable, err),
		)
		return nil, func() {}
	}
	go sqliteCache.StartPeriodicPurge(ctx, conf.CachePurgeInterval)
	return sqliteCache, func() {
		if err := sqliteCache.Close(); err != nil {
			logger.Warn("failed to close route cache", "error", err)
		}
	}
}
