package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"podagg/config"
	"podagg/handlers"
	"podagg/middleware"
	"podagg/services"
	"podagg/utils"
)

func main() {
	// 1. Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Println("=== Configuration ===")
	log.Printf("Server: %s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Upstream: %s (timeout %s, %d retries)", cfg.UpstreamAddress(), cfg.FetchTimeoutDuration(), cfg.Upstream.MaxRetries)
	log.Printf("Cache: enabled=%v ttl=%ds geo_ttl=%ds", cfg.Cache.Enabled, cfg.Cache.TTL, cfg.Cache.GeoTTL)
	log.Printf("Redis: %s (enabled=%v)", cfg.Redis.Address, cfg.Redis.Enabled)
	log.Printf("MongoDB: %s (enabled=%v)", cfg.MongoDB.Database, cfg.MongoDB.Enabled)

	// 2. Core Services
	metrics, err := services.NewMetrics(nil)
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	var geoTier services.CacheStore
	mongoService, err := services.NewMongoDBService(cfg)
	if err != nil {
		log.Printf("⚠️  MongoDB connection failed: %v", err)
		log.Println("Geolocations will only be cached in memory/Redis")
		mongoService = nil
	}
	if mongoService != nil && mongoService.Enabled() {
		defer mongoService.Close()
		geoTier = mongoService
	}

	cache := services.NewCacheService(cfg, metrics, geoTier)

	resolvers := make([]utils.BatchResolver, 0, 2)
	if cfg.Geo.DBPath != "" {
		geoDB, err := utils.NewGeoIPResolver(cfg.Geo.DBPath)
		if err != nil {
			log.Printf("⚠️  GeoIP DB not found at %s: %v", cfg.Geo.DBPath, err)
		} else {
			defer geoDB.Close()
			resolvers = append(resolvers, geoDB)
		}
	}
	if cfg.Geo.ResolverURL != "" {
		resolvers = append(resolvers, utils.NewHTTPGeoResolver(cfg.Geo.ResolverURL, cfg.GeoTimeoutDuration()))
	}

	var geo *services.GeoEnricher
	if len(resolvers) > 0 {
		geo = services.NewGeoEnricher(utils.NewChainResolver(resolvers...), cache.Geo, cfg.GeoTimeoutDuration(), metrics)
	} else {
		log.Println("⚠️  No geolocation source configured, nodes will have no location")
	}

	prpc := services.NewPRPCClient(cfg)
	fetcher := services.NewFetcher(prpc, cfg, metrics)

	var notifier services.Notifier
	discordBot, err := services.NewDiscordBotService(cfg)
	if err != nil {
		log.Printf("⚠️  Discord bot initialization failed: %v", err)
		log.Println("Discord notifications will be disabled")
		discordBot = nil
	} else if discordBot.Enabled() {
		defer discordBot.Close()
		notifier = discordBot
		log.Println("✓ Discord Bot connected")
	}

	aggregator := services.NewDataAggregator(cfg, fetcher, geo, cache, notifier, metrics)

	discordBot.SetStatusProvider(func() string {
		return fmt.Sprintf("**Status**\nUpstream: `%s`\nCache mode: `%s`", prpc.Address(), cache.GetCacheMode())
	})

	// 3. Start Background Services
	log.Println("=== Starting Services ===")
	cache.Start()
	log.Println("✓ Cache Service started")
	log.Printf("   Mode: %s", cache.GetCacheMode())

	// 4. Web Server
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handlers.ErrorHandler(cfg.Server.DebugErrors)

	e.Use(middleware.LoggerMiddleware())
	e.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))
	e.Use(middleware.RecoverMiddleware())

	// 5. Handlers and routes
	h := handlers.NewHandler(cfg, aggregator, cache, prpc)
	cacheHandlers := handlers.NewCacheHandlers(cache)
	handlers.RegisterRoutes(e, h, cacheHandlers, metrics.Handler())

	// 6. Start HTTP Server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	go func() {
		log.Printf("🚀 Server running on http://%s", serverAddr)
		if err := e.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("shutting down the server: %v", err)
		}
	}()

	// 7. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("⏳ Graceful shutdown initiated...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Server shutdown error: %v", err)
	}

	log.Println("Stopping services...")
	cache.Stop()
	log.Println("✓ All services stopped")
	log.Println("✓ Server exited cleanly")
}
