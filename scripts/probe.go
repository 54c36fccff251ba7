package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"podagg/config"
	"podagg/services"
)

// Dependency probe: pings the upstream pRPC node, Redis and MongoDB using the
// service configuration.
// Usage: go run ./scripts
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	failed := 0
	check := func(name string, fn func(ctx context.Context) (string, error)) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		start := time.Now()
		detail, err := fn(ctx)
		elapsed := time.Since(start).Round(time.Millisecond)
		if err != nil {
			failed++
			fmt.Printf("❌ %-9s FAILED: %v (took %v)\n", name, err, elapsed)
			return
		}
		fmt.Printf("✓ %-9s %s (took %v)\n", name, detail, elapsed)
	}

	fmt.Println("=== Dependency Probe ===")

	check("upstream", func(ctx context.Context) (string, error) {
		client := services.NewPRPCClient(cfg)
		v, err := client.GetVersion(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s reports version %s", client.Address(), v.Version), nil
	})

	check("redis", func(ctx context.Context) (string, error) {
		opts := &redis.Options{
			Addr:         cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		}
		if cfg.Redis.UseTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}

		client := redis.NewClient(opts)
		defer client.Close()

		pong, err := client.Ping(ctx).Result()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s answered %s (tls=%v)", cfg.Redis.Address, pong, cfg.Redis.UseTLS), nil
	})

	check("mongodb", func(ctx context.Context) (string, error) {
		probeCfg := *cfg
		probeCfg.MongoDB.Enabled = true

		m, err := services.NewMongoDBService(&probeCfg)
		if err != nil {
			return "", err
		}
		defer m.Close()
		return fmt.Sprintf("database %s reachable", cfg.MongoDB.Database), nil
	})

	if failed > 0 {
		fmt.Printf("\n%d dependency check(s) failed\n", failed)
		os.Exit(1)
	}
	fmt.Println("\nAll dependencies reachable")
}
