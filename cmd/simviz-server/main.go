package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/simviz/internal/config"
	"github.com/zsiec/simviz/internal/health"
	"github.com/zsiec/simviz/internal/logger"
	"github.com/zsiec/simviz/internal/metrics"
	"github.com/zsiec/simviz/internal/registry"
	"github.com/zsiec/simviz/internal/server"
	"github.com/zsiec/simviz/pkg/version"
)

func main() {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	// Show version and exit if requested
	if showVersion {
		fmt.Println(version.GetInfo().String())
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	base := logger.FromLogrus(log)

	log.WithField("version", version.GetInfo().Short()).Info("Starting simviz frame server")
	log.WithField("config_path", configPath).Debug("Configuration loaded")

	if err := os.MkdirAll(cfg.Server.RecordingsDir, 0755); err != nil {
		log.WithError(err).Fatal("Failed to create recordings directory")
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
	}()

	var (
		reg         registry.Registry
		redisClient *redis.Client
	)
	if cfg.Redis.Enabled {
		redisClient = connectRedis(ctx, cfg.Redis, log)
		reg = registry.NewRedisRegistry(redisClient, base, cfg.Registry.TTL)
	} else {
		log.Info("Redis disabled, using in-memory recording registry")
		reg = registry.NewMemoryRegistry()
	}

	// Start metrics server if enabled
	if cfg.Metrics.Enabled {
		go func() {
			_ = metrics.Serve(ctx, cfg.Metrics.Port, cfg.Metrics.Path, base)
		}()
	}

	// Create server
	srv := server.New(&cfg.Server, log, reg)
	if redisClient != nil {
		srv.RegisterHealthChecker(health.NewRedisChecker(redisClient))
	}

	// Start server
	if err := srv.Start(ctx); err != nil {
		log.WithError(err).Fatal("Server error")
	}

	// Cleanup
	if err := reg.Close(); err != nil {
		log.WithError(err).Error("Failed to close recording registry")
	}

	log.Info("Server shutdown complete")
}

// connectRedis dials Redis and verifies it accepts writes.
func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logrus.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addresses[0],
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}
	log.Info("Connected to Redis successfully")

	// Verify Redis is writable
	testKey := "simviz:startup:test"
	if err := client.Set(ctx, testKey, "1", 0).Err(); err != nil {
		log.WithError(err).Fatal("Redis is not writable")
	}
	client.Del(ctx, testKey)

	return client
}
