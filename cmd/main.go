package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	c "github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/order"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/fjod/go_cart/storefront/internal/repository"
	s "github.com/fjod/go_cart/storefront/internal/service"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	ctx := context.Background()

	// Catalog
	products, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		log.Fatal("failed to open catalog", zap.Error(err))
	}
	defer products.Close()
	if err := products.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatal("failed to run catalog migrations", zap.Error(err))
	}
	log.Info("catalog ready", zap.String("path", cfg.CatalogDBPath))

	// Cart persistence. Without MongoDB the carts live in memory only.
	var (
		loader    session.Loader
		persister cart.Persister
		mongoDB   *mongo.Database
	)
	mongoDB, err = repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Warn("MongoDB unavailable, carts will not survive a restart", zap.Error(err))
	} else {
		repo := repository.NewMongoRepository(mongoDB)
		if err := repo.CreateIndexes(ctx); err != nil {
			log.Warn("failed to create cart indexes", zap.Error(err))
		}

		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("Redis ping failed, reads will fall through to MongoDB", zap.Error(err))
		}

		persistence := s.NewCartPersistence(repo, c.NewRedisCache(redisClient), log)
		loader = persistence
		persister = persistence
		log.Info("cart persistence ready", zap.String("mongo_db", cfg.MongoDBName), zap.String("redis", cfg.RedisAddr))
	}

	// Order pipeline
	submitter := order.NewKafkaSubmitter(cfg.OrdersTopic, cfg.SubmitDelay, log, cfg.KafkaBrokers...)
	defer submitter.Close()

	calc := pricing.NewCalculator(cfg.Pricing)
	checkoutService := checkout.NewService(calc, submitter, log)
	sessions := session.NewManager(loader, persister, checkoutService, cfg.SessionIdleTTL, log)

	router := h.NewRouter(h.RouterConfig{
		Sessions:           sessions,
		Catalog:            products,
		Checkout:           checkoutService,
		Logger:             log,
		JWTSecret:          cfg.JWTSecret,
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("storefront starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	// flushes every pending cart write before the stores go away
	sessions.Close()

	if mongoDB != nil {
		_ = mongoDB.Client().Disconnect(shutdownCtx)
	}

	log.Info("server exited")
}
