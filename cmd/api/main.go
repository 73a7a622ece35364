package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/fjod/go_cart/stripe-checkout/internal/catalog"
	"github.com/fjod/go_cart/stripe-checkout/internal/checkout"
	"github.com/fjod/go_cart/stripe-checkout/internal/config"
	"github.com/fjod/go_cart/stripe-checkout/internal/events"
	h "github.com/fjod/go_cart/stripe-checkout/internal/http"
	"github.com/fjod/go_cart/stripe-checkout/internal/metrics"
	"github.com/fjod/go_cart/stripe-checkout/internal/payment"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	products, closeCatalog, err := buildCatalog(cfg)
	if err != nil {
		log.Fatalf("Failed to set up catalog: %v", err)
	}
	defer closeCatalog()

	processor := payment.NewStripeProcessor(payment.ProcessorConfig{
		SecretKey: cfg.StripeSecretKey,
		Timeout:   cfg.StripeTimeout,
		Breaker: payment.BreakerSettings{
			MaxFailures: cfg.BreakerMaxFailures,
			OpenTimeout: cfg.BreakerOpenTimeout,
		},
	})

	publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Printf("failed to close event publisher: %v", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc := checkout.NewService(checkout.Config{
		Currency:          cfg.Currency,
		PaymentMethodType: cfg.PaymentMethodType,
		IntegrationTag:    cfg.IntegrationTag,
		PublishableKey:    cfg.StripePublishableKey,
	}, products, processor, publisher, metrics.NewCheckoutMetrics(reg))

	handler := h.NewRouter(h.RouterConfig{
		Development:        cfg.IsDevelopment(),
		AllowedOrigins:     cfg.AllowedOrigins,
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}, products, svc, metrics.NewServerMetrics(reg, "api"), reg)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Checkout API starting on :%s (%s)", cfg.HTTPPort, cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}

// buildCatalog picks the configured product source and puts the Redis cache
// in front of it when an address is set.
func buildCatalog(cfg *config.Config) (catalog.Provider, func(), error) {
	var (
		provider catalog.Provider
		closers  []func() error
	)

	switch cfg.CatalogSource {
	case config.CatalogSQLite:
		repo, err := catalog.NewSQLiteProvider(cfg.CatalogDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.RunMigrations(); err != nil {
			repo.Close()
			return nil, nil, err
		}
		log.Printf("Catalog: sqlite %s", cfg.CatalogDSN)
		provider = repo
		closers = append(closers, repo.Close)
	default:
		log.Println("Catalog: static")
		provider = catalog.NewStaticProvider()
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Printf("Redis unavailable at %s, serving catalog without cache: %v", cfg.RedisAddr, err)
			client.Close()
		} else {
			log.Printf("Catalog cache: redis %s", cfg.RedisAddr)
			provider = catalog.NewCachedProvider(provider, catalog.NewRedisCache(client, cfg.CatalogCacheTTL))
			closers = append(closers, client.Close)
		}
	}

	return provider, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Printf("failed to close catalog resource: %v", err)
			}
		}
	}, nil
}
