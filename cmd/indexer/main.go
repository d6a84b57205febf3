package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oksasatya/fluxa/config"
	"github.com/oksasatya/fluxa/internal/application"
	pginfra "github.com/oksasatya/fluxa/internal/infrastructure/postgres"
	"github.com/oksasatya/fluxa/internal/infrastructure/search"
	"github.com/oksasatya/fluxa/pkg/helpers"
)

// indexer mirrors identity events from RabbitMQ into Elasticsearch.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-indexer", cfg.Env)
	if cfg.RabbitMQURL == "" || cfg.RabbitMQIdentityQueue == "" {
		log.Fatal("RabbitMQ not configured")
	}
	if len(cfg.ESAddrs()) == 0 {
		log.Fatal("Elasticsearch not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	es, err := helpers.NewESClient(cfg.ESAddrs(), cfg.ElasticsearchUser, cfg.ElasticsearchPass)
	if err != nil {
		log.Fatalf("elasticsearch client: %v", err)
	}
	index := search.NewIdentityIndex(es, cfg.ESIdentitiesIndex)
	if err := index.EnsureIndex(ctx); err != nil {
		log.Fatalf("ensure index: %v", err)
	}

	consumer, err := helpers.NewRabbitConsumer(cfg.RabbitMQURL, cfg.RabbitMQIdentityQueue, 16, logger)
	if err != nil {
		log.Fatalf("amqp consumer: %v", err)
	}
	defer consumer.Close()

	metrics := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics listener stopped")
		}
	}()

	indexer := application.NewIdentityIndexer(pginfra.NewIdentityRepository(pool), index, logger)
	logger.Infof("indexer listening on queue=%s metrics=%s", cfg.RabbitMQIdentityQueue, cfg.MetricsAddr)
	if err := consumer.Run(ctx, indexer.Handle); err != nil {
		logger.WithError(err).Error("consume failed")
	}

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = metrics.Shutdown(shutdownCtx)
}
