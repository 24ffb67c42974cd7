package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vogiaan1904/rediclaim/config"
	delivery "github.com/vogiaan1904/rediclaim/internal/delivery/http"
	"github.com/vogiaan1904/rediclaim/internal/delivery/kafka/consumer"
	"github.com/vogiaan1904/rediclaim/internal/delivery/kafka/producer"
	pgrepo "github.com/vogiaan1904/rediclaim/internal/repository/postgres"
	repo "github.com/vogiaan1904/rediclaim/internal/repository/redis"
	"github.com/vogiaan1904/rediclaim/internal/service"
	pkgKafka "github.com/vogiaan1904/rediclaim/pkg/kafka"
	pkgLog "github.com/vogiaan1904/rediclaim/pkg/logger"
	"github.com/vogiaan1904/rediclaim/pkg/postgres"
	"github.com/vogiaan1904/rediclaim/pkg/redis"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	redisCli, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		l.Fatalf(ctx, "Failed to connect to Redis: %v", err)
	}
	defer redis.Disconnect(redisCli)

	pgPool, err := postgres.Connect(ctx, cfg.Postgres)
	if err != nil {
		l.Fatalf(ctx, "Failed to connect to Postgres: %v", err)
	}
	defer postgres.Disconnect(pgPool)

	stockRepo := repo.NewRedisStockRepository(redisCli, l)
	gateRepo := repo.NewRedisGateRepository(redisCli, l)
	couponRepo := pgrepo.NewPostgresCouponRepository(pgPool)
	issuedRepo := pgrepo.NewPostgresIssuedCouponRepository(pgPool)

	kafkaSyncProd, err := pkgKafka.NewProducer(pkgKafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		RetryMax:     cfg.Kafka.ProducerRetryMax,
		RequiredAcks: cfg.Kafka.ProducerRequiredAcks,
	})
	if err != nil {
		l.Fatalf(ctx, "Failed to initialize Kafka producer: %v", err)
	}

	kafkaConsGr, err := pkgKafka.NewConsumer(pkgKafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.ConsumerGroupID,
	})
	if err != nil {
		l.Fatalf(ctx, "Failed to initialize Kafka consumer: %v", err)
	}

	prod := producer.NewProducer(kafkaSyncProd, l)
	defer prod.Close()

	issuerSvc := service.NewIssuerService(stockRepo, gateRepo, couponRepo, issuedRepo, prod, l)

	issueReq := consumer.NewIssueRequestHandler(issuerSvc, l)
	recorder := consumer.NewIssuanceRecorder(
		issuedRepo,
		stockRepo,
		prod,
		cfg.Issuer.ConsumerRetryMax,
		cfg.Issuer.ConsumerRetryBackoff,
		l,
	)

	cons := consumer.NewConsumer(kafkaConsGr, issueReq, recorder, prod, l)
	if err := cons.Start(ctx); err != nil {
		l.Fatalf(ctx, "Failed to start Kafka consumer: %v", err)
	}
	defer cons.Close()

	reconciler := service.NewStockReconciler(couponRepo, stockRepo, cfg.Issuer.ReconcileInterval, l)
	if err := reconciler.Start(ctx); err != nil {
		l.Fatalf(ctx, "Failed to start stock reconciler: %v", err)
	}
	defer reconciler.Stop()

	issuerHandler := delivery.NewIssuerHandler(issuerSvc, l)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.IssuerHTTPPort),
		Handler:      delivery.NewIssuerRouter(issuerHandler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.Infof(ctx, "Issuer HTTP server is listening on port: %d", cfg.Server.IssuerHTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-quit:
			l.Info(ctx, "Issuer server shutting down...")
		case <-gctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		err := srv.Shutdown(shutdownCtx)

		// Consume loops exit on context cancellation; cancel before the
		// deferred Close calls so they don't wait forever.
		cancel()
		return err
	})

	if err := g.Wait(); err != nil {
		l.Errorf(ctx, "Issuer server error: %v", err)
	}

	l.Info(ctx, "Issuer server exited")
}
