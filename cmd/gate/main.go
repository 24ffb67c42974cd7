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
	"github.com/vogiaan1904/rediclaim/internal/dispatcher"
	repo "github.com/vogiaan1904/rediclaim/internal/repository/redis"
	"github.com/vogiaan1904/rediclaim/internal/service"
	pkgKafka "github.com/vogiaan1904/rediclaim/pkg/kafka"
	pkgLog "github.com/vogiaan1904/rediclaim/pkg/logger"
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

	gateRepo := repo.NewRedisGateRepository(redisCli, l)

	// Dispatch transport: kafka keeps admission order per event, http is the
	// synchronous fallback for deployments without a broker.
	var disp dispatcher.Dispatcher
	switch cfg.Gate.DispatchMode {
	case config.DispatchModeKafka:
		kafkaSyncProd, err := pkgKafka.NewProducer(pkgKafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			RetryMax:     cfg.Kafka.ProducerRetryMax,
			RequiredAcks: cfg.Kafka.ProducerRequiredAcks,
		})
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka producer: %v", err)
		}
		defer kafkaSyncProd.Close()

		disp = dispatcher.NewKafkaDispatcher(kafkaSyncProd, l)
	case config.DispatchModeHTTP:
		disp = dispatcher.NewHTTPDispatcher(cfg.Gate.IssuerBaseURL, l)
	}

	gateSvc := service.NewGateService(gateRepo, disp, cfg.Gate, l)

	scheduler := service.NewDispatchScheduler(gateSvc, cfg.Gate, l)
	if err := scheduler.Start(ctx); err != nil {
		l.Fatalf(ctx, "Failed to start dispatch scheduler: %v", err)
	}
	defer scheduler.Stop()

	gateHandler := delivery.NewGateHandler(gateSvc, l)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.GateHTTPPort),
		Handler:      delivery.NewGateRouter(gateHandler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.Infof(ctx, "Gate HTTP server is listening on port: %d", cfg.Server.GateHTTPPort)
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
			l.Info(ctx, "Gate server shutting down...")
		case <-gctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		l.Errorf(ctx, "Gate server error: %v", err)
	}

	l.Info(ctx, "Gate server exited")
}
