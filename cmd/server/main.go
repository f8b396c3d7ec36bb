package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/iliyamo/peer-support/internal/config"
	"github.com/iliyamo/peer-support/internal/contentstore"
	"github.com/iliyamo/peer-support/internal/database"
	"github.com/iliyamo/peer-support/internal/handler"
	"github.com/iliyamo/peer-support/internal/logging"
	"github.com/iliyamo/peer-support/internal/metrics"
	"github.com/iliyamo/peer-support/internal/publisher"
	"github.com/iliyamo/peer-support/internal/queue"
	"github.com/iliyamo/peer-support/internal/router"
	"github.com/iliyamo/peer-support/internal/service"
)

func main() {
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("open %s store: %v", cfg.StoreDriver, err)
	}
	defer store.Close()

	content, err := openContentStore(ctx, cfg)
	if err != nil {
		log.Fatalf("content store: %v", err)
	}

	var events publisher.Publisher = publisher.Noop{}
	if cfg.AMQPURL != "" {
		amqpPub := publisher.NewAMQP(cfg.AMQPURL)
		defer amqpPub.Close()
		events = amqpPub

		consumer := &queue.AuditConsumer{URL: cfg.AMQPURL, LogPath: cfg.AuditLogPath}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("audit consumer stopped", "err", err)
			}
		}()
	} else {
		slog.Info("RABBITMQ_URL not set, domain events are not published")
	}

	rdb := config.NewRedisClient(ctx)
	if rdb != nil {
		defer rdb.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	svc := service.New(service.Deps{
		Store:   store,
		Content: content,
		Events:  events,
		Metrics: m,
		Logger:  logger,
	}, service.Options{
		AccessSecret:          cfg.AccessSecret,
		RefreshSecret:         cfg.RefreshSecret,
		AccessTTL:             cfg.AccessTTL,
		RefreshTTL:            cfg.RefreshTTL,
		BcryptCost:            cfg.BcryptCost,
		StoreTimeout:          cfg.StoreTimeout,
		StrictMessageStatus:   cfg.StrictMessageStatus,
		AdminSeesAllResponses: cfg.AdminResponsesScope == config.ScopeAll,
	})

	ready := map[string]handler.Pinger{"store": store}
	if rdb != nil {
		ready["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	e := router.New(router.Deps{
		Svc:          svc,
		Logger:       logger,
		Metrics:      m,
		Gatherer:     reg,
		RateLimit:    config.LoadRateLimitConfig(),
		Redis:        rdb,
		CookieSecure: cfg.CookieSecure,
		MaxUpload:    cfg.MaxUploadBytes,
		Ready:        ready,
	})

	addr := ":" + cfg.Port
	go func() {
		slog.Info("listening", "addr", addr, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "err", err)
	}
}

// openContentStore returns MinIO when configured.  Outside production an
// unconfigured endpoint falls back to process memory.
func openContentStore(ctx context.Context, cfg config.Config) (contentstore.Store, error) {
	if cfg.MinIO.Endpoint == "" {
		if cfg.Env == "prod" {
			return nil, errors.New("MINIO_ENDPOINT is required in prod")
		}
		slog.Warn("MINIO_ENDPOINT not set, attachments are kept in memory")
		return contentstore.NewMemory(), nil
	}
	mc, err := contentstore.NewMinIO(cfg.MinIO)
	if err != nil {
		return nil, err
	}
	bctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := mc.EnsureBucket(bctx); err != nil {
		return nil, err
	}
	return mc, nil
}
